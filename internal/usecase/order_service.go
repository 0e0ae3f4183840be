package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"laundry-backend/internal/domain"
)

const maxWeightKg = 100

type ItemInput struct {
	ItemTypeID string
	Quantity   int
}

type CreateOrderInput struct {
	UserID          string
	ServiceTypeID   string
	WeightKg        float64
	Items           []ItemInput
	PickupDate      time.Time
	PickupTime      string
	DeliveryDate    *time.Time
	DeliveryTime    string
	PickupAddress   string
	DeliveryAddress string
	CustomerName    string
	CustomerPhone   string
	Notes           string
}

type OrderService struct {
	Orders      OrderRepo
	History     HistoryRepo
	Catalog     CatalogRepo
	Logger      *slog.Logger
	PickupFee   int64
	DeliveryFee int64
	Now         func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *OrderService) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	if strings.TrimSpace(in.ServiceTypeID) == "" {
		return nil, ErrBadRequest("serviceTypeId required")
	}
	if strings.TrimSpace(in.CustomerName) == "" || strings.TrimSpace(in.CustomerPhone) == "" {
		return nil, ErrBadRequest("customer name and phone required")
	}
	if strings.TrimSpace(in.PickupAddress) == "" {
		return nil, ErrBadRequest("pickupAddress required")
	}
	if in.PickupDate.IsZero() {
		return nil, ErrBadRequest("pickupDate required")
	}
	if in.DeliveryDate != nil && in.DeliveryDate.Before(in.PickupDate) {
		return nil, ErrBadRequest("deliveryDate before pickupDate")
	}
	svc, ok, err := s.Catalog.GetServiceType(ctx, in.ServiceTypeID)
	if err != nil {
		return nil, &PersistenceError{Op: "get service type", Err: err}
	}
	if !ok || !svc.Active {
		return nil, ErrBadRequest("unknown service type")
	}

	now := s.now()
	number, err := domain.NewOrderNumber(now)
	if err != nil {
		return nil, err
	}
	o := &domain.Order{
		ID:              uuid.NewString(),
		OrderNumber:     number,
		UserID:          in.UserID,
		ServiceTypeID:   svc.ID,
		ServiceTypeName: svc.Name,
		ServiceKind:     svc.Kind,
		PickupFee:       s.PickupFee,
		DeliveryFee:     s.DeliveryFee,
		PickupDate:      in.PickupDate,
		PickupTime:      in.PickupTime,
		DeliveryDate:    in.DeliveryDate,
		DeliveryTime:    in.DeliveryTime,
		PickupAddress:   strings.TrimSpace(in.PickupAddress),
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerPhone:   strings.TrimSpace(in.CustomerPhone),
		Notes:           in.Notes,
		Status:          domain.OrderPending,
		PaymentStatus:   domain.PaymentPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if o.DeliveryAddress == "" {
		o.DeliveryAddress = o.PickupAddress
	}

	switch svc.Kind {
	case domain.ServiceKiloan:
		if in.WeightKg <= 0 || in.WeightKg > maxWeightKg {
			return nil, ErrBadRequest(fmt.Sprintf("weightKg must be in (0, %d]", maxWeightKg))
		}
		o.WeightKg = in.WeightKg
		o.ServicePrice = domain.WeightPrice(svc.PricePerKg, in.WeightKg)
	case domain.ServiceSatuan:
		if err := s.priceItems(ctx, o, in.Items); err != nil {
			return nil, err
		}
	default:
		return nil, ErrBadRequest("unsupported service kind")
	}
	o.TotalPrice = o.ServicePrice + o.PickupFee + o.DeliveryFee
	if err := domain.CheckGrossAmount(o.ItemDetails(), o.TotalPrice); err != nil {
		return nil, ErrBadRequest(err.Error())
	}

	first := &domain.StatusHistory{
		ID:               uuid.NewString(),
		OrderID:          o.ID,
		NewStatus:        o.Status,
		NewPaymentStatus: o.PaymentStatus,
		Source:           domain.SourceCreate,
		Note:             "Pesanan dibuat",
		CreatedAt:        now,
	}
	if err := s.Orders.CreateOrder(ctx, o, first); err != nil {
		return nil, &PersistenceError{Op: "create order", Err: err}
	}
	if s.Logger != nil {
		s.Logger.Info("order created", "order_id", o.ID, "order_number", o.OrderNumber, "total_price", o.TotalPrice)
	}
	return o, nil
}

func (s *OrderService) priceItems(ctx context.Context, o *domain.Order, items []ItemInput) error {
	if len(items) == 0 {
		return ErrBadRequest("items required for satuan service")
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return ErrBadRequest("item quantity must be positive")
		}
		ids = append(ids, it.ItemTypeID)
	}
	types, err := s.Catalog.GetItemTypes(ctx, ids)
	if err != nil {
		return &PersistenceError{Op: "get item types", Err: err}
	}
	for _, it := range items {
		t, ok := types[it.ItemTypeID]
		if !ok || !t.Active {
			return ErrBadRequest("unknown item type " + it.ItemTypeID)
		}
		line := domain.OrderItem{
			ID:           uuid.NewString(),
			OrderID:      o.ID,
			ItemTypeID:   t.ID,
			ItemTypeName: t.Name,
			Quantity:     it.Quantity,
			PricePerItem: t.Price,
			Subtotal:     t.Price * int64(it.Quantity),
		}
		o.Items = append(o.Items, line)
		o.ServicePrice += line.Subtotal
	}
	return nil
}

func (s *OrderService) Get(ctx context.Context, id string) (*domain.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrBadRequest("order id required")
	}
	o, ok, err := s.Orders.GetOrder(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get order", Err: err}
	}
	if !ok {
		return nil, ErrNotFound("order")
	}
	return o, nil
}

func (s *OrderService) List(ctx context.Context, page, pageSize int) ([]domain.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	out, total, err := s.Orders.ListOrders(ctx, page, pageSize)
	if err != nil {
		return nil, 0, &PersistenceError{Op: "list orders", Err: err}
	}
	return out, total, nil
}

func (s *OrderService) StatusHistory(ctx context.Context, id string) ([]domain.StatusHistory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	h, err := s.History.ListHistory(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "list history", Err: err}
	}
	return h, nil
}

// Cancel handles a customer cancellation. Unpaid orders are cancelled at once;
// paid orders wait in pending_cancellation for an operator refund.
func (s *OrderService) Cancel(ctx context.Context, id, reason string) (*domain.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	u := domain.StatusUpdate{OrderID: o.ID, UpdatedAt: s.now()}
	switch {
	case o.Status == domain.OrderPending && o.PaymentStatus != domain.PaymentPaid:
		u.Status = domain.OrderCancelled
		u.PaymentStatus = domain.PaymentCancelled
	case o.Status == domain.OrderConfirmed && o.PaymentStatus == domain.PaymentPaid:
		u.Status = domain.OrderPendingCancellation
		u.PaymentStatus = domain.PaymentPaid
	default:
		return nil, ErrConflict(fmt.Sprintf("order in status %s cannot be cancelled", o.Status))
	}
	updated, ok, err := s.Orders.UpdateStatus(ctx, u, o.PaymentStatus)
	if err != nil {
		return nil, &PersistenceError{Op: "cancel order", Err: err}
	}
	if !ok {
		return nil, ErrConflict("order changed concurrently, retry")
	}
	note := "Dibatalkan oleh pelanggan"
	if strings.TrimSpace(reason) != "" {
		note += ": " + strings.TrimSpace(reason)
	}
	h := &domain.StatusHistory{
		ID:               uuid.NewString(),
		OrderID:          o.ID,
		OldStatus:        o.Status,
		NewStatus:        updated.Status,
		OldPaymentStatus: o.PaymentStatus,
		NewPaymentStatus: updated.PaymentStatus,
		Source:           domain.SourceCustomer,
		Note:             note,
		CreatedAt:        u.UpdatedAt,
	}
	if err := s.History.AppendHistory(ctx, h); err != nil && s.Logger != nil {
		s.Logger.Error("status history write failed", "order_id", o.ID, "err", err)
	}
	return updated, nil
}

type CatalogView struct {
	ServiceTypes []domain.ServiceType `json:"serviceTypes"`
	ItemTypes    []domain.ItemType    `json:"itemTypes"`
}

// ListCatalog returns the active service and item types.
func (s *OrderService) ListCatalog(ctx context.Context) (*CatalogView, error) {
	services, err := s.Catalog.ListServiceTypes(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list service types", Err: err}
	}
	items, err := s.Catalog.ListItemTypes(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "list item types", Err: err}
	}
	out := &CatalogView{ServiceTypes: []domain.ServiceType{}, ItemTypes: []domain.ItemType{}}
	for _, st := range services {
		if st.Active {
			out.ServiceTypes = append(out.ServiceTypes, st)
		}
	}
	for _, it := range items {
		if it.Active {
			out.ItemTypes = append(out.ItemTypes, it)
		}
	}
	return out, nil
}
