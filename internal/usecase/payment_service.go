package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"laundry-backend/internal/domain"
	"laundry-backend/internal/infrastructure/midtrans"
)

type SnapCreator interface {
	CreateSnap(ctx context.Context, req midtrans.SnapRequest) (midtrans.SnapResponse, error)
}

type PaymentSession struct {
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	Token          string    `json:"token"`
	RedirectURL    string    `json:"redirectUrl"`
	GrossAmount    int64     `json:"grossAmount"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

type PaymentService struct {
	Orders  OrderRepo
	Gateway SnapCreator
	Logger  *slog.Logger
	Now     func() time.Time
}

func (s *PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// GatewayOrderID is the id sent to the gateway: the order number plus a unix
// timestamp so a retried payment never collides with an earlier attempt.
func GatewayOrderID(orderNumber string, at time.Time) string {
	return fmt.Sprintf("%s-%d", orderNumber, at.Unix())
}

// Create opens a Snap session for an order. The gateway id is stored before the
// gateway is called so a webhook can always be matched exactly.
func (s *PaymentService) Create(ctx context.Context, orderID string) (*PaymentSession, error) {
	if orderID == "" {
		return nil, ErrBadRequest("orderId required")
	}
	o, ok, err := s.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, &PersistenceError{Op: "get order", Err: err}
	}
	if !ok {
		return nil, ErrNotFound("order")
	}
	now := s.now()
	if o.IsExpired(now) {
		return nil, ErrConflict("payment window expired")
	}
	if !o.CanPay(now) {
		return nil, ErrConflict(fmt.Sprintf("order with payment status %s cannot be paid", o.PaymentStatus))
	}

	details := o.ItemDetails()
	if err := domain.CheckGrossAmount(details, o.TotalPrice); err != nil {
		return nil, ErrBadRequest(err.Error())
	}
	items := make([]midtrans.SnapItem, 0, len(details))
	for _, d := range details {
		items = append(items, midtrans.SnapItem{ID: d.ID, Name: d.Name, Price: d.Price, Quantity: d.Quantity})
	}

	gid := GatewayOrderID(o.OrderNumber, now)
	if err := s.Orders.SetGatewayTransactionID(ctx, o.ID, gid, now); err != nil {
		return nil, &PersistenceError{Op: "set gateway transaction id", Err: err}
	}

	deadline := o.PaymentDeadline()
	minutes := int(deadline.Sub(now) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	req := midtrans.SnapRequest{
		TransactionDetails: midtrans.TransactionDetails{OrderID: gid, GrossAmount: o.TotalPrice},
		ItemDetails:        items,
		CustomerDetails:    midtrans.CustomerDetails{FirstName: o.CustomerName, Phone: o.CustomerPhone},
		Expiry: &midtrans.SnapExpiry{
			StartTime: now.Format("2006-01-02 15:04:05 -0700"),
			Unit:      "minute",
			Duration:  minutes,
		},
	}
	snap, err := s.Gateway.CreateSnap(ctx, req)
	if err != nil {
		return nil, &UpstreamError{Op: "create snap", Err: err}
	}
	if s.Logger != nil {
		s.Logger.Info("payment session created", "order_id", o.ID, "gateway_order_id", gid, "gross_amount", o.TotalPrice)
	}
	return &PaymentSession{
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		GatewayOrderID: gid,
		Token:          snap.Token,
		RedirectURL:    snap.RedirectURL,
		GrossAmount:    o.TotalPrice,
		ExpiresAt:      deadline,
	}, nil
}
