package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"laundry-backend/internal/domain"
)

// MemoryRepo backs every usecase repository interface with maps. It is used
// when no database is configured and in tests. Values are copied in and out.
type MemoryRepo struct {
	mu       sync.RWMutex
	orders   map[string]*domain.Order
	history  map[string][]domain.StatusHistory
	logs     []domain.PaymentLog
	services map[string]domain.ServiceType
	items    map[string]domain.ItemType
}

func NewMemoryRepo() *MemoryRepo {
	r := &MemoryRepo{
		orders:   make(map[string]*domain.Order),
		history:  make(map[string][]domain.StatusHistory),
		services: make(map[string]domain.ServiceType),
		items:    make(map[string]domain.ItemType),
	}
	for _, s := range DefaultServiceTypes() {
		r.services[s.ID] = s
	}
	for _, it := range DefaultItemTypes() {
		r.items[it.ID] = it
	}
	return r
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	if o.Items != nil {
		cp.Items = append([]domain.OrderItem(nil), o.Items...)
	}
	if o.DeliveryDate != nil {
		d := *o.DeliveryDate
		cp.DeliveryDate = &d
	}
	return &cp
}

func (r *MemoryRepo) PutServiceType(s domain.ServiceType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[s.ID] = s
}

func (r *MemoryRepo) PutItemType(it domain.ItemType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[it.ID] = it
}

// PutOrder stores an order as is. Test seeding only; no history row is written.
func (r *MemoryRepo) PutOrder(o *domain.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = copyOrder(o)
}

func (r *MemoryRepo) CreateOrder(_ context.Context, o *domain.Order, first *domain.StatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = copyOrder(o)
	if first != nil {
		r.history[o.ID] = append(r.history[o.ID], *first)
	}
	return nil
}

func (r *MemoryRepo) GetOrder(_ context.Context, id string) (*domain.Order, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, false, nil
	}
	return copyOrder(o), true, nil
}

func (r *MemoryRepo) sorted(desc bool) []*domain.Order {
	all := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool {
		if desc {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all
}

func (r *MemoryRepo) ListOrders(_ context.Context, page, pageSize int) ([]domain.Order, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.sorted(true)
	total := len(all)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	out := make([]domain.Order, 0, end-start)
	for _, o := range all[start:end] {
		out = append(out, *copyOrder(o))
	}
	return out, total, nil
}

func (r *MemoryRepo) FindByGatewayTransactionID(_ context.Context, gatewayID string) (*domain.Order, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.GatewayTransactionID != "" && o.GatewayTransactionID == gatewayID {
			return copyOrder(o), true, nil
		}
	}
	return nil, false, nil
}

func (r *MemoryRepo) FindByOrderNumber(_ context.Context, number string) (*domain.Order, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.OrderNumber == number {
			return copyOrder(o), true, nil
		}
	}
	return nil, false, nil
}

func (r *MemoryRepo) FindRecentByOrderNumberPrefix(_ context.Context, prefix string, since time.Time) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Order
	for _, o := range r.sorted(true) {
		if !o.CreatedAt.Before(since) && strings.HasPrefix(o.OrderNumber, prefix) {
			out = append(out, *copyOrder(o))
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListPendingPayments(_ context.Context, since time.Time) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Order
	for _, o := range r.sorted(false) {
		if o.PaymentStatus == domain.PaymentPending && !o.CreatedAt.Before(since) {
			out = append(out, *copyOrder(o))
		}
	}
	return out, nil
}

func (r *MemoryRepo) UpdateStatus(_ context.Context, u domain.StatusUpdate, expected domain.PaymentStatus) (*domain.Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[u.OrderID]
	if !ok || o.PaymentStatus != expected {
		return nil, false, nil
	}
	o.Status = u.Status
	o.PaymentStatus = u.PaymentStatus
	o.UpdatedAt = u.UpdatedAt
	if u.Refs.TransactionID != "" {
		o.GatewayTransactionID = u.Refs.TransactionID
	}
	if u.Refs.PaymentType != "" {
		o.GatewayPaymentType = u.Refs.PaymentType
	}
	if u.Refs.VANumber != "" {
		o.VANumber = u.Refs.VANumber
	}
	if u.Refs.MaskedCard != "" {
		o.MaskedCard = u.Refs.MaskedCard
	}
	if u.Refs.FraudStatus != "" {
		o.FraudStatus = u.Refs.FraudStatus
	}
	return copyOrder(o), true, nil
}

func (r *MemoryRepo) SetGatewayTransactionID(_ context.Context, orderID, gatewayID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return ErrNoOrder
	}
	o.GatewayTransactionID = gatewayID
	o.UpdatedAt = at
	return nil
}

func (r *MemoryRepo) AppendHistory(_ context.Context, h *domain.StatusHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[h.OrderID] = append(r.history[h.OrderID], *h)
	return nil
}

func (r *MemoryRepo) ListHistory(_ context.Context, orderID string) ([]domain.StatusHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.StatusHistory(nil), r.history[orderID]...), nil
}

func (r *MemoryRepo) AppendPaymentLog(_ context.Context, l *domain.PaymentLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *l)
	return nil
}

func (r *MemoryRepo) PaymentLogs() []domain.PaymentLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.PaymentLog(nil), r.logs...)
}

func (r *MemoryRepo) GetServiceType(_ context.Context, id string) (*domain.ServiceType, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.services[id]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (r *MemoryRepo) ListServiceTypes(_ context.Context) ([]domain.ServiceType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ServiceType, 0, len(r.services))
	for _, s := range r.services {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) GetItemTypes(_ context.Context, ids []string) (map[string]domain.ItemType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.ItemType, len(ids))
	for _, id := range ids {
		if it, ok := r.items[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

func (r *MemoryRepo) ListItemTypes(_ context.Context) ([]domain.ItemType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ItemType, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
