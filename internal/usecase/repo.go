package usecase

import (
	"context"
	"time"

	"laundry-backend/internal/domain"
)

type OrderRepo interface {
	// CreateOrder stores the order, its items and the first history row atomically.
	CreateOrder(ctx context.Context, o *domain.Order, first *domain.StatusHistory) error
	GetOrder(ctx context.Context, id string) (*domain.Order, bool, error)
	ListOrders(ctx context.Context, page, pageSize int) ([]domain.Order, int, error)
	FindByGatewayTransactionID(ctx context.Context, gatewayID string) (*domain.Order, bool, error)
	FindByOrderNumber(ctx context.Context, number string) (*domain.Order, bool, error)
	// FindRecentByOrderNumberPrefix returns orders created at or after since whose
	// order_number starts with prefix, newest first.
	FindRecentByOrderNumberPrefix(ctx context.Context, prefix string, since time.Time) ([]domain.Order, error)
	// ListPendingPayments returns orders with payment_status pending created at or
	// after since, oldest first.
	ListPendingPayments(ctx context.Context, since time.Time) ([]domain.Order, error)
	// UpdateStatus applies u only while the stored payment_status still equals
	// expected. It returns ok=false when another writer got there first.
	UpdateStatus(ctx context.Context, u domain.StatusUpdate, expected domain.PaymentStatus) (*domain.Order, bool, error)
	SetGatewayTransactionID(ctx context.Context, orderID, gatewayID string, at time.Time) error
}

type HistoryRepo interface {
	AppendHistory(ctx context.Context, h *domain.StatusHistory) error
	ListHistory(ctx context.Context, orderID string) ([]domain.StatusHistory, error)
	AppendPaymentLog(ctx context.Context, l *domain.PaymentLog) error
}

type CatalogRepo interface {
	GetServiceType(ctx context.Context, id string) (*domain.ServiceType, bool, error)
	ListServiceTypes(ctx context.Context) ([]domain.ServiceType, error)
	GetItemTypes(ctx context.Context, ids []string) (map[string]domain.ItemType, error)
	ListItemTypes(ctx context.Context) ([]domain.ItemType, error)
}
