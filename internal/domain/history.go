package domain

import (
	"encoding/json"
	"time"
)

type HistorySource string

const (
	SourceCreate   HistorySource = "create"
	SourceWebhook  HistorySource = "webhook"
	SourceManual   HistorySource = "manual"
	SourceSweep    HistorySource = "sweep"
	SourceCustomer HistorySource = "customer"
)

// StatusHistory is an append-only record of an order status transition.
// Unchanged is set on the single no-op marker written when a gateway status
// is replayed without effect.
type StatusHistory struct {
	ID               string        `json:"id"`
	OrderID          string        `json:"orderId"`
	OldStatus        OrderStatus   `json:"oldStatus,omitempty"`
	NewStatus        OrderStatus   `json:"newStatus"`
	OldPaymentStatus PaymentStatus `json:"oldPaymentStatus,omitempty"`
	NewPaymentStatus PaymentStatus `json:"newPaymentStatus"`
	GatewayStatus    string        `json:"gatewayStatus,omitempty"`
	Source           HistorySource `json:"source"`
	Note             string        `json:"note"`
	Unchanged        bool          `json:"unchanged"`
	CreatedAt        time.Time     `json:"createdAt"`
}

// PaymentLog keeps the raw gateway payload of every webhook or status query.
type PaymentLog struct {
	ID                string          `json:"id"`
	OrderID           string          `json:"orderId,omitempty"`
	GatewayOrderID    string          `json:"gatewayOrderId"`
	TransactionStatus string          `json:"transactionStatus"`
	FraudStatus       string          `json:"fraudStatus,omitempty"`
	Source            HistorySource   `json:"source"`
	Payload           json.RawMessage `json:"payload"`
	CreatedAt         time.Time       `json:"createdAt"`
}
