package domain

import (
	"time"
)

type OrderStatus string

const (
	OrderPending             OrderStatus = "pending"
	OrderConfirmed           OrderStatus = "confirmed"
	OrderPickedUp            OrderStatus = "picked_up"
	OrderInProcess           OrderStatus = "in_process"
	OrderReady               OrderStatus = "ready"
	OrderDelivered           OrderStatus = "delivered"
	OrderCompleted           OrderStatus = "completed"
	OrderCancelled           OrderStatus = "cancelled"
	OrderPendingCancellation OrderStatus = "pending_cancellation"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentExpired   PaymentStatus = "expired"
)

type ServiceKind string

const (
	ServiceKiloan ServiceKind = "kiloan"
	ServiceSatuan ServiceKind = "satuan"
)

// PaymentWindow is how long after creation an unpaid order may still start a payment.
const PaymentWindow = 24 * time.Hour

type OrderItem struct {
	ID           string `json:"id"`
	OrderID      string `json:"orderId"`
	ItemTypeID   string `json:"itemTypeId"`
	ItemTypeName string `json:"itemTypeName,omitempty"`
	Quantity     int    `json:"quantity"`
	PricePerItem int64  `json:"pricePerItem"`
	Subtotal     int64  `json:"subtotal"`
}

type Order struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"orderNumber"`
	UserID          string      `json:"userId,omitempty"`
	ServiceTypeID   string      `json:"serviceTypeId"`
	ServiceTypeName string      `json:"serviceTypeName,omitempty"`
	ServiceKind     ServiceKind `json:"serviceKind"`
	WeightKg        float64     `json:"weightKg,omitempty"`
	Items           []OrderItem `json:"items,omitempty"`
	ServicePrice    int64       `json:"servicePrice"`
	PickupFee       int64       `json:"pickupFee"`
	DeliveryFee     int64       `json:"deliveryFee"`
	TotalPrice      int64       `json:"totalPrice"`

	PickupDate      time.Time  `json:"pickupDate"`
	PickupTime      string     `json:"pickupTime"`
	DeliveryDate    *time.Time `json:"deliveryDate,omitempty"`
	DeliveryTime    string     `json:"deliveryTime,omitempty"`
	PickupAddress   string     `json:"pickupAddress"`
	DeliveryAddress string     `json:"deliveryAddress"`
	CustomerName    string     `json:"customerName"`
	CustomerPhone   string     `json:"customerPhone"`
	Notes           string     `json:"notes,omitempty"`

	Status        OrderStatus   `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`

	GatewayTransactionID string `json:"gatewayTransactionId,omitempty"`
	GatewayPaymentType   string `json:"gatewayPaymentType,omitempty"`
	VANumber             string `json:"vaNumber,omitempty"`
	MaskedCard           string `json:"maskedCard,omitempty"`
	FraudStatus          string `json:"fraudStatus,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (o *Order) PaymentDeadline() time.Time {
	return o.CreatedAt.Add(PaymentWindow)
}

// CanPay reports whether a new payment attempt may be started at now.
func (o *Order) CanPay(now time.Time) bool {
	if o.PaymentStatus != PaymentPending && o.PaymentStatus != PaymentFailed {
		return false
	}
	if o.Status == OrderCancelled {
		return false
	}
	return now.Before(o.PaymentDeadline())
}

// IsExpired is the read-time expiry rule: still unpaid after the payment window.
func (o *Order) IsExpired(now time.Time) bool {
	return o.PaymentStatus == PaymentPending && !now.Before(o.PaymentDeadline())
}

func (o *Order) IsTerminal() bool {
	switch o.Status {
	case OrderCompleted, OrderCancelled:
		return true
	case OrderDelivered:
		switch o.PaymentStatus {
		case PaymentFailed, PaymentExpired, PaymentCancelled:
			return true
		}
	}
	return false
}

// GatewayRefs are the payment gateway fields copied onto an order on transition.
type GatewayRefs struct {
	TransactionID string
	PaymentType   string
	VANumber      string
	MaskedCard    string
	FraudStatus   string
}

// StatusUpdate is one atomic change to an order's status columns.
type StatusUpdate struct {
	OrderID       string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Refs          GatewayRefs
	UpdatedAt     time.Time
}
