package usecase

import (
	"strings"

	"laundry-backend/internal/domain"
)

// Mapping is the internal (status, payment_status) pair a gateway status maps to.
// Known is false when the order must be left unchanged.
type Mapping struct {
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Known         bool
	NeedsReview   bool
}

// MapStatus is a pure function of the gateway transaction_status and fraud_status.
func MapStatus(transactionStatus, fraudStatus string) Mapping {
	ts := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))
	switch ts {
	case "capture", "settlement":
		if fraud == "" || fraud == "accept" {
			return Mapping{Status: domain.OrderConfirmed, PaymentStatus: domain.PaymentPaid, Known: true}
		}
		return Mapping{NeedsReview: true}
	case "cancel", "deny":
		return Mapping{Status: domain.OrderCancelled, PaymentStatus: domain.PaymentFailed, Known: true}
	case "expire":
		return Mapping{Status: domain.OrderCancelled, PaymentStatus: domain.PaymentExpired, Known: true}
	case "pending":
		return Mapping{Status: domain.OrderPending, PaymentStatus: domain.PaymentPending, Known: true}
	}
	return Mapping{}
}

// Decision is what the reconciler will write for a mapped gateway status.
type Decision struct {
	Apply         bool
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Reason        string
}

const (
	reasonTerminal     = "order terminal"
	reasonAmountReview = "gross amount review required"
	reasonFraudReview  = "fraud review required"
)

// Decide applies idempotence and monotonicity to a mapping for the stored order.
// Terminal orders are never changed.
func Decide(o *domain.Order, m Mapping) Decision {
	keep := Decision{Status: o.Status, PaymentStatus: o.PaymentStatus}
	switch {
	case m.NeedsReview:
		keep.Reason = reasonFraudReview
		return keep
	case !m.Known:
		keep.Reason = "unrecognized gateway status"
		return keep
	case m.PaymentStatus == o.PaymentStatus:
		keep.Reason = "unchanged"
		return keep
	case o.IsTerminal():
		keep.Reason = reasonTerminal
		return keep
	case o.PaymentStatus == domain.PaymentPaid && m.PaymentStatus == domain.PaymentPending:
		keep.Reason = "paid order never returns to pending"
		return keep
	}

	d := Decision{Apply: true, Status: m.Status, PaymentStatus: m.PaymentStatus}
	if o.Status != domain.OrderPending && (m.PaymentStatus == domain.PaymentPaid || m.PaymentStatus == domain.PaymentPending) {
		// already picked up or further along; payment must not rewind the workflow
		d.Status = o.Status
	}
	return d
}
