package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"laundry-backend/internal/domain"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		ts, fraud string
		want      Mapping
	}{
		{"capture", "accept", Mapping{Status: domain.OrderConfirmed, PaymentStatus: domain.PaymentPaid, Known: true}},
		{"settlement", "", Mapping{Status: domain.OrderConfirmed, PaymentStatus: domain.PaymentPaid, Known: true}},
		{" Settlement ", "ACCEPT", Mapping{Status: domain.OrderConfirmed, PaymentStatus: domain.PaymentPaid, Known: true}},
		{"capture", "challenge", Mapping{NeedsReview: true}},
		{"settlement", "deny", Mapping{NeedsReview: true}},
		{"cancel", "", Mapping{Status: domain.OrderCancelled, PaymentStatus: domain.PaymentFailed, Known: true}},
		{"deny", "", Mapping{Status: domain.OrderCancelled, PaymentStatus: domain.PaymentFailed, Known: true}},
		{"expire", "", Mapping{Status: domain.OrderCancelled, PaymentStatus: domain.PaymentExpired, Known: true}},
		{"pending", "", Mapping{Status: domain.OrderPending, PaymentStatus: domain.PaymentPending, Known: true}},
		{"refund", "", Mapping{}},
		{"", "", Mapping{}},
	}
	for _, c := range cases {
		t.Run(c.ts+"/"+c.fraud, func(t *testing.T) {
			assert.Equal(t, c.want, MapStatus(c.ts, c.fraud))
		})
	}
}

func TestDecide(t *testing.T) {
	order := func(s domain.OrderStatus, p domain.PaymentStatus) *domain.Order {
		return &domain.Order{Status: s, PaymentStatus: p}
	}
	paid := MapStatus("settlement", "")
	pending := MapStatus("pending", "")
	failed := MapStatus("deny", "")
	expired := MapStatus("expire", "")

	cases := []struct {
		name       string
		o          *domain.Order
		m          Mapping
		apply      bool
		status     domain.OrderStatus
		payment    domain.PaymentStatus
		wantReason string
	}{
		{"pending to paid", order(domain.OrderPending, domain.PaymentPending), paid, true, domain.OrderConfirmed, domain.PaymentPaid, ""},
		{"failed order frozen", order(domain.OrderCancelled, domain.PaymentFailed), paid, false, domain.OrderCancelled, domain.PaymentFailed, "order terminal"},
		{"customer cancel frozen", order(domain.OrderCancelled, domain.PaymentCancelled), paid, false, domain.OrderCancelled, domain.PaymentCancelled, "order terminal"},
		{"delivered unpaid frozen", order(domain.OrderDelivered, domain.PaymentFailed), paid, false, domain.OrderDelivered, domain.PaymentFailed, "order terminal"},
		{"delivered pending pays", order(domain.OrderDelivered, domain.PaymentPending), paid, true, domain.OrderDelivered, domain.PaymentPaid, ""},
		{"paid replay", order(domain.OrderConfirmed, domain.PaymentPaid), paid, false, domain.OrderConfirmed, domain.PaymentPaid, "unchanged"},
		{"paid never pending", order(domain.OrderConfirmed, domain.PaymentPaid), pending, false, domain.OrderConfirmed, domain.PaymentPaid, "paid order never returns to pending"},
		{"completed frozen", order(domain.OrderCompleted, domain.PaymentPaid), failed, false, domain.OrderCompleted, domain.PaymentPaid, "order terminal"},
		{"paid then denied", order(domain.OrderConfirmed, domain.PaymentPaid), failed, true, domain.OrderCancelled, domain.PaymentFailed, ""},
		{"pending expired", order(domain.OrderPending, domain.PaymentPending), expired, true, domain.OrderCancelled, domain.PaymentExpired, ""},
		{"cancelled stays cancelled", order(domain.OrderCancelled, domain.PaymentCancelled), pending, false, domain.OrderCancelled, domain.PaymentCancelled, "order terminal"},
		{"review", order(domain.OrderPending, domain.PaymentPending), MapStatus("capture", "challenge"), false, domain.OrderPending, domain.PaymentPending, "fraud review required"},
		{"unknown", order(domain.OrderPending, domain.PaymentPending), MapStatus("refund", ""), false, domain.OrderPending, domain.PaymentPending, "unrecognized gateway status"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := Decide(c.o, c.m)
			assert.Equal(t, c.apply, d.Apply)
			assert.Equal(t, c.status, d.Status)
			assert.Equal(t, c.payment, d.PaymentStatus)
			assert.Equal(t, c.wantReason, d.Reason)
		})
	}
}

func TestDecideKeepsWorkflowProgress(t *testing.T) {
	o := &domain.Order{Status: domain.OrderPickedUp, PaymentStatus: domain.PaymentFailed}
	d := Decide(o, MapStatus("settlement", "accept"))
	assert.True(t, d.Apply)
	assert.Equal(t, domain.OrderPickedUp, d.Status)
	assert.Equal(t, domain.PaymentPaid, d.PaymentStatus)
}
