package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"laundry-backend/internal/domain"
)

const (
	DefaultSweepWindow = 48 * time.Hour
	DefaultSweepDelay  = time.Second
)

type SweepResult struct {
	OrderID          string               `json:"orderId"`
	OrderNumber      string               `json:"orderNumber"`
	Status           Outcome              `json:"status"`
	OldStatus        domain.OrderStatus   `json:"oldStatus,omitempty"`
	NewStatus        domain.OrderStatus   `json:"newStatus,omitempty"`
	OldPaymentStatus domain.PaymentStatus `json:"oldPaymentStatus,omitempty"`
	NewPaymentStatus domain.PaymentStatus `json:"newPaymentStatus,omitempty"`
	GatewayStatus    string               `json:"midtransStatus,omitempty"`
	Message          string               `json:"message,omitempty"`
}

type SweepReport struct {
	Checked int           `json:"checked"`
	Updated int           `json:"updated"`
	Errors  int           `json:"errors"`
	Results []SweepResult `json:"results"`
}

// Sweep re-checks every pending-payment order inside the sweep window, one
// gateway call at a time. A failing order is reported and the batch goes on.
func (r *Reconciler) Sweep(ctx context.Context) (*SweepReport, error) {
	window := r.SweepWindow
	if window <= 0 {
		window = DefaultSweepWindow
	}
	orders, err := r.Orders.ListPendingPayments(ctx, r.now().Add(-window))
	if err != nil {
		return nil, &PersistenceError{Op: "list pending payments", Err: err}
	}
	rep := &SweepReport{Results: make([]SweepResult, 0, len(orders))}
	r.log().Info("payment sweep started", "orders", len(orders))
	for i := range orders {
		if i > 0 && r.SweepDelay > 0 {
			t := time.NewTimer(r.SweepDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				r.log().Warn("payment sweep interrupted", "checked", rep.Checked, "remaining", len(orders)-i)
				return rep, ctx.Err()
			case <-t.C:
			}
		}
		o := &orders[i]
		rep.Checked++
		rep.Results = append(rep.Results, r.sweepOne(ctx, o))
		switch rep.Results[len(rep.Results)-1].Status {
		case OutcomeUpdated:
			rep.Updated++
		case OutcomeError:
			rep.Errors++
		}
	}
	r.log().Info("payment sweep finished", "checked", rep.Checked, "updated", rep.Updated, "errors", rep.Errors)
	return rep, nil
}

func (r *Reconciler) sweepOne(ctx context.Context, o *domain.Order) (out SweepResult) {
	out = SweepResult{OrderID: o.ID, OrderNumber: o.OrderNumber, Status: OutcomeError}
	defer func() {
		if p := recover(); p != nil {
			out = SweepResult{OrderID: o.ID, OrderNumber: o.OrderNumber, Status: OutcomeError, Message: fmt.Sprintf("panic: %v", p)}
			r.log().Error("payment sweep order panicked", "order_id", o.ID, "panic", p)
		}
	}()
	res, err := r.check(ctx, o, domain.SourceSweep)
	var nf ErrNotFound
	switch {
	case errors.As(err, &nf):
		out.Status = OutcomeUnchanged
		out.Message = "no gateway transaction yet"
		return out
	case err != nil:
		out.Message = err.Error()
		r.log().Error("payment sweep order failed", "order_id", o.ID, "err", err)
		return out
	}
	out.Status = res.Outcome
	out.OldStatus = res.OldStatus
	out.NewStatus = res.NewStatus
	out.OldPaymentStatus = res.OldPaymentStatus
	out.NewPaymentStatus = res.NewPaymentStatus
	out.GatewayStatus = res.GatewayStatus
	out.Message = res.Reason
	return out
}
