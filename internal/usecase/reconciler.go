package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"laundry-backend/internal/domain"
	"laundry-backend/internal/infrastructure/midtrans"
)

type StatusQuerier interface {
	Status(ctx context.Context, gatewayOrderID string) (midtrans.TransactionStatus, error)
}

type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeError     Outcome = "error"
)

// fuzzyWindow bounds the last-resort order-number prefix match.
const fuzzyWindow = 24 * time.Hour

type Result struct {
	Order            *domain.Order        `json:"order"`
	Outcome          Outcome              `json:"outcome"`
	OldStatus        domain.OrderStatus   `json:"oldStatus"`
	NewStatus        domain.OrderStatus   `json:"newStatus"`
	OldPaymentStatus domain.PaymentStatus `json:"oldPaymentStatus"`
	NewPaymentStatus domain.PaymentStatus `json:"newPaymentStatus"`
	GatewayStatus    string               `json:"gatewayStatus"`
	FraudStatus      string               `json:"fraudStatus,omitempty"`
	Reason           string               `json:"reason,omitempty"`
	MatchedBy        string               `json:"matchedBy,omitempty"`
}

type Reconciler struct {
	Orders  OrderRepo
	History HistoryRepo
	Gateway StatusQuerier
	Logger  *slog.Logger

	ServerKey       string
	StrictSignature bool
	SweepWindow     time.Duration
	SweepDelay      time.Duration
	Now             func() time.Time
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Reconciler) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// HandleNotification processes one webhook body. signature is the x-signature header;
// when empty the body's signature_key is used.
func (r *Reconciler) HandleNotification(ctx context.Context, n midtrans.TransactionStatus, raw []byte, signature string) (*Result, error) {
	if strings.TrimSpace(n.OrderID) == "" {
		return nil, ErrBadRequest("order_id required")
	}
	if strings.TrimSpace(n.TransactionStatus) == "" {
		return nil, ErrBadRequest("transaction_status required")
	}
	if err := r.verify(n, signature); err != nil {
		return nil, err
	}

	o, how, err := r.match(ctx, n.OrderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		r.log().Warn("webhook for unknown order", "gateway_order_id", n.OrderID, "transaction_status", n.TransactionStatus)
		return nil, ErrNotFound("order")
	}
	r.recordPaymentLog(ctx, o, n, raw, domain.SourceWebhook)
	res, err := r.apply(ctx, o, n, domain.SourceWebhook)
	if res != nil {
		res.MatchedBy = how
	}
	return res, err
}

func (r *Reconciler) verify(n midtrans.TransactionStatus, header string) error {
	sig := strings.TrimSpace(header)
	if sig == "" {
		sig = strings.TrimSpace(n.SignatureKey)
	}
	if sig == "" || n.StatusCode == "" || n.GrossAmount == "" || r.ServerKey == "" {
		if r.StrictSignature {
			return ErrSignature("signature or signed fields missing")
		}
		r.log().Debug("webhook signature check skipped", "gateway_order_id", n.OrderID)
		return nil
	}
	if err := midtrans.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, r.ServerKey, sig); err != nil {
		return ErrSignature(err.Error())
	}
	return nil
}

// match locates the order for a gateway order id. A nil order with nil error
// means no strategy found one.
func (r *Reconciler) match(ctx context.Context, gatewayID string) (*domain.Order, string, error) {
	o, ok, err := r.Orders.FindByGatewayTransactionID(ctx, gatewayID)
	if err != nil {
		return nil, "", &PersistenceError{Op: "find by gateway id", Err: err}
	}
	if ok {
		return o, "gateway_transaction_id", nil
	}
	if _, perr := uuid.Parse(gatewayID); perr == nil {
		o, ok, err = r.Orders.GetOrder(ctx, gatewayID)
		if err != nil {
			return nil, "", &PersistenceError{Op: "get order", Err: err}
		}
		if ok {
			return o, "id", nil
		}
	}
	for _, cand := range orderNumberCandidates(gatewayID) {
		o, ok, err = r.Orders.FindByOrderNumber(ctx, cand)
		if err != nil {
			return nil, "", &PersistenceError{Op: "find by order number", Err: err}
		}
		if ok {
			return o, "order_number", nil
		}
	}

	prefix := orderNumberPrefix(gatewayID)
	if prefix == "" {
		return nil, "", nil
	}
	recent, err := r.Orders.FindRecentByOrderNumberPrefix(ctx, prefix, r.now().Add(-fuzzyWindow))
	if err != nil {
		return nil, "", &PersistenceError{Op: "fuzzy match", Err: err}
	}
	if len(recent) == 0 {
		return nil, "", nil
	}
	picked := recent[0]
	r.log().Warn("order matched by time-window fallback",
		"gateway_order_id", gatewayID,
		"prefix", prefix,
		"candidates", len(recent),
		"order_id", picked.ID,
		"order_number", picked.OrderNumber)
	return &picked, "fuzzy_prefix", nil
}

// orderNumberCandidates yields the raw id, then the id with a trailing
// "-<suffix>" segments removed one at a time.
func orderNumberCandidates(gatewayID string) []string {
	out := []string{gatewayID}
	s := gatewayID
	for {
		i := strings.LastIndexByte(s, '-')
		if i <= 0 {
			break
		}
		s = s[:i]
		out = append(out, s)
	}
	return out
}

// orderNumberPrefix is the LDR<YYYYMMDD> token shared by all orders of one day.
func orderNumberPrefix(gatewayID string) string {
	const n = len("LDR") + len("20060102")
	if !strings.HasPrefix(gatewayID, "LDR") || len(gatewayID) < n {
		return ""
	}
	for _, c := range gatewayID[3:n] {
		if c < '0' || c > '9' {
			return ""
		}
	}
	return gatewayID[:n]
}

// CheckOrder re-queries the gateway for one order and applies the result.
func (r *Reconciler) CheckOrder(ctx context.Context, orderID string) (*Result, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, ErrBadRequest("orderId required")
	}
	o, ok, err := r.Orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, &PersistenceError{Op: "get order", Err: err}
	}
	if !ok {
		return nil, ErrNotFound("order")
	}
	return r.check(ctx, o, domain.SourceManual)
}

func (r *Reconciler) check(ctx context.Context, o *domain.Order, source domain.HistorySource) (*Result, error) {
	gid := o.GatewayTransactionID
	if gid == "" {
		gid = o.OrderNumber
	}
	st, err := r.Gateway.Status(ctx, gid)
	if errors.Is(err, midtrans.ErrTransactionNotFound) {
		return nil, ErrNotFound("gateway transaction")
	}
	if err != nil {
		return nil, &UpstreamError{Op: "status", Err: err}
	}
	r.recordPaymentLog(ctx, o, st, nil, source)
	return r.apply(ctx, o, st, source)
}

// apply is the single persistence path for every trigger mode.
func (r *Reconciler) apply(ctx context.Context, o *domain.Order, st midtrans.TransactionStatus, source domain.HistorySource) (*Result, error) {
	m := MapStatus(st.TransactionStatus, st.FraudStatus)
	d := Decide(o, m)
	if d.Apply && d.PaymentStatus == domain.PaymentPaid {
		if err := st.CheckGrossAmount(o.TotalPrice); err != nil {
			d = Decision{Status: o.Status, PaymentStatus: o.PaymentStatus, Reason: reasonAmountReview}
			r.log().Warn("payment held for manual review",
				"order_id", o.ID, "transaction_status", st.TransactionStatus,
				"gross_amount", st.GrossAmount, "total_price", o.TotalPrice, "err", err)
		}
	}
	res := &Result{
		Order:            o,
		Outcome:          OutcomeUnchanged,
		OldStatus:        o.Status,
		NewStatus:        o.Status,
		OldPaymentStatus: o.PaymentStatus,
		NewPaymentStatus: o.PaymentStatus,
		GatewayStatus:    st.TransactionStatus,
		FraudStatus:      st.FraudStatus,
		Reason:           d.Reason,
	}
	if m.NeedsReview {
		r.log().Warn("payment held for manual review",
			"order_id", o.ID, "transaction_status", st.TransactionStatus, "fraud_status", st.FraudStatus)
	}
	if d.Reason == reasonTerminal && m.PaymentStatus == domain.PaymentPaid {
		r.log().Warn("payment received for terminal order, refund review required",
			"order_id", o.ID, "order_number", o.OrderNumber,
			"status", string(o.Status), "payment_status", string(o.PaymentStatus),
			"transaction_status", st.TransactionStatus)
	}
	if !d.Apply {
		r.markUnchanged(ctx, o, st, source, d.Reason)
		return res, nil
	}

	now := r.now()
	u := domain.StatusUpdate{
		OrderID:       o.ID,
		Status:        d.Status,
		PaymentStatus: d.PaymentStatus,
		Refs: domain.GatewayRefs{
			TransactionID: st.OrderID,
			PaymentType:   st.PaymentType,
			VANumber:      st.VA(),
			MaskedCard:    st.MaskedCard,
			FraudStatus:   st.FraudStatus,
		},
		UpdatedAt: now,
	}
	updated, ok, err := r.Orders.UpdateStatus(ctx, u, o.PaymentStatus)
	if err != nil {
		return nil, &PersistenceError{Op: "update order status", Err: err}
	}
	if !ok {
		// a concurrent delivery already moved the order
		cur, found, gerr := r.Orders.GetOrder(ctx, o.ID)
		if gerr == nil && found {
			res.Order = cur
			res.NewStatus = cur.Status
			res.NewPaymentStatus = cur.PaymentStatus
		}
		res.Reason = "concurrent update"
		return res, nil
	}

	res.Order = updated
	res.Outcome = OutcomeUpdated
	res.NewStatus = updated.Status
	res.NewPaymentStatus = updated.PaymentStatus
	res.Reason = ""

	h := &domain.StatusHistory{
		ID:               uuid.NewString(),
		OrderID:          o.ID,
		OldStatus:        o.Status,
		NewStatus:        updated.Status,
		OldPaymentStatus: o.PaymentStatus,
		NewPaymentStatus: updated.PaymentStatus,
		GatewayStatus:    st.TransactionStatus,
		Source:           source,
		Note:             transitionNote(st, source),
		CreatedAt:        now,
	}
	if err := r.History.AppendHistory(ctx, h); err != nil {
		r.log().Error("status history write failed", "order_id", o.ID, "err", err)
	}
	r.log().Info("order payment reconciled",
		"order_id", o.ID,
		"order_number", o.OrderNumber,
		"source", string(source),
		"old_status", string(o.Status),
		"new_status", string(updated.Status),
		"old_payment_status", string(o.PaymentStatus),
		"new_payment_status", string(updated.PaymentStatus))
	return res, nil
}

// markUnchanged writes at most one no-op marker per gateway status. A replay
// of the status recorded last adds nothing either.
func (r *Reconciler) markUnchanged(ctx context.Context, o *domain.Order, st midtrans.TransactionStatus, source domain.HistorySource, reason string) {
	hist, err := r.History.ListHistory(ctx, o.ID)
	if err != nil {
		r.log().Error("status history read failed", "order_id", o.ID, "err", err)
		return
	}
	for i, h := range hist {
		if h.GatewayStatus == st.TransactionStatus && (h.Unchanged || i == len(hist)-1) {
			return
		}
	}
	h := &domain.StatusHistory{
		ID:               uuid.NewString(),
		OrderID:          o.ID,
		OldStatus:        o.Status,
		NewStatus:        o.Status,
		OldPaymentStatus: o.PaymentStatus,
		NewPaymentStatus: o.PaymentStatus,
		GatewayStatus:    st.TransactionStatus,
		Source:           source,
		Note:             fmt.Sprintf("Status Midtrans %q tidak mengubah pesanan (%s)", st.TransactionStatus, reason),
		Unchanged:        true,
		CreatedAt:        r.now(),
	}
	if err := r.History.AppendHistory(ctx, h); err != nil {
		r.log().Error("status history write failed", "order_id", o.ID, "err", err)
	}
}

func (r *Reconciler) recordPaymentLog(ctx context.Context, o *domain.Order, st midtrans.TransactionStatus, raw []byte, source domain.HistorySource) {
	if len(raw) == 0 {
		raw, _ = json.Marshal(st)
	}
	l := &domain.PaymentLog{
		ID:                uuid.NewString(),
		OrderID:           o.ID,
		GatewayOrderID:    st.OrderID,
		TransactionStatus: st.TransactionStatus,
		FraudStatus:       st.FraudStatus,
		Source:            source,
		Payload:           json.RawMessage(raw),
		CreatedAt:         r.now(),
	}
	if err := r.History.AppendPaymentLog(ctx, l); err != nil {
		r.log().Error("payment log write failed", "gateway_order_id", st.OrderID, "err", err)
	}
}

func transitionNote(st midtrans.TransactionStatus, source domain.HistorySource) string {
	note := fmt.Sprintf("Status pembayaran diperbarui dari Midtrans: %s", st.TransactionStatus)
	if st.FraudStatus != "" {
		note += " (fraud: " + st.FraudStatus + ")"
	}
	return note + " via " + string(source)
}
