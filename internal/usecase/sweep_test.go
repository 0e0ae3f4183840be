package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laundry-backend/internal/domain"
	"laundry-backend/internal/infrastructure/repo"
)

func TestSweepIsolatesFailures(t *testing.T) {
	store := repo.NewMemoryRepo()
	paid := pendingOrder("paid", "LDR20260309AAAA", testNow.Add(-5*time.Hour))
	broken := pendingOrder("broken", "LDR20260309BBBB", testNow.Add(-4*time.Hour))
	panicky := pendingOrder("panicky", "LDR20260309CCCC", testNow.Add(-3*time.Hour))
	waiting := pendingOrder("waiting", "LDR20260309DDDD", testNow.Add(-2*time.Hour))
	unknown := pendingOrder("unknown", "LDR20260309EEEE", testNow.Add(-time.Hour))
	old := pendingOrder("old", "LDR20260301FFFF", testNow.Add(-72*time.Hour))
	for _, o := range []*domain.Order{paid, broken, panicky, waiting, unknown, old} {
		store.PutOrder(o)
	}

	gw := newFakeGateway()
	gw.statuses[paid.GatewayTransactionID] = notification(paid.GatewayTransactionID, "settlement", "accept")
	gw.errs[broken.GatewayTransactionID] = errors.New("midtrans error: 500 internal")
	gw.panics[panicky.GatewayTransactionID] = true
	gw.statuses[waiting.GatewayTransactionID] = notification(waiting.GatewayTransactionID, "pending", "")
	gw.statuses[old.GatewayTransactionID] = notification(old.GatewayTransactionID, "settlement", "")

	r, logs := newTestReconciler(store, gw)
	rep, err := r.Sweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, rep.Checked)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 2, rep.Errors)
	require.Len(t, rep.Results, 5)

	byID := map[string]SweepResult{}
	for _, res := range rep.Results {
		byID[res.OrderID] = res
	}
	assert.Equal(t, OutcomeUpdated, byID["paid"].Status)
	assert.Equal(t, domain.PaymentPaid, byID["paid"].NewPaymentStatus)
	assert.Equal(t, "settlement", byID["paid"].GatewayStatus)
	assert.Equal(t, OutcomeError, byID["broken"].Status)
	assert.Contains(t, byID["broken"].Message, "500")
	assert.Equal(t, OutcomeError, byID["panicky"].Status)
	assert.Contains(t, byID["panicky"].Message, "panic")
	assert.Equal(t, OutcomeUnchanged, byID["waiting"].Status)
	assert.Equal(t, OutcomeUnchanged, byID["unknown"].Status)
	assert.Equal(t, "no gateway transaction yet", byID["unknown"].Message)
	assert.NotContains(t, byID, "old")

	o, _, _ := store.GetOrder(context.Background(), "paid")
	assert.Equal(t, domain.PaymentPaid, o.PaymentStatus)
	o, _, _ = store.GetOrder(context.Background(), "old")
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)

	hist, _ := store.ListHistory(context.Background(), "paid")
	require.Len(t, hist, 1)
	assert.Equal(t, domain.SourceSweep, hist[0].Source)
	assert.Contains(t, logs.String(), "payment sweep finished")
}

func TestSweepProcessesOldestFirst(t *testing.T) {
	store := repo.NewMemoryRepo()
	store.PutOrder(pendingOrder("second", "LDR20260309BBBB", testNow.Add(-time.Hour)))
	store.PutOrder(pendingOrder("first", "LDR20260309AAAA", testNow.Add(-2*time.Hour)))
	gw := newFakeGateway()
	r, _ := newTestReconciler(store, gw)

	_, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"LDR20260309AAAA-1773049200", "LDR20260309BBBB-1773049200"}, gw.calls)
}

func TestSweepStopsOnCancel(t *testing.T) {
	store := repo.NewMemoryRepo()
	store.PutOrder(pendingOrder("a", "LDR20260309AAAA", testNow.Add(-2*time.Hour)))
	store.PutOrder(pendingOrder("b", "LDR20260309BBBB", testNow.Add(-time.Hour)))
	r, _ := newTestReconciler(store, newFakeGateway())
	r.SweepDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	rep, err := r.Sweep(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotNil(t, rep)
	assert.Equal(t, 1, rep.Checked)
}

func TestSweepEmpty(t *testing.T) {
	r, _ := newTestReconciler(repo.NewMemoryRepo(), newFakeGateway())
	rep, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Checked)
	assert.NotNil(t, rep.Results)
}
