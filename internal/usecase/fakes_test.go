package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"laundry-backend/internal/domain"
	"laundry-backend/internal/infrastructure/midtrans"
	"laundry-backend/internal/infrastructure/repo"
)

const testServerKey = "SB-Mid-server-TEST"

var testNow = time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu       sync.Mutex
	statuses map[string]midtrans.TransactionStatus
	errs     map[string]error
	panics   map[string]bool
	calls    []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		statuses: map[string]midtrans.TransactionStatus{},
		errs:     map[string]error{},
		panics:   map[string]bool{},
	}
}

func (g *fakeGateway) Status(_ context.Context, id string) (midtrans.TransactionStatus, error) {
	g.mu.Lock()
	g.calls = append(g.calls, id)
	st, ok := g.statuses[id]
	err := g.errs[id]
	p := g.panics[id]
	g.mu.Unlock()
	if p {
		panic("gateway exploded")
	}
	if err != nil {
		return midtrans.TransactionStatus{}, err
	}
	if !ok {
		return midtrans.TransactionStatus{}, midtrans.ErrTransactionNotFound
	}
	return st, nil
}

type fakeSnap struct {
	last  midtrans.SnapRequest
	calls int
	err   error
}

func (f *fakeSnap) CreateSnap(_ context.Context, req midtrans.SnapRequest) (midtrans.SnapResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return midtrans.SnapResponse{}, f.err
	}
	return midtrans.SnapResponse{Token: "snap-token", RedirectURL: "https://app.sandbox.midtrans.com/snap/v2/vtweb/snap-token"}, nil
}

// failingOrders fails status writes.
type failingOrders struct {
	*repo.MemoryRepo
}

func (f failingOrders) UpdateStatus(context.Context, domain.StatusUpdate, domain.PaymentStatus) (*domain.Order, bool, error) {
	return nil, false, errors.New("connection reset")
}

// failingHistory fails every audit write.
type failingHistory struct {
	*repo.MemoryRepo
}

func (failingHistory) AppendHistory(context.Context, *domain.StatusHistory) error {
	return errors.New("disk full")
}

func (failingHistory) AppendPaymentLog(context.Context, *domain.PaymentLog) error {
	return errors.New("disk full")
}

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func pendingOrder(id, number string, created time.Time) *domain.Order {
	return &domain.Order{
		ID:                   id,
		OrderNumber:          number,
		ServiceTypeID:        "cuci-kering",
		ServiceTypeName:      "Cuci Kering",
		ServiceKind:          domain.ServiceKiloan,
		WeightKg:             3.5,
		ServicePrice:         24500,
		PickupFee:            10000,
		DeliveryFee:          10000,
		TotalPrice:           44500,
		PickupDate:           created,
		PickupAddress:        "Jl. Merdeka 1",
		CustomerName:         "Budi",
		CustomerPhone:        "08123456789",
		Status:               domain.OrderPending,
		PaymentStatus:        domain.PaymentPending,
		GatewayTransactionID: number + "-1773049200",
		CreatedAt:            created,
		UpdatedAt:            created,
	}
}

func notification(gatewayID, status, fraud string) midtrans.TransactionStatus {
	n := midtrans.TransactionStatus{
		OrderID:           gatewayID,
		TransactionID:     "9aed5972-5b6a-401e-894b-a32c91ed1a3a",
		TransactionStatus: status,
		FraudStatus:       fraud,
		PaymentType:       "bank_transfer",
		GrossAmount:       "44500.00",
		StatusCode:        "200",
		VANumbers:         []midtrans.VANumber{{Bank: "bca", VANumber: "12345678901"}},
	}
	n.SignatureKey = midtrans.SignatureKey(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)
	return n
}

func newTestReconciler(store *repo.MemoryRepo, gw StatusQuerier) (*Reconciler, *bytes.Buffer) {
	log, buf := testLogger()
	return &Reconciler{
		Orders:    store,
		History:   store,
		Gateway:   gw,
		Logger:    log,
		ServerKey: testServerKey,
		Now:       func() time.Time { return testNow },
	}, buf
}
