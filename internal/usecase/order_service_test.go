package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laundry-backend/internal/domain"
	"laundry-backend/internal/infrastructure/repo"
)

func newOrderService(store *repo.MemoryRepo) *OrderService {
	return &OrderService{
		Orders:      store,
		History:     store,
		Catalog:     store,
		PickupFee:   10000,
		DeliveryFee: 5000,
		Now:         func() time.Time { return testNow },
	}
}

func baseInput() CreateOrderInput {
	return CreateOrderInput{
		ServiceTypeID: "cuci-kering",
		WeightKg:      3.5,
		PickupDate:    testNow.Add(24 * time.Hour),
		PickupTime:    "09:00-11:00",
		PickupAddress: "Jl. Merdeka 1",
		CustomerName:  "Budi",
		CustomerPhone: "08123456789",
	}
}

func TestOrderServiceCreateKiloan(t *testing.T) {
	store := repo.NewMemoryRepo()
	s := newOrderService(store)

	o, err := s.Create(context.Background(), baseInput())
	require.NoError(t, err)
	assert.Regexp(t, `^LDR20260309[0-9A-Z]{4}$`, o.OrderNumber)
	assert.Equal(t, int64(24500), o.ServicePrice)
	assert.Equal(t, int64(39500), o.TotalPrice)
	assert.Equal(t, domain.OrderPending, o.Status)
	assert.Equal(t, domain.PaymentPending, o.PaymentStatus)
	assert.Equal(t, "Jl. Merdeka 1", o.DeliveryAddress)
	assert.Equal(t, o.TotalPrice, domain.SumItemDetails(o.ItemDetails()))

	hist, err := s.StatusHistory(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, domain.SourceCreate, hist[0].Source)
}

func TestOrderServiceCreateSatuan(t *testing.T) {
	store := repo.NewMemoryRepo()
	s := newOrderService(store)
	in := baseInput()
	in.ServiceTypeID = "satuan"
	in.WeightKg = 0
	in.Items = []ItemInput{{ItemTypeID: "kemeja", Quantity: 3}, {ItemTypeID: "jas", Quantity: 1}}

	o, err := s.Create(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, int64(49000), o.ServicePrice)
	assert.Equal(t, int64(64000), o.TotalPrice)

	stored, err := s.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kemeja", stored.Items[0].ItemTypeName)
}

func TestOrderServiceCreateValidation(t *testing.T) {
	cases := map[string]func(*CreateOrderInput){
		"missing service":  func(in *CreateOrderInput) { in.ServiceTypeID = "" },
		"unknown service":  func(in *CreateOrderInput) { in.ServiceTypeID = "dry-clean" },
		"missing phone":    func(in *CreateOrderInput) { in.CustomerPhone = " " },
		"missing address":  func(in *CreateOrderInput) { in.PickupAddress = "" },
		"zero weight":      func(in *CreateOrderInput) { in.WeightKg = 0 },
		"too heavy":        func(in *CreateOrderInput) { in.WeightKg = 150 },
		"missing pickup":   func(in *CreateOrderInput) { in.PickupDate = time.Time{} },
		"delivery earlier": func(in *CreateOrderInput) { d := in.PickupDate.Add(-time.Hour); in.DeliveryDate = &d },
		"satuan no items":  func(in *CreateOrderInput) { in.ServiceTypeID = "satuan" },
		"bad item": func(in *CreateOrderInput) {
			in.ServiceTypeID = "satuan"
			in.Items = []ItemInput{{ItemTypeID: "tas", Quantity: 1}}
		},
		"zero quantity": func(in *CreateOrderInput) {
			in.ServiceTypeID = "satuan"
			in.Items = []ItemInput{{ItemTypeID: "kemeja", Quantity: 0}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			store := repo.NewMemoryRepo()
			in := baseInput()
			mutate(&in)
			_, err := newOrderService(store).Create(context.Background(), in)
			var br ErrBadRequest
			assert.ErrorAs(t, err, &br)
			all, total, _ := store.ListOrders(context.Background(), 1, 10)
			assert.Zero(t, total)
			assert.Empty(t, all)
		})
	}
}

func TestOrderServiceList(t *testing.T) {
	store := repo.NewMemoryRepo()
	s := newOrderService(store)
	for i := 0; i < 3; i++ {
		_, err := s.Create(context.Background(), baseInput())
		require.NoError(t, err)
	}
	out, total, err := s.List(context.Background(), 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, out, 3)
}

func TestOrderServiceCancel(t *testing.T) {
	t.Run("unpaid order cancelled at once", func(t *testing.T) {
		store := repo.NewMemoryRepo()
		s := newOrderService(store)
		o, err := s.Create(context.Background(), baseInput())
		require.NoError(t, err)

		got, err := s.Cancel(context.Background(), o.ID, "salah alamat")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderCancelled, got.Status)
		assert.Equal(t, domain.PaymentCancelled, got.PaymentStatus)

		hist, _ := s.StatusHistory(context.Background(), o.ID)
		require.Len(t, hist, 2)
		assert.Equal(t, "Dibatalkan oleh pelanggan: salah alamat", hist[1].Note)
		assert.False(t, got.CanPay(testNow))
	})

	t.Run("paid order waits for refund", func(t *testing.T) {
		store := repo.NewMemoryRepo()
		o := pendingOrder("o1", testOrderNumber, testNow)
		o.Status = domain.OrderConfirmed
		o.PaymentStatus = domain.PaymentPaid
		store.PutOrder(o)

		got, err := newOrderService(store).Cancel(context.Background(), "o1", "")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderPendingCancellation, got.Status)
		assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)
	})

	t.Run("picked up order refused", func(t *testing.T) {
		store := repo.NewMemoryRepo()
		o := pendingOrder("o1", testOrderNumber, testNow)
		o.Status = domain.OrderPickedUp
		o.PaymentStatus = domain.PaymentPaid
		store.PutOrder(o)

		_, err := newOrderService(store).Cancel(context.Background(), "o1", "")
		var ce ErrConflict
		assert.ErrorAs(t, err, &ce)
	})

	t.Run("missing order", func(t *testing.T) {
		_, err := newOrderService(repo.NewMemoryRepo()).Cancel(context.Background(), "nope", "")
		var nf ErrNotFound
		assert.ErrorAs(t, err, &nf)
	})
}

func TestOrderServiceListCatalogHidesInactive(t *testing.T) {
	store := repo.NewMemoryRepo()
	store.PutItemType(domain.ItemType{ID: "karpet", Name: "Karpet", Price: 50000, Active: false})

	cat, err := newOrderService(store).ListCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, cat.ServiceTypes, len(repo.DefaultServiceTypes()))
	assert.Len(t, cat.ItemTypes, len(repo.DefaultItemTypes()))
	for _, it := range cat.ItemTypes {
		assert.NotEqual(t, "karpet", it.ID)
	}
}
