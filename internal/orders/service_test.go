package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-settlement.git/internal/inventory"
	"github.com/ariefcatur/go-order-settlement.git/internal/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memStore struct {
	mu         sync.Mutex
	orders     map[string]*Order
	bySnapshot map[string]string
	deliveries map[string]*DeliveryAssignment
	active     map[string]bool

	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		orders:     map[string]*Order{},
		bySnapshot: map[string]string{},
		deliveries: map[string]*DeliveryAssignment{},
		active:     map[string]bool{},
	}
}

func (s *memStore) CreateOrder(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *o
	s.orders[o.ID] = &cp
	s.bySnapshot[o.SnapshotID] = o.ID
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) FindBySnapshot(_ context.Context, snapshotID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.bySnapshot[snapshotID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.orders[id]
	return &cp, nil
}

func (s *memStore) ByUser(_ context.Context, userID string) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *memStore) All(_ context.Context) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (s *memStore) TransitionStatus(_ context.Context, id string, from, to Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (s *memStore) SetPaymentStatus(_ context.Context, id string, to PaymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.PaymentStatus = to
	return nil
}

func (s *memStore) Purchasable(_ context.Context, productIDs []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string]bool{}
	for _, id := range productIDs {
		if a, ok := s.active[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (s *memStore) CreateDelivery(_ context.Context, d *DeliveryAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.deliveries[d.OrderID] = &cp
	return nil
}

func (s *memStore) GetDelivery(_ context.Context, orderID string) (*DeliveryAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliveries[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) TransitionDelivery(_ context.Context, id string, from, to DeliveryStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.deliveries {
		if d.ID == id && d.Status == from {
			d.Status = to
			return true, nil
		}
	}
	return false, nil
}

type fakePayments struct {
	completedTx     string
	completedAmount decimal.Decimal

	refundErr    error
	refunded     []string
	markedTx     []string
	failedOrders []string
}

func (f *fakePayments) LatestCompleted(_ context.Context, _ string) (string, decimal.Decimal, bool, error) {
	if f.completedTx == "" {
		return "", decimal.Zero, false, nil
	}
	return f.completedTx, f.completedAmount, true, nil
}

func (f *fakePayments) Refund(_ context.Context, txID string, _ decimal.Decimal) error {
	if f.refundErr != nil {
		return f.refundErr
	}
	f.refunded = append(f.refunded, txID)
	return nil
}

func (f *fakePayments) MarkRefunded(_ context.Context, txID string) error {
	f.markedTx = append(f.markedTx, txID)
	return nil
}

func (f *fakePayments) FailPending(_ context.Context, orderID string) (int, error) {
	f.failedOrders = append(f.failedOrders, orderID)
	return 1, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (f *fakeNotifier) Notify(_ context.Context, kind notify.Kind, _, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
}

func testCart() CartSnapshot {
	return CartSnapshot{
		SnapshotID: "snap-1",
		UserID:     "user-1",
		Lines: []CartLine{
			{ProductID: "prod-a", Qty: 2, UnitPrice: price("10.00")},
			{ProductID: "prod-b", Qty: 1, UnitPrice: price("5.00")},
		},
	}
}

func setup() (*Service, *memStore, *inventory.MemLedger, *fakePayments, *fakeNotifier) {
	store := newMemStore()
	store.active["prod-a"] = true
	store.active["prod-b"] = true
	ledger := inventory.NewMemLedger(time.Minute)
	ledger.SetStock("prod-a", 5)
	ledger.SetStock("prod-b", 1)
	payments := &fakePayments{}
	notifier := &fakeNotifier{}
	svc := NewService(store, ledger, payments, notifier, zap.NewNop())
	return svc, store, ledger, payments, notifier
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, ledger, _, notifier := setup()

	o, err := svc.PlaceOrder(ctx, testCart())
	require.NoError(t, err)

	assert.Equal(t, StatusPlaced, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.True(t, o.Total.Equal(price("25.00")), "got %s", o.Total)
	assert.Len(t, o.Items, 2)

	assert.Equal(t, 3, ledger.Stock("prod-a"))
	assert.Equal(t, 0, ledger.Stock("prod-b"))
	assert.Equal(t, []notify.Kind{notify.KindOrderPlaced}, notifier.kinds)
}

func TestPlaceOrderIdempotentBySnapshot(t *testing.T) {
	ctx := context.Background()
	svc, _, ledger, _, _ := setup()

	first, err := svc.PlaceOrder(ctx, testCart())
	require.NoError(t, err)

	second, err := svc.PlaceOrder(ctx, testCart())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// stok cuma terpotong sekali
	assert.Equal(t, 3, ledger.Stock("prod-a"))
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _ := setup()

	cart := testCart()
	cart.Lines = append(cart.Lines, CartLine{ProductID: "ghost", Qty: 1, UnitPrice: price("1.00")})
	_, err := svc.PlaceOrder(ctx, cart)
	assert.ErrorIs(t, err, ErrInvalidCart)
}

func TestPlaceOrderInactiveProduct(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _, _ := setup()
	store.active["prod-a"] = false

	_, err := svc.PlaceOrder(ctx, testCart())
	assert.ErrorIs(t, err, ErrInvalidCart)
}

func TestPlaceOrderInsufficientStockSecondOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, ledger, _, _ := setup()

	_, err := svc.PlaceOrder(ctx, testCart())
	require.NoError(t, err)

	// prod-b habis, order kedua gagal total & tidak nahan stok prod-a
	cart := testCart()
	cart.SnapshotID = "snap-2"
	_, err = svc.PlaceOrder(ctx, cart)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, 3, ledger.Stock("prod-a"))
}

func TestPlaceOrderStoreFailureReleasesStock(t *testing.T) {
	ctx := context.Background()
	svc, store, ledger, _, _ := setup()
	store.createErr = errors.New("db down")

	_, err := svc.PlaceOrder(ctx, testCart())
	require.Error(t, err)
	assert.Equal(t, 5, ledger.Stock("prod-a"))
	assert.Equal(t, 1, ledger.Stock("prod-b"))
}

func TestListAllSpansUsers(t *testing.T) {
	ctx := context.Background()
	svc, store, ledger, _, _ := setup()
	ledger.SetStock("prod-a", 10)
	ledger.SetStock("prod-b", 10)
	store.active["prod-a"] = true
	store.active["prod-b"] = true

	_, err := svc.PlaceOrder(ctx, testCart())
	require.NoError(t, err)

	other := testCart()
	other.SnapshotID = "snap-2"
	other.UserID = "user-2"
	_, err = svc.PlaceOrder(ctx, other)
	require.NoError(t, err)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := svc.ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestUpdateStatusRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _, _ := setup()

	o, err := svc.PlaceOrder(ctx, testCart())
	require.NoError(t, err)

	// PLACED tidak boleh langsung SHIPPED
	_, err = svc.UpdateStatus(ctx, o.ID, StatusShipped)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelUnpaidOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, ledger, payments, notifier := setup()

	o, err := svc.PlaceOrder(ctx, testCart())
	require.NoError(t, err)

	got, err := svc.Cancel(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, PaymentFailed, got.PaymentStatus)

	// PENDING di-fail duluan supaya webhook telat kalah
	assert.Equal(t, []string{o.ID}, payments.failedOrders)
	assert.Equal(t, 5, ledger.Stock("prod-a"))
	assert.Equal(t, 1, ledger.Stock("prod-b"))
	assert.Contains(t, notifier.kinds, notify.KindStatusChanged)
}

func TestCancelPaidOrderRefunds(t *testing.T) {
	ctx := context.Background()
	svc, store, _, payments, _ := setup()

	o, err := svc.PlaceOrder(ctx, testCart())
	require.NoError(t, err)

	store.orders[o.ID].Status = StatusProcessed
	store.orders[o.ID].PaymentStatus = PaymentCompleted
	payments.completedTx = "pi_123"
	payments.completedAmount = price("25.00")

	got, err := svc.Cancel(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, PaymentRefunded, got.PaymentStatus)
	assert.Equal(t, []string{"pi_123"}, payments.refunded)
	assert.Equal(t, []string{"pi_123"}, payments.markedTx)
}

func TestCancelBlockedWhenRefundFails(t *testing.T) {
	ctx := context.Background()
	svc, store, _, payments, _ := setup()

	o, err := svc.PlaceOrder(ctx, testCart())
	require.NoError(t, err)

	store.orders[o.ID].Status = StatusProcessed
	store.orders[o.ID].PaymentStatus = PaymentCompleted
	payments.completedTx = "pi_123"
	payments.refundErr = errors.New("gateway timeout")

	_, err = svc.Cancel(ctx, o.ID)
	require.ErrorIs(t, err, ErrRefundFailed)

	// order tidak berubah
	cur, err := svc.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessed, cur.Status)
	assert.Equal(t, PaymentCompleted, cur.PaymentStatus)
}

func TestCancelShippedRejected(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _, _ := setup()

	o, err := svc.PlaceOrder(ctx, testCart())
	require.NoError(t, err)
	store.orders[o.ID].Status = StatusShipped

	_, err = svc.Cancel(ctx, o.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestDeliveryLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _, _ := setup()

	o, err := svc.PlaceOrder(ctx, testCart())
	require.NoError(t, err)

	// belum dibayar, belum boleh assign kurir
	_, err = svc.AssignDelivery(ctx, o.ID, "staff-1")
	require.ErrorIs(t, err, ErrInvalidTransition)

	store.orders[o.ID].Status = StatusProcessed
	d, err := svc.AssignDelivery(ctx, o.ID, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, DeliveryAssigned, d.Status)

	d, err = svc.UpdateDelivery(ctx, o.ID, DeliveryInTransit)
	require.NoError(t, err)
	assert.Equal(t, DeliveryInTransit, d.Status)

	// ASSIGNED lagi tidak valid
	_, err = svc.UpdateDelivery(ctx, o.ID, DeliveryAssigned)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	d, err = svc.UpdateDelivery(ctx, o.ID, DeliveryDelivered)
	require.NoError(t, err)
	assert.Equal(t, DeliveryDelivered, d.Status)
}
