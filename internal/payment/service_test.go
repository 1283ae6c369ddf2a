package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/ariefcatur/go-order-settlement.git/internal/inventory"
	"github.com/ariefcatur/go-order-settlement.git/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeGateway menggantikan Stripe di test; hasil bisa diatur per skenario.
type fakeGateway struct {
	initiateErr error
	verify      Outcome
	refundErr   error
	initiated   int
}

func (g *fakeGateway) Initiate(_ context.Context, o *orders.Order) (*InitiateResult, error) {
	if g.initiateErr != nil {
		return nil, g.initiateErr
	}
	g.initiated++
	return &InitiateResult{
		TransactionID: fmt.Sprintf("pi_%s_%d", o.ID, g.initiated),
		ClientToken:   "secret",
	}, nil
}

func (g *fakeGateway) Verify(_ context.Context, _ string) (Outcome, error) {
	if g.verify == "" {
		return OutcomePending, nil
	}
	return g.verify, nil
}

func (g *fakeGateway) Refund(_ context.Context, _ string, _ decimal.Decimal) error {
	return g.refundErr
}

type svcFixture struct {
	svc      *Service
	payments *memPayments
	orders   *memOrders
	ledger   *inventory.MemLedger
	card     *fakeGateway
	notifier *recNotifier
}

func newSvcFixture(t *testing.T, retryLimit int) *svcFixture {
	t.Helper()
	payments := newMemPayments()
	ordersStore := newMemOrders()
	ledger := inventory.NewMemLedger(time.Minute)
	notifier := &recNotifier{}
	card := &fakeGateway{}
	rec := &Reconciler{
		Payments: payments,
		Orders:   ordersStore,
		Ledger:   ledger,
		Notifier: notifier,
		Log:      zap.NewNop(),
	}
	gateways := map[Method]Gateway{
		MethodCard: card,
		MethodCOD:  CODGateway{},
	}
	svc := NewService(payments, ordersStore, ledger, gateways, rec, notifier, retryLimit, zap.NewNop())
	return &svcFixture{svc: svc, payments: payments, orders: ordersStore, ledger: ledger, card: card, notifier: notifier}
}

func (f *svcFixture) seedOrder(t *testing.T, orderID string) {
	t.Helper()
	f.orders.put(&orders.Order{
		ID:            orderID,
		UserID:        "user-1",
		Status:        orders.StatusPlaced,
		PaymentStatus: orders.PaymentPending,
		Total:         amount("25.00"),
		Items: []orders.OrderItem{
			{OrderID: orderID, ProductID: "prod-a", Qty: 2, UnitPrice: amount("10.00")},
			{OrderID: orderID, ProductID: "prod-b", Qty: 1, UnitPrice: amount("5.00")},
		},
	})
	f.ledger.SetStock("prod-a", 5)
	f.ledger.SetStock("prod-b", 1)
	require.NoError(t, inventory.EnsureReserved(context.Background(), f.ledger, orderID, []inventory.Line{
		{ProductID: "prod-a", Qty: 2},
		{ProductID: "prod-b", Qty: 1},
	}))
}

func TestInitiateCard(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 3)
	f.seedOrder(t, "order-1")

	p, res, err := f.svc.Initiate(ctx, "order-1", MethodCard)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPending, p.Status)
	assert.True(t, p.Amount.Equal(amount("25.00")))
	assert.NotEmpty(t, res.TransactionID)
	assert.Equal(t, "secret", res.ClientToken)
	assert.Equal(t, res.TransactionID, p.TransactionID)
}

func TestInitiateCOD(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 3)
	f.seedOrder(t, "order-1")

	p, res, err := f.svc.Initiate(ctx, "order-1", MethodCOD)
	require.NoError(t, err)
	// COD tetap PENDING sampai staff konfirmasi
	assert.Equal(t, orders.PaymentPending, p.Status)
	assert.NotEmpty(t, res.ConfirmationCode)
	assert.Equal(t, res.ConfirmationCode, res.TransactionID)

	o, err := f.orders.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPlaced, o.Status)
}

func TestSettleCOD(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 3)
	f.seedOrder(t, "order-1")

	_, res, err := f.svc.Initiate(ctx, "order-1", MethodCOD)
	require.NoError(t, err)

	settle, err := f.svc.SettleCOD(ctx, res.ConfirmationCode)
	require.NoError(t, err)
	assert.True(t, settle.Applied)

	o, err := f.orders.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessed, o.Status)
	assert.Equal(t, orders.PaymentCompleted, o.PaymentStatus)

	// konfirmasi dobel dari staff lain di-ignore
	settle, err = f.svc.SettleCOD(ctx, res.ConfirmationCode)
	require.NoError(t, err)
	assert.False(t, settle.Applied)
	assert.Equal(t, ReasonAlreadySettled, settle.Reason)
}

func TestSettleCODRejectsCardPayment(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 3)
	f.seedOrder(t, "order-1")

	_, res, err := f.svc.Initiate(ctx, "order-1", MethodCard)
	require.NoError(t, err)

	_, err = f.svc.SettleCOD(ctx, res.TransactionID)
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestInitiateSecondAttemptWhilePending(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 3)
	f.seedOrder(t, "order-1")

	_, _, err := f.svc.Initiate(ctx, "order-1", MethodCard)
	require.NoError(t, err)

	_, _, err = f.svc.Initiate(ctx, "order-1", MethodCard)
	assert.ErrorIs(t, err, ErrPaymentInFlight)
}

func TestInitiateGatewayRejected(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 3)
	f.seedOrder(t, "order-1")
	f.card.initiateErr = fmt.Errorf("%w: card declined", ErrGatewayRejected)

	_, _, err := f.svc.Initiate(ctx, "order-1", MethodCard)
	require.ErrorIs(t, err, ErrGatewayRejected)

	// attempt FAILED & stok balik
	o, err := f.orders.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentFailed, o.PaymentStatus)
	assert.Equal(t, 5, f.ledger.Stock("prod-a"))
	assert.Equal(t, 1, f.ledger.Stock("prod-b"))
}

func TestInitiateRetryReservesAgain(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 3)
	f.seedOrder(t, "order-1")
	f.card.initiateErr = fmt.Errorf("%w: card declined", ErrGatewayRejected)

	_, _, err := f.svc.Initiate(ctx, "order-1", MethodCard)
	require.ErrorIs(t, err, ErrGatewayRejected)
	assert.Equal(t, 5, f.ledger.Stock("prod-a"))

	// retry sukses: stok direserve ulang
	f.card.initiateErr = nil
	p, _, err := f.svc.Initiate(ctx, "order-1", MethodCard)
	require.NoError(t, err)
	assert.Equal(t, orders.PaymentPending, p.Status)
	assert.Equal(t, 3, f.ledger.Stock("prod-a"))
}

func TestInitiateRetryLimitAutoCancels(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 2)
	f.seedOrder(t, "order-1")
	f.card.initiateErr = fmt.Errorf("%w: card declined", ErrGatewayRejected)

	for i := 0; i < 2; i++ {
		_, _, err := f.svc.Initiate(ctx, "order-1", MethodCard)
		require.ErrorIs(t, err, ErrGatewayRejected)
	}

	_, _, err := f.svc.Initiate(ctx, "order-1", MethodCard)
	require.ErrorIs(t, err, ErrRetryLimitExceeded)

	o, err := f.orders.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, o.Status)
}

func TestInitiateAlreadyPaid(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 3)
	f.seedOrder(t, "order-1")
	require.NoError(t, f.orders.SetPaymentStatus(ctx, "order-1", orders.PaymentCompleted))

	_, _, err := f.svc.Initiate(ctx, "order-1", MethodCard)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestInitiateUnsupportedMethod(t *testing.T) {
	f := newSvcFixture(t, 3)
	_, _, err := f.svc.Initiate(context.Background(), "order-1", Method("WIRE"))
	assert.ErrorIs(t, err, ErrUnsupportedMethod)
}

func webhookBody(t *testing.T, eventType, txID string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"id": txID})
	require.NoError(t, err)
	b, err := json.Marshal(map[string]any{
		"type": eventType,
		"data": map[string]any{"object": json.RawMessage(raw)},
	})
	require.NoError(t, err)
	return b
}

func TestHandleGatewayCallback(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 3)
	f.seedOrder(t, "order-1")

	_, res, err := f.svc.Initiate(ctx, "order-1", MethodCard)
	require.NoError(t, err)

	out, err := f.svc.HandleGatewayCallback(ctx, webhookBody(t, "payment_intent.succeeded", res.TransactionID))
	require.NoError(t, err)
	assert.True(t, out.Applied)

	o, err := f.orders.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessed, o.Status)

	// provider retry: delivery kedua dianggap duplikat
	out, err = f.svc.HandleGatewayCallback(ctx, webhookBody(t, "payment_intent.succeeded", res.TransactionID))
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, ReasonAlreadySettled, out.Reason)
}

func TestHandleGatewayCallbackIgnoresOtherEvents(t *testing.T) {
	f := newSvcFixture(t, 3)
	out, err := f.svc.HandleGatewayCallback(context.Background(), webhookBody(t, "charge.updated", "ch_1"))
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, ReasonNotTerminal, out.Reason)
}

func TestVerifySettlesMissedWebhook(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 3)
	f.seedOrder(t, "order-1")

	_, res, err := f.svc.Initiate(ctx, "order-1", MethodCard)
	require.NoError(t, err)

	f.card.verify = OutcomeCompleted
	out, err := f.svc.Verify(ctx, res.TransactionID)
	require.NoError(t, err)
	assert.True(t, out.Applied)

	o, err := f.orders.Get(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusProcessed, o.Status)
}

func TestPaymentPortRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newSvcFixture(t, 3)
	f.seedOrder(t, "order-1")

	_, res, err := f.svc.Initiate(ctx, "order-1", MethodCard)
	require.NoError(t, err)
	_, err = f.svc.HandleGatewayCallback(ctx, webhookBody(t, "payment_intent.succeeded", res.TransactionID))
	require.NoError(t, err)

	txID, amt, ok, err := f.svc.LatestCompleted(ctx, "order-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, res.TransactionID, txID)
	assert.True(t, amt.Equal(amount("25.00")))

	require.NoError(t, f.svc.Refund(ctx, txID, amt))
	require.NoError(t, f.svc.MarkRefunded(ctx, txID))

	// sudah REFUNDED, tidak muncul lagi sebagai completed
	_, _, ok, err = f.svc.LatestCompleted(ctx, "order-1")
	require.NoError(t, err)
	assert.False(t, ok)
}
