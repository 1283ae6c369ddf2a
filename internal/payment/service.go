package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-settlement.git/internal/inventory"
	"github.com/ariefcatur/go-order-settlement.git/internal/notify"
	"github.com/ariefcatur/go-order-settlement.git/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
)

type Service struct {
	payments   Store
	orders     OrderStore
	ledger     inventory.Ledger
	gateways   map[Method]Gateway
	reconciler *Reconciler
	notifier   Notifier
	retryLimit int
	log        *zap.Logger
}

func NewService(payments Store, ordersStore OrderStore, ledger inventory.Ledger,
	gateways map[Method]Gateway, rec *Reconciler, notifier Notifier, retryLimit int, log *zap.Logger) *Service {
	return &Service{
		payments:   payments,
		orders:     ordersStore,
		ledger:     ledger,
		gateways:   gateways,
		reconciler: rec,
		notifier:   notifier,
		retryLimit: retryLimit,
		log:        log,
	}
}

// Initiate mulai satu attempt pembayaran. Satu attempt PENDING per order;
// retry setelah FAILED reserve ulang stok dulu. Lewat retry limit order
// di-cancel otomatis.
func (s *Service) Initiate(ctx context.Context, orderID string, method Method) (*Payment, *InitiateResult, error) {
	if !method.Valid() {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
	gw, ok := s.gateways[method]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.PaymentStatus == orders.PaymentCompleted {
		return nil, nil, ErrAlreadyPaid
	}
	if o.Status != orders.StatusPlaced {
		return nil, nil, fmt.Errorf("%w: cannot pay order in status %s", orders.ErrInvalidTransition, o.Status)
	}

	failed, err := s.payments.CountFailed(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if failed >= s.retryLimit {
		s.autoCancel(ctx, o)
		return nil, nil, ErrRetryLimitExceeded
	}

	// attempt sebelumnya yang FAILED sudah melepas stok
	lines := make([]inventory.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, inventory.Line{ProductID: it.ProductID, Qty: it.Qty})
	}
	if err := inventory.EnsureReserved(ctx, s.ledger, o.ID, lines); err != nil {
		return nil, nil, err
	}

	p := &Payment{
		ID:      uuid.NewString(),
		OrderID: o.ID,
		Amount:  o.Total,
		Status:  orders.PaymentPending,
		Method:  method,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, nil, err
	}

	res, err := gw.Initiate(ctx, o)
	if err != nil {
		s.failAttempt(ctx, p)
		return nil, nil, err
	}
	if err := s.payments.SetTransactionID(ctx, p.ID, res.TransactionID); err != nil {
		return nil, nil, err
	}
	p.TransactionID = res.TransactionID
	return p, res, nil
}

// failAttempt: gateway nolak sebelum attempt sempat hidup. Release stok
// supaya customer lain tidak nunggu TTL.
func (s *Service) failAttempt(ctx context.Context, p *Payment) {
	if err := s.payments.MarkFailed(ctx, p.ID); err != nil {
		s.log.Warn("mark payment failed", zap.String("payment_id", p.ID), zap.Error(err))
		return
	}
	if err := s.orders.SetPaymentStatus(ctx, p.OrderID, orders.PaymentFailed); err != nil {
		s.log.Warn("set order payment status", zap.String("order_id", p.OrderID), zap.Error(err))
	}
	if err := s.ledger.ReleaseOrder(ctx, p.OrderID); err != nil {
		s.log.Warn("release stock", zap.String("order_id", p.OrderID), zap.Error(err))
	}
}

func (s *Service) autoCancel(ctx context.Context, o *orders.Order) {
	if err := s.ledger.ReleaseOrder(ctx, o.ID); err != nil {
		s.log.Warn("release stock on auto-cancel", zap.String("order_id", o.ID), zap.Error(err))
	}
	ok, err := s.orders.TransitionStatus(ctx, o.ID, o.Status, orders.StatusCancelled)
	if err != nil {
		s.log.Warn("auto-cancel order", zap.String("order_id", o.ID), zap.Error(err))
		return
	}
	if ok {
		s.log.Info("order auto-cancelled after payment retry limit", zap.String("order_id", o.ID))
		s.notifier.Notify(ctx, notify.KindStatusChanged, o.ID, o.UserID)
	}
}

// HandleGatewayCallback menerima webhook Stripe. Event yang tidak kita
// pedulikan di-ack saja supaya provider berhenti kirim ulang.
func (s *Service) HandleGatewayCallback(ctx context.Context, body []byte) (*Result, error) {
	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}

	var outcome Outcome
	switch event.Type {
	case "payment_intent.succeeded":
		outcome = OutcomeCompleted
	case "payment_intent.payment_failed", "payment_intent.canceled":
		outcome = OutcomeFailed
	default:
		return &Result{Reason: ReasonNotTerminal}, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	return s.reconciler.ApplyEvent(ctx, pi.ID, outcome)
}

// SettleCOD: staff konfirmasi uang diterima. Confirmation code = txID,
// settle lewat jalur reconciler yang sama dengan webhook.
func (s *Service) SettleCOD(ctx context.Context, confirmationCode string) (*Result, error) {
	p, err := s.payments.GetByTransactionID(ctx, confirmationCode)
	if err != nil {
		return nil, err
	}
	if p.Method != MethodCOD {
		return nil, fmt.Errorf("%w: not a COD payment", ErrUnsupportedMethod)
	}
	return s.reconciler.ApplyEvent(ctx, confirmationCode, OutcomeCompleted)
}

// Verify tanya gateway langsung, untuk webhook yang hilang.
func (s *Service) Verify(ctx context.Context, txID string) (*Result, error) {
	p, err := s.payments.GetByTransactionID(ctx, txID)
	if err != nil {
		return nil, err
	}
	gw, ok := s.gateways[p.Method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, p.Method)
	}
	outcome, err := gw.Verify(ctx, txID)
	if err != nil {
		return nil, err
	}
	return s.reconciler.ApplyEvent(ctx, txID, outcome)
}

// ---- orders.PaymentPort ----

func (s *Service) LatestCompleted(ctx context.Context, orderID string) (string, decimal.Decimal, bool, error) {
	p, err := s.payments.LatestCompleted(ctx, orderID)
	if errors.Is(err, ErrPaymentNotFound) {
		return "", decimal.Zero, false, nil
	}
	if err != nil {
		return "", decimal.Zero, false, err
	}
	return p.TransactionID, p.Amount, true, nil
}

func (s *Service) Refund(ctx context.Context, txID string, amount decimal.Decimal) error {
	p, err := s.payments.GetByTransactionID(ctx, txID)
	if err != nil {
		return err
	}
	gw, ok := s.gateways[p.Method]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedMethod, p.Method)
	}
	return gw.Refund(ctx, txID, amount)
}

func (s *Service) MarkRefunded(ctx context.Context, txID string) error {
	ok, err := s.payments.MarkRefunded(ctx, txID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s not COMPLETED", ErrPaymentNotFound, txID)
	}
	return nil
}

func (s *Service) FailPending(ctx context.Context, orderID string) (int, error) {
	return s.payments.FailPendingByOrder(ctx, orderID)
}
