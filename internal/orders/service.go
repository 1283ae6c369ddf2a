package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-order-settlement.git/internal/inventory"
	"github.com/ariefcatur/go-order-settlement.git/internal/notify"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentPort: yang dibutuhkan Service dari sisi payment. Implementasinya
// di package payment, interface-nya di sini supaya tidak ada import cycle.
type PaymentPort interface {
	// LatestCompleted return payment COMPLETED terakhir kalau ada.
	LatestCompleted(ctx context.Context, orderID string) (txID string, amount decimal.Decimal, ok bool, err error)
	Refund(ctx context.Context, txID string, amount decimal.Decimal) error
	MarkRefunded(ctx context.Context, txID string) error
	// FailPending settle semua payment PENDING milik order ke FAILED.
	// Webhook yang datang telat akan kalah CAS dan di-ignore.
	FailPending(ctx context.Context, orderID string) (int, error)
}

type Notifier interface {
	Notify(ctx context.Context, kind notify.Kind, orderID, userID string)
}

type Service struct {
	store    Store
	ledger   inventory.Ledger
	payments PaymentPort
	notifier Notifier
	log      *zap.Logger
}

func NewService(store Store, ledger inventory.Ledger, payments PaymentPort, notifier Notifier, log *zap.Logger) *Service {
	return &Service{store: store, ledger: ledger, payments: payments, notifier: notifier, log: log}
}

// PlaceOrder: validasi snapshot, reserve stok all-or-nothing, lalu simpan
// order PLACED. Idempotent via snapshot_id: submit ulang return order lama.
func (s *Service) PlaceOrder(ctx context.Context, cart CartSnapshot) (*Order, error) {
	if err := cart.Validate(); err != nil {
		return nil, err
	}

	if existing, err := s.store.FindBySnapshot(ctx, cart.SnapshotID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	ids := make([]string, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		ids = append(ids, l.ProductID)
	}
	active, err := s.store.Purchasable(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		ok, known := active[id]
		if !known {
			return nil, fmt.Errorf("%w: unknown product %s", ErrInvalidCart, id)
		}
		if !ok {
			return nil, fmt.Errorf("%w: product %s is not purchasable", ErrInvalidCart, id)
		}
	}

	orderID := uuid.NewString()
	lines := make([]inventory.Line, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, inventory.Line{ProductID: l.ProductID, Qty: l.Qty})
	}
	if err := inventory.EnsureReserved(ctx, s.ledger, orderID, lines); err != nil {
		return nil, err
	}

	o := &Order{
		ID:            orderID,
		SnapshotID:    cart.SnapshotID,
		UserID:        cart.UserID,
		Status:        StatusPlaced,
		PaymentStatus: PaymentPending,
		Total:         cart.Total(),
	}
	for _, l := range cart.Lines {
		o.Items = append(o.Items, OrderItem{OrderID: orderID, ProductID: l.ProductID, Qty: l.Qty, UnitPrice: l.UnitPrice})
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		// stok jangan nyangkut kalau insert gagal
		_ = s.ledger.ReleaseOrder(ctx, orderID)
		return nil, err
	}

	s.notifier.Notify(ctx, notify.KindOrderPlaced, o.ID, o.UserID)
	return o, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.store.ByUser(ctx, userID)
}

// ListAll untuk staff dashboard.
func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.store.All(ctx)
}

// UpdateStatus maju satu langkah sesuai tabel transisi. Cancel punya
// side effect sendiri jadi dibelokkan ke Cancel.
func (s *Service) UpdateStatus(ctx context.Context, id string, to Status) (*Order, error) {
	if to == StatusCancelled {
		return s.Cancel(ctx, id)
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	ok, err := s.store.TransitionStatus(ctx, id, o.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		// keduluan writer lain, status sudah bukan yang kita baca
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	s.notifier.Notify(ctx, notify.KindStatusChanged, o.ID, o.UserID)
	return o, nil
}

// Cancel: refund dulu kalau sudah dibayar, release stok, baru set CANCELLED.
// Refund gagal -> order tidak berubah, return ErrRefundFailed.
func (s *Service) Cancel(ctx context.Context, id string) (*Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, StatusCancelled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCancelled)
	}

	if o.PaymentStatus == PaymentCompleted {
		txID, amount, ok, err := s.payments.LatestCompleted(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := s.payments.Refund(ctx, txID, amount); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrRefundFailed, err)
			}
			if err := s.payments.MarkRefunded(ctx, txID); err != nil {
				return nil, err
			}
			if err := s.store.SetPaymentStatus(ctx, o.ID, PaymentRefunded); err != nil {
				return nil, err
			}
			o.PaymentStatus = PaymentRefunded
		}
	} else {
		// settle PENDING ke FAILED duluan supaya webhook telat kalah CAS
		n, err := s.payments.FailPending(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			if err := s.store.SetPaymentStatus(ctx, o.ID, PaymentFailed); err != nil {
				return nil, err
			}
			o.PaymentStatus = PaymentFailed
		}
	}

	if err := s.ledger.ReleaseOrder(ctx, o.ID); err != nil {
		s.log.Warn("release stock on cancel failed", zap.String("order_id", o.ID), zap.Error(err))
	}

	ok, err := s.store.TransitionStatus(ctx, o.ID, o.Status, StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, StatusCancelled)
	}
	o.Status = StatusCancelled
	s.notifier.Notify(ctx, notify.KindStatusChanged, o.ID, o.UserID)
	return o, nil
}

// AssignDelivery bikin assignment baru. Order harus sudah PROCESSED
// (dibayar), belum SHIPPED.
func (s *Service) AssignDelivery(ctx context.Context, orderID, staffID string) (*DeliveryAssignment, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusProcessed {
		return nil, fmt.Errorf("%w: order must be PROCESSED to assign delivery, got %s", ErrInvalidTransition, o.Status)
	}
	d := &DeliveryAssignment{
		ID:      uuid.NewString(),
		OrderID: orderID,
		StaffID: staffID,
		Status:  DeliveryAssigned,
	}
	if err := s.store.CreateDelivery(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateDelivery menggeser status assignment. Delivery punya lifecycle
// sendiri, tidak otomatis menggeser status order.
func (s *Service) UpdateDelivery(ctx context.Context, orderID string, to DeliveryStatus) (*DeliveryAssignment, error) {
	d, err := s.store.GetDelivery(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransitionDelivery(d.Status, to) {
		return nil, fmt.Errorf("%w: delivery %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	ok, err := s.store.TransitionDelivery(ctx, d.ID, d.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: delivery %s -> %s", ErrInvalidTransition, d.Status, to)
	}
	d.Status = to
	return d, nil
}
