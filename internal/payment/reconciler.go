package payment

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-order-settlement.git/internal/notify"
	"github.com/ariefcatur/go-order-settlement.git/internal/orders"
	"github.com/ariefcatur/go-order-settlement.git/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Subset orders.Store yang dibutuhkan reconciler.
type OrderStore interface {
	Get(ctx context.Context, id string) (*orders.Order, error)
	SetPaymentStatus(ctx context.Context, id string, to orders.PaymentStatus) error
	TransitionStatus(ctx context.Context, id string, from, to orders.Status) (bool, error)
}

type Ledger interface {
	CommitOrder(ctx context.Context, orderID string) (int, error)
	ReleaseOrder(ctx context.Context, orderID string) error
}

type Notifier interface {
	Notify(ctx context.Context, kind notify.Kind, orderID, userID string)
}

type IgnoreReason string

const (
	ReasonAlreadySettled IgnoreReason = "already_settled"
	ReasonConflict       IgnoreReason = "conflict"
	ReasonNotTerminal    IgnoreReason = "not_terminal"
)

type Result struct {
	Applied bool
	Reason  IgnoreReason
	Payment *Payment
}

// Reconciler menerima event settle dari gateway (webhook, verify, staff
// COD) dan menerapkannya tepat sekali. Sumber kebenarannya CAS di row
// payment; redis cuma fast path dedup, boleh nil.
type Reconciler struct {
	Payments Store
	Orders   OrderStore
	Ledger   Ledger
	Notifier Notifier
	RDB      *redis.Client
	Log      *zap.Logger
}

// ApplyEvent idempotent: event duplikat dengan outcome sama di-ignore.
// Outcome beda setelah settle = conflict, yang menang tetap yang pertama.
func (r *Reconciler) ApplyEvent(ctx context.Context, txID string, outcome Outcome) (*Result, error) {
	var target orders.PaymentStatus
	switch outcome {
	case OutcomeCompleted:
		target = orders.PaymentCompleted
	case OutcomeFailed:
		target = orders.PaymentFailed
	default:
		return &Result{Reason: ReasonNotTerminal}, nil
	}

	if r.seen(ctx, txID, outcome) {
		return &Result{Reason: ReasonAlreadySettled}, nil
	}

	p, applied, err := r.Payments.SettlePending(ctx, txID, target)
	if err != nil {
		return nil, err
	}

	if !applied {
		if p.Status != target {
			r.Log.Warn("conflicting settle event ignored",
				zap.String("transaction_id", txID),
				zap.String("current", string(p.Status)),
				zap.String("incoming", string(target)))
			return &Result{Reason: ReasonConflict, Payment: p}, nil
		}
		// Redelivery FAILED cuma di-ack. Release itu per order: attempt
		// retry yang sedang jalan bisa ketendang reservasinya kalau
		// diulang di sini. Redelivery COMPLETED aman diulang (commit
		// CAS di status reservation, dan tidak ada attempt baru selama
		// order sudah paid), jadi kegagalan parsial kemarin kebenerin.
		if target == orders.PaymentCompleted {
			if err := r.sideEffects(ctx, p, target, false); err != nil {
				return nil, err
			}
		}
		r.remember(ctx, txID, outcome)
		return &Result{Reason: ReasonAlreadySettled, Payment: p}, nil
	}

	if err := r.sideEffects(ctx, p, target, true); err != nil {
		return nil, err
	}
	r.remember(ctx, txID, outcome)
	return &Result{Applied: true, Payment: p}, nil
}

// sideEffects semuanya idempotent: commit/release per order pakai CAS di
// reservation, transisi order pakai CAS di status.
func (r *Reconciler) sideEffects(ctx context.Context, p *Payment, target orders.PaymentStatus, firstApply bool) error {
	o, err := r.Orders.Get(ctx, p.OrderID)
	if err != nil {
		return err
	}

	switch target {
	case orders.PaymentCompleted:
		n, err := r.Ledger.CommitOrder(ctx, p.OrderID)
		if err != nil {
			return fmt.Errorf("commit reservations: %w", err)
		}
		// sweep keburu melepas hold sebelum settle; order tetap maju
		// tapi operator harus tahu stoknya sudah balik ke rak
		if firstApply && n == 0 {
			r.Log.Warn("completed payment found no reservations to commit",
				zap.String("order_id", p.OrderID),
				zap.String("transaction_id", p.TransactionID))
		}
		if err := r.Orders.SetPaymentStatus(ctx, p.OrderID, orders.PaymentCompleted); err != nil {
			return err
		}
		// false = sudah PROCESSED (redelivery) atau sudah cancel; dua-duanya bukan error
		moved, err := r.Orders.TransitionStatus(ctx, p.OrderID, orders.StatusPlaced, orders.StatusProcessed)
		if err != nil {
			return err
		}
		if firstApply {
			r.Notifier.Notify(ctx, notify.KindPaymentReceived, o.ID, o.UserID)
			if moved {
				r.Notifier.Notify(ctx, notify.KindStatusChanged, o.ID, o.UserID)
			}
		}

	case orders.PaymentFailed:
		if err := r.Ledger.ReleaseOrder(ctx, p.OrderID); err != nil {
			return fmt.Errorf("release reservations: %w", err)
		}
		if err := r.Orders.SetPaymentStatus(ctx, p.OrderID, orders.PaymentFailed); err != nil {
			return err
		}
	}

	r.dropStatusCache(ctx, p.OrderID)
	return nil
}

func (r *Reconciler) seen(ctx context.Context, txID string, outcome Outcome) bool {
	if r.RDB == nil {
		return false
	}
	key := fmt.Sprintf(redisx.KeyGatewayDedup, txID, outcome)
	n, err := r.RDB.Exists(ctx, key).Result()
	return err == nil && n > 0
}

func (r *Reconciler) remember(ctx context.Context, txID string, outcome Outcome) {
	if r.RDB == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyGatewayDedup, txID, outcome)
	if err := r.RDB.Set(ctx, key, "1", redisx.TTLGatewayDedup).Err(); err != nil {
		r.Log.Warn("dedup set failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *Reconciler) dropStatusCache(ctx context.Context, orderID string) {
	if r.RDB == nil {
		return
	}
	_ = r.RDB.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err()
}
