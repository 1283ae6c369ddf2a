package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-settlement.git/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Store interface {
	Create(ctx context.Context, p *Payment) error
	SetTransactionID(ctx context.Context, paymentID, txID string) error
	MarkFailed(ctx context.Context, paymentID string) error
	GetByTransactionID(ctx context.Context, txID string) (*Payment, error)
	// SettlePending: CAS keluar dari PENDING, sekali saja per attempt.
	// applied=false artinya sudah settle duluan; caller lihat row yg kereturn.
	SettlePending(ctx context.Context, txID string, to orders.PaymentStatus) (*Payment, bool, error)
	MarkRefunded(ctx context.Context, txID string) (bool, error)
	FailPendingByOrder(ctx context.Context, orderID string) (int, error)
	CountFailed(ctx context.Context, orderID string) (int, error)
	LatestCompleted(ctx context.Context, orderID string) (*Payment, error)
}

type PGStore struct{ DB *pgxpool.Pool }

const uniqueViolation = "23505"

// Create insert attempt PENDING baru. Partial unique index di schema
// menolak PENDING kedua untuk order yang sama.
func (s *PGStore) Create(ctx context.Context, p *Payment) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO payments(id, order_id, transaction_id, amount, status, method)
		VALUES ($1, $2, NULLIF($3,''), $4, $5, $6)`,
		p.ID, p.OrderID, p.TransactionID, p.Amount, p.Status, p.Method)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrPaymentInFlight
	}
	return err
}

func (s *PGStore) SetTransactionID(ctx context.Context, paymentID, txID string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE payments SET transaction_id=$2, updated_at=now() WHERE id=$1`, paymentID, txID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// MarkFailed dipakai saat gateway nolak sebelum ada settle dari luar.
func (s *PGStore) MarkFailed(ctx context.Context, paymentID string) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE payments SET status='FAILED', updated_at=now()
		WHERE id=$1 AND status='PENDING'`, paymentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (s *PGStore) GetByTransactionID(ctx context.Context, txID string) (*Payment, error) {
	return s.scan(s.DB.QueryRow(ctx, `
		SELECT id, order_id, COALESCE(transaction_id,''), amount::text, status, method, created_at, updated_at
		FROM payments WHERE transaction_id=$1`, txID))
}

func (s *PGStore) SettlePending(ctx context.Context, txID string, to orders.PaymentStatus) (*Payment, bool, error) {
	p, err := s.scan(s.DB.QueryRow(ctx, `
		UPDATE payments SET status=$2, updated_at=now()
		WHERE transaction_id=$1 AND status='PENDING'
		RETURNING id, order_id, COALESCE(transaction_id,''), amount::text, status, method, created_at, updated_at`,
		txID, to))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, ErrPaymentNotFound) {
		return nil, false, err
	}
	// sudah settle (atau txID tidak dikenal); yang kalah race lihat row final
	p, err = s.GetByTransactionID(ctx, txID)
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}

func (s *PGStore) MarkRefunded(ctx context.Context, txID string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE payments SET status='REFUNDED', updated_at=now()
		WHERE transaction_id=$1 AND status='COMPLETED'`, txID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) FailPendingByOrder(ctx context.Context, orderID string) (int, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE payments SET status='FAILED', updated_at=now()
		WHERE order_id=$1 AND status='PENDING'`, orderID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGStore) CountFailed(ctx context.Context, orderID string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `
		SELECT count(*) FROM payments WHERE order_id=$1 AND status='FAILED'`, orderID).Scan(&n)
	return n, err
}

func (s *PGStore) LatestCompleted(ctx context.Context, orderID string) (*Payment, error) {
	return s.scan(s.DB.QueryRow(ctx, `
		SELECT id, order_id, COALESCE(transaction_id,''), amount::text, status, method, created_at, updated_at
		FROM payments WHERE order_id=$1 AND status='COMPLETED'
		ORDER BY updated_at DESC LIMIT 1`, orderID))
}

func (s *PGStore) scan(row pgx.Row) (*Payment, error) {
	var p Payment
	var amount string
	var created, updated time.Time
	err := row.Scan(&p.ID, &p.OrderID, &p.TransactionID, &amount, &p.Status, &p.Method, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = created, updated
	return &p, nil
}
