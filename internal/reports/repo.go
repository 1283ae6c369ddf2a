package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type CompletedOrder struct {
	OrderID   string          `json:"order_id"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

type ProductUnits struct {
	ProductID string `json:"product_id"`
	Units     int    `json:"units"`
}

type Store interface {
	// Order yang payment-nya COMPLETED dan tidak di-cancel/refund.
	CompletedOrders(ctx context.Context, from, to time.Time) ([]CompletedOrder, error)
	UnitsByProduct(ctx context.Context, from, to time.Time) ([]ProductUnits, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
}

type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) CompletedOrders(ctx context.Context, from, to time.Time) ([]CompletedOrder, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, total_amount::text, created_at
		FROM orders
		WHERE payment_status='COMPLETED' AND status <> 'CANCELLED'
		  AND created_at >= $1 AND created_at < $2
		ORDER BY created_at`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompletedOrder
	for rows.Next() {
		var c CompletedOrder
		var total string
		if err := rows.Scan(&c.OrderID, &total, &c.CreatedAt); err != nil {
			return nil, err
		}
		if c.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("parse total_amount: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) UnitsByProduct(ctx context.Context, from, to time.Time) ([]ProductUnits, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT oi.product_id, COALESCE(SUM(oi.qty),0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.payment_status='COMPLETED' AND o.status <> 'CANCELLED'
		  AND o.created_at >= $1 AND o.created_at < $2
		GROUP BY oi.product_id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductUnits
	for rows.Next() {
		var p ProductUnits
		if err := rows.Scan(&p.ProductID, &p.Units); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.Query(ctx, `SELECT status, count(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}
