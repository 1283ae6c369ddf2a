package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Store adalah kontrak persistence untuk Service, dipisah supaya test
// bisa pakai mock tanpa database.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	FindBySnapshot(ctx context.Context, snapshotID string) (*Order, error)
	ByUser(ctx context.Context, userID string) ([]Order, error)
	// All: listing lintas user untuk staff.
	All(ctx context.Context) ([]Order, error)
	// TransitionStatus itu CAS: false artinya status sudah bergeser dari `from`.
	TransitionStatus(ctx context.Context, id string, from, to Status) (bool, error)
	SetPaymentStatus(ctx context.Context, id string, to PaymentStatus) error
	Purchasable(ctx context.Context, productIDs []string) (map[string]bool, error)

	CreateDelivery(ctx context.Context, d *DeliveryAssignment) error
	GetDelivery(ctx context.Context, orderID string) (*DeliveryAssignment, error)
	TransitionDelivery(ctx context.Context, id string, from, to DeliveryStatus) (bool, error)
}

type PGStore struct{ DB *pgxpool.Pool }

// CreateOrder insert order + items dalam satu transaksi.
func (s *PGStore) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, snapshot_id, user_id, status, payment_status, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.SnapshotID, o.UserID, o.Status, o.PaymentStatus, o.Total)
	if err != nil {
		return err
	}
	for i := range o.Items {
		it := &o.Items[i]
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, qty, unit_price)
			VALUES ($1, $2, $3, $4) RETURNING id`,
			o.ID, it.ProductID, it.Qty, it.UnitPrice,
		).Scan(&it.ID)
		if err != nil {
			return err
		}
		it.OrderID = o.ID
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Get(ctx context.Context, id string) (*Order, error) {
	o, err := s.scanOrder(s.DB.QueryRow(ctx, `
		SELECT id, snapshot_id, user_id, status, payment_status, total_amount::text, created_at, updated_at
		FROM orders WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	if o.Items, err = s.itemsOf(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PGStore) FindBySnapshot(ctx context.Context, snapshotID string) (*Order, error) {
	o, err := s.scanOrder(s.DB.QueryRow(ctx, `
		SELECT id, snapshot_id, user_id, status, payment_status, total_amount::text, created_at, updated_at
		FROM orders WHERE snapshot_id=$1`, snapshotID))
	if err != nil {
		return nil, err
	}
	if o.Items, err = s.itemsOf(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PGStore) ByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.list(ctx, `
		SELECT id, snapshot_id, user_id, status, payment_status, total_amount::text, created_at, updated_at
		FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (s *PGStore) All(ctx context.Context) ([]Order, error) {
	return s.list(ctx, `
		SELECT id, snapshot_id, user_id, status, payment_status, total_amount::text, created_at, updated_at
		FROM orders ORDER BY created_at DESC`)
}

func (s *PGStore) list(ctx context.Context, q string, args ...any) ([]Order, error) {
	rows, err := s.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := s.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *PGStore) TransitionStatus(ctx context.Context, id string, from, to Status) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) SetPaymentStatus(ctx context.Context, id string, to PaymentStatus) error {
	tag, err := s.DB.Exec(ctx, `
		UPDATE orders SET payment_status=$2, updated_at=now() WHERE id=$1`, id, to)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Purchasable cek produk exist + active. Key yg tidak ada di hasil = tidak dikenal.
func (s *PGStore) Purchasable(ctx context.Context, productIDs []string) (map[string]bool, error) {
	if len(productIDs) == 0 {
		return map[string]bool{}, nil
	}
	args := make([]any, 0, len(productIDs))
	params := make([]string, 0, len(productIDs))
	for i, id := range productIDs {
		params = append(params, fmt.Sprintf("$%d", i+1))
		args = append(args, id)
	}
	rows, err := s.DB.Query(ctx,
		`SELECT id, active FROM products WHERE id IN (`+strings.Join(params, ",")+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var id string
		var active bool
		if err := rows.Scan(&id, &active); err != nil {
			return nil, err
		}
		out[id] = active
	}
	return out, rows.Err()
}

func (s *PGStore) CreateDelivery(ctx context.Context, d *DeliveryAssignment) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO delivery_assignments(id, order_id, staff_id, status)
		VALUES ($1, $2, $3, $4)`, d.ID, d.OrderID, d.StaffID, d.Status)
	return err
}

func (s *PGStore) GetDelivery(ctx context.Context, orderID string) (*DeliveryAssignment, error) {
	var d DeliveryAssignment
	err := s.DB.QueryRow(ctx, `
		SELECT id, order_id, staff_id, status, created_at, updated_at
		FROM delivery_assignments WHERE order_id=$1
		ORDER BY created_at DESC LIMIT 1`, orderID).
		Scan(&d.ID, &d.OrderID, &d.StaffID, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PGStore) TransitionDelivery(ctx context.Context, id string, from, to DeliveryStatus) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
		UPDATE delivery_assignments SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// NUMERIC discan sebagai text lalu diparse decimal, jangan float64.
func (s *PGStore) scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var total string
	var created, updated time.Time
	err := row.Scan(&o.ID, &o.SnapshotID, &o.UserID, &o.Status, &o.PaymentStatus, &total, &created, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total_amount: %w", err)
	}
	o.CreatedAt, o.UpdatedAt = created, updated
	return &o, nil
}

func (s *PGStore) itemsOf(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, order_id, product_id, qty, unit_price::text
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		var price string
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Qty, &price); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse unit_price: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
