package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGLedger: stok di table products, hold di table reservations.
// Lock per-product via FOR UPDATE -> tidak mungkin oversell.
type PGLedger struct {
	DB  *pgxpool.Pool
	TTL time.Duration
}

func (l *PGLedger) Reserve(ctx context.Context, orderID, productID string, qty int) (string, error) {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var stock int
	err = tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrProductNotFound
	}
	if err != nil {
		return "", err
	}
	if stock < qty {
		return "", &StockError{ProductID: productID, Required: qty, Available: stock}
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1`, productID, qty); err != nil {
		return "", err
	}

	resID := uuid.NewString()
	if _, err := tx.Exec(ctx, `
		INSERT INTO reservations(id, order_id, product_id, qty, status, expires_at)
		VALUES ($1,$2,$3,$4,'RESERVED', now() + $5)
	`, resID, orderID, productID, qty, l.TTL); err != nil {
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return resID, nil
}

func (l *PGLedger) Release(ctx context.Context, reservationID string) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var productID string
	var qty int
	err = tx.QueryRow(ctx, `
		SELECT product_id, qty FROM reservations
		WHERE id=$1 AND status='RESERVED' FOR UPDATE`, reservationID).Scan(&productID, &qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotActive
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`, productID, qty); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE reservations SET status='RELEASED' WHERE id=$1`, reservationID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Commit: decrement jadi permanen, hold di-drop. Guard di kolom status,
// jadi commit dan expiry-release tidak bisa dua-duanya jalan.
func (l *PGLedger) Commit(ctx context.Context, reservationID string) error {
	ct, err := l.DB.Exec(ctx, `
		UPDATE reservations SET status='COMMITTED'
		WHERE id=$1 AND status='RESERVED'`, reservationID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotActive
	}
	return nil
}

func (l *PGLedger) ReleaseOrder(ctx context.Context, orderID string) error {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, product_id, qty FROM reservations
		WHERE order_id=$1 AND status='RESERVED' FOR UPDATE`, orderID)
	if err != nil {
		return err
	}
	type rec struct {
		id, pid string
		qty     int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.id, &x.pid, &x.qty); err != nil {
			rows.Close()
			return err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, x := range recs {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`, x.pid, x.qty); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx, `UPDATE reservations SET status='RELEASED' WHERE order_id=$1 AND status='RESERVED'`, orderID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *PGLedger) CommitOrder(ctx context.Context, orderID string) (int, error) {
	ct, err := l.DB.Exec(ctx, `
		UPDATE reservations SET status='COMMITTED'
		WHERE order_id=$1 AND status='RESERVED'`, orderID)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

func (l *PGLedger) HasActive(ctx context.Context, orderID string) (bool, error) {
	var n int
	err := l.DB.QueryRow(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE order_id=$1 AND status='RESERVED' AND expires_at > now()`, orderID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Sweep: balikin stok dari checkout yang ditinggal. Dipanggil worker
// terpisah; aman lari bareng commit karena guard status yang sama.
func (l *PGLedger) Sweep(ctx context.Context) (int, error) {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id, product_id, qty FROM reservations
		WHERE status='RESERVED' AND expires_at <= now()
		FOR UPDATE SKIP LOCKED`)
	if err != nil {
		return 0, err
	}
	type rec struct {
		id, pid string
		qty     int
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.id, &x.pid, &x.qty); err != nil {
			rows.Close()
			return 0, err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, x := range recs {
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`, x.pid, x.qty); err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, `UPDATE reservations SET status='RELEASED' WHERE id=$1`, x.id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(recs), nil
}
