package inventory

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	// reservation sudah committed/released/expired
	ErrNotActive = errors.New("reservation not active")
)

// StockError menyebut produk yang bikin reservasi gagal.
type StockError struct {
	ProductID string
	Required  int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: required %d, available %d", e.ProductID, e.Required, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Ledger menjaga stok per produk. Reserve harus atomik terhadap reserve
// lain di produk yang sama: dua request berebut unit terakhir tidak boleh
// dua-duanya sukses.
type Ledger interface {
	Reserve(ctx context.Context, orderID, productID string, qty int) (string, error)
	Release(ctx context.Context, reservationID string) error
	Commit(ctx context.Context, reservationID string) error

	// Scoped per order: dipakai reconciler & cancel. CommitOrder return
	// berapa hold yang dipermanenkan; nol berarti sweep sudah keduluan.
	ReleaseOrder(ctx context.Context, orderID string) error
	CommitOrder(ctx context.Context, orderID string) (int, error)
	HasActive(ctx context.Context, orderID string) (bool, error)
}

type Line struct {
	ProductID string
	Qty       int
}

// EnsureReserved: reserve semua line untuk satu order, all-or-nothing.
// Kalau satu gagal, yang sudah dipegang dilepas lagi. No-op kalau order
// masih punya reservation aktif (retry payment path).
func EnsureReserved(ctx context.Context, l Ledger, orderID string, lines []Line) error {
	active, err := l.HasActive(ctx, orderID)
	if err != nil {
		return err
	}
	if active {
		return nil
	}

	held := make([]string, 0, len(lines))
	for _, line := range lines {
		id, err := l.Reserve(ctx, orderID, line.ProductID, line.Qty)
		if err != nil {
			for _, h := range held {
				_ = l.Release(ctx, h)
			}
			return err
		}
		held = append(held, id)
	}
	return nil
}
