package inventory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type reservationStatus string

const (
	resReserved  reservationStatus = "RESERVED"
	resCommitted reservationStatus = "COMMITTED"
	resReleased  reservationStatus = "RELEASED"
)

type reservation struct {
	ID        string
	OrderID   string
	ProductID string
	Qty       int
	Status    reservationStatus
	ExpiresAt time.Time
}

// MemLedger: ledger in-memory dengan semantics sama persis dengan PGLedger.
// Dipakai test & local run. Satu mutex cukup; critical section-nya pendek.
type MemLedger struct {
	mu           sync.Mutex
	stock        map[string]int
	reservations map[string]*reservation
	ttl          time.Duration
	now          func() time.Time
}

func NewMemLedger(ttl time.Duration) *MemLedger {
	return &MemLedger{
		stock:        make(map[string]int),
		reservations: make(map[string]*reservation),
		ttl:          ttl,
		now:          time.Now,
	}
}

func (m *MemLedger) SetStock(productID string, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[productID] = qty
}

func (m *MemLedger) Stock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[productID]
}

func (m *MemLedger) Reserve(_ context.Context, orderID, productID string, qty int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	avail, ok := m.stock[productID]
	if !ok {
		return "", ErrProductNotFound
	}
	if avail < qty {
		return "", &StockError{ProductID: productID, Required: qty, Available: avail}
	}

	m.stock[productID] = avail - qty
	r := &reservation{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		ProductID: productID,
		Qty:       qty,
		Status:    resReserved,
		ExpiresAt: m.now().Add(m.ttl),
	}
	m.reservations[r.ID] = r
	return r.ID, nil
}

func (m *MemLedger) Release(_ context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseLocked(reservationID)
}

func (m *MemLedger) releaseLocked(reservationID string) error {
	r, ok := m.reservations[reservationID]
	if !ok || r.Status != resReserved {
		return ErrNotActive
	}
	m.stock[r.ProductID] += r.Qty
	r.Status = resReleased
	return nil
}

func (m *MemLedger) Commit(_ context.Context, reservationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// guard di field status: commit vs expiry-release saling eksklusif
	r, ok := m.reservations[reservationID]
	if !ok || r.Status != resReserved {
		return ErrNotActive
	}
	r.Status = resCommitted
	return nil
}

func (m *MemLedger) ReleaseOrder(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reservations {
		if r.OrderID == orderID && r.Status == resReserved {
			_ = m.releaseLocked(r.ID)
		}
	}
	return nil
}

func (m *MemLedger) CommitOrder(_ context.Context, orderID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.reservations {
		if r.OrderID == orderID && r.Status == resReserved {
			r.Status = resCommitted
			n++
		}
	}
	return n, nil
}

func (m *MemLedger) HasActive(_ context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for _, r := range m.reservations {
		if r.OrderID == orderID && r.Status == resReserved && r.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

// Sweep melepas reservation yang lewat TTL (checkout ditinggal).
func (m *MemLedger) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	n := 0
	for _, r := range m.reservations {
		if r.Status == resReserved && !r.ExpiresAt.After(now) {
			_ = m.releaseLocked(r.ID)
			n++
		}
	}
	return n, nil
}
