package orders

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CartSnapshot: potret cart saat checkout. Harga diambil dari sini,
// bukan dari katalog, jadi order historis kebal perubahan harga.
type CartSnapshot struct {
	SnapshotID string     `json:"snapshot_id"`
	UserID     string     `json:"user_id"`
	Lines      []CartLine `json:"lines"`
}

type CartLine struct {
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (c CartSnapshot) Validate() error {
	if len(c.Lines) == 0 {
		return ErrEmptyCart
	}
	if c.SnapshotID == "" {
		return fmt.Errorf("%w: missing snapshot id", ErrInvalidCart)
	}
	if c.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrInvalidCart)
	}
	for _, l := range c.Lines {
		if l.ProductID == "" {
			return fmt.Errorf("%w: line without product id", ErrInvalidCart)
		}
		if l.Qty <= 0 {
			return fmt.Errorf("%w: qty for product %s must be positive", ErrInvalidCart, l.ProductID)
		}
		if l.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: price for product %s must not be negative", ErrInvalidCart, l.ProductID)
		}
	}
	return nil
}

// Total = sum(unit_price * qty), decimal scale 2, tanpa float.
func (c CartSnapshot) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Qty))))
	}
	return total
}
