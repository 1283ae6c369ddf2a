package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Stock     int       `json:"stock"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order struct {
	ID         string `json:"id"`
	SnapshotID string `json:"snapshot_id"`
	UserID     string `json:"user_id"`
	Status     Status `json:"status"`
	// mirror dari attempt payment terakhir yg settle
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Total         decimal.Decimal `json:"total_amount"`
	Items         []OrderItem     `json:"items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// OrderItem menyimpan snapshot harga saat order dibuat.
// Perubahan harga katalog sesudahnya tidak boleh mengubah order historis.
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Qty       int             `json:"qty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (it OrderItem) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Qty)))
}

type DeliveryAssignment struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"order_id"`
	StaffID   string         `json:"staff_id"`
	Status    DeliveryStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
