package payment

import (
	"time"

	"github.com/ariefcatur/go-order-settlement.git/internal/orders"
	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodCard Method = "CARD"
	MethodCOD  Method = "COD"
)

func (m Method) Valid() bool { return m == MethodCard || m == MethodCOD }

// Payment = satu attempt. Order bisa punya banyak row (retry), tapi cuma
// satu yang PENDING pada satu waktu (partial unique index di schema).
type Payment struct {
	ID            string               `json:"id"`
	OrderID       string               `json:"order_id"`
	TransactionID string               `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal      `json:"amount"`
	Status        orders.PaymentStatus `json:"status"`
	Method        Method               `json:"method"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}
