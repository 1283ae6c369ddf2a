package orders

import "github.com/shopspring/decimal"

// Cents mengubah amount decimal ke minor unit (x100) untuk gateway.
// Round, jangan truncate -- jangan pernah lewat float.
func Cents(d decimal.Decimal) int64 {
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
