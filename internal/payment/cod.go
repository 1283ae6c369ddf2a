package payment

import (
	"context"

	"github.com/ariefcatur/go-order-settlement.git/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CODGateway tidak bicara ke provider manapun. Attempt tetap PENDING
// sampai staff konfirmasi uang diterima (SettleCOD), confirmation code
// dipakai sebagai transaction id.
type CODGateway struct{}

func (CODGateway) Initiate(_ context.Context, _ *orders.Order) (*InitiateResult, error) {
	code := "cod-" + uuid.NewString()
	return &InitiateResult{TransactionID: code, ConfirmationCode: code}, nil
}

// COD tidak punya sumber eksternal untuk dicek.
func (CODGateway) Verify(_ context.Context, _ string) (Outcome, error) {
	return OutcomePending, nil
}

// Refund COD artinya kasih uang tunai balik, di luar sistem ini.
func (CODGateway) Refund(_ context.Context, _ string, _ decimal.Decimal) error {
	return nil
}
