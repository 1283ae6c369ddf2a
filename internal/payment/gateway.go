package payment

import (
	"context"
	"errors"

	"github.com/ariefcatur/go-order-settlement.git/internal/orders"
	"github.com/shopspring/decimal"
)

var (
	// Gateway down/timeout: boleh diretry dengan dedup key yang sama.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// Gateway nolak (kartu invalid dll): attempt ini final FAILED.
	ErrGatewayRejected = errors.New("payment rejected by gateway")

	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentInFlight    = errors.New("payment already in flight for this order")
	ErrAlreadyPaid        = errors.New("order already paid")
	ErrRetryLimitExceeded = errors.New("payment retry limit exceeded")
	ErrUnsupportedMethod  = errors.New("unsupported payment method")
)

// Outcome: hasil settle dari sisi gateway.
type Outcome string

const (
	OutcomeCompleted Outcome = "COMPLETED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomePending   Outcome = "PENDING"
)

type InitiateResult struct {
	TransactionID string `json:"transaction_id"`
	// ClientToken dipakai frontend menyelesaikan pembayaran (card).
	ClientToken string `json:"client_token,omitempty"`
	// ConfirmationCode untuk COD, dibawa kurir.
	ConfirmationCode string `json:"confirmation_code,omitempty"`
}

// Gateway mengabstraksi provider. Initiate tidak pernah langsung
// COMPLETED: settle selalu lewat reconciler (webhook / verify / COD staff).
type Gateway interface {
	Initiate(ctx context.Context, o *orders.Order) (*InitiateResult, error)
	Verify(ctx context.Context, txID string) (Outcome, error)
	Refund(ctx context.Context, txID string, amount decimal.Decimal) error
}
