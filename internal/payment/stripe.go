package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-order-settlement.git/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
	"github.com/stripe/stripe-go/v81/refund"
	"go.uber.org/zap"
)

// StripeGateway bikin PaymentIntent per attempt. Amount dikirim dalam
// cents (lihat orders.Cents), order_id ditaruh di metadata supaya webhook
// bisa balik ke order tanpa lookup tambahan.
type StripeGateway struct {
	Timeout time.Duration
	Log     *zap.Logger
}

func NewStripeGateway(apiKey string, timeout time.Duration, log *zap.Logger) *StripeGateway {
	stripe.Key = apiKey
	return &StripeGateway{Timeout: timeout, Log: log}
}

func (g *StripeGateway) Initiate(ctx context.Context, o *orders.Order) (*InitiateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{
		Params:   stripe.Params{Context: ctx},
		Amount:   stripe.Int64(orders.Cents(o.Total)),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", o.ID)
	params.AddMetadata("user_id", o.UserID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, g.mapErr(err)
	}
	return &InitiateResult{TransactionID: pi.ID, ClientToken: pi.ClientSecret}, nil
}

func (g *StripeGateway) Verify(ctx context.Context, txID string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	pi, err := paymentintent.Get(txID, &stripe.PaymentIntentParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return "", g.mapErr(err)
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return OutcomeCompleted, nil
	case stripe.PaymentIntentStatusCanceled:
		return OutcomeFailed, nil
	default:
		// requires_payment_method, processing, dll: belum settle
		return OutcomePending, nil
	}
}

func (g *StripeGateway) Refund(ctx context.Context, txID string, amount decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	_, err := refund.New(&stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(txID),
		Amount:        stripe.Int64(orders.Cents(amount)),
	})
	if err != nil {
		return g.mapErr(err)
	}
	return nil
}

// Card/invalid request = ditolak (final). Sisanya dianggap gangguan
// sementara dan boleh diretry.
func (g *StripeGateway) mapErr(err error) error {
	var sErr *stripe.Error
	if errors.As(err, &sErr) {
		switch sErr.Type {
		case stripe.ErrorTypeCard, stripe.ErrorTypeInvalidRequest:
			return fmt.Errorf("%w: %s", ErrGatewayRejected, sErr.Msg)
		}
	}
	g.Log.Warn("stripe call failed", zap.Error(err))
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}
