package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-order-settlement.git/internal/inventory"
	"github.com/ariefcatur/go-order-settlement.git/internal/orders"
	"github.com/ariefcatur/go-order-settlement.git/internal/payment"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusOf(err), map[string]string{"error": err.Error()})
}

// Mapping error domain -> HTTP status. Default 500.
func statusOf(err error) int {
	switch {
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, payment.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrEmptyCart), errors.Is(err, orders.ErrInvalidCart),
		errors.Is(err, payment.ErrUnsupportedMethod):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrInvalidTransition), errors.Is(err, payment.ErrAlreadyPaid),
		errors.Is(err, payment.ErrPaymentInFlight), errors.Is(err, orders.ErrRefundFailed):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrInsufficientStock), errors.Is(err, payment.ErrRetryLimitExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, payment.ErrGatewayRejected):
		return http.StatusPaymentRequired
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
