package orders

import "errors"

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidCart       = errors.New("invalid cart")
	ErrNotFound          = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")

	// Refund gagal -> cancel diblokir, butuh intervensi manual.
	ErrRefundFailed = errors.New("refund failed, cancellation blocked")
)
