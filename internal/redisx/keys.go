package redisx

import "time"

const (
	// Cache status order: order_status:{order_id} -> {"status":"...","payment_status":"..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup gateway callback: dedup:gateway:{transaction_id}:{outcome}
	// Fast path saja; kebenaran tetap di row payments.
	KeyGatewayDedup = "dedup:gateway:%s:%s"
)

var (
	TTLStatusCache  = 5 * time.Minute
	TTLGatewayDedup = 48 * time.Hour
)
