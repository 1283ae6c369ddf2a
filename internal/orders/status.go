package orders

// Status order-level. Transisi hanya lewat tabel di bawah, jangan ad-hoc.
type Status string

const (
	StatusPlaced    Status = "PLACED"
	StatusProcessed Status = "PROCESSED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusPlaced:    {StatusProcessed: true, StatusCancelled: true},
	StatusProcessed: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:   {StatusDelivered: true},
	StatusDelivered: {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool { return len(validNext[s]) == 0 }

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// Di level order, FAILED boleh balik ke PENDING saat customer retry.
// Di level row payment, keluar dari PENDING itu sekali saja (lihat payment.Store).
var validPaymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:   {PaymentCompleted: true, PaymentFailed: true},
	PaymentCompleted: {PaymentRefunded: true},
	PaymentFailed:    {PaymentPending: true},
	PaymentRefunded:  {},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return validPaymentNext[from][to]
}

// Settled = sudah keluar dari PENDING.
func (s PaymentStatus) Settled() bool { return s != PaymentPending }

type DeliveryStatus string

const (
	DeliveryAssigned  DeliveryStatus = "ASSIGNED"
	DeliveryInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

var validDeliveryNext = map[DeliveryStatus]map[DeliveryStatus]bool{
	DeliveryAssigned:  {DeliveryInTransit: true, DeliveryFailed: true},
	DeliveryInTransit: {DeliveryDelivered: true, DeliveryFailed: true},
	DeliveryDelivered: {},
	DeliveryFailed:    {},
}

func CanTransitionDelivery(from, to DeliveryStatus) bool {
	return validDeliveryNext[from][to]
}
