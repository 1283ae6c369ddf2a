package notify

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/go-order-settlement.git/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type Kind string

const (
	KindOrderPlaced     Kind = "OrderPlaced"
	KindStatusChanged   Kind = "StatusChanged"
	KindPaymentReceived Kind = "PaymentReceived"
)

const Topic = "orders.notifications"

// Envelope dikirim ke notification service; isi email bukan urusan kita.
type Envelope struct {
	EventID    string    `json:"event_id"`
	Kind       Kind      `json:"kind"`
	OrderID    string    `json:"order_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Producer   string    `json:"producer"`
}

type Notifier struct {
	producer *kafkax.Producer
	service  string
}

func New(p *kafkax.Producer, service string) *Notifier {
	return &Notifier{producer: p, service: service}
}

// Notify itu fire-and-forget: gagal kirim tidak boleh menggagalkan
// transaksi order/payment, makanya tidak return error.
func (n *Notifier) Notify(_ context.Context, kind Kind, orderID, userID string) {
	ev := Envelope{
		EventID:    uuid.NewString(),
		Kind:       kind,
		OrderID:    orderID,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Producer:   n.service,
	}
	n.producer.Publish([]byte(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-kind", Value: []byte(kind)},
	)
}
