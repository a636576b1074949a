package audit

import (
	"context"
	"fmt"
	kafkax "github.com/ariefcatur/go-order-status.git/internal/kafka"
	"github.com/ariefcatur/go-order-status.git/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"time"
)

type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers ...kafkago.Header) error
}

// KafkaNotifier hands shipped notices to the notifier worker over Kafka.
type KafkaNotifier struct {
	Producer Publisher
	Service  string
	Now      func() time.Time
}

func (n *KafkaNotifier) NotifyShipped(ctx context.Context, s ShippedNotice) error {
	if s.CustomerEmail == "" {
		return fmt.Errorf("order %s has no customer email", s.IncrementID)
	}
	payload, err := kafkax.Marshal(orders.OrderShippedPayload{
		OrderID:       s.IncrementID,
		StoreID:       s.StoreID,
		CustomerEmail: s.CustomerEmail,
		CustomerName:  s.CustomerName,
	})
	if err != nil {
		return err
	}
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	b, err := kafkax.Marshal(orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderShipped,
		EventVersion:  1,
		OccurredAt:    now().UTC(),
		Producer:      n.Service,
		CorrelationID: s.IncrementID,
		Payload:       payload,
	})
	if err != nil {
		return err
	}
	return n.Producer.Publish(ctx, orders.PartitionKey(s.IncrementID), b,
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderShipped)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
