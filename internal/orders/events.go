package orders

import (
	"encoding/json"
	"time"
)

const EventOrderShipped = "OrderShipped"

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // EventOrderShipped
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // increment id
	Payload       json.RawMessage `json:"payload"`
}

type OrderShippedPayload struct {
	OrderID       string `json:"order_id"` // increment id
	StoreID       int64  `json:"store_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
}

// PartitionKey keeps every event of one order on the same partition.
func PartitionKey(incrementID string) []byte { return []byte(incrementID) }
