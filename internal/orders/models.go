package orders

import "time"

type Order struct {
	ID            int64
	IncrementID   string // public order number, e.g. 000000123
	Status        string
	State         string
	CustomerEmail string
	CustomerName  string
	StoreID       int64
	UpdatedAt     time.Time
}

// StatusEntry is one row of the status catalog.
type StatusEntry struct {
	Status string
	Label  string
	State  string // may be empty
}

// StatusLog is a persisted transition audit record.
type StatusLog struct {
	LogID     int64     `json:"log_id"`
	OrderID   string    `json:"order_id"` // increment id
	OldStatus string    `json:"old_status"`
	NewStatus string    `json:"new_status"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusChange is handed to the post-persist hook after a save.
type StatusChange struct {
	Order     Order
	OldStatus string // value before the save, empty if unknown
	NewStatus string
	At        time.Time
}
