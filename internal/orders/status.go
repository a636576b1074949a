package orders

// Well-known statuses and states. The full vocabulary lives in the status catalog.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"

	// StateProcessing is the lifecycle state used when a catalog entry has none.
	StateProcessing = "processing"
)
