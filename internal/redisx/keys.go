package redisx

import "time"

const (
	// Sliding rate-limit window: order_status_rate_limit_{md5(client)} -> [epoch, ...]
	KeyRateLimit = "order_status_rate_limit_%s"

	// Allowed status codes: allowed_order_statuses -> ["pending", ...]
	KeyAllowedStatuses = "allowed_order_statuses"

	// Lifecycle state per status: order_state_by_status_{status} -> "processing"
	KeyStateByStatus = "order_state_by_status_%s"

	// Dedup notification delivery: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLRateLimit = 60 * time.Second
	TTLCatalog   = 24 * time.Hour
	TTLDedup     = 48 * time.Hour
)
