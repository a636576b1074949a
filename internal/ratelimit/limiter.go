// Package ratelimit admits admin callers through a sliding 60 second window
// kept in the TTL cache.
package ratelimit

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"github.com/ariefcatur/go-order-status.git/internal/cache"
	"github.com/ariefcatur/go-order-status.git/internal/redisx"
	"github.com/rs/zerolog"
	"time"
)

const (
	Window             = 60 * time.Second
	DefaultMaxRequests = 5
)

// Rejections is notified for every refused caller.
type Rejections interface {
	RateLimited()
}

type Limiter struct {
	store   cache.Store
	enabled bool
	max     int
	log     zerolog.Logger

	Metrics Rejections
	Now     func() time.Time
}

// New returns a limiter; max <= 0 means DefaultMaxRequests.
func New(store cache.Store, enabled bool, max int, log zerolog.Logger) *Limiter {
	if max <= 0 {
		max = DefaultMaxRequests
	}
	return &Limiter{store: store, enabled: enabled, max: max, log: log, Now: time.Now}
}

// Key is the cache key holding the window of clientID.
func Key(clientID string) string {
	sum := md5.Sum([]byte(clientID))
	return fmt.Sprintf(redisx.KeyRateLimit, hex.EncodeToString(sum[:]))
}

// Admit reports whether clientID may proceed and, if so, counts the request.
// Refused requests are not counted. Store faults admit the caller.
func (l *Limiter) Admit(ctx context.Context, clientID string) bool {
	if !l.enabled {
		return true
	}
	key := Key(clientID)
	now := l.Now().Unix()

	raw, found, err := l.store.Get(ctx, key)
	if err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("rate limit read failed, admitting")
		return true
	}

	var window []int64
	if found {
		window, err = decode(raw)
		if err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("rate limit window unreadable, resetting")
			window = nil
		}
	}

	cutoff := now - int64(Window/time.Second)
	live := window[:0]
	for _, ts := range window {
		if ts >= cutoff {
			live = append(live, ts)
		}
	}

	if len(live) >= l.max {
		if l.Metrics != nil {
			l.Metrics.RateLimited()
		}
		return false
	}

	live = append(live, now)
	if err := cache.SetJSON(ctx, l.store, key, live, redisx.TTLRateLimit); err != nil {
		l.log.Warn().Err(err).Str("key", key).Msg("rate limit write failed, admitting")
	}
	return true
}
