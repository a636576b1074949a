// Package catalog resolves the allowed order statuses and the lifecycle
// state each one maps to, memoized in the TTL cache for a day.
package catalog

import (
	"context"
	"fmt"
	"github.com/ariefcatur/go-order-status.git/internal/cache"
	"github.com/ariefcatur/go-order-status.git/internal/orders"
	"github.com/ariefcatur/go-order-status.git/internal/redisx"
	"github.com/rs/zerolog"
)

// Source is the authoritative status catalog.
type Source interface {
	Statuses(ctx context.Context) ([]string, error)
	Lookup(ctx context.Context, status string) (orders.StatusEntry, bool, error)
}

// Resolver satisfies orders.StatusResolver. Entries are never invalidated
// before their TTL, so catalog edits show up within a day.
type Resolver struct {
	source Source
	cache  cache.Store
	log    zerolog.Logger
}

func NewResolver(source Source, store cache.Store, log zerolog.Logger) *Resolver {
	return &Resolver{source: source, cache: store, log: log}
}

func (r *Resolver) AllowedStatuses(ctx context.Context) ([]string, error) {
	cached, ok, err := cache.GetJSON[[]string](ctx, r.cache, redisx.KeyAllowedStatuses)
	if err != nil {
		r.log.Warn().Err(err).Msg("allowed statuses cache read failed")
	}
	if ok {
		return cached, nil
	}

	statuses, err := r.source.Statuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	if statuses == nil {
		statuses = []string{}
	}
	if err := cache.SetJSON(ctx, r.cache, redisx.KeyAllowedStatuses, statuses, redisx.TTLCatalog); err != nil {
		r.log.Warn().Err(err).Msg("allowed statuses cache write failed")
	}
	return statuses, nil
}

// StateFor returns the state mapped to status, StateProcessing when the
// entry has none, or an UnknownStatus error when the catalog lacks status.
func (r *Resolver) StateFor(ctx context.Context, status string) (string, error) {
	key := fmt.Sprintf(redisx.KeyStateByStatus, status)
	if s, ok, err := r.cache.Get(ctx, key); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("state cache read failed")
	} else if ok && s != "" {
		return s, nil
	}

	entry, found, err := r.source.Lookup(ctx, status)
	if err != nil {
		return "", fmt.Errorf("lookup status %q: %w", status, err)
	}
	if !found {
		return "", orders.UnknownStatus(status)
	}
	state := entry.State
	if state == "" {
		state = orders.StateProcessing
	}
	if err := r.cache.Set(ctx, key, state, redisx.TTLCatalog); err != nil {
		r.log.Warn().Err(err).Str("key", key).Msg("state cache write failed")
	}
	return state, nil
}
