// Package audit records order status transitions and fires the shipped
// notification. Everything here is best effort: failures are logged and
// never reach the caller of the transition.
package audit

import (
	"context"
	"github.com/ariefcatur/go-order-status.git/internal/orders"
	"github.com/rs/zerolog"
	"time"
)

type LogStore interface {
	Append(ctx context.Context, l orders.StatusLog) (int64, error)
}

type ShippedNotice struct {
	IncrementID   string
	StoreID       int64
	CustomerEmail string
	CustomerName  string
}

type Notifier interface {
	NotifyShipped(ctx context.Context, n ShippedNotice) error
}

// Failures counts swallowed side-effect errors by kind ("audit" or "notify").
type Failures interface {
	SideEffectFailed(kind string)
}

// Auditor implements orders.ChangeHook.
type Auditor struct {
	logs     LogStore
	notifier Notifier
	log      zerolog.Logger

	Metrics Failures
}

func NewAuditor(logs LogStore, notifier Notifier, log zerolog.Logger) *Auditor {
	return &Auditor{logs: logs, notifier: notifier, log: log}
}

// Handle writes an audit record when the status actually changed, then
// notifies the customer if the new status is shipped. The two side effects
// are independent of each other.
func (a *Auditor) Handle(ctx context.Context, c orders.StatusChange) {
	old := c.OldStatus
	if old == "" {
		old = orders.StatusPending
	}
	if old == c.NewStatus {
		return
	}
	at := c.At
	if at.IsZero() {
		at = time.Now()
	}
	l := a.log.With().
		Str("order_id", c.Order.IncrementID).
		Str("old_status", old).
		Str("new_status", c.NewStatus).
		Logger()

	id, err := a.logs.Append(ctx, orders.StatusLog{
		OrderID:   c.Order.IncrementID,
		OldStatus: old,
		NewStatus: c.NewStatus,
		CreatedAt: at.UTC(),
	})
	if err != nil {
		l.Error().Err(err).Msg("Order status change processing failed")
		a.failed("audit")
	} else {
		l.Info().Int64("log_id", id).Msg("order status change recorded")
	}

	if c.NewStatus != orders.StatusShipped || a.notifier == nil {
		return
	}
	err = a.notifier.NotifyShipped(ctx, ShippedNotice{
		IncrementID:   c.Order.IncrementID,
		StoreID:       c.Order.StoreID,
		CustomerEmail: c.Order.CustomerEmail,
		CustomerName:  c.Order.CustomerName,
	})
	if err != nil {
		l.Error().Err(err).Msg("Failed to send shipped email")
		a.failed("notify")
	}
}

func (a *Auditor) failed(kind string) {
	if a.Metrics != nil {
		a.Metrics.SideEffectFailed(kind)
	}
}
