package orders

import (
	"context"
	"github.com/ariefcatur/go-order-status.git/internal/logging"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"slices"
	"time"
)

type OrderStore interface {
	SearchByIncrementID(ctx context.Context, incrementID string) ([]Order, error)
	Save(ctx context.Context, o *Order) error
}

type StatusResolver interface {
	AllowedStatuses(ctx context.Context) ([]string, error)
	StateFor(ctx context.Context, status string) (string, error)
}

// Limiter admits or refuses a caller. Implementations decide whether limiting is enabled.
type Limiter interface {
	Admit(ctx context.Context, clientID string) bool
}

// ChangeHook runs after a successful save. It must not fail the caller.
type ChangeHook interface {
	Handle(ctx context.Context, c StatusChange)
}

// Recorder counts outcomes; outcome is a Kind or "OK".
type Recorder interface {
	Transition(outcome string)
}

const OutcomeOK = "OK"

// StatusService updates an order's status and state on behalf of an admin client.
type StatusService struct {
	orders   OrderStore
	statuses StatusResolver
	limiter  Limiter
	hook     ChangeHook
	log      zerolog.Logger

	Metrics Recorder
	Now     func() time.Time
}

// NewStatusService wires the collaborators. limiter and hook may be nil.
func NewStatusService(orders OrderStore, statuses StatusResolver, limiter Limiter, hook ChangeHook, log zerolog.Logger) *StatusService {
	return &StatusService{
		orders:   orders,
		statuses: statuses,
		limiter:  limiter,
		hook:     hook,
		log:      log,
		Now:      time.Now,
	}
}

// UpdateOrderStatus moves the order identified by incrementID to status.
// Known failures come back as *Error unchanged; anything else is logged
// with full detail and returned as a generic KindInternal error.
func (s *StatusService) UpdateOrderStatus(ctx context.Context, clientID, incrementID, status string) (bool, error) {
	err := s.update(ctx, clientID, incrementID, status)
	if err == nil {
		s.record(OutcomeOK)
		return true, nil
	}

	l := s.log.With().Str("order_increment_id", incrementID).Str("status", status).Logger()
	if IsDomain(err) {
		kind := KindOf(err)
		l.Error().Str("kind", string(kind)).Msg("Order status update error: " + err.Error())
		s.record(string(kind))
		return false, err
	}

	logging.Critical(&l).Stack().Err(err).Msg("Unexpected exception during order status update")
	s.record(string(KindInternal))
	return false, Internal(err)
}

func (s *StatusService) update(ctx context.Context, clientID, incrementID, status string) error {
	if s.limiter != nil && !s.limiter.Admit(ctx, clientID) {
		return RateLimited()
	}

	found, err := s.orders.SearchByIncrementID(ctx, incrementID)
	if err != nil {
		return pkgerrors.Wrap(err, "search order")
	}
	if len(found) == 0 {
		return OrderNotFound(incrementID)
	}
	o := found[0]

	allowed, err := s.statuses.AllowedStatuses(ctx)
	if err != nil {
		return pkgerrors.Wrap(err, "load allowed statuses")
	}
	if !slices.Contains(allowed, status) {
		return InvalidStatus(status, allowed)
	}

	state, err := s.statuses.StateFor(ctx, status)
	if err != nil {
		if IsDomain(err) {
			return err
		}
		return pkgerrors.Wrap(err, "resolve state")
	}

	prev := o.Status
	o.Status, o.State = status, state
	if err := s.orders.Save(ctx, &o); err != nil {
		return pkgerrors.Wrap(err, "save order")
	}

	if s.hook != nil {
		s.hook.Handle(ctx, StatusChange{Order: o, OldStatus: prev, NewStatus: status, At: s.Now()})
	}
	return nil
}

func (s *StatusService) record(outcome string) {
	if s.Metrics != nil {
		s.Metrics.Transition(outcome)
	}
}
