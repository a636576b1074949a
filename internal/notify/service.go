// Package notify turns OrderShipped events into customer emails.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ariefcatur/go-order-status.git/internal/cache"
	kafkax "github.com/ariefcatur/go-order-status.git/internal/kafka"
	"github.com/ariefcatur/go-order-status.git/internal/mail"
	"github.com/ariefcatur/go-order-status.git/internal/orders"
	"github.com/ariefcatur/go-order-status.git/internal/redisx"
	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
)

type Service struct {
	Mailer mail.Sender
	Dedup  cache.Store
	Log    zerolog.Logger

	// StoreName resolves the store shown in the email; nil uses "store #<id>".
	StoreName   func(storeID int64) string
	ServiceName string
}

// HandleShipped is installed as the consumer handler. Returning nil commits the offset.
func (s *Service) HandleShipped(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Error().Err(err).Int64("offset", m.Offset).Msg("drop undecodable envelope")
		return nil
	}
	if env.EventType != orders.EventOrderShipped {
		return nil
	}

	key := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if _, seen, err := s.Dedup.Get(ctx, key); err != nil {
		s.Log.Warn().Err(err).Str("event_id", env.EventID).Msg("dedup lookup failed, sending anyway")
	} else if seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderShippedPayload](env.Payload)
	if err != nil {
		s.Log.Error().Err(err).Str("event_id", env.EventID).Msg("drop undecodable payload")
		return nil
	}

	msg, err := mail.RenderShipped(p.CustomerEmail, p.CustomerName, mail.ShippedVars{
		OrderID:      p.OrderID,
		Store:        s.storeName(p.StoreID),
		CustomerName: p.CustomerName,
	})
	if err != nil {
		return err
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send shipped email for order %s: %w", p.OrderID, err)
	}

	if err := s.Dedup.Set(ctx, key, "1", redisx.TTLDedup); err != nil {
		s.Log.Warn().Err(err).Str("event_id", env.EventID).Msg("dedup mark failed")
	}
	s.Log.Info().Str("order_id", p.OrderID).Str("event_id", env.EventID).Msg("shipped email sent")
	return nil
}

func (s *Service) storeName(id int64) string {
	if s.StoreName != nil {
		if n := s.StoreName(id); n != "" {
			return n
		}
	}
	return fmt.Sprintf("store #%d", id)
}
