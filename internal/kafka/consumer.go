package kafka

import (
	"context"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"sync"
	"time"
)

// Handler returns nil once m is done with. An error makes the consumer retry m.
type Handler func(ctx context.Context, m kafka.Message) error

// Reader is the part of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Retry controls how often a failing message is handed back to the handler
// before the consumer gives up on it.
type Retry struct {
	MaxAttempts int
	Backoff     time.Duration // doubled after each failure
	MaxBackoff  time.Duration
}

var DefaultRetry = Retry{MaxAttempts: 5, Backoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second}

type Consumer struct {
	r       Reader
	workers int
	log     zerolog.Logger

	Retry Retry
}

func NewReader(brokers []string, group, topic string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // commit synchronously after each handled message
	})
}

func NewConsumer(r Reader, workers int, log zerolog.Logger) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log, Retry: DefaultRetry}
}

// Start dispatches messages to the worker pool until ctx is cancelled or
// the reader fails. A partition is always served by the same worker, so its
// messages are handled and committed in offset order. A failing message is
// retried on the spot; once Retry.MaxAttempts is spent it is logged and
// committed so the partition can move on. Cancellation during a retry leaves
// the message uncommitted for the next run.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 2)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if !c.handle(ctx, id, h, m) {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Error().Err(err).Int("worker", id).Int64("offset", m.Offset).Msg("commit message")
				}
			}
		}(i, jobs[i])
	}
	defer wg.Wait()
	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// handle reports whether m may be committed.
func (c *Consumer) handle(ctx context.Context, worker int, h Handler, m kafka.Message) bool {
	attempts := c.Retry.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	wait := c.Retry.Backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		l := c.log.With().Int("worker", worker).Int("partition", m.Partition).Int64("offset", m.Offset).Int("attempt", attempt).Logger()
		if ctx.Err() != nil {
			l.Warn().Err(err).Msg("handler interrupted, message left uncommitted")
			return false
		}
		if attempt >= attempts {
			l.Error().Err(err).Msg("giving up on message")
			return true
		}
		l.Warn().Err(err).Dur("backoff", wait).Msg("handle message, retrying")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return false
		}
		wait *= 2
		if c.Retry.MaxBackoff > 0 && wait > c.Retry.MaxBackoff {
			wait = c.Retry.MaxBackoff
		}
	}
}
