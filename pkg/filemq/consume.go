package filemq

import (
	"context"
	"time"

	"github.com/vnykmshr/filemq/internal/consumer"
	"github.com/vnykmshr/filemq/internal/queue"
)

// Handler processes one claimed message. Returning nil acknowledges it;
// returning an error releases it to the back of the queue.
type Handler func(ctx context.Context, msg *Message) error

// ConsumeOptions configures Consume.
type ConsumeOptions struct {
	// Concurrency is the number of workers.
	// Default: 1
	Concurrency int

	// PollInterval is how long an idle worker waits before polling again.
	// Default: 100ms
	PollInterval time.Duration

	// RateLimit caps claims per second across all workers, 0 for no limit.
	RateLimit float64

	// RateBurst is the token bucket burst when RateLimit is set.
	// Default: 1
	RateBurst int

	// MaxMessages stops Consume after this many messages, 0 for no limit.
	MaxMessages int64

	// Logger for worker diagnostics (nil = no logging)
	Logger Logger
}

// Consume runs handler over the queue until ctx is done, MaxMessages have
// been handled, or an acknowledgement fails. Cancellation is a clean stop
// and returns nil.
//
// Example usage:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//
//	err := q.Consume(ctx, func(ctx context.Context, msg *filemq.Message) error {
//	    fmt.Printf("Received: %s\n", msg.Payload)
//	    return nil
//	}, nil)
func (q *Queue) Consume(ctx context.Context, handler Handler, opts *ConsumeOptions) error {
	if opts == nil {
		opts = &ConsumeOptions{}
	}

	var inner consumer.Handler
	if handler != nil {
		inner = func(ctx context.Context, msg *queue.ReceivedMessage) error {
			return handler(ctx, &Message{
				ID:        msg.MessageID,
				Token:     msg.Token,
				Payload:   msg.Payload,
				Timestamp: msg.Timestamp,
			})
		}
	}

	c, err := consumer.New(q.q, inner,
		consumer.WithConcurrency(opts.Concurrency),
		consumer.WithPollInterval(opts.PollInterval),
		consumer.WithRateLimit(opts.RateLimit, opts.RateBurst),
		consumer.WithMaxMessages(opts.MaxMessages),
		consumer.WithLogger(convertLogger(opts.Logger)),
	)
	if err != nil {
		return err
	}
	return c.Run(ctx)
}
