// Package consumer runs a pool of workers that poll a queue, hand each
// claimed message to a handler, and acknowledge or release it depending on
// the handler's result.
//
// Example usage:
//
//	c, err := consumer.New(q, func(ctx context.Context, msg *queue.ReceivedMessage) error {
//	    fmt.Printf("Received: %s\n", msg.Payload)
//	    return nil
//	}, consumer.WithConcurrency(4))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	err = c.Run(ctx)
package consumer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vnykmshr/filemq/internal/logging"
	"github.com/vnykmshr/filemq/internal/queue"
)

const (
	// DefaultPollInterval is how long a worker waits after finding the queue empty.
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultConcurrency is the number of workers started by Run.
	DefaultConcurrency = 1
)

// Handler processes one message. Returning nil acknowledges the message;
// returning an error releases it back to the queue.
type Handler func(ctx context.Context, msg *queue.ReceivedMessage) error

// Source is the part of a queue a consumer drives.
type Source interface {
	GetMessage(ctx context.Context) *queue.ReceivedMessage
	Acknowledge(ctx context.Context, token string) error
	Release(ctx context.Context, token string) error
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithConcurrency sets the number of workers. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithPollInterval sets how long an idle worker waits before polling again.
func WithPollInterval(d time.Duration) Option {
	return func(c *Consumer) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithRateLimit caps claims across all workers at perSecond with the given
// burst. A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Consumer) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMaxMessages stops Run after n messages have been handled. Zero means
// no limit.
func WithMaxMessages(n int64) Option {
	return func(c *Consumer) {
		if n >= 0 {
			c.maxMessages = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// Consumer polls a Source with a fixed pool of workers.
type Consumer struct {
	src     Source
	handler Handler

	concurrency  int
	pollInterval time.Duration
	limiter      *rate.Limiter
	maxMessages  int64
	logger       logging.Logger

	claimed      atomic.Int64
	acknowledged atomic.Int64
	released     atomic.Int64
}

// New returns a consumer for src.
func New(src Source, handler Handler, opts ...Option) (*Consumer, error) {
	if src == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	c := &Consumer{
		src:          src,
		handler:      handler,
		concurrency:  DefaultConcurrency,
		pollInterval: DefaultPollInterval,
		logger:       logging.NoopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run polls until ctx is done, the message limit is reached, or an
// acknowledgement fails. Cancellation and the message limit are a clean
// stop and return nil. A message being handled when ctx is cancelled is
// still acknowledged or released.
func (c *Consumer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for worker := 0; worker < c.concurrency; worker++ {
		g.Go(func() error {
			return c.work(gctx, worker)
		})
	}

	return g.Wait()
}

// Acknowledged returns the number of messages handled successfully.
func (c *Consumer) Acknowledged() int64 { return c.acknowledged.Load() }

// Released returns the number of messages returned to the queue after a
// handler error.
func (c *Consumer) Released() int64 { return c.released.Load() }

func (c *Consumer) work(ctx context.Context, worker int) error {
	timer := time.NewTimer(c.pollInterval)
	timer.Stop()
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		// A worker that finds the limit taken stops alone; peers still
		// handling reserved messages keep their context.
		if !c.reserve() {
			return nil
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				c.unreserve()
				return nil
			}
		}

		msg := c.src.GetMessage(ctx)
		if msg == nil {
			c.unreserve()
			timer.Reset(c.pollInterval)
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}
			continue
		}

		if err := c.handle(ctx, worker, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) handle(ctx context.Context, worker int, msg *queue.ReceivedMessage) error {
	herr := c.callHandler(ctx, msg)

	// Settle the claim even if ctx was cancelled while handling.
	settleCtx := context.WithoutCancel(ctx)

	if herr == nil {
		if err := c.src.Acknowledge(settleCtx, msg.Token); err != nil {
			return fmt.Errorf("acknowledge %s: %w", msg.Token, err)
		}
		c.acknowledged.Add(1)
		return nil
	}

	c.logger.Warn("handler failed, releasing message",
		logging.F("worker", worker),
		logging.F("message_id", msg.MessageID),
		logging.F("error", herr),
	)
	if err := c.src.Release(settleCtx, msg.Token); err != nil {
		c.logger.Error("release failed",
			logging.F("worker", worker),
			logging.F("message_id", msg.MessageID),
			logging.F("error", err),
		)
		return nil
	}
	c.released.Add(1)
	return nil
}

func (c *Consumer) callHandler(ctx context.Context, msg *queue.ReceivedMessage) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return c.handler(ctx, msg)
}

func (c *Consumer) reserve() bool {
	if c.maxMessages == 0 {
		return true
	}
	if c.claimed.Add(1) > c.maxMessages {
		c.claimed.Add(-1)
		return false
	}
	return true
}

func (c *Consumer) unreserve() {
	if c.maxMessages > 0 {
		c.claimed.Add(-1)
	}
}
