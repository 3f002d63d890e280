package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/filemq/pkg/filemq"
)

func newConsumeCommand(ctx *commandContext) *cobra.Command {
	var (
		concurrency  int
		maxMessages  int64
		pollInterval time.Duration
		rateLimit    float64
		rateBurst    int
	)

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Print and acknowledge messages until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			var (
				mu      sync.Mutex
				handled atomic.Int64
			)
			out := cmd.OutOrStdout()
			handler := func(_ context.Context, msg *filemq.Message) error {
				mu.Lock()
				defer mu.Unlock()
				if _, err := fmt.Fprintf(out, "%s\n", msg.Payload); err != nil {
					return err
				}
				handled.Add(1)
				return nil
			}

			err = q.Consume(cmd.Context(), handler, &filemq.ConsumeOptions{
				Concurrency:  concurrency,
				PollInterval: pollInterval,
				RateLimit:    rateLimit,
				RateBurst:    rateBurst,
				MaxMessages:  maxMessages,
				Logger:       filemq.NewZapLogger(logger.Zap()),
			})
			fmt.Fprintf(cmd.ErrOrStderr(), "Consumed %d messages\n", handled.Load())
			return err
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "n", 1, "Number of workers")
	cmd.Flags().Int64Var(&maxMessages, "max", 0, "Stop after this many messages (0 for no limit)")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 100*time.Millisecond, "Wait between polls of an empty queue")
	cmd.Flags().Float64Var(&rateLimit, "rate", 0, "Maximum messages claimed per second (0 for no limit)")
	cmd.Flags().IntVar(&rateBurst, "burst", 1, "Burst allowed by --rate")
	return cmd
}
