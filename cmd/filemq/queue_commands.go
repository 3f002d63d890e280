package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vnykmshr/filemq/pkg/filemq"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create the queue directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue()
			if err != nil {
				return err
			}
			if err := q.Create(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queue %s ready at %s\n", q.Name(), q.Dir())
			return nil
		},
	}
}

func newDropCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drop",
		Short: "Delete the queue and every message in it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue()
			if err != nil {
				return err
			}
			if err := q.Drop(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dropped queue %s\n", q.Name())
			return nil
		},
	}
}

func newPurgeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove every message, leaving an empty queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue()
			if err != nil {
				return err
			}
			if err := q.Purge(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged queue %s\n", q.Name())
			return nil
		},
	}
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var (
		id   string
		file string
	)

	cmd := &cobra.Command{
		Use:   "enqueue [payload]",
		Short: "Add a message from an argument, a file, or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 && file != "" {
				return fmt.Errorf("a payload argument cannot be combined with --file")
			}

			q, err := ctx.openQueue()
			if err != nil {
				return err
			}

			var r io.Reader
			switch {
			case len(args) == 1:
				r = strings.NewReader(args[0])
			case file != "" && file != "-":
				f, err := os.Open(file) //nolint:gosec // G304: user-selected payload file
				if err != nil {
					return fmt.Errorf("open payload: %w", err)
				}
				defer f.Close()
				r = f
			default:
				r = cmd.InOrStdin()
			}

			if strings.TrimSpace(id) == "" {
				id = filemq.NewMessageID()
			}
			if err := q.Enqueue(cmd.Context(), id, r); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Message id (default: a random UUID)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the payload from this file ('-' for stdin)")
	return cmd
}

type receivedMessage struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Timestamp time.Time `json:"timestamp"`
	Payload   string    `json:"payload"`
	Settled   string    `json:"settled,omitempty"`
}

func newReceiveCommand(ctx *commandContext) *cobra.Command {
	var (
		ack      bool
		release  bool
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Claim the oldest message and print it",
		Long: "Claim the oldest message and print its payload to stdout.\n" +
			"Without --ack or --release the message stays in flight until\n" +
			"`filemq ack` or `filemq release` is run with its token. Each\n" +
			"invocation opens the queue afresh, so the next receive first\n" +
			"returns unsettled messages to the queue.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue()
			if err != nil {
				return err
			}

			msg := q.GetMessage(cmd.Context())
			if msg == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "No message available")
				return nil
			}

			out := receivedMessage{
				ID:        msg.ID,
				Token:     msg.Token,
				Timestamp: msg.Timestamp,
				Payload:   string(msg.Payload),
			}
			switch {
			case ack:
				if err := q.Acknowledge(cmd.Context(), msg.Token); err != nil {
					return err
				}
				out.Settled = "acknowledged"
			case release:
				if err := q.Release(cmd.Context(), msg.Token); err != nil {
					return err
				}
				out.Settled = "released"
			}

			if jsonMode {
				return writeJSON(cmd, out)
			}

			status := cmd.ErrOrStderr()
			fmt.Fprintf(status, "id: %s\n", out.ID)
			fmt.Fprintf(status, "token: %s\n", out.Token)
			if out.Settled != "" {
				fmt.Fprintf(status, "settled: %s\n", out.Settled)
			}
			_, err = cmd.OutOrStdout().Write(msg.Payload)
			return err
		},
	}

	cmd.Flags().BoolVar(&ack, "ack", false, "Acknowledge the message after printing it")
	cmd.Flags().BoolVar(&release, "release", false, "Release the message back to the queue after printing it")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print the message as JSON")
	cmd.MarkFlagsMutuallyExclusive("ack", "release")
	return cmd
}

func newAckCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "ack <token>",
		Short: "Acknowledge an in-flight message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue()
			if err != nil {
				return err
			}
			if err := q.Acknowledge(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Acknowledged %s\n", args[0])
			return nil
		},
	}
}

func newReleaseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "release <token>",
		Short: "Return an in-flight message to the back of the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue()
			if err != nil {
				return err
			}
			if err := q.Release(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Released %s\n", args[0])
			return nil
		},
	}
}

type statsOutput struct {
	Queue             string    `json:"queue"`
	Dir               string    `json:"dir"`
	AvailableMessages uint64    `json:"available_messages"`
	AvailableBytes    uint64    `json:"available_bytes"`
	InFlightMessages  uint64    `json:"in_flight_messages"`
	InFlightBytes     uint64    `json:"in_flight_bytes"`
	StagingFiles      int       `json:"staging_files"`
	OldestAvailable   time.Time `json:"oldest_available"`
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show message counts and sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue()
			if err != nil {
				return err
			}
			stats, err := q.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonMode {
				return writeJSON(cmd, statsOutput{
					Queue:             stats.Queue,
					Dir:               stats.Dir,
					AvailableMessages: stats.AvailableMessages,
					AvailableBytes:    stats.AvailableBytes,
					InFlightMessages:  stats.InFlightMessages,
					InFlightBytes:     stats.InFlightBytes,
					StagingFiles:      stats.StagingFiles,
					OldestAvailable:   stats.OldestAvailable,
				})
			}

			rows := [][]string{
				{"Queue", stats.Queue},
				{"Directory", stats.Dir},
				{"Available messages", strconv.FormatUint(stats.AvailableMessages, 10)},
				{"Available bytes", strconv.FormatUint(stats.AvailableBytes, 10)},
				{"In-flight messages", strconv.FormatUint(stats.InFlightMessages, 10)},
				{"In-flight bytes", strconv.FormatUint(stats.InFlightBytes, 10)},
				{"Staging files", strconv.Itoa(stats.StagingFiles)},
				{"Oldest available", formatTime(stats.OldestAvailable)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print statistics as JSON")
	return cmd
}

type messageOutput struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
	InFlight  bool      `json:"in_flight"`
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available and in-flight messages in claim order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := ctx.openQueue()
			if err != nil {
				return err
			}
			messages, err := q.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonMode {
				entries := make([]messageOutput, 0, len(messages))
				for _, m := range messages {
					entries = append(entries, messageOutput{
						ID:        m.MessageID,
						Token:     m.Token,
						Size:      m.Size,
						Timestamp: m.Timestamp,
						InFlight:  m.InFlight,
					})
				}
				return writeJSON(cmd, entries)
			}

			out := cmd.OutOrStdout()
			if len(messages) == 0 {
				fmt.Fprintln(out, "Queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(messages))
			for _, m := range messages {
				state := "available"
				if m.InFlight {
					state = "in flight"
				}
				rows = append(rows, []string{
					m.MessageID,
					state,
					strconv.FormatInt(m.Size, 10),
					formatTime(m.Timestamp),
				})
			}
			headers := []string{"ID", "State", "Size", "Timestamp"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonMode, "json", false, "Print messages as JSON")
	return cmd
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.RFC3339Nano)
}
