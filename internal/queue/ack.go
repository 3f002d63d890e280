package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vnykmshr/filemq/internal/logging"
)

// Acknowledge permanently removes the in-flight message identified by token.
// Acknowledging a message that is no longer in flight, for example twice,
// returns an error wrapping fs.ErrNotExist.
func (q *Queue) Acknowledge(ctx context.Context, token string) error {
	if q.cancelled(ctx, OpAcknowledge, token) {
		return nil
	}
	if err := validateToken(token); err != nil {
		return err
	}
	q.lifecycle(OpAcknowledge, PhaseStarting, token)
	start := time.Now()

	path := filepath.Join(q.journalDir, token)

	q.mu.Lock()
	err := os.Remove(path)
	q.mu.Unlock()

	if err != nil {
		q.opts.MetricsCollector.RecordAcknowledgeError()
		q.opts.Logger.Error("acknowledge failed",
			logging.F("queue", q.name),
			logging.F("token", token),
			logging.F("error", err),
		)
		return fmt.Errorf("acknowledge %s: %w", token, err)
	}

	q.opts.MetricsCollector.RecordAcknowledge(time.Since(start))
	q.listeners.messageAcknowledged(MessageEvent{
		Queue:     q.name,
		MessageID: messageIDFromToken(token),
		Token:     token,
		Size:      -1,
	})
	q.lifecycle(OpAcknowledge, PhaseCompleted, token)
	return nil
}

// Release returns the in-flight message identified by token to the
// available directory with a fresh timestamp, placing it behind every
// message already waiting. It silently does nothing when the message is no
// longer in flight or the queue has been dropped. An available message
// re-enqueued under the same id while this one was in flight is replaced.
func (q *Queue) Release(ctx context.Context, token string) error {
	if q.cancelled(ctx, OpRelease, token) {
		return nil
	}
	if err := validateToken(token); err != nil {
		return err
	}
	q.lifecycle(OpRelease, PhaseStarting, token)
	start := time.Now()

	q.mu.Lock()
	released, err := q.releaseLocked(token)
	q.mu.Unlock()

	if err != nil {
		q.opts.MetricsCollector.RecordReleaseError()
		q.opts.Logger.Error("release failed",
			logging.F("queue", q.name),
			logging.F("token", token),
			logging.F("error", err),
		)
		return err
	}

	if !released {
		q.opts.Logger.Debug("release skipped, message not in flight",
			logging.F("queue", q.name),
			logging.F("token", token),
		)
		q.lifecycle(OpRelease, PhaseCompleted, token)
		return nil
	}

	q.opts.MetricsCollector.RecordRelease(time.Since(start))
	q.listeners.messageReleased(MessageEvent{
		Queue:     q.name,
		MessageID: messageIDFromToken(token),
		Token:     token,
		Size:      -1,
	})
	q.lifecycle(OpRelease, PhaseCompleted, token)
	return nil
}

// releaseLocked reports whether the message was moved. Caller must hold q.mu.
func (q *Queue) releaseLocked(token string) (bool, error) {
	if !dirExists(q.dir) {
		return false, nil
	}

	src := filepath.Join(q.journalDir, token)
	dst := filepath.Join(q.dir, token)

	// Stamp before the move so the message never appears available with
	// its old position.
	stamp := q.nextStamp()
	if err := os.Chtimes(src, stamp, stamp); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stamp released message %s: %w", token, err)
	}

	if err := os.Rename(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("release %s: %w", token, err)
	}

	q.syncDirBestEffort(q.dir)
	return true, nil
}
