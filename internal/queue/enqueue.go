package queue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vnykmshr/filemq/internal/logging"
)

// Enqueue writes the payload read from r as message id. The payload is
// staged in <id>.stream and renamed to <id>.file once fully written, so the
// message is either absent or complete. An available message with the same
// id is replaced. The queue directories are created if missing.
//
// The whole write-then-rename runs under the queue lock, so r is consumed
// while the lock is held.
func (q *Queue) Enqueue(ctx context.Context, id string, r io.Reader) error {
	if q.cancelled(ctx, OpEnqueue, "") {
		return nil
	}
	if err := validateMessageID(id); err != nil {
		return err
	}
	if r == nil {
		return ErrNilReader
	}

	token := id + MessageExtension
	q.lifecycle(OpEnqueue, PhaseStarting, token)
	start := time.Now()

	q.mu.Lock()
	size, err := q.enqueueLocked(id, r)
	q.mu.Unlock()

	if err != nil {
		q.opts.MetricsCollector.RecordEnqueueError()
		q.opts.Logger.Error("enqueue failed",
			logging.F("queue", q.name),
			logging.F("message_id", id),
			logging.F("error", err),
		)
		return err
	}

	q.opts.MetricsCollector.RecordEnqueue(int(size), time.Since(start))
	q.opts.Logger.Debug("message enqueued",
		logging.F("queue", q.name),
		logging.F("message_id", id),
		logging.F("size", size),
	)

	q.listeners.messageEnqueued(MessageEvent{
		Queue:     q.name,
		MessageID: id,
		Token:     token,
		Size:      size,
	})
	q.lifecycle(OpEnqueue, PhaseCompleted, token)
	return nil
}

// EnqueueBytes is Enqueue for an in-memory payload.
func (q *Queue) EnqueueBytes(ctx context.Context, id string, payload []byte) error {
	return q.Enqueue(ctx, id, bytes.NewReader(payload))
}

func (q *Queue) enqueueLocked(id string, r io.Reader) (int64, error) {
	if err := q.createLocked(); err != nil {
		return 0, err
	}
	if err := checkDiskSpace(q.dir, q.opts.MinFreeDiskSpace); err != nil {
		return 0, err
	}

	staging := filepath.Join(q.dir, id+StagingExtension)
	final := filepath.Join(q.dir, id+MessageExtension)

	f, err := os.OpenFile(staging, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, q.opts.FileMode)
	if err != nil {
		return 0, fmt.Errorf("create staging file %s: %w", staging, err)
	}

	size, err := q.writeStaging(f, r)
	if cerr := f.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("close staging file %s: %w", staging, cerr)
	}
	if err != nil {
		_ = os.Remove(staging)
		return 0, err
	}

	// The stamp is applied after close so no later write can move it.
	stamp := q.nextStamp()
	if err := os.Chtimes(staging, stamp, stamp); err != nil {
		_ = os.Remove(staging)
		return 0, fmt.Errorf("stamp staging file %s: %w", staging, err)
	}

	if err := os.Rename(staging, final); err != nil {
		_ = os.Remove(staging)
		return 0, fmt.Errorf("publish message %s: %w", id, err)
	}

	q.syncDirBestEffort(q.dir)
	return size, nil
}

func (q *Queue) writeStaging(f *os.File, r io.Reader) (int64, error) {
	limit := q.opts.MaxMessageSize
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}

	n, err := io.Copy(f, src)
	if err != nil {
		return n, fmt.Errorf("write staging file: %w", err)
	}
	if limit > 0 && n > limit {
		return n, fmt.Errorf("%w: more than %d bytes", ErrMessageTooLarge, limit)
	}

	if q.opts.SyncWrites {
		if err := f.Sync(); err != nil {
			return n, fmt.Errorf("sync staging file: %w", err)
		}
	}
	return n, nil
}

// syncDirBestEffort persists a directory entry change when SyncWrites is on.
// Failure is logged, the rename itself has already taken effect.
func (q *Queue) syncDirBestEffort(dir string) {
	if !q.opts.SyncWrites {
		return
	}
	if err := syncDir(dir); err != nil {
		q.opts.Logger.Warn("sync directory failed",
			logging.F("queue", q.name),
			logging.F("dir", dir),
			logging.F("error", err),
		)
	}
}
