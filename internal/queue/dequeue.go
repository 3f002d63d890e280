package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vnykmshr/filemq/internal/logging"
)

// ReceivedMessage is a claimed message.
type ReceivedMessage struct {
	// MessageID is the id the message was enqueued with.
	MessageID string

	// Token identifies the in-flight message for Acknowledge and Release.
	Token string

	// Payload is the message content.
	Payload []byte

	// Timestamp is the ordering timestamp the message carried when claimed.
	Timestamp time.Time
}

// claim is a message moved into the journal but not yet read.
type claim struct {
	token     string
	path      string
	timestamp time.Time
}

// GetMessage claims the oldest available message and returns it, or nil if
// none is available. The claimed file is moved into the journal before its
// content is read, so a crash after the move leaves the claim recorded for
// recovery.
//
// The first call on a Queue returns in-flight messages left by a previous
// instance to the available directory before claiming.
//
// File system faults are logged and reported as "no message" so a polling
// consumer keeps going.
func (q *Queue) GetMessage(ctx context.Context) *ReceivedMessage {
	if q.cancelled(ctx, OpGetMessage, "") {
		return nil
	}
	q.lifecycle(OpGetMessage, PhaseStarting, "")
	start := time.Now()

	q.mu.Lock()
	recovery, recovered := q.reconcileLocked()
	c, err := q.claimLocked()
	q.mu.Unlock()

	if recovered {
		q.listeners.recovery(recovery)
	}

	if err != nil {
		q.opts.MetricsCollector.RecordClaimError()
		q.opts.Logger.Warn("claim failed",
			logging.F("queue", q.name),
			logging.F("error", err),
		)
		q.lifecycle(OpGetMessage, PhaseCompleted, "")
		return nil
	}
	if c == nil {
		q.lifecycle(OpGetMessage, PhaseCompleted, "")
		return nil
	}

	payload, err := os.ReadFile(c.path)
	if err != nil {
		q.opts.MetricsCollector.RecordClaimError()
		q.opts.Logger.Warn("read claimed message failed",
			logging.F("queue", q.name),
			logging.F("token", c.token),
			logging.F("error", err),
		)
		q.rollbackClaim(c)
		q.lifecycle(OpGetMessage, PhaseCompleted, "")
		return nil
	}

	msg := &ReceivedMessage{
		MessageID: messageIDFromToken(c.token),
		Token:     c.token,
		Payload:   payload,
		Timestamp: c.timestamp,
	}

	q.opts.MetricsCollector.RecordClaim(len(payload), time.Since(start))
	q.listeners.messageReceived(MessageEvent{
		Queue:     q.name,
		MessageID: msg.MessageID,
		Token:     msg.Token,
		Size:      int64(len(payload)),
	})
	q.lifecycle(OpGetMessage, PhaseCompleted, c.token)
	return msg
}

// claimLocked moves the oldest available message into the journal.
// Returns nil without error when nothing is available. Caller must hold q.mu.
func (q *Queue) claimLocked() (*claim, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list queue directory %s: %w", q.dir, err)
	}

	var (
		oldest   string
		oldestAt time.Time
	)
	// ReadDir returns entries sorted by name, so the first of several equal
	// timestamps wins.
	for _, entry := range entries {
		if !isMessageFile(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed since the listing.
			continue
		}
		if oldest == "" || info.ModTime().Before(oldestAt) {
			oldest = entry.Name()
			oldestAt = info.ModTime()
		}
	}
	if oldest == "" {
		return nil, nil
	}

	src := filepath.Join(q.dir, oldest)
	dst := filepath.Join(q.journalDir, oldest)
	if err := os.Rename(src, dst); err != nil {
		return nil, fmt.Errorf("move %s to journal: %w", oldest, err)
	}
	q.syncDirBestEffort(q.journalDir)

	return &claim{token: oldest, path: dst, timestamp: oldestAt}, nil
}

// rollbackClaim returns a claimed message that could not be read to the
// available directory. A message re-enqueued under the same id in the
// meantime is left alone; the journal copy then waits for recovery.
func (q *Queue) rollbackClaim(c *claim) {
	q.mu.Lock()
	defer q.mu.Unlock()

	dst := filepath.Join(q.dir, c.token)
	if !dirExists(q.dir) {
		return
	}
	if _, err := os.Lstat(dst); err == nil {
		return
	}
	if err := os.Rename(c.path, dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		q.opts.Logger.Warn("return unreadable claim failed",
			logging.F("queue", q.name),
			logging.F("token", c.token),
			logging.F("error", err),
		)
	}
}

func messageIDFromToken(token string) string {
	return strings.TrimSuffix(token, MessageExtension)
}
