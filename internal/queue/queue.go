// Package queue provides a durable, directory-backed message queue.
//
// Each message is one file. A queue named "orders" under root "/var/mq" keeps
// available messages in /var/mq/orders/<id>.file and claimed (in-flight)
// messages in /var/mq/orders/journal/<id>.file. Every state change is a
// single rename, so a message is never visible under its final name in both
// directories and never visible half-written.
//
// Basic usage:
//
//	q, err := queue.Open("orders", "/var/mq", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := q.Enqueue(ctx, "order-1", strings.NewReader("payload")); err != nil {
//	    log.Fatal(err)
//	}
//
//	msg := q.GetMessage(ctx)
//	if msg != nil {
//	    // process msg.Payload, then
//	    _ = q.Acknowledge(ctx, msg.Token) // or q.Release(ctx, msg.Token)
//	}
//
// All mutating operations on one Queue serialize on a mutex owned by that
// Queue. Separate processes sharing a directory are not mutually excluded.
package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vnykmshr/filemq/internal/logging"
)

const (
	// MessageExtension is the extension of available and in-flight message files.
	MessageExtension = ".file"

	// StagingExtension is the extension of files being written by Enqueue.
	StagingExtension = ".stream"

	// JournalDirName is the name of the in-flight directory inside the queue directory.
	JournalDirName = "journal"

	// stampStep is the minimum distance between two timestamps issued by one
	// queue, coarse enough to survive filesystems with microsecond mtimes.
	stampStep = time.Microsecond
)

// Queue is a durable message queue stored in a pair of directories.
type Queue struct {
	opts *Options

	name       string
	root       string
	dir        string
	journalDir string

	// mu serializes every operation that reads directory state and then
	// moves or writes files.
	mu sync.Mutex

	// reconciled is set once the journal has been returned to the queue.
	reconciled bool

	// lastStamp is the most recent timestamp given to a message file.
	lastStamp time.Time

	listeners *registry
}

// Open returns the queue named name stored under root, creating its
// directories if needed. Invalid names, roots or options are reported as
// *ConfigurationError.
func Open(name, root string, opts *Options) (*Queue, error) {
	if err := validateQueueName(name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(root) == "" {
		return nil, configError("path", "is required", nil)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, configError("path", "cannot be resolved", err)
	}

	if opts == nil {
		opts = DefaultOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, configError("options", "are invalid", err)
	}
	opts = opts.withDefaults()

	dir := filepath.Join(absRoot, name)
	q := &Queue{
		opts:       opts,
		name:       name,
		root:       absRoot,
		dir:        dir,
		journalDir: filepath.Join(dir, JournalDirName),
		listeners:  newRegistry(opts.Logger),
	}
	for _, l := range opts.Listeners {
		q.listeners.register(l)
	}

	if err := q.Create(context.Background()); err != nil {
		return nil, err
	}

	return q, nil
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Root returns the absolute root path the queue lives under.
func (q *Queue) Root() string { return q.root }

// Dir returns the available-message directory.
func (q *Queue) Dir() string { return q.dir }

// JournalDir returns the in-flight directory.
func (q *Queue) JournalDir() string { return q.journalDir }

// AddListener registers l for notifications. Listeners are called in
// registration order.
func (q *Queue) AddListener(l Listener) {
	q.listeners.register(l)
}

// Create ensures both directories exist. Existing files are left alone.
func (q *Queue) Create(ctx context.Context) error {
	if q.cancelled(ctx, OpCreate, "") {
		return nil
	}
	q.lifecycle(OpCreate, PhaseStarting, "")

	q.mu.Lock()
	err := q.createLocked()
	q.mu.Unlock()

	if err != nil {
		q.opts.Logger.Error("create queue failed",
			logging.F("queue", q.name),
			logging.F("error", err),
		)
		return err
	}

	q.lifecycle(OpCreate, PhaseCompleted, "")
	return nil
}

// Drop removes both directories and every message in them, available or
// in flight. Dropping a missing queue is not an error.
func (q *Queue) Drop(ctx context.Context) error {
	if q.cancelled(ctx, OpDrop, "") {
		return nil
	}
	q.lifecycle(OpDrop, PhaseStarting, "")

	q.mu.Lock()
	err := q.dropLocked()
	q.mu.Unlock()

	if err != nil {
		q.opts.Logger.Error("drop queue failed",
			logging.F("queue", q.name),
			logging.F("error", err),
		)
		return err
	}

	q.opts.Logger.Info("queue dropped", logging.F("queue", q.name))
	q.lifecycle(OpDrop, PhaseCompleted, "")
	return nil
}

// Purge discards all messages and leaves the queue usable.
func (q *Queue) Purge(ctx context.Context) error {
	if q.cancelled(ctx, OpPurge, "") {
		return nil
	}
	q.lifecycle(OpPurge, PhaseStarting, "")

	q.mu.Lock()
	err := q.dropLocked()
	if err == nil {
		err = q.createLocked()
	}
	q.mu.Unlock()

	if err != nil {
		q.opts.Logger.Error("purge queue failed",
			logging.F("queue", q.name),
			logging.F("error", err),
		)
		return err
	}

	q.opts.Logger.Info("queue purged", logging.F("queue", q.name))
	q.lifecycle(OpPurge, PhaseCompleted, "")
	return nil
}

// IsEmpty reports whether no message is available to claim. In-flight
// messages are not counted. The answer is advisory: it does not take the
// queue lock and may race with a concurrent claim. A cancelled context or an
// unreadable directory reports true.
func (q *Queue) IsEmpty(ctx context.Context) bool {
	if q.cancelled(ctx, OpIsEmpty, "") {
		return true
	}

	entries, err := os.ReadDir(q.dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			q.opts.Logger.Warn("read queue directory failed",
				logging.F("queue", q.name),
				logging.F("error", err),
			)
		}
		return true
	}

	for _, entry := range entries {
		if isMessageFile(entry) {
			return false
		}
	}
	return true
}

func (q *Queue) createLocked() error {
	if err := os.MkdirAll(q.dir, q.opts.DirMode); err != nil {
		return fmt.Errorf("create queue directory %s: %w", q.dir, err)
	}
	if err := os.MkdirAll(q.journalDir, q.opts.DirMode); err != nil {
		return fmt.Errorf("create journal directory %s: %w", q.journalDir, err)
	}
	return nil
}

func (q *Queue) dropLocked() error {
	if err := os.RemoveAll(q.journalDir); err != nil {
		return fmt.Errorf("remove journal directory %s: %w", q.journalDir, err)
	}
	if err := os.RemoveAll(q.dir); err != nil {
		return fmt.Errorf("remove queue directory %s: %w", q.dir, err)
	}
	return nil
}

// nextStamp returns a timestamp strictly after every stamp this queue has
// issued so far. Caller must hold q.mu.
func (q *Queue) nextStamp() time.Time {
	now := time.Now().Truncate(stampStep)
	if !now.After(q.lastStamp) {
		now = q.lastStamp.Add(stampStep)
	}
	q.lastStamp = now
	return now
}

// cancelled reports whether ctx is already done, emitting the cancellation
// notification if so.
func (q *Queue) cancelled(ctx context.Context, op Operation, token string) bool {
	if ctx.Err() == nil {
		return false
	}
	q.opts.Logger.Debug("operation cancelled",
		logging.F("queue", q.name),
		logging.F("operation", string(op)),
	)
	q.lifecycle(op, PhaseCancelled, token)
	return true
}

func (q *Queue) lifecycle(op Operation, phase Phase, token string) {
	q.listeners.operation(OperationEvent{
		Queue:     q.name,
		Operation: op,
		Phase:     phase,
		Token:     token,
	})
}

func isMessageFile(entry fs.DirEntry) bool {
	return entry.Type().IsRegular() && filepath.Ext(entry.Name()) == MessageExtension
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
