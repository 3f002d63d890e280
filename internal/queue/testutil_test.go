package queue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// setupQueue opens a queue named "test" under a fresh temporary root.
func setupQueue(t *testing.T, opts *Options) *Queue {
	t.Helper()
	return openQueue(t, t.TempDir(), opts)
}

// openQueue opens the queue named "test" under root.
func openQueue(t *testing.T, root string, opts *Options) *Queue {
	t.Helper()

	if opts == nil {
		opts = DefaultOptions()
		opts.SyncWrites = false
	}

	q, err := Open("test", root, opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return q
}

// enqueueMessages enqueues each id with the payload "payload-<id>".
func enqueueMessages(t *testing.T, q *Queue, ids ...string) {
	t.Helper()

	for _, id := range ids {
		if err := q.EnqueueBytes(context.Background(), id, []byte("payload-"+id)); err != nil {
			t.Fatalf("Enqueue(%q) error = %v", id, err)
		}
	}
}

// mustGet claims the next message and fails the test if there is none.
func mustGet(t *testing.T, q *Queue) *ReceivedMessage {
	t.Helper()

	msg := q.GetMessage(context.Background())
	if msg == nil {
		t.Fatal("GetMessage() = nil, want a message")
	}
	return msg
}

// mustAck acknowledges msg.
func mustAck(t *testing.T, q *Queue, msg *ReceivedMessage) {
	t.Helper()

	if err := q.Acknowledge(context.Background(), msg.Token); err != nil {
		t.Fatalf("Acknowledge(%q) error = %v", msg.Token, err)
	}
}

// assertNoMessage fails the test if a message can be claimed.
func assertNoMessage(t *testing.T, q *Queue) {
	t.Helper()

	if msg := q.GetMessage(context.Background()); msg != nil {
		t.Fatalf("GetMessage() = %q, want nil", msg.MessageID)
	}
}

// assertNoError fails the test if err is not nil.
func assertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// assertExists fails the test unless path exists.
func assertExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
}

// assertNotExists fails the test if path exists.
func assertNotExists(t *testing.T, path string) {
	t.Helper()

	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stat %s: error = %v, want not exist", path, err)
	}
}

// countFiles returns the number of entries in dir with the given extension.
func countFiles(t *testing.T, dir, ext string) int {
	t.Helper()

	matches, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	if err != nil {
		t.Fatalf("glob %s: %v", dir, err)
	}
	return len(matches)
}

// cancelledContext returns a context that is already done.
func cancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
