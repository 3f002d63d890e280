package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/filemq/internal/logging"
)

func TestGetMessage_Empty(t *testing.T) {
	q := setupQueue(t, nil)
	assertNoMessage(t, q)
}

func TestGetMessage_FIFO(t *testing.T) {
	q := setupQueue(t, nil)

	ids := make([]string, 20)
	for i := range ids {
		// Names sort in the opposite order to arrival.
		ids[i] = fmt.Sprintf("m%02d", len(ids)-i)
	}
	enqueueMessages(t, q, ids...)

	for _, want := range ids {
		msg := mustGet(t, q)
		if msg.MessageID != want {
			t.Fatalf("GetMessage() = %q, want %q", msg.MessageID, want)
		}
		mustAck(t, q, msg)
	}
	assertNoMessage(t, q)
}

func TestGetMessage_MovesToJournal(t *testing.T) {
	q := setupQueue(t, nil)
	enqueueMessages(t, q, "a")

	msg := mustGet(t, q)

	assertNotExists(t, filepath.Join(q.Dir(), msg.Token))
	assertExists(t, filepath.Join(q.JournalDir(), msg.Token))
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
}

func TestGetMessage_Scenario(t *testing.T) {
	q := setupQueue(t, nil)
	enqueueMessages(t, q, "A", "B")

	a := mustGet(t, q)
	if a.MessageID != "A" {
		t.Fatalf("first GetMessage() = %q, want A", a.MessageID)
	}
	mustAck(t, q, a)

	b := mustGet(t, q)
	if b.MessageID != "B" {
		t.Fatalf("second GetMessage() = %q, want B", b.MessageID)
	}
	assertNoError(t, q.Release(context.Background(), b.Token))

	again := mustGet(t, q)
	if again.MessageID != "B" {
		t.Fatalf("GetMessage() after release = %q, want B", again.MessageID)
	}
	if string(again.Payload) != "payload-B" {
		t.Errorf("Payload = %q, want payload-B", again.Payload)
	}
}

func TestRelease_RequeuesAtBack(t *testing.T) {
	q := setupQueue(t, nil)
	enqueueMessages(t, q, "A")

	a := mustGet(t, q)
	enqueueMessages(t, q, "B")
	assertNoError(t, q.Release(context.Background(), a.Token))

	if got := mustGet(t, q); got.MessageID != "B" {
		t.Fatalf("GetMessage() = %q, want B ahead of released A", got.MessageID)
	}
	got := mustGet(t, q)
	if got.MessageID != "A" {
		t.Fatalf("GetMessage() = %q, want A", got.MessageID)
	}
	if !got.Timestamp.After(a.Timestamp) {
		t.Errorf("released Timestamp = %v, want after original %v", got.Timestamp, a.Timestamp)
	}
}

func TestRelease_NotInFlightIsNoop(t *testing.T) {
	q := setupQueue(t, nil)
	enqueueMessages(t, q, "a")
	msg := mustGet(t, q)
	mustAck(t, q, msg)

	assertNoError(t, q.Release(context.Background(), msg.Token))
	assertNoError(t, q.Release(context.Background(), "never-seen"+MessageExtension))
	assertNoMessage(t, q)
}

func TestRelease_AfterDropIsNoop(t *testing.T) {
	q := setupQueue(t, nil)
	enqueueMessages(t, q, "a")
	msg := mustGet(t, q)

	assertNoError(t, q.Drop(context.Background()))
	assertNoError(t, q.Release(context.Background(), msg.Token))

	assertNotExists(t, q.Dir())
}

func TestRelease_ReplacesReenqueuedMessage(t *testing.T) {
	q := setupQueue(t, nil)
	ctx := context.Background()
	assertNoError(t, q.EnqueueBytes(ctx, "a", []byte("old")))
	msg := mustGet(t, q)

	assertNoError(t, q.EnqueueBytes(ctx, "a", []byte("new")))
	assertNoError(t, q.Release(ctx, msg.Token))

	if n := countFiles(t, q.Dir(), MessageExtension); n != 1 {
		t.Fatalf("%d message files, want 1", n)
	}
	if got := mustGet(t, q); string(got.Payload) != "old" {
		t.Errorf("Payload = %q, want the released content", got.Payload)
	}
}

func TestAcknowledge_Terminal(t *testing.T) {
	root := t.TempDir()
	q := openQueue(t, root, nil)
	enqueueMessages(t, q, "only")

	msg := mustGet(t, q)
	mustAck(t, q, msg)

	if !q.IsEmpty(context.Background()) {
		t.Error("IsEmpty() = false after acknowledging the only message")
	}
	assertNotExists(t, filepath.Join(q.JournalDir(), msg.Token))

	reopened := openQueue(t, root, nil)
	assertNoMessage(t, reopened)
}

func TestAcknowledge_Twice(t *testing.T) {
	q := setupQueue(t, nil)
	enqueueMessages(t, q, "a")
	msg := mustGet(t, q)
	mustAck(t, q, msg)

	err := q.Acknowledge(context.Background(), msg.Token)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("second Acknowledge() error = %v, want fs.ErrNotExist", err)
	}
}

func TestAcknowledge_AvailableMessageIsNotInFlight(t *testing.T) {
	q := setupQueue(t, nil)
	enqueueMessages(t, q, "a")

	err := q.Acknowledge(context.Background(), "a"+MessageExtension)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Acknowledge() error = %v, want fs.ErrNotExist", err)
	}
	assertExists(t, filepath.Join(q.Dir(), "a"+MessageExtension))
}

func TestInvalidToken(t *testing.T) {
	q := setupQueue(t, nil)
	ctx := context.Background()

	for _, token := range []string{"", "a", "a.stream", MessageExtension, "../x.file", "a/b.file", "..file"} {
		if err := q.Acknowledge(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Acknowledge(%q) error = %v, want ErrInvalidToken", token, err)
		}
		if err := q.Release(ctx, token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Release(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestGetMessage_SwallowsClaimFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	opts := DefaultOptions()
	opts.SyncWrites = false
	opts.Logger = logging.NewZap(zap.New(core))
	q := setupQueue(t, opts)
	enqueueMessages(t, q, "a")

	// Without a journal the claim cannot be recorded.
	assertNoError(t, os.RemoveAll(q.JournalDir()))

	if msg := q.GetMessage(context.Background()); msg != nil {
		t.Fatalf("GetMessage() = %q, want nil", msg.MessageID)
	}
	assertExists(t, filepath.Join(q.Dir(), "a"+MessageExtension))

	if n := logs.FilterMessage("claim failed").Len(); n != 1 {
		t.Errorf("%d claim failure logs, want 1", n)
	}

	// The queue recovers once the journal is back.
	assertNoError(t, q.Create(context.Background()))
	if msg := mustGet(t, q); msg.MessageID != "a" {
		t.Errorf("GetMessage() = %q, want a", msg.MessageID)
	}
}

func TestGetMessage_EqualTimestampsOrderedByName(t *testing.T) {
	q := setupQueue(t, nil)
	enqueueMessages(t, q, "c", "a", "b")

	same := time.Now().Add(-time.Minute)
	for _, id := range []string{"a", "b", "c"} {
		path := filepath.Join(q.Dir(), id+MessageExtension)
		assertNoError(t, os.Chtimes(path, same, same))
	}

	for _, want := range []string{"a", "b", "c"} {
		if got := mustGet(t, q); got.MessageID != want {
			t.Fatalf("GetMessage() = %q, want %q", got.MessageID, want)
		}
	}
}
