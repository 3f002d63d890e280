package filemq_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/filemq/pkg/filemq"
)

func openQueue(t *testing.T, root string, opts *filemq.Options) *filemq.Queue {
	t.Helper()

	if opts == nil {
		opts = filemq.DefaultOptions()
		opts.SyncWrites = false
	}
	q, err := filemq.Open("orders", root, opts)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return q
}

// TestBasicOperations tests the enqueue, claim, acknowledge cycle using the public API
func TestBasicOperations(t *testing.T) {
	ctx := context.Background()
	q := openQueue(t, t.TempDir(), nil)

	if err := q.EnqueueBytes(ctx, "greeting", []byte("Hello, World!")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.AvailableMessages != 1 {
		t.Errorf("AvailableMessages = %d, want 1", stats.AvailableMessages)
	}

	msg := q.GetMessage(ctx)
	if msg == nil {
		t.Fatal("GetMessage() = nil")
	}
	if string(msg.Payload) != "Hello, World!" {
		t.Errorf("Payload = %s, want 'Hello, World!'", msg.Payload)
	}
	if msg.ID != "greeting" {
		t.Errorf("ID = %s, want greeting", msg.ID)
	}

	if err := q.Acknowledge(ctx, msg.Token); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if !q.IsEmpty(ctx) {
		t.Error("IsEmpty() = false after acknowledging the only message")
	}
}

// TestScenario runs the A/B acknowledge and release sequence end to end
func TestScenario(t *testing.T) {
	ctx := context.Background()
	q := openQueue(t, t.TempDir(), nil)

	for _, id := range []string{"A", "B"} {
		if err := q.EnqueueBytes(ctx, id, []byte(id)); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", id, err)
		}
	}

	a := q.GetMessage(ctx)
	if a == nil || a.ID != "A" {
		t.Fatalf("GetMessage() = %+v, want A", a)
	}
	if err := q.Acknowledge(ctx, a.Token); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}

	b := q.GetMessage(ctx)
	if b == nil || b.ID != "B" {
		t.Fatalf("GetMessage() = %+v, want B", b)
	}
	if err := q.Release(ctx, b.Token); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	again := q.GetMessage(ctx)
	if again == nil || again.ID != "B" {
		t.Fatalf("GetMessage() after release = %+v, want B", again)
	}
}

// TestCrashRecovery abandons a claim and reopens the queue
func TestCrashRecovery(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	first := openQueue(t, root, nil)
	if err := first.EnqueueBytes(ctx, "job", []byte("work")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if first.GetMessage(ctx) == nil {
		t.Fatal("GetMessage() = nil")
	}

	second := openQueue(t, root, nil)
	msg := second.GetMessage(ctx)
	if msg == nil || msg.ID != "job" {
		t.Fatalf("GetMessage() after restart = %+v, want job", msg)
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	q := openQueue(t, t.TempDir(), nil)

	for i := 0; i < 5; i++ {
		if err := q.EnqueueBytes(ctx, filemq.NewMessageID(), []byte("x")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}
	q.GetMessage(ctx)
	q.GetMessage(ctx)

	if err := q.Purge(ctx); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if msg := q.GetMessage(ctx); msg != nil {
		t.Errorf("GetMessage() after Purge = %+v, want nil", msg)
	}
	infos, err := q.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("List() after Purge = %d entries, want 0", len(infos))
	}
}

func TestOpen_ConfigurationError(t *testing.T) {
	_, err := filemq.Open("orders", "", nil)

	var cfgErr *filemq.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Open() error = %v, want *ConfigurationError", err)
	}
}

func TestSentinelErrors(t *testing.T) {
	ctx := context.Background()
	opts := filemq.DefaultOptions()
	opts.SyncWrites = false
	opts.MaxMessageSize = 4
	q := openQueue(t, t.TempDir(), opts)

	if err := q.EnqueueBytes(ctx, "", []byte("x")); !errors.Is(err, filemq.ErrInvalidMessageID) {
		t.Errorf("Enqueue(\"\") error = %v, want ErrInvalidMessageID", err)
	}
	if err := q.EnqueueBytes(ctx, "big", []byte("12345")); !errors.Is(err, filemq.ErrMessageTooLarge) {
		t.Errorf("Enqueue(big) error = %v, want ErrMessageTooLarge", err)
	}
	if err := q.Acknowledge(ctx, "nope"); !errors.Is(err, filemq.ErrInvalidToken) {
		t.Errorf("Acknowledge(nope) error = %v, want ErrInvalidToken", err)
	}
}

func TestNewMessageID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := filemq.NewMessageID()
		if _, err := uuid.Parse(id); err != nil {
			t.Fatalf("NewMessageID() = %q, not a UUID: %v", id, err)
		}
		if seen[id] {
			t.Fatalf("NewMessageID() repeated %q", id)
		}
		seen[id] = true
	}
}

type captureLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *captureLogger) add(level, msg string) {
	l.mu.Lock()
	l.messages = append(l.messages, level+":"+msg)
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, _ ...filemq.LogField) { l.add("debug", msg) }
func (l *captureLogger) Info(msg string, _ ...filemq.LogField)  { l.add("info", msg) }
func (l *captureLogger) Warn(msg string, _ ...filemq.LogField)  { l.add("warn", msg) }
func (l *captureLogger) Error(msg string, _ ...filemq.LogField) { l.add("error", msg) }

func TestCustomLogger(t *testing.T) {
	ctx := context.Background()
	logger := &captureLogger{}
	opts := filemq.DefaultOptions()
	opts.SyncWrites = false
	opts.Logger = logger
	q := openQueue(t, t.TempDir(), opts)

	if err := q.Purge(ctx); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}

	found := false
	for _, m := range logger.messages {
		if m == "info:queue purged" {
			found = true
		}
	}
	if !found {
		t.Errorf("logged %v, want info:queue purged", logger.messages)
	}
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	opts := filemq.DefaultOptions()
	opts.SyncWrites = false
	opts.Logger = filemq.NewZapLogger(zap.New(core))
	q := openQueue(t, t.TempDir(), opts)

	if err := q.Drop(context.Background()); err != nil {
		t.Fatalf("Drop() error = %v", err)
	}

	entries := logs.FilterMessage("queue dropped").All()
	if len(entries) != 1 {
		t.Fatalf("%d 'queue dropped' entries, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["queue"]; got != "orders" {
		t.Errorf("queue field = %v, want orders", got)
	}
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	collector := filemq.NewMetricsCollector("orders")
	opts := filemq.DefaultOptions()
	opts.SyncWrites = false
	opts.MetricsCollector = collector
	q := openQueue(t, t.TempDir(), opts)

	if err := q.EnqueueBytes(ctx, "a", []byte("abc")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	msg := q.GetMessage(ctx)
	if err := q.Release(ctx, msg.Token); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	msg = q.GetMessage(ctx)
	if err := q.Acknowledge(ctx, msg.Token); err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}

	snap := filemq.GetMetricsSnapshot(collector)
	if snap == nil {
		t.Fatal("GetMetricsSnapshot() = nil")
	}
	if snap.EnqueueTotal != 1 || snap.ClaimTotal != 2 || snap.ReleaseTotal != 1 || snap.AcknowledgeTotal != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.EnqueueBytes != 3 {
		t.Errorf("EnqueueBytes = %d, want 3", snap.EnqueueBytes)
	}

	if filemq.GetMetricsSnapshot(filemq.NewOTelMetricsCollector(nil, "orders")) != nil {
		t.Error("GetMetricsSnapshot(otel) != nil")
	}
}

func TestListeners(t *testing.T) {
	ctx := context.Background()
	var received []string
	opts := filemq.DefaultOptions()
	opts.SyncWrites = false
	opts.Listeners = []filemq.Listener{filemq.ListenerFuncs{
		ListenerName: "test",
		Received:     func(e filemq.MessageEvent) { received = append(received, e.MessageID) },
	}}
	q := openQueue(t, t.TempDir(), opts)

	if err := q.EnqueueBytes(ctx, "a", nil); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	q.GetMessage(ctx)

	if len(received) != 1 || received[0] != "a" {
		t.Errorf("received = %v, want [a]", received)
	}
}

func TestConsume(t *testing.T) {
	ctx := context.Background()
	q := openQueue(t, t.TempDir(), nil)

	for _, id := range []string{"one", "two", "three"} {
		if err := q.EnqueueBytes(ctx, id, []byte(strings.ToUpper(id))); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
	}

	var (
		mu  sync.Mutex
		got []string
	)
	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err := q.Consume(runCtx, func(_ context.Context, msg *filemq.Message) error {
		mu.Lock()
		got = append(got, string(msg.Payload))
		mu.Unlock()
		return nil
	}, &filemq.ConsumeOptions{Concurrency: 2, PollInterval: time.Millisecond, MaxMessages: 3})
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if runCtx.Err() != nil {
		t.Fatal("Consume() ran until the timeout")
	}
	if len(got) != 3 {
		t.Errorf("handled %v, want three messages", got)
	}
	if !q.IsEmpty(ctx) {
		t.Error("queue not empty after Consume")
	}
}

func TestConsume_NilHandler(t *testing.T) {
	q := openQueue(t, t.TempDir(), nil)
	if err := q.Consume(context.Background(), nil, nil); err == nil {
		t.Error("Consume(nil) succeeded, want error")
	}
}
