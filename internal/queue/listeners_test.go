package queue

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vnykmshr/filemq/internal/logging"
)

// recordingListener records every notification it receives.
type recordingListener struct {
	name   string
	events []string
}

func (l *recordingListener) Name() string { return l.name }

func (l *recordingListener) OnMessageEnqueued(e MessageEvent) {
	l.events = append(l.events, "enqueued:"+e.MessageID)
}

func (l *recordingListener) OnMessageReceived(e MessageEvent) {
	l.events = append(l.events, "received:"+e.MessageID)
}

func (l *recordingListener) OnMessageAcknowledged(e MessageEvent) {
	l.events = append(l.events, "acknowledged:"+e.MessageID)
}

func (l *recordingListener) OnMessageReleased(e MessageEvent) {
	l.events = append(l.events, "released:"+e.MessageID)
}

func (l *recordingListener) OnOperation(e OperationEvent) {
	l.events = append(l.events, string(e.Operation)+"/"+string(e.Phase))
}

func equalEvents(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestListeners_MessageLifecycle(t *testing.T) {
	q := setupQueue(t, nil)
	l := &recordingListener{name: "recorder"}
	q.AddListener(l)
	ctx := context.Background()

	enqueueMessages(t, q, "a")
	msg := mustGet(t, q)
	assertNoError(t, q.Release(ctx, msg.Token))
	msg = mustGet(t, q)
	mustAck(t, q, msg)

	want := []string{
		"enqueue/starting", "enqueued:a", "enqueue/completed",
		"get_message/starting", "received:a", "get_message/completed",
		"release/starting", "released:a", "release/completed",
		"get_message/starting", "received:a", "get_message/completed",
		"acknowledge/starting", "acknowledged:a", "acknowledge/completed",
	}
	if !equalEvents(l.events, want) {
		t.Errorf("events =\n%v\nwant\n%v", l.events, want)
	}
}

func TestListeners_Cancelled(t *testing.T) {
	q := setupQueue(t, nil)
	l := &recordingListener{name: "recorder"}
	q.AddListener(l)
	ctx := cancelledContext()

	assertNoError(t, q.Purge(ctx))
	_ = q.GetMessage(ctx)

	want := []string{"purge/cancelled", "get_message/cancelled"}
	if !equalEvents(l.events, want) {
		t.Errorf("events = %v, want %v", l.events, want)
	}
}

func TestListeners_RegistrationOrder(t *testing.T) {
	var order []string
	opts := DefaultOptions()
	opts.SyncWrites = false
	for _, name := range []string{"first", "second", "third"} {
		opts.Listeners = append(opts.Listeners, ListenerFuncs{
			ListenerName: name,
			Enqueued:     func(MessageEvent) { order = append(order, name) },
		})
	}
	q := setupQueue(t, opts)

	enqueueMessages(t, q, "a")

	if !equalEvents(order, []string{"first", "second", "third"}) {
		t.Errorf("order = %v", order)
	}
}

func TestListeners_NotCalledUnderLock(t *testing.T) {
	q := setupQueue(t, nil)
	ctx := context.Background()

	var available uint64
	q.AddListener(ListenerFuncs{
		ListenerName: "reentrant",
		// Stats takes the queue lock; this would deadlock if the hook ran
		// while the lock was held.
		Enqueued: func(MessageEvent) {
			stats, err := q.Stats(ctx)
			if err != nil {
				t.Errorf("Stats() error = %v", err)
				return
			}
			available = stats.AvailableMessages
		},
	})

	enqueueMessages(t, q, "a")

	if available != 1 {
		t.Errorf("AvailableMessages seen by listener = %d, want 1", available)
	}
}

func TestListeners_PanicIsRecovered(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	opts := DefaultOptions()
	opts.SyncWrites = false
	opts.Logger = logging.NewZap(zap.New(core))

	var reached bool
	opts.Listeners = []Listener{
		ListenerFuncs{ListenerName: "broken", Enqueued: func(MessageEvent) { panic("boom") }},
		ListenerFuncs{ListenerName: "after", Enqueued: func(MessageEvent) { reached = true }},
	}
	q := setupQueue(t, opts)

	enqueueMessages(t, q, "a")

	if !reached {
		t.Error("listener after the panicking one was not called")
	}
	entries := logs.FilterMessage("listener panicked").All()
	if len(entries) != 1 {
		t.Fatalf("%d panic logs, want 1", len(entries))
	}
	if got := entries[0].ContextMap()["listener"]; got != "broken" {
		t.Errorf("listener field = %v, want broken", got)
	}
}

func TestListeners_Recovery(t *testing.T) {
	root := t.TempDir()
	first := openQueue(t, root, nil)
	enqueueMessages(t, first, "a", "b")
	mustGet(t, first)
	mustGet(t, first)

	var events []RecoveryEvent
	opts := DefaultOptions()
	opts.SyncWrites = false
	opts.Listeners = []Listener{ListenerFuncs{
		ListenerName: "recovery",
		Recovery:     func(e RecoveryEvent) { events = append(events, e) },
	}}
	second := openQueue(t, root, opts)

	mustGet(t, second)
	mustGet(t, second)

	if len(events) != 1 {
		t.Fatalf("%d recovery events, want 1", len(events))
	}
	if events[0].Restored != 2 || events[0].Err != nil {
		t.Errorf("recovery event = %+v, want 2 restored without error", events[0])
	}
}

func TestListeners_NilIgnored(t *testing.T) {
	q := setupQueue(t, nil)
	q.AddListener(nil)
	enqueueMessages(t, q, "a")
}
