package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/vnykmshr/filemq/internal/logging"
)

// Operation names a queue operation in lifecycle notifications.
type Operation string

const (
	OpCreate      Operation = "create"
	OpDrop        Operation = "drop"
	OpPurge       Operation = "purge"
	OpIsEmpty     Operation = "is_empty"
	OpEnqueue     Operation = "enqueue"
	OpGetMessage  Operation = "get_message"
	OpAcknowledge Operation = "acknowledge"
	OpRelease     Operation = "release"
	OpStats       Operation = "stats"
	OpList        Operation = "list"
)

// Phase is the point in an operation's life a notification describes.
type Phase string

const (
	PhaseStarting  Phase = "starting"
	PhaseCompleted Phase = "completed"
	PhaseCancelled Phase = "cancelled"
)

// MessageEvent describes a message state transition that has committed.
type MessageEvent struct {
	Queue     string
	MessageID string

	// Token is the message file name, the handle used by Acknowledge and Release.
	Token string

	// Size is the payload size in bytes when known, otherwise -1.
	Size int64
}

// OperationEvent describes the start, completion or cancellation of an operation.
type OperationEvent struct {
	Queue     string
	Operation Operation
	Phase     Phase

	// Token is the message file name the operation concerns, empty for
	// directory-level operations.
	Token string
}

// RecoveryEvent describes a completed reconciliation pass.
type RecoveryEvent struct {
	Queue    string
	Restored int
	Duration time.Duration
	Err      error
}

// Listener is the base interface for queue observers. A listener opts into
// notifications by also implementing one or more of the hook interfaces
// below. Hooks run synchronously, in registration order, after the state
// change has committed and never while the queue lock is held.
type Listener interface {
	Name() string
}

// MessageEnqueued is called after a message becomes available.
type MessageEnqueued interface {
	OnMessageEnqueued(MessageEvent)
}

// MessageReceived is called after a message is claimed into the journal.
type MessageReceived interface {
	OnMessageReceived(MessageEvent)
}

// MessageAcknowledged is called after an in-flight message is deleted.
type MessageAcknowledged interface {
	OnMessageAcknowledged(MessageEvent)
}

// MessageReleased is called after an in-flight message is returned to the
// available directory.
type MessageReleased interface {
	OnMessageReleased(MessageEvent)
}

// OperationObserver receives lifecycle notifications for every operation.
type OperationObserver interface {
	OnOperation(OperationEvent)
}

// RecoveryObserver is called after a reconciliation pass runs.
type RecoveryObserver interface {
	OnRecovery(RecoveryEvent)
}

// ListenerFuncs adapts plain functions to the hook interfaces. Nil fields
// are skipped.
type ListenerFuncs struct {
	ListenerName string

	Enqueued     func(MessageEvent)
	Received     func(MessageEvent)
	Acknowledged func(MessageEvent)
	Released     func(MessageEvent)
	Operation    func(OperationEvent)
	Recovery     func(RecoveryEvent)
}

func (f ListenerFuncs) Name() string { return f.ListenerName }

func (f ListenerFuncs) OnMessageEnqueued(e MessageEvent) {
	if f.Enqueued != nil {
		f.Enqueued(e)
	}
}

func (f ListenerFuncs) OnMessageReceived(e MessageEvent) {
	if f.Received != nil {
		f.Received(e)
	}
}

func (f ListenerFuncs) OnMessageAcknowledged(e MessageEvent) {
	if f.Acknowledged != nil {
		f.Acknowledged(e)
	}
}

func (f ListenerFuncs) OnMessageReleased(e MessageEvent) {
	if f.Released != nil {
		f.Released(e)
	}
}

func (f ListenerFuncs) OnOperation(e OperationEvent) {
	if f.Operation != nil {
		f.Operation(e)
	}
}

func (f ListenerFuncs) OnRecovery(e RecoveryEvent) {
	if f.Recovery != nil {
		f.Recovery(e)
	}
}

// registry holds listeners with their hook interfaces resolved once at
// registration time.
type registry struct {
	mu     sync.RWMutex
	logger logging.Logger

	enqueued     []hookEntry[MessageEnqueued]
	received     []hookEntry[MessageReceived]
	acknowledged []hookEntry[MessageAcknowledged]
	released     []hookEntry[MessageReleased]
	operations   []hookEntry[OperationObserver]
	recoveries   []hookEntry[RecoveryObserver]
}

type hookEntry[T any] struct {
	name string
	hook T
}

func newRegistry(logger logging.Logger) *registry {
	return &registry{logger: logger}
}

func (r *registry) register(l Listener) {
	if l == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := l.Name()
	if h, ok := l.(MessageEnqueued); ok {
		r.enqueued = append(r.enqueued, hookEntry[MessageEnqueued]{name, h})
	}
	if h, ok := l.(MessageReceived); ok {
		r.received = append(r.received, hookEntry[MessageReceived]{name, h})
	}
	if h, ok := l.(MessageAcknowledged); ok {
		r.acknowledged = append(r.acknowledged, hookEntry[MessageAcknowledged]{name, h})
	}
	if h, ok := l.(MessageReleased); ok {
		r.released = append(r.released, hookEntry[MessageReleased]{name, h})
	}
	if h, ok := l.(OperationObserver); ok {
		r.operations = append(r.operations, hookEntry[OperationObserver]{name, h})
	}
	if h, ok := l.(RecoveryObserver); ok {
		r.recoveries = append(r.recoveries, hookEntry[RecoveryObserver]{name, h})
	}
}

func (r *registry) messageEnqueued(e MessageEvent) {
	r.mu.RLock()
	hooks := r.enqueued
	r.mu.RUnlock()
	for _, h := range hooks {
		r.call(h.name, "OnMessageEnqueued", func() { h.hook.OnMessageEnqueued(e) })
	}
}

func (r *registry) messageReceived(e MessageEvent) {
	r.mu.RLock()
	hooks := r.received
	r.mu.RUnlock()
	for _, h := range hooks {
		r.call(h.name, "OnMessageReceived", func() { h.hook.OnMessageReceived(e) })
	}
}

func (r *registry) messageAcknowledged(e MessageEvent) {
	r.mu.RLock()
	hooks := r.acknowledged
	r.mu.RUnlock()
	for _, h := range hooks {
		r.call(h.name, "OnMessageAcknowledged", func() { h.hook.OnMessageAcknowledged(e) })
	}
}

func (r *registry) messageReleased(e MessageEvent) {
	r.mu.RLock()
	hooks := r.released
	r.mu.RUnlock()
	for _, h := range hooks {
		r.call(h.name, "OnMessageReleased", func() { h.hook.OnMessageReleased(e) })
	}
}

func (r *registry) operation(e OperationEvent) {
	r.mu.RLock()
	hooks := r.operations
	r.mu.RUnlock()
	for _, h := range hooks {
		r.call(h.name, "OnOperation", func() { h.hook.OnOperation(e) })
	}
}

func (r *registry) recovery(e RecoveryEvent) {
	r.mu.RLock()
	hooks := r.recoveries
	r.mu.RUnlock()
	for _, h := range hooks {
		r.call(h.name, "OnRecovery", func() { h.hook.OnRecovery(e) })
	}
}

// call runs fn, logging and swallowing a panic so one faulty listener cannot
// break the operation or the listeners after it.
func (r *registry) call(name, hook string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("listener panicked",
				logging.F("listener", name),
				logging.F("hook", hook),
				logging.F("panic", fmt.Sprint(p)),
			)
		}
	}()
	fn()
}
