// Package filemq provides a durable, file-system-backed message queue.
//
// Every message is one file. A claimed message is moved into a journal
// directory until it is acknowledged (deleted) or released (moved back), and
// claims left behind by a crashed process are returned to the queue the
// first time a new instance claims.
//
// Example usage:
//
//	q, err := filemq.Open("orders", "/var/lib/filemq", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Enqueue a message
//	if err := q.EnqueueBytes(ctx, filemq.NewMessageID(), []byte("Hello, World!")); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Claim it
//	msg := q.GetMessage(ctx)
//	if msg != nil {
//	    fmt.Printf("Message: %s\n", msg.Payload)
//	    _ = q.Acknowledge(ctx, msg.Token)
//	}
package filemq

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/vnykmshr/filemq/internal/logging"
	"github.com/vnykmshr/filemq/internal/metrics"
	"github.com/vnykmshr/filemq/internal/queue"
)

// Version is the current version of FileMQ.
// This is the single source of truth for the application version.
const Version = "0.3.0"

// On-disk layout names.
const (
	MessageExtension = queue.MessageExtension
	StagingExtension = queue.StagingExtension
	JournalDirName   = queue.JournalDirName
)

// Errors returned by queue operations.
var (
	ErrInvalidMessageID      = queue.ErrInvalidMessageID
	ErrNilReader             = queue.ErrNilReader
	ErrInvalidToken          = queue.ErrInvalidToken
	ErrMessageTooLarge       = queue.ErrMessageTooLarge
	ErrInsufficientDiskSpace = queue.ErrInsufficientDiskSpace
)

// ConfigurationError reports an invalid queue configuration.
type ConfigurationError = queue.ConfigurationError

// Listener types. See the hook interfaces for the notifications available.
type (
	Listener            = queue.Listener
	ListenerFuncs       = queue.ListenerFuncs
	MessageEnqueued     = queue.MessageEnqueued
	MessageReceived     = queue.MessageReceived
	MessageAcknowledged = queue.MessageAcknowledged
	MessageReleased     = queue.MessageReleased
	OperationObserver   = queue.OperationObserver
	RecoveryObserver    = queue.RecoveryObserver
	MessageEvent        = queue.MessageEvent
	OperationEvent      = queue.OperationEvent
	RecoveryEvent       = queue.RecoveryEvent
	Operation           = queue.Operation
	Phase               = queue.Phase
)

// Stats contains queue statistics.
type Stats = queue.Stats

// MessageInfo describes a message without its payload.
type MessageInfo = queue.MessageInfo

// Queue is a durable message queue.
type Queue struct {
	q *queue.Queue
}

// Message is a claimed message.
type Message struct {
	// ID is the id the message was enqueued with
	ID string

	// Token identifies the claim for Acknowledge and Release
	Token string

	// Payload is the message data
	Payload []byte

	// Timestamp orders the message among available messages
	Timestamp time.Time
}

// Options configures queue behavior.
type Options struct {
	// SyncWrites fsyncs message files and directory entries.
	// Default: true
	SyncWrites bool

	// MaxMessageSize is the maximum payload size in bytes, 0 for unlimited.
	// Default: 0
	MaxMessageSize int64

	// MinFreeDiskSpace is the free space in bytes required before an
	// enqueue, 0 to disable the check.
	// Default: 0
	MinFreeDiskSpace int64

	// Listeners receive notifications after state changes commit.
	Listeners []Listener

	// Logger for structured logging (nil = no logging)
	// Default: no logging
	Logger Logger

	// MetricsCollector for collecting queue metrics (nil = no metrics)
	// Default: no metrics
	MetricsCollector MetricsCollector
}

// MetricsCollector defines the interface for recording queue metrics.
type MetricsCollector = queue.MetricsCollector

// Logger defines the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...LogField)
	Info(msg string, fields ...LogField)
	Warn(msg string, fields ...LogField)
	Error(msg string, fields ...LogField)
}

// LogField represents a structured logging field.
type LogField struct {
	Key   string
	Value interface{}
}

// MetricsSnapshot is a point-in-time view of queue metrics.
type MetricsSnapshot = metrics.Snapshot

// NewMetricsCollector creates an in-memory metrics collector.
func NewMetricsCollector(queueName string) *metrics.Collector {
	return metrics.NewCollector(queueName)
}

// NewOTelMetricsCollector creates a collector that records to OpenTelemetry
// instruments created from meter.
// A nil meter uses the global MeterProvider.
func NewOTelMetricsCollector(meter metric.Meter, queueName string) *metrics.OTelCollector {
	if meter == nil {
		return metrics.NewOTelDefault(queueName)
	}
	return metrics.NewOTel(meter, queueName)
}

// GetMetricsSnapshot returns a snapshot from a collector created by
// NewMetricsCollector, or nil for any other collector.
func GetMetricsSnapshot(collector MetricsCollector) *MetricsSnapshot {
	if c, ok := collector.(*metrics.Collector); ok {
		return c.GetSnapshot()
	}
	return nil
}

// NewZapLogger adapts a zap logger to Logger.
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{l: logging.NewZap(l)}
}

// NewMessageID returns a new random message id.
func NewMessageID() string {
	return uuid.NewString()
}

// DefaultOptions returns sensible defaults for queue configuration.
func DefaultOptions() *Options {
	return &Options{
		SyncWrites: true,
	}
}

// Open opens the queue named name under root, creating its directories.
func Open(name, root string, opts *Options) (*Queue, error) {
	q, err := queue.Open(name, root, convertOptions(opts))
	if err != nil {
		return nil, err
	}
	return &Queue{q: q}, nil
}

func convertOptions(opts *Options) *queue.Options {
	qopts := queue.DefaultOptions()
	if opts == nil {
		return qopts
	}

	qopts.SyncWrites = opts.SyncWrites
	qopts.MaxMessageSize = opts.MaxMessageSize
	qopts.MinFreeDiskSpace = opts.MinFreeDiskSpace
	qopts.Listeners = opts.Listeners
	qopts.Logger = convertLogger(opts.Logger)
	if opts.MetricsCollector != nil {
		qopts.MetricsCollector = opts.MetricsCollector
	}
	return qopts
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.q.Name() }

// Dir returns the directory holding available messages.
func (q *Queue) Dir() string { return q.q.Dir() }

// JournalDir returns the directory holding in-flight messages.
func (q *Queue) JournalDir() string { return q.q.JournalDir() }

// AddListener registers l for notifications.
func (q *Queue) AddListener(l Listener) { q.q.AddListener(l) }

// Create ensures the queue directories exist.
func (q *Queue) Create(ctx context.Context) error { return q.q.Create(ctx) }

// Drop removes the queue and every message in it.
func (q *Queue) Drop(ctx context.Context) error { return q.q.Drop(ctx) }

// Purge removes every message, available or in flight.
func (q *Queue) Purge(ctx context.Context) error { return q.q.Purge(ctx) }

// IsEmpty reports whether no message is available to claim.
func (q *Queue) IsEmpty(ctx context.Context) bool { return q.q.IsEmpty(ctx) }

// Enqueue writes the payload read from r as message id, replacing an
// available message with the same id.
func (q *Queue) Enqueue(ctx context.Context, id string, r io.Reader) error {
	return q.q.Enqueue(ctx, id, r)
}

// EnqueueBytes enqueues an in-memory payload.
func (q *Queue) EnqueueBytes(ctx context.Context, id string, payload []byte) error {
	return q.q.EnqueueBytes(ctx, id, payload)
}

// GetMessage claims the oldest available message, or returns nil.
func (q *Queue) GetMessage(ctx context.Context) *Message {
	msg := q.q.GetMessage(ctx)
	if msg == nil {
		return nil
	}
	return &Message{
		ID:        msg.MessageID,
		Token:     msg.Token,
		Payload:   msg.Payload,
		Timestamp: msg.Timestamp,
	}
}

// Acknowledge deletes a claimed message.
func (q *Queue) Acknowledge(ctx context.Context, token string) error {
	return q.q.Acknowledge(ctx, token)
}

// Release returns a claimed message to the back of the queue.
func (q *Queue) Release(ctx context.Context, token string) error {
	return q.q.Release(ctx, token)
}

// Stats returns current queue statistics.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) { return q.q.Stats(ctx) }

// List describes every message in the queue without reading payloads.
func (q *Queue) List(ctx context.Context) ([]MessageInfo, error) { return q.q.List(ctx) }

func convertLogger(l Logger) logging.Logger {
	switch l := l.(type) {
	case nil:
		return logging.NoopLogger{}
	case *zapLogger:
		return l.l
	default:
		return &loggerAdapter{l: l}
	}
}

// loggerAdapter adapts public Logger to internal logging.Logger
type loggerAdapter struct {
	l Logger
}

func (a *loggerAdapter) Debug(msg string, fields ...logging.Field) {
	a.l.Debug(msg, convertFields(fields)...)
}

func (a *loggerAdapter) Info(msg string, fields ...logging.Field) {
	a.l.Info(msg, convertFields(fields)...)
}

func (a *loggerAdapter) Warn(msg string, fields ...logging.Field) {
	a.l.Warn(msg, convertFields(fields)...)
}

func (a *loggerAdapter) Error(msg string, fields ...logging.Field) {
	a.l.Error(msg, convertFields(fields)...)
}

func convertFields(fields []logging.Field) []LogField {
	result := make([]LogField, len(fields))
	for i, f := range fields {
		result[i] = LogField{Key: f.Key, Value: f.Value}
	}
	return result
}

// zapLogger exposes the internal zap adapter through the public interface.
type zapLogger struct {
	l *logging.ZapLogger
}

func (z *zapLogger) Debug(msg string, fields ...LogField) { z.l.Debug(msg, toInternal(fields)...) }
func (z *zapLogger) Info(msg string, fields ...LogField)  { z.l.Info(msg, toInternal(fields)...) }
func (z *zapLogger) Warn(msg string, fields ...LogField)  { z.l.Warn(msg, toInternal(fields)...) }
func (z *zapLogger) Error(msg string, fields ...LogField) { z.l.Error(msg, toInternal(fields)...) }

func toInternal(fields []LogField) []logging.Field {
	result := make([]logging.Field, len(fields))
	for i, f := range fields {
		result[i] = logging.F(f.Key, f.Value)
	}
	return result
}
