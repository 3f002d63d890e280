package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for FileMQ metrics.
const meterName = "github.com/vnykmshr/filemq"

// Operation names used as the "operation" attribute.
const (
	OpEnqueue     = "enqueue"
	OpClaim       = "claim"
	OpAcknowledge = "acknowledge"
	OpRelease     = "release"
	OpRecovery    = "recovery"
)

// OTelCollector records queue events as OpenTelemetry instruments.
//
// Instruments:
//   - filemq.operations (Int64Counter): operations by queue, operation and
//     status ("ok" or "error")
//   - filemq.operation.duration (Float64Histogram): seconds, same attributes
//   - filemq.payload.bytes (Int64Counter): payload bytes by queue and operation
//   - filemq.recovered.messages (Int64Counter): journal entries restored
//   - filemq.messages (Int64Gauge): messages by queue and state
//     ("available" or "in_flight")
type OTelCollector struct {
	queue      attribute.KeyValue
	operations metric.Int64Counter
	duration   metric.Float64Histogram
	bytes      metric.Int64Counter
	restored   metric.Int64Counter
	messages   metric.Int64Gauge
}

// NewOTelDefault creates a collector using the global MeterProvider.
func NewOTelDefault(queueName string) *OTelCollector {
	return NewOTel(otel.Meter(meterName), queueName)
}

// NewOTel creates a collector using the provided meter.
// On instrument errors the OTel API returns noop instruments, so the
// collector degrades to a no-op rather than failing.
func NewOTel(meter metric.Meter, queueName string) *OTelCollector {
	operations, _ := meter.Int64Counter(
		"filemq.operations",
		metric.WithDescription("Total number of queue operations"),
		metric.WithUnit("{operation}"),
	)
	duration, _ := meter.Float64Histogram(
		"filemq.operation.duration",
		metric.WithDescription("Duration of queue operations in seconds"),
		metric.WithUnit("s"),
	)
	bytes, _ := meter.Int64Counter(
		"filemq.payload.bytes",
		metric.WithDescription("Payload bytes written or claimed"),
		metric.WithUnit("By"),
	)
	restored, _ := meter.Int64Counter(
		"filemq.recovered.messages",
		metric.WithDescription("Journal entries returned to the available set by recovery"),
		metric.WithUnit("{message}"),
	)
	messages, _ := meter.Int64Gauge(
		"filemq.messages",
		metric.WithDescription("Messages currently stored, by state"),
		metric.WithUnit("{message}"),
	)

	return &OTelCollector{
		queue:      attribute.String("queue", queueName),
		operations: operations,
		duration:   duration,
		bytes:      bytes,
		restored:   restored,
		messages:   messages,
	}
}

func (c *OTelCollector) record(op, status string, d time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		c.queue,
		attribute.String("operation", op),
		attribute.String("status", status),
	)
	c.operations.Add(ctx, 1, attrs)
	if d > 0 {
		c.duration.Record(ctx, d.Seconds(), attrs)
	}
}

func (c *OTelCollector) addBytes(op string, n int) {
	c.bytes.Add(context.Background(), int64(n), metric.WithAttributes(c.queue, attribute.String("operation", op)))
}

// RecordEnqueue implements the queue metrics interface.
func (c *OTelCollector) RecordEnqueue(payloadSize int, duration time.Duration) {
	c.record(OpEnqueue, "ok", duration)
	c.addBytes(OpEnqueue, payloadSize)
}

// RecordClaim implements the queue metrics interface.
func (c *OTelCollector) RecordClaim(payloadSize int, duration time.Duration) {
	c.record(OpClaim, "ok", duration)
	c.addBytes(OpClaim, payloadSize)
}

// RecordAcknowledge implements the queue metrics interface.
func (c *OTelCollector) RecordAcknowledge(duration time.Duration) {
	c.record(OpAcknowledge, "ok", duration)
}

// RecordRelease implements the queue metrics interface.
func (c *OTelCollector) RecordRelease(duration time.Duration) {
	c.record(OpRelease, "ok", duration)
}

// RecordEnqueueError implements the queue metrics interface.
func (c *OTelCollector) RecordEnqueueError() { c.record(OpEnqueue, "error", 0) }

// RecordClaimError implements the queue metrics interface.
func (c *OTelCollector) RecordClaimError() { c.record(OpClaim, "error", 0) }

// RecordAcknowledgeError implements the queue metrics interface.
func (c *OTelCollector) RecordAcknowledgeError() { c.record(OpAcknowledge, "error", 0) }

// RecordReleaseError implements the queue metrics interface.
func (c *OTelCollector) RecordReleaseError() { c.record(OpRelease, "error", 0) }

// RecordRecovery implements the queue metrics interface.
func (c *OTelCollector) RecordRecovery(restored int, duration time.Duration) {
	c.record(OpRecovery, "ok", duration)
	c.restored.Add(context.Background(), int64(restored), metric.WithAttributes(c.queue))
}

// UpdateQueueState implements the queue metrics interface.
func (c *OTelCollector) UpdateQueueState(available, inFlight uint64) {
	ctx := context.Background()
	c.messages.Record(ctx, int64(available), metric.WithAttributes(c.queue, attribute.String("state", "available")))
	c.messages.Record(ctx, int64(inFlight), metric.WithAttributes(c.queue, attribute.String("state", "in_flight")))
}
