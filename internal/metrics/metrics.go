// Package metrics provides operation metrics for FileMQ queues.
//
// Collector is a dependency-free, atomic counter implementation suitable for
// snapshots in tests and CLIs. OTelCollector records the same events as
// OpenTelemetry instruments so a host's MeterProvider can export them.
//
// Usage:
//
//	collector := metrics.NewCollector("orders")
//	opts := queue.DefaultOptions()
//	opts.MetricsCollector = collector
//
//	// later
//	snap := collector.GetSnapshot()
//	fmt.Println(snap.EnqueueTotal, snap.ClaimTotal)
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector tracks queue metrics.
type Collector struct {
	queueName string

	// Operation counters
	enqueueTotal     atomic.Uint64
	claimTotal       atomic.Uint64
	acknowledgeTotal atomic.Uint64
	releaseTotal     atomic.Uint64
	enqueueErrors    atomic.Uint64
	claimErrors      atomic.Uint64
	acknowledgeErrs  atomic.Uint64
	releaseErrors    atomic.Uint64

	// Payload metrics
	enqueueBytes atomic.Uint64
	claimBytes   atomic.Uint64

	enqueueDurations *durationHistogram
	claimDurations   *durationHistogram

	// Queue state (updated after stats scans)
	availableMessages atomic.Uint64
	inFlightMessages  atomic.Uint64

	// Recovery metrics
	recoveriesTotal  atomic.Uint64
	messagesRestored atomic.Uint64
	lastRecoveryUnix atomic.Int64
}

// NewCollector creates a new metrics collector for a queue.
func NewCollector(queueName string) *Collector {
	return &Collector{
		queueName:        queueName,
		enqueueDurations: newDurationHistogram(),
		claimDurations:   newDurationHistogram(),
	}
}

// RecordEnqueue records a successful enqueue operation.
func (c *Collector) RecordEnqueue(payloadSize int, duration time.Duration) {
	c.enqueueTotal.Add(1)
	c.enqueueBytes.Add(uint64(payloadSize))
	c.enqueueDurations.observe(duration)
}

// RecordClaim records a message moved into the journal and handed to a consumer.
func (c *Collector) RecordClaim(payloadSize int, duration time.Duration) {
	c.claimTotal.Add(1)
	c.claimBytes.Add(uint64(payloadSize))
	c.claimDurations.observe(duration)
}

// RecordAcknowledge records a committed (deleted) message.
func (c *Collector) RecordAcknowledge(time.Duration) {
	c.acknowledgeTotal.Add(1)
}

// RecordRelease records a message returned to the available set.
func (c *Collector) RecordRelease(time.Duration) {
	c.releaseTotal.Add(1)
}

// RecordEnqueueError records an enqueue failure.
func (c *Collector) RecordEnqueueError() {
	c.enqueueErrors.Add(1)
}

// RecordClaimError records a claim that failed and was reported as "no message".
func (c *Collector) RecordClaimError() {
	c.claimErrors.Add(1)
}

// RecordAcknowledgeError records an acknowledge failure.
func (c *Collector) RecordAcknowledgeError() {
	c.acknowledgeErrs.Add(1)
}

// RecordReleaseError records a release failure.
func (c *Collector) RecordReleaseError() {
	c.releaseErrors.Add(1)
}

// RecordRecovery records a completed reconciliation pass.
func (c *Collector) RecordRecovery(restored int, _ time.Duration) {
	c.recoveriesTotal.Add(1)
	c.messagesRestored.Add(uint64(restored))
	c.lastRecoveryUnix.Store(time.Now().Unix())
}

// UpdateQueueState updates queue state gauges.
func (c *Collector) UpdateQueueState(available, inFlight uint64) {
	c.availableMessages.Store(available)
	c.inFlightMessages.Store(inFlight)
}

// GetSnapshot returns a snapshot of current metrics.
func (c *Collector) GetSnapshot() *Snapshot {
	return &Snapshot{
		QueueName:          c.queueName,
		EnqueueTotal:       c.enqueueTotal.Load(),
		ClaimTotal:         c.claimTotal.Load(),
		AcknowledgeTotal:   c.acknowledgeTotal.Load(),
		ReleaseTotal:       c.releaseTotal.Load(),
		EnqueueErrors:      c.enqueueErrors.Load(),
		ClaimErrors:        c.claimErrors.Load(),
		AcknowledgeErrors:  c.acknowledgeErrs.Load(),
		ReleaseErrors:      c.releaseErrors.Load(),
		EnqueueBytes:       c.enqueueBytes.Load(),
		ClaimBytes:         c.claimBytes.Load(),
		EnqueueDurationP50: c.enqueueDurations.percentile(0.50),
		EnqueueDurationP95: c.enqueueDurations.percentile(0.95),
		EnqueueDurationP99: c.enqueueDurations.percentile(0.99),
		ClaimDurationP50:   c.claimDurations.percentile(0.50),
		ClaimDurationP95:   c.claimDurations.percentile(0.95),
		ClaimDurationP99:   c.claimDurations.percentile(0.99),
		AvailableMessages:  c.availableMessages.Load(),
		InFlightMessages:   c.inFlightMessages.Load(),
		RecoveriesTotal:    c.recoveriesTotal.Load(),
		MessagesRestored:   c.messagesRestored.Load(),
		LastRecoveryUnix:   c.lastRecoveryUnix.Load(),
	}
}

// Reset resets all metrics (useful for testing).
func (c *Collector) Reset() {
	c.enqueueTotal.Store(0)
	c.claimTotal.Store(0)
	c.acknowledgeTotal.Store(0)
	c.releaseTotal.Store(0)
	c.enqueueErrors.Store(0)
	c.claimErrors.Store(0)
	c.acknowledgeErrs.Store(0)
	c.releaseErrors.Store(0)
	c.enqueueBytes.Store(0)
	c.claimBytes.Store(0)
	c.enqueueDurations.reset()
	c.claimDurations.reset()
	c.availableMessages.Store(0)
	c.inFlightMessages.Store(0)
	c.recoveriesTotal.Store(0)
	c.messagesRestored.Store(0)
	c.lastRecoveryUnix.Store(0)
}

// Snapshot is a point-in-time view of metrics.
type Snapshot struct {
	QueueName string

	// Operation counters
	EnqueueTotal      uint64
	ClaimTotal        uint64
	AcknowledgeTotal  uint64
	ReleaseTotal      uint64
	EnqueueErrors     uint64
	ClaimErrors       uint64
	AcknowledgeErrors uint64
	ReleaseErrors     uint64

	// Payload metrics
	EnqueueBytes uint64
	ClaimBytes   uint64

	// Duration percentiles (bucket upper bounds)
	EnqueueDurationP50 time.Duration
	EnqueueDurationP95 time.Duration
	EnqueueDurationP99 time.Duration
	ClaimDurationP50   time.Duration
	ClaimDurationP95   time.Duration
	ClaimDurationP99   time.Duration

	// Queue state
	AvailableMessages uint64
	InFlightMessages  uint64

	// Recovery
	RecoveriesTotal  uint64
	MessagesRestored uint64
	LastRecoveryUnix int64
}

// durationHistogram is a fixed-bucket histogram for tracking durations.
type durationHistogram struct {
	buckets [10]atomic.Uint64
}

func newDurationHistogram() *durationHistogram {
	return &durationHistogram{}
}

// observe records a duration in the appropriate bucket.
func (h *durationHistogram) observe(d time.Duration) {
	micros := d.Microseconds()
	var bucket int

	// Bucket boundaries (microseconds):
	// 0: < 1μs, 1: 1-10μs, 2: 10-100μs, 3: 100μs-1ms
	// 4: 1-10ms, 5: 10-100ms, 6: 100ms-1s, 7: 1-10s, 8: 10-100s, 9: beyond
	switch {
	case micros < 1:
		bucket = 0
	case micros < 10:
		bucket = 1
	case micros < 100:
		bucket = 2
	case micros < 1000:
		bucket = 3
	case micros < 10000:
		bucket = 4
	case micros < 100000:
		bucket = 5
	case micros < 1000000:
		bucket = 6
	case micros < 10000000:
		bucket = 7
	case micros < 100000000:
		bucket = 8
	default:
		bucket = 9
	}

	h.buckets[bucket].Add(1)
}

func (h *durationHistogram) reset() {
	for i := range h.buckets {
		h.buckets[i].Store(0)
	}
}

var bucketUpperBounds = [10]time.Duration{
	500 * time.Nanosecond,
	5 * time.Microsecond,
	50 * time.Microsecond,
	500 * time.Microsecond,
	5 * time.Millisecond,
	50 * time.Millisecond,
	500 * time.Millisecond,
	5 * time.Second,
	50 * time.Second,
	100 * time.Second,
}

// percentile approximates a percentile from histogram buckets.
func (h *durationHistogram) percentile(p float64) time.Duration {
	var total uint64
	for i := range h.buckets {
		total += h.buckets[i].Load()
	}

	if total == 0 {
		return 0
	}

	target := uint64(float64(total) * p)
	var count uint64
	for i := range h.buckets {
		count += h.buckets[i].Load()
		if count >= target {
			return bucketUpperBounds[i]
		}
	}

	return 0
}

// NoopCollector is a metrics collector that does nothing.
type NoopCollector struct{}

func (NoopCollector) RecordEnqueue(int, time.Duration)  {}
func (NoopCollector) RecordClaim(int, time.Duration)    {}
func (NoopCollector) RecordAcknowledge(time.Duration)   {}
func (NoopCollector) RecordRelease(time.Duration)       {}
func (NoopCollector) RecordEnqueueError()               {}
func (NoopCollector) RecordClaimError()                 {}
func (NoopCollector) RecordAcknowledgeError()           {}
func (NoopCollector) RecordReleaseError()               {}
func (NoopCollector) RecordRecovery(int, time.Duration) {}
func (NoopCollector) UpdateQueueState(uint64, uint64)   {}
