package queue

import (
	"fmt"
	"os"
	"time"

	"github.com/vnykmshr/filemq/internal/logging"
	"github.com/vnykmshr/filemq/internal/metrics"
)

// Options configures queue behavior.
type Options struct {
	// SyncWrites fsyncs the staging file before it is renamed into place and
	// the directory after a rename.
	// Default: true
	SyncWrites bool

	// MaxMessageSize is the maximum payload size in bytes.
	// Larger payloads are rejected during the staging write.
	// Set to 0 for unlimited message size.
	// Default: 0
	MaxMessageSize int64

	// MinFreeDiskSpace is the minimum free disk space in bytes required
	// before an enqueue starts writing.
	// Set to 0 to disable the check.
	// Default: 0
	MinFreeDiskSpace int64

	// FileMode is the permission used for message files.
	// Default: 0644
	FileMode os.FileMode

	// DirMode is the permission used for the queue and journal directories.
	// Default: 0755
	DirMode os.FileMode

	// Listeners receive notifications after state transitions commit.
	// More can be added later with Queue.AddListener.
	Listeners []Listener

	// Logger for structured logging (nil = no logging)
	Logger logging.Logger

	// MetricsCollector for collecting queue metrics (nil = no metrics)
	MetricsCollector MetricsCollector
}

// MetricsCollector defines the interface for recording queue metrics.
type MetricsCollector interface {
	RecordEnqueue(payloadSize int, duration time.Duration)
	RecordClaim(payloadSize int, duration time.Duration)
	RecordAcknowledge(duration time.Duration)
	RecordRelease(duration time.Duration)
	RecordEnqueueError()
	RecordClaimError()
	RecordAcknowledgeError()
	RecordReleaseError()
	RecordRecovery(restored int, duration time.Duration)
	UpdateQueueState(available, inFlight uint64)
}

// DefaultOptions returns sensible defaults for queue configuration.
func DefaultOptions() *Options {
	return &Options{
		SyncWrites:       true,
		MaxMessageSize:   0,
		MinFreeDiskSpace: 0,
		FileMode:         0o644,
		DirMode:          0o755,
		Logger:           logging.NoopLogger{},
		MetricsCollector: metrics.NoopCollector{},
	}
}

// Validate checks that the options are usable.
func (o *Options) Validate() error {
	if o.MaxMessageSize < 0 {
		return fmt.Errorf("max message size cannot be negative")
	}
	if o.MinFreeDiskSpace < 0 {
		return fmt.Errorf("min free disk space cannot be negative")
	}
	if o.FileMode&^os.ModePerm != 0 {
		return fmt.Errorf("file mode %v has non-permission bits", o.FileMode)
	}
	if o.DirMode&^os.ModePerm != 0 {
		return fmt.Errorf("dir mode %v has non-permission bits", o.DirMode)
	}
	return nil
}

// withDefaults returns a copy of o with zero values replaced by defaults.
func (o *Options) withDefaults() *Options {
	out := *o
	if out.FileMode == 0 {
		out.FileMode = 0o644
	}
	if out.DirMode == 0 {
		out.DirMode = 0o755
	}
	if out.Logger == nil {
		out.Logger = logging.NoopLogger{}
	}
	if out.MetricsCollector == nil {
		out.MetricsCollector = metrics.NoopCollector{}
	}
	out.Listeners = append([]Listener(nil), o.Listeners...)
	return &out
}
