package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Stats contains queue statistics.
type Stats struct {
	// Queue is the queue name.
	Queue string

	// Dir is the available-message directory.
	Dir string

	// AvailableMessages is the number of messages waiting to be claimed.
	AvailableMessages uint64

	// AvailableBytes is the total payload size of available messages.
	AvailableBytes uint64

	// InFlightMessages is the number of claimed, unacknowledged messages.
	InFlightMessages uint64

	// InFlightBytes is the total payload size of in-flight messages.
	InFlightBytes uint64

	// StagingFiles counts staging files, left behind by interrupted enqueues
	// when the queue is idle.
	StagingFiles int

	// OldestAvailable is the timestamp of the next message to be claimed,
	// zero when nothing is available.
	OldestAvailable time.Time
}

// MessageInfo describes a message file without reading its payload.
type MessageInfo struct {
	MessageID string
	Token     string
	Size      int64
	Timestamp time.Time
	InFlight  bool
}

// Stats scans both directories and returns current queue statistics.
// A missing queue reports zero counts. A cancelled context returns empty
// statistics without scanning.
func (q *Queue) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{Queue: q.name, Dir: q.dir}
	if q.cancelled(ctx, OpStats, "") {
		return stats, nil
	}

	q.mu.Lock()
	available, staging, err := scanDir(q.dir)
	var inFlight []MessageInfo
	if err == nil {
		inFlight, _, err = scanDir(q.journalDir)
	}
	q.mu.Unlock()

	if err != nil {
		return nil, err
	}

	stats.StagingFiles = staging
	for i, m := range available {
		stats.AvailableMessages++
		stats.AvailableBytes += uint64(m.Size) //nolint:gosec // file sizes are non-negative
		if i == 0 {
			stats.OldestAvailable = m.Timestamp
		}
	}
	for _, m := range inFlight {
		stats.InFlightMessages++
		stats.InFlightBytes += uint64(m.Size) //nolint:gosec // file sizes are non-negative
	}

	q.opts.MetricsCollector.UpdateQueueState(stats.AvailableMessages, stats.InFlightMessages)
	return stats, nil
}

// List returns every available message in claim order followed by every
// in-flight message in journal order.
// A cancelled context returns nil without scanning.
func (q *Queue) List(ctx context.Context) ([]MessageInfo, error) {
	if q.cancelled(ctx, OpList, "") {
		return nil, nil
	}

	q.mu.Lock()
	available, _, err := scanDir(q.dir)
	var inFlight []MessageInfo
	if err == nil {
		inFlight, _, err = scanDir(q.journalDir)
	}
	q.mu.Unlock()

	if err != nil {
		return nil, err
	}

	for i := range inFlight {
		inFlight[i].InFlight = true
	}
	return append(available, inFlight...), nil
}

// scanDir lists the message files in dir ordered as GetMessage would claim
// them, and counts staging files. A missing directory is empty.
func scanDir(dir string) ([]MessageInfo, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("list %s: %w", dir, err)
	}

	var (
		messages []MessageInfo
		staging  int
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case StagingExtension:
			staging++
		case MessageExtension:
			info, err := entry.Info()
			if err != nil {
				continue
			}
			messages = append(messages, MessageInfo{
				MessageID: messageIDFromToken(entry.Name()),
				Token:     entry.Name(),
				Size:      info.Size(),
				Timestamp: info.ModTime(),
			})
		}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, staging, nil
}
