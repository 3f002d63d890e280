package queue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vnykmshr/filemq/internal/logging"
)

// reconcileLocked returns every journal entry to the available directory,
// once per Queue. A journal entry replaces an available file of the same
// name; the rename keeps the entry's original timestamp, so recovered
// messages keep their place in line.
//
// The pass is skipped while either directory is missing. A pass in which
// any entry failed to move leaves reconciled unset, so it runs again on
// every following claim until all entries move; only a clean pass counts
// as the single reconciliation. The returned bool reports whether a pass
// ran. Caller must hold q.mu.
func (q *Queue) reconcileLocked() (RecoveryEvent, bool) {
	if q.reconciled || !dirExists(q.dir) || !dirExists(q.journalDir) {
		return RecoveryEvent{}, false
	}

	start := time.Now()
	restored, err := q.returnJournalLocked()
	ev := RecoveryEvent{
		Queue:    q.name,
		Restored: restored,
		Duration: time.Since(start),
		Err:      err,
	}

	if err != nil {
		q.opts.Logger.Warn("journal recovery incomplete",
			logging.F("queue", q.name),
			logging.F("restored", restored),
			logging.F("error", err),
		)
	} else {
		q.reconciled = true
		if restored > 0 {
			q.opts.Logger.Info("journal recovered",
				logging.F("queue", q.name),
				logging.F("restored", restored),
			)
		}
	}

	q.opts.MetricsCollector.RecordRecovery(restored, ev.Duration)
	return ev, true
}

func (q *Queue) returnJournalLocked() (int, error) {
	entries, err := os.ReadDir(q.journalDir)
	if err != nil {
		return 0, fmt.Errorf("list journal directory %s: %w", q.journalDir, err)
	}

	var (
		restored int
		errs     []error
	)
	for _, entry := range entries {
		if !isMessageFile(entry) {
			continue
		}
		name := entry.Name()
		src := filepath.Join(q.journalDir, name)
		dst := filepath.Join(q.dir, name)
		if err := os.Rename(src, dst); err != nil {
			errs = append(errs, fmt.Errorf("return %s from journal: %w", name, err))
			continue
		}
		restored++
		q.opts.Logger.Debug("in-flight message returned",
			logging.F("queue", q.name),
			logging.F("token", name),
		)
	}

	if restored > 0 {
		q.syncDirBestEffort(q.dir)
	}
	return restored, errors.Join(errs...)
}
