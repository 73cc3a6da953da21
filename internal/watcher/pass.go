package watcher

import (
	"context"
	"fmt"
	"packwatch/internal/notify"
	"sync/atomic"

	"github.com/mazen160/go-random"
	"golang.org/x/sync/errgroup"
)

const DefaultConcurrency = 4

const (
	report_pass_list   = "pass.list"
	report_pass_notify = "pass.notify"
	report_pass_done   = "pass.done"
)

// PassResult summarizes one RefreshAll pass.
type PassResult struct {
	ID          string
	Subscribers int
	// Notified is the number of subscribers that received events.
	Notified int
	// Failed is the number of subscribers whose events could not be
	// delivered.
	Failed int
}

// SetConcurrency limits how many subscribers RefreshAll refreshes at once.
func (w *Watcher) SetConcurrency(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.concurrency = n
}

func (w *Watcher) limit() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.concurrency <= 0 {
		return DefaultConcurrency
	}
	return w.concurrency
}

// RefreshAll refreshes every known subscriber and delivers non-empty event
// lists to the notifier. A subscriber failing to refresh or to be notified
// does not affect the others. An error is only returned when the
// subscribers can't be listed or ctx is canceled, canceling stops scheduling
// new refreshes and abandons the in-flight fetches.
func (w *Watcher) RefreshAll(ctx context.Context, notifier notify.Notifier) (PassResult, error) {
	passId, err := random.String(8)
	if err != nil {
		passId = "unknown"
	}
	result := PassResult{ID: passId}

	ids, err := w.store.Subscribers(ctx)
	if err != nil {
		w.tel.ReportBroken(report_pass_list, err, passId)
		return result, fmt.Errorf("list subscribers: %w", err)
	}
	result.Subscribers = len(ids)
	w.tel.ReportDebug("refresh pass started", passId, len(ids))

	var notified, failed atomic.Int64

	var group errgroup.Group
	group.SetLimit(w.limit())
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		group.Go(func() error {
			events := w.Refresh(ctx, id)
			if len(events) == 0 {
				return nil
			}
			err := notifier.Notify(ctx, id, events)
			if err != nil {
				failed.Add(1)
				w.tel.ReportBroken(report_pass_notify, err, passId, id)
				return nil
			}
			notified.Add(1)
			return nil
		})
	}
	// the goroutines never fail
	_ = group.Wait()

	result.Notified = int(notified.Load())
	result.Failed = int(failed.Load())
	w.tel.ReportCount(report_pass_done, int64(result.Notified))
	w.tel.ReportDebug("refresh pass finished", passId, result.Notified, result.Failed)
	return result, ctx.Err()
}
