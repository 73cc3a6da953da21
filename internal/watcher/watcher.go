// Package watcher keeps a rolling snapshot of the filtered catalog of every
// subscriber and turns successive snapshots into change events.
package watcher

import (
	"context"
	"fmt"
	"packwatch/internal/catalog"
	"packwatch/internal/components/assert"
	"packwatch/internal/components/telemetry"
	"packwatch/internal/facet"
	"packwatch/internal/subscriber"
	"slices"
	"sync"
)

const (
	report_refresh_selection = "refresh.selection"
	report_refresh_fetch     = "refresh.fetch"
	report_refresh_events    = "refresh.events"
	report_packs_fetch       = "packs.fetch"
)

// Fetcher retrieves the catalog for a facet signature, *gaijin.Fetcher
// implements it.
type Fetcher interface {
	Fetch(ctx context.Context, signature string) ([]catalog.Entry, error)
}

// Snapshot holds the last two successful fetches of a subscriber. Previous is
// always exactly what Current was before the latest fetch.
type Snapshot struct {
	Current           []catalog.Entry
	Previous          []catalog.Entry
	CurrentSignature  string
	PreviousSignature string
}

type subscriberState struct {
	// held for the whole refresh, refreshes of one subscriber never overlap
	mu       sync.Mutex
	snapshot Snapshot
	// whether any fetch ever succeeded
	primed bool
}

type Watcher struct {
	store   subscriber.Store
	fetcher Fetcher
	tel     telemetry.API

	mu          sync.Mutex
	states      map[int64]*subscriberState
	concurrency int
}

func New(store subscriber.Store, fetcher Fetcher, tel telemetry.API) *Watcher {
	assert.NotNil(store)
	assert.NotNil(fetcher)
	assert.NotNil(tel)

	return &Watcher{
		store:   store,
		fetcher: fetcher,
		tel:     telemetry.NewScopedAPI("watcher", tel),
		states:  map[int64]*subscriberState{},
	}
}

func (w *Watcher) state(id int64) *subscriberState {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.states[id]
	if !ok {
		state = &subscriberState{}
		w.states[id] = state
	}
	return state
}

// Refresh fetches the catalog for the subscriber's current selection and
// returns what changed since the previous fetch. A failed fetch yields no
// events and leaves the snapshot untouched, so the next refresh compares
// against the same baseline. No events are produced either when the
// selection changed since the last fetch, or on the very first fetch.
func (w *Watcher) Refresh(ctx context.Context, id int64) []catalog.ChangeEvent {
	state := w.state(id)
	state.mu.Lock()
	defer state.mu.Unlock()

	selection, err := w.store.Selection(ctx, id)
	if err != nil {
		w.tel.ReportBroken(report_refresh_selection, err, id)
		return nil
	}
	signature := selection.Signature()

	entries, err := w.fetcher.Fetch(ctx, signature)
	if err != nil {
		w.tel.ReportWarning(report_refresh_fetch, err, id)
		return nil
	}

	snapshot := &state.snapshot
	snapshot.Previous = snapshot.Current
	snapshot.PreviousSignature = snapshot.CurrentSignature
	snapshot.Current = entries
	snapshot.CurrentSignature = signature

	primed := state.primed
	state.primed = true

	if !primed || snapshot.PreviousSignature != snapshot.CurrentSignature {
		w.tel.ReportDebug("refresh baseline", id, signature, len(entries))
		return nil
	}

	events := catalog.Diff(snapshot.Current, snapshot.Previous)
	w.tel.ReportCount(report_refresh_events, int64(len(events)))
	return events
}

// Packs fetches the catalog for the subscriber's current selection on
// demand. Errors are returned to the caller and the snapshot is not touched.
func (w *Watcher) Packs(ctx context.Context, id int64) ([]catalog.Entry, error) {
	selection, err := w.store.Selection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load selection: %w", err)
	}
	entries, err := w.fetcher.Fetch(ctx, selection.Signature())
	if err != nil {
		w.tel.ReportWarning(report_packs_fetch, err, id)
		return nil, err
	}
	return entries, nil
}

// Toggle flips the facet identified by token in the subscriber's selection.
func (w *Watcher) Toggle(ctx context.Context, id int64, token string) (subscriber.Selection, error) {
	ref, err := facet.Parse(token)
	if err != nil {
		return subscriber.Selection{}, err
	}
	return w.store.Toggle(ctx, id, ref)
}

// Snapshot returns a copy of the subscriber's snapshot, waiting for an
// in-flight refresh of that subscriber to finish.
func (w *Watcher) Snapshot(id int64) Snapshot {
	state := w.state(id)
	state.mu.Lock()
	defer state.mu.Unlock()

	return Snapshot{
		Current:           slices.Clone(state.snapshot.Current),
		Previous:          slices.Clone(state.snapshot.Previous),
		CurrentSignature:  state.snapshot.CurrentSignature,
		PreviousSignature: state.snapshot.PreviousSignature,
	}
}
