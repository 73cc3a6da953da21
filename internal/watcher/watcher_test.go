package watcher

import (
	"context"
	"errors"
	"packwatch/internal/catalog"
	"packwatch/internal/components/telemetry"
	"packwatch/internal/facet"
	"packwatch/internal/scrapers/gaijin"
	"packwatch/internal/subscriber"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var (
	packA       = catalog.Entry{Name: "Pack A", Link: "/a", Price: "19.99 €"}
	packARaised = catalog.Entry{Name: "Pack A", Link: "/a", Price: "24.99 €"}
	packB       = catalog.Entry{Name: "Pack B", Link: "/b", Price: "9.99 €"}
)

type fetchResult struct {
	entries []catalog.Entry
	err     error
}

// scriptedFetcher answers fetches in order, the last result repeats.
type scriptedFetcher struct {
	mu         sync.Mutex
	results    []fetchResult
	signatures []string
}

func (f *scriptedFetcher) push(entries []catalog.Entry, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, fetchResult{entries: entries, err: err})
}

func (f *scriptedFetcher) Fetch(ctx context.Context, signature string) ([]catalog.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.signatures = append(f.signatures, signature)
	if len(f.results) == 0 {
		return nil, errors.New("nothing scripted")
	}
	result := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return result.entries, result.err
}

func setup(t *testing.T, refs ...facet.Ref) (*Watcher, *scriptedFetcher, *subscriber.MemoryStore) {
	t.Helper()
	store := subscriber.NewMemoryStore()
	for _, ref := range refs {
		_, err := store.Toggle(context.Background(), 1, ref)
		require.NoError(t, err)
	}
	fetcher := &scriptedFetcher{}
	return New(store, fetcher, telemetry.NewRecorder()), fetcher, store
}

func requireEvents(t *testing.T, expected, got []catalog.ChangeEvent) {
	t.Helper()
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Fatalf("unexpected events (-want +got):\n%s", diff)
	}
}

func TestFirstRefreshIsBaseline(t *testing.T) {
	w, fetcher, _ := setup(t, facet.TierIII, facet.NationUSSR)
	fetcher.push([]catalog.Entry{packA}, nil)

	events := w.Refresh(context.Background(), 1)
	require.Empty(t, events)

	snapshot := w.Snapshot(1)
	require.Equal(t, []catalog.Entry{packA}, snapshot.Current)
	require.Empty(t, snapshot.Previous)
	require.Equal(t, "wt_rank3,wt_ussr", snapshot.CurrentSignature)
	require.Equal(t, "", snapshot.PreviousSignature)
	require.Equal(t, []string{"wt_rank3,wt_ussr"}, fetcher.signatures)
}

func TestFirstRefreshOfEmptySelectionIsBaseline(t *testing.T) {
	w, fetcher, _ := setup(t)
	fetcher.push([]catalog.Entry{packA, packB}, nil)

	require.Empty(t, w.Refresh(context.Background(), 1))
	require.Equal(t, []string{""}, fetcher.signatures)
}

func TestRefreshNewPack(t *testing.T) {
	w, fetcher, _ := setup(t, facet.ClassAviation)
	fetcher.push([]catalog.Entry{packA}, nil)
	fetcher.push([]catalog.Entry{packB, packA}, nil)

	require.Empty(t, w.Refresh(context.Background(), 1))
	events := w.Refresh(context.Background(), 1)

	requireEvents(t, []catalog.ChangeEvent{{Kind: catalog.NewPack, Entry: packB}}, events)
}

func TestRefreshPriceChanged(t *testing.T) {
	w, fetcher, _ := setup(t, facet.ClassAviation)
	fetcher.push([]catalog.Entry{packA}, nil)
	fetcher.push([]catalog.Entry{packARaised}, nil)

	require.Empty(t, w.Refresh(context.Background(), 1))
	events := w.Refresh(context.Background(), 1)

	requireEvents(t, []catalog.ChangeEvent{{
		Kind:     catalog.PriceChanged,
		Entry:    packARaised,
		OldPrice: "19.99 €",
	}}, events)

	snapshot := w.Snapshot(1)
	require.Equal(t, []catalog.Entry{packA}, snapshot.Previous)
	require.Equal(t, []catalog.Entry{packARaised}, snapshot.Current)
}

func TestRefreshSignatureChangeSuppressesEvents(t *testing.T) {
	w, fetcher, store := setup(t, facet.ClassAviation)
	fetcher.push([]catalog.Entry{packA}, nil)
	fetcher.push([]catalog.Entry{packA, packB}, nil)
	fetcher.push([]catalog.Entry{packARaised, packB}, nil)

	require.Empty(t, w.Refresh(context.Background(), 1))

	_, err := store.Toggle(context.Background(), 1, facet.NationGermany)
	require.NoError(t, err)

	// Pack B shows up because the filter widened, not because it is new
	require.Empty(t, w.Refresh(context.Background(), 1))
	snapshot := w.Snapshot(1)
	require.Equal(t, "wt_air", snapshot.PreviousSignature)
	require.Equal(t, "wt_air,wt_germany", snapshot.CurrentSignature)

	// the selection is stable again, so diffing resumes
	events := w.Refresh(context.Background(), 1)
	requireEvents(t, []catalog.ChangeEvent{{
		Kind:     catalog.PriceChanged,
		Entry:    packARaised,
		OldPrice: "19.99 €",
	}}, events)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	w, fetcher, _ := setup(t, facet.ClassFleet)
	fetcher.push([]catalog.Entry{packA}, nil)
	fetcher.push([]catalog.Entry{packA, packB}, nil)
	fetcher.push(nil, &gaijin.FetchError{
		Cause: gaijin.CauseSolverTimeout,
		URL:   "https://store.gaijin.net/catalog.php?page=1",
		Err:   errors.New("unexpected status 403, solver: timed out"),
	})
	fetcher.push([]catalog.Entry{packA, packB}, nil)

	ctx := context.Background()
	require.Empty(t, w.Refresh(ctx, 1))
	require.Len(t, w.Refresh(ctx, 1), 1)

	before := w.Snapshot(1)
	require.Empty(t, w.Refresh(ctx, 1))
	require.Equal(t, before, w.Snapshot(1))

	// the next cycle compares against the untouched baseline
	require.Empty(t, w.Refresh(ctx, 1))
	require.Equal(t, before.Current, w.Snapshot(1).Previous)
}

func TestRefreshSelectionFailure(t *testing.T) {
	fetcher := &scriptedFetcher{}
	rec := telemetry.NewRecorder()
	w := New(failingStore{}, fetcher, rec)

	require.Empty(t, w.Refresh(context.Background(), 1))
	require.Empty(t, fetcher.signatures)
	require.True(t, rec.Has(telemetry.LevelBroken, report_refresh_selection))
}

func TestPacksDoesNotRotate(t *testing.T) {
	w, fetcher, _ := setup(t, facet.TierVIII)
	fetcher.push([]catalog.Entry{packA}, nil)
	fetcher.push([]catalog.Entry{packB, packA}, nil)
	fetcher.push([]catalog.Entry{packB, packA}, nil)

	ctx := context.Background()
	require.Empty(t, w.Refresh(ctx, 1))

	entries, err := w.Packs(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []catalog.Entry{packB, packA}, entries)
	require.Equal(t, []catalog.Entry{packA}, w.Snapshot(1).Current)

	// the on-demand fetch did not swallow the notification
	events := w.Refresh(ctx, 1)
	requireEvents(t, []catalog.ChangeEvent{{Kind: catalog.NewPack, Entry: packB}}, events)
}

func TestPacksSurfacesErrors(t *testing.T) {
	w, fetcher, _ := setup(t, facet.TierVIII)
	fetchErr := &gaijin.FetchError{Cause: gaijin.CauseHttpStatus, Err: errors.New("unexpected status 503")}
	fetcher.push(nil, fetchErr)

	_, err := w.Packs(context.Background(), 1)
	var got *gaijin.FetchError
	require.ErrorAs(t, err, &got)
	require.Equal(t, gaijin.CauseHttpStatus, got.Cause)
}

func TestToggle(t *testing.T) {
	w, _, store := setup(t)

	sel, err := w.Toggle(context.Background(), 1, "wt_rank2")
	require.NoError(t, err)
	require.True(t, sel.Has(facet.TierII))

	stored, err := store.Selection(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "wt_rank2", stored.Signature())

	sel, err = w.Toggle(context.Background(), 1, "wt_rank2")
	require.NoError(t, err)
	require.Zero(t, sel.Len())

	_, err = w.Toggle(context.Background(), 1, "wt_bogus")
	require.Error(t, err)
}

// blockingFetcher counts how many fetches run at the same time.
type blockingFetcher struct {
	release chan struct{}
	running atomic.Int32
	peak    atomic.Int32
}

func (f *blockingFetcher) Fetch(ctx context.Context, signature string) ([]catalog.Entry, error) {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	select {
	case <-f.release:
		return []catalog.Entry{packA}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefreshSameSubscriberIsSerialized(t *testing.T) {
	fetcher := &blockingFetcher{release: make(chan struct{})}
	w := New(subscriber.NewMemoryStore(), fetcher, telemetry.NewRecorder())

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Refresh(context.Background(), 1)
		}()
	}

	for range 3 {
		select {
		case fetcher.release <- struct{}{}:
		case <-time.After(5 * time.Second):
			t.Fatal("refresh never started")
		}
	}
	wg.Wait()

	require.Equal(t, int32(1), fetcher.peak.Load())
}

type failingStore struct{}

func (failingStore) Selection(context.Context, int64) (subscriber.Selection, error) {
	return subscriber.Selection{}, errors.New("database is locked")
}

func (failingStore) Toggle(context.Context, int64, facet.Ref) (subscriber.Selection, error) {
	return subscriber.Selection{}, errors.New("database is locked")
}

func (failingStore) Subscribers(context.Context) ([]int64, error) {
	return nil, errors.New("database is locked")
}
