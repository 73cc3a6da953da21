package telemetry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := NewRecorder()
	scoped := NewScopedAPI("fetcher", NewScopedAPI("gaijin", rec))

	scoped.ReportBroken("fetch", "boom")
	scoped.ReportWarning("parse-page")
	scoped.ReportCount("entries", 12)

	broken := rec.Reports(LevelBroken)
	require.Len(t, broken, 1)
	require.Equal(t, "gaijin: fetcher: fetch", broken[0].ID)
	require.Equal(t, []any{"boom"}, broken[0].Params)

	require.True(t, rec.Has(LevelWarning, "parse-page"))
	require.False(t, rec.Has(LevelBroken, "parse-page"))

	counts := rec.Reports(LevelCount)
	require.Len(t, counts, 1)
	require.EqualValues(t, 12, counts[0].Count)
}

func TestMeteredAPIForwards(t *testing.T) {
	rec := NewRecorder()
	metered := NewMeteredAPI(rec)

	metered.ReportCount("subscribers", 3)
	metered.ReportDebug("hello")

	require.True(t, rec.Has(LevelCount, "subscribers"))
	require.True(t, rec.Has(LevelDebug, "hello"))
}
