package cmd

import (
	"os"
	"packwatch/internal/facet"
	"packwatch/internal/scrapers/gaijin"
	"packwatch/internal/subscriber"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.json5"))
	require.NoError(t, err)

	require.Equal(t, gaijin.DefaultBaseUrl, cfg.Catalog.Url)
	require.Equal(t, "", cfg.Solver.Url)
	require.Equal(t, "@every 5m", cfg.Interval)
	require.Equal(t, "packwatch.db", cfg.Database.File)
}

func TestLoadConfigFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// comments are fine in json5
		catalog: { url: "https://store.example/catalog.php" },
		solver: { url: "http://localhost:8191/v1" },
		interval: "300s",
		database: { file: "file.db" },
	}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		database: { file: "local.db" },
	}`), 0644))

	t.Setenv("PACKWATCH_SOLVER_URL", "http://solver:8191/v1")
	t.Setenv("PACKWATCH_CONCURRENCY", "8")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "https://store.example/catalog.php", cfg.Catalog.Url)
	require.Equal(t, "http://solver:8191/v1", cfg.Solver.Url)
	require.Equal(t, "local.db", cfg.Database.File)
	require.Equal(t, 8, cfg.Concurrency)

	spec, err := cfg.CronSpec()
	require.NoError(t, err)
	require.Equal(t, "@every 5m0s", spec)
}

func TestCronSpec(t *testing.T) {
	table := []struct {
		interval string
		expected string
		fails    bool
	}{
		{interval: "@every 5m", expected: "@every 5m"},
		{interval: "*/10 * * * *", expected: "*/10 * * * *"},
		{interval: "90s", expected: "@every 1m30s"},
		{interval: "-5m", fails: true},
		{interval: " ", fails: true},
	}
	for _, row := range table {
		spec, err := Config{Interval: row.interval}.CronSpec()
		if row.fails {
			require.Error(t, err, row.interval)
			continue
		}
		require.NoError(t, err, row.interval)
		require.Equal(t, row.expected, spec)
	}
}

func TestSelectionFromNames(t *testing.T) {
	var sel subscriber.Selection
	require.NoError(t, selectionFromNames(&sel, facet.KindTier, []string{"III", "wt_rank4", "III"}))
	require.NoError(t, selectionFromNames(&sel, facet.KindNation, []string{"germany"}))
	require.Equal(t, "wt_germany,wt_rank3,wt_rank4", sel.Signature())

	err := selectionFromNames(&sel, facet.KindVehicleClass, []string{"germany"})
	require.ErrorContains(t, err, "not a vehicle class")

	err = selectionFromNames(&sel, facet.KindNation, []string{"germny"})
	require.ErrorContains(t, err, "did you mean")
}
