package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	CatalogUrl string `json:"catalog_url" envconfig:"CATALOG_URL"`
	SolverUrl  string `json:"solver_url" envconfig:"SOLVER_URL"`
	Interval   string `json:"interval" envconfig:"INTERVAL"`
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfigMergesLocal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{
		// comments are allowed
		catalog_url: "https://store.example/catalog.php",
		interval: "@every 5m",
	}`)
	writeFile(t, filepath.Join(dir, "config.local.json5"), `{ interval: "@every 1m" }`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "https://store.example/catalog.php", cfg.CatalogUrl)
	require.Equal(t, "@every 1m", cfg.Interval)
}

func TestReadConfigMissing(t *testing.T) {
	_, err := ReadConfig[testConfig](filepath.Join(t.TempDir(), "config.json5"))
	require.True(t, os.IsNotExist(err))
}

func TestLoadAppliesEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.json5"), `{ catalog_url: "https://a", solver_url: "http://solver" }`)

	t.Setenv("PACKWATCHTEST_CATALOG_URL", "https://b")

	cfg, err := Load[testConfig](filepath.Join(dir, "config.json5"), "PACKWATCHTEST")
	require.NoError(t, err)
	require.Equal(t, "https://b", cfg.CatalogUrl)
	require.Equal(t, "http://solver", cfg.SolverUrl)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("PACKWATCHTEST_SOLVER_URL", "http://solver:8191/v1")

	cfg, err := Load[testConfig](filepath.Join(t.TempDir(), "missing.json5"), "PACKWATCHTEST")
	require.NoError(t, err)
	require.Equal(t, "http://solver:8191/v1", cfg.SolverUrl)
	require.Empty(t, cfg.CatalogUrl)
}
