package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SwingSentinel/internal/aggregator"
	"SwingSentinel/internal/swing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "SPX500", cfg.DataSource.Symbol)
	assert.Equal(t, []int{2, 5, 10}, cfg.Swing.Windows)
	assert.Equal(t, DedupKeepLast, cfg.Swing.DedupPolicy)
	assert.Equal(t, aggregator.Res1d, cfg.Resolution())
	assert.Equal(t, aggregator.Res1d, cfg.SourceResolution())
	assert.Equal(t, swing.Leftmost, cfg.TieBreak())
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
data_source:
  symbol: BTCUSD
  csv_path: data/btc.csv
aggregation:
  resolution: 4h
  source: 1h
swing:
  windows: [3, 7]
  cap: 200
  tie_break: rightmost
`)
	t.Setenv("SENTINEL_SWING_CAP", "50")
	t.Setenv("SENTINEL_DATA_SOURCE_SYMBOL", "ETHUSD")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ETHUSD", cfg.DataSource.Symbol)
	assert.Equal(t, "data/btc.csv", cfg.DataSource.CSVPath)
	assert.Equal(t, []int{3, 7}, cfg.Swing.Windows)
	assert.Equal(t, 50, cfg.Swing.Cap)
	assert.Equal(t, aggregator.Res4h, cfg.Resolution())
	assert.Equal(t, aggregator.Res1h, cfg.SourceResolution())
	assert.Equal(t, swing.Rightmost, cfg.TieBreak())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"zero window", "swing:\n  windows: [0, 3]\n"},
		{"bad resolution", "aggregation:\n  resolution: 2h\n"},
		{"bad tie break", "swing:\n  tie_break: middle\n"},
		{"dedup policy", "swing:\n  dedup_policy: keep_first\n"},
		{"negative cap", "swing:\n  cap: -1\n"},
		{"source coarser", "aggregation:\n  resolution: 1h\n  source: 1d\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "swing: [unclosed"))
	assert.Error(t, err)
}

func TestNewValidator_ResolutionTag(t *testing.T) {
	require.NotPanics(t, func() { newValidator() })
	v := newValidator()
	assert.NoError(t, v.Var("4h", "resolution"))
	assert.NoError(t, v.Var("1W", "resolution"))
	assert.Error(t, v.Var("2h", "resolution"))
	assert.Error(t, v.Var("", "resolution"))
}
