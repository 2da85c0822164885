package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 100, cfg.Parse.MaxDepth)
	assert.Equal(t, int64(512<<20), cfg.Parse.MaxBytes)
	assert.False(t, cfg.Parse.AllowComments)
	assert.Equal(t, 1000, cfg.Tree.ChildLimit)
	assert.Equal(t, int64(3), cfg.Loader.Workers)
	assert.Equal(t, 10*time.Second, cfg.Loader.Timeout)
	assert.Equal(t, uint64(300<<20), cfg.Memory.WarnBytes)
	assert.Equal(t, uint64(500<<20), cfg.Memory.CriticalBytes)
	assert.Equal(t, 3, cfg.Memory.WarningStreak)
	assert.Equal(t, 1000, cfg.Search.MaxResults)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jsonview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
parse:
  max_depth: 42
memory:
  warning_streak: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Parse.MaxDepth)
	assert.Equal(t, 5, cfg.Memory.WarningStreak)
	assert.Equal(t, 1000, cfg.Tree.ChildLimit, "unset keys keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
