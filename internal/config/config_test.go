package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFillsDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sysdbd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen:\n  - \"unix:/tmp/sysdbd.sock\"\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"unix:/tmp/sysdbd.sock"}, cfg.Listen)
	assert.Equal(t, 5, cfg.Workers)
	assert.Equal(t, 1024, cfg.ChannelDepth)
	assert.Equal(t, 30*time.Second, cfg.CollectorInterval)
}

func TestLoadRejectsNonUnixAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sysdbd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen:\n  - \"tcp:127.0.0.1:5432\"\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsNonPositiveWorkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sysdbd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen:\n  - \"unix:/tmp/sysdbd.sock\"\nworkers: -1\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
