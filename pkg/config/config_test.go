package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoaderLoadsValidConfig(t *testing.T) {
	path := writeConfig(t, `
policy:
  shared_cache: true
  max_response_body_size: 1048576
store:
  backend: memory
  max_entries: 500
logging:
  level: debug
`)
	ldr, err := NewLoader(path, false, 0)
	require.NoError(t, err)

	cfg := ldr.Config()
	require.NotNil(t, cfg)
	assert.True(t, cfg.Policy.IsSharedCache)
	assert.Equal(t, int64(1048576), cfg.Policy.MaxResponseBodySize)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, 500, cfg.Store.MaxEntries)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoaderRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
store:
  backend: carrier-pigeon
`)
	_, err := NewLoader(path, false, 0)
	assert.Error(t, err)
}

func TestLoaderRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, `
policy:
  shared_cache: true
typo_field: true
`)
	_, err := NewLoader(path, false, 0)
	assert.Error(t, err)
}

func TestLoaderSkipsReparseWhenUnchanged(t *testing.T) {
	path := writeConfig(t, `
policy:
  shared_cache: false
`)
	ldr, err := NewLoader(path, false, 0)
	require.NoError(t, err)

	changed, err := ldr.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, changed, "reloading an unchanged file must report no change")
}

func TestLoaderDetectsChangeOnReload(t *testing.T) {
	path := writeConfig(t, `
policy:
  shared_cache: false
`)
	ldr, err := NewLoader(path, false, 0)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("policy:\n  shared_cache: true\n"), 0o644))

	changed, err := ldr.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, ldr.Config().Policy.IsSharedCache)
}

func TestStoreConfigRequiresBackendSection(t *testing.T) {
	sc := StoreConfig{Backend: BackendRedis}
	assert.Error(t, sc.Validate())

	sc = StoreConfig{Backend: BackendDisk}
	assert.Error(t, sc.Validate())

	sc = StoreConfig{Backend: BackendMemcache}
	assert.Error(t, sc.Validate())

	sc = StoreConfig{Backend: BackendMemory}
	assert.NoError(t, sc.Validate())
}

func TestWatchRespectsContextCancellation(t *testing.T) {
	path := writeConfig(t, `
policy:
  shared_cache: false
`)
	ldr, err := NewLoader(path, true, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, ldr.Watch(ctx))
	cancel()
	ldr.Close()
}
