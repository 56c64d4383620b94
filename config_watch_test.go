package plexus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plexus.yaml")
	require.NoError(t, os.WriteFile(path, []byte("minDist: 0.1\n"), 0o644))

	changes := make(chan Config, 4)
	w, err := NewConfigWatcher(path, NewNopLogger(), func(cfg Config) { changes <- cfg })
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("minDist: 0.7\nmaxDist: 2\n"), 0o644))

	select {
	case cfg := <-changes:
		assert.Equal(t, float32(0.7), cfg.MinDist)
		assert.Equal(t, float32(2), cfg.MaxDist)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}
}

func TestConfigWatcher_InvalidFileSkipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plexus.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	changes := make(chan Config, 4)
	w, err := NewConfigWatcher(path, NewNopLogger(), func(cfg Config) { changes <- cfg })
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("backend: nope\n"), 0o644))
	select {
	case <-changes:
		t.Fatal("invalid config was applied")
	case <-time.After(500 * time.Millisecond):
	}
}

func TestConfigWatcher_FeedsPlexusState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plexus.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	state := &PlexusState{config: DefaultConfig()}
	w, err := NewConfigWatcher(path, NewNopLogger(), state.SetConfig)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("throttle: 0.5\nparticleCount: 8\n"), 0o644))
	require.Eventually(t, func() bool {
		return state.Config().Throttle == 0.5
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, DefaultConfig().ParticleCount, state.Config().ParticleCount)
}

func TestConfigWatcher_StopWithoutStart(t *testing.T) {
	w, err := NewConfigWatcher(filepath.Join(t.TempDir(), "plexus.yaml"), nil, func(Config) {})
	require.NoError(t, err)
	assert.NoError(t, w.Stop())
}
