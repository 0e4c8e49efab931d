package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesProtocolDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 60, cfg.JitterMinBufferMs)
	assert.Equal(t, 200, cfg.JitterMaxBufferMs)
	assert.Equal(t, 5, cfg.JitterMaxMissingRuns)
	assert.Equal(t, 5, cfg.BackoffMaxTrys)
	assert.Equal(t, 1.5, cfg.HeartbeatToleranceFactor)
	assert.Equal(t, 2, cfg.HeartbeatMissThreshold)

	assert.Equal(t, cfg.BackoffBase().Milliseconds(), int64(cfg.BackoffBaseMs))
	assert.Equal(t, cfg.BackoffCap().Milliseconds(), int64(cfg.BackoffCapMs))
}

func TestLoadWithMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voice.yaml")
	require.NoError(t, os.WriteFile(path, []byte("jitter_min_buffer_ms: 100\nopus_bitrate: 64000\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.JitterMinBufferMs)
	assert.Equal(t, 64000, cfg.OpusBitrate)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().JitterMaxBufferMs, cfg.JitterMaxBufferMs)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("VOICE_OPUS_BITRATE", "32000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 32000, cfg.OpusBitrate)
}
