package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n  codec: json\n"), 0o600))

	opts := &options{}
	cmd := newCmd(opts)
	require.NoError(t, cmd.Flags().Parse([]string{
		"--config", path,
		"--codec", "proto",
		"--redis", "127.0.0.1:6380",
		"--conceal-hands",
	}))

	cfg, err := loadConfig(opts, cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "proto", cfg.Server.Codec)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "127.0.0.1:6380", cfg.Redis.Addr)
	assert.True(t, cfg.Game.ConcealHands)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	opts := &options{}
	cmd := newCmd(opts)
	require.NoError(t, cmd.Flags().Parse([]string{"--config", filepath.Join(t.TempDir(), "none.yaml")}))

	cfg, err := loadConfig(opts, cmd.Flags())
	require.NoError(t, err)
	assert.Equal(t, 1780, cfg.Server.Port)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadConfig_InvalidPort(t *testing.T) {
	opts := &options{}
	cmd := newCmd(opts)
	require.NoError(t, cmd.Flags().Parse([]string{
		"--config", filepath.Join(t.TempDir(), "none.yaml"),
		"--port", "70000",
	}))

	_, err := loadConfig(opts, cmd.Flags())
	assert.Error(t, err)
}
