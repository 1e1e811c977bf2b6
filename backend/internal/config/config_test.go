package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "player.toml")
	data := `
[server]
addr = ":9000"
stream_interval_ms = 100

[runtime]
scene = "levels/one.yaml"
tps = 30

[physics]
enabled = false
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, 100*time.Millisecond, cfg.Server.StreamPeriod())
	assert.Equal(t, "levels/one.yaml", cfg.Runtime.Scene)
	assert.Equal(t, 30, cfg.Runtime.TPS)
	assert.False(t, cfg.Physics.Enabled)
	assert.Equal(t, -9.81, cfg.Physics.GravityY, "untouched keys keep defaults")
	assert.Equal(t, 0.85, cfg.Control.DampingFactor)
}

func TestLoadInvalidToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server\naddr="), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("XSCENE_SCENE", "http://localhost/scene.json")
	t.Setenv("XSCENE_TPS", "90")
	t.Setenv("XSCENE_PHYSICS", "false")
	t.Setenv("XSCENE_TRACING", "true")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "http://localhost/scene.json", cfg.Runtime.Scene)
	assert.Equal(t, 90, cfg.Runtime.TPS)
	assert.False(t, cfg.Physics.Enabled)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "stdout", cfg.Tracing.Exporter)
}

func TestApplyEnvRejectsBadNumber(t *testing.T) {
	t.Setenv("XSCENE_TPS", "fast")
	cfg := Default()
	assert.Error(t, cfg.ApplyEnv())
}

func TestGetSet(t *testing.T) {
	orig := Get()
	defer Set(orig)

	cfg := Default()
	cfg.Control.BoostMultiplier = 3
	Set(cfg)

	assert.Equal(t, 3.0, GetControl().BoostMultiplier)
	assert.Equal(t, cfg.Physics, GetPhysics())
}
