package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notnil/hkgsafety"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hkgsafety.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "standard", cfg.Safety.Hooks)
	assert.Equal(t, hkgsafety.Param(0), cfg.Safety.Param())
	assert.Equal(t, DefaultInterfaces(), cfg.Buses.Interfaces)
	assert.Equal(t, uint32(500000), cfg.Buses.Bitrate)
	assert.Equal(t, 100*time.Millisecond, cfg.Gateway.TickInterval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
safety:
  hooks: adaptive
  hybrid_gas: true
  alt_limits: true
buses:
  interfaces:
    "0": vcan0
    "1": vcan1
  upstream:
    "0": vcan8
    "1": vcan9
gateway:
  tick_interval: 250ms
logging:
  level: debug
  format: json
metrics:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	h, err := cfg.Safety.HookSet()
	require.NoError(t, err)
	assert.Equal(t, hkgsafety.HooksAdaptive, h)
	assert.Equal(t, hkgsafety.ParamHybridGas|hkgsafety.ParamAltLimits, cfg.Safety.Param())

	m, err := cfg.Buses.Map()
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "vcan0", 1: "vcan1"}, m, "no default bus merged in")
	up, err := cfg.Buses.UpstreamMap()
	require.NoError(t, err)
	assert.Equal(t, map[int]string{0: "vcan8", 1: "vcan9"}, up)

	assert.Equal(t, 250*time.Millisecond, cfg.Gateway.TickInterval)
	lvl, err := cfg.Logging.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HKGSAFETY_SAFETY_HOOKS", "legacy")
	t.Setenv("HKGSAFETY_SAFETY_LONGITUDINAL", "true")
	t.Setenv("HKGSAFETY_METRICS_LISTEN", "127.0.0.1:9999")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "legacy", cfg.Safety.Hooks)
	assert.True(t, cfg.Safety.Param().Has(hkgsafety.ParamLongitudinal))
	assert.Equal(t, "127.0.0.1:9999", cfg.Metrics.Listen)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Safety:  SafetyConfig{Hooks: "standard"},
			Buses:   BusesConfig{Interfaces: map[string]string{"0": "can0"}},
			Logging: LoggingConfig{Level: "info", Format: "auto"},
			Metrics: MetricsConfig{Enabled: true, Listen: ":9108"},
		}
	}
	base := valid()
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown hooks", func(c *Config) { c.Safety.Hooks = "toyota" }},
		{"both gas layouts", func(c *Config) { c.Safety.EVGas, c.Safety.HybridGas = true, true }},
		{"no buses", func(c *Config) { c.Buses.Interfaces = nil }},
		{"bad index", func(c *Config) { c.Buses.Interfaces = map[string]string{"x": "can0"} }},
		{"index out of range", func(c *Config) { c.Buses.Interfaces = map[string]string{"8": "can0"} }},
		{"empty iface", func(c *Config) { c.Buses.Interfaces = map[string]string{"0": ""} }},
		{"shared iface", func(c *Config) { c.Buses.Interfaces = map[string]string{"0": "can0", "2": "can0"} }},
		{"upstream shares an iface", func(c *Config) { c.Buses.Upstream = map[string]string{"0": "can0"} }},
		{"upstream without vehicle bus", func(c *Config) { c.Buses.Upstream = map[string]string{"2": "vcan2"} }},
		{"negative tick", func(c *Config) { c.Gateway.TickInterval = -time.Second }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }},
		{"metrics without listen", func(c *Config) { c.Metrics.Listen = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
