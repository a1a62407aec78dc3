// Package config loads hkgsafetyd settings from defaults, an optional YAML
// file and HKGSAFETY_ environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/notnil/hkgsafety"
)

// EnvPrefix prefixes every environment override, e.g. HKGSAFETY_SAFETY_HOOKS.
const EnvPrefix = "HKGSAFETY"

// Config holds all configuration for the daemon.
type Config struct {
	Safety  SafetyConfig  `mapstructure:"safety"`
	Buses   BusesConfig   `mapstructure:"buses"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// SafetyConfig selects the hook set and its parameter bits.
type SafetyConfig struct {
	Hooks        string `mapstructure:"hooks"`
	EVGas        bool   `mapstructure:"ev_gas"`
	HybridGas    bool   `mapstructure:"hybrid_gas"`
	Longitudinal bool   `mapstructure:"longitudinal"`
	CameraSCC    bool   `mapstructure:"camera_scc"`
	AltLimits    bool   `mapstructure:"alt_limits"`
}

// BusesConfig maps bus indices to SocketCAN interfaces.
type BusesConfig struct {
	// Interfaces is keyed by bus index ("0", "1", "2").
	Interfaces map[string]string `mapstructure:"interfaces"`
	// Upstream holds the compute module interface paired with each vehicle
	// bus, keyed the same way. Empty runs the gateway without a compute
	// module attached.
	Upstream  map[string]string `mapstructure:"upstream"`
	BringUp   bool              `mapstructure:"bring_up"`
	Bitrate   uint32            `mapstructure:"bitrate"`
	RestartMs uint32            `mapstructure:"restart_ms"`
}

// GatewayConfig tunes the gateway loops.
type GatewayConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // auto, text or json
}

// MetricsConfig defines the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from path, or from config.yaml in the usual
// locations when path is empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hkgsafety")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	// A configured map replaces the default rather than merging with it.
	if len(cfg.Buses.Interfaces) == 0 {
		cfg.Buses.Interfaces = DefaultInterfaces()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultInterfaces is the usual harness: vehicle on can0, camera on can2.
func DefaultInterfaces() map[string]string {
	return map[string]string{"0": "can0", "2": "can2"}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("safety.hooks", "standard")
	v.SetDefault("safety.ev_gas", false)
	v.SetDefault("safety.hybrid_gas", false)
	v.SetDefault("safety.longitudinal", false)
	v.SetDefault("safety.camera_scc", false)
	v.SetDefault("safety.alt_limits", false)

	v.SetDefault("buses.bring_up", false)
	v.SetDefault("buses.bitrate", 500000)
	v.SetDefault("buses.restart_ms", 100)

	v.SetDefault("gateway.tick_interval", "100ms")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "auto")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen", ":9108")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for values the daemon cannot run with.
func (c *Config) Validate() error {
	if _, err := c.Safety.HookSet(); err != nil {
		return fmt.Errorf("config: safety.hooks: %w", err)
	}
	if c.Safety.EVGas && c.Safety.HybridGas {
		return errors.New("config: safety.ev_gas and safety.hybrid_gas are exclusive")
	}
	if err := c.Buses.validate(); err != nil {
		return err
	}
	if c.Gateway.TickInterval < 0 {
		return fmt.Errorf("config: gateway.tick_interval %s is negative", c.Gateway.TickInterval)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "auto", "text", "json":
	default:
		return fmt.Errorf("config: logging.format %q (want auto, text or json)", c.Logging.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("config: metrics.listen is empty")
	}
	return nil
}

// HookSet parses the configured hook set name.
func (s SafetyConfig) HookSet() (hkgsafety.HookSet, error) {
	return hkgsafety.ParseHookSet(s.Hooks)
}

// Param packs the boolean switches into parameter bits.
func (s SafetyConfig) Param() hkgsafety.Param {
	var p hkgsafety.Param
	for _, sw := range []struct {
		on   bool
		flag hkgsafety.Param
	}{
		{s.EVGas, hkgsafety.ParamEVGas},
		{s.HybridGas, hkgsafety.ParamHybridGas},
		{s.Longitudinal, hkgsafety.ParamLongitudinal},
		{s.CameraSCC, hkgsafety.ParamCameraSCC},
		{s.AltLimits, hkgsafety.ParamAltLimits},
	} {
		if sw.on {
			p |= sw.flag
		}
	}
	return p
}

// Map returns the vehicle interfaces keyed by numeric bus index.
func (b BusesConfig) Map() (map[int]string, error) {
	if len(b.Interfaces) == 0 {
		return nil, errors.New("config: buses.interfaces is empty")
	}
	return indexMap("buses.interfaces", b.Interfaces)
}

// UpstreamMap returns the compute module interfaces keyed by the vehicle bus
// they serve.
func (b BusesConfig) UpstreamMap() (map[int]string, error) {
	return indexMap("buses.upstream", b.Upstream)
}

func indexMap(key string, in map[string]string) (map[int]string, error) {
	out := make(map[int]string, len(in))
	for k, iface := range in {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 || idx > 7 {
			return nil, fmt.Errorf("config: %s: bad bus index %q", key, k)
		}
		if iface == "" {
			return nil, fmt.Errorf("config: %s: bus %d has no interface", key, idx)
		}
		out[idx] = iface
	}
	return out, nil
}

func (b BusesConfig) validate() error {
	vehicle, err := b.Map()
	if err != nil {
		return err
	}
	upstream, err := b.UpstreamMap()
	if err != nil {
		return err
	}
	seen := make(map[string]string)
	claim := func(iface, owner string) error {
		if prev, ok := seen[iface]; ok {
			return fmt.Errorf("config: interface %s used by %s and %s", iface, prev, owner)
		}
		seen[iface] = owner
		return nil
	}
	for _, idx := range sortedKeys(vehicle) {
		if err := claim(vehicle[idx], fmt.Sprintf("bus %d", idx)); err != nil {
			return err
		}
	}
	for _, idx := range sortedKeys(upstream) {
		if _, ok := vehicle[idx]; !ok {
			return fmt.Errorf("config: buses.upstream: bus %d is not a vehicle bus", idx)
		}
		if err := claim(upstream[idx], fmt.Sprintf("upstream %d", idx)); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[int]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// SlogLevel parses the configured level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("config: logging.level: %w", err)
	}
	return lvl, nil
}
