// Package config provides the process-wide Config for the core, loaded in
// three layers of increasing priority: built-in defaults, environment
// variables, then functional options — the same layering the teacher
// framework's core.Config uses.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable named in the core specification's
// configuration table.
type Config struct {
	MaxMemoryMB           int           `json:"max_memory_mb" yaml:"max_memory_mb" env:"QUERYCORE_MAX_MEMORY_MB"`
	ReservedMB            int           `json:"reserved_mb" yaml:"reserved_mb" env:"QUERYCORE_RESERVED_MB"`
	EnableQuantization    bool          `json:"enable_quantization" yaml:"enable_quantization" env:"QUERYCORE_ENABLE_QUANTIZATION"`
	PreloadThreshold      float64       `json:"preload_threshold" yaml:"preload_threshold" env:"QUERYCORE_PRELOAD_THRESHOLD"`
	CacheTTL              time.Duration `json:"cache_ttl_s" yaml:"cache_ttl_s" env:"QUERYCORE_CACHE_TTL_S"`
	VerificationThreshold float64       `json:"verification_threshold" yaml:"verification_threshold" env:"QUERYCORE_VERIFICATION_THRESHOLD"`
	EnabledLayers         []string      `json:"enabled_layers" yaml:"enabled_layers" env:"QUERYCORE_ENABLED_LAYERS"`
	HistoryTTL            time.Duration `json:"history_ttl_days" yaml:"history_ttl_days" env:"QUERYCORE_HISTORY_TTL_DAYS"`

	Router    RouterConfig    `json:"router" yaml:"router"`
	Loader    LoaderConfig    `json:"loader" yaml:"loader"`
	Verify    VerificationCfg `json:"verification" yaml:"verification"`
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
	Logging   LoggingConfig   `json:"logging" yaml:"logging"`
}

// RouterConfig groups Smart Router tunables.
type RouterConfig struct {
	ProbeCacheTTL time.Duration `json:"probe_cache_ttl_s" yaml:"probe_cache_ttl_s" env:"QUERYCORE_PROBE_CACHE_TTL_S"`
}

// LoaderConfig groups Progressive Model Loader tunables.
type LoaderConfig struct {
	MaxHistory      int `json:"max_history" yaml:"max_history" env:"QUERYCORE_MAX_HISTORY"`
	PreloadQueueCap int `json:"preload_queue_capacity" yaml:"preload_queue_capacity" env:"QUERYCORE_PRELOAD_QUEUE_CAP"`
}

// VerificationCfg groups Verification Engine tunables beyond the top-level
// threshold/layer fields.
type VerificationCfg struct {
	HistoricalDefault float64 `json:"historical_default" yaml:"historical_default"`
}

// TelemetryConfig controls the pluggable metrics/trace exposition.
type TelemetryConfig struct {
	ServiceName string `json:"service_name" yaml:"service_name" env:"QUERYCORE_SERVICE_NAME"`
	Exporter    string `json:"exporter" yaml:"exporter" env:"QUERYCORE_TELEMETRY_EXPORTER"` // not read by telemetry.Init, which always exports spans to stdout
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" env:"QUERYCORE_LOG_LEVEL"`
	Format string `json:"format" yaml:"format" env:"QUERYCORE_LOG_FORMAT"`
}

// Option mutates a Config; applied after defaults and environment loading
// so functional options always win.
type Option func(*Config)

// Default returns the spec's documented defaults.
func Default() *Config {
	return &Config{
		MaxMemoryMB:           8192,
		ReservedMB:            1024,
		EnableQuantization:    true,
		PreloadThreshold:      0.5,
		CacheTTL:              5 * time.Second,
		VerificationThreshold: 0.7,
		EnabledLayers:         []string{"schema", "plausibility", "cross_reference", "llm_critique"},
		HistoryTTL:            30 * 24 * time.Hour,
		Router: RouterConfig{
			ProbeCacheTTL: 5 * time.Second,
		},
		Loader: LoaderConfig{
			MaxHistory:      1000,
			PreloadQueueCap: 256,
		},
		Verify: VerificationCfg{
			HistoricalDefault: 0.7,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "querycore",
			Exporter:    "stdout",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// New builds a Config by layering defaults, then environment variables,
// then the supplied options.
func New(opts ...Option) *Config {
	cfg := Default()
	cfg.loadFromEnv()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// LoadFile layers a YAML manifest on top of the built-in defaults, the
// way the teacher framework's core config loader reads its own settings
// file, before environment variables and functional options are applied.
func LoadFile(path string, opts ...Option) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.loadFromEnv()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}

// loadFromEnv reads the top-level fields and the logging settings from
// their environment variables. The env tags on RouterConfig, LoaderConfig
// and TelemetryConfig fields are not read here.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("QUERYCORE_MAX_MEMORY_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxMemoryMB = n
		}
	}
	if v := os.Getenv("QUERYCORE_RESERVED_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ReservedMB = n
		}
	}
	if v := os.Getenv("QUERYCORE_ENABLE_QUANTIZATION"); v != "" {
		c.EnableQuantization = parseBool(v)
	}
	if v := os.Getenv("QUERYCORE_PRELOAD_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.PreloadThreshold = f
		}
	}
	if v := os.Getenv("QUERYCORE_CACHE_TTL_S"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CacheTTL = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("QUERYCORE_VERIFICATION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.VerificationThreshold = f
		}
	}
	if v := os.Getenv("QUERYCORE_ENABLED_LAYERS"); v != "" {
		c.EnabledLayers = strings.Split(v, ",")
	}
	if v := os.Getenv("QUERYCORE_HISTORY_TTL_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HistoryTTL = time.Duration(n) * 24 * time.Hour
		}
	}
	if v := os.Getenv("QUERYCORE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("QUERYCORE_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}

// WithMaxMemoryMB overrides the memory ceiling.
func WithMaxMemoryMB(mb int) Option { return func(c *Config) { c.MaxMemoryMB = mb } }

// WithReservedMB overrides the baseline reservation.
func WithReservedMB(mb int) Option { return func(c *Config) { c.ReservedMB = mb } }

// WithQuantization toggles quantization.
func WithQuantization(enabled bool) Option { return func(c *Config) { c.EnableQuantization = enabled } }

// WithPreloadThreshold overrides the predictive-preload confidence floor.
func WithPreloadThreshold(t float64) Option { return func(c *Config) { c.PreloadThreshold = t } }

// WithCacheTTL overrides the probe cache TTL (CacheTTL and
// Router.ProbeCacheTTL). The complexity history TTL is HistoryTTL.
func WithCacheTTL(d time.Duration) Option {
	return func(c *Config) {
		c.CacheTTL = d
		c.Router.ProbeCacheTTL = d
	}
}

// WithVerificationThreshold overrides the accept/review confidence floor.
func WithVerificationThreshold(t float64) Option {
	return func(c *Config) { c.VerificationThreshold = t }
}

// WithEnabledLayers overrides the active verification layer set.
func WithEnabledLayers(layers ...string) Option {
	return func(c *Config) { c.EnabledLayers = layers }
}

// WithServiceName sets the telemetry service name.
func WithServiceName(name string) Option {
	return func(c *Config) { c.Telemetry.ServiceName = name }
}

// HasLayer reports whether a verification layer is enabled.
func (c *Config) HasLayer(name string) bool {
	for _, l := range c.EnabledLayers {
		if l == name {
			return true
		}
	}
	return false
}
