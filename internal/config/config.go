// Package config loads bug ledger settings.
//
// Settings come from, in increasing precedence: built-in defaults, a TOML
// file, BUGLEDGER_* environment variables, and command-line flags bound by
// the caller. The file is config.toml in ./.bugledger or $HOME/.bugledger
// unless a path is given.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Ledger drivers.
const (
	DriverEth      = "eth"
	DriverEmbedded = "embedded"
)

// Dir is the per-project and per-user configuration directory name.
const Dir = ".bugledger"

// EnvPrefix prefixes environment overrides, e.g. BUGLEDGER_LEDGER_ENDPOINT.
const EnvPrefix = "BUGLEDGER"

// Duration is a time.Duration written as a string such as "5s".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full set of settings.
type Config struct {
	Ledger    LedgerConfig    `toml:"ledger" mapstructure:"ledger"`
	Embedded  EmbeddedConfig  `toml:"embedded" mapstructure:"embedded"`
	Engine    EngineConfig    `toml:"engine" mapstructure:"engine"`
	Daemon    DaemonConfig    `toml:"daemon" mapstructure:"daemon"`
	Dashboard DashboardConfig `toml:"dashboard" mapstructure:"dashboard"`
	Log       LogConfig       `toml:"log" mapstructure:"log"`
}

// LedgerConfig selects and tunes the ledger connection.
type LedgerConfig struct {
	Driver   string `toml:"driver" mapstructure:"driver"`
	Endpoint string `toml:"endpoint" mapstructure:"endpoint"`
	Contract string `toml:"contract" mapstructure:"contract"`

	GasLimit         uint64 `toml:"gas_limit" mapstructure:"gas_limit"`
	PrecheckGasLimit uint64 `toml:"precheck_gas_limit" mapstructure:"precheck_gas_limit"`
	DeleteGasLimit   uint64 `toml:"delete_gas_limit" mapstructure:"delete_gas_limit"`

	// CallTimeout bounds each ledger call. Zero means no timeout.
	CallTimeout         Duration `toml:"call_timeout" mapstructure:"call_timeout"`
	ReceiptPollInterval Duration `toml:"receipt_poll_interval" mapstructure:"receipt_poll_interval"`
}

// EmbeddedConfig configures the sqlite ledger.
type EmbeddedConfig struct {
	Path       string   `toml:"path" mapstructure:"path"`
	Identities []string `toml:"identities" mapstructure:"identities"`
}

// EngineConfig tunes reconciliation.
type EngineConfig struct {
	ReadConcurrency int `toml:"read_concurrency" mapstructure:"read_concurrency"`
}

// DaemonConfig tunes watch mode.
type DaemonConfig struct {
	RefreshInterval  Duration `toml:"refresh_interval" mapstructure:"refresh_interval"`
	DebounceInterval Duration `toml:"debounce_interval" mapstructure:"debounce_interval"`
}

// DashboardConfig configures the web dashboard.
type DashboardConfig struct {
	Port int `toml:"port" mapstructure:"port"`
}

// LogConfig configures log output. An empty File logs to stderr.
type LogConfig struct {
	File       string `toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Ledger: LedgerConfig{
			Driver:              DriverEth,
			Endpoint:            "http://127.0.0.1:7545",
			GasLimit:            3000000,
			PrecheckGasLimit:    300000,
			DeleteGasLimit:      300000,
			ReceiptPollInterval: Duration(200 * time.Millisecond),
		},
		Embedded: EmbeddedConfig{
			Path:       filepath.Join(Dir, "ledger.db"),
			Identities: []string{"0xA"},
		},
		Engine: EngineConfig{
			ReadConcurrency: 1,
		},
		Daemon: DaemonConfig{
			DebounceInterval: Duration(100 * time.Millisecond),
		},
		Dashboard: DashboardConfig{
			Port: 8080,
		},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// NewViper returns a viper instance with defaults and environment binding
// set up. If path is non-empty it is the config file; otherwise the
// standard locations are searched.
func NewViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(Dir)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, Dir))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("ledger.driver", d.Ledger.Driver)
	v.SetDefault("ledger.endpoint", d.Ledger.Endpoint)
	v.SetDefault("ledger.contract", d.Ledger.Contract)
	v.SetDefault("ledger.gas_limit", d.Ledger.GasLimit)
	v.SetDefault("ledger.precheck_gas_limit", d.Ledger.PrecheckGasLimit)
	v.SetDefault("ledger.delete_gas_limit", d.Ledger.DeleteGasLimit)
	v.SetDefault("ledger.call_timeout", d.Ledger.CallTimeout.Std().String())
	v.SetDefault("ledger.receipt_poll_interval", d.Ledger.ReceiptPollInterval.Std().String())
	v.SetDefault("embedded.path", d.Embedded.Path)
	v.SetDefault("embedded.identities", d.Embedded.Identities)
	v.SetDefault("engine.read_concurrency", d.Engine.ReadConcurrency)
	v.SetDefault("daemon.refresh_interval", d.Daemon.RefreshInterval.Std().String())
	v.SetDefault("daemon.debounce_interval", d.Daemon.DebounceInterval.Std().String())
	v.SetDefault("dashboard.port", d.Dashboard.Port)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

// Load reads the config file, if any, and decodes the merged settings.
// A missing file in the search path is not an error; a missing explicit
// file is.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later and less clearly.
func (c *Config) Validate() error {
	switch c.Ledger.Driver {
	case DriverEth:
		if c.Ledger.Endpoint == "" {
			return fmt.Errorf("ledger.endpoint is required for the %s driver", DriverEth)
		}
	case DriverEmbedded:
		if c.Embedded.Path == "" {
			return fmt.Errorf("embedded.path is required for the %s driver", DriverEmbedded)
		}
	default:
		return fmt.Errorf("unknown ledger.driver %q (want %s or %s)", c.Ledger.Driver, DriverEth, DriverEmbedded)
	}
	if c.Ledger.GasLimit == 0 || c.Ledger.PrecheckGasLimit == 0 || c.Ledger.DeleteGasLimit == 0 {
		return fmt.Errorf("gas limits must be positive")
	}
	if c.Engine.ReadConcurrency < 1 {
		return fmt.Errorf("engine.read_concurrency must be at least 1")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard.port %d out of range", c.Dashboard.Port)
	}
	return nil
}

// Endpoint returns the endpoint for the selected driver.
func (c *Config) Endpoint() string {
	if c.Ledger.Driver == DriverEmbedded {
		return c.Embedded.Path
	}
	return c.Ledger.Endpoint
}

// DefaultPath returns the project-local config file path.
func DefaultPath() string {
	return filepath.Join(Dir, "config.toml")
}

// WriteDefault writes the built-in settings to path as TOML. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if path == "" {
		path = DefaultPath()
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(Default()); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return f.Close()
}
