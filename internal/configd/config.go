// Package configd provides loading and parsing of the virtbenchd
// configuration file using Viper. It defines the full configuration
// schema and exposes functions to access it at runtime.
package configd

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pfjsystems/virtbench/internal/configloader"
	"github.com/pfjsystems/virtbench/internal/logging"
)

// Config represents the full structure of the virtbenchd configuration
// file: the rack of instruments to host plus the ambient subsystems.
type Config struct {
	Bench     string                `mapstructure:"bench"`
	Rack      map[string]Instrument `mapstructure:"rack"`
	Metrics   MetricsConfig         `mapstructure:"metrics"`
	Telemetry TelemetryConfig       `mapstructure:"telemetry"`
	Logger    logging.Config        `mapstructure:"log"`
}

// Instrument defines one virtual instrument on the rack: which driver
// builds it, where its protocol endpoint listens, and how it is wired
// into the other instruments on the bench.
type Instrument struct {
	Kind      string         `mapstructure:"kind"`
	Bind      string         `mapstructure:"bind"`
	Port      int            `mapstructure:"port"`
	Params    map[string]any `mapstructure:"params"`
	Inputs    []string       `mapstructure:"inputs"`  // upstream instruments, channel order
	Sampler   string         `mapstructure:"sampler"` // downstream instrument dictating the window
	Autostart bool           `mapstructure:"autostart"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// TelemetryConfig controls the Redis command-trace publisher.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
	Backlog  int64  `mapstructure:"backlog"`
}

// LoadConfig loads the virtbenchd configuration from disk using Viper
// and re-initializes the logger from its log section.
func LoadConfig() error {
	path, err := configloader.ResolveConfigPath("virtbenchd", "virtbenchd.yaml")
	if err != nil {
		return err
	}

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("config unmarshal failed: %w", err)
	}

	logCfg, ok := configloader.TryGetConfig[*logging.Config]()
	if ok {
		*logCfg = cfg.Logger
	} else {
		configloader.RegisterConfig(&cfg.Logger)
	}
	if err := logging.Init(); err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}

	if reg, ok := configloader.TryGetConfig[*Config](); ok {
		*reg = cfg
	} else {
		configloader.RegisterConfig(&cfg)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("bench", "bench")
	viper.SetDefault("metrics.listen", ":9317")
	viper.SetDefault("telemetry.channel", "virtbench:events")
	viper.SetDefault("telemetry.backlog", 1000)
	viper.SetDefault("telemetry.db", 0)
}
