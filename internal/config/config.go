package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. OVERDRIVE_LOGLEVEL=debug.
const EnvPrefix = "OVERDRIVE"

type Config struct {
	LogLevel  string          `json:"logLevel" mapstructure:"logLevel"`
	BLE       BLEConfig       `json:"ble" mapstructure:"ble"`
	Registry  RegistryConfig  `json:"registry" mapstructure:"registry"`
	Vehicle   VehicleConfig   `json:"vehicle" mapstructure:"vehicle"`
	Scanner   ScannerConfig   `json:"scanner" mapstructure:"scanner"`
	Simulator SimulatorConfig `json:"simulator" mapstructure:"simulator"`
}

type BLEConfig struct {
	DiscoveryWindow time.Duration `json:"discoveryWindow" mapstructure:"discoveryWindow"`
}

type RegistryConfig struct {
	SyncInterval time.Duration `json:"syncInterval" mapstructure:"syncInterval"`
}

type VehicleConfig struct {
	RequestTimeout time.Duration `json:"requestTimeout" mapstructure:"requestTimeout"`
	SendBuffer     int           `json:"sendBuffer" mapstructure:"sendBuffer"`
	WriteGap       time.Duration `json:"writeGap" mapstructure:"writeGap"`
}

// ScannerConfig holds the track scan settings. Speeds are in millimeters per second.
type ScannerConfig struct {
	Speed        uint16 `json:"speed" mapstructure:"speed"`
	Acceleration uint16 `json:"acceleration" mapstructure:"acceleration"`
	MaxRetries   int    `json:"maxRetries" mapstructure:"maxRetries"`
}

type SimulatorConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	StepInterval time.Duration `json:"stepInterval" mapstructure:"stepInterval"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")

	v.SetDefault("ble.discoveryWindow", 500*time.Millisecond)

	v.SetDefault("registry.syncInterval", 3*time.Second)

	v.SetDefault("vehicle.requestTimeout", 1500*time.Millisecond)
	v.SetDefault("vehicle.sendBuffer", 100)
	v.SetDefault("vehicle.writeGap", time.Duration(0))

	v.SetDefault("scanner.speed", 450)
	v.SetDefault("scanner.acceleration", 500)
	v.SetDefault("scanner.maxRetries", 3)

	v.SetDefault("simulator.enabled", false)
	v.SetDefault("simulator.stepInterval", 250*time.Millisecond)
}

// Load reads configuration from the file at path, if any, on top of the defaults.
// The format follows the file extension (json, yaml, toml). Environment variables
// override both.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	return cfg, nil
}
