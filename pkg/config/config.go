// Package config loads the relay daemon configuration.
//
// Settings come from config.yaml in the root directory, overridable via
// RELAY_* environment variables. Unknown keys are rejected so a typo in the
// config file fails startup instead of being silently ignored.
package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const (
	BusKindMemory = "memory"
	BusKindNATS   = "nats"

	DefaultListenHost = "127.0.0.1"
	DefaultListenPort = 27632
	DefaultBusCap     = 10
)

var busKinds = []string{BusKindMemory, BusKindNATS}

// Config holds the full daemon configuration.
type Config struct {
	Environment string  `mapstructure:"environment"`
	Listen      Address `mapstructure:"listen"`
	Bus         Bus     `mapstructure:"bus"`
}

// Bus configures the fan-out bus shared by all connections.
type Bus struct {
	Kind     string `mapstructure:"kind"`
	URL      string `mapstructure:"url"`
	Capacity int    `mapstructure:"capacity"`
}

// InitViperConfig wires viper to config.yaml under rootDir plus RELAY_*
// environment overrides. Absence of the config file is not an error; the
// defaults describe a complete working setup.
func InitViperConfig(rootDir string) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	if rootDir == "" {
		rootDir = "."
	}
	viper.AddConfigPath(rootDir)

	viper.SetDefault("environment", "development")
	viper.SetDefault("listen", fmt.Sprintf("%s:%d", DefaultListenHost, DefaultListenPort))
	viper.SetDefault("bus.kind", BusKindMemory)
	viper.SetDefault("bus.url", "")
	viper.SetDefault("bus.capacity", DefaultBusCap)

	viper.SetEnvPrefix("RELAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range []string{"environment", "listen", "bus.kind", "bus.url", "bus.capacity"} {
		if err := viper.BindEnv(key); err != nil {
			return err
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// Load decodes the viper state into a validated Config.
func Load() (*Config, error) {
	settings := map[string]any{}
	for _, key := range viper.AllKeys() {
		settings[key] = viper.Get(key)
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		DecodeHook:       decodeAddressHook,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(nested(settings)); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if !lo.Contains(busKinds, cfg.Bus.Kind) {
		return nil, fmt.Errorf("invalid config: unknown bus kind %q (want one of %v)", cfg.Bus.Kind, busKinds)
	}
	if cfg.Bus.Kind == BusKindNATS && cfg.Bus.URL == "" {
		return nil, fmt.Errorf("invalid config: bus.url is required for the nats bus")
	}
	if cfg.Bus.Capacity <= 0 {
		return nil, fmt.Errorf("invalid config: bus.capacity must be positive, got %d", cfg.Bus.Capacity)
	}
	return cfg, nil
}

// decodeAddressHook converts "host:port" strings into Address values.
func decodeAddressHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(Address{}) {
		return data, nil
	}
	return ParseAddress(data.(string))
}

// nested rebuilds the nested shape mapstructure expects from viper's
// dotted keys ("bus.kind" -> bus: {kind: ...}).
func nested(settings map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range settings {
		node := out
		parts := strings.Split(key, ".")
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = map[string]any{}
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = value
	}
	return out
}
