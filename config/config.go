// Package config contains the node configuration definitions.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/realmesh/go-realmesh/pubsub"
	"github.com/realmesh/go-realmesh/realm"
	"github.com/realmesh/go-realmesh/reconnect"
)

const defaultDataDirName = "realmesh"

// BaseConfig holds the top level settings.
type BaseConfig struct {
	// DataDir is where the node keeps its key, realm state and change sets.
	DataDir string `mapstructure:"data-dir"`
	// LogLevel is the minimum level emitted: debug, info, warn or error.
	LogLevel string `mapstructure:"log-level"`
	// MetricsListen, when set, serves prometheus metrics on this address.
	MetricsListen string `mapstructure:"metrics-listen"`
	// AdvertiseAddresses are the multiaddrs minted invites point at. When
	// empty, the host listen addresses are advertised.
	AdvertiseAddresses []string `mapstructure:"advertise-addresses"`
}

// Config defines the top level configuration for a realmesh node.
type Config struct {
	BaseConfig `mapstructure:"main"`
	Host       pubsub.HostConfig `mapstructure:"host"`
	PubSub     pubsub.Config     `mapstructure:"pubsub"`
	Realm      realm.Config      `mapstructure:"realm"`
	Reconnect  reconnect.Config  `mapstructure:"reconnect"`
}

// DefaultConfig returns the default node configuration.
func DefaultConfig() Config {
	return Config{
		BaseConfig: BaseConfig{
			DataDir:  defaultDataDir(),
			LogLevel: "info",
		},
		Host:      pubsub.DefaultHostConfig(),
		PubSub:    pubsub.DefaultConfig(),
		Realm:     realm.DefaultConfig(),
		Reconnect: reconnect.DefaultConfig(),
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return defaultDataDirName
	}
	return filepath.Join(home, "."+defaultDataDirName)
}

// LoadConfig reads the config file, when one is given, and unmarshals it
// over the defaults.
func LoadConfig(fileLocation string, vip *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if fileLocation != "" {
		vip.SetConfigFile(fileLocation)
		if err := vip.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", fileLocation, err)
		}
	}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := vip.Unmarshal(&cfg, hook); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
