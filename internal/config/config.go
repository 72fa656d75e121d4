// Package config loads process settings for the scene server from
// scenecraft.yaml, with SCENECRAFT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "SCENECRAFT"

type Config struct {
	Listen     string `mapstructure:"listen"`
	DataDir    string `mapstructure:"dataDir"`
	ConfigsDir string `mapstructure:"configsDir"`

	// Scene is the scene definition to build. Resume, when set, takes
	// precedence and names a snapshot file to continue from.
	Scene  string `mapstructure:"scene"`
	Resume string `mapstructure:"resume"`

	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`

	Log      LogConfig      `mapstructure:"log"`
	Index    IndexConfig    `mapstructure:"index"`
	Observer ObserverConfig `mapstructure:"observer"`
	TickLog  TickLogConfig  `mapstructure:"tickLog"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type IndexConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path defaults to <dataDir>/<scene id>/index.db.
	Path string `mapstructure:"path"`
}

type ObserverConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type TickLogConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Every writes one tick entry per Every ticks; build rounds are
	// always written.
	Every int `mapstructure:"every"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "127.0.0.1:8090")
	v.SetDefault("dataDir", "./data")
	v.SetDefault("configsDir", "./configs")
	v.SetDefault("scene", "./configs/scenes/sample.json")
	v.SetDefault("resume", "")
	v.SetDefault("shutdownTimeout", "5s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("index.enabled", true)
	v.SetDefault("index.path", "")

	v.SetDefault("observer.enabled", true)

	v.SetDefault("tickLog.enabled", true)
	v.SetDefault("tickLog.every", 1)
}

// Load reads path (YAML) over the defaults, then applies environment
// overrides such as SCENECRAFT_LOG_LEVEL. An empty path skips the file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Listen == "" && c.Observer.Enabled {
		return errors.New("config: observer enabled without listen address")
	}
	if c.DataDir == "" {
		return errors.New("config: dataDir is required")
	}
	if c.Scene == "" && c.Resume == "" {
		return errors.New("config: one of scene or resume is required")
	}
	if c.TickLog.Every < 1 {
		return fmt.Errorf("config: tickLog.every must be >= 1, got %d", c.TickLog.Every)
	}
	return nil
}
