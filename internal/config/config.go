package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const (
	appName   = "tradeshare"
	envPrefix = "TRADESHARE"

	ProviderWITS     = "wits"
	ProviderComtrade = "comtrade"

	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendNone   = "none"

	DefaultProvider = ProviderWITS
	DefaultYear     = 2020
)

type Config struct {
	Provider string      `mapstructure:"provider" yaml:"provider"`
	Year     int         `mapstructure:"year"     yaml:"year"`
	Top      int         `mapstructure:"top"      yaml:"top"`
	Cache    CacheConfig `mapstructure:"cache"    yaml:"cache"`
	Log      LogConfig   `mapstructure:"log"      yaml:"log"`
}

type CacheConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // "file", "sqlite" or "none"
	Dir     string `mapstructure:"dir"     yaml:"dir"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads defaults, then tradeshare.yaml, then TRADESHARE_* environment
// variables. With an empty path the file is looked up in the working
// directory and $XDG_CONFIG_HOME/tradeshare and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(appName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, appName))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Cache.Backend))
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", DefaultProvider)
	v.SetDefault("year", DefaultYear)
	v.SetDefault("top", 5)

	v.SetDefault("cache.backend", BackendFile)
	v.SetDefault("cache.dir", filepath.Join(xdg.CacheHome, appName))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderWITS, ProviderComtrade:
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider)
	}
	switch c.Cache.Backend {
	case BackendFile, BackendSQLite:
		if strings.TrimSpace(c.Cache.Dir) == "" {
			return fmt.Errorf("config: cache.dir is required for the %s backend", c.Cache.Backend)
		}
	case BackendNone:
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.Year <= 0 {
		return fmt.Errorf("config: year must be positive, got %d", c.Year)
	}
	if c.Top <= 0 {
		return fmt.Errorf("config: top must be positive, got %d", c.Top)
	}
	return nil
}

// DBPath is the sqlite database file inside the cache directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.Cache.Dir, appName+".db")
}
