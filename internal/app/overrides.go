package app

import (
	"strings"

	"tradeshare/internal/config"
)

// Overrides carries command-line flags. Zero values leave the config as is.
type Overrides struct {
	Provider string
	Year     int
	Top      int
	Backend  string
	CacheDir string
	LogLevel string
}

func (o Overrides) Apply(cfg *config.Config) {
	if v := strings.TrimSpace(o.Provider); v != "" {
		cfg.Provider = strings.ToLower(v)
	}
	if o.Year > 0 {
		cfg.Year = o.Year
	}
	if o.Top > 0 {
		cfg.Top = o.Top
	}
	if v := strings.TrimSpace(o.Backend); v != "" {
		cfg.Cache.Backend = strings.ToLower(v)
	}
	if v := strings.TrimSpace(o.CacheDir); v != "" {
		cfg.Cache.Dir = v
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		cfg.Log.Level = v
	}
}
