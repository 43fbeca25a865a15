package internal

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

type NovaHeapConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Workdir  string `mapstructure:"workdir"`
		PageSize int    `mapstructure:"page_size"`
	} `mapstructure:"storage"`

	BufferPool struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"bufferpool"`

	Stats struct {
		IOCostPerPage int   `mapstructure:"io_cost_per_page"`
		HistBins      int   `mapstructure:"hist_bins"`
		Workers       int   `mapstructure:"workers"`
		CacheEntries  int64 `mapstructure:"cache_entries"`
	} `mapstructure:"stats"`

	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "novaheap")
	v.SetDefault("storage.workdir", "./data")
	v.SetDefault("storage.page_size", 4096)
	v.SetDefault("bufferpool.capacity", 128)
	v.SetDefault("stats.io_cost_per_page", 1000)
	v.SetDefault("stats.hist_bins", 100)
	v.SetDefault("stats.workers", 4)
	v.SetDefault("stats.cache_entries", 1024)
	v.SetDefault("log.level", "info")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// NOVAHEAP_STATS_HIST_BINS overrides stats.hist_bins, etc.
	v.SetEnvPrefix("novaheap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*NovaHeapConfig, error) {
	var cfg NovaHeapConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Stats.HistBins < 100 {
		cfg.Stats.HistBins = 100
	}
	return &cfg, nil
}

// DefaultConfig is the configuration used when no file is given.
func DefaultConfig() *NovaHeapConfig {
	cfg, err := unmarshal(newViper())
	if err != nil {
		// defaults are static; this only fails on a programming error
		panic(err)
	}
	return cfg
}

func LoadConfig(path string) (*NovaHeapConfig, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return unmarshal(v)
}

// SlogLevel maps log.level to a slog level; unknown values mean info.
func (c *NovaHeapConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
