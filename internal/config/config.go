package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/timebase"
)

// EnvPrefix is the prefix of environment overrides, e.g. COMPOSITOR_FPS.
const EnvPrefix = "COMPOSITOR"

// Config holds the host settings. Project documents may override the
// timeline format (width, height, fps, sampleRate) for their own timeline.
type Config struct {
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	FPS        string `mapstructure:"fps"`
	SampleRate int    `mapstructure:"sampleRate"`
	Channels   int    `mapstructure:"channels"`
	Workers    int    `mapstructure:"workers"`
	Background string `mapstructure:"background"`
	CacheSize  int    `mapstructure:"cacheSize"`
	DPI        int    `mapstructure:"dpi"`
	AssetsDir  string `mapstructure:"assetsDir"`

	Encoder      string `mapstructure:"encoder"`
	Quality      int    `mapstructure:"quality"`
	ShowStats    bool   `mapstructure:"showStats"`
	BenchmarkLog string `mapstructure:"benchmarkLog"`

	LogFormat   string `mapstructure:"logFormat"`
	Debug       bool   `mapstructure:"debug"`
	MetricsAddr string `mapstructure:"metricsAddr"`

	BuildVersion string `mapstructure:"-"`
	ConfigFile   string `mapstructure:"-"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("width", 1280)
	v.SetDefault("height", 720)
	v.SetDefault("fps", "30")
	v.SetDefault("sampleRate", 48000)
	v.SetDefault("channels", 1)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("background", "#000000")
	v.SetDefault("cacheSize", 64)
	v.SetDefault("dpi", 150)
	v.SetDefault("assetsDir", "")
	v.SetDefault("encoder", "")
	v.SetDefault("quality", 0)
	v.SetDefault("showStats", false)
	v.SetDefault("benchmarkLog", "benchmark.log")
	v.SetDefault("logFormat", "text")
	v.SetDefault("debug", false)
	v.SetDefault("metricsAddr", "")
}

// Load reads the optional config file and environment into a Config.
// Flags must already be bound to v.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that cannot be fixed up by defaults.
func (c *Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid size %dx%d", c.Width, c.Height))
	}
	if _, err := c.Rate(); err != nil {
		errs = append(errs, err)
	}
	if c.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("invalid sampleRate %d", c.SampleRate))
	}
	if c.Channels != 1 {
		errs = append(errs, fmt.Errorf("unsupported channel count %d: output is mono", c.Channels))
	}
	if _, err := geom.ParseHex(c.Background); err != nil {
		errs = append(errs, fmt.Errorf("background: %w", err))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown logFormat %q", c.LogFormat))
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	return errors.Join(errs...)
}

// Rate parses FPS.
func (c *Config) Rate() (timebase.Rate, error) {
	return timebase.ParseRate(c.FPS)
}
