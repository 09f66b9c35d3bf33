// Package config loads repoview settings with Viper from a .repoview.yml
// file, REPOVIEW_* environment variables and command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	rverrors "github.com/h4x3rotab/repoview/internal/errors"
)

// EnvPrefix is the prefix of environment overrides, e.g. REPOVIEW_SERVER_PORT.
const EnvPrefix = "REPOVIEW"

// FileName is the config file looked up in the working directory and $HOME.
const FileName = ".repoview"

// Config is the full runtime configuration.
type Config struct {
	Repo   string       `mapstructure:"repo" yaml:"repo"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Scan   ScanConfig   `mapstructure:"scan" yaml:"scan"`
	Render RenderConfig `mapstructure:"render" yaml:"render"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Open bool   `mapstructure:"open" yaml:"open"`
	// AllowedOrigins are extra websocket origin patterns.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

type ScanConfig struct {
	MaxFiles        int   `mapstructure:"max_files" yaml:"max_files"`
	MaxBytesPerFile int64 `mapstructure:"max_bytes_per_file" yaml:"max_bytes_per_file"`
	Concurrency     int   `mapstructure:"concurrency" yaml:"concurrency"`
}

type RenderConfig struct {
	MaxBytes   int64  `mapstructure:"max_bytes" yaml:"max_bytes"`
	CodeStyle  string `mapstructure:"code_style" yaml:"code_style"`
	CacheBytes int64  `mapstructure:"cache_bytes" yaml:"cache_bytes"` // 0 disables the render cache
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	host := s.Host
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}

	return fmt.Sprintf("%s:%d", host, s.Port)
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("repo", ".")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.open", false)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce", 100*time.Millisecond)
	v.SetDefault("scan.max_files", 5000)
	v.SetDefault("scan.max_bytes_per_file", int64(2*1024*1024))
	v.SetDefault("scan.concurrency", 16)
	v.SetDefault("render.max_bytes", int64(2*1024*1024))
	v.SetDefault("render.code_style", "github")
	v.SetDefault("render.cache_bytes", int64(32*1024*1024))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// ConfigureEnv enables REPOVIEW_* overrides on v, mapping "." in keys to "_".
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from the global Viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads, defaults and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, rverrors.Wrap(err, rverrors.ErrorTypeConfig, rverrors.CodeConfigInvalid, "decoding configuration")
	}
	cfg.applyDefaults()

	if result := Validate(&cfg); result.HasErrors() {
		return nil, rverrors.NewConfigError("invalid configuration: " + result.Errors[0].Error())
	}

	return &cfg, nil
}

// applyDefaults fills zero values a file or flag may have set explicitly.
func (c *Config) applyDefaults() {
	if c.Repo == "" {
		c.Repo = "."
	}
	if c.Watch.Debounce <= 0 {
		c.Watch.Debounce = 100 * time.Millisecond
	}
	if c.Render.CodeStyle == "" {
		c.Render.CodeStyle = "github"
	}
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}
