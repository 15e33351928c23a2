package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. IMG2WEBP_QUALITY.
const EnvPrefix = "IMG2WEBP"

// Keys shared by viper, flags and env vars
const (
	KeyRoot           = "root"
	KeyQuality        = "quality"
	KeyLogLevel       = "log_level"
	KeyHistoryDB      = "history_db"
	KeyHTTPPort       = "http_port"
	KeySpinner        = "spinner"
	KeyAutoOrient     = "auto_orient"
	KeyStabilityDelay = "stability_delay"
	KeyMD5ChunkSize   = "md5_chunk_size"
)

type Config struct {
	Root           string        `mapstructure:"root"`
	QualityLevel   int           `mapstructure:"quality"`
	LogLevel       string        `mapstructure:"log_level"`
	HistoryDB      string        `mapstructure:"history_db"` // empty disables history
	HTTPPort       int           `mapstructure:"http_port"`
	Spinner        bool          `mapstructure:"spinner"`
	AutoOrient     bool          `mapstructure:"auto_orient"`
	StabilityDelay time.Duration `mapstructure:"stability_delay"`
	MD5ChunkSize   int64         `mapstructure:"md5_chunk_size"`
}

// SetDefaults registers default values and env binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyRoot, ".")
	v.SetDefault(KeyQuality, 1)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyHistoryDB, "")
	v.SetDefault(KeyHTTPPort, 8080)
	v.SetDefault(KeySpinner, true)
	v.SetDefault(KeyAutoOrient, true)
	v.SetDefault(KeyStabilityDelay, time.Second)
	v.SetDefault(KeyMD5ChunkSize, 4*1024*1024)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v (defaults, config file, env, flags)
// and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.QualityLevel < 1 || c.QualityLevel > 5 {
		return errors.Newf("quality must be between 1 and 5, got %d", c.QualityLevel)
	}
	if strings.TrimSpace(c.Root) == "" {
		return errors.New("root directory must not be empty")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.Newf("unknown log level %q", c.LogLevel)
	}
	if c.MD5ChunkSize <= 0 {
		return errors.Newf("md5_chunk_size must be positive, got %d", c.MD5ChunkSize)
	}
	if c.StabilityDelay < 0 {
		return errors.Newf("stability_delay must not be negative, got %s", c.StabilityDelay)
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return errors.Newf("http_port out of range: %d", c.HTTPPort)
	}
	return nil
}

func (c *Config) HTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }

// HistoryEnabled reports whether runs are recorded to a database
func (c *Config) HistoryEnabled() bool { return c.HistoryDB != "" }
