// Package core provides the fundamental building blocks of the mongodb-odm
// mapping layer.
// This file defines the configuration of the ODM and how it is loaded.
package core

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds the settings needed to connect the ODM to a database and to
// resolve field names.
//
// Values are read from an optional config file (any format viper supports)
// and from environment variables prefixed with ODM_, e.g. ODM_URI or
// ODM_STRICT_FIELD_RESOLUTION. Environment variables win.
type Config struct {
	// URI is the connection string of the database.
	URI string `mapstructure:"uri" validate:"required"`
	// Database is the default database for classes that do not set one.
	Database string `mapstructure:"database" validate:"required"`
	// StrictFieldResolution rejects field names that are not mapped.
	StrictFieldResolution bool `mapstructure:"strict_field_resolution"`
	// ResolverCacheSize is the number of resolved field paths to keep.
	ResolverCacheSize int `mapstructure:"resolver_cache_size" validate:"gte=0"`
	// ConnectTimeout bounds connection and server selection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"gte=0"`
	// AllowDiskUse lets aggregation stages write temporary files.
	AllowDiskUse bool `mapstructure:"allow_disk_use"`
	// Debug enables debug logging of pipelines.
	Debug bool `mapstructure:"debug"`
	// LogJSON switches the logger to JSON output.
	LogJSON bool `mapstructure:"log_json"`
}

// ReadConfig loads the configuration from the given file, if any, and the
// environment, then validates it.
func ReadConfig(configFile string) (*Config, error) {
	vi := newViper()

	if configFile != "" {
		vi.SetConfigFile(configFile)
		if err := vi.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", configFile)
		}
	}

	var config Config
	if err := vi.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks that the configuration is complete.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	return nil
}

// ResolverOptions returns the Resolver options described by the configuration.
func (c *Config) ResolverOptions() []ResolverOption {
	return []ResolverOption{
		WithStrict(c.StrictFieldResolution),
		WithCacheSize(c.ResolverCacheSize),
	}
}

func newViper() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("uri", "")
	vi.SetDefault("database", "")
	vi.SetDefault("strict_field_resolution", false)
	vi.SetDefault("resolver_cache_size", DefaultResolverCacheSize)
	vi.SetDefault("connect_timeout", "10s")
	vi.SetDefault("allow_disk_use", false)
	vi.SetDefault("debug", false)
	vi.SetDefault("log_json", false)

	vi.SetEnvPrefix("ODM")
	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vi.AutomaticEnv()

	return vi
}
