// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/invowk/contentpipe/internal/content"
	"github.com/invowk/contentpipe/internal/logging"
)

// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid config")

type (
	// Config is the complete contentpipe configuration.
	Config struct {
		Roots          []string        `json:"roots" mapstructure:"roots"`
		OverridePolicy string          `json:"override_policy" mapstructure:"override_policy"`
		Workers        int             `json:"workers" mapstructure:"workers"`
		MaxTextureSize int             `json:"max_texture_size" mapstructure:"max_texture_size"`
		Exclude        []string        `json:"exclude" mapstructure:"exclude"`
		Log            LogConfig       `json:"log" mapstructure:"log"`
		HotReload      HotReloadConfig `json:"hot_reload" mapstructure:"hot_reload"`
		Bucket         BucketConfig    `json:"bucket" mapstructure:"bucket"`

		// File is the config file the values were read from, if any.
		File string `json:"-" mapstructure:"-"`
	}

	// LogConfig configures the async logger.
	LogConfig struct {
		Level string `json:"level" mapstructure:"level"`
		File  string `json:"file" mapstructure:"file"`
	}

	// HotReloadConfig configures the polling loop of "contentpipe watch".
	HotReloadConfig struct {
		Interval time.Duration `json:"interval" mapstructure:"interval"`
		// Watch adds an fsnotify trigger on top of polling.
		Watch bool `json:"watch" mapstructure:"watch"`
	}

	// BucketConfig holds the object store settings for s3:// roots.
	BucketConfig struct {
		Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
		AccessKey string `json:"access_key" mapstructure:"access_key"`
		SecretKey string `json:"secret_key" mapstructure:"secret_key"`
		UseSSL    bool   `json:"use_ssl" mapstructure:"use_ssl"`
		Region    string `json:"region" mapstructure:"region"`
	}

	// InvalidConfigError collects every invalid field. It wraps
	// ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Roots:          []string{"content"},
		OverridePolicy: content.LastWins.String(),
		Workers:        0,
		MaxTextureSize: 4096,
		Exclude:        []string{},
		Log: LogConfig{
			Level: "info",
		},
		HotReload: HotReloadConfig{
			Interval: time.Second,
			Watch:    true,
		},
		Bucket: BucketConfig{
			UseSSL: true,
		},
	}
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// Validate checks the constraints the CUE schema cannot see, such as values
// that arrive through environment variables.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Roots) == 0 {
		errs = append(errs, errors.New("roots: at least one root is required"))
	}
	for i, r := range c.Roots {
		if strings.TrimSpace(r) == "" {
			errs = append(errs, fmt.Errorf("roots[%d]: empty root", i))
		}
	}
	if _, err := c.Policy(); err != nil {
		errs = append(errs, fmt.Errorf("override_policy: %w", err))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers: %d is negative", c.Workers))
	}
	if c.MaxTextureSize < 0 {
		errs = append(errs, fmt.Errorf("max_texture_size: %d is negative", c.MaxTextureSize))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.HotReload.Interval < 0 {
		errs = append(errs, fmt.Errorf("hot_reload.interval: %s is negative", c.HotReload.Interval))
	}
	if c.HasBucketRoots() && c.Bucket.Endpoint == "" {
		errs = append(errs, errors.New("bucket.endpoint: required for s3:// roots"))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Policy parses OverridePolicy.
func (c *Config) Policy() (content.OverridePolicy, error) {
	return content.ParseOverridePolicy(c.OverridePolicy)
}

// HasBucketRoots reports whether any root is an s3:// location.
func (c *Config) HasBucketRoots() bool {
	for _, r := range c.Roots {
		if strings.HasPrefix(r, "s3://") {
			return true
		}
	}
	return false
}
