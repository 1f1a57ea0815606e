// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/19deck/internal/infra/logger"
)

// Config represents the application configuration.
type Config struct {
	Log      LogConfig               `yaml:"log"`
	Audio    AudioConfig             `yaml:"audio"`
	Playback PlaybackConfig          `yaml:"playback"`
	Library  LibraryConfig           `yaml:"library"`
	Filters  map[string]FilterConfig `yaml:"filters"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Output string `yaml:"output" default:"stderr"`
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn warning error disabled"`
	File   string `yaml:"file" default:"19deck.log"`
}

// AudioConfig represents audio output configuration.
type AudioConfig struct {
	SampleRate        int `yaml:"sample_rate" default:"44100" validate:"oneof=22050 32000 44100 48000 96000"`
	BufferMs          int `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
	ResampleQuality   int `yaml:"resample_quality" default:"4" validate:"gte=1,lte=64"`
	DeviceQueueFrames int `yaml:"device_queue_frames" default:"4" validate:"gte=1,lte=256"`
}

// PlaybackConfig represents transport configuration.
type PlaybackConfig struct {
	Loop        bool `yaml:"loop"`
	Shuffle     bool `yaml:"shuffle"`
	Autoplay    bool `yaml:"autoplay"`
	EventBuffer int  `yaml:"event_buffer" default:"64" validate:"gte=1,lte=4096"`
}

// LibraryConfig represents where tracks are loaded from.
type LibraryConfig struct {
	Paths      []string `yaml:"paths"`
	Extensions []string `yaml:"extensions" default:"[\"mp3\",\"wav\",\"flac\",\"ogg\"]" validate:"min=1,dive,required"`
	Watch      bool     `yaml:"watch"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	return &cfg, nil
}

// Load loads configuration from a YAML file. An empty path loads the defaults.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DECK_LIBRARY_PATHS"); v != "" {
		c.Library.Paths = filepath.SplitList(v)
	}
	if v := os.Getenv("DECK_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("DECK_LOG_OUTPUT"); v != "" {
		c.Log.Output = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if err := c.validateLibraryPaths(); err != nil {
		return err
	}

	return nil
}

// validateLibraryPaths checks that every library path exists and that
// watched paths are directories.
func (c *Config) validateLibraryPaths() error {
	for _, p := range c.Library.Paths {
		info, err := os.Stat(p)
		if err != nil {
			return errors.Wrapf(err, "library path %q", p)
		}
		if c.Library.Watch && !info.IsDir() {
			return errors.Newf("library path %q must be a directory when watch is enabled", p)
		}
	}
	return nil
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Output: c.Log.Output,
		Level:  c.Log.Level,
		File:   c.Log.File,
	}
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// GetFilterSettings returns the settings for a filter.
func (c *Config) GetFilterSettings(filterName string) map[string]any {
	if f, ok := c.Filters[filterName]; ok {
		return f.Settings
	}
	return nil
}
