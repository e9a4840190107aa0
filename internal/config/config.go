// Package config resolves dashboard settings from flags, environment and an
// optional config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pbaille/sentimen/internal/labels"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides, e.g. SENTIMEN_ADDR
const EnvPrefix = "SENTIMEN"

// Config holds all runtime settings
type Config struct {
	Addr    string        `mapstructure:"addr"`
	Banner  string        `mapstructure:"banner"`
	Verbose bool          `mapstructure:"verbose"`
	Model   ModelConfig   `mapstructure:"model"`
	Labels  LabelsConfig  `mapstructure:"labels"`
	History HistoryConfig `mapstructure:"history"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
}

// ModelConfig locates the artifacts and describes them in the sidebar
type ModelConfig struct {
	Vectorizer string `mapstructure:"vectorizer"`
	Classifier string `mapstructure:"classifier"`
	Name       string `mapstructure:"name"`
	Accuracy   string `mapstructure:"accuracy"`
}

// LabelsConfig points at an optional label table file
type LabelsConfig struct {
	File   string `mapstructure:"file"`
	Strict bool   `mapstructure:"strict"`
}

// HistoryConfig controls the prediction history store
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DB      string `mapstructure:"db"`
}

// FetchConfig controls URL fetching
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	AllowPrivate bool          `mapstructure:"allow_private"`
}

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8501")
	v.SetDefault("banner", "super-banner.jpg")
	v.SetDefault("model.vectorizer", "tfidf_vectorizer.json")
	v.SetDefault("model.classifier", "naive_bayes_model.json")
	v.SetDefault("model.name", "Naive Bayes")
	v.SetDefault("model.accuracy", "85%")
	v.SetDefault("labels.file", "")
	v.SetDefault("labels.strict", false)
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.db", DefaultDBPath())
	v.SetDefault("fetch.timeout", 30*time.Second)
	v.SetDefault("fetch.allow_private", false)
}

// Load reads the config file (if any) and environment into a Config
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	if c.Model.Vectorizer == "" || c.Model.Classifier == "" {
		return fmt.Errorf("model.vectorizer and model.classifier must be set")
	}
	if c.History.Enabled && c.History.DB == "" {
		return fmt.Errorf("history.db must be set when history is enabled")
	}
	if c.Fetch.Timeout < 0 {
		return fmt.Errorf("fetch.timeout must not be negative")
	}
	return nil
}

// LabelTable returns the configured label table, or the built-in one
func (c *Config) LabelTable() (*labels.Table, error) {
	if c.Labels.File == "" {
		return labels.Default(), nil
	}
	return labels.LoadFile(c.Labels.File)
}

// DefaultDBPath returns ~/.sentimen/history.db
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(home, ".sentimen", "history.db")
}
