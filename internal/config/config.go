// Package config loads the sync service configuration from YAML and the
// environment. Credentials never live in the config file; they are read
// from environment variables and validated before any fetch is attempted.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables holding credentials.
const (
	EnvAnthropicKey  = "ANTHROPIC_API_KEY"
	EnvGitHubToken   = "GITHUB_TOKEN"
	EnvTwitterBearer = "TWITTER_BEARER_TOKEN"
)

// Config is the full sync service configuration.
type Config struct {
	// Languages are the translation target language codes.
	Languages []string `yaml:"languages"`

	Sources  SourcesConfig  `yaml:"sources"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Store    StoreConfig    `yaml:"store"`
}

// SourcesConfig lists the configured feedback sources. Enabled/disabled
// state is explicit configuration handed to the orchestrator, never ambient
// state read by collectors.
type SourcesConfig struct {
	GitHub    GitHubConfig    `yaml:"github"`
	Discourse DiscourseConfig `yaml:"discourse"`
	Twitter   TwitterConfig   `yaml:"twitter"`
}

// GitHubConfig configures GitHub issue/discussion collection.
type GitHubConfig struct {
	Enabled bool     `yaml:"enabled"`
	Repos   []string `yaml:"repos"` // "owner/name"
}

// DiscourseConfig configures Discourse forum collection.
type DiscourseConfig struct {
	Enabled bool     `yaml:"enabled"`
	Forums  []string `yaml:"forums"` // base URLs
}

// TwitterConfig configures Twitter keyword search collection.
type TwitterConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Keywords []string `yaml:"keywords"`
}

// AnalysisConfig tunes the AI pipeline stages.
type AnalysisConfig struct {
	Model string `yaml:"model,omitempty"`

	// Batch sizing. Translation batches are small because multi-language
	// expansion inflates the request size.
	ClassifyBatchSize  int `yaml:"classify_batch_size,omitempty"`
	GroupBatchSize     int `yaml:"group_batch_size,omitempty"`
	TranslateBatchSize int `yaml:"translate_batch_size,omitempty"`

	// WaveWidth bounds how many batch calls run concurrently. This is the
	// pipeline's only backpressure mechanism.
	WaveWidth int `yaml:"wave_width,omitempty"`

	// MinGroupItems is the minimum number of analyzed items in the store
	// before clustering runs at all.
	MinGroupItems int `yaml:"min_group_items,omitempty"`
}

// StoreConfig configures the shared store backend.
type StoreConfig struct {
	// Path is the SQLite database file path.
	// Special value ":memory:" creates an in-memory database (useful for tests).
	Path string `yaml:"path,omitempty"`
}

// Pipeline defaults. Classification uses larger batches than translation,
// and clustering uses the largest.
const (
	DefaultClassifyBatchSize  = 100
	DefaultGroupBatchSize     = 200
	DefaultTranslateBatchSize = 5
	DefaultWaveWidth          = 10
	DefaultMinGroupItems      = 10
	DefaultStorePath          = ".grumble/sync.db"
)

// DefaultLanguages are the translation targets when none are configured.
var DefaultLanguages = []string{"en", "pt", "es"}

// Default returns a config with all defaults applied and no sources enabled.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if len(c.Languages) == 0 {
		c.Languages = append([]string(nil), DefaultLanguages...)
	}
	if c.Analysis.ClassifyBatchSize <= 0 {
		c.Analysis.ClassifyBatchSize = DefaultClassifyBatchSize
	}
	if c.Analysis.GroupBatchSize <= 0 {
		c.Analysis.GroupBatchSize = DefaultGroupBatchSize
	}
	if c.Analysis.TranslateBatchSize <= 0 {
		c.Analysis.TranslateBatchSize = DefaultTranslateBatchSize
	}
	if c.Analysis.WaveWidth <= 0 {
		c.Analysis.WaveWidth = DefaultWaveWidth
	}
	if c.Analysis.MinGroupItems <= 0 {
		c.Analysis.MinGroupItems = DefaultMinGroupItems
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
}

// Validate checks structural validity of the configuration. Credential
// checks live in ValidateCredentials so tests and offline commands
// (status, purge) can load a config without API keys in the environment.
func (c *Config) Validate() error {
	if c.Sources.GitHub.Enabled && len(c.Sources.GitHub.Repos) == 0 {
		return fmt.Errorf("github source enabled but no repos configured")
	}
	for _, repo := range c.Sources.GitHub.Repos {
		if !validRepoName(repo) {
			return fmt.Errorf("invalid github repo %q (expected owner/name)", repo)
		}
	}
	if c.Sources.Discourse.Enabled && len(c.Sources.Discourse.Forums) == 0 {
		return fmt.Errorf("discourse source enabled but no forums configured")
	}
	if c.Sources.Twitter.Enabled && len(c.Sources.Twitter.Keywords) == 0 {
		return fmt.Errorf("twitter source enabled but no keywords configured")
	}
	for _, lang := range c.Languages {
		if len(lang) < 2 || len(lang) > 8 {
			return fmt.Errorf("invalid language code %q", lang)
		}
	}
	return nil
}

// MissingCredentialError is a fatal configuration error: an enabled
// component has no credential in the environment. It is raised before any
// fetch is attempted.
type MissingCredentialError struct {
	Component string
	EnvVar    string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s enabled but %s is not set", e.Component, e.EnvVar)
}

// ValidateCredentials verifies that every enabled component has its
// credential present in the environment. The Anthropic key is always
// required: classification, clustering, and translation all need it.
func (c *Config) ValidateCredentials() error {
	if os.Getenv(EnvAnthropicKey) == "" {
		return &MissingCredentialError{Component: "analysis", EnvVar: EnvAnthropicKey}
	}
	if c.Sources.GitHub.Enabled && os.Getenv(EnvGitHubToken) == "" {
		return &MissingCredentialError{Component: "github source", EnvVar: EnvGitHubToken}
	}
	if c.Sources.Twitter.Enabled && os.Getenv(EnvTwitterBearer) == "" {
		return &MissingCredentialError{Component: "twitter source", EnvVar: EnvTwitterBearer}
	}
	// Discourse topic feeds are public; no credential needed.
	return nil
}

// SyncInterval is how stale the last sync may be before the serve-mode
// health endpoint reports degraded. Not configurable today.
const SyncInterval = 30 * time.Minute

func validRepoName(repo string) bool {
	slash := -1
	for i, r := range repo {
		if r == '/' {
			if slash >= 0 {
				return false
			}
			slash = i
		}
	}
	return slash > 0 && slash < len(repo)-1
}
