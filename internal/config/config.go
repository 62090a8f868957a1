package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the adapter configuration.
type Config struct {
	GitLab   GitLabConfig   `yaml:"gitlab"`
	Workflow WorkflowConfig `yaml:"workflow"`
	Auth     AuthConfig     `yaml:"auth"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GitLabConfig holds the repository and API settings.
type GitLabConfig struct {
	APIRoot      string `yaml:"api_root"`
	Token        string `yaml:"token"`
	Repo         string `yaml:"repo"`   // "owner/name"
	Branch       string `yaml:"branch"` // base branch commits land on
	SquashMerges bool   `yaml:"squash_merges"`
}

// WorkflowConfig holds editorial workflow conventions.
type WorkflowConfig struct {
	InitialStatus string `yaml:"initial_status"` // draft, review or ready
	LabelPrefix   string `yaml:"label_prefix"`   // status label prefix on merge requests
	BranchPrefix  string `yaml:"branch_prefix"`  // entry branch prefix
}

// AuthConfig selects how the access token is obtained.
type AuthConfig struct {
	Method string      `yaml:"method"` // private_token or oauth
	OAuth  OAuthConfig `yaml:"oauth"`
}

// OAuthConfig holds the authorization-code flow endpoints.
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

// CacheConfig holds content cache settings.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		GitLab: GitLabConfig{
			APIRoot: "https://gitlab.com/api/v4",
			Branch:  "main",
		},
		Workflow: WorkflowConfig{
			InitialStatus: "draft",
			LabelPrefix:   "cms/",
			BranchPrefix:  "cms",
		},
		Auth: AuthConfig{
			Method: "private_token",
		},
		Cache: CacheConfig{
			MaxEntries: 500,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Substitute environment variables
	data = envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		varName := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(varName)))
	})

	// Start with defaults
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	if c.GitLab.Repo == "" {
		return fmt.Errorf("gitlab.repo is required")
	}
	if owner, name, ok := strings.Cut(c.GitLab.Repo, "/"); !ok || owner == "" || name == "" {
		return fmt.Errorf("gitlab.repo must be of the form owner/name, got %q", c.GitLab.Repo)
	}
	if c.GitLab.Branch == "" {
		return fmt.Errorf("gitlab.branch is required")
	}

	switch c.Workflow.InitialStatus {
	case "draft", "review", "ready":
	default:
		return fmt.Errorf("workflow.initial_status must be draft, review or ready, got %q", c.Workflow.InitialStatus)
	}
	if c.Workflow.LabelPrefix == "" {
		return fmt.Errorf("workflow.label_prefix is required")
	}
	if c.Workflow.BranchPrefix == "" || strings.Contains(c.Workflow.BranchPrefix, "/") {
		return fmt.Errorf("workflow.branch_prefix must be a single path segment, got %q", c.Workflow.BranchPrefix)
	}

	switch c.Auth.Method {
	case "private_token":
	case "oauth":
		if c.Auth.OAuth.ClientID == "" {
			return fmt.Errorf("auth.oauth.client_id is required when auth.method is oauth")
		}
	default:
		return fmt.Errorf("auth.method must be private_token or oauth, got %q", c.Auth.Method)
	}

	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive, got %d", c.Cache.MaxEntries)
	}

	return nil
}
