package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gitbridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
gitlab:
  repo: acme/site-content
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.GitLab.APIRoot != "https://gitlab.com/api/v4" {
		t.Errorf("APIRoot = %q", cfg.GitLab.APIRoot)
	}
	if cfg.GitLab.Branch != "main" {
		t.Errorf("Branch = %q, want main", cfg.GitLab.Branch)
	}
	if cfg.Workflow.InitialStatus != "draft" {
		t.Errorf("InitialStatus = %q, want draft", cfg.Workflow.InitialStatus)
	}
	if cfg.Workflow.LabelPrefix != "cms/" {
		t.Errorf("LabelPrefix = %q, want cms/", cfg.Workflow.LabelPrefix)
	}
	if cfg.Workflow.BranchPrefix != "cms" {
		t.Errorf("BranchPrefix = %q, want cms", cfg.Workflow.BranchPrefix)
	}
	if cfg.Cache.MaxEntries != 500 {
		t.Errorf("MaxEntries = %d, want 500", cfg.Cache.MaxEntries)
	}
	if cfg.Auth.Method != "private_token" {
		t.Errorf("Auth.Method = %q, want private_token", cfg.Auth.Method)
	}
}

func TestLoadEnvSubstitution(t *testing.T) {
	t.Setenv("GITBRIDGE_TEST_TOKEN", "secret-token")

	path := writeConfig(t, `
gitlab:
  repo: acme/site-content
  token: ${GITBRIDGE_TEST_TOKEN}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GitLab.Token != "secret-token" {
		t.Errorf("Token = %q, want secret-token", cfg.GitLab.Token)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() succeeded on a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing repo", func(c *Config) { c.GitLab.Repo = "" }, "gitlab.repo"},
		{"repo without owner", func(c *Config) { c.GitLab.Repo = "/name" }, "owner/name"},
		{"missing branch", func(c *Config) { c.GitLab.Branch = "" }, "gitlab.branch"},
		{"bad status", func(c *Config) { c.Workflow.InitialStatus = "published" }, "initial_status"},
		{"empty label prefix", func(c *Config) { c.Workflow.LabelPrefix = "" }, "label_prefix"},
		{"slashed branch prefix", func(c *Config) { c.Workflow.BranchPrefix = "cms/entries" }, "branch_prefix"},
		{"bad auth method", func(c *Config) { c.Auth.Method = "basic" }, "auth.method"},
		{"oauth without client id", func(c *Config) { c.Auth.Method = "oauth" }, "client_id"},
		{"zero cache", func(c *Config) { c.Cache.MaxEntries = 0 }, "max_entries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.GitLab.Repo = "acme/site-content"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
