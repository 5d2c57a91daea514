package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := New()
	cfg.Targets = []Target{{Organization: "acme", Repositories: []string{"api"}}}
	return cfg
}

func TestValidate_DefaultsWithTargetAreValid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
}

func TestValidate_RequiresTargets(t *testing.T) {
	cfg := New()
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "at least one target") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_NormalizesAndMergesTargets(t *testing.T) {
	cfg := New()
	cfg.Targets = []Target{
		{Organization: "https://github.com/orgs/acme", Repositories: []string{"api, web", "acme/api"}},
		{Organization: "acme", Repositories: []string{"worker", "WEB"}},
		{Organization: "other", Repositories: []string{"lib"}},
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}

	want := []Target{
		{Organization: "acme", Repositories: []string{"api", "web", "worker"}},
		{Organization: "other", Repositories: []string{"lib"}},
	}
	if !reflect.DeepEqual(cfg.Targets, want) {
		t.Fatalf("targets mismatch: got %+v want %+v", cfg.Targets, want)
	}
}

func TestValidate_RejectsForeignOwnerRepository(t *testing.T) {
	cfg := New()
	cfg.Targets = []Target{{Organization: "acme", Repositories: []string{"other/api"}}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for repository owned by another organization")
	}
}

func TestValidate_NormalizesCommaDelimitedPatterns(t *testing.T) {
	cfg := validConfig()
	cfg.Branches.Include = []string{"dependabot/*, renovate/*", ",,"}
	cfg.Permissions.IssueLabels = []string{"a,b"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}

	if want := []string{"dependabot/*", "renovate/*"}; !reflect.DeepEqual(cfg.Branches.Include, want) {
		t.Fatalf("include mismatch: got %v want %v", cfg.Branches.Include, want)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(cfg.Permissions.IssueLabels, want) {
		t.Fatalf("labels mismatch: got %v want %v", cfg.Permissions.IssueLabels, want)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"empty include", func(c *Config) { c.Branches.Include = nil }, "branches.include"},
		{"negative age", func(c *Config) { c.Safety.MinimumAgeDays = -1 }, "minimum_age_days"},
		{"negative ttl", func(c *Config) { c.Safety.BackupTTLDays = -1 }, "backup_ttl_days"},
		{"empty prefix with backups", func(c *Config) { c.Safety.BackupTagPrefix = " / " }, "backup_tag_prefix"},
		{"invalid prefix chars", func(c *Config) { c.Safety.BackupTagPrefix = "bad prefix" }, "not allowed"},
		{"zero concurrency", func(c *Config) { c.Runtime.Concurrency = 0 }, "concurrency"},
		{"negative delay", func(c *Config) { c.Runtime.OperationDelay = -time.Second }, "operation_delay"},
		{"zero timeout", func(c *Config) { c.Runtime.Timeout = 0 }, "timeout"},
		{"empty output dir", func(c *Config) { c.Reporting.OutputDir = "  " }, "output_dir"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"app without installation", func(c *Config) { c.Auth.AppID = 1; c.Auth.PrivateKeyPath = "k.pem" }, "installation_id"},
		{"app without key", func(c *Config) { c.Auth.AppID = 1; c.Auth.InstallationID = 2 }, "private_key_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_EmptyPrefixAllowedWhenBackupsDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Safety.CreateBackupTag = false
	cfg.Safety.BackupTTLDays = 0
	cfg.Safety.BackupTagPrefix = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() returned error: %v", err)
	}
}

func TestLoader_LoadsFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cleanup.yaml")
	content := `
targets:
  - organization: acme
    repositories: [api, web]
branches:
  include: ["renovate/*"]
safety:
  minimum_age_days: 14
runtime:
  operation_delay: 2s
reporting:
  write_csv: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, used, err := NewLoader(dir).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if used != path {
		t.Fatalf("expected config file %q, got %q", path, used)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Organization != "acme" || len(cfg.Targets[0].Repositories) != 2 {
		t.Fatalf("unexpected targets: %+v", cfg.Targets)
	}
	if !reflect.DeepEqual(cfg.Branches.Include, []string{"renovate/*"}) {
		t.Fatalf("unexpected include: %v", cfg.Branches.Include)
	}
	if cfg.Safety.MinimumAgeDays != 14 {
		t.Fatalf("expected minimum_age_days 14, got %d", cfg.Safety.MinimumAgeDays)
	}
	if cfg.Runtime.OperationDelay != 2*time.Second {
		t.Fatalf("expected operation_delay 2s, got %s", cfg.Runtime.OperationDelay)
	}
	if cfg.Reporting.WriteCSV {
		t.Fatalf("expected write_csv false")
	}
	// Untouched keys keep defaults.
	if cfg.Safety.BackupTagPrefix != DefaultBackupTagPrefix {
		t.Fatalf("expected default prefix, got %q", cfg.Safety.BackupTagPrefix)
	}
	if cfg.Runtime.Concurrency != 4 {
		t.Fatalf("expected default concurrency 4, got %d", cfg.Runtime.Concurrency)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cleanup.yaml")
	if err := os.WriteFile(path, []byte("safety:\n  minimum_age_days: 14\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("BRANCHWARDEN_SAFETY_MINIMUM_AGE_DAYS", "21")

	cfg, _, err := NewLoader(dir).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Safety.MinimumAgeDays != 21 {
		t.Fatalf("expected env override 21, got %d", cfg.Safety.MinimumAgeDays)
	}
}

func TestLoader_MissingExplicitFileErrors(t *testing.T) {
	_, _, err := NewLoader(t.TempDir()).Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoader_NoFileInSearchPathUsesDefaults(t *testing.T) {
	cfg, used, err := NewLoader(t.TempDir()).Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if used != "" {
		t.Fatalf("expected no config file, got %q", used)
	}
	if !reflect.DeepEqual(cfg.Branches.Include, New().Branches.Include) {
		t.Fatalf("expected default include patterns, got %v", cfg.Branches.Include)
	}
}
