package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	// MAINTAINER NOTE: If you add/change/remove config fields, keep these in sync:
	// - CLI flags in internal/cli/cleanup.go
	// - defaults in Defaults() (used by the viper loader)
	Targets     []Target    `mapstructure:"targets" yaml:"targets"`
	Branches    Branches    `mapstructure:"branches" yaml:"branches"`
	Safety      Safety      `mapstructure:"safety" yaml:"safety"`
	Runtime     Runtime     `mapstructure:"runtime" yaml:"runtime"`
	Permissions Permissions `mapstructure:"permissions" yaml:"permissions"`
	Reporting   Reporting   `mapstructure:"reporting" yaml:"reporting"`
	Logging     Logging     `mapstructure:"logging" yaml:"logging"`
	Auth        Auth        `mapstructure:"auth" yaml:"auth"`

	// DryRun performs every read and decision step but suppresses mutating
	// calls (see --dry-run). It is never read from the config file.
	DryRun bool `mapstructure:"-" yaml:"-"`
}

type Target struct {
	// Organization is the GitHub organization (or user) owning the repositories.
	// A GitHub URL such as https://github.com/orgs/acme is accepted.
	Organization string `mapstructure:"organization" yaml:"organization"`

	// Repositories lists repository names within Organization. OWNER/REPO
	// entries are accepted when the owner matches Organization.
	Repositories []string `mapstructure:"repositories" yaml:"repositories"`
}

type Branches struct {
	// Include selects candidate branches by name. Glob syntax: '*' matches any
	// run of characters (including '/'), '?' matches one character.
	Include []string `mapstructure:"include" yaml:"include"`

	// Exclude protects branches by name. Excluded branches are still
	// discovered and reported as skipped_excluded by the last safety gate.
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`

	// Authors restricts candidates to pull requests opened by matching logins.
	// Empty means any author.
	Authors []string `mapstructure:"authors" yaml:"authors"`
}

type Safety struct {
	// MinimumAgeDays is the number of whole days since merge before a branch
	// may be deleted.
	MinimumAgeDays int `mapstructure:"minimum_age_days" yaml:"minimum_age_days"`

	// CreateBackupTag creates an annotated tag at the branch head before deletion.
	CreateBackupTag bool `mapstructure:"create_backup_tag" yaml:"create_backup_tag"`

	// BackupTagPrefix is the leading path segment of backup tag names.
	BackupTagPrefix string `mapstructure:"backup_tag_prefix" yaml:"backup_tag_prefix"`

	// BackupTTLDays is how long backup tags are kept before the prune pass
	// deletes them. 0 disables pruning.
	BackupTTLDays int `mapstructure:"backup_ttl_days" yaml:"backup_ttl_days"`
}

type Runtime struct {
	// Concurrency is the number of repositories processed in parallel. Must be >= 1.
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`

	// OperationDelay is the pause after each branch mutation within a repository.
	OperationDelay time.Duration `mapstructure:"operation_delay" yaml:"operation_delay"`

	// Timeout is the global run timeout. Must be > 0.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Verbose logs every GitHub API call (see --verbose).
	Verbose bool `mapstructure:"verbose" yaml:"verbose"`
}

type Permissions struct {
	// EnableAutoDelete turns on "automatically delete head branches" for
	// repositories where the token has admin rights.
	EnableAutoDelete bool `mapstructure:"enable_auto_delete" yaml:"enable_auto_delete"`

	// CreateIssues files one remediation issue per repository when deletions
	// are blocked by permissions.
	CreateIssues bool `mapstructure:"create_issues" yaml:"create_issues"`

	// IssueLabels are applied to remediation issues and used to find existing ones.
	IssueLabels []string `mapstructure:"issue_labels" yaml:"issue_labels"`

	// IssueTitle is the fixed title of remediation issues.
	IssueTitle string `mapstructure:"issue_title" yaml:"issue_title"`
}

type Reporting struct {
	// OutputDir receives one timestamped directory per run.
	OutputDir string `mapstructure:"output_dir" yaml:"output_dir"`
	WriteJSON bool   `mapstructure:"write_json" yaml:"write_json"`
	WriteCSV  bool   `mapstructure:"write_csv" yaml:"write_csv"`
}

type Logging struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`
	// Format is one of console, structured.
	Format string `mapstructure:"format" yaml:"format"`
}

type Auth struct {
	// AppID, InstallationID and PrivateKeyPath select GitHub App installation
	// authentication. When AppID is 0 a token is used instead.
	AppID          int64  `mapstructure:"app_id" yaml:"app_id,omitempty"`
	InstallationID int64  `mapstructure:"installation_id" yaml:"installation_id,omitempty"`
	PrivateKeyPath string `mapstructure:"private_key_path" yaml:"private_key_path,omitempty"`
}

const (
	DefaultBackupTagPrefix = "backup"
	DefaultIssueTitle      = "Branch cleanup blocked by repository permissions"
)

func New() *Config {
	return &Config{
		Branches: Branches{
			Include: []string{"dependabot/*", "renovate/*"},
			Authors: []string{"*[bot]"},
		},
		Safety: Safety{
			MinimumAgeDays:  7,
			CreateBackupTag: true,
			BackupTagPrefix: DefaultBackupTagPrefix,
			BackupTTLDays:   30,
		},
		Runtime: Runtime{
			Concurrency:    4,
			OperationDelay: 500 * time.Millisecond,
			Timeout:        30 * time.Minute,
		},
		Permissions: Permissions{
			EnableAutoDelete: true,
			CreateIssues:     true,
			IssueLabels:      []string{"branch-cleanup", "permissions"},
			IssueTitle:       DefaultIssueTitle,
		},
		Reporting: Reporting{
			OutputDir: "reports",
			WriteJSON: true,
			WriteCSV:  true,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

func (c *Config) Validate() error {
	// Normalize comma-delimited list inputs.
	c.Branches.Include = splitCommaList(c.Branches.Include)
	c.Branches.Exclude = splitCommaList(c.Branches.Exclude)
	c.Branches.Authors = splitCommaList(c.Branches.Authors)
	c.Permissions.IssueLabels = splitCommaList(c.Permissions.IssueLabels)

	// Targets
	if len(c.Targets) == 0 {
		return errors.New("at least one target organization must be configured")
	}
	targets, err := normalizeTargets(c.Targets)
	if err != nil {
		return err
	}
	c.Targets = targets

	// Branch selection
	if len(c.Branches.Include) == 0 {
		return errors.New("branches.include must list at least one pattern")
	}

	// Safety
	if c.Safety.MinimumAgeDays < 0 {
		return errors.New("safety.minimum_age_days must be >= 0")
	}
	if c.Safety.BackupTTLDays < 0 {
		return errors.New("safety.backup_ttl_days must be >= 0")
	}
	c.Safety.BackupTagPrefix = strings.Trim(strings.TrimSpace(c.Safety.BackupTagPrefix), "/")
	if c.Safety.BackupTagPrefix == "" {
		if c.Safety.CreateBackupTag || c.Safety.BackupTTLDays > 0 {
			return errors.New("safety.backup_tag_prefix must not be empty when backups or pruning are enabled")
		}
	}
	if strings.ContainsAny(c.Safety.BackupTagPrefix, " ~^:?*[\\") {
		return fmt.Errorf("safety.backup_tag_prefix %q contains characters not allowed in git refs", c.Safety.BackupTagPrefix)
	}

	// Runtime
	if c.Runtime.Concurrency <= 0 {
		return errors.New("runtime.concurrency must be >= 1")
	}
	if c.Runtime.OperationDelay < 0 {
		return errors.New("runtime.operation_delay must be >= 0")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("runtime.timeout must be > 0")
	}

	// Permissions
	c.Permissions.IssueTitle = strings.TrimSpace(c.Permissions.IssueTitle)
	if c.Permissions.IssueTitle == "" {
		c.Permissions.IssueTitle = DefaultIssueTitle
	}

	// Reporting
	c.Reporting.OutputDir = strings.TrimSpace(c.Reporting.OutputDir)
	if c.Reporting.OutputDir == "" {
		return errors.New("reporting.output_dir must not be empty")
	}
	c.Reporting.OutputDir = filepath.Clean(c.Reporting.OutputDir)

	// Logging
	c.Logging.Level = normalizeEnumValue(c.Logging.Level)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported logging.level: %s (must be one of: debug, info, warn, error)", c.Logging.Level)
	}
	c.Logging.Format = normalizeEnumValue(c.Logging.Format)
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Format != "console" && c.Logging.Format != "structured" {
		return fmt.Errorf("unsupported logging.format: %s (must be one of: console, structured)", c.Logging.Format)
	}

	// Auth
	c.Auth.PrivateKeyPath = strings.TrimSpace(c.Auth.PrivateKeyPath)
	if c.Auth.AppID != 0 {
		if c.Auth.InstallationID == 0 {
			return errors.New("auth.installation_id is required when auth.app_id is set")
		}
		if c.Auth.PrivateKeyPath == "" {
			return errors.New("auth.private_key_path is required when auth.app_id is set")
		}
	}

	return nil
}

// UsesAppAuth reports whether GitHub App installation auth is configured.
func (c *Config) UsesAppAuth() bool {
	return c.Auth.AppID != 0
}

func normalizeTargets(targets []Target) ([]Target, error) {
	byOrg := make(map[string]int, len(targets))
	var out []Target
	for i, t := range targets {
		org, err := normalizeAccountSelector(t.Organization)
		if err != nil {
			return nil, fmt.Errorf("invalid targets[%d].organization: %w", i, err)
		}
		if org == "" {
			return nil, fmt.Errorf("targets[%d].organization must not be empty", i)
		}

		repos := splitCommaList(t.Repositories)
		if len(repos) == 0 {
			return nil, fmt.Errorf("targets[%d] (%s) must list at least one repository", i, org)
		}

		idx, seen := byOrg[strings.ToLower(org)]
		if !seen {
			idx = len(out)
			byOrg[strings.ToLower(org)] = idx
			out = append(out, Target{Organization: org})
		}

		existing := make(map[string]struct{}, len(out[idx].Repositories))
		for _, r := range out[idx].Repositories {
			existing[strings.ToLower(r)] = struct{}{}
		}
		for _, raw := range repos {
			name, err := normalizeRepoName(org, raw)
			if err != nil {
				return nil, fmt.Errorf("invalid repository in targets[%d]: %w", i, err)
			}
			if _, dup := existing[strings.ToLower(name)]; dup {
				continue
			}
			existing[strings.ToLower(name)] = struct{}{}
			out[idx].Repositories = append(out[idx].Repositories, name)
		}
	}
	return out, nil
}

func normalizeRepoName(org, raw string) (string, error) {
	owner, name, ok := strings.Cut(raw, "/")
	if !ok {
		return raw, nil
	}
	if !strings.EqualFold(owner, org) {
		return "", fmt.Errorf("%q does not belong to organization %q", raw, org)
	}
	if name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("%q", raw)
	}
	return name, nil
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func normalizeAccountSelector(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	// Accept a raw account name, or a GitHub URL like:
	//   https://github.com/<name>
	//   https://github.com/orgs/<name>
	//   github.com/<name>
	if strings.HasPrefix(raw, "github.com/") || strings.HasPrefix(raw, "www.github.com/") {
		raw = "https://" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%q", raw)
		}
		host := strings.ToLower(u.Hostname())
		if host == "www.github.com" {
			host = "github.com"
		}
		if host != "github.com" {
			return "", fmt.Errorf("%q", raw)
		}
		parts := strings.FieldsFunc(strings.Trim(u.Path, "/"), func(r rune) bool { return r == '/' })
		if len(parts) == 0 {
			return "", fmt.Errorf("%q", raw)
		}
		if parts[0] == "orgs" || parts[0] == "users" {
			if len(parts) < 2 {
				return "", fmt.Errorf("%q", raw)
			}
			return parts[1], nil
		}
		return parts[0], nil
	}

	if strings.Contains(raw, "/") {
		return "", fmt.Errorf("%q", raw)
	}
	return raw, nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
