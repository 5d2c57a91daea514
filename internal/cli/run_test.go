package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"branchwarden/internal/config"
	"branchwarden/internal/flags"

	"github.com/spf13/cobra"
)

func newFlagTestCommand(o *runOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "cleanup"}
	addRunFlags(cmd, o)
	cmd.Flags().BoolVar(&o.verbose, flags.FlagVerbose, false, "")
	cmd.Flags().StringVar(&o.logLevel, flags.FlagLogLevel, "info", "")
	cmd.Flags().StringVar(&o.logFormat, flags.FlagLogFormat, "console", "")
	return cmd
}

func TestApplyFlagOverrides_OnlyChangedFlagsWin(t *testing.T) {
	var o runOptions
	cmd := newFlagTestCommand(&o)
	if err := cmd.Flags().Parse([]string{"--concurrency", "8", "--dry-run", "--timeout", "5m", "--log-level", "debug"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg := config.New()
	cfg.Reporting.OutputDir = "from-file"
	if err := applyFlagOverrides(cmd, &o, cfg); err != nil {
		t.Fatalf("applyFlagOverrides: %v", err)
	}

	if cfg.Runtime.Concurrency != 8 || !cfg.DryRun || cfg.Runtime.Timeout != 5*time.Minute {
		t.Fatalf("flags not applied: %+v", cfg.Runtime)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected log level debug, got %q", cfg.Logging.Level)
	}
	if cfg.Reporting.OutputDir != "from-file" {
		t.Fatalf("unset --output-dir overrode file value: %q", cfg.Reporting.OutputDir)
	}
}

func TestApplyFlagOverrides_OrgAndReposReplaceTargets(t *testing.T) {
	var o runOptions
	cmd := newFlagTestCommand(&o)
	if err := cmd.Flags().Parse([]string{"--org", "acme", "--repos", "api,web"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	cfg := config.New()
	cfg.Targets = []config.Target{{Organization: "other", Repositories: []string{"x"}}}
	if err := applyFlagOverrides(cmd, &o, cfg); err != nil {
		t.Fatalf("applyFlagOverrides: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if len(cfg.Targets) != 1 || cfg.Targets[0].Organization != "acme" {
		t.Fatalf("unexpected targets: %+v", cfg.Targets)
	}
	if got := strings.Join(cfg.Targets[0].Repositories, ","); got != "api,web" {
		t.Fatalf("unexpected repositories: %s", got)
	}
}

func TestTargetsFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		org     string
		repos   []string
		want    int
		wantErr string
	}{
		{name: "org with repos", org: "acme", repos: []string{"a", "b"}, want: 1},
		{name: "owner slash repo", repos: []string{"acme/a", "octo/b,acme/c"}, want: 3},
		{name: "org without repos", org: "acme", wantErr: "requires --repos"},
		{name: "bare repo without org", repos: []string{"a"}, wantErr: "must be OWNER/REPO"},
		{name: "empty repos", repos: []string{" , "}, wantErr: "at least one repository"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := targetsFromFlags(tt.org, tt.repos)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d targets, got %+v", tt.want, got)
			}
		})
	}
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	cfg := config.New()
	cfg.Logging.Level = "loud"
	if _, err := newLogger(cfg, &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestVersionCommand(t *testing.T) {
	SetBuildInfo("1.2.3", "abc", "2026-10-01")
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, nil)

	out := buf.String()
	if !strings.Contains(out, "branchwarden 1.2.3") || !strings.Contains(out, "commit: abc") {
		t.Fatalf("unexpected version output: %q", out)
	}
}
