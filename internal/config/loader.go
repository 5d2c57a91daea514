package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configName      = "branchwarden"
	configType      = "yaml"
	envPrefix       = "BRANCHWARDEN"
	userConfigPath  = "$HOME/.config/branchwarden"
	localConfigPath = "."
)

// Loader reads configuration files and environment overrides through viper.
type Loader struct {
	searchPaths []string
}

// NewLoader returns a loader searching the given paths, or the default
// search paths when none are given.
func NewLoader(searchPaths ...string) *Loader {
	if len(searchPaths) == 0 {
		searchPaths = []string{localConfigPath, userConfigPath}
	}
	paths := make([]string, len(searchPaths))
	copy(paths, searchPaths)
	return &Loader{searchPaths: paths}
}

// Load builds a Config from defaults, the configuration file and BRANCHWARDEN_*
// environment variables, in increasing precedence. An explicit path must
// exist; a missing file in the search paths is not an error. The returned
// string is the file actually used (empty if none).
func (l *Loader) Load(path string) (*Config, string, error) {
	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType(configType)
	for _, p := range l.searchPaths {
		v.AddConfigPath(p)
	}
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	cfg := &Config{}
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, "", fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, v.ConfigFileUsed(), nil
}

// Defaults flattens New() into viper keys so env overrides resolve and
// unmarshalling starts from documented defaults.
func Defaults() map[string]any {
	d := New()
	return map[string]any{
		"branches.include":               d.Branches.Include,
		"branches.exclude":               d.Branches.Exclude,
		"branches.authors":               d.Branches.Authors,
		"safety.minimum_age_days":        d.Safety.MinimumAgeDays,
		"safety.create_backup_tag":       d.Safety.CreateBackupTag,
		"safety.backup_tag_prefix":       d.Safety.BackupTagPrefix,
		"safety.backup_ttl_days":         d.Safety.BackupTTLDays,
		"runtime.concurrency":            d.Runtime.Concurrency,
		"runtime.operation_delay":        d.Runtime.OperationDelay,
		"runtime.timeout":                d.Runtime.Timeout,
		"runtime.verbose":                d.Runtime.Verbose,
		"permissions.enable_auto_delete": d.Permissions.EnableAutoDelete,
		"permissions.create_issues":      d.Permissions.CreateIssues,
		"permissions.issue_labels":       d.Permissions.IssueLabels,
		"permissions.issue_title":        d.Permissions.IssueTitle,
		"reporting.output_dir":           d.Reporting.OutputDir,
		"reporting.write_json":           d.Reporting.WriteJSON,
		"reporting.write_csv":            d.Reporting.WriteCSV,
		"logging.level":                  d.Logging.Level,
		"logging.format":                 d.Logging.Format,
		"auth.app_id":                    d.Auth.AppID,
		"auth.installation_id":           d.Auth.InstallationID,
		"auth.private_key_path":          d.Auth.PrivateKeyPath,
	}
}
