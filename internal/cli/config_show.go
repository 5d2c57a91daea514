package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, the config file, BRANCHWARDEN_*
environment variables and flags have been applied and validated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, used, err := loadConfig(cmd, &opts)
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		w := cmd.OutOrStdout()
		if used != "" {
			fmt.Fprintf(w, "# source: %s\n", used)
		}
		_, err = w.Write(out)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	addRunFlags(configShowCmd, &opts)
}
