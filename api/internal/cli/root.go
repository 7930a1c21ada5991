// Package cli holds the cobra commands of the grader binary.
package cli

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"echo-grade/api/internal/config"
)

var rootCmd = &cobra.Command{
	Use:          "grader",
	Short:        "grader scores student answers against a master answer",
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("log-file", "", "append logs to this file (overrides LOG_FILE)")
	rootCmd.PersistentFlags().String("policy", "", "grading policy YAML (overrides POLICY_FILE)")
}

// loadConfig reads the environment with the persistent flags applied on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if p, _ := cmd.Flags().GetString("policy"); strings.TrimSpace(p) != "" {
		if err := os.Setenv("POLICY_FILE", p); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if lf, _ := cmd.Flags().GetString("log-file"); strings.TrimSpace(lf) != "" {
		cfg.LogFile = lf
	}
	return cfg, nil
}
