package main

import (
	"github.com/spf13/cobra"

	"loom/internal/api"
	"loom/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "loom",
	Short: "Workflow backend with LLM-powered example generation",
	Long: `Loom is a workflow management backend for building labeled datasets
with LLM assistance.

A workflow starts from a sample JSON document: loom synthesizes a typed
data model from it, then generates candidate examples with an LLM,
validating every output against the synthesized schema. Human labels on
early examples steer later generations.

Core features:
  - Data model synthesis from sample JSON
  - Schema-validated LLM generation with example replay
  - Background batch generation with progress tracking
  - Runtime configuration stored alongside workflow data`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.loom/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "loom home directory (default: ~/.loom)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
