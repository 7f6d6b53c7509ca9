package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/venomqa/venomqa/internal/config"
)

var (
	version   string
	buildTime string
	gitCommit string

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "explore",
	Short: "Configuration tooling for the venomqa state-graph explorer",
	Long: `explore loads and validates the configuration an embedding project
hands to the exploration core (strategy, budgets, SUT wiring, adapter DSNs).

It does not itself register Actions or Invariants or drive an exploration
run — that is a Go-level concern of the embedding project (or a higher-level
journey DSL frontend). explore's job is the ambient CLI surface around that:
config parsing, validation, and introspection.

Exit Codes:
  0: success
  2: configuration error
  3: infrastructure/runtime error
`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// IsConfigurationError reports whether err originated from config loading or
// validation, used by main to pick the exit-status discipline's code 2 vs 3.
func IsConfigurationError(err error) bool {
	_, ok := err.(*config.Error)
	return ok
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file (default: ./explore.yaml)")
	rootCmd.AddCommand(validateConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

// SetVersion sets version information printed by the version subcommand.
func SetVersion(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("explore version %s\n", version)
		fmt.Printf("build time: %s\n", buildTime)
		fmt.Printf("git commit: %s\n", gitCommit)
	},
}
