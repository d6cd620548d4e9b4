// Command opencode-agents is the operator CLI for the delegation engine:
// inspecting persisted task results and running a local demo of the
// delegation lifecycle.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "opencode-agents",
	Short: "Background task delegation for interactive coding sessions",
	Long: `opencode-agents manages asynchronous background task delegation:
submit a task to a specialist worker, keep working, and get notified
exactly once when it finishes. This CLI inspects the durable result
store and runs a local demo of the full lifecycle.`,
	SilenceUsage: true,
}

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.opencode-agents/config.yaml)")
	rootCmd.AddCommand(newResultsCmd())
	rootCmd.AddCommand(newDemoCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
