package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	backgroundagents "github.com/kdcokenny/opencode-background-agents"
	"github.com/kdcokenny/opencode-background-agents/core"
	"github.com/kdcokenny/opencode-background-agents/engine"
	"github.com/kdcokenny/opencode-background-agents/logging"
	"github.com/kdcokenny/opencode-background-agents/store"
	"github.com/kdcokenny/opencode-background-agents/substrate"
)

func newDemoCmd() *cobra.Command {
	var tasks int
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a local demo of the delegation lifecycle",
		Long: `demo delegates simulated tasks to an in-memory worker substrate,
prints the silent and triggering notifications as they arrive, and
persists results into the configured results directory so they can be
inspected afterwards with "results list" and "results show".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fsStore, err := store.NewFilesystemStore(cfg.ResultsDir)
			if err != nil {
				return err
			}

			sub := substrate.NewInMemorySubstrate()
			sub.Script("demo-worker", "Demo task finished.\n\nEverything the worker printed ends up here.", 2*time.Second)

			level := logging.LogLevelInfo
			if cfg.LogLevel == "debug" {
				level = logging.LogLevelDebug
			}
			coord := backgroundagents.New(func(o *backgroundagents.Options) {
				o.Substrate = sub
				o.Store = fsStore
				o.Logger = logging.NewSlogLogger(level, cfg.LogFormat, false)
				o.EngineConfig.TaskTimeout = cfg.TaskTimeout
				o.EngineConfig.SummarizeTimeout = cfg.SummarizeTimeout
			})
			defer coord.Close()

			scope := "demo-session"
			for i := 0; i < tasks; i++ {
				id, err := coord.Submit(cmd.Context(), engine.SubmitRequest{
					OwnerScope:   scope,
					OwnerRole:    "assistant",
					Instructions: fmt.Sprintf("Demo task %d of %d.", i+1, tasks),
					WorkerKind:   "demo-worker",
				})
				if err != nil {
					return err
				}
				fmt.Printf("Delegated %s\n", boldWhite.Sprint(id))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			for {
				select {
				case n := <-coord.Notifications():
					header := color.New(color.FgCyan).Sprintf("[%s]", n.Kind)
					if n.Kind == core.NotificationTriggering {
						header = color.New(color.FgGreen, color.Bold).Sprintf("[%s]", n.Kind)
					}
					fmt.Printf("\n%s\n%s\n", header, n.Text)
					if n.Kind == core.NotificationTriggering {
						fmt.Printf("\nResults persisted under %s; try:\n  opencode-agents results list %s\n", cfg.ResultsDir, scope)
						return nil
					}
				case <-ctx.Done():
					return fmt.Errorf("demo timed out waiting for notifications")
				}
			}
		},
	}
	cmd.Flags().IntVarP(&tasks, "tasks", "n", 3, "number of tasks to delegate")
	return cmd
}
