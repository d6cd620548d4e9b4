package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kdcokenny/opencode-background-agents/core"
	"github.com/kdcokenny/opencode-background-agents/store"
)

var (
	stateColors = map[core.State]*color.Color{
		core.StateComplete: color.New(color.FgGreen),
		core.StateError:    color.New(color.FgRed),
		core.StateTimeout:  color.New(color.FgYellow),
		core.StateRunning:  color.New(color.FgCyan),
	}
	boldWhite = color.New(color.FgWhite, color.Bold)
)

func paintState(s core.State) string {
	if c, ok := stateColors[s]; ok {
		return c.Sprint(string(s))
	}
	return string(s)
}

func openStore() (*store.FilesystemStore, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return store.NewFilesystemStore(cfg.ResultsDir)
}

func newResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect persisted task results",
	}
	cmd.AddCommand(newResultsListCmd(), newResultsShowCmd(), newResultsDeleteCmd())
	return cmd
}

func newResultsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <scope>",
		Short: "List all results stored for a session scope",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			recs, err := s.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Println("No results stored for this scope.")
				return nil
			}
			for _, rec := range recs {
				fmt.Printf("%s  %s  %s\n", boldWhite.Sprint(rec.ID), paintState(rec.State), rec.Title)
				if rec.Summary != "" {
					fmt.Printf("    %s\n", rec.Summary)
				}
			}
			return nil
		},
	}
}

func newResultsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <scope> <task-id>",
		Short: "Print one result in full",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			rec, err := s.Get(cmd.Context(), args[0], args[1])
			if errors.Is(err, core.ErrNotFound) {
				return fmt.Errorf("no result stored for task %s", args[1])
			}
			if err != nil {
				return err
			}

			boldWhite.Printf("%s (%s)\n", rec.ID, paintState(rec.State))
			fmt.Printf("worker:    %s\n", rec.WorkerKind)
			fmt.Printf("title:     %s\n", rec.Title)
			fmt.Printf("summary:   %s\n", rec.Summary)
			fmt.Printf("started:   %s\n", rec.StartedAt.Local().Format(time.RFC1123))
			if !rec.CompletedAt.IsZero() {
				fmt.Printf("completed: %s (%s)\n", rec.CompletedAt.Local().Format(time.RFC1123), rec.CompletedAt.Sub(rec.StartedAt).Round(time.Second))
			}
			fmt.Printf("\n%s\n", rec.Transcript)
			return nil
		},
	}
}

func newResultsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <scope> <task-id>",
		Short: "Remove one stored result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			if err := s.Delete(cmd.Context(), args[0], args[1]); err != nil {
				if errors.Is(err, core.ErrNotFound) {
					return fmt.Errorf("no result stored for task %s", args[1])
				}
				return err
			}
			fmt.Printf("Deleted result %s.\n", args[1])
			return nil
		},
	}
}
