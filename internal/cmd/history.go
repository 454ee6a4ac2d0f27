package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/yousourceinc/specify-setup/internal/config"
	"github.com/yousourceinc/specify-setup/internal/db"
	"github.com/yousourceinc/specify-setup/internal/fsops"
	"github.com/yousourceinc/specify-setup/internal/ui"
)

// NewHistoryCmd creates the history command
func NewHistoryCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return NewHistoryCmdWithDeps(cfg, log, DefaultDeps(cfg))
}

// NewHistoryCmdWithDeps creates the history command with injected dependencies
func NewHistoryCmdWithDeps(cfg *config.Config, log *zerolog.Logger, deps Deps) *cobra.Command {
	var (
		limit       int
		jsonOutput  bool
		showDetails bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded install attempts",
		Long:  `List install attempts recorded in the history database, newest first.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			console := ui.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr())

			if !fsops.IsFile(deps.Fs, cfg.Paths.DBFile) {
				console.Info("No install attempts recorded")
				return nil
			}

			database, err := db.New(ctx, cfg.Paths.DBFile)
			if err != nil {
				console.Error("failed to open database: %v", err)
				return reported(cmd, fmt.Errorf("open database: %w", err))
			}
			defer database.Close()

			attempts, err := database.List(ctx, limit)
			if err != nil {
				console.Error("failed to list attempts: %v", err)
				return reported(cmd, fmt.Errorf("list attempts: %w", err))
			}

			log.Debug().Int("count", len(attempts)).Msg("listed install attempts")

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(attempts)
			}

			if len(attempts) == 0 {
				console.Info("No install attempts recorded")
				return nil
			}

			if showDetails {
				printDetailedAttempts(cmd, attempts)
			} else {
				printAttempts(cmd, attempts)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of attempts to show (0 = all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().BoolVarP(&showDetails, "details", "d", false, "show detailed information")

	return cmd
}

func printAttempts(cmd *cobra.Command, attempts []db.Attempt) {
	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"Started", "Outcome", "Mode", "Interpreter", "Duration"}),
		tablewriter.WithAlignment(tw.MakeAlign(5, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleNone)),
	)

	for _, a := range attempts {
		table.Append(
			a.StartedAt.Format("2006-01-02 15:04"),
			a.Outcome,
			orDash(a.Mode),
			orDash(a.Interpreter),
			a.Duration.Round(10*time.Millisecond).String(),
		)
	}

	table.Render()
}

func printDetailedAttempts(cmd *cobra.Command, attempts []db.Attempt) {
	table := tablewriter.NewTable(cmd.OutOrStdout(),
		tablewriter.WithHeader([]string{"Attempt ID", "Started", "Outcome", "Python", "Source", "Error"}),
		tablewriter.WithAlignment(tw.MakeAlign(6, tw.AlignLeft)),
		tablewriter.WithSymbols(tw.NewSymbols(tw.StyleLight)),
	)

	for _, a := range attempts {
		source := a.Source
		if len(source) > 40 {
			source = "..." + source[len(source)-37:]
		}

		errText := a.ErrorKind
		if a.ErrorMessage != "" {
			errText = a.ErrorMessage
		}
		if len(errText) > 40 {
			errText = errText[:37] + "..."
		}

		table.Append(
			a.AttemptID,
			a.StartedAt.Format("2006-01-02 15:04:05"),
			a.Outcome,
			orDash(a.PythonVersion),
			orDash(source),
			orDash(errText),
		)
	}

	table.Render()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
