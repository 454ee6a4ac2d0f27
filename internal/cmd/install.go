package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/yousourceinc/specify-setup/internal/bootstrap"
	"github.com/yousourceinc/specify-setup/internal/config"
	"github.com/yousourceinc/specify-setup/internal/db"
	"github.com/yousourceinc/specify-setup/internal/security"
	"github.com/yousourceinc/specify-setup/internal/ui"
)

// NewInstallCmd creates the install command
func NewInstallCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return NewInstallCmdWithDeps(cfg, log, DefaultDeps(cfg))
}

// NewInstallCmdWithDeps creates the install command with injected dependencies
func NewInstallCmdWithDeps(cfg *config.Config, log *zerolog.Logger, deps Deps) *cobra.Command {
	var (
		root       string
		pythons    []string
		timeout    time.Duration
		dryRun     bool
		skipRecord bool
	)

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the Specify CLI",
		Long: `Detect a Python 3.11+ interpreter and install the Specify CLI with pip.

When the repository root contains pyproject.toml the local checkout is installed
in editable mode; otherwise the CLI is installed from the pinned git source into
the user site.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range pythons {
				if err := security.ValidateInterpreterName(name); err != nil {
					return fmt.Errorf("invalid --python: %w", err)
				}
			}

			repoRoot, err := deps.Paths.RepoRoot(root)
			if err != nil {
				return err
			}

			opts := bootstrapOptions(cfg, repoRoot)
			if len(pythons) > 0 {
				opts.Candidates = pythons
			}
			if cmd.Flags().Changed("timeout") {
				opts.Timeout = timeout
			}

			log.Info().
				Str("root", repoRoot).
				Strs("candidates", opts.Candidates).
				Bool("dry_run", dryRun).
				Msg("starting bootstrap")

			console := ui.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr())
			b := bootstrap.NewWithDeps(opts, console, log, deps.Fs, deps.Runner)

			ctx := cmd.Context()
			started := time.Now()

			var result *bootstrap.Result
			if dryRun {
				result, err = b.Plan(ctx)
			} else {
				result, err = b.Run(ctx)
			}

			if !skipRecord {
				recordAttempt(ctx, cfg, log, newAttempt(started, opts, result, err))
			}

			if err != nil {
				bootstrap.ReportError(console, err)
				return reported(cmd, err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "repository root (default: install.root or the working directory)")
	cmd.Flags().StringSliceVar(&pythons, "python", nil, "interpreter candidates to try in order (default: python.candidates)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "bound every child process, e.g. 10m (0 = no bound)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "detect and print the pip command without running it")
	cmd.Flags().BoolVar(&skipRecord, "no-history", false, "do not record this attempt in the history database")

	return cmd
}

func newAttempt(started time.Time, opts bootstrap.Options, result *bootstrap.Result, err error) *db.Attempt {
	attempt := &db.Attempt{
		StartedAt: started,
		Duration:  time.Since(started),
		Root:      opts.Root,
		Outcome:   db.OutcomeSuccess,
	}

	if result != nil {
		attempt.Interpreter = result.Interpreter.Name
		attempt.PythonVersion = result.Interpreter.VersionText
		attempt.VersionCheck = string(result.VersionCheck)
		attempt.Mode = string(result.Mode)
		if result.Mode == bootstrap.ModeProduction {
			attempt.Source = opts.SourceLocator
		} else {
			attempt.Source = opts.Root
		}
		if result.DryRun {
			attempt.Outcome = db.OutcomeDryRun
		}
	}

	if err != nil {
		attempt.Outcome = db.OutcomeFailure
		attempt.ErrorKind = string(bootstrap.KindOf(err))
		attempt.ErrorMessage = err.Error()

		var be *bootstrap.BootstrapError
		if errors.As(err, &be) {
			attempt.Interpreter = be.Interpreter.Name
			attempt.PythonVersion = be.Interpreter.VersionText
			attempt.Mode = string(be.Mode)
		}
	}

	return attempt
}

// recordAttempt stores the attempt; failures here never change the outcome.
func recordAttempt(ctx context.Context, cfg *config.Config, log *zerolog.Logger, attempt *db.Attempt) {
	if !cfg.History.Enabled || cfg.Paths.DBFile == "" {
		return
	}

	database, err := db.New(ctx, cfg.Paths.DBFile)
	if err != nil {
		log.Warn().Err(err).Str("db", cfg.Paths.DBFile).Msg("cannot open history database")
		return
	}
	defer database.Close()

	if err := database.Create(ctx, attempt); err != nil {
		log.Warn().Err(err).Msg("cannot record install attempt")
		return
	}

	log.Debug().
		Str("attempt_id", attempt.AttemptID).
		Str("outcome", attempt.Outcome).
		Msg("install attempt recorded")
}

// reported marks err as already shown to the user so cobra does not print it again.
func reported(cmd *cobra.Command, err error) error {
	cmd.SilenceErrors = true
	return err
}
