package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/yousourceinc/specify-setup/internal/bootstrap"
	"github.com/yousourceinc/specify-setup/internal/config"
	"github.com/yousourceinc/specify-setup/internal/db"
	"github.com/yousourceinc/specify-setup/internal/fsops"
	"github.com/yousourceinc/specify-setup/internal/paths"
	"github.com/yousourceinc/specify-setup/internal/ui"
)

// NewDoctorCmd creates the doctor command
func NewDoctorCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return NewDoctorCmdWithDeps(cfg, log, DefaultDeps(cfg))
}

// NewDoctorCmdWithDeps creates the doctor command with injected dependencies
func NewDoctorCmdWithDeps(cfg *config.Config, log *zerolog.Logger, deps Deps) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that the Specify CLI can be installed",
		Long:  `Check the Python interpreter, pip, the install mode, PATH and the data directory without installing anything.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			console := ui.NewConsole(cmd.OutOrStdout(), cmd.OutOrStdout())
			ctx := cmd.Context()

			var issues []string
			var warnings []string

			console.Header("System Diagnostics")

			repoRoot, err := deps.Paths.RepoRoot(root)
			if err != nil {
				return err
			}
			opts := bootstrapOptions(cfg, repoRoot)

			// 1. Interpreter
			console.Section("Python")
			quiet := ui.NewConsole(io.Discard, io.Discard)
			b := bootstrap.NewWithDeps(opts, quiet, log, deps.Fs, deps.Runner)

			interp, err := b.DiscoverInterpreter(ctx)
			if err != nil {
				console.Check(false, "Interpreter: not found (tried %s)", strings.Join(opts.Candidates, ", "))
				issues = append(issues, fmt.Sprintf("Install Python %s+ from https://python.org", opts.MinVersion()))
			} else {
				console.Check(true, "Interpreter: %s (%s)", interp.Name, interp.VersionText)

				check, err := b.VerifyMinimumVersion(ctx, interp)
				switch {
				case err != nil:
					console.Check(false, "Version: below %s", opts.MinVersion())
					issues = append(issues, fmt.Sprintf("Python %s or higher is required", opts.MinVersion()))
				case check == bootstrap.VersionCheckUnavailable:
					console.Warning("Version: could not be verified")
					warnings = append(warnings, "Could not verify Python version")
				default:
					console.Check(true, "Version: %s or higher", opts.MinVersion())
				}

				if version, ok := checkPip(ctx, deps, interp.Name); ok {
					console.Check(true, "pip: %s", version)
				} else {
					console.Check(false, "pip: not available for %s", interp.Name)
					issues = append(issues, fmt.Sprintf("pip is not available: run %s -m ensurepip --user", interp.Name))
				}
			}

			// 2. Install mode
			console.Section("Installation")
			mode := bootstrap.ResolveInstallMode(deps.Fs, repoRoot, opts.Manifest)
			console.Info("Repository root: %s", repoRoot)
			if mode == bootstrap.ModeDevelopment {
				console.Info("Install mode: %s (%s found)", mode, opts.Manifest)
				console.Info("Command: %s", strings.Join(bootstrap.InstallCommand(mode, pythonName(interp, opts), repoRoot, opts.SourceLocator), " "))
			} else {
				console.Info("Install mode: %s (no %s)", mode, opts.Manifest)
				console.Info("Command: %s", strings.Join(bootstrap.InstallCommand(mode, pythonName(interp, opts), repoRoot, opts.SourceLocator), " "))
			}

			// 3. Environment
			console.Section("Environment")
			binDir := deps.Paths.GetUserBinDir()
			if paths.InPath(binDir, os.Getenv("PATH")) {
				console.Check(true, "%s is on PATH", binDir)
			} else {
				console.Warning("%s is not on PATH", binDir)
				warnings = append(warnings, fmt.Sprintf("Add %s to PATH so the specify command is found after a --user install", binDir))
			}

			if deps.Runner.CommandExists("specify") {
				console.Check(true, "specify: found")
			} else {
				console.Info("specify: not installed yet")
			}

			// 4. Data directory
			console.Section("Data")
			dataIssue := checkDataDir(deps, cfg.Paths.DataDir)
			if dataIssue == "" {
				console.Check(true, "Data directory: %s", cfg.Paths.DataDir)
			} else {
				console.Check(false, "Data directory: %s", dataIssue)
				issues = append(issues, dataIssue)
			}

			if cfg.History.Enabled && cfg.Paths.DBFile != "" {
				if last, err := lastAttempt(ctx, deps, cfg.Paths.DBFile); err != nil {
					console.Warning("History: %v", err)
					warnings = append(warnings, "Cannot read install history")
				} else if last == nil {
					console.Info("History: no install attempts recorded")
				} else {
					console.Info("History: last attempt %s (%s, %s)",
						last.Outcome, last.StartedAt.Format("2006-01-02 15:04"), orDash(last.Mode))
				}
			}

			// Summary
			console.Section("Summary")

			if len(issues) == 0 {
				console.Check(true, "All critical checks passed!")
			} else {
				console.Check(false, "Found %d issue(s):", len(issues))
				console.List(issues)
			}

			if len(warnings) > 0 {
				console.Warning("Found %d warning(s):", len(warnings))
				console.List(warnings)
			}

			log.Debug().
				Int("issues", len(issues)).
				Int("warnings", len(warnings)).
				Msg("doctor finished")

			if len(issues) > 0 {
				return fmt.Errorf("system check failed with %d issue(s)", len(issues))
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "repository root (default: install.root or the working directory)")

	return cmd
}

// checkPip returns pip's version line when the interpreter can run pip
func checkPip(ctx context.Context, deps Deps, python string) (string, bool) {
	stdout, _, err := deps.Runner.RunCommandWithOutput(ctx, python, "-m", "pip", "--version")
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(stdout), true
}

// checkDataDir creates the data directory if needed and returns a problem
// description, or "" when it is usable
func checkDataDir(deps Deps, dir string) string {
	if dir == "" {
		return "paths.data_dir is not set"
	}
	if err := fsops.EnsureDir(deps.Fs, dir, 0755); err != nil {
		return fmt.Sprintf("cannot create %s: %v", dir, err)
	}
	if err := fsops.CheckWritable(deps.Fs, dir); err != nil {
		return fmt.Sprintf("%s is not writable", dir)
	}
	return ""
}

// lastAttempt returns the newest recorded attempt, or nil when there is none
func lastAttempt(ctx context.Context, deps Deps, dbFile string) (*db.Attempt, error) {
	if !fsops.IsFile(deps.Fs, dbFile) {
		return nil, nil
	}

	database, err := db.New(ctx, dbFile)
	if err != nil {
		return nil, err
	}
	defer database.Close()

	attempts, err := database.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return nil, nil
	}
	return &attempts[0], nil
}

func pythonName(interp *bootstrap.Interpreter, opts bootstrap.Options) string {
	if interp != nil {
		return interp.Name
	}
	return opts.Candidates[0]
}
