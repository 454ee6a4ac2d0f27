package cmd

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/yousourceinc/specify-setup/internal/config"
	"github.com/yousourceinc/specify-setup/internal/ui"
	"github.com/yousourceinc/specify-setup/internal/versionsync"
)

// NewSyncVersionCmd creates the sync-version command
func NewSyncVersionCmd(cfg *config.Config, log *zerolog.Logger) *cobra.Command {
	return NewSyncVersionCmdWithDeps(cfg, log, DefaultDeps(cfg))
}

// NewSyncVersionCmdWithDeps creates the sync-version command with injected dependencies
func NewSyncVersionCmdWithDeps(cfg *config.Config, log *zerolog.Logger, deps Deps) *cobra.Command {
	var (
		root        string
		checkOnly   bool
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "sync-version",
		Short: "Copy the pyproject.toml version into package.json",
		Long: `Read [project].version from pyproject.toml and write it to package.json so
the npm package and the Python package are released with the same version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			console := ui.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr())

			repoRoot, err := deps.Paths.RepoRoot(root)
			if err != nil {
				return err
			}

			syncer := versionsync.New(deps.Fs, repoRoot)
			status, err := syncer.Check()
			if err != nil {
				console.Error("%v", err)
				return reported(cmd, err)
			}

			console.Println("pyproject.toml version: " + status.PyProjectVersion)
			console.Println("package.json     version: " + orDash(status.PackageVersion))

			if status.InSync() {
				console.Success("Versions already in sync.")
				return nil
			}

			if checkOnly {
				console.Warning("package.json version differs from pyproject.toml")
				return fmt.Errorf("versions out of sync: pyproject.toml %s, package.json %s",
					status.PyProjectVersion, orDash(status.PackageVersion))
			}

			if interactive {
				ok, err := deps.Confirm(fmt.Sprintf("Update package.json version to %s", status.PyProjectVersion))
				if err != nil {
					return err
				}
				if !ok {
					console.Info("package.json left unchanged")
					return nil
				}
			}

			if err := syncer.WritePackageVersion(status.PyProjectVersion); err != nil {
				console.Error("%v", err)
				return reported(cmd, err)
			}

			log.Info().
				Str("root", repoRoot).
				Str("from", status.PackageVersion).
				Str("to", status.PyProjectVersion).
				Msg("package.json version updated")

			console.Println(fmt.Sprintf("%s Updated package.json version to %s", ui.MarkSetup, status.PyProjectVersion))
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "repository root (default: install.root or the working directory)")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "fail instead of writing when the versions differ")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "ask before writing package.json")

	return cmd
}
