package cmd

import (
	"github.com/spf13/afero"
	"github.com/yousourceinc/specify-setup/internal/bootstrap"
	"github.com/yousourceinc/specify-setup/internal/config"
	"github.com/yousourceinc/specify-setup/internal/helpers"
	"github.com/yousourceinc/specify-setup/internal/paths"
	"github.com/yousourceinc/specify-setup/internal/ui"
)

// Deps holds the collaborators commands use to touch the system.
type Deps struct {
	Fs      afero.Fs
	Runner  helpers.CommandRunner
	Paths   *paths.Resolver
	Confirm ui.ConfirmFunc
}

// DefaultDeps returns the OS-backed dependencies.
func DefaultDeps(cfg *config.Config) Deps {
	return Deps{
		Fs:      afero.NewOsFs(),
		Runner:  helpers.NewOSCommandRunner(),
		Paths:   paths.NewResolver(cfg),
		Confirm: ui.ConfirmPrompt,
	}
}

// bootstrapOptions maps configuration onto bootstrap options. Zero values
// fall back to the built-in defaults.
func bootstrapOptions(cfg *config.Config, root string) bootstrap.Options {
	def := config.Default()

	opts := bootstrap.Options{
		Candidates: cfg.Python.Candidates,
		MinMajor:   cfg.Python.MinMajor,
		MinMinor:   cfg.Python.MinMinor,
		Manifest:   cfg.Install.Manifest,
		Root:       root,
		Timeout:    cfg.Install.Timeout,
	}

	if len(opts.Candidates) == 0 {
		opts.Candidates = def.Python.Candidates
	}
	if opts.MinMajor == 0 && opts.MinMinor == 0 {
		opts.MinMajor = def.Python.MinMajor
		opts.MinMinor = def.Python.MinMinor
	}
	if opts.Manifest == "" {
		opts.Manifest = def.Install.Manifest
	}

	source := *cfg
	if source.Install.RepoURL == "" {
		source.Install.RepoURL = def.Install.RepoURL
	}
	if source.Install.Branch == "" {
		source.Install.Branch = def.Install.Branch
	}
	opts.SourceLocator = source.SourceLocator()

	return opts
}
