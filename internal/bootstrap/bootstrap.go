// Package bootstrap installs the Specify CLI with a detected Python interpreter.
//
// A run is a linear state machine. Each state either advances or moves to
// StateFail with a *BootstrapError; the only soft edge is a version check that
// could not be executed, which is logged as a warning and ignored.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/yousourceinc/specify-setup/internal/fsops"
	"github.com/yousourceinc/specify-setup/internal/helpers"
	"github.com/yousourceinc/specify-setup/internal/ui"
)

// Bootstrapper runs interpreter discovery and the pip install.
type Bootstrapper struct {
	Fs      afero.Fs
	Runner  helpers.CommandRunner
	Console *ui.Console
	Log     *zerolog.Logger

	opts  Options
	state State
	trace []State
}

// New creates a Bootstrapper backed by the OS filesystem and os/exec.
func New(opts Options, console *ui.Console, log *zerolog.Logger) *Bootstrapper {
	return NewWithDeps(opts, console, log, afero.NewOsFs(), helpers.NewOSCommandRunner())
}

// NewWithDeps creates a Bootstrapper with injected dependencies (for tests).
func NewWithDeps(opts Options, console *ui.Console, log *zerolog.Logger, fs afero.Fs, runner helpers.CommandRunner) *Bootstrapper {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if console == nil {
		console = ui.NewConsole(nil, nil)
	}
	return &Bootstrapper{
		Fs:      fs,
		Runner:  runner,
		Console: console,
		Log:     log,
		opts:    opts,
		state:   StateStart,
		trace:   []State{StateStart},
	}
}

// State returns the current state.
func (b *Bootstrapper) State() State {
	return b.state
}

// Trace returns every state entered so far, in order.
func (b *Bootstrapper) Trace() []State {
	out := make([]State, len(b.trace))
	copy(out, b.trace)
	return out
}

// Run executes the whole state machine, including the install.
func (b *Bootstrapper) Run(ctx context.Context) (*Result, error) {
	return b.run(ctx, true)
}

// Plan runs every state up to the install and returns the command that would
// be executed without executing it.
func (b *Bootstrapper) Plan(ctx context.Context) (*Result, error) {
	return b.run(ctx, false)
}

func (b *Bootstrapper) run(ctx context.Context, install bool) (*Result, error) {
	start := time.Now()
	result := &Result{Root: b.opts.Root, NextStep: NextStepCommand, DryRun: !install}

	b.Console.Header("Setting up Specify CLI...")

	b.enter(StateInterpreterSearch)
	interp, err := b.DiscoverInterpreter(ctx)
	if err != nil {
		return nil, b.fail(err)
	}
	result.Interpreter = *interp
	result.Fallback = FallbackCommand(interp.Name, b.opts.SourceLocator)
	b.Console.Found("Found %s", interp.VersionText)

	b.enter(StateVersionCheck)
	check, err := b.VerifyMinimumVersion(ctx, interp)
	if err != nil {
		return nil, b.fail(err)
	}
	result.VersionCheck = check
	if check == VersionCheckUnavailable {
		b.Console.Warning("Could not verify Python version")
		result.Warnings = append(result.Warnings, "could not verify Python version")
	}

	b.Console.Step("Installing Python CLI...")

	b.enter(StateModeResolution)
	result.Mode = ResolveInstallMode(b.Fs, b.opts.Root, b.opts.Manifest)
	result.Command = InstallCommand(result.Mode, interp.Name, b.opts.Root, b.opts.SourceLocator)
	b.Log.Info().
		Str("mode", string(result.Mode)).
		Str("root", b.opts.Root).
		Msg("install mode resolved")

	b.enter(StateInstall)
	if !install {
		b.Console.Info("%s", modeBanner(result.Mode))
		b.Console.Info("Would run: %s", result.CommandLine())
		b.enter(StateSuccess)
		result.Duration = time.Since(start)
		return result, nil
	}

	if err := b.Install(ctx, result.Mode, interp, b.opts.Root); err != nil {
		return nil, b.fail(err)
	}

	b.enter(StateSuccess)
	result.Duration = time.Since(start)

	b.Console.Success("Specify CLI installed successfully")
	b.Console.Println()
	b.Console.Println("Next steps:")
	b.Console.Println("  1. Run: " + NextStepCommand)

	b.Log.Info().
		Str("interpreter", interp.Name).
		Str("mode", string(result.Mode)).
		Dur("duration", result.Duration).
		Msg("specify CLI installed")

	return result, nil
}

// DiscoverInterpreter returns the first candidate that runs --version successfully.
func (b *Bootstrapper) DiscoverInterpreter(ctx context.Context) (*Interpreter, error) {
	for _, name := range b.opts.Candidates {
		callCtx, cancel := b.callContext(ctx)
		stdout, stderr, err := b.Runner.RunCommandWithOutput(callCtx, name, "--version")
		cancel()

		if err != nil {
			b.Log.Debug().
				Err(err).
				Str("candidate", name).
				Int("exit_code", b.Runner.GetExitCode(err)).
				Msg("interpreter candidate rejected")
			continue
		}

		// Python 2 prints its version on stderr
		version := strings.TrimSpace(stdout)
		if version == "" {
			version = strings.TrimSpace(stderr)
		}
		if version == "" {
			version = name
		}

		b.Log.Debug().
			Str("candidate", name).
			Str("version", version).
			Msg("interpreter selected")

		return &Interpreter{Name: name, VersionText: version}, nil
	}

	return nil, &BootstrapError{
		Kind:       KindInterpreterNotFound,
		State:      StateInterpreterSearch,
		MinVersion: b.opts.MinVersion(),
		Err:        fmt.Errorf("tried %s", strings.Join(b.opts.Candidates, ", ")),
	}
}

// VerifyMinimumVersion asks the interpreter itself to compare its version with
// the floor. Failing to run the check at all yields VersionCheckUnavailable and
// no error; a check that runs and fails is fatal.
func (b *Bootstrapper) VerifyMinimumVersion(ctx context.Context, interp *Interpreter) (VersionCheck, error) {
	callCtx, cancel := b.callContext(ctx)
	defer cancel()

	_, stderr, err := b.Runner.RunCommandWithOutput(callCtx, interp.Name, "-c", VersionCheckScript(b.opts.MinMajor, b.opts.MinMinor))
	if err == nil {
		return VersionCheckPassed, nil
	}

	code := b.Runner.GetExitCode(err)
	if code < 0 {
		b.Log.Warn().
			Err(err).
			Str("interpreter", interp.Name).
			Msg("version check could not run")
		return VersionCheckUnavailable, nil
	}

	b.Log.Debug().
		Int("exit_code", code).
		Str("stderr", strings.TrimSpace(stderr)).
		Msg("version check failed")

	return "", &BootstrapError{
		Kind:        KindVersionTooLow,
		State:       StateVersionCheck,
		Interpreter: *interp,
		MinVersion:  b.opts.MinVersion(),
		Err:         err,
	}
}

// Install runs pip for the given mode with the console's streams attached.
func (b *Bootstrapper) Install(ctx context.Context, mode InstallMode, interp *Interpreter, root string) error {
	argv := InstallCommand(mode, interp.Name, root, b.opts.SourceLocator)

	b.Console.Info("%s", modeBanner(mode))

	callCtx, cancel := b.callContext(ctx)
	defer cancel()

	var err error
	switch mode {
	case ModeDevelopment:
		err = b.Runner.RunCommandInDirStreaming(callCtx, root, b.Console.Out, b.Console.Err, argv[0], argv[1:]...)
	default:
		err = b.Runner.RunCommandStreaming(callCtx, b.Console.Out, b.Console.Err, argv[0], argv[1:]...)
	}

	if err != nil {
		b.Log.Error().
			Err(err).
			Str("mode", string(mode)).
			Int("exit_code", b.Runner.GetExitCode(err)).
			Msg("pip install failed")

		return &BootstrapError{
			Kind:        KindInstallFailure,
			State:       StateInstall,
			Interpreter: *interp,
			MinVersion:  b.opts.MinVersion(),
			Mode:        mode,
			Fallback:    FallbackCommand(interp.Name, b.opts.SourceLocator),
			Err:         err,
		}
	}

	return nil
}

// ResolveInstallMode returns ModeDevelopment when manifest exists directly under root.
func ResolveInstallMode(fs afero.Fs, root, manifest string) InstallMode {
	if fsops.Exists(fs, filepath.Join(root, manifest)) {
		return ModeDevelopment
	}
	return ModeProduction
}

// InstallCommand builds the pip argv for mode.
func InstallCommand(mode InstallMode, python, root, locator string) []string {
	if mode == ModeDevelopment {
		return []string{python, "-m", "pip", "install", "-e", root}
	}
	return []string{python, "-m", "pip", "install", "--user", locator}
}

// FallbackCommand is the manual install command shown when pip fails.
func FallbackCommand(python, locator string) string {
	return fmt.Sprintf("%s -m pip install --user %s", python, locator)
}

// VersionCheckScript exits 0 when the running interpreter is at least major.minor.
func VersionCheckScript(major, minor int) string {
	return fmt.Sprintf("import sys; sys.exit(0 if sys.version_info >= (%d, %d) else 1)", major, minor)
}

func modeBanner(mode InstallMode) string {
	if mode == ModeDevelopment {
		return "Development mode: Installing from local source"
	}
	return "Production mode: Installing from git repository"
}

func (b *Bootstrapper) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.opts.Timeout > 0 {
		return context.WithTimeout(ctx, b.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

func (b *Bootstrapper) enter(s State) {
	b.Log.Debug().
		Str("from", b.state.String()).
		Str("to", s.String()).
		Msg("state transition")
	b.state = s
	b.trace = append(b.trace, s)
}

func (b *Bootstrapper) fail(err error) error {
	b.enter(StateFail)
	return err
}
