package bootstrap

import (
	"fmt"
	"strings"
	"time"
)

// NextStepCommand is printed after a successful install.
const NextStepCommand = "specify init my-project --ai claude"

// State is a step of the bootstrap state machine:
// Start → InterpreterSearch → VersionCheck → ModeResolution → Install → {Success, Fail}
type State int

const (
	StateStart State = iota
	StateInterpreterSearch
	StateVersionCheck
	StateModeResolution
	StateInstall
	StateSuccess
	StateFail
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateInterpreterSearch:
		return "interpreter_search"
	case StateVersionCheck:
		return "version_check"
	case StateModeResolution:
		return "mode_resolution"
	case StateInstall:
		return "install"
	case StateSuccess:
		return "success"
	case StateFail:
		return "fail"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFail
}

// InstallMode selects where the CLI is installed from.
type InstallMode string

const (
	// ModeDevelopment installs the local checkout in editable mode
	ModeDevelopment InstallMode = "development"
	// ModeProduction installs the pinned remote source into the user scheme
	ModeProduction InstallMode = "production"
)

// Interpreter is the selected Python executable and its raw --version output.
type Interpreter struct {
	Name        string
	VersionText string
}

// VersionCheck is the outcome of the minimum version check.
type VersionCheck string

const (
	VersionCheckPassed      VersionCheck = "passed"
	VersionCheckUnavailable VersionCheck = "unavailable"
)

// Options configures a Bootstrapper.
type Options struct {
	// Candidates are tried in order; the first that answers --version wins.
	Candidates []string
	MinMajor   int
	MinMinor   int
	// Manifest is the file whose presence under Root selects development mode.
	Manifest string
	// SourceLocator is the pip VCS locator used in production mode.
	SourceLocator string
	Root          string
	// Timeout bounds each child process. Zero means no bound.
	Timeout time.Duration
}

// MinVersion renders the floor as "3.11".
func (o Options) MinVersion() string {
	return fmt.Sprintf("%d.%d", o.MinMajor, o.MinMinor)
}

// Result describes a finished (or planned) bootstrap.
type Result struct {
	Interpreter  Interpreter
	VersionCheck VersionCheck
	Mode         InstallMode
	Root         string
	// Command is the pip invocation, argv style.
	Command  []string
	Fallback string
	NextStep string
	DryRun   bool
	Warnings []string
	Duration time.Duration
}

// CommandLine renders Command for display.
func (r *Result) CommandLine() string {
	return strings.Join(r.Command, " ")
}
