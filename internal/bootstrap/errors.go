package bootstrap

import (
	"errors"
	"fmt"

	"github.com/yousourceinc/specify-setup/internal/ui"
)

// ErrorKind classifies fatal bootstrap failures.
type ErrorKind string

const (
	KindInterpreterNotFound ErrorKind = "interpreter_not_found"
	KindVersionTooLow       ErrorKind = "version_too_low"
	KindInstallFailure      ErrorKind = "install_failure"
)

// BootstrapError is returned by Run for every fatal condition. A failed version
// check spawn is not one of them; it only produces a warning.
type BootstrapError struct {
	Kind  ErrorKind
	State State
	// Interpreter is empty for KindInterpreterNotFound.
	Interpreter Interpreter
	MinVersion  string
	Mode        InstallMode
	// Fallback is the manual install command for KindInstallFailure.
	Fallback string
	Err      error
}

func (e *BootstrapError) Error() string {
	switch e.Kind {
	case KindInterpreterNotFound:
		return fmt.Sprintf("no Python %s+ interpreter found", e.MinVersion)
	case KindVersionTooLow:
		return fmt.Sprintf("python %s or higher is required (found %s)", e.MinVersion, e.Interpreter.VersionText)
	case KindInstallFailure:
		return fmt.Sprintf("installation failed: %v", e.Err)
	default:
		return fmt.Sprintf("bootstrap failed in %s: %v", e.State, e.Err)
	}
}

func (e *BootstrapError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind carried by err, or "" when err is not a BootstrapError.
func KindOf(err error) ErrorKind {
	var be *BootstrapError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// ReportError prints the diagnostic for err, including any command the user
// can run to recover by hand.
func ReportError(console *ui.Console, err error) {
	var be *BootstrapError
	if !errors.As(err, &be) {
		console.Error("%v", err)
		return
	}

	switch be.Kind {
	case KindInterpreterNotFound:
		console.Error("Python 3 is required but not found")
		console.Hint("Install Python %s+ from https://python.org", be.MinVersion)
	case KindVersionTooLow:
		console.Error("Python %s or higher is required", be.MinVersion)
		console.Hint("Current version: %s", be.Interpreter.VersionText)
	case KindInstallFailure:
		console.Hint("")
		console.Error("Installation failed: %v", be.Err)
		console.Hint("\nTry manual installation:")
		console.Hint("  %s", be.Fallback)
	default:
		console.Error("%v", be)
	}
}
