package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Color scheme for specify-setup
var (
	Success = color.New(color.FgGreen)
	Error   = color.New(color.FgRed, color.Bold)
	Warning = color.New(color.FgYellow)
	Info    = color.New(color.FgCyan)

	Highlight = color.New(color.FgHiCyan, color.Bold)
	Muted     = color.New(color.Faint)
	Bold      = color.New(color.Bold)
)

// Status markers
const (
	MarkSetup   = "🔧"
	MarkFound   = "✓"
	MarkPackage = "📦"
	MarkDone    = "✅"
	MarkWarning = "⚠️ "
	MarkError   = "❌"
	MarkInfo    = "→"
	MarkBullet  = "•"
)

// InitColors initializes color settings based on environment and the
// logging.color setting (auto, always, never).
func InitColors(mode string) {
	switch mode {
	case "never":
		color.NoColor = true
		return
	case "always":
		color.NoColor = false
		return
	}

	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	if os.Getenv("TERM") == "dumb" {
		color.NoColor = true
	}
}

// DisableColors disables all color output
func DisableColors() {
	color.NoColor = true
}

// EnableColors enables color output
func EnableColors() {
	color.NoColor = false
}

// AreColorsEnabled returns whether colors are currently enabled
func AreColorsEnabled() bool {
	return !color.NoColor
}

// Console prints status lines. Informational lines go to Out, warnings and
// errors go to Err.
type Console struct {
	Out io.Writer
	Err io.Writer
}

// NewConsole creates a Console; nil writers fall back to the process streams.
func NewConsole(out, errOut io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Console{Out: out, Err: errOut}
}

// Header prints the opening banner followed by a blank line
func (c *Console) Header(format string, args ...any) {
	Bold.Fprintf(c.Out, "%s %s\n\n", MarkSetup, fmt.Sprintf(format, args...))
}

// Found prints a check-marked discovery line
func (c *Console) Found(format string, args ...any) {
	Success.Fprintf(c.Out, "%s %s\n", MarkFound, fmt.Sprintf(format, args...))
}

// Step prints a phase announcement followed by a blank line
func (c *Console) Step(format string, args ...any) {
	Highlight.Fprintf(c.Out, "%s %s\n\n", MarkPackage, fmt.Sprintf(format, args...))
}

// Info prints a plain informational line
func (c *Console) Info(format string, args ...any) {
	Info.Fprintf(c.Out, "%s\n", fmt.Sprintf(format, args...))
}

// Success prints a completion line preceded by a blank line
func (c *Console) Success(format string, args ...any) {
	fmt.Fprintln(c.Out)
	Success.Fprintf(c.Out, "%s %s\n", MarkDone, fmt.Sprintf(format, args...))
}

// Warning prints a non-fatal problem
func (c *Console) Warning(format string, args ...any) {
	Warning.Fprintf(c.Err, "%s %s\n", MarkWarning, fmt.Sprintf(format, args...))
}

// Error prints a fatal problem
func (c *Console) Error(format string, args ...any) {
	Error.Fprintf(c.Err, "%s %s\n", MarkError, fmt.Sprintf(format, args...))
}

// Hint prints an uncolored line on Err, used for remediation text and
// commands the user can copy.
func (c *Console) Hint(format string, args ...any) {
	fmt.Fprintf(c.Err, format+"\n", args...)
}

// Println prints a plain line on Out
func (c *Console) Println(a ...any) {
	fmt.Fprintln(c.Out, a...)
}

// Section prints a section header
func (c *Console) Section(text string) {
	fmt.Fprintln(c.Out)
	Bold.Fprintln(c.Out, text)
	Muted.Fprintln(c.Out, "────────────────────────────────────────")
}

// Check prints a pass/fail line for diagnostics
func (c *Console) Check(ok bool, format string, args ...any) {
	if ok {
		Success.Fprintf(c.Out, "%s %s\n", MarkFound, fmt.Sprintf(format, args...))
		return
	}
	Error.Fprintf(c.Out, "%s %s\n", MarkError, fmt.Sprintf(format, args...))
}

// List prints a bulleted list
func (c *Console) List(items []string) {
	for _, item := range items {
		fmt.Fprintf(c.Out, "  %s %s\n", MarkBullet, item)
	}
}
