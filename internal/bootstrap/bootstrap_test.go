package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yousourceinc/specify-setup/internal/helpers"
	"github.com/yousourceinc/specify-setup/internal/ui"
)

const testLocator = "git+https://github.com/yousourceinc/ys-spec-kit.git@main"

func TestMain(m *testing.M) {
	ui.DisableColors()
	os.Exit(m.Run())
}

// fakePython scripts the interpreters visible to a MockCommandRunner.
type fakePython struct {
	versions   map[string]string // candidate -> --version output
	stderrOnly bool
	checkErr   error
	installErr error

	probed      []string
	installArgv []string
	installDir  string
	streamed    bool
}

func (f *fakePython) runner() *helpers.MockCommandRunner {
	return &helpers.MockCommandRunner{
		RunCommandWithOutputFunc: func(_ context.Context, name string, args ...string) (string, string, error) {
			if len(args) == 1 && args[0] == "--version" {
				f.probed = append(f.probed, name)
				v, ok := f.versions[name]
				if !ok {
					return "", "", errors.New(`exec: "` + name + `": executable file not found in $PATH`)
				}
				if f.stderrOnly {
					return "", v + "\n", nil
				}
				return v + "\n", "", nil
			}
			if len(args) == 2 && args[0] == "-c" {
				return "", "", f.checkErr
			}
			return "", "", errors.New("unexpected command")
		},
		RunCommandStreamingFunc: func(_ context.Context, stdout, _ io.Writer, name string, args ...string) error {
			f.streamed = true
			f.installArgv = append([]string{name}, args...)
			_, _ = io.WriteString(stdout, "Successfully installed specify-cli\n")
			return f.installErr
		},
		RunCommandInDirStreamingFunc: func(_ context.Context, dir string, stdout, _ io.Writer, name string, args ...string) error {
			f.streamed = true
			f.installDir = dir
			f.installArgv = append([]string{name}, args...)
			_, _ = io.WriteString(stdout, "Successfully installed specify-cli\n")
			return f.installErr
		},
	}
}

func testOptions() Options {
	return Options{
		Candidates:    []string{"python3", "python"},
		MinMajor:      3,
		MinMinor:      11,
		Manifest:      "pyproject.toml",
		SourceLocator: testLocator,
		Root:          "/repo",
	}
}

func newTestBootstrapper(t *testing.T, fp *fakePython, fs afero.Fs) (*Bootstrapper, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	console := ui.NewConsole(&out, &errOut)
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	return NewWithDeps(testOptions(), console, nil, fs, fp.runner()), &out, &errOut
}

func devFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/repo/pyproject.toml", []byte("[project]\nname = \"specify-cli\"\n"), 0644))
	return fs
}

func TestRun_InterpreterNotFound(t *testing.T) {
	fp := &fakePython{}
	b, _, errOut := newTestBootstrapper(t, fp, nil)

	result, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, KindInterpreterNotFound, KindOf(err))
	assert.Equal(t, StateFail, b.State())
	assert.Equal(t, []string{"python3", "python"}, fp.probed)
	assert.False(t, fp.streamed)

	ReportError(b.Console, err)
	assert.Contains(t, errOut.String(), "Python 3 is required but not found")
	assert.Contains(t, errOut.String(), "Install Python 3.11+ from https://python.org")
}

func TestRun_VersionTooLow(t *testing.T) {
	fp := &fakePython{
		versions: map[string]string{"python3": "Python 3.10.12"},
		checkErr: &helpers.MockExitError{Code: 1},
	}
	b, out, errOut := newTestBootstrapper(t, fp, devFs(t))

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindVersionTooLow, KindOf(err))
	assert.Equal(t, []State{StateStart, StateInterpreterSearch, StateVersionCheck, StateFail}, b.Trace())
	assert.False(t, fp.streamed)
	assert.Contains(t, out.String(), "✓ Found Python 3.10.12")

	ReportError(b.Console, err)
	assert.Contains(t, errOut.String(), "Python 3.11 or higher is required")
	assert.Contains(t, errOut.String(), "Current version: Python 3.10.12")
}

func TestRun_MinimumVersionProceeds(t *testing.T) {
	fp := &fakePython{versions: map[string]string{"python3": "Python 3.11.0"}}
	b, _, _ := newTestBootstrapper(t, fp, nil)

	result, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, VersionCheckPassed, result.VersionCheck)
	assert.Contains(t, b.Trace(), StateModeResolution)
	assert.Equal(t, StateSuccess, b.State())
}

func TestRun_DevelopmentSuccess(t *testing.T) {
	fp := &fakePython{versions: map[string]string{"python3": "Python 3.12.3"}}
	b, out, errOut := newTestBootstrapper(t, fp, devFs(t))

	result, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ModeDevelopment, result.Mode)
	assert.Equal(t, "/repo", fp.installDir)
	assert.Equal(t, []string{"python3", "-m", "pip", "install", "-e", "/repo"}, fp.installArgv)
	assert.Equal(t, []State{
		StateStart, StateInterpreterSearch, StateVersionCheck, StateModeResolution, StateInstall, StateSuccess,
	}, b.Trace())

	output := out.String()
	assert.Contains(t, output, "🔧 Setting up Specify CLI...")
	assert.Contains(t, output, "📦 Installing Python CLI...")
	assert.Contains(t, output, "Development mode: Installing from local source")
	assert.Contains(t, output, "Successfully installed specify-cli")
	assert.Contains(t, output, "✅ Specify CLI installed successfully")
	assert.Contains(t, output, "1. Run: specify init my-project --ai claude")
	assert.Empty(t, errOut.String())
}

func TestRun_ProductionFailure(t *testing.T) {
	fp := &fakePython{
		versions:   map[string]string{"python3": "Python 3.12.3"},
		installErr: &helpers.MockExitError{Code: 1},
	}
	b, out, errOut := newTestBootstrapper(t, fp, nil)

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindInstallFailure, KindOf(err))
	assert.Equal(t, StateFail, b.State())
	assert.Equal(t, []string{"python3", "-m", "pip", "install", "--user", testLocator}, fp.installArgv)
	assert.Contains(t, out.String(), "Production mode: Installing from git repository")
	assert.NotContains(t, out.String(), "installed successfully")

	var be *BootstrapError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, ModeProduction, be.Mode)

	ReportError(b.Console, err)
	assert.Contains(t, errOut.String(), "Installation failed: exit status 1")
	assert.Contains(t, errOut.String(), "Try manual installation:")
	assert.Contains(t, errOut.String(), "python3 -m pip install --user git+https://github.com/yousourceinc/ys-spec-kit.git@main")
}

func TestRun_InstallSpawnFailure(t *testing.T) {
	fp := &fakePython{
		versions:   map[string]string{"python3": "Python 3.12.3"},
		installErr: errors.New("fork/exec: resource temporarily unavailable"),
	}
	b, _, _ := newTestBootstrapper(t, fp, devFs(t))

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, KindInstallFailure, KindOf(err))
}

func TestRun_VersionCheckUnavailableContinues(t *testing.T) {
	fp := &fakePython{
		versions: map[string]string{"python3": "Python 3.12.3"},
		checkErr: errors.New("fork/exec /usr/bin/python3: permission denied"),
	}
	b, _, errOut := newTestBootstrapper(t, fp, nil)

	result, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, VersionCheckUnavailable, result.VersionCheck)
	assert.Contains(t, b.Trace(), StateModeResolution)
	assert.Contains(t, errOut.String(), "Could not verify Python version")
	assert.Len(t, result.Warnings, 1)
}

func TestDiscoverInterpreter_FirstMatch(t *testing.T) {
	t.Run("first candidate wins even if a later one is newer", func(t *testing.T) {
		fp := &fakePython{versions: map[string]string{
			"python3": "Python 3.11.2",
			"python":  "Python 3.13.0",
		}}
		b, _, _ := newTestBootstrapper(t, fp, nil)

		interp, err := b.DiscoverInterpreter(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "python3", interp.Name)
		assert.Equal(t, "Python 3.11.2", interp.VersionText)
		assert.Equal(t, []string{"python3"}, fp.probed)
	})

	t.Run("falls through to later candidates", func(t *testing.T) {
		fp := &fakePython{versions: map[string]string{"python": "Python 3.12.0"}}
		b, _, _ := newTestBootstrapper(t, fp, nil)

		interp, err := b.DiscoverInterpreter(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "python", interp.Name)
		assert.Equal(t, []string{"python3", "python"}, fp.probed)
	})

	t.Run("version on stderr", func(t *testing.T) {
		fp := &fakePython{versions: map[string]string{"python3": "Python 2.7.18"}, stderrOnly: true}
		b, _, _ := newTestBootstrapper(t, fp, nil)

		interp, err := b.DiscoverInterpreter(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Python 2.7.18", interp.VersionText)
	})

	t.Run("non-zero exit is not a match", func(t *testing.T) {
		runner := &helpers.MockCommandRunner{
			RunCommandWithOutputFunc: func(_ context.Context, name string, _ ...string) (string, string, error) {
				if name == "python3" {
					return "", "shim: no python3 configured", &helpers.MockExitError{Code: 127}
				}
				return "Python 3.12.1", "", nil
			},
		}
		b := NewWithDeps(testOptions(), ui.NewConsole(io.Discard, io.Discard), nil, afero.NewMemMapFs(), runner)

		interp, err := b.DiscoverInterpreter(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "python", interp.Name)
	})
}

func TestVerifyMinimumVersion_Script(t *testing.T) {
	var gotArgs []string
	runner := &helpers.MockCommandRunner{
		RunCommandWithOutputFunc: func(_ context.Context, _ string, args ...string) (string, string, error) {
			gotArgs = args
			return "", "", nil
		},
	}
	opts := testOptions()
	opts.MinMinor = 12
	b := NewWithDeps(opts, ui.NewConsole(io.Discard, io.Discard), nil, afero.NewMemMapFs(), runner)

	check, err := b.VerifyMinimumVersion(context.Background(), &Interpreter{Name: "python3"})
	require.NoError(t, err)
	assert.Equal(t, VersionCheckPassed, check)
	assert.Equal(t, []string{"-c", "import sys; sys.exit(0 if sys.version_info >= (3, 12) else 1)"}, gotArgs)
}

func TestResolveInstallMode(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/dev-root/pyproject.toml", []byte(""), 0644))
	require.NoError(t, afero.WriteFile(fs, "/prod-root/package.json", []byte("{}"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/nested-root/sub/pyproject.toml", []byte(""), 0644))

	tests := []struct {
		name string
		root string
		want InstallMode
	}{
		{"manifest present", "/dev-root", ModeDevelopment},
		{"manifest absent", "/prod-root", ModeProduction},
		{"manifest only in a subdirectory", "/nested-root", ModeProduction},
		{"missing root", "/nowhere", ModeProduction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveInstallMode(fs, tt.root, "pyproject.toml"))
		})
	}
}

func TestPlan_DoesNotInstall(t *testing.T) {
	fp := &fakePython{versions: map[string]string{"python3": "Python 3.12.3"}}
	b, out, _ := newTestBootstrapper(t, fp, nil)

	result, err := b.Plan(context.Background())
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.False(t, fp.streamed)
	assert.Equal(t, "python3 -m pip install --user "+testLocator, result.CommandLine())
	assert.Contains(t, out.String(), "Would run: python3 -m pip install --user "+testLocator)
	assert.Equal(t, StateSuccess, b.State())
}

func TestTimeoutBoundsChildProcesses(t *testing.T) {
	var deadlines []bool
	runner := &helpers.MockCommandRunner{
		RunCommandWithOutputFunc: func(ctx context.Context, _ string, _ ...string) (string, string, error) {
			_, ok := ctx.Deadline()
			deadlines = append(deadlines, ok)
			return "Python 3.12.0", "", nil
		},
		RunCommandStreamingFunc: func(ctx context.Context, _, _ io.Writer, _ string, _ ...string) error {
			_, ok := ctx.Deadline()
			deadlines = append(deadlines, ok)
			return nil
		},
	}

	opts := testOptions()
	opts.Timeout = time.Minute
	b := NewWithDeps(opts, ui.NewConsole(io.Discard, io.Discard), nil, afero.NewMemMapFs(), runner)
	_, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, true}, deadlines)

	deadlines = nil
	b = NewWithDeps(testOptions(), ui.NewConsole(io.Discard, io.Discard), nil, afero.NewMemMapFs(), runner)
	_, err = b.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false}, deadlines)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "interpreter_search", StateInterpreterSearch.String())
	assert.Equal(t, "fail", StateFail.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.True(t, StateSuccess.Terminal())
	assert.True(t, StateFail.Terminal())
	assert.False(t, StateInstall.Terminal())
}

func TestBootstrapErrorMessages(t *testing.T) {
	interp := Interpreter{Name: "python3", VersionText: "Python 3.9.1"}

	assert.Equal(t, "no Python 3.11+ interpreter found",
		(&BootstrapError{Kind: KindInterpreterNotFound, MinVersion: "3.11"}).Error())
	assert.Equal(t, "python 3.11 or higher is required (found Python 3.9.1)",
		(&BootstrapError{Kind: KindVersionTooLow, MinVersion: "3.11", Interpreter: interp}).Error())

	cause := &helpers.MockExitError{Code: 2}
	err := &BootstrapError{Kind: KindInstallFailure, Err: cause}
	assert.Equal(t, "installation failed: exit status 2", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, ErrorKind(""), KindOf(errors.New("other")))
}

func TestReportError_PlainError(t *testing.T) {
	var errOut bytes.Buffer
	ReportError(ui.NewConsole(io.Discard, &errOut), errors.New("cannot determine repository root"))
	assert.Equal(t, "❌ cannot determine repository root\n", errOut.String())
}

func TestFallbackCommand(t *testing.T) {
	assert.Equal(t,
		"python -m pip install --user git+https://github.com/yousourceinc/ys-spec-kit.git@main",
		FallbackCommand("python", testLocator))
}
