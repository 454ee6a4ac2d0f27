package cmd

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yousourceinc/specify-setup/internal/helpers"
)

func runDoctor(t *testing.T, py *pythonStub, fs afero.Fs) (string, error) {
	t.Helper()
	cfg := testConfig(t)
	cmd := NewDoctorCmdWithDeps(cfg, discardLogger(), testDeps(cfg, fs, py.runner()))

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	return out.String(), err
}

func TestDoctorCmd_Healthy(t *testing.T) {
	t.Setenv("PATH", "/home/dev/.local/bin:/usr/bin")

	out, err := runDoctor(t, &pythonStub{version: "Python 3.12.1"}, devRepo(t))
	require.NoError(t, err)

	assert.Contains(t, out, "Interpreter: python3 (Python 3.12.1)")
	assert.Contains(t, out, "Version: 3.11 or higher")
	assert.Contains(t, out, "pip: pip 24.0")
	assert.Contains(t, out, "Install mode: development (pyproject.toml found)")
	assert.Contains(t, out, "Command: python3 -m pip install -e /repo")
	assert.Contains(t, out, "/home/dev/.local/bin is on PATH")
	assert.Contains(t, out, "Data directory: /data")
	assert.Contains(t, out, "All critical checks passed!")
}

func TestDoctorCmd_ProductionAndPathWarning(t *testing.T) {
	t.Setenv("PATH", "/usr/bin")

	out, err := runDoctor(t, &pythonStub{version: "Python 3.11.0"}, afero.NewMemMapFs())
	require.NoError(t, err, "warnings do not fail the check")

	assert.Contains(t, out, "Install mode: production (no pyproject.toml)")
	assert.Contains(t, out, "/home/dev/.local/bin is not on PATH")
	assert.Contains(t, out, "Found 1 warning(s):")
}

func TestDoctorCmd_Issues(t *testing.T) {
	t.Setenv("PATH", "/home/dev/.local/bin")

	tests := []struct {
		name   string
		py     *pythonStub
		expect string
	}{
		{
			name:   "no interpreter",
			py:     &pythonStub{},
			expect: "Interpreter: not found (tried python3, python)",
		},
		{
			name:   "old interpreter",
			py:     &pythonStub{version: "Python 3.9.18", checkErr: &helpers.MockExitError{Code: 1}},
			expect: "Version: below 3.11",
		},
		{
			name:   "no pip",
			py:     &pythonStub{version: "Python 3.12.1", pipErr: &helpers.MockExitError{Code: 1}},
			expect: "pip: not available for python3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runDoctor(t, tt.py, afero.NewMemMapFs())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "system check failed with 1 issue(s)")
			assert.Contains(t, out, tt.expect)
		})
	}
}

func TestDoctorCmd_VersionCheckUnavailable(t *testing.T) {
	t.Setenv("PATH", "/home/dev/.local/bin")

	py := &pythonStub{version: "Python 3.12.1", checkErr: assert.AnError}
	out, err := runDoctor(t, py, afero.NewMemMapFs())
	require.NoError(t, err)
	assert.Contains(t, out, "Version: could not be verified")
}

func TestDoctorCmd_ReadOnlyDataDir(t *testing.T) {
	t.Setenv("PATH", "/home/dev/.local/bin")

	out, err := runDoctor(t, &pythonStub{version: "Python 3.12.1"}, afero.NewReadOnlyFs(afero.NewMemMapFs()))
	require.Error(t, err)
	assert.Contains(t, out, "cannot create /data")
}
