package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("expected config, got nil")
	}

	if cfg.Logging.Level == "" {
		t.Error("expected default log level, got empty")
	}

	if cfg.Paths.DataDir == "" {
		t.Error("expected default data_dir, got empty")
	}

	if len(cfg.Python.Candidates) == 0 {
		t.Error("expected default interpreter candidates, got none")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, []string{"python3", "python"}, cfg.Python.Candidates)
	assert.Equal(t, 3, cfg.Python.MinMajor)
	assert.Equal(t, 11, cfg.Python.MinMinor)
	assert.Equal(t, "pyproject.toml", cfg.Install.Manifest)
	assert.Equal(t, "main", cfg.Install.Branch)
	assert.Equal(t, time.Duration(0), cfg.Install.Timeout)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, filepath.Join(cfg.Paths.DataDir, "history.db"), cfg.Paths.DBFile)
	require.NoError(t, cfg.Validate())
}

func TestSourceLocator(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "git+https://github.com/yousourceinc/ys-spec-kit.git@main", cfg.SourceLocator())

	cfg.Install.Branch = "develop"
	assert.Equal(t, "git+https://github.com/yousourceinc/ys-spec-kit.git@develop", cfg.SourceLocator())

	cfg.Install.RepoURL = "git@github.com:yousourceinc/ys-spec-kit.git"
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "git+ssh://git@github.com/yousourceinc/ys-spec-kit.git@develop", cfg.SourceLocator())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(_ *Config) {}, ""},
		{"no candidates", func(c *Config) { c.Python.Candidates = nil }, "python.candidates"},
		{"bad candidate", func(c *Config) { c.Python.Candidates = []string{"python3; rm"} }, "python.candidates"},
		{"negative minor", func(c *Config) { c.Python.MinMinor = -1 }, "minimum version"},
		{"manifest with dir", func(c *Config) { c.Install.Manifest = "sub/pyproject.toml" }, "install.manifest"},
		{"bad url", func(c *Config) { c.Install.RepoURL = "ftp://example.com/x.git" }, "install.repo_url"},
		{"bad branch", func(c *Config) { c.Install.Branch = "main..dev" }, "install.branch"},
		{"negative timeout", func(c *Config) { c.Install.Timeout = -time.Second }, "install.timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandPath(t *testing.T) {
	homeDir, _ := os.UserHomeDir()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty path",
			input: "",
			want:  "",
		},
		{
			name:  "absolute path",
			input: "/usr/local/bin",
			want:  "/usr/local/bin",
		},
		{
			name:  "home expansion",
			input: "~/test",
			want:  filepath.Join(homeDir, "test"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := expandPath(tt.input)
			if got != tt.want {
				t.Errorf("expandPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExpandPathEnv(t *testing.T) {
	t.Setenv("SPECIFY_TEST_DIR", "/opt/specify")
	assert.Equal(t, "/opt/specify/history.db", expandPath("$SPECIFY_TEST_DIR/history.db"))
}
