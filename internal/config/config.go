package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/yousourceinc/specify-setup/internal/security"
)

// Config represents the application configuration
type Config struct {
	Python  PythonConfig  `mapstructure:"python"`
	Install InstallConfig `mapstructure:"install"`
	Paths   PathsConfig   `mapstructure:"paths"`
	History HistoryConfig `mapstructure:"history"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// PythonConfig controls interpreter discovery
type PythonConfig struct {
	Candidates []string `mapstructure:"candidates"`
	MinMajor   int      `mapstructure:"min_major"`
	MinMinor   int      `mapstructure:"min_minor"`
}

// InstallConfig controls how the Specify CLI is installed
type InstallConfig struct {
	Manifest string        `mapstructure:"manifest"`
	RepoURL  string        `mapstructure:"repo_url"`
	Branch   string        `mapstructure:"branch"`
	Root     string        `mapstructure:"root"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PathsConfig contains path-related configuration
type PathsConfig struct {
	DataDir string `mapstructure:"data_dir"`
	DBFile  string `mapstructure:"db_file"`
	LogFile string `mapstructure:"log_file"`
}

// HistoryConfig controls the attempt history database
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level        string `mapstructure:"level"`
	ConsoleLevel string `mapstructure:"console_level"`
	Color        string `mapstructure:"color"`
}

// Load loads configuration from file and environment
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".config", "specify-setup"))
	}
	viper.AddConfigPath(".")

	setDefaults()

	// SPECIFY_SETUP_INSTALL_BRANCH overrides install.branch, and so on
	viper.SetEnvPrefix("SPECIFY_SETUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Install.Root = expandPath(cfg.Install.Root)
	cfg.Paths.DataDir = expandPath(cfg.Paths.DataDir)
	cfg.Paths.DBFile = expandPath(cfg.Paths.DBFile)
	cfg.Paths.LogFile = expandPath(cfg.Paths.LogFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the built-in configuration without reading files or environment.
func Default() *Config {
	homeDir := resolveHome()
	dataDir := filepath.Join(homeDir, ".local", "share", "specify-setup")

	return &Config{
		Python: PythonConfig{
			Candidates: []string{"python3", "python"},
			MinMajor:   3,
			MinMinor:   11,
		},
		Install: InstallConfig{
			Manifest: "pyproject.toml",
			RepoURL:  "https://github.com/yousourceinc/ys-spec-kit.git",
			Branch:   "main",
		},
		Paths: PathsConfig{
			DataDir: dataDir,
			DBFile:  filepath.Join(dataDir, "history.db"),
			LogFile: filepath.Join(dataDir, "specify-setup.log"),
		},
		History: HistoryConfig{Enabled: true},
		Logging: LoggingConfig{Level: "info", ConsoleLevel: "warn", Color: "auto"},
	}
}

// Validate checks values that end up on a child process command line
func (c *Config) Validate() error {
	if len(c.Python.Candidates) == 0 {
		return fmt.Errorf("python.candidates must list at least one interpreter")
	}
	for _, name := range c.Python.Candidates {
		if err := security.ValidateInterpreterName(name); err != nil {
			return fmt.Errorf("python.candidates: %w", err)
		}
	}

	if c.Python.MinMajor < 0 || c.Python.MinMinor < 0 {
		return fmt.Errorf("python minimum version must not be negative")
	}

	if c.Install.Manifest == "" || filepath.Base(c.Install.Manifest) != c.Install.Manifest {
		return fmt.Errorf("install.manifest must be a plain file name, got %q", c.Install.Manifest)
	}

	if err := security.ValidateRepoURL(c.Install.RepoURL); err != nil {
		return fmt.Errorf("install.repo_url: %w", err)
	}

	if err := security.ValidateBranch(c.Install.Branch); err != nil {
		return fmt.Errorf("install.branch: %w", err)
	}

	if c.Install.Timeout < 0 {
		return fmt.Errorf("install.timeout must not be negative")
	}

	return nil
}

// SourceLocator returns the pip VCS locator for production installs,
// e.g. git+https://github.com/yousourceinc/ys-spec-kit.git@main
func (c *Config) SourceLocator() string {
	return fmt.Sprintf("git+%s@%s", security.PipRepoURL(c.Install.RepoURL), c.Install.Branch)
}

// setDefaults sets default configuration values
func setDefaults() {
	def := Default()

	viper.SetDefault("python.candidates", def.Python.Candidates)
	viper.SetDefault("python.min_major", def.Python.MinMajor)
	viper.SetDefault("python.min_minor", def.Python.MinMinor)

	viper.SetDefault("install.manifest", def.Install.Manifest)
	viper.SetDefault("install.repo_url", def.Install.RepoURL)
	viper.SetDefault("install.branch", def.Install.Branch)
	viper.SetDefault("install.root", "")
	viper.SetDefault("install.timeout", "0s") // 0 = no bound

	viper.SetDefault("paths.data_dir", def.Paths.DataDir)
	viper.SetDefault("paths.db_file", def.Paths.DBFile)
	viper.SetDefault("paths.log_file", def.Paths.LogFile)

	viper.SetDefault("history.enabled", def.History.Enabled)

	viper.SetDefault("logging.level", def.Logging.Level)
	viper.SetDefault("logging.console_level", def.Logging.ConsoleLevel)
	viper.SetDefault("logging.color", def.Logging.Color)
}

func resolveHome() string {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}
	if homeDir == "" {
		homeDir = "."
	}
	return homeDir
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}
