package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yousourceinc/specify-setup/internal/config"
)

// Resolver centralizes the paths specify-setup works with.
type Resolver struct {
	homeDir string
	workDir string
	cfg     *config.Config
}

// NewResolver creates a Resolver for the current user and working directory.
func NewResolver(cfg *config.Config) *Resolver {
	homeDir, _ := os.UserHomeDir()
	workDir, _ := os.Getwd()
	return &Resolver{
		homeDir: homeDir,
		workDir: workDir,
		cfg:     cfg,
	}
}

// NewResolverWith creates a Resolver with explicit home and working directories.
func NewResolverWith(cfg *config.Config, homeDir, workDir string) *Resolver {
	return &Resolver{
		homeDir: homeDir,
		workDir: workDir,
		cfg:     cfg,
	}
}

// HomeDir returns the resolved home directory.
func (r *Resolver) HomeDir() string {
	return r.homeDir
}

// RepoRoot resolves the installation root: an explicit override wins, then
// install.root from the configuration, then the working directory (npm runs
// lifecycle scripts from the package root).
func (r *Resolver) RepoRoot(override string) (string, error) {
	root := override
	if root == "" && r.cfg != nil {
		root = r.cfg.Install.Root
	}
	if root == "" {
		root = r.workDir
	}
	if root == "" {
		return "", fmt.Errorf("cannot determine repository root")
	}

	if !filepath.IsAbs(root) {
		root = filepath.Join(r.workDir, root)
	}

	return filepath.Clean(root), nil
}

// GetUserBinDir returns ~/.local/bin, where pip --user places console scripts.
func (r *Resolver) GetUserBinDir() string {
	return filepath.Join(r.homeDir, ".local", "bin")
}

// InPath reports whether dir is listed in the PATH value pathEnv.
func InPath(dir, pathEnv string) bool {
	want := filepath.Clean(dir)
	for _, entry := range filepath.SplitList(pathEnv) {
		if entry == "" {
			continue
		}
		if filepath.Clean(strings.TrimSpace(entry)) == want {
			return true
		}
	}
	return false
}
