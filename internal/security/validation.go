package security

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ValidInterpreterNameRegex allows bare executable names such as python3.12 or py
	ValidInterpreterNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._+-]+$`)

	// scpLikeURLRegex matches git@host:owner/repo.git style remotes
	scpLikeURLRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+@[a-zA-Z0-9.-]+:[a-zA-Z0-9._/-]+$`)

	// DangerousPatterns must never reach an argv built from configuration
	DangerousPatterns = []string{
		"`",
		"$",
		"|",
		"&",
		";",
		"\n",
		"\r",
		"\x00",
		" ",
		"\"",
		"'",
	}
)

// ValidateRepoURL validates the remote repository URL used for production installs.
// Accepted forms: https://host/path, ssh://host/path and git@host:path.
func ValidateRepoURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("repository URL cannot be empty")
	}

	if len(raw) > 2048 {
		return fmt.Errorf("repository URL too long (max 2048 characters)")
	}

	for _, pattern := range DangerousPatterns {
		if strings.Contains(raw, pattern) {
			return fmt.Errorf("repository URL contains dangerous pattern: %q", pattern)
		}
	}

	if strings.Contains(raw, "@") && scpLikeURLRegex.MatchString(raw) {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid repository URL: %w", err)
	}

	switch u.Scheme {
	case "https", "ssh":
	default:
		return fmt.Errorf("unsupported repository URL scheme %q (want https or ssh)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("repository URL has no host: %s", raw)
	}

	if u.Path == "" || u.Path == "/" {
		return fmt.Errorf("repository URL has no path: %s", raw)
	}

	if u.Fragment != "" || u.RawQuery != "" {
		return fmt.Errorf("repository URL must not carry a query or fragment: %s", raw)
	}

	return nil
}

// PipRepoURL returns raw in a form pip accepts after "git+". pip only
// understands URLs with a scheme, so git@host:owner/repo becomes
// ssh://git@host/owner/repo. Other URLs are returned unchanged.
func PipRepoURL(raw string) string {
	if !scpLikeURLRegex.MatchString(raw) {
		return raw
	}
	userHost, path, _ := strings.Cut(raw, ":")
	return "ssh://" + userHost + "/" + strings.TrimPrefix(path, "/")
}

// ValidateBranch validates a git branch name against the subset of
// git-check-ref-format rules that matter for a pip VCS locator.
func ValidateBranch(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch cannot be empty")
	}

	if len(branch) > 255 {
		return fmt.Errorf("branch name too long (max 255 characters)")
	}

	if strings.HasPrefix(branch, "-") || strings.HasPrefix(branch, "/") || strings.HasSuffix(branch, "/") {
		return fmt.Errorf("invalid branch name: %s", branch)
	}

	if strings.HasSuffix(branch, ".lock") || strings.HasSuffix(branch, ".") {
		return fmt.Errorf("invalid branch name: %s", branch)
	}

	for _, pattern := range []string{"..", "@{", "//", "~", "^", ":", "?", "*", "[", "\\", "#", "@"} {
		if strings.Contains(branch, pattern) {
			return fmt.Errorf("branch name contains invalid sequence %q", pattern)
		}
	}

	for _, pattern := range DangerousPatterns {
		if strings.Contains(branch, pattern) {
			return fmt.Errorf("branch name contains dangerous pattern: %q", pattern)
		}
	}

	for _, r := range branch {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("branch name contains control character")
		}
	}

	return nil
}

// ValidateInterpreterName validates an interpreter candidate.
// A candidate is either a bare executable name looked up in PATH or an absolute path.
func ValidateInterpreterName(name string) error {
	if name == "" {
		return fmt.Errorf("interpreter name cannot be empty")
	}

	if strings.Contains(name, "\x00") {
		return fmt.Errorf("interpreter name contains null byte")
	}

	if filepath.IsAbs(name) {
		if filepath.Clean(name) != name {
			return fmt.Errorf("interpreter path is not clean: %s", name)
		}
		return nil
	}

	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("interpreter name cannot start with a dash: %s", name)
	}

	if !ValidInterpreterNameRegex.MatchString(name) {
		return fmt.Errorf("invalid interpreter name %q: must be a bare executable name or an absolute path", name)
	}

	return nil
}
