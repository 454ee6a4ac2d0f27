package fsops

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// Exists checks if a path exists
func Exists(fs afero.Fs, path string) bool {
	_, err := fs.Stat(path)
	return err == nil
}

// IsDir checks if a path is a directory
func IsDir(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsFile checks if a path exists and is not a directory
func IsFile(fs afero.Fs, path string) bool {
	info, err := fs.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// EnsureDir ensures a directory exists with the given permissions
func EnsureDir(fs afero.Fs, path string, perm os.FileMode) error {
	if err := fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}
	return nil
}

// CheckWritable checks if a directory is writable. On the OS filesystem this
// asks the kernel via access(2); other filesystems get a probe file.
func CheckWritable(fs afero.Fs, path string) error {
	if !IsDir(fs, path) {
		return fmt.Errorf("not a directory: %s", path)
	}

	if _, ok := fs.(*afero.OsFs); ok {
		if err := unix.Access(path, unix.W_OK); err != nil {
			return fmt.Errorf("path not writable: %w", err)
		}
		return nil
	}

	testFile := filepath.Join(path, ".write_test")
	f, err := fs.Create(testFile)
	if err != nil {
		return fmt.Errorf("path not writable: %w", err)
	}
	f.Close()
	_ = fs.Remove(testFile)
	return nil
}
