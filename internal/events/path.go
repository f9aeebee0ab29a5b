package events

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Event log path errors.
var (
	ErrPathTraversal  = errors.New("path must not contain '..' elements")
	ErrPathIsDir      = errors.New("path must name a file, not a directory")
	ErrLogDirReadOnly = errors.New("event log directory is not writable")
)

// ValidatePath checks that path names an event log file. It rejects parent
// directory elements and paths that end in a separator.
func ValidatePath(path string) error {
	if path == "" {
		return errors.New("path is required")
	}
	elems := strings.FieldsFunc(filepath.ToSlash(path), func(r rune) bool { return r == '/' })
	if slices.Contains(elems, "..") {
		return ErrPathTraversal
	}
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator)) {
		return ErrPathIsDir
	}
	if base := filepath.Base(filepath.Clean(path)); base == "." || base == string(filepath.Separator) {
		return ErrPathIsDir
	}
	return nil
}

// prepareDir creates the directory holding the event log and confirms a file
// can be created in it.
func prepareDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrLogDirReadOnly, err)
	}
	f, err := os.CreateTemp(dir, ".ducker-events-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLogDirReadOnly, err)
	}
	name := f.Name()
	closeErr := f.Close()
	if err := errors.Join(closeErr, os.Remove(name)); err != nil {
		return fmt.Errorf("%w: %w", ErrLogDirReadOnly, err)
	}
	return nil
}
