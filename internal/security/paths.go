// Package security guards the file names muograph writes to.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrEscapesDir is returned when a path resolves outside its directory.
var ErrEscapesDir = errors.New("path escapes directory")

// canonical resolves symlinks in the longest existing prefix of an absolute
// path and joins the rest back on.
func canonical(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	for parent := filepath.Dir(abs); parent != filepath.Dir(parent); parent = filepath.Dir(parent) {
		if resolved, err := filepath.EvalSymlinks(parent); err == nil {
			rel, _ := filepath.Rel(parent, abs)
			return filepath.Join(resolved, rel)
		}
	}
	return abs
}

// WithinDir reports an error unless path stays inside dir once both are
// made absolute and their symlinks resolved. dir need not exist yet.
func WithinDir(path, dir string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	rel, err := filepath.Rel(canonical(absDir), canonical(absPath))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrEscapesDir, path, dir)
	}
	return nil
}

// SanitizeName turns an arbitrary label into a file name prefix: runs of
// characters other than ASCII letters, digits, dot, underscore and dash
// become one underscore, and the result is capped at 128 bytes.
func SanitizeName(s string) string {
	const maxLen = 128
	var b strings.Builder
	under := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			under = false
		case !under:
			b.WriteByte('_')
			under = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}
