package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cogbench/cogbench/internal/errors"
)

// ValidatePath checks an export destination:
// 1. Path traversal (.. sequences)
// 2. Extension (.html or .htm)
// 3. Symlink safety (neither the parent directory nor the file may be a symlink)
//
// Export is only reachable from the local CLI, so any directory is allowed.
// O_NOFOLLOW at open time covers the final component against swaps after this check.
func ValidatePath(path string) error {
	if path == "" {
		return errors.NewInvalidRequest("path is required")
	}

	if containsTraversal(path) {
		return errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	switch strings.ToLower(filepath.Ext(cleaned)) {
	case ".html", ".htm":
	default:
		return errors.NewInvalidRequest("path must have .html extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	if info, err := os.Lstat(filepath.Dir(absPath)); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	if info, err := os.Lstat(absPath); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return errors.NewInvalidRequest("path must not be a symlink")
		}
		if info.IsDir() {
			return errors.NewInvalidRequest("path is a directory")
		}
	}

	return nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename makes s safe as a single file name component.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "unnamed"
	}
	return s
}
