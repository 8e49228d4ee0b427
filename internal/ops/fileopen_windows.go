//go:build windows

package ops

import "os"

// openFileNoFollow opens a file for writing.
// On Windows, O_NOFOLLOW is not available; ValidatePath rejects symlinks beforehand.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}
