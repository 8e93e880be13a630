// Package filesystem is a thin, fail-fast wrapper over the directory and file
// primitives the pipeline needs. Every failure is returned as an *Error that
// names the operation and the path.
package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/natefinch/atomic"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Error describes a failed filesystem operation.
type Error struct {
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNotExist is returned (wrapped in *Error) by AssertExists and Remove when
// the path is missing.
var ErrNotExist = fs.ErrNotExist

// IsDir reports whether path is an existing directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// IsFile reports whether path is an existing regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Exists returns (true, nil) if path exists, (false, nil) if it does not and
// (false, err) when the answer cannot be determined.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, &Error{Op: "stat", Path: path, Err: err}
}

// AssertExists fails when path does not exist.
func AssertExists(path string) error {
	ok, err := Exists(path)
	if err != nil {
		return err
	}
	if !ok {
		return &Error{Op: "assert exists", Path: path, Err: ErrNotExist}
	}
	return nil
}

// ListDir returns the entry names of a directory in lexical order.
func ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &Error{Op: "list", Path: path, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// Mkdir creates path (and any missing parents). An existing directory is not
// an error.
func Mkdir(path string) error {
	if err := os.MkdirAll(path, dirPerm); err != nil {
		return &Error{Op: "mkdir", Path: path, Err: err}
	}
	return nil
}

// MkdirExclusive creates a single directory and reports whether this call
// created it. It returns (false, nil) when the path already exists, which
// makes it usable as a claim on that path.
func MkdirExclusive(path string) (bool, error) {
	err := os.Mkdir(path, dirPerm)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	return false, &Error{Op: "mkdir", Path: path, Err: err}
}

// MkdirTemp creates a new uniquely named directory inside dir.
func MkdirTemp(dir, pattern string) (string, error) {
	path, err := os.MkdirTemp(dir, pattern)
	if err != nil {
		return "", &Error{Op: "mkdir temp", Path: dir, Err: err}
	}
	return path, nil
}

// Remove deletes a single file or empty directory. The path must exist.
func Remove(path string) error {
	if err := AssertExists(path); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return &Error{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// RemoveAll deletes path and everything below it. A missing path is not an
// error.
func RemoveAll(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return &Error{Op: "remove all", Path: path, Err: err}
	}
	return nil
}

// Rename moves oldPath to newPath.
func Rename(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return &Error{Op: "rename", Path: oldPath, Err: err}
	}
	return nil
}

// ReadFile returns the full content of a file.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Op: "read", Path: path, Err: err}
	}
	return data, nil
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	_, err := WriteStream(path, bytesReader(data))
	return err
}

// WriteStream atomically replaces path with everything read from r and
// returns the number of bytes written. Readers see either the old content or
// the complete new content, never a partial file.
func WriteStream(path string, r io.Reader) (int64, error) {
	counter := &countingReader{r: r}
	if err := atomic.WriteFile(path, counter); err != nil {
		return counter.n, &Error{Op: "write", Path: path, Err: err}
	}
	// atomic.WriteFile creates new files with 0600.
	if err := os.Chmod(path, filePerm); err != nil {
		return counter.n, &Error{Op: "chmod", Path: path, Err: err}
	}
	return counter.n, nil
}

// OpenFile opens a file for reading.
func OpenFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &Error{Op: "open", Path: path, Err: err}
	}
	return f, nil
}

// CreateFile creates (or truncates) a file for writing, creating parent
// directories as needed.
func CreateFile(path string, mode fs.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm()|0o600)
	if err != nil {
		return nil, &Error{Op: "create", Path: path, Err: err}
	}
	return f, nil
}

// UserHomeDir returns the current user's home directory.
func UserHomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", &Error{Op: "home dir", Path: "~", Err: err}
	}
	return home, nil
}
