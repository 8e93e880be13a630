// Package extraction provides the archive-format handlers used by the
// recursive extraction engine. Handlers are tried in a fixed priority order;
// the first one whose CanHandle reports true performs the extraction.
package extraction

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danielolaszy/triage/internal/filesystem"
	"github.com/danielolaszy/triage/internal/logging"
)

// Strategy tests for and decompresses one or more archive formats.
type Strategy interface {
	// Name identifies the strategy in logs and errors.
	Name() string

	// CanHandle reports whether the strategy supports path. A missing path
	// is an error rather than a plain false.
	CanHandle(path string) (bool, error)

	// Extract decompresses path into destDir and returns the directory that
	// now holds the content. On error destDir is left untouched.
	Extract(path, destDir string) (string, error)
}

// Error is returned by every strategy for a failed check or extraction.
type Error struct {
	Strategy string
	Path     string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s extraction of %s: %v", e.Strategy, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrUnsupported is wrapped by Extract when called with a file the strategy
// cannot handle.
var ErrUnsupported = errors.New("unsupported file")

// ErrDestinationExists is wrapped by Extract when the destination directory
// is already present.
var ErrDestinationExists = errors.New("destination already exists")

// DefaultStrategies returns the strategy set in priority order: the broad
// multi-format archive handler first, then the single-file decompressors.
func DefaultStrategies() []Strategy {
	return []Strategy{
		NewArchiveStrategy(),
		NewGzipStrategy(),
		NewZstdStrategy(),
		NewLZ4Strategy(),
		NewXZStrategy(),
	}
}

// checkPath verifies that path exists and returns its lower-cased base name
// for suffix matching.
func checkPath(strategy, path string) (string, error) {
	if err := filesystem.AssertExists(path); err != nil {
		return "", &Error{Strategy: strategy, Path: path, Err: err}
	}
	return strings.ToLower(filepath.Base(path)), nil
}

// stage creates a private working directory next to destDir. Content is
// written there first and moved into place by commit, so a failed
// extraction never leaves a half-populated destination behind.
func stage(strategy, path, destDir string) (string, error) {
	if ok, err := filesystem.Exists(destDir); err != nil {
		return "", &Error{Strategy: strategy, Path: path, Err: err}
	} else if ok {
		return "", &Error{Strategy: strategy, Path: path, Err: fmt.Errorf("%w: %s", ErrDestinationExists, destDir)}
	}
	staging, err := filesystem.MkdirTemp(filepath.Dir(destDir), ".extracting-")
	if err != nil {
		return "", &Error{Strategy: strategy, Path: path, Err: err}
	}
	return staging, nil
}

func commit(strategy, path, staging, destDir string) (string, error) {
	if err := filesystem.Rename(staging, destDir); err != nil {
		discard(staging)
		return "", &Error{Strategy: strategy, Path: path, Err: err}
	}
	return destDir, nil
}

func discard(staging string) {
	if err := filesystem.RemoveAll(staging); err != nil {
		logging.Warn("failed to remove staging directory",
			"path", staging,
			"error", err)
	}
}
