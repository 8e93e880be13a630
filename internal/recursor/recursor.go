// Package recursor walks a directory tree and runs an action on the files it
// finds. With RecurseAfterAction set, any directory produced by the action is
// walked in turn, which is how nested archives get unwrapped.
package recursor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/danielolaszy/triage/internal/filesystem"
	"github.com/danielolaszy/triage/internal/logging"
)

// Action is run on every qualifying file. It returns the path of anything new
// it produced, or "" when it did nothing.
type Action interface {
	Act(path string) (string, error)
}

// ActionFunc adapts a function to Action.
type ActionFunc func(path string) (string, error)

// Act implements Action.
func (f ActionFunc) Act(path string) (string, error) {
	return f(path)
}

// DefaultMaxDepth is the nesting limit used when Options.MaxDepth is zero.
const DefaultMaxDepth = 16

// ErrMaxDepth is wrapped when actions keep producing new paths beyond the
// nesting limit, as a self-reproducing archive would.
var ErrMaxDepth = errors.New("maximum nesting depth exceeded")

// Options control a Recursor.
type Options struct {
	// RecurseAfterAction walks the path returned by the action.
	RecurseAfterAction bool

	// MaxDepth bounds how many times a path produced by the action may
	// itself produce another one. Zero means DefaultMaxDepth.
	MaxDepth int

	// PathFilter limits the action to files whose full path matches. A nil
	// filter matches every file.
	PathFilter *regexp.Regexp

	// PathErrorNonFatal logs directory listing failures instead of
	// returning them.
	PathErrorNonFatal bool
}

// Error reports a failure during a walk.
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

// Recursor walks directory trees applying an Action.
type Recursor struct {
	action Action
	opts   Options
}

// New creates a Recursor for action.
func New(action Action, opts Options) *Recursor {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Recursor{action: action, opts: opts}
}

// Walk visits every file below path. A path that is not a directory is
// ignored.
func (r *Recursor) Walk(ctx context.Context, path string) error {
	return r.walk(ctx, path, 0)
}

func (r *Recursor) walk(ctx context.Context, path string, depth int) error {
	if !filesystem.IsDir(path) {
		return nil
	}

	entries, err := filesystem.ListDir(path)
	if err != nil {
		if r.opts.PathErrorNonFatal {
			logging.Warn("unable to list directory, skipping",
				"path", path,
				"error", err)
			return nil
		}
		return &Error{Op: "list", Path: path, Err: err}
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		fullPath := filepath.Join(path, entry)
		if err := filesystem.AssertExists(fullPath); err != nil {
			return &Error{Op: "walk", Path: fullPath, Err: err}
		}

		if filesystem.IsDir(fullPath) {
			if err := r.walk(ctx, fullPath, depth); err != nil {
				return err
			}
			continue
		}
		if !filesystem.IsFile(fullPath) {
			continue
		}
		if r.opts.PathFilter != nil && !r.opts.PathFilter.MatchString(fullPath) {
			continue
		}

		newPath, err := r.action.Act(fullPath)
		if err != nil {
			return err
		}
		if newPath != "" && r.opts.RecurseAfterAction {
			if depth >= r.opts.MaxDepth {
				return &Error{Op: "walk", Path: newPath, Err: fmt.Errorf("%w (%d)", ErrMaxDepth, r.opts.MaxDepth)}
			}
			if err := r.walk(ctx, newPath, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}
