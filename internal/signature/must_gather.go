package signature

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/danielolaszy/triage/internal/recursor"
	"github.com/danielolaszy/triage/pkg/models"
)

// MustGatherName is the registry name of the must-gather handler.
const MustGatherName = "must-gather"

// mustGatherVersion matches the version file at the root of every
// must-gather image directory.
var mustGatherVersion = regexp.MustCompile(`must-gather[^/]*/([^/]+/)?version$`)

// MustGatherHandler locates must-gather collections in a ticket's logs.
type MustGatherHandler struct {
	filter *regexp.Regexp
}

// NewMustGatherHandler returns a MustGatherHandler.
func NewMustGatherHandler() *MustGatherHandler {
	return &MustGatherHandler{filter: mustGatherVersion}
}

// Title implements Handler.
func (h *MustGatherHandler) Title() string {
	return "Locate must-gather collections"
}

// Process implements Handler. Paths are relative to logDir.
func (h *MustGatherHandler) Process(ctx context.Context, ticket *models.Ticket, logDir string) (*Result, error) {
	seen := make(map[string]bool)
	collect := recursor.ActionFunc(func(path string) (string, error) {
		rel, err := filepath.Rel(logDir, filepath.Dir(path))
		if err != nil {
			return "", err
		}
		seen[filepath.ToSlash(rel)] = true
		return "", nil
	})

	walker := recursor.New(collect, recursor.Options{
		PathFilter:        h.filter,
		PathErrorNonFatal: true,
	})
	if err := walker.Walk(ctx, logDir); err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(seen))
	for path := range seen {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	result := &Result{Matched: len(paths) > 0, Paths: paths}
	if result.Matched {
		result.Detail = fmt.Sprintf("found %d must-gather collection(s)", len(paths))
	}
	return result, nil
}
