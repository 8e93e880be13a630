package recursor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danielolaszy/triage/internal/extraction"
	"github.com/danielolaszy/triage/internal/filesystem"
	"github.com/danielolaszy/triage/internal/logging"
)

// ExtractArchive is an Action that unpacks archives with the first strategy
// able to handle them and removes the archive afterwards.
type ExtractArchive struct {
	strategies []extraction.Strategy
}

// NewExtractArchive returns an ExtractArchive trying strategies in order.
// Without strategies it uses extraction.DefaultStrategies.
func NewExtractArchive(strategies ...extraction.Strategy) *ExtractArchive {
	if len(strategies) == 0 {
		strategies = extraction.DefaultStrategies()
	}
	return &ExtractArchive{strategies: strategies}
}

// DestinationName derives the extraction directory name for an archive. The
// "extracted_" prefix and the removal of "." guarantee the result differs
// from the archive name and from any name the archive could be re-derived to.
func DestinationName(archiveName string) string {
	return "extracted_" + strings.ReplaceAll(archiveName, ".", "_")
}

// freeDestination returns the first unused directory for archiveName in dir.
// Names such as "node.log.gz" and "node_log.gz" derive the same directory, so
// later ones get a numeric suffix.
func freeDestination(dir, archiveName string) (string, error) {
	base := filepath.Join(dir, DestinationName(archiveName))
	candidate := base
	for i := 1; ; i++ {
		taken, err := filesystem.Exists(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, i)
	}
}

// Act implements Action.
func (a *ExtractArchive) Act(path string) (string, error) {
	dir, name := filepath.Dir(path), filepath.Base(path)
	if dir == "" || name == "" || name == "." || name == string(filepath.Separator) {
		return "", &Error{Op: "extract", Path: path, Err: errors.New("cannot derive directory and name")}
	}

	for _, strategy := range a.strategies {
		ok, err := strategy.CanHandle(path)
		if err != nil {
			return "", &Error{Op: "extract", Path: path, Err: err}
		}
		if !ok {
			continue
		}

		destination, err := freeDestination(dir, name)
		if err != nil {
			return "", &Error{Op: "extract", Path: path, Err: err}
		}
		newPath, err := strategy.Extract(path, destination)
		if err != nil {
			return "", &Error{Op: "extract", Path: path, Err: err}
		}
		logging.Debug("extracted archive",
			"archive", path,
			"strategy", strategy.Name(),
			"destination", newPath)

		if err := filesystem.Remove(path); err != nil {
			logging.Warn("failed to clean up extracted archive",
				"archive", path,
				"error", err)
		}
		return newPath, nil
	}
	return "", nil
}
