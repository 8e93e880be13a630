package extraction

import (
	"path/filepath"
	"strings"

	"github.com/danielolaszy/triage/internal/filesystem"
)

// SingleFileStrategy decompresses one compressed file, gated on a single
// file-name suffix. The decompressed file keeps the original name minus the
// suffix, so "kubelet.log.gz" becomes "kubelet.log" and "bundle.tar.gz"
// handled here would become "bundle.tar" for the next pass.
type SingleFileStrategy struct {
	name   string
	suffix string
	codec  decoder
}

// NewGzipStrategy handles ".gz" files.
func NewGzipStrategy() *SingleFileStrategy {
	return &SingleFileStrategy{name: "gzip", suffix: ".gz", codec: gunzip}
}

// NewZstdStrategy handles ".zst" files.
func NewZstdStrategy() *SingleFileStrategy {
	return &SingleFileStrategy{name: "zstd", suffix: ".zst", codec: unzstd}
}

// NewLZ4Strategy handles ".lz4" files.
func NewLZ4Strategy() *SingleFileStrategy {
	return &SingleFileStrategy{name: "lz4", suffix: ".lz4", codec: unlz4}
}

// NewXZStrategy handles ".xz" files.
func NewXZStrategy() *SingleFileStrategy {
	return &SingleFileStrategy{name: "xz", suffix: ".xz", codec: unxz}
}

// Name implements Strategy.
func (s *SingleFileStrategy) Name() string {
	return s.name
}

// CanHandle implements Strategy.
func (s *SingleFileStrategy) CanHandle(path string) (bool, error) {
	base, err := checkPath(s.name, path)
	if err != nil {
		return false, err
	}
	return strings.HasSuffix(base, s.suffix) && len(base) > len(s.suffix), nil
}

// Extract implements Strategy.
func (s *SingleFileStrategy) Extract(path, destDir string) (string, error) {
	ok, err := s.CanHandle(path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &Error{Strategy: s.name, Path: path, Err: ErrUnsupported}
	}

	staging, err := stage(s.name, path, destDir)
	if err != nil {
		return "", err
	}
	if err := s.decompress(path, filepath.Join(staging, s.outputName(path))); err != nil {
		discard(staging)
		return "", &Error{Strategy: s.name, Path: path, Err: err}
	}
	return commit(s.name, path, staging, destDir)
}

func (s *SingleFileStrategy) outputName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(s.suffix)]
}

func (s *SingleFileStrategy) decompress(path, target string) error {
	in, err := filesystem.OpenFile(path)
	if err != nil {
		return err
	}
	defer in.Close()

	r, err := s.codec(in)
	if err != nil {
		return err
	}
	defer r.Close()

	return writeEntry(target, r, 0o644)
}
