package extraction

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/danielolaszy/triage/internal/filesystem"
	"github.com/danielolaszy/triage/internal/logging"
)

// ErrUnsafePath is wrapped when an archive entry would be written outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

type archiveFormat struct {
	suffix string
	zip    bool
	codec  decoder // nil for an uncompressed tar
}

var archiveFormats = []archiveFormat{
	{suffix: ".zip", zip: true},
	{suffix: ".tar.gz", codec: gunzip},
	{suffix: ".tgz", codec: gunzip},
	{suffix: ".tar.bz2", codec: bunzip2},
	{suffix: ".tbz2", codec: bunzip2},
	{suffix: ".tar.zst", codec: unzstd},
	{suffix: ".tzst", codec: unzstd},
	{suffix: ".tar.lz4", codec: unlz4},
	{suffix: ".tar.xz", codec: unxz},
	{suffix: ".txz", codec: unxz},
	{suffix: ".tar"},
}

// ArchiveStrategy unpacks multi-file archives: zip, plain tar and tar
// compressed with gzip, bzip2, zstd, lz4 or xz.
type ArchiveStrategy struct{}

// NewArchiveStrategy returns the broad multi-format strategy.
func NewArchiveStrategy() *ArchiveStrategy {
	return &ArchiveStrategy{}
}

// Name implements Strategy.
func (s *ArchiveStrategy) Name() string {
	return "archive"
}

// CanHandle implements Strategy.
func (s *ArchiveStrategy) CanHandle(path string) (bool, error) {
	_, ok, err := s.format(path)
	return ok, err
}

func (s *ArchiveStrategy) format(path string) (archiveFormat, bool, error) {
	base, err := checkPath(s.Name(), path)
	if err != nil {
		return archiveFormat{}, false, err
	}
	for _, f := range archiveFormats {
		if strings.HasSuffix(base, f.suffix) {
			return f, true, nil
		}
	}
	return archiveFormat{}, false, nil
}

// Extract implements Strategy.
func (s *ArchiveStrategy) Extract(path, destDir string) (string, error) {
	format, ok, err := s.format(path)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &Error{Strategy: s.Name(), Path: path, Err: ErrUnsupported}
	}

	staging, err := stage(s.Name(), path, destDir)
	if err != nil {
		return "", err
	}

	if format.zip {
		err = unpackZip(path, staging)
	} else {
		err = unpackTarFile(path, staging, format.codec)
	}
	if err != nil {
		discard(staging)
		return "", &Error{Strategy: s.Name(), Path: path, Err: err}
	}

	logging.Debug("unpacked archive",
		"archive", path,
		"destination", destDir,
		"format", format.suffix)

	return commit(s.Name(), path, staging, destDir)
}

func unpackTarFile(path, root string, codec decoder) error {
	f, err := filesystem.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if codec != nil {
		dr, err := codec(f)
		if err != nil {
			return err
		}
		defer dr.Close()
		r = dr
	}
	return unpackTar(r, root)
}

func unpackTar(r io.Reader, root string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if errors.Is(err, tar.ErrInsecurePath) {
			return fmt.Errorf("%w: %q", ErrUnsafePath, hdr.Name)
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}

		target, err := entryPath(root, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := filesystem.Mkdir(target); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			logging.Debug("skipping tar entry",
				"name", hdr.Name,
				"type", string(hdr.Typeflag))
		}
	}
}

func unpackZip(path, root string) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("zip: %w", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		target, err := entryPath(root, zf.Name)
		if err != nil {
			return err
		}

		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := filesystem.Mkdir(target); err != nil {
				return err
			}
		case mode.IsRegular():
			rc, err := zf.Open()
			if err != nil {
				return fmt.Errorf("zip entry %s: %w", zf.Name, err)
			}
			err = writeEntry(target, rc, mode)
			rc.Close()
			if err != nil {
				return err
			}
		default:
			logging.Debug("skipping zip entry",
				"name", zf.Name,
				"mode", mode.String())
		}
	}
	return nil
}

// entryPath resolves an archive entry name below root, rejecting names that
// are absolute or climb out with "..".
func entryPath(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(name, "./")))
	if clean == "." {
		return root, nil
	}
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(root, clean), nil
}

func writeEntry(target string, r io.Reader, mode fs.FileMode) error {
	if err := filesystem.Mkdir(filepath.Dir(target)); err != nil {
		return err
	}
	out, err := filesystem.CreateFile(target, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	return nil
}
