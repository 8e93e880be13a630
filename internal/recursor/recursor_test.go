package recursor

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tarGz(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(files[name])), Typeflag: tar.TypeReg}))
		_, err := tw.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return gz(t, tarBuf.Bytes())
}

func gz(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// tree returns every file below root as a slash separated relative path.
func tree(t *testing.T, root string) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	sort.Strings(files)
	return files
}

func TestDestinationName(t *testing.T) {
	assert.Equal(t, "extracted_logs_tar_gz", DestinationName("logs.tar.gz"))
	assert.Equal(t, "extracted_bundle", DestinationName("bundle"))
}

func TestWalkExtractsNestedArchives(t *testing.T) {
	root := t.TempDir()

	inner := tarGz(t, map[string][]byte{
		"inner/readme.txt": []byte("inner readme"),
	})
	outer := tarGz(t, map[string][]byte{
		"bundle/inner.tar.gz":    inner,
		"bundle/kubelet.log.gz":  gz(t, []byte("kubelet")),
		"bundle/plain/notes.txt": []byte("notes"),
	})
	require.NoError(t, os.WriteFile(filepath.Join(root, "outer.tar.gz"), outer, 0o644))

	r := New(NewExtractArchive(), Options{RecurseAfterAction: true})
	require.NoError(t, r.Walk(context.Background(), root))

	assert.Equal(t, []string{
		"extracted_outer_tar_gz/bundle/extracted_inner_tar_gz/inner/readme.txt",
		"extracted_outer_tar_gz/bundle/extracted_kubelet_log_gz/kubelet.log",
		"extracted_outer_tar_gz/bundle/plain/notes.txt",
	}, tree(t, root))

	data, err := os.ReadFile(filepath.Join(root, "extracted_outer_tar_gz", "bundle", "extracted_inner_tar_gz", "inner", "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "inner readme", string(data))

	for _, file := range tree(t, root) {
		assert.False(t, strings.HasSuffix(file, ".gz"), "compressed file %s should be gone", file)
	}
}

func TestWalkIsIdempotentOnceExtracted(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.tar.gz"), tarGz(t, map[string][]byte{"x.txt": []byte("x")}), 0o644))

	r := New(NewExtractArchive(), Options{RecurseAfterAction: true})
	require.NoError(t, r.Walk(context.Background(), root))
	first := tree(t, root)

	require.NoError(t, r.Walk(context.Background(), root))
	assert.Equal(t, first, tree(t, root))
}

func TestWalkWithoutRecurseAfterAction(t *testing.T) {
	root := t.TempDir()
	outer := tarGz(t, map[string][]byte{"inner.log.gz": gz(t, []byte("inner"))})
	require.NoError(t, os.WriteFile(filepath.Join(root, "outer.tgz"), outer, 0o644))

	r := New(NewExtractArchive(), Options{})
	require.NoError(t, r.Walk(context.Background(), root))

	assert.Equal(t, []string{"extracted_outer_tgz/inner.log.gz"}, tree(t, root))
}

func TestWalkAppliesPathFilter(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "must-gather", "ns"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "other"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "must-gather", "ns", "version"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "other", "version"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "must-gather", "ns", "pods.yaml"), nil, 0o644))

	var seen []string
	action := ActionFunc(func(path string) (string, error) {
		rel, err := filepath.Rel(root, path)
		require.NoError(t, err)
		seen = append(seen, filepath.ToSlash(rel))
		return "", nil
	})

	r := New(action, Options{PathFilter: regexp.MustCompile(`must-gather/.*version$`)})
	require.NoError(t, r.Walk(context.Background(), root))
	assert.Equal(t, []string{"must-gather/ns/version"}, seen)
}

func TestWalkOnFileIsNoop(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.tar.gz")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	called := false
	r := New(ActionFunc(func(string) (string, error) {
		called = true
		return "", nil
	}), Options{})

	require.NoError(t, r.Walk(context.Background(), file))
	require.NoError(t, r.Walk(context.Background(), filepath.Join(t.TempDir(), "missing")))
	assert.False(t, called)
}

func TestWalkPropagatesActionError(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.tar.gz"), []byte("not gzip"), 0o644))

	r := New(NewExtractArchive(), Options{RecurseAfterAction: true})
	err := r.Walk(context.Background(), root)
	require.Error(t, err)

	var walkErr *Error
	require.True(t, errors.As(err, &walkErr))
	assert.Equal(t, "extract", walkErr.Op)

	// The archive stays put so a later run can retry it.
	assert.FileExists(t, filepath.Join(root, "broken.tar.gz"))
}

func TestWalkStopsOnCancelledContext(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), nil, 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(ActionFunc(func(string) (string, error) { return "", nil }), Options{})
	assert.ErrorIs(t, r.Walk(ctx, root), context.Canceled)
}

func TestExtractArchiveIgnoresUnknownFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	newPath, err := NewExtractArchive().Act(path)
	require.NoError(t, err)
	assert.Empty(t, newPath)
	assert.FileExists(t, path)
}

func TestWalkSeparatesCollidingDestinations(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "node.log.gz"), gz(t, []byte("dotted")), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_log.gz"), gz(t, []byte("underscored")), 0o644))

	r := New(NewExtractArchive(), Options{RecurseAfterAction: true})
	require.NoError(t, r.Walk(context.Background(), root))

	assert.Equal(t, []string{
		"extracted_node_log_gz/node.log",
		"extracted_node_log_gz_1/node_log",
	}, tree(t, root))

	data, err := os.ReadFile(filepath.Join(root, "extracted_node_log_gz_1", "node_log"))
	require.NoError(t, err)
	assert.Equal(t, "underscored", string(data))
}

func TestWalkStopsAtMaxDepth(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "seed"), nil, 0o644))

	// Every file produces a directory holding another file, like an archive
	// that contains itself.
	calls := 0
	action := ActionFunc(func(path string) (string, error) {
		calls++
		next := filepath.Join(filepath.Dir(path), "extracted_seed")
		if err := os.Mkdir(next, 0o755); err != nil {
			return "", err
		}
		return next, os.WriteFile(filepath.Join(next, "seed"), nil, 0o644)
	})

	r := New(action, Options{RecurseAfterAction: true, MaxDepth: 3})
	err := r.Walk(context.Background(), root)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxDepth)

	var walkErr *Error
	require.True(t, errors.As(err, &walkErr))
	assert.Equal(t, "walk", walkErr.Op)
	assert.Equal(t, 4, calls)
}

func TestNewDefaultsMaxDepth(t *testing.T) {
	r := New(ActionFunc(func(string) (string, error) { return "", nil }), Options{})
	assert.Equal(t, DefaultMaxDepth, r.opts.MaxDepth)
}
