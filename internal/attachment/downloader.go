// Package attachment downloads a ticket's attachments into its cache entry
// and unpacks any archives among them.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/danielolaszy/triage/internal/filesystem"
	"github.com/danielolaszy/triage/internal/ledger"
	"github.com/danielolaszy/triage/internal/logging"
	"github.com/danielolaszy/triage/internal/recursor"
	"github.com/danielolaszy/triage/pkg/models"
)

// Stage names the part of the download that failed.
type Stage string

const (
	StageDownload   Stage = "download"
	StageExtraction Stage = "extraction"
	StageCache      Stage = "cache"
)

// Error is returned when a ticket's attachments could not be staged.
type Error struct {
	Key   string
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrShortDownload is wrapped when fewer bytes arrive than the tracker
// announced for an attachment.
var ErrShortDownload = errors.New("attachment size mismatch")

// Source streams attachment content from the tracker.
type Source interface {
	DownloadAttachment(ctx context.Context, attachment models.Attachment) (io.ReadCloser, error)
}

// Cache is the subset of the directory cache the downloader needs.
type Cache interface {
	Exists(key string) bool
	Claim(key string) (bool, error)
	Discard(key string) error
	Commit(ticket *models.Ticket) error
	Path(key string) string
	Reserved(key, name string) bool
}

// Extractor unpacks everything below a directory.
type Extractor interface {
	Walk(ctx context.Context, path string) error
}

// Recorder keeps a history of download attempts.
type Recorder interface {
	RecordDownload(ctx context.Context, entry ledger.Download) error
}

// Options configure a Downloader. The zero value is usable.
type Options struct {
	// RequestTimeout bounds each attachment download. Zero means no bound
	// beyond the caller's context.
	RequestTimeout time.Duration

	// ReclaimIncomplete discards ticket directories left without a
	// completion marker and downloads them again. When false such
	// directories are skipped, which is the safe choice when several
	// processes share one cache.
	ReclaimIncomplete bool

	// Extractor defaults to a recursor that extracts until no archives
	// remain.
	Extractor Extractor

	// Recorder is optional.
	Recorder Recorder
}

// Downloader stages ticket attachments on disk.
type Downloader struct {
	source Source
	cache  Cache
	state  *models.RunState
	opts   Options
}

// NewDownloader creates a Downloader.
func NewDownloader(source Source, cache Cache, state *models.RunState, opts Options) *Downloader {
	if opts.Extractor == nil {
		opts.Extractor = recursor.New(recursor.NewExtractArchive(), recursor.Options{RecurseAfterAction: true})
	}
	if state == nil {
		state = models.NewRunState()
	}
	return &Downloader{source: source, cache: cache, state: state, opts: opts}
}

// Download fetches and extracts the attachments of issue unless the cache
// already holds them. At most one download per ticket key happens: the
// ticket directory is claimed with an exclusive create before any network
// call. The fields of ticket are committed with the entry; a nil ticket
// commits only the key.
func (d *Downloader) Download(ctx context.Context, issue *models.Issue, ticket *models.Ticket) error {
	if issue == nil {
		return &Error{Stage: StageDownload, Err: errors.New("nil issue")}
	}
	key := issue.Key
	if ticket == nil {
		ticket = &models.Ticket{Key: key}
	}

	if d.cache.Exists(key) {
		d.state.TicketsCached.Add(1)
		logging.Debug("attachments already cached", "ticket", key)
		return nil
	}

	claimed, err := d.claim(key)
	if err != nil {
		return &Error{Key: key, Stage: StageCache, Err: err}
	}
	if !claimed {
		return nil
	}

	entry := ledger.Download{TicketKey: key, StartedAt: time.Now()}
	dir := d.cache.Path(key)

	logging.Info("downloading attachments", "ticket", key, "count", len(issue.Attachments))
	count, size, err := d.fetchAll(ctx, issue, dir)
	entry.Attachments, entry.Bytes = count, size
	if err != nil {
		return d.fail(ctx, entry, StageDownload, err)
	}
	downloaded := time.Now()
	logging.Info("finished downloading attachments",
		"ticket", key,
		"attachments", count,
		"bytes", size,
		"duration", downloaded.Sub(entry.StartedAt).Round(time.Millisecond))

	if count == 0 {
		d.state.TicketsWithoutLogs.Add(1)
	}

	if err := d.opts.Extractor.Walk(ctx, dir); err != nil {
		return d.fail(ctx, entry, StageExtraction, err)
	}
	logging.Info("finished extracting attachments",
		"ticket", key,
		"duration", time.Since(downloaded).Round(time.Millisecond),
		"total_duration", time.Since(entry.StartedAt).Round(time.Millisecond))

	if err := d.cache.Commit(ticket); err != nil {
		return d.fail(ctx, entry, StageCache, err)
	}
	d.state.TicketsDownloaded.Add(1)

	entry.Status = ledger.StatusComplete
	if count == 0 {
		entry.Status = ledger.StatusNoAttachments
	}
	entry.FinishedAt = time.Now()
	d.record(ctx, entry)
	return nil
}

// claim takes ownership of the ticket directory. It reports false when the
// ticket must be skipped.
func (d *Downloader) claim(key string) (bool, error) {
	claimed, err := d.cache.Claim(key)
	if err != nil || claimed {
		return claimed, err
	}

	if !d.opts.ReclaimIncomplete {
		logging.Info("skipping download, directory exists without completion marker",
			"ticket", key,
			"path", d.cache.Path(key))
		return false, nil
	}

	logging.Warn("discarding incomplete download from an earlier run",
		"ticket", key,
		"path", d.cache.Path(key))
	if err := d.cache.Discard(key); err != nil {
		return false, err
	}
	claimed, err = d.cache.Claim(key)
	if err == nil && !claimed {
		logging.Info("ticket claimed by another worker, skipping", "ticket", key)
	}
	return claimed, err
}

func (d *Downloader) fetchAll(ctx context.Context, issue *models.Issue, dir string) (int, int64, error) {
	var total int64
	used := make(map[string]bool, len(issue.Attachments))

	for i, att := range issue.Attachments {
		name, err := fileName(att, used, func(name string) bool {
			return d.cache.Reserved(issue.Key, name)
		})
		if err != nil {
			return i, total, err
		}
		n, err := d.fetch(ctx, att, filepath.Join(dir, name))
		total += n
		if err != nil {
			return i, total, fmt.Errorf("attachment %s (%s): %w", att.Filename, att.ID, err)
		}
		logging.Debug("downloaded attachment",
			"ticket", issue.Key,
			"file", name,
			"bytes", n)
	}
	return len(issue.Attachments), total, nil
}

func (d *Downloader) fetch(ctx context.Context, att models.Attachment, path string) (int64, error) {
	if d.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.RequestTimeout)
		defer cancel()
	}

	body, err := d.source.DownloadAttachment(ctx, att)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := filesystem.WriteStream(path, body)
	if err != nil {
		return n, err
	}
	if att.Size > 0 && n != att.Size {
		return n, fmt.Errorf("%w: got %d bytes, expected %d", ErrShortDownload, n, att.Size)
	}
	return n, nil
}

// fileName returns the on-disk name for an attachment. Names are reduced to
// their base component and made unique within the ticket directory. Names
// taken or reserved by the cache get the attachment ID as a prefix.
func fileName(att models.Attachment, used map[string]bool, reserved func(string) bool) (string, error) {
	name := filepath.Base(filepath.Clean("/" + att.Filename))
	if name == "/" || name == "." || name == "" {
		return "", fmt.Errorf("attachment %s has no usable file name %q", att.ID, att.Filename)
	}
	candidate := name
	for i := 0; used[candidate] || reserved(candidate); i++ {
		if i == 0 {
			candidate = att.ID + "_" + name
		} else {
			candidate = fmt.Sprintf("%s_%d_%s", att.ID, i, name)
		}
	}
	used[candidate] = true
	return candidate, nil
}

func (d *Downloader) fail(ctx context.Context, entry ledger.Download, stage Stage, err error) error {
	entry.Status = ledger.StatusFailed
	entry.Stage = string(stage)
	entry.LastError = err.Error()
	entry.FinishedAt = time.Now()
	d.record(ctx, entry)

	logging.Error("unable to stage attachments",
		"ticket", entry.TicketKey,
		"stage", stage,
		"error", err)
	return &Error{Key: entry.TicketKey, Stage: stage, Err: err}
}

func (d *Downloader) record(ctx context.Context, entry ledger.Download) {
	if d.opts.Recorder == nil {
		return
	}
	// The ledger must still be written when the run itself was cancelled.
	if err := d.opts.Recorder.RecordDownload(context.WithoutCancel(ctx), entry); err != nil {
		logging.Warn("failed to record download in ledger",
			"ticket", entry.TicketKey,
			"error", err)
	}
}
