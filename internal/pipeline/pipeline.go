// Package pipeline assembles the ticket ingestion pipeline from
// configuration and drives it for the command line.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielolaszy/triage/internal/attachment"
	"github.com/danielolaszy/triage/internal/cache"
	"github.com/danielolaszy/triage/internal/config"
	"github.com/danielolaszy/triage/internal/jira"
	"github.com/danielolaszy/triage/internal/ledger"
	"github.com/danielolaszy/triage/internal/logging"
	"github.com/danielolaszy/triage/internal/ticket"
	"github.com/danielolaszy/triage/pkg/models"
)

// DefaultPageSize is the number of issues requested per search page.
const DefaultPageSize = 50

// Tracker is the remote issue tracker the pipeline reads from.
type Tracker interface {
	ticket.Tracker
	attachment.Source
}

// Summary reports what one run did.
type Summary struct {
	Tickets            int           `json:"tickets" yaml:"tickets"`
	TicketsDownloaded  int64         `json:"tickets_downloaded" yaml:"tickets_downloaded"`
	TicketsCached      int64         `json:"tickets_cached" yaml:"tickets_cached"`
	TicketsWithoutLogs int64         `json:"tickets_without_logs" yaml:"tickets_without_logs"`
	Duration           time.Duration `json:"duration" yaml:"duration"`
}

// Pipeline fetches tickets, stages their attachments and keeps their
// metadata in the directory cache.
type Pipeline struct {
	config  *config.Config
	state   *models.RunState
	cache   *cache.DirectoryCache
	ledger  *ledger.Ledger
	fetcher *ticket.Fetcher
	started time.Time
	tickets int
}

// New builds a pipeline talking to the JIRA instance in cfg.
func New(cfg *config.Config) (*Pipeline, error) {
	if err := config.ValidateJiraConfig(cfg); err != nil {
		return nil, err
	}
	client, err := jira.NewClient(cfg.Jira)
	if err != nil {
		return nil, err
	}
	return NewWithTracker(cfg, client)
}

// NewWithTracker builds a pipeline on top of tracker.
func NewWithTracker(cfg *config.Config, tracker Tracker) (*Pipeline, error) {
	dirCache, err := cache.NewDirectoryCache(cfg.Triage.DataDir)
	if err != nil {
		return nil, err
	}
	l, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		return nil, err
	}

	state := models.NewRunState()
	downloader := attachment.NewDownloader(tracker, dirCache, state, attachment.Options{
		RequestTimeout:    cfg.Jira.RequestTimeout,
		ReclaimIncomplete: cfg.Triage.ReclaimIncomplete,
		Recorder:          l,
	})
	fetcher := ticket.NewFetcher(tracker, ticket.NewParser(downloader), ticket.FetcherOptions{
		Component:             cfg.Triage.Component,
		SearchRetries:         cfg.Fetch.SearchRetries,
		ParseFailureThreshold: cfg.Fetch.ParseFailureThreshold,
		RequestTimeout:        cfg.Jira.RequestTimeout,
		RetryDelay:            cfg.Fetch.RetryDelay,
	})

	logging.Debug("pipeline ready",
		"data_dir", cfg.Triage.DataDir,
		"project", cfg.Triage.Project,
		"component", cfg.Triage.Component)

	return &Pipeline{
		config:  cfg,
		state:   state,
		cache:   dirCache,
		ledger:  l,
		fetcher: fetcher,
		started: time.Now(),
	}, nil
}

// Close releases the ledger.
func (p *Pipeline) Close() error {
	return p.ledger.Close()
}

// Query returns an empty query on the configured project and component.
func (p *Pipeline) Query() ticket.Query {
	return ticket.NewQuery(ticket.BasePredicate(p.config.Triage.Project, p.config.Triage.Component))
}

// FetchKeys fetches the given tickets one after another. Missing and
// non-triage tickets are skipped; any other failure stops the run.
func (p *Pipeline) FetchKeys(ctx context.Context, keys []string) ([]*models.Ticket, error) {
	var tickets []*models.Ticket
	for _, key := range keys {
		t, err := p.fetcher.FetchByKey(ctx, key)
		if err != nil {
			return tickets, err
		}
		if t == nil {
			continue
		}
		if err := p.persist(t); err != nil {
			return tickets, err
		}
		tickets = append(tickets, t)
	}
	return tickets, nil
}

// Search fetches every page of query. A limit above zero stops after that
// many issues have been requested.
func (p *Pipeline) Search(ctx context.Context, query ticket.Query, pageSize, limit int) ([]*models.Ticket, error) {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}

	total, err := p.fetcher.Count(ctx, query)
	if err != nil {
		return nil, err
	}
	if limit > 0 && limit < total {
		total = limit
	}
	logging.Info("searching tickets", "query", query.Build(), "total", total, "page_size", pageSize)

	var tickets []*models.Ticket
	for start := 0; start < total; start += pageSize {
		size := min(pageSize, total-start)
		page, err := p.fetcher.FetchPage(ctx, query, size, start)
		if err != nil {
			return tickets, err
		}
		for _, t := range page {
			if err := p.persist(t); err != nil {
				return tickets, err
			}
		}
		tickets = append(tickets, page...)
		logging.Info("fetched page",
			"start_at", start,
			"returned", len(page),
			"total", total)
	}
	return tickets, nil
}

// persist refreshes the ticket's metadata. New entries already carry it from
// their commit; cached ones pick up description edits made since. A ticket
// whose directory was skipped by another worker has no complete entry yet
// and is not an error.
func (p *Pipeline) persist(t *models.Ticket) error {
	p.tickets++
	err := p.cache.SaveMetadata(t)
	if errors.Is(err, cache.ErrNotCached) {
		logging.Warn("ticket has no complete cache entry, metadata not saved", "ticket", t.Key)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

// Summary returns the counters of this run.
func (p *Pipeline) Summary() Summary {
	return Summary{
		Tickets:            p.tickets,
		TicketsDownloaded:  p.state.TicketsDownloaded.Load(),
		TicketsCached:      p.state.TicketsCached.Load(),
		TicketsWithoutLogs: p.state.TicketsWithoutLogs.Load(),
		Duration:           time.Since(p.started).Round(time.Millisecond),
	}
}

// LogSummary logs the counters of this run.
func (p *Pipeline) LogSummary() {
	s := p.Summary()
	logging.Info("run finished",
		"tickets", s.Tickets,
		"tickets_downloaded", s.TicketsDownloaded,
		"tickets_cached", s.TicketsCached,
		"tickets_without_logs", s.TicketsWithoutLogs,
		"duration", s.Duration)
}
