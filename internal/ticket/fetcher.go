package ticket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielolaszy/triage/internal/logging"
	"github.com/danielolaszy/triage/pkg/models"
)

const (
	// DefaultSearchRetries is the number of search attempts per page.
	DefaultSearchRetries = 3
	// DefaultParseFailureThreshold is the number of parse failures per page
	// that are tolerated before the page fails.
	DefaultParseFailureThreshold = 3
)

// Tracker retrieves issues from the issue tracker.
type Tracker interface {
	GetIssue(ctx context.Context, key string) (*models.Issue, error)
	Search(ctx context.Context, jql string, maxResults, startAt int) (*models.SearchResult, error)
}

// TicketParser turns an issue into a ticket.
type TicketParser interface {
	Parse(ctx context.Context, issue *models.Issue) (*models.Ticket, error)
}

// FetchError is returned when tickets could not be retrieved.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetcherOptions configure a Fetcher.
type FetcherOptions struct {
	// Component identifies triage tickets. Defaults to DefaultComponent.
	Component string
	// SearchRetries is the number of attempts for each search call.
	SearchRetries int
	// ParseFailureThreshold is the number of parse failures tolerated per
	// page. One more is fatal, so zero tolerates none.
	ParseFailureThreshold int
	// RequestTimeout bounds each tracker call. Zero disables the bound.
	RequestTimeout time.Duration
	// RetryDelay is the pause between failed search attempts.
	RetryDelay time.Duration
}

// Fetcher retrieves triage tickets by key or by query.
type Fetcher struct {
	tracker Tracker
	parser  TicketParser
	opts    FetcherOptions
}

// NewFetcher creates a Fetcher. An empty Component and a SearchRetries below
// one take their defaults.
func NewFetcher(tracker Tracker, parser TicketParser, opts FetcherOptions) *Fetcher {
	if opts.Component == "" {
		opts.Component = DefaultComponent
	}
	if opts.SearchRetries < 1 {
		opts.SearchRetries = DefaultSearchRetries
	}
	return &Fetcher{tracker: tracker, parser: parser, opts: opts}
}

// NormalizeKey trims and upper-cases a ticket key.
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// FetchByKey fetches and parses a single ticket. It returns nil without an
// error when the issue does not exist or is not a triage ticket.
func (f *Fetcher) FetchByKey(ctx context.Context, key string) (*models.Ticket, error) {
	key = NormalizeKey(key)
	if key == "" {
		return nil, &FetchError{Op: "fetch", Err: errors.New("empty ticket key")}
	}

	callCtx, cancel := f.callContext(ctx)
	issue, err := f.tracker.GetIssue(callCtx, key)
	cancel()

	if errors.Is(err, models.ErrIssueNotFound) {
		logging.Warn("issue was not found", "ticket", key)
		return nil, nil
	}
	if err != nil {
		return nil, &FetchError{Op: "fetch " + key, Err: err}
	}
	if issue == nil {
		return nil, nil
	}
	if !f.isTriage(issue) {
		logging.Warn("issue is not a triage ticket, skipping",
			"ticket", key,
			"components", issue.Components)
		return nil, nil
	}

	logging.Info("fetched ticket, parsing", "ticket", key)
	ticket, err := f.parser.Parse(ctx, issue)
	if err != nil {
		return nil, &FetchError{Op: "parse " + key, Err: err}
	}
	return ticket, nil
}

// FetchPage fetches one page of query results and parses the triage tickets
// among them in tracker order.
func (f *Fetcher) FetchPage(ctx context.Context, query Query, pageSize, startAt int) ([]*models.Ticket, error) {
	result, err := f.search(ctx, query.Build(), pageSize, startAt)
	if err != nil {
		return nil, err
	}

	var tickets []*models.Ticket
	failures := 0
	for i := range result.Issues {
		issue := &result.Issues[i]
		if !f.isTriage(issue) {
			logging.Debug("skipping non-triage issue", "ticket", issue.Key)
			continue
		}

		ticket, err := f.parser.Parse(ctx, issue)
		if err != nil {
			failures++
			logging.Error("failed to parse ticket",
				"ticket", issue.Key,
				"failures", failures,
				"error", err)
			if failures > f.opts.ParseFailureThreshold {
				return nil, &FetchError{
					Op:  "parse",
					Err: fmt.Errorf("parse failures exceeded threshold of %d: %w", f.opts.ParseFailureThreshold, err),
				}
			}
			continue
		}
		tickets = append(tickets, ticket)
	}
	return tickets, nil
}

// Count returns the number of issues matching query.
func (f *Fetcher) Count(ctx context.Context, query Query) (int, error) {
	result, err := f.search(ctx, query.Build(), 1, 0)
	if err != nil {
		return 0, err
	}
	return result.Total, nil
}

func (f *Fetcher) search(ctx context.Context, jql string, maxResults, startAt int) (*models.SearchResult, error) {
	retries := f.opts.SearchRetries
	var lastErr error

	for attempt := 1; attempt <= retries; attempt++ {
		callCtx, cancel := f.callContext(ctx)
		result, err := f.tracker.Search(callCtx, jql, maxResults, startAt)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, &FetchError{Op: "search", Err: ctx.Err()}
		}

		logging.Error("search attempt failed",
			"attempt", fmt.Sprintf("%d/%d", attempt, retries),
			"query", jql,
			"max_results", maxResults,
			"start_at", startAt,
			"error", err)

		if attempt < retries && f.opts.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, &FetchError{Op: "search", Err: ctx.Err()}
			case <-time.After(f.opts.RetryDelay):
			}
		}
	}

	return nil, &FetchError{
		Op:  "search",
		Err: fmt.Errorf("failures reached acceptable limit of %d: %w", retries, lastErr),
	}
}

func (f *Fetcher) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, f.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// isTriage reports whether the first component of issue is the triage
// component. Issues without components are not triage tickets.
func (f *Fetcher) isTriage(issue *models.Issue) bool {
	return len(issue.Components) > 0 && issue.Components[0] == f.opts.Component
}
