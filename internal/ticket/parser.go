package ticket

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/danielolaszy/triage/internal/attachment"
	"github.com/danielolaszy/triage/internal/logging"
	"github.com/danielolaszy/triage/pkg/models"
)

// Phase names the step of parsing that failed.
type Phase string

const (
	PhaseDownload   Phase = "download"
	PhaseExtraction Phase = "extraction"
)

// ParseError is returned when a ticket's attachments could not be staged.
type ParseError struct {
	Key   string
	Phase Phase
	Err   error
}

func (e *ParseError) Error() string {
	verb := "downloading"
	if e.Phase == PhaseExtraction {
		verb = "extracting"
	}
	return fmt.Sprintf("problem while %s attachments for ticket %s: %v", verb, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Downloader stages the attachments of an issue on disk and commits the
// parsed ticket with them.
type Downloader interface {
	Download(ctx context.Context, issue *models.Issue, ticket *models.Ticket) error
}

var (
	versionPattern   = regexp.MustCompile(`(OpenShift version:\*)\s(\S+)$`)
	platformPattern  = regexp.MustCompile(`(Platform type:\*)\s(\S+)$`)
	operatorsPattern = regexp.MustCompile(`(Olm Operators:\*)\s(.+)$`)
	featuresPattern  = regexp.MustCompile(`(Configured features:\*)\s(.+)$`)
)

// Parser turns tracker issues into tickets.
type Parser struct {
	downloader Downloader
}

// NewParser creates a Parser that stages attachments with downloader.
func NewParser(downloader Downloader) *Parser {
	return &Parser{downloader: downloader}
}

// Parse extracts the cluster fields from the issue description and makes
// sure the issue's attachments are present in the cache.
func (p *Parser) Parse(ctx context.Context, issue *models.Issue) (*models.Ticket, error) {
	if issue == nil {
		return nil, errors.New("cannot parse nil issue")
	}

	ticket := &models.Ticket{Key: issue.Key, Description: issue.Description}
	ParseClusterInfoFields(ticket)

	if err := p.downloader.Download(ctx, issue, ticket); err != nil {
		phase := PhaseDownload
		var dlErr *attachment.Error
		if errors.As(err, &dlErr) && dlErr.Stage == attachment.StageExtraction {
			phase = PhaseExtraction
		}
		return nil, &ParseError{Key: issue.Key, Phase: phase, Err: err}
	}

	logging.Debug("parsed ticket",
		"ticket", ticket.Key,
		"version", ticket.Version,
		"platform", ticket.PlatformType)
	return ticket, nil
}

// ParseClusterInfoFields fills the cluster fields of ticket from its
// description. Each field takes its value from the first matching line;
// fields without a match get their empty defaults.
func ParseClusterInfoFields(ticket *models.Ticket) {
	ticket.Version = ""
	ticket.PlatformType = ""
	ticket.Operators = []string{}
	ticket.Features = []string{}

	var haveVersion, havePlatform, haveOperators, haveFeatures bool
	for _, line := range strings.Split(ticket.Description, "\n") {
		line = strings.TrimRight(line, "\r")

		if !haveVersion {
			if m := versionPattern.FindStringSubmatch(line); m != nil {
				ticket.Version, haveVersion = m[2], true
			}
		}
		if !havePlatform {
			if m := platformPattern.FindStringSubmatch(line); m != nil {
				ticket.PlatformType, havePlatform = m[2], true
			}
		}
		if !haveOperators {
			if m := operatorsPattern.FindStringSubmatch(line); m != nil {
				ticket.Operators, haveOperators = splitList(m[2]), true
			}
		}
		if !haveFeatures {
			if m := featuresPattern.FindStringSubmatch(line); m != nil {
				ticket.Features, haveFeatures = splitList(m[2]), true
			}
		}
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
