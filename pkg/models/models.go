// Package models defines data structures shared across the application.
package models

import (
	"errors"
	"sync/atomic"
	"time"
)

// ErrIssueNotFound is returned by tracker clients when the requested issue
// does not exist (HTTP 404).
var ErrIssueNotFound = errors.New("issue not found")

// Attachment is a file attached to a tracker issue, typically a log bundle.
type Attachment struct {
	// ID is the tracker's attachment identifier, used to download the content
	ID string

	// Filename is the name the attachment was uploaded with
	Filename string

	// Size is the content length in bytes as reported by the tracker
	Size int64
}

// Issue is the raw record returned by the remote tracker.
type Issue struct {
	// Key is the tracker-assigned identifier (e.g., "AITRIAGE-1234")
	Key string

	// Components are the component names of the issue, in tracker order
	Components []string

	// Description is the free-text body of the issue, possibly empty
	Description string

	// Created is the creation timestamp of the issue
	Created time.Time

	// Attachments are the files attached to the issue
	Attachments []Attachment
}

// SearchResult is one page of a tracker search.
type SearchResult struct {
	// Issues are the matches of this page in tracker order
	Issues []Issue

	// Total is the number of matches across all pages
	Total int
}

// Ticket is a triage record with the structured fields derived from its
// description.
type Ticket struct {
	// Key is the tracker-assigned identifier
	Key string `json:"key" yaml:"key"`

	// Description is the raw description text; not persisted in the cache
	Description string `json:"-" yaml:"-"`

	// Version is the OpenShift version named in the description
	Version string `json:"openshift_version" yaml:"openshift_version"`

	// PlatformType is the platform named in the description (e.g., "baremetal")
	PlatformType string `json:"platform_type" yaml:"platform_type"`

	// Operators is the ordered list of OLM operators
	Operators []string `json:"olm_operators" yaml:"olm_operators"`

	// Features is the ordered list of configured features
	Features []string `json:"configured_features" yaml:"configured_features"`
}

// RunState carries counters shared by every stage of one pipeline run.
// It is safe for concurrent use.
type RunState struct {
	// TicketsWithoutLogs counts tickets that had no attachments to download
	TicketsWithoutLogs atomic.Int64

	// TicketsDownloaded counts tickets whose attachments were fetched in this run
	TicketsDownloaded atomic.Int64

	// TicketsCached counts tickets skipped because the cache already had them
	TicketsCached atomic.Int64
}

// NewRunState returns a zeroed RunState.
func NewRunState() *RunState {
	return &RunState{}
}
