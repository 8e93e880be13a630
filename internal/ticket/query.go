// Package ticket fetches triage tickets from the tracker, builds the search
// queries for them and parses their descriptions into structured fields.
package ticket

import (
	"fmt"
	"strings"
)

const (
	// DefaultProject is the tracker project holding triage tickets.
	DefaultProject = "AITRIAGE"
	// DefaultComponent is the component that marks a ticket as a triage ticket.
	DefaultComponent = "Cloud-Triage"

	orderBy = "ORDER BY created DESC"
)

// BasePredicate returns the fixed project/component constraint every query
// starts with.
func BasePredicate(project, component string) string {
	return fmt.Sprintf(`project = "%s"  AND component = "%s"`, project, component)
}

// Query is an immutable, incrementally built search filter. Every builder
// method returns a new Query and leaves the receiver untouched.
type Query struct {
	base    string
	clauses []string
}

// Create returns a query on the default triage project and component.
func Create() Query {
	return NewQuery(BasePredicate(DefaultProject, DefaultComponent))
}

// NewQuery returns a query with the given base predicate and no clauses.
func NewQuery(base string) Query {
	return Query{base: base}
}

func (q Query) with(clause string) Query {
	clauses := make([]string, len(q.clauses), len(q.clauses)+1)
	copy(clauses, q.clauses)
	return Query{base: q.base, clauses: append(clauses, clause)}
}

// DaysQuery limits results to tickets created in the last days days.
func (q Query) DaysQuery(days int) Query {
	return q.with(fmt.Sprintf("created >= -%dd", days))
}

// TextLikeQuery adds a free-text search.
func (q Query) TextLikeQuery(text string) Query {
	return q.with(fmt.Sprintf(`text ~ "%s"`, quote(text)))
}

// OpenShiftVersion matches tickets whose description names the version.
func (q Query) OpenShiftVersion(version string) Query {
	return q.TextLikeQuery("OpenShift version: " + version)
}

// JQLClause appends a raw clause verbatim.
func (q Query) JQLClause(clause string) Query {
	return q.with(clause)
}

// Build renders the query text:
//
//	(<base> AND <clause 1> AND <clause 2> ...) ORDER BY created DESC
func (q Query) Build() string {
	parts := append([]string{q.base}, q.clauses...)
	return "(" + strings.Join(parts, " AND ") + ") " + orderBy
}

// String implements fmt.Stringer.
func (q Query) String() string {
	return q.Build()
}

func quote(text string) string {
	return strings.ReplaceAll(text, `"`, `\"`)
}
