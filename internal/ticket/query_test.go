package ticket

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryBuild(t *testing.T) {
	testCases := []struct {
		name     string
		query    Query
		expected string
	}{
		{
			name:     "Default query",
			query:    Create(),
			expected: `(project = "AITRIAGE"  AND component = "Cloud-Triage") ORDER BY created DESC`,
		},
		{
			name:     "Days filter",
			query:    Create().DaysQuery(7),
			expected: `(project = "AITRIAGE"  AND component = "Cloud-Triage" AND created >= -7d) ORDER BY created DESC`,
		},
		{
			name:     "Text search",
			query:    Create().TextLikeQuery("Some text search"),
			expected: `(project = "AITRIAGE"  AND component = "Cloud-Triage" AND text ~ "Some text search") ORDER BY created DESC`,
		},
		{
			name:     "Raw clauses keep insertion order",
			query:    Create().JQLClause("jql_clause_1").JQLClause("jql_clause_2"),
			expected: `(project = "AITRIAGE"  AND component = "Cloud-Triage" AND jql_clause_1 AND jql_clause_2) ORDER BY created DESC`,
		},
		{
			name:     "OpenShift version",
			query:    Create().OpenShiftVersion("4.13.11"),
			expected: `(project = "AITRIAGE"  AND component = "Cloud-Triage" AND text ~ "OpenShift version: 4.13.11") ORDER BY created DESC`,
		},
		{
			name:     "Custom base predicate",
			query:    NewQuery(BasePredicate("MGMT", "Triage")).DaysQuery(1),
			expected: `(project = "MGMT"  AND component = "Triage" AND created >= -1d) ORDER BY created DESC`,
		},
		{
			name:     "Quotes in text are escaped",
			query:    Create().TextLikeQuery(`say "hi"`),
			expected: `(project = "AITRIAGE"  AND component = "Cloud-Triage" AND text ~ "say \"hi\"") ORDER BY created DESC`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.query.Build())
			assert.Equal(t, tc.expected, tc.query.String())
		})
	}
}

func TestQueryIsImmutable(t *testing.T) {
	base := Create().DaysQuery(7)
	withText := base.TextLikeQuery("a")
	withClause := base.JQLClause("b")

	assert.Equal(t, `(project = "AITRIAGE"  AND component = "Cloud-Triage" AND created >= -7d) ORDER BY created DESC`, base.Build())
	assert.Equal(t, `(project = "AITRIAGE"  AND component = "Cloud-Triage" AND created >= -7d AND text ~ "a") ORDER BY created DESC`, withText.Build())
	assert.Equal(t, `(project = "AITRIAGE"  AND component = "Cloud-Triage" AND created >= -7d AND b) ORDER BY created DESC`, withClause.Build())
}
