package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/triage/internal/ticket"
)

func TestBuildQuery(t *testing.T) {
	testCases := []struct {
		name     string
		args     []string
		expected string
		wantErr  bool
	}{
		{
			name:     "No filters",
			args:     nil,
			expected: `(project = "AITRIAGE"  AND component = "Cloud-Triage") ORDER BY created DESC`,
		},
		{
			name:     "Days and version",
			args:     []string{"--days", "7", "--version", "4.14.2"},
			expected: `(project = "AITRIAGE"  AND component = "Cloud-Triage" AND created >= -7d AND text ~ "OpenShift version: 4.14.2") ORDER BY created DESC`,
		},
		{
			name:     "Text and repeated clauses",
			args:     []string{"-t", "etcd leader", "--jql", "status = Open", "--jql", "priority = Major"},
			expected: `(project = "AITRIAGE"  AND component = "Cloud-Triage" AND text ~ "etcd leader" AND status = Open AND priority = Major) ORDER BY created DESC`,
		},
		{
			name:    "Negative days",
			args:    []string{"--days", "-1"},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			addQueryFlags(cmd)
			require.NoError(t, cmd.ParseFlags(tc.args))

			query, err := buildQuery(cmd, ticket.Create())
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, query.Build())
		})
	}
}
