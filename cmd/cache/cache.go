// Package cache provides the commands that inspect the local ticket cache.
package cache

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/triage/internal/ledger"
	"github.com/danielolaszy/triage/internal/output"
)

// download is the printable form of a ledger entry.
type download struct {
	Ticket      string `json:"ticket" yaml:"ticket"`
	Status      string `json:"status" yaml:"status"`
	Stage       string `json:"stage,omitempty" yaml:"stage,omitempty"`
	Attachments int    `json:"attachments" yaml:"attachments"`
	Bytes       int64  `json:"bytes" yaml:"bytes"`
	Error       string `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt   string `json:"started_at" yaml:"started_at"`
	Duration    string `json:"duration" yaml:"duration"`
}

func toDownloads(entries []ledger.Download) []download {
	downloads := make([]download, 0, len(entries))
	for _, e := range entries {
		downloads = append(downloads, download{
			Ticket:      e.TicketKey,
			Status:      e.Status,
			Stage:       e.Stage,
			Attachments: e.Attachments,
			Bytes:       e.Bytes,
			Error:       e.LastError,
			StartedAt:   e.StartedAt.Format(time.RFC3339),
			Duration:    e.Duration().Round(time.Millisecond).String(),
		})
	}
	return downloads
}

func writeDownloads(cmd *cobra.Command, format output.Format, entries []ledger.Download) error {
	downloads := toDownloads(entries)
	if format != output.FormatText {
		return output.Encode(cmd.OutOrStdout(), format, downloads)
	}

	rows := make([][]string, 0, len(downloads))
	for _, d := range downloads {
		rows = append(rows, []string{
			d.Ticket,
			d.Status,
			d.Stage,
			strconv.Itoa(d.Attachments),
			strconv.FormatInt(d.Bytes, 10),
			d.StartedAt,
			d.Duration,
			d.Error,
		})
	}
	header := []string{"TICKET", "STATUS", "STAGE", "ATTACHMENTS", "BYTES", "STARTED", "DURATION", "ERROR"}
	return output.Table(cmd.OutOrStdout(), header, rows)
}
