package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndQuery(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, l.RecordDownload(ctx, Download{
		TicketKey:  "AITRIAGE-1",
		Status:     StatusFailed,
		Stage:      "download",
		LastError:  "connection reset",
		StartedAt:  start,
		FinishedAt: start.Add(time.Second),
	}))
	require.NoError(t, l.RecordDownload(ctx, Download{
		TicketKey:   "AITRIAGE-1",
		Status:      StatusComplete,
		Attachments: 2,
		Bytes:       1024,
		StartedAt:   start.Add(time.Minute),
		FinishedAt:  start.Add(2 * time.Minute),
	}))
	require.NoError(t, l.RecordDownload(ctx, Download{
		TicketKey:  "AITRIAGE-2",
		Status:     StatusNoAttachments,
		StartedAt:  start.Add(time.Hour),
		FinishedAt: start.Add(time.Hour),
	}))

	entries, err := l.ForTicket(ctx, "AITRIAGE-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, StatusFailed, entries[0].Status)
	assert.Equal(t, "connection reset", entries[0].LastError)
	assert.Equal(t, StatusComplete, entries[1].Status)
	assert.Equal(t, int64(1024), entries[1].Bytes)
	assert.Equal(t, time.Minute, entries[1].Duration())

	recent, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "AITRIAGE-2", recent[0].TicketKey)
	assert.Equal(t, "AITRIAGE-1", recent[1].TicketKey)
}

func TestForTicketWithoutEntries(t *testing.T) {
	l := openTestLedger(t)

	entries, err := l.ForTicket(context.Background(), "AITRIAGE-404")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
