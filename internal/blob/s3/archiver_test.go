package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadbot/internal/domain"
	"github.com/alanyoungcy/spreadbot/internal/store/memory"
)

type captureWriter struct {
	paths        []string
	contentTypes []string
	bodies       [][]byte
}

func (w *captureWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.paths = append(w.paths, path)
	w.contentTypes = append(w.contentTypes, contentType)
	w.bodies = append(w.bodies, body)
	return nil
}

func TestArchiver_ClosedSignals(t *testing.T) {
	ctx := context.Background()
	signals := memory.NewSignalStore()

	old := domain.Signal{
		ID:            "old",
		Symbol:        "TURBO",
		Direction:     domain.DirectionLong,
		SpreadPercent: 5,
		ExchangePrice: 1,
		CreatedAt:     time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		IsActive:      true,
	}
	require.NoError(t, signals.Insert(ctx, old))
	_, err := signals.Close(ctx, "old", 1.0, 4.0, domain.OutcomeWin)
	require.NoError(t, err)

	stillOpen := old
	stillOpen.ID = "open"
	require.NoError(t, signals.Insert(ctx, stillOpen))

	writer := &captureWriter{}
	history := memory.NewPriceHistoryStore()
	a := NewArchiver(writer, signals, history)

	cutoff := time.Now().UTC().Add(time.Hour)
	n, err := a.ArchiveClosedSignals(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.Len(t, writer.paths, 1)
	assert.Equal(t, "archive/signals/"+cutoff.Format("2006-01")+".jsonl", writer.paths[0])
	assert.Equal(t, "application/x-ndjson", writer.contentTypes[0])

	lines := bytes.Split(bytes.TrimSpace(writer.bodies[0]), []byte("\n"))
	require.Len(t, lines, 1)
	var got domain.Signal
	require.NoError(t, json.Unmarshal(lines[0], &got))
	assert.Equal(t, "old", got.ID)
	assert.False(t, got.IsActive)
}

func TestArchiver_ClosedSignals_NothingToExport(t *testing.T) {
	writer := &captureWriter{}
	a := NewArchiver(writer, memory.NewSignalStore(), memory.NewPriceHistoryStore())

	n, err := a.ArchiveClosedSignals(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.paths)
}

func TestArchiver_PriceHistory(t *testing.T) {
	ctx := context.Background()
	history := memory.NewPriceHistoryStore()

	oldTS := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, history.Insert(ctx, domain.PricePoint{
		Symbol: "TURBO", Chain: "bsc", CexPrice: 1, DexPrice: 1.05,
		SpreadPercent: 5, Timestamp: oldTS,
	}))
	require.NoError(t, history.Insert(ctx, domain.PricePoint{
		Symbol: "MEW", Chain: "solana", CexPrice: 2, DexPrice: 2.1,
		SpreadPercent: 5, Timestamp: time.Now().UTC(),
	}))

	writer := &captureWriter{}
	a := NewArchiver(writer, memory.NewSignalStore(), history)

	n, err := a.ArchivePriceHistory(ctx, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.Len(t, writer.bodies, 1)
	var got domain.PricePoint
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(writer.bodies[0]), &got))
	assert.Equal(t, "TURBO", got.Symbol)
}
