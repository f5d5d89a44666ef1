package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/spreadbot/internal/domain"
)

// SignalArchiveStore provides the read access the archiver needs from the
// signal store.
type SignalArchiveStore interface {
	ListClosedBefore(ctx context.Context, before time.Time) ([]domain.Signal, error)
}

// HistoryArchiveStore provides the read access the archiver needs from the
// price history store.
type HistoryArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.PricePoint, error)
}

// Archiver implements domain.Archiver by querying the stores for aged rows,
// serializing them to JSONL, and uploading the result. It never deletes from
// the primary store; retention is a separate step run after the export.
type Archiver struct {
	writer  domain.BlobWriter
	signals SignalArchiveStore
	history HistoryArchiveStore
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, signals SignalArchiveStore, history HistoryArchiveStore) *Archiver {
	return &Archiver{
		writer:  writer,
		signals: signals,
		history: history,
	}
}

var _ domain.Archiver = (*Archiver)(nil)

// ArchiveClosedSignals exports signals closed before the cutoff to
// archive/signals/YYYY-MM.jsonl and returns the exported count.
func (a *Archiver) ArchiveClosedSignals(ctx context.Context, before time.Time) (int64, error) {
	signals, err := a.signals.ListClosedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals query: %w", err)
	}
	if len(signals) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(signals)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals marshal: %w", err)
	}

	path := archivePath("signals", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive signals upload: %w", err)
	}

	return int64(len(signals)), nil
}

// ArchivePriceHistory exports price observations recorded before the cutoff
// to archive/price_history/YYYY-MM.jsonl and returns the exported count.
func (a *Archiver) ArchivePriceHistory(ctx context.Context, before time.Time) (int64, error) {
	points, err := a.history.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive price history query: %w", err)
	}
	if len(points) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(points)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive price history marshal: %w", err)
	}

	path := archivePath("price_history", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive price history upload: %w", err)
	}

	return int64(len(points)), nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff.
//
//	archive/signals/2025-06.jsonl
//	archive/price_history/2025-06.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
