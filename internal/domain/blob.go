package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves objects from blob storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver exports aged records to blob storage. Deleting the exported rows
// from the primary store is a separate, explicit step taken after the
// archive is verified.
type Archiver interface {
	// ArchiveClosedSignals exports signals closed strictly before the
	// cutoff and returns how many were exported.
	ArchiveClosedSignals(ctx context.Context, before time.Time) (int64, error)
	// ArchivePriceHistory exports price observations recorded strictly
	// before the cutoff and returns how many were exported.
	ArchivePriceHistory(ctx context.Context, before time.Time) (int64, error)
}
