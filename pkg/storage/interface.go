package storage

import (
	"context"
	"time"

	"github.com/Sriram-PR/doc-outline/pkg/models"
)

// DocumentStore persists the latest outline of every configured source
type DocumentStore interface {
	// SaveDocument inserts or replaces the entry for entry.SourceKey
	SaveDocument(entry *models.DocumentEntry) error

	// GetDocument retrieves the stored entry for a source.
	// Returns status (DocumentStatusSuccess, DocumentStatusFailure, DocumentStatusNotFound, DocumentStatusDBError),
	// the entry if found and parsed, and any error
	GetDocument(sourceKey string) (status models.DocumentStatus, entry *models.DocumentEntry, err error)

	// GetContentHash returns the hash of the last successfully outlined content.
	// exists is false when the source has never succeeded
	GetContentHash(sourceKey string) (hash string, exists bool, err error)

	// ListDocuments returns all stored entries ordered by source key
	ListDocuments(ctx context.Context) ([]models.DocumentEntry, error)

	// DeleteDocument removes a source's entry. Deleting a missing key is not an error
	DeleteDocument(sourceKey string) error

	// Count returns the number of stored documents
	Count() int
}

// StoreAdmin handles lifecycle operations
type StoreAdmin interface {
	// RunGC runs periodic garbage collection until ctx is done. Run it in a goroutine
	RunGC(ctx context.Context, interval time.Duration)

	// Close cleanly closes the database
	Close() error
}

// Store combines document access and lifecycle management
type Store interface {
	DocumentStore
	StoreAdmin
}
