package models

import (
	"time"

	"github.com/Sriram-PR/doc-outline/pkg/toc"
)

// Document is a freshly loaded upstream document with its outline
type Document struct {
	SourceKey   string
	URL         string
	Title       string
	Markdown    string
	ContentHash string // SHA-256 hex of Markdown
	Sections    []toc.Section
	FetchedAt   time.Time
}

// DocumentEntry stores the last refresh result of a source in the database
type DocumentEntry struct {
	SourceKey   string         `json:"source_key"`
	URL         string         `json:"url"`
	Title       string         `json:"title,omitempty"`
	ContentHash string         `json:"content_hash,omitempty"` // Hash of the markdown the outline was built from
	Sections    []toc.Section  `json:"sections,omitempty"`
	Status      DocumentStatus `json:"status"`               // "success" or "failure"
	ErrorType   string         `json:"error_type,omitempty"` // Error category (on failure)
	FetchedAt   time.Time      `json:"fetched_at,omitempty"` // Timestamp of the last successful fetch
	LastAttempt time.Time      `json:"last_attempt"`         // Timestamp of the last refresh attempt
}

// Entry converts a loaded document into a successful database entry
func (d *Document) Entry() DocumentEntry {
	return DocumentEntry{
		SourceKey:   d.SourceKey,
		URL:         d.URL,
		Title:       d.Title,
		ContentHash: d.ContentHash,
		Sections:    d.Sections,
		Status:      DocumentStatusSuccess,
		FetchedAt:   d.FetchedAt,
		LastAttempt: d.FetchedAt,
	}
}

// DocumentSummary is the listing view of a stored outline
type DocumentSummary struct {
	SourceKey    string         `json:"source_key" yaml:"source_key"`
	Title        string         `json:"title,omitempty" yaml:"title,omitempty"`
	URL          string         `json:"url" yaml:"url"`
	Status       DocumentStatus `json:"status" yaml:"status"`
	SectionCount int            `json:"section_count" yaml:"section_count"`
	ErrorType    string         `json:"error_type,omitempty" yaml:"error_type,omitempty"`
	LastAttempt  time.Time      `json:"last_attempt" yaml:"last_attempt"`
}

// Summary returns the listing view of the entry
func (e DocumentEntry) Summary() DocumentSummary {
	return DocumentSummary{
		SourceKey:    e.SourceKey,
		Title:        e.Title,
		URL:          e.URL,
		Status:       e.Status,
		SectionCount: len(e.Sections),
		ErrorType:    e.ErrorType,
		LastAttempt:  e.LastAttempt,
	}
}
