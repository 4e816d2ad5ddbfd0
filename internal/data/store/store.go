// Package store is the document store the pipeline reads notes from and
// writes summaries to. Documents are addressed by slash-separated ids
// relative to the vault root.
package store

import (
	"context"
	"errors"
	"io/fs"
	"time"
)

// Entry describes one document or folder
type Entry struct {
	ID      string
	Name    string
	ModTime time.Time
	Size    int64
	IsDir   bool
}

// Store is a key-value document store keyed by path
type Store interface {
	// Read returns a document's text. HTML documents are returned as markdown.
	Read(ctx context.Context, id string) (string, error)

	// Write creates or atomically replaces a document, creating parent folders
	Write(ctx context.Context, id, content string) error

	// Exists reports whether a document or folder exists
	Exists(ctx context.Context, id string) (bool, error)

	// Stat returns metadata for a document or folder
	Stat(ctx context.Context, id string) (Entry, error)

	// ListChildren returns the direct children of a folder sorted by name
	ListChildren(ctx context.Context, folder string) ([]Entry, error)

	// CreateFolder creates a folder and its parents
	CreateFolder(ctx context.Context, id string) error
}

// IsNotFound reports whether err means the document does not exist
func IsNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
