package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned when a stored file does not exist.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidName is returned for names that do not reduce to a plain file name.
	ErrInvalidName = errors.New("invalid file name")
)

// FileInfo describes a stored file.
type FileInfo struct {
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Path        string    `json:"-"`
	ModTime     time.Time `json:"modified_at"`
}

// Storage is the interface for file persistence backends.
type Storage interface {
	// Save stores a file under a name derived from filename that does not
	// collide with an existing file, and returns its metadata.
	Save(ctx context.Context, filename string, contentType string, reader io.Reader) (*FileInfo, error)
	// Reserve claims a non-colliding name for a file written by someone else
	// and returns its metadata. The file exists and is empty on return.
	Reserve(ctx context.Context, filename string) (*FileInfo, error)
	// Get retrieves a file by name.
	Get(ctx context.Context, name string) (*FileInfo, io.ReadCloser, error)
	// Delete removes a file by name.
	Delete(ctx context.Context, name string) error
	// List returns all stored files, newest first.
	List(ctx context.Context) ([]FileInfo, error)
	// Sweep removes files older than maxAge and reports how many were removed.
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
	// Dir returns the directory served for this store.
	Dir() string
}
