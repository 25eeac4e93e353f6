// Package storage keeps uploaded media blobs on the local disk or in an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mikepea/yatube/pkg/yatube/config"
)

// ErrNotFound is returned when a named blob does not exist
var ErrNotFound = errors.New("blob not found")

// ErrInvalidName is returned for names that would escape the storage root
var ErrInvalidName = errors.New("invalid blob name")

// Storage is a flat namespace of blobs addressed by slash-separated names
type Storage interface {
	Save(ctx context.Context, name string, r io.Reader, contentType string) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
	// URL returns where clients can fetch name; it may be relative to the API host
	URL(name string) string
}

// New builds the storage selected by cfg.Backend
func New(cfg config.MediaConfig) (Storage, error) {
	switch cfg.Backend {
	case "", "disk":
		return NewDiskStorage(cfg.Root, cfg.URL), nil
	case "s3":
		return NewS3Storage(cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported media backend %q", cfg.Backend)
	}
}

func cleanName(name string) (string, error) {
	name = strings.TrimPrefix(name, "/")
	if name == "" {
		return "", ErrInvalidName
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return "", ErrInvalidName
		}
	}
	return name, nil
}
