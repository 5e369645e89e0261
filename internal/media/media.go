// Package media stores uploaded files under a configured root directory
// and hands back the path relative to that root for persistence.
package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var _ Store = (*DiskStore)(nil)

type Store interface {
	// Save writes data at the given relative path, creating parent
	// directories as needed.
	Save(ctx context.Context, relPath string, data []byte) error

	// Remove deletes the file at the given relative path. Removing a
	// missing file is not an error.
	Remove(ctx context.Context, relPath string) error
}

type DiskStore struct {
	logger *slog.Logger
	root   string
}

func NewDiskStore(root string, logger *slog.Logger) *DiskStore {
	return &DiskStore{
		logger: logger,
		root:   root,
	}
}

// Save implements media.Store.
func (s *DiskStore) Save(ctx context.Context, relPath string, data []byte) error {
	_, span := otel.Tracer("MediaStore").Start(ctx, "Save")
	defer span.End()
	span.SetAttributes(attribute.String("media.path", relPath))

	full := filepath.Join(s.root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Mkdir failed")
		return fmt.Errorf("creating media directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Write failed")
		return fmt.Errorf("writing media file: %w", err)
	}

	s.logger.DebugContext(ctx, "Media file stored", slog.String("path", relPath))
	span.SetStatus(codes.Ok, "File stored")
	return nil
}

// Remove implements media.Store.
func (s *DiskStore) Remove(ctx context.Context, relPath string) error {
	_, span := otel.Tracer("MediaStore").Start(ctx, "Remove")
	defer span.End()
	span.SetAttributes(attribute.String("media.path", relPath))

	full := filepath.Join(s.root, filepath.FromSlash(relPath))
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Remove failed")
		return fmt.Errorf("removing media file: %w", err)
	}

	span.SetStatus(codes.Ok, "File removed")
	return nil
}
