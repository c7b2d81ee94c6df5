// Package storage keeps task attachments outside the database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/spf13/afero"
	"github.com/yukikurage/taskboard/internal/config"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("attachment not found")

// Store persists attachment blobs by key.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// AttachmentKey returns the key of one upload of a task attachment. Each
// upload gets its own uploadID, so a replacement never lands on the key the
// task row still points at.
func AttachmentKey(taskID uint64, uploadID, filename string) string {
	return fmt.Sprintf("uploads/task/attachment/%d/%s/%s", taskID, uploadID, SanitizeFilename(filename))
}

// ThumbKey returns the key of the thumbnail stored next to key.
func ThumbKey(key string) string {
	return path.Join(path.Dir(key), "thumb_"+path.Base(key))
}

// SanitizeFilename strips directories and characters that do not belong in
// an object key.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "attachment"
	}
	return name
}

// FromConfig opens the store selected by cfg.StorageType.
func FromConfig(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageType {
	case "s3":
		return NewS3Store(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	case "local":
		fs := afero.NewOsFs()
		if err := fs.MkdirAll(cfg.StorageRoot, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage root: %w", err)
		}
		return NewFSStore(fs, cfg.StorageRoot), nil
	}
	return nil, fmt.Errorf("unsupported storage type %q", cfg.StorageType)
}
