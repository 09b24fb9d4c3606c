// package services defines interface Storage for persisting clip audio
//
// Local disk, storage bucket HTTP API
package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/compuse/internal/shared"
)

// Storage defines where persisted clip audio lives.
//
// Put returns a durable URI for the stored object; Get and Delete accept only URIs this storage returned.
type Storage interface {
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, mimeType string) (string, error)

	// Get returns the bytes and MIME type behind uri.
	// Missing objects fail with [shared.ErrObjectNotFound].
	Get(ctx context.Context, uri string) ([]byte, string, error)

	// Delete removes the object behind uri. Deleting a missing object is not an error.
	Delete(ctx context.Context, uri string) error

	// Name returns the storage driver name ("disk", "bucket")
	Name() string
}

// NewStorage builds the storage selected by the config. client is only used by the bucket driver.
func NewStorage(ctx context.Context, cfg shared.StorageConfig, client *http.Client) (Storage, error) {
	switch cfg.Driver {
	case "disk", "":
		return NewDiskStorage(cfg.Dir)
	case "bucket":
		return NewBucketService(ctx, cfg.BucketURL, cfg.Bucket, cfg.APIKey, client)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", shared.ErrInvalidConfig, cfg.Driver)
	}
}

// ClipKey is the object key of a clip's audio.
func ClipKey(draftID, clipID, ext string) string {
	return "drafts/" + draftID + "/" + clipID + ext
}
