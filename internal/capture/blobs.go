package capture

import (
	"fmt"
	"sync"

	"github.com/desertthunder/compuse/internal/models"
	"github.com/desertthunder/compuse/internal/shared"
)

type blob struct {
	data     []byte
	mimeType string
}

// MemoryBlobs is an in-process [Blobs] store. URIs it hands out die with the process.
type MemoryBlobs struct {
	mu    sync.RWMutex
	items map[string]blob
}

// NewMemoryBlobs creates an empty store.
func NewMemoryBlobs() *MemoryBlobs {
	return &MemoryBlobs{items: make(map[string]blob)}
}

// Create stores data and returns its transient URI.
func (b *MemoryBlobs) Create(data []byte, mimeType string) string {
	uri := models.TransientScheme + "compuse/" + shared.GenerateID()

	b.mu.Lock()
	b.items[uri] = blob{data: data, mimeType: mimeType}
	b.mu.Unlock()

	return uri
}

// Open returns the bytes and MIME type behind uri.
func (b *MemoryBlobs) Open(uri string) ([]byte, string, error) {
	b.mu.RLock()
	item, ok := b.items[uri]
	b.mu.RUnlock()

	if !ok {
		return nil, "", fmt.Errorf("%w: %s", shared.ErrObjectNotFound, uri)
	}
	return item.data, item.mimeType, nil
}

// Release drops uri. Unknown URIs are ignored.
func (b *MemoryBlobs) Release(uri string) {
	b.mu.Lock()
	delete(b.items, uri)
	b.mu.Unlock()
}

// Len reports how many blobs are held.
func (b *MemoryBlobs) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.items)
}
