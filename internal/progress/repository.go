package progress

import (
	"context"
	"fmt"
	"sync"
)

// CompletionRepository persists completion maps by key. Load of an unknown
// key returns an empty map and no error; Load of undecodable data returns an
// error wrapping ErrMalformed.
type CompletionRepository interface {
	Load(ctx context.Context, key string) (CompletionMap, error)
	Save(ctx context.Context, key string, m CompletionMap) error
	Delete(ctx context.Context, key string) error
}

// BlobStore is a byte-oriented key/value backend.
// Implemented by storage.Store and storage.RedisStore.
type BlobStore interface {
	GetCompletion(ctx context.Context, key string) (data []byte, ok bool, err error)
	PutCompletion(ctx context.Context, key string, data []byte) error
	DeleteCompletion(ctx context.Context, key string) error
}

// BlobRepository adapts a BlobStore to CompletionRepository using the JSON
// completion encoding.
type BlobRepository struct {
	blobs BlobStore
}

func NewBlobRepository(blobs BlobStore) *BlobRepository {
	return &BlobRepository{blobs: blobs}
}

func (r *BlobRepository) Load(ctx context.Context, key string) (CompletionMap, error) {
	data, ok, err := r.blobs.GetCompletion(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading completion %q: %w", key, err)
	}
	if !ok {
		return make(CompletionMap), nil
	}
	m, err := UnmarshalCompletion(data)
	if err != nil {
		return nil, fmt.Errorf("parsing completion %q: %w: %w", key, ErrMalformed, err)
	}
	return m, nil
}

func (r *BlobRepository) Save(ctx context.Context, key string, m CompletionMap) error {
	data, err := MarshalCompletion(m)
	if err != nil {
		return fmt.Errorf("encoding completion %q: %w", key, err)
	}
	if err := r.blobs.PutCompletion(ctx, key, data); err != nil {
		return fmt.Errorf("writing completion %q: %w", key, err)
	}
	return nil
}

func (r *BlobRepository) Delete(ctx context.Context, key string) error {
	if err := r.blobs.DeleteCompletion(ctx, key); err != nil {
		return fmt.Errorf("deleting completion %q: %w", key, err)
	}
	return nil
}

// MemoryRepository keeps completion maps in process memory. Used by tests
// and by the "memory" storage backend.
type MemoryRepository struct {
	mu   sync.Mutex
	data map[string]CompletionMap
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[string]CompletionMap)}
}

func (r *MemoryRepository) Load(_ context.Context, key string) (CompletionMap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data[key].Clone(), nil
}

func (r *MemoryRepository) Save(_ context.Context, key string, m CompletionMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = m.Clone()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, key)
	return nil
}
