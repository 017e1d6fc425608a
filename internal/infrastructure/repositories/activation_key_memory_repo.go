package repositories

import (
	"context"
	"sort"
	"sync"

	"keyauth.backend/internal/domain/entities"
	domainerrors "keyauth.backend/internal/domain/errors"
)

// MemoryActivationKeyRepository keeps activation keys in process memory.
// Records are copied on the way in and out, so callers never share state with
// the map. Update holds the write lock for the whole read-modify-write.
type MemoryActivationKeyRepository struct {
	mu    sync.RWMutex
	items map[string]*entities.ActivationKey
}

func NewMemoryActivationKeyRepository() *MemoryActivationKeyRepository {
	return &MemoryActivationKeyRepository{items: make(map[string]*entities.ActivationKey)}
}

func (r *MemoryActivationKeyRepository) Put(_ context.Context, key *entities.ActivationKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[key.Key]; ok {
		return domainerrors.ErrAlreadyExists
	}
	r.items[key.Key] = key.Clone()
	return nil
}

func (r *MemoryActivationKeyRepository) Get(_ context.Context, key string) (*entities.ActivationKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[key]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return item.Clone(), nil
}

func (r *MemoryActivationKeyRepository) Delete(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[key]; !ok {
		return false, nil
	}
	delete(r.items, key)
	return true, nil
}

func (r *MemoryActivationKeyRepository) ListAll(_ context.Context) ([]*entities.ActivationKey, error) {
	r.mu.RLock()
	out := make([]*entities.ActivationKey, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item.Clone())
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryActivationKeyRepository) Contains(_ context.Context, key string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.items[key]
	return ok, nil
}

func (r *MemoryActivationKeyRepository) Update(_ context.Context, key string, fn func(k *entities.ActivationKey) error) (*entities.ActivationKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[key]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}

	working := item.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.Key = item.Key
	working.CreatedAt = item.CreatedAt

	r.items[key] = working
	return working.Clone(), nil
}

func (r *MemoryActivationKeyRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.items)), nil
}
