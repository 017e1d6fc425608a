package repositories

import (
	"context"

	"keyauth.backend/internal/domain/entities"
)

// ActivationKeyRepository is the key store. It is the sole owner of
// activation state; every record it returns is a private copy.
type ActivationKeyRepository interface {
	// Put inserts a new record. Returns errors.ErrAlreadyExists if the key is taken.
	Put(ctx context.Context, key *entities.ActivationKey) error
	// Get returns errors.ErrNotFound if the key is absent.
	Get(ctx context.Context, key string) (*entities.ActivationKey, error)
	// Delete reports whether a record was removed.
	Delete(ctx context.Context, key string) (bool, error)
	ListAll(ctx context.Context) ([]*entities.ActivationKey, error)
	Contains(ctx context.Context, key string) (bool, error)
	// Update applies fn to a copy of the record and commits it only when fn
	// returns nil. Load, fn and commit are serialized per key. An error from fn
	// is returned unchanged.
	Update(ctx context.Context, key string, fn func(k *entities.ActivationKey) error) (*entities.ActivationKey, error)
	Count(ctx context.Context) (int64, error)
}
