package usecases_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
	"keyauth.backend/internal/domain/entities"
)

// Mock ActivationKeyRepository
type MockActivationKeyRepository struct {
	mock.Mock
}

func (m *MockActivationKeyRepository) Put(ctx context.Context, key *entities.ActivationKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockActivationKeyRepository) Get(ctx context.Context, key string) (*entities.ActivationKey, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ActivationKey), args.Error(1)
}

func (m *MockActivationKeyRepository) Delete(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockActivationKeyRepository) ListAll(ctx context.Context) ([]*entities.ActivationKey, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.ActivationKey), args.Error(1)
}

func (m *MockActivationKeyRepository) Contains(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockActivationKeyRepository) Update(ctx context.Context, key string, fn func(k *entities.ActivationKey) error) (*entities.ActivationKey, error) {
	args := m.Called(ctx, key, fn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ActivationKey), args.Error(1)
}

func (m *MockActivationKeyRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// recordingMetrics captures lifecycle events.
type recordingMetrics struct {
	mu       sync.Mutex
	created  []string
	revoked  int
	deleted  int
	outcomes []string
}

func (r *recordingMetrics) KeyCreated(plan string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, plan)
}

func (r *recordingMetrics) KeyRevoked() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revoked++
}

func (r *recordingMetrics) KeyDeleted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted++
}

func (r *recordingMetrics) Verified(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}
