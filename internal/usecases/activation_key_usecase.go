package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"keyauth.backend/internal/domain/entities"
	domainerrors "keyauth.backend/internal/domain/errors"
	"keyauth.backend/internal/domain/repositories"
	"keyauth.backend/pkg/logger"
)

// KeyMetrics receives lifecycle events. The Prometheus recorder implements it.
type KeyMetrics interface {
	KeyCreated(plan string)
	KeyRevoked()
	KeyDeleted()
	Verified(outcome string)
}

// Verify outcomes reported to KeyMetrics.
const (
	outcomeSuccess        = "success"
	outcomeBound          = "bound"
	outcomeInvalid        = "invalid_argument"
	outcomeUnknownKey     = "unknown_key"
	outcomeRevoked        = "revoked"
	outcomeDeviceMismatch = "device_mismatch"
	outcomeExpired        = "expired"
	outcomeError          = "error"
)

type noopKeyMetrics struct{}

func (noopKeyMetrics) KeyCreated(string) {}
func (noopKeyMetrics) KeyRevoked()       {}
func (noopKeyMetrics) KeyDeleted()       {}
func (noopKeyMetrics) Verified(string)   {}

// ActivationKeyUsecase implements the key lifecycle: create, list, revoke,
// delete and the verify state machine that binds a key to its first device.
type ActivationKeyUsecase struct {
	keyRepo repositories.ActivationKeyRepository
	metrics KeyMetrics
	now     func() time.Time
}

func NewActivationKeyUsecase(keyRepo repositories.ActivationKeyRepository) *ActivationKeyUsecase {
	return &ActivationKeyUsecase{
		keyRepo: keyRepo,
		metrics: noopKeyMetrics{},
		now:     time.Now,
	}
}

// SetMetrics replaces the metrics sink; nil restores the no-op sink.
func (u *ActivationKeyUsecase) SetMetrics(m KeyMetrics) {
	if m == nil {
		m = noopKeyMetrics{}
	}
	u.metrics = m
}

// SetClock overrides the time source.
func (u *ActivationKeyUsecase) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	u.now = now
}

func (u *ActivationKeyUsecase) timestamp() time.Time {
	return u.now().UTC().Truncate(time.Millisecond)
}

func (u *ActivationKeyUsecase) CreateKey(ctx context.Context, input *entities.CreateKeyInput) (*entities.CreateKeyResponse, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainerrors.BadRequest("name is required")
	}
	plan, ok := entities.ParsePlanType(input.Type)
	if !ok {
		return nil, domainerrors.BadRequest("type must be one of: day, week, month, lifetime")
	}

	for {
		key, err := generateUniqueKey(ctx, u.keyRepo)
		if err != nil {
			logger.Error(ctx, "Failed to generate activation key", zap.Error(err))
			return nil, domainerrors.InternalError(err)
		}

		record := &entities.ActivationKey{
			Key:       key,
			Name:      name,
			PlanType:  plan,
			Active:    true,
			CreatedAt: u.timestamp(),
		}
		err = u.keyRepo.Put(ctx, record)
		if errors.Is(err, domainerrors.ErrAlreadyExists) {
			// lost a race with a concurrent create
			continue
		}
		if err != nil {
			logger.Error(ctx, "Failed to store activation key", zap.Error(err))
			return nil, domainerrors.InternalError(err)
		}

		u.metrics.KeyCreated(string(plan))
		logger.Info(ctx, "Activation key created", logger.Key(key), zap.String("plan", string(plan)))
		return &entities.CreateKeyResponse{Key: key, Name: name, PlanType: plan}, nil
	}
}

// ListKeys returns every key, newest first, with its derived status.
func (u *ActivationKeyUsecase) ListKeys(ctx context.Context) ([]entities.KeySummary, error) {
	items, err := u.keyRepo.ListAll(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to list activation keys", zap.Error(err))
		return nil, domainerrors.InternalError(err)
	}

	now := u.now()
	out := make([]entities.KeySummary, 0, len(items))
	for _, item := range items {
		out = append(out, item.Summary(now))
	}
	return out, nil
}

func (u *ActivationKeyUsecase) RevokeKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domainerrors.BadRequest("key is required")
	}

	_, err := u.keyRepo.Update(ctx, key, func(k *entities.ActivationKey) error {
		k.Active = false
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return domainerrors.NotFound("key not found")
		}
		logger.Error(ctx, "Failed to revoke activation key", logger.Key(key), zap.Error(err))
		return domainerrors.InternalError(err)
	}

	u.metrics.KeyRevoked()
	logger.Info(ctx, "Activation key revoked", logger.Key(key))
	return nil
}

func (u *ActivationKeyUsecase) DeleteKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return domainerrors.BadRequest("key is required")
	}

	removed, err := u.keyRepo.Delete(ctx, key)
	if err != nil {
		logger.Error(ctx, "Failed to delete activation key", logger.Key(key), zap.Error(err))
		return domainerrors.InternalError(err)
	}
	if !removed {
		return domainerrors.NotFound("key not found")
	}

	u.metrics.KeyDeleted()
	logger.Info(ctx, "Activation key deleted", logger.Key(key))
	return nil
}

// VerifyKey checks a key for a device. The first successful call binds the
// key to the device and starts its expiry clock. Every check and mutation
// runs inside one store update, so a rejected call leaves the record as is.
func (u *ActivationKeyUsecase) VerifyKey(ctx context.Context, input *entities.VerifyInput) (*entities.VerifiedUser, error) {
	key := strings.TrimSpace(input.Key)
	if key == "" || strings.TrimSpace(input.DeviceID) == "" {
		u.metrics.Verified(outcomeInvalid)
		return nil, domainerrors.BadRequest("key and deviceId are required")
	}

	var bound bool
	updated, err := u.keyRepo.Update(ctx, key, func(k *entities.ActivationKey) error {
		bound = false
		now := u.timestamp()

		if !k.Active {
			return domainerrors.Forbidden(domainerrors.CodeKeyRevoked, "key has been revoked")
		}

		if !k.IsActivated() {
			k.Activate(input.DeviceID, input.DeviceName, now)
			bound = true
		} else {
			if !k.BoundTo(input.DeviceID) {
				return domainerrors.Forbidden(domainerrors.CodeDeviceMismatch, "key is already bound to another device").
					WithDetail("deviceName", k.BoundDeviceName())
			}
			if k.IsExpired(now) {
				return domainerrors.Forbidden(domainerrors.CodeKeyExpired, "key has expired")
			}
		}

		k.Uses++
		return nil
	})
	if err != nil {
		return nil, u.verifyFailure(ctx, key, err)
	}

	if bound {
		u.metrics.Verified(outcomeBound)
		logger.Info(ctx, "Activation key bound to device",
			logger.Key(key),
			zap.String("device_name", updated.BoundDeviceName()),
			zap.String("plan", string(updated.PlanType)),
		)
	} else {
		u.metrics.Verified(outcomeSuccess)
	}

	return &entities.VerifiedUser{
		Name:        updated.Name,
		PlanType:    updated.PlanType,
		Uses:        updated.Uses,
		ActivatedAt: updated.ActivatedAt,
		ExpiresAt:   updated.ExpiresAt,
		DeviceName:  updated.BoundDeviceName(),
	}, nil
}

func (u *ActivationKeyUsecase) verifyFailure(ctx context.Context, key string, err error) error {
	if appErr, ok := domainerrors.As(err); ok {
		outcome := outcomeError
		switch appErr.Code {
		case domainerrors.CodeKeyRevoked:
			outcome = outcomeRevoked
		case domainerrors.CodeDeviceMismatch:
			outcome = outcomeDeviceMismatch
		case domainerrors.CodeKeyExpired:
			outcome = outcomeExpired
		}
		u.metrics.Verified(outcome)
		logger.Warn(ctx, "Verify rejected", logger.Key(key), zap.String("code", appErr.Code))
		return appErr
	}
	if errors.Is(err, domainerrors.ErrNotFound) {
		u.metrics.Verified(outcomeUnknownKey)
		return domainerrors.Unauthorized("invalid activation key")
	}

	u.metrics.Verified(outcomeError)
	logger.Error(ctx, "Verify failed", logger.Key(key), zap.Error(err))
	return domainerrors.InternalError(err)
}

// CountKeys returns the number of stored keys.
func (u *ActivationKeyUsecase) CountKeys(ctx context.Context) (int64, error) {
	n, err := u.keyRepo.Count(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to count activation keys", zap.Error(err))
		return 0, domainerrors.InternalError(err)
	}
	return n, nil
}
