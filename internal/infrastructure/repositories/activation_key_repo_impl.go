package repositories

import (
	"context"
	"errors"

	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"keyauth.backend/internal/domain/entities"
	domainerrors "keyauth.backend/internal/domain/errors"
	"keyauth.backend/internal/infrastructure/models"
)

// ActivationKeyRepository stores activation keys in a SQL database through GORM.
type ActivationKeyRepository struct {
	db *gorm.DB
}

func NewActivationKeyRepository(db *gorm.DB) *ActivationKeyRepository {
	return &ActivationKeyRepository{db: db}
}

// AutoMigrate creates or updates the activation_keys table.
func (r *ActivationKeyRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&models.ActivationKey{})
}

func (r *ActivationKeyRepository) Put(ctx context.Context, key *entities.ActivationKey) error {
	m := r.toModel(key)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.ActivationKey{}).Where("activation_key = ?", m.Key).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return domainerrors.ErrAlreadyExists
		}
		return tx.Create(m).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domainerrors.ErrAlreadyExists
	}
	return err
}

func (r *ActivationKeyRepository) Get(ctx context.Context, key string) (*entities.ActivationKey, error) {
	var m models.ActivationKey
	if err := r.db.WithContext(ctx).Where("activation_key = ?", key).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return r.toEntity(&m), nil
}

func (r *ActivationKeyRepository) Delete(ctx context.Context, key string) (bool, error) {
	result := r.db.WithContext(ctx).Where("activation_key = ?", key).Delete(&models.ActivationKey{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *ActivationKeyRepository) ListAll(ctx context.Context) ([]*entities.ActivationKey, error) {
	var ms []models.ActivationKey
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&ms).Error; err != nil {
		return nil, err
	}

	items := make([]*entities.ActivationKey, 0, len(ms))
	for i := range ms {
		items = append(items, r.toEntity(&ms[i]))
	}
	return items, nil
}

func (r *ActivationKeyRepository) Contains(ctx context.Context, key string) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.ActivationKey{}).Where("activation_key = ?", key).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update locks the row for the duration of the transaction. SQLite has no row
// locks; its single-writer transactions give the same guarantee.
func (r *ActivationKeyRepository) Update(ctx context.Context, key string, fn func(k *entities.ActivationKey) error) (*entities.ActivationKey, error) {
	var updated *entities.ActivationKey
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.ActivationKey
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("activation_key = ?", key).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainerrors.ErrNotFound
			}
			return err
		}

		e := r.toEntity(&m)
		if err := fn(e); err != nil {
			return err
		}
		// Key and CreatedAt are immutable.
		e.Key = m.Key
		e.CreatedAt = m.CreatedAt

		if err := tx.Save(r.toModel(e)).Error; err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *ActivationKeyRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.ActivationKey{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *ActivationKeyRepository) toEntity(m *models.ActivationKey) *entities.ActivationKey {
	return &entities.ActivationKey{
		Key:         m.Key,
		Name:        m.Name,
		PlanType:    entities.PlanType(m.PlanType),
		Active:      m.Active,
		Uses:        m.Uses,
		CreatedAt:   m.CreatedAt,
		ActivatedAt: m.ActivatedAt.Ptr(),
		ExpiresAt:   m.ExpiresAt.Ptr(),
		DeviceID:    m.DeviceID.Ptr(),
		DeviceName:  m.DeviceName.Ptr(),
	}
}

func (r *ActivationKeyRepository) toModel(e *entities.ActivationKey) *models.ActivationKey {
	return &models.ActivationKey{
		Key:         e.Key,
		Name:        e.Name,
		PlanType:    string(e.PlanType),
		Active:      e.Active,
		Uses:        e.Uses,
		CreatedAt:   e.CreatedAt,
		ActivatedAt: null.TimeFromPtr(e.ActivatedAt),
		ExpiresAt:   null.TimeFromPtr(e.ExpiresAt),
		DeviceID:    null.StringFromPtr(e.DeviceID),
		DeviceName:  null.StringFromPtr(e.DeviceName),
	}
}
