package datasources

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"keyauth.backend/internal/config"
	domainrepo "keyauth.backend/internal/domain/repositories"
	"keyauth.backend/internal/infrastructure/datasources/postgres"
	"keyauth.backend/internal/infrastructure/datasources/sqlite"
	"keyauth.backend/internal/infrastructure/repositories"
	"keyauth.backend/pkg/logger"
	"keyauth.backend/pkg/redis"
)

var (
	openPostgres = postgres.NewConnection
	newPgGorm    = postgres.NewGorm
	openSQLite   = sqlite.NewConnection
	initRedis    = redis.Init
)

// KeyStore is an opened activation key store and its release function.
type KeyStore struct {
	Repo   domainrepo.ActivationKeyRepository
	Driver string
	close  func() error
}

// Close releases connections held by the store.
func (s *KeyStore) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// OpenKeyStore builds the store selected by STORE_DRIVER. SQL stores are
// migrated before use.
func OpenKeyStore(cfg *config.Config) (*KeyStore, error) {
	ctx := context.Background()

	switch cfg.Store.Driver {
	case "", config.StoreDriverMemory:
		return &KeyStore{
			Repo:   repositories.NewMemoryActivationKeyRepository(),
			Driver: config.StoreDriverMemory,
		}, nil

	case config.StoreDriverPostgres:
		sqlDB, err := openPostgres(cfg.Database)
		if err != nil {
			return nil, err
		}
		db, err := newPgGorm(sqlDB)
		if err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		store, err := gormKeyStore(db, sqlDB, config.StoreDriverPostgres)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "Connected to PostgreSQL key store", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))
		return store, nil

	case config.StoreDriverSQLite:
		db, err := openSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get generic database object: %w", err)
		}
		store, err := gormKeyStore(db, sqlDB, config.StoreDriverSQLite)
		if err != nil {
			return nil, err
		}
		logger.Info(ctx, "Opened SQLite key store", zap.String("path", cfg.SQLite.Path))
		return store, nil

	case config.StoreDriverRedis:
		if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		logger.Info(ctx, "Connected to Redis key store", zap.String("prefix", cfg.Redis.KeyPrefix))
		return &KeyStore{
			Repo:   repositories.NewRedisActivationKeyRepository(redis.GetClient(), cfg.Redis.KeyPrefix),
			Driver: config.StoreDriverRedis,
			close:  redis.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func gormKeyStore(db *gorm.DB, sqlDB *sql.DB, driver string) (*KeyStore, error) {
	repo := repositories.NewActivationKeyRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate activation_keys: %w", err)
	}
	return &KeyStore{Repo: repo, Driver: driver, close: sqlDB.Close}, nil
}
