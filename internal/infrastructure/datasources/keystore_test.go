package datasources

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"keyauth.backend/internal/config"
	"keyauth.backend/internal/domain/entities"
	"keyauth.backend/internal/infrastructure/repositories"
)

func sampleKey() *entities.ActivationKey {
	return &entities.ActivationKey{
		Key:       "ABCDE12345",
		Name:      "Alice",
		PlanType:  entities.PlanTypeWeek,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}

func TestOpenKeyStore_Memory(t *testing.T) {
	store, err := OpenKeyStore(&config.Config{})
	require.NoError(t, err)
	assert.Equal(t, config.StoreDriverMemory, store.Driver)
	assert.IsType(t, &repositories.MemoryActivationKeyRepository{}, store.Repo)
	assert.NoError(t, store.Close())
}

func TestOpenKeyStore_SQLiteMigratesAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.db")
	cfg := &config.Config{
		Store:  config.StoreConfig{Driver: config.StoreDriverSQLite},
		SQLite: config.SQLiteConfig{Path: path},
	}

	store, err := OpenKeyStore(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Repo.Put(context.Background(), sampleKey()))
	require.NoError(t, store.Close())

	reopened, err := OpenKeyStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	got, err := reopened.Repo.Get(context.Background(), "ABCDE12345")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
}

func TestOpenKeyStore_SQLiteOpenError(t *testing.T) {
	orig := openSQLite
	t.Cleanup(func() { openSQLite = orig })
	openSQLite = func(string) (*gorm.DB, error) { return nil, errors.New("disk gone") }

	_, err := OpenKeyStore(&config.Config{Store: config.StoreConfig{Driver: config.StoreDriverSQLite}})
	require.ErrorContains(t, err, "disk gone")
}

func TestOpenKeyStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Store: config.StoreConfig{Driver: config.StoreDriverRedis},
		Redis: config.RedisConfig{URL: "redis://" + mr.Addr(), KeyPrefix: "ks:"},
	}

	store, err := OpenKeyStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Repo.Put(context.Background(), sampleKey()))
	assert.True(t, mr.Exists("ks:key:ABCDE12345"))
}

func TestOpenKeyStore_RedisInitError(t *testing.T) {
	orig := initRedis
	t.Cleanup(func() { initRedis = orig })
	initRedis = func(string, string) error { return errors.New("refused") }

	_, err := OpenKeyStore(&config.Config{Store: config.StoreConfig{Driver: config.StoreDriverRedis}})
	require.ErrorContains(t, err, "failed to initialize redis")
}

func TestOpenKeyStore_PostgresErrors(t *testing.T) {
	origOpen, origGorm := openPostgres, newPgGorm
	t.Cleanup(func() {
		openPostgres = origOpen
		newPgGorm = origGorm
	})
	cfg := &config.Config{Store: config.StoreConfig{Driver: config.StoreDriverPostgres}}

	openPostgres = func(config.DatabaseConfig) (*sql.DB, error) { return nil, errors.New("failed to ping database") }
	_, err := OpenKeyStore(cfg)
	require.ErrorContains(t, err, "failed to ping database")

	openPostgres = func(config.DatabaseConfig) (*sql.DB, error) {
		return sql.Open("postgres", "host=127.0.0.1 port=1 sslmode=disable")
	}
	newPgGorm = func(*sql.DB) (*gorm.DB, error) { return nil, errors.New("dialect") }
	_, err = OpenKeyStore(cfg)
	require.ErrorContains(t, err, "failed to connect to database")
}

func TestOpenKeyStore_UnknownDriver(t *testing.T) {
	_, err := OpenKeyStore(&config.Config{Store: config.StoreConfig{Driver: "mongo"}})
	require.ErrorContains(t, err, "unknown store driver")
}

func TestKeyStore_CloseNil(t *testing.T) {
	var s *KeyStore
	assert.NoError(t, s.Close())
}
