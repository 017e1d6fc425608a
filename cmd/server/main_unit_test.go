package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyauth.backend/internal/config"
	"keyauth.backend/internal/infrastructure/datasources"
	"keyauth.backend/internal/infrastructure/metrics"
	"keyauth.backend/internal/interfaces/http/middleware"
	plog "keyauth.backend/pkg/logger"
	"keyauth.backend/pkg/redis"
)

func withMainHooks(t *testing.T) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	origLoadDotenv := loadDotenv
	origLoadCfg := loadCfg
	origInitLog := initLog
	origOpenStore := openStore
	origNewMetrics := newMetrics
	origRunServer := runServer

	t.Cleanup(func() {
		loadDotenv = origLoadDotenv
		loadCfg = origLoadCfg
		initLog = origInitLog
		openStore = origOpenStore
		newMetrics = origNewMetrics
		runServer = origRunServer
		gin.SetMode(gin.TestMode)
	})

	loadDotenv = func(...string) error { return nil }
	initLog = plog.Init
}

func baseTestConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			Port:         "18080",
			Env:          "test",
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Store: config.StoreConfig{Driver: config.StoreDriverMemory},
		Redis: config.RedisConfig{KeyPrefix: "keyauth:"},
		CORS: config.CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		Verify: config.VerifyConfig{
			RatePerMinute: 60,
			Burst:         10,
		},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func TestRunMainProcess_InvalidConfig(t *testing.T) {
	withMainHooks(t)
	loadCfg = func() *config.Config {
		cfg := baseTestConfig()
		cfg.Store.Driver = "mongo"
		return cfg
	}

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRunMainProcess_StoreOpenError(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig
	openStore = func(*config.Config) (*datasources.KeyStore, error) {
		return nil, errors.New("db down")
	}

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open key store")
}

func TestRunMainProcess_MetricsError(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig
	newMetrics = func() (*metrics.Recorder, error) { return nil, errors.New("registry broken") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to init metrics")
}

func TestRunMainProcess_ServerRunError(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig
	runServer = func(*http.Server) error { return errors.New("listen failed") }

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start server")
}

func TestRunMainProcess_ProductionSetsReleaseMode(t *testing.T) {
	withMainHooks(t)
	loadCfg = func() *config.Config {
		cfg := baseTestConfig()
		cfg.Server.Env = "production"
		return cfg
	}
	runServer = func(*http.Server) error { return nil }

	require.NoError(t, runMainProcess())
	assert.Equal(t, gin.ReleaseMode, gin.Mode())
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRunMainProcess_ServesKeyLifecycle(t *testing.T) {
	withMainHooks(t)
	loadCfg = baseTestConfig

	var srv *http.Server
	runServer = func(s *http.Server) error {
		srv = s
		return nil
	}
	require.NoError(t, runMainProcess())
	require.NotNil(t, srv)
	assert.Equal(t, "127.0.0.1:18080", srv.Addr)
	assert.Equal(t, time.Second, srv.ReadTimeout)

	h := srv.Handler

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/admin/create-key", map[string]string{"name": "Alice", "type": "month"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Key, 10)

	rec = doJSON(t, h, http.MethodPost, "/api/verify", map[string]string{"key": created.Key, "deviceId": "dev-1"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/verify", map[string]string{"key": created.Key, "deviceId": "dev-2"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var root map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &root))
	assert.EqualValues(t, 1, root["totalKeys"])

	rec = doJSON(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "keyauth_keys_created_total")
	assert.Contains(t, rec.Body.String(), "keyauth_keys_stored 1")

	rec = doJSON(t, h, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewIdempotencyStore(t *testing.T) {
	redis.SetClient(nil)
	t.Cleanup(func() { redis.SetClient(nil) })

	_, ok := newIdempotencyStore(config.StoreDriverMemory).(*middleware.MemoryIdempotencyStore)
	assert.True(t, ok)

	_, ok = newIdempotencyStore(config.StoreDriverRedis).(*middleware.MemoryIdempotencyStore)
	assert.True(t, ok, "redis driver without a client falls back to memory")

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	redis.SetClient(client)

	_, ok = newIdempotencyStore(config.StoreDriverRedis).(*middleware.RedisIdempotencyStore)
	assert.True(t, ok)
}
