package repositories

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createActivationKeyTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE activation_keys (
		activation_key TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		plan_type TEXT NOT NULL,
		active BOOLEAN NOT NULL,
		uses INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		activated_at DATETIME,
		expires_at DATETIME,
		device_id TEXT,
		device_name TEXT
	);`)
}

func newTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}
