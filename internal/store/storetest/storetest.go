// Package storetest provides migrated in-memory databases for tests.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/beesaferoot/rentals/internal/logging"
	"github.com/beesaferoot/rentals/internal/store"
)

// NewDB returns a fully migrated in-memory SQLite database. A single
// connection keeps the in-memory database alive and serializes
// transactions the way SQLite would across processes.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), store.GormConfig(logging.Discard()))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, store.Migrate(context.Background(), db))
	return db
}
