package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/beesaferoot/rentals/internal/config"
	"github.com/beesaferoot/rentals/internal/logging"
	"github.com/beesaferoot/rentals/internal/models"
	"github.com/beesaferoot/rentals/internal/store"
	"github.com/beesaferoot/rentals/internal/store/storetest"
)

func TestDialector(t *testing.T) {
	for _, driver := range []string{config.DriverPostgres, config.DriverMySQL, config.DriverSQLite} {
		d, err := store.Dialector(driver, "dsn")
		require.NoError(t, err, driver)
		assert.NotNil(t, d)
	}

	_, err := store.Dialector("oracle", "dsn")
	assert.Error(t, err)
}

func TestOpenSQLite(t *testing.T) {
	cfg := &config.Config{
		DBDriver:         config.DriverSQLite,
		DatabaseURL:      ":memory:",
		DBMaxOpenConns:   4,
		DBConnectRetries: 1,
	}
	db, err := store.Open(cfg, logging.Discard())
	require.NoError(t, err)
	defer func() { _ = store.Close(db) }()

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	require.NoError(t, store.Migrate(context.Background(), db))
	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "%T table missing", m)
	}
}

func TestMigrateDownDropsSchema(t *testing.T) {
	db := storetest.NewDB(t)
	ctx := context.Background()

	reverted, err := store.NewMigrator(db).Down(ctx)
	require.NoError(t, err)
	assert.Equal(t, "create_rentals_schema", reverted.Name)
	assert.False(t, db.Migrator().HasTable(&models.Application{}))

	require.NoError(t, store.Migrate(ctx, db))
	assert.True(t, db.Migrator().HasTable(&models.Application{}))
}

func TestApplicationUniquenessIsEnforcedByStorage(t *testing.T) {
	db := storetest.NewDB(t)

	first := models.Application{ListingID: "l1", TenantID: "t1", Status: models.StatusPending}
	require.NoError(t, db.Create(&first).Error)

	dup := models.Application{ListingID: "l1", TenantID: "t1", Status: models.StatusViewing}
	err := db.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)

	other := models.Application{ListingID: "l1", TenantID: "t2", Status: models.StatusPending}
	assert.NoError(t, db.Create(&other).Error)
}

func TestSlotStartIsUniquePerDate(t *testing.T) {
	db := storetest.NewDB(t)

	a := models.Slot{ViewingDateID: "d1", ListingID: "l1", StartTime: "10:00", EndTime: "10:30"}
	require.NoError(t, db.Create(&a).Error)

	b := models.Slot{ViewingDateID: "d1", ListingID: "l1", StartTime: "10:00", EndTime: "10:15"}
	assert.ErrorIs(t, db.Create(&b).Error, gorm.ErrDuplicatedKey)
}
