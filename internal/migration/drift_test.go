package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"index:idx_widget_name"`
	Size int
}

func TestDrift(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	drift, err := Drift(ctx, db, &widget{})
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, "widgets", drift[0].Table)
	assert.True(t, drift[0].MissingTable)

	require.NoError(t, db.AutoMigrate(&widget{}))
	drift, err = Drift(ctx, db, &widget{})
	require.NoError(t, err)
	assert.Empty(t, drift)

	require.NoError(t, db.Migrator().DropIndex(&widget{}, "idx_widget_name"))
	drift, err = Drift(ctx, db, &widget{})
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.False(t, drift[0].MissingTable)
	assert.Empty(t, drift[0].MissingColumns)
	assert.Equal(t, []string{"idx_widget_name"}, drift[0].MissingIndexes)

	require.NoError(t, db.AutoMigrate(&widget{}))
	require.NoError(t, db.Migrator().DropColumn(&widget{}, "size"))
	drift, err = Drift(ctx, db, &widget{})
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Contains(t, drift[0].MissingColumns, "size")
}
