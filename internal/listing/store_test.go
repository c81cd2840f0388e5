package listing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/models"
	"github.com/beesaferoot/rentals/internal/store/storetest"
)

func TestCreateAndGet(t *testing.T) {
	s := NewStore(storetest.NewDB(t))
	ctx := context.Background()

	l, err := s.Create(ctx, "landlord-1", NewListing{Title: "  Loft ", Address: "1 Main St"})
	require.NoError(t, err)
	assert.Equal(t, "Loft", l.Title)
	assert.Equal(t, models.ListingDraft, l.Status)
	assert.True(t, l.Available)
	assert.Nil(t, l.TenantID)

	got, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
	assert.Equal(t, "landlord-1", got.LandlordID)

	_, err = s.Get(ctx, "missing")
	assert.Equal(t, apperr.CodeListingNotFound, apperr.CodeOf(err))

	_, err = s.Create(ctx, "landlord-1", NewListing{Title: " "})
	assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
}

func TestOccupyAndReopen(t *testing.T) {
	db := storetest.NewDB(t)
	s := NewStore(db)
	ctx := context.Background()

	l, err := s.Create(ctx, "landlord-1", NewListing{Title: "Loft"})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		locked, err := s.WithTx(tx).Lock(ctx, l.ID)
		if err != nil {
			return err
		}
		return s.WithTx(tx).Occupy(ctx, locked.ID, "tenant-1")
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, got.Available)
	require.NotNil(t, got.TenantID)
	assert.Equal(t, "tenant-1", *got.TenantID)

	require.NoError(t, s.Reopen(ctx, l.ID))
	got, err = s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, got.Available)
	assert.Nil(t, got.TenantID)

	require.NoError(t, s.SetAvailable(ctx, l.ID, false))
	got, err = s.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, got.Available)

	assert.Equal(t, apperr.CodeListingNotFound, apperr.CodeOf(s.Reopen(ctx, "missing")))
}

func TestListByLandlord(t *testing.T) {
	s := NewStore(storetest.NewDB(t))
	ctx := context.Background()

	_, err := s.Create(ctx, "landlord-1", NewListing{Title: "A"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "landlord-1", NewListing{Title: "B"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "landlord-2", NewListing{Title: "C"})
	require.NoError(t, err)

	mine, err := s.ListByLandlord(ctx, "landlord-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	none, err := s.ListByLandlord(ctx, "landlord-3")
	require.NoError(t, err)
	assert.Empty(t, none)
}
