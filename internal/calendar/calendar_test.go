package calendar

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/models"
	"github.com/beesaferoot/rentals/internal/store/storetest"
	"github.com/beesaferoot/rentals/internal/timeslot"
)

var fixedNow = time.Date(2030, 1, 10, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Calendar, *gorm.DB, string) {
	t.Helper()
	db := storetest.NewDB(t)
	listing := models.Listing{LandlordID: "landlord-1", Title: "Flat", Status: models.ListingDraft, Available: true}
	require.NoError(t, db.Create(&listing).Error)

	cal := New(db, Options{Now: func() time.Time { return fixedNow }, CacheTTL: time.Minute})
	return cal, db, listing.ID
}

func addDay(t *testing.T, cal *Calendar, listingID, day, start, end string) models.ViewingDate {
	t.Helper()
	dates, err := cal.AddDates(context.Background(), listingID, []DateWindow{{Date: day, StartTime: start, EndTime: end}})
	require.NoError(t, err)
	require.Len(t, dates, 1)
	return dates[0]
}

func starts(slots []models.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.StartTime
	}
	return out
}

func TestAddDates(t *testing.T) {
	cal, db, listingID := setup(t)
	ctx := context.Background()

	dates, err := cal.AddDates(ctx, listingID, []DateWindow{
		{Date: "2030-02-01", StartTime: "10:00", EndTime: "11:15"},
		{Date: "2030-02-02T09:00:00Z", StartTime: "09:00", EndTime: "10:00"},
	})
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, "2030-02-02", dates[1].Date)
	assert.Equal(t, []string{"10:00", "10:30", "11:00"}, starts(dates[0].Slots))
	assert.Equal(t, "11:15", dates[0].Slots[2].EndTime)

	var listing models.Listing
	require.NoError(t, db.First(&listing, "id = ?", listingID).Error)
	assert.Equal(t, models.ListingActive, listing.Status)

	_, err = cal.AddDates(ctx, listingID, []DateWindow{{Date: "2030-02-01", StartTime: "12:00", EndTime: "13:00"}})
	assert.Equal(t, apperr.CodeDuplicateDate, apperr.CodeOf(err))
}

func TestAddDatesRejectsBadInputAtomically(t *testing.T) {
	cal, db, listingID := setup(t)
	ctx := context.Background()

	_, err := cal.AddDates(ctx, listingID, nil)
	assert.Equal(t, apperr.CodeNoDateWindows, apperr.CodeOf(err))

	_, err = cal.AddDates(ctx, listingID, []DateWindow{{Date: "2030-01-10", StartTime: "10:00", EndTime: "11:00"}})
	assert.Equal(t, apperr.CodePastDate, apperr.CodeOf(err), "today is not in the future")

	_, err = cal.AddDates(ctx, listingID, []DateWindow{
		{Date: "2030-02-01", StartTime: "10:00", EndTime: "11:00"},
		{Date: "2030-02-02", StartTime: "12:00", EndTime: "11:00"},
	})
	require.Equal(t, apperr.CodeInvalidRange, apperr.CodeOf(err))
	var de *apperr.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "2030-02-02", de.Metadata["date"])

	_, err = cal.AddDates(ctx, listingID, []DateWindow{{Date: "2030-02-03", StartTime: "9:00", EndTime: "11:00"}})
	assert.Equal(t, apperr.CodeInvalidFormat, apperr.CodeOf(err))

	_, err = cal.AddDates(ctx, listingID, []DateWindow{
		{Date: "2030-02-04", StartTime: "10:00", EndTime: "11:00"},
		{Date: "2030-02-04", StartTime: "12:00", EndTime: "13:00"},
	})
	assert.Equal(t, apperr.CodeDuplicateDate, apperr.CodeOf(err))

	_, err = cal.AddDates(ctx, "missing", []DateWindow{{Date: "2030-02-01", StartTime: "10:00", EndTime: "11:00"}})
	assert.Equal(t, apperr.CodeListingNotFound, apperr.CodeOf(err))

	var count int64
	require.NoError(t, db.Model(&models.ViewingDate{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&models.Slot{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestFindSlot(t *testing.T) {
	cal, _, listingID := setup(t)
	ctx := context.Background()
	addDay(t, cal, listingID, "2030-02-01", "10:00", "11:00")

	slot, err := cal.FindSlot(ctx, listingID, "2030-02-01T15:00:00Z", "10:30")
	require.NoError(t, err)
	assert.Equal(t, "11:00", slot.EndTime)

	_, err = cal.FindSlot(ctx, listingID, "2030-02-01", "10:15")
	assert.Equal(t, apperr.CodeSlotNotFound, apperr.CodeOf(err))

	_, err = cal.FindSlot(ctx, listingID, "2030-02-02", "10:00")
	assert.Equal(t, apperr.CodeSlotNotFound, apperr.CodeOf(err))

	_, err = cal.FindSlot(ctx, listingID, "2030-02-01", "25:00")
	assert.Equal(t, apperr.CodeInvalidFormat, apperr.CodeOf(err))
}

func TestBookIsExclusiveAndIdempotent(t *testing.T) {
	cal, _, listingID := setup(t)
	ctx := context.Background()
	addDay(t, cal, listingID, "2030-02-01", "10:00", "11:00")

	slot, err := cal.Book(ctx, listingID, "2030-02-01", "10:00", "tenant-a")
	require.NoError(t, err)
	assert.True(t, slot.BookedByTenant("tenant-a"))

	_, err = cal.Book(ctx, listingID, "2030-02-01", "10:00", "tenant-b")
	assert.Equal(t, apperr.CodeAlreadyBooked, apperr.CodeOf(err))

	again, err := cal.Book(ctx, listingID, "2030-02-01", "10:00", "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, slot.ID, again.ID)

	current, err := cal.FindSlot(ctx, listingID, "2030-02-01", "10:00")
	require.NoError(t, err)
	assert.True(t, current.BookedByTenant("tenant-a"))

	_, err = cal.Book(ctx, listingID, "2030-02-01", "12:00", "tenant-a")
	assert.Equal(t, apperr.CodeSlotNotFound, apperr.CodeOf(err))
}

func TestConcurrentBookingHasOneWinner(t *testing.T) {
	cal, _, listingID := setup(t)
	addDay(t, cal, listingID, "2030-02-01", "10:00", "10:30")

	var wins, conflicts atomic.Int32
	var g errgroup.Group
	for i := 0; i < 8; i++ {
		tenant := fmt.Sprintf("tenant-%d", i)
		g.Go(func() error {
			_, err := cal.Book(context.Background(), listingID, "2030-02-01", "10:00", tenant)
			switch apperr.CodeOf(err) {
			case apperr.CodeUnknown:
				if err != nil {
					return err
				}
				wins.Add(1)
			case apperr.CodeAlreadyBooked:
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(7), conflicts.Load())
}

func TestUnbook(t *testing.T) {
	cal, _, listingID := setup(t)
	ctx := context.Background()
	addDay(t, cal, listingID, "2030-02-01", "10:00", "11:00")

	_, err := cal.Book(ctx, listingID, "2030-02-01", "10:00", "tenant-a")
	require.NoError(t, err)

	err = cal.Unbook(ctx, listingID, "2030-02-01", "10:00", "tenant-b")
	assert.Equal(t, apperr.CodeNotOwner, apperr.CodeOf(err))

	require.NoError(t, cal.Unbook(ctx, listingID, "2030-02-01", "10:00", "tenant-a"))
	slot, err := cal.FindSlot(ctx, listingID, "2030-02-01", "10:00")
	require.NoError(t, err)
	assert.False(t, slot.IsBooked)
	assert.Nil(t, slot.BookedBy)

	// free and missing slots are left alone
	assert.NoError(t, cal.Unbook(ctx, listingID, "2030-02-01", "10:00", "tenant-a"))
	assert.NoError(t, cal.Unbook(ctx, listingID, "2030-03-01", "10:00", "tenant-a"))
}

func TestAvailability(t *testing.T) {
	cal, db, listingID := setup(t)
	ctx := context.Background()
	addDay(t, cal, listingID, "2030-02-02", "10:00", "11:00")
	first := addDay(t, cal, listingID, "2030-02-01", "10:00", "10:30")

	// a past day with free slots is never offered
	past := models.ViewingDate{ListingID: listingID, Date: "2030-01-05", StartTime: "10:00", EndTime: "10:30",
		Slots: []models.Slot{{ListingID: listingID, StartTime: "10:00", EndTime: "10:30"}}}
	require.NoError(t, db.Create(&past).Error)

	dates, err := cal.ListAvailableDates(ctx, listingID)
	require.NoError(t, err)
	require.Len(t, dates, 2)
	assert.Equal(t, AvailableDate{DateID: first.ID, Date: "2030-02-01", FreeSlots: 1}, dates[0])
	assert.Equal(t, 2, dates[1].FreeSlots)

	_, err = cal.Book(ctx, listingID, "2030-02-01", "10:00", "tenant-a")
	require.NoError(t, err)
	_, err = cal.Book(ctx, listingID, "2030-02-02", "10:30", "tenant-b")
	require.NoError(t, err)

	dates, err = cal.ListAvailableDates(ctx, listingID)
	require.NoError(t, err)
	require.Len(t, dates, 1, "fully booked day drops out once the cache is invalidated")
	assert.Equal(t, "2030-02-02", dates[0].Date)
	assert.Equal(t, 1, dates[0].FreeSlots)

	free, err := cal.ListAvailable(ctx, listingID, "2030-02-02")
	require.NoError(t, err)
	assert.Equal(t, []string{"10:00"}, starts(free))

	free, err = cal.ListAvailable(ctx, listingID, "2030-03-01")
	require.NoError(t, err)
	assert.Empty(t, free)
}

func TestUpdateDateWiderWindowKeepsBooking(t *testing.T) {
	cal, _, listingID := setup(t)
	ctx := context.Background()
	d := addDay(t, cal, listingID, "2030-02-01", "10:00", "11:00")

	held, err := cal.Book(ctx, listingID, "2030-02-01", "10:30", "tenant-t")
	require.NoError(t, err)

	updated, err := cal.UpdateDate(ctx, listingID, d.ID, DateUpdate{
		StartTime: models.StringPtr("09:00"),
		EndTime:   models.StringPtr("12:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}, starts(updated.Slots))

	var bookedCount int
	for _, s := range updated.Slots {
		if s.IsBooked {
			bookedCount++
			assert.Equal(t, held.ID, s.ID)
			assert.True(t, s.BookedByTenant("tenant-t"))
		}
	}
	assert.Equal(t, 1, bookedCount)
	assert.Equal(t, "09:00", updated.StartTime)
	assert.Equal(t, "12:00", updated.EndTime)
}

func TestUpdateDateKeepsBookedSlotsOutsideWindow(t *testing.T) {
	cal, _, listingID := setup(t)
	ctx := context.Background()
	d := addDay(t, cal, listingID, "2030-02-01", "10:00", "11:00")
	_, err := cal.Book(ctx, listingID, "2030-02-01", "10:30", "tenant-t")
	require.NoError(t, err)

	updated, err := cal.UpdateDate(ctx, listingID, d.ID, DateUpdate{
		StartTime: models.StringPtr("14:00"),
		EndTime:   models.StringPtr("15:00"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"10:30", "14:00", "14:30"}, starts(updated.Slots))
	assert.True(t, updated.Slots[0].IsBooked)
}

func TestUpdateDateMisalignedWindowStaysCovered(t *testing.T) {
	cal, _, listingID := setup(t)
	ctx := context.Background()
	d := addDay(t, cal, listingID, "2030-02-01", "10:00", "12:00")
	_, err := cal.Book(ctx, listingID, "2030-02-01", "11:00", "tenant-t")
	require.NoError(t, err)

	updated, err := cal.UpdateDate(ctx, listingID, d.ID, DateUpdate{StartTime: models.StringPtr("10:15")})
	require.NoError(t, err)

	var got []timeslot.Slot
	for _, s := range updated.Slots {
		got = append(got, timeslot.Slot{Start: s.StartTime, End: s.EndTime})
	}
	assert.Equal(t, []timeslot.Slot{
		{Start: "10:15", End: "10:45"},
		{Start: "10:45", End: "11:00"},
		{Start: "11:00", End: "11:30"},
		{Start: "11:30", End: "11:45"},
		{Start: "11:45", End: "12:00"},
	}, got)
	assert.True(t, timeslot.Covers(got, "10:15", "12:00"))
	assert.True(t, updated.Slots[2].BookedByTenant("tenant-t"))

	free, err := cal.ListAvailable(ctx, listingID, "2030-02-01")
	require.NoError(t, err)
	assert.Len(t, free, 4)
}

func TestUpdateDateMovesDay(t *testing.T) {
	cal, _, listingID := setup(t)
	ctx := context.Background()
	d := addDay(t, cal, listingID, "2030-02-01", "10:00", "11:00")
	addDay(t, cal, listingID, "2030-02-05", "10:00", "11:00")
	_, err := cal.Book(ctx, listingID, "2030-02-01", "10:00", "tenant-t")
	require.NoError(t, err)

	moved, err := cal.UpdateDate(ctx, listingID, d.ID, DateUpdate{Date: models.StringPtr("2030-02-03")})
	require.NoError(t, err)
	assert.Equal(t, "2030-02-03", moved.Date)
	require.Len(t, moved.Slots, 2)
	assert.True(t, moved.Slots[0].BookedByTenant("tenant-t"))

	_, err = cal.UpdateDate(ctx, listingID, d.ID, DateUpdate{Date: models.StringPtr("2030-02-05")})
	assert.Equal(t, apperr.CodeDuplicateDate, apperr.CodeOf(err))

	_, err = cal.UpdateDate(ctx, listingID, d.ID, DateUpdate{Date: models.StringPtr("2030-01-01")})
	assert.Equal(t, apperr.CodePastDate, apperr.CodeOf(err))

	_, err = cal.UpdateDate(ctx, listingID, d.ID, DateUpdate{EndTime: models.StringPtr("09:00")})
	assert.Equal(t, apperr.CodeInvalidRange, apperr.CodeOf(err))

	_, err = cal.UpdateDate(ctx, listingID, "missing", DateUpdate{})
	assert.Equal(t, apperr.CodeDateNotFound, apperr.CodeOf(err))
}

func TestRemoveDate(t *testing.T) {
	cal, db, listingID := setup(t)
	ctx := context.Background()
	d := addDay(t, cal, listingID, "2030-02-01", "10:00", "11:00")
	_, err := cal.Book(ctx, listingID, "2030-02-01", "10:00", "tenant-t")
	require.NoError(t, err)

	removed, err := cal.RemoveDate(ctx, listingID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "2030-02-01", removed.Date)
	assert.Len(t, removed.Slots, 2)

	var count int64
	require.NoError(t, db.Model(&models.Slot{}).Where("viewing_date_id = ?", d.ID).Count(&count).Error)
	assert.Zero(t, count)

	dates, err := cal.Dates(ctx, listingID)
	require.NoError(t, err)
	assert.Empty(t, dates)

	_, err = cal.RemoveDate(ctx, listingID, d.ID)
	assert.Equal(t, apperr.CodeDateNotFound, apperr.CodeOf(err))
}

func TestWithTxRollsBackWithCaller(t *testing.T) {
	cal, db, listingID := setup(t)
	ctx := context.Background()
	addDay(t, cal, listingID, "2030-02-01", "10:00", "11:00")

	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := cal.WithTx(tx).Book(ctx, listingID, "2030-02-01", "10:00", "tenant-a"); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	slot, err := cal.FindSlot(ctx, listingID, "2030-02-01", "10:00")
	require.NoError(t, err)
	assert.False(t, slot.IsBooked)
}

func TestMergeSlots(t *testing.T) {
	booked := []timeslot.Slot{{Start: "10:30", End: "11:00"}}

	wider, err := timeslot.Generate("09:30", "11:30")
	require.NoError(t, err)
	assert.Equal(t, []timeslot.Slot{
		{Start: "09:30", End: "10:00"},
		{Start: "10:00", End: "10:30"},
		{Start: "11:00", End: "11:30"},
	}, MergeSlots(booked, wider))

	shifted, err := timeslot.Generate("10:15", "11:15")
	require.NoError(t, err)
	assert.Equal(t, []timeslot.Slot{
		{Start: "10:15", End: "10:30"},
		{Start: "11:00", End: "11:15"},
	}, MergeSlots(booked, shifted))

	inside, err := timeslot.Generate("10:30", "11:00")
	require.NoError(t, err)
	assert.Empty(t, MergeSlots(booked, inside))

	assert.Equal(t, wider, MergeSlots(nil, wider))
}
