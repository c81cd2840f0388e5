// Package calendar owns a listing's viewing dates and their bookable slots.
// Every booking change goes through a conditional UPDATE so that two
// concurrent bookers of one slot cannot both win.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/karlseguin/ccache/v3"
	"gorm.io/gorm"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/logging"
	"github.com/beesaferoot/rentals/internal/models"
	"github.com/beesaferoot/rentals/internal/timeslot"
)

// DateWindow is a landlord request to open a day between two times.
type DateWindow struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// DateUpdate changes a viewing date. Nil fields are left as they are.
type DateUpdate struct {
	Date      *string `json:"date,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
}

// AvailableDate is a future day with at least one free slot.
type AvailableDate struct {
	DateID    string `json:"date_id"`
	Date      string `json:"date"`
	FreeSlots int    `json:"free_slots"`
}

// Options configures a Calendar.
type Options struct {
	CacheTTL  time.Duration
	CacheSize int64
	Now       func() time.Time
	Logger    *logging.Logger
}

// Calendar manages viewing dates and slots.
type Calendar struct {
	db    *gorm.DB
	inTx  bool
	cache *ccache.Cache[[]AvailableDate]
	ttl   time.Duration
	now   func() time.Time
	log   *logging.Logger
}

// New returns a Calendar over db.
func New(db *gorm.DB, opts Options) *Calendar {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Calendar{
		db:    db,
		cache: ccache.New(ccache.Configure[[]AvailableDate]().MaxSize(opts.CacheSize)),
		ttl:   opts.CacheTTL,
		now:   opts.Now,
		log:   opts.Logger,
	}
}

// WithTx returns a Calendar whose operations join tx instead of opening
// their own transactions. The cache is shared.
func (c *Calendar) WithTx(tx *gorm.DB) *Calendar {
	cp := *c
	cp.db = tx
	cp.inTx = true
	return &cp
}

// Stop releases the cache's background worker.
func (c *Calendar) Stop() {
	c.cache.Stop()
}

func (c *Calendar) run(ctx context.Context, listingID string, fn func(tx *gorm.DB) error) error {
	if c.inTx {
		if err := fn(c.db.WithContext(ctx)); err != nil {
			return err
		}
		c.Invalidate(listingID)
		return nil
	}
	if err := c.db.WithContext(ctx).Transaction(fn); err != nil {
		return err
	}
	c.Invalidate(listingID)
	return nil
}

// Invalidate drops cached availability for listingID.
func (c *Calendar) Invalidate(listingID string) {
	c.cache.DeletePrefix(listingID + ":")
}

func (c *Calendar) today() string {
	return models.DayOf(c.now())
}

// AddDates opens windows on listingID and marks the listing active. Either
// every window is added or none is.
func (c *Calendar) AddDates(ctx context.Context, listingID string, windows []DateWindow) ([]models.ViewingDate, error) {
	if len(windows) == 0 {
		return nil, apperr.New(apperr.CodeNoDateWindows, "at least one viewing date is required")
	}

	today := c.today()
	seen := make(map[string]bool, len(windows))
	dates := make([]models.ViewingDate, 0, len(windows))
	for _, w := range windows {
		day, err := models.NormalizeDay(w.Date)
		if err != nil {
			return nil, err
		}
		if day <= today {
			return nil, apperr.WithMetadata(apperr.CodePastDate,
				fmt.Sprintf("viewing date %s must be in the future", day),
				map[string]string{"date": day})
		}
		if seen[day] {
			return nil, duplicateDate(day)
		}
		seen[day] = true

		generated, err := timeslot.Generate(w.StartTime, w.EndTime)
		if err != nil {
			return nil, apperr.Annotate(err, "date", day)
		}
		dates = append(dates, models.ViewingDate{
			ListingID: listingID,
			Date:      day,
			StartTime: w.StartTime,
			EndTime:   w.EndTime,
			Slots:     toModels(listingID, generated),
		})
	}

	err := c.run(ctx, listingID, func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Listing{}).Where("id = ?", listingID).Count(&n).Error; err != nil {
			return fmt.Errorf("load listing: %w", err)
		}
		if n == 0 {
			return listingNotFound(listingID)
		}
		if err := tx.Model(&models.Listing{}).Where("id = ?", listingID).
			Update("status", models.ListingActive).Error; err != nil {
			return fmt.Errorf("activate listing: %w", err)
		}

		var clash []string
		days := make([]string, 0, len(dates))
		for _, d := range dates {
			days = append(days, d.Date)
		}
		if err := tx.Model(&models.ViewingDate{}).
			Where("listing_id = ? AND date IN ?", listingID, days).
			Pluck("date", &clash).Error; err != nil {
			return fmt.Errorf("check existing dates: %w", err)
		}
		if len(clash) > 0 {
			return duplicateDate(clash[0])
		}

		if err := tx.Create(&dates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Wrap(apperr.CodeDuplicateDate, "viewing date already exists", err)
			}
			return fmt.Errorf("create viewing dates: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Debug("[calendar] listing %s: added %d viewing dates", listingID, len(dates))
	return dates, nil
}

// Dates returns every viewing date of listingID with its slots, by day.
func (c *Calendar) Dates(ctx context.Context, listingID string) ([]models.ViewingDate, error) {
	var dates []models.ViewingDate
	err := c.db.WithContext(ctx).
		Preload("Slots", orderSlots).
		Where("listing_id = ?", listingID).
		Order("date ASC").
		Find(&dates).Error
	if err != nil {
		return nil, fmt.Errorf("list viewing dates: %w", err)
	}
	return dates, nil
}

// GetDate returns one viewing date of listingID with its slots.
func (c *Calendar) GetDate(ctx context.Context, listingID, dateID string) (*models.ViewingDate, error) {
	return c.loadDate(c.db.WithContext(ctx), listingID, dateID)
}

func (c *Calendar) loadDate(tx *gorm.DB, listingID, dateID string) (*models.ViewingDate, error) {
	var d models.ViewingDate
	err := tx.Preload("Slots", orderSlots).
		Where("id = ? AND listing_id = ?", dateID, listingID).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.WithMetadata(apperr.CodeDateNotFound, "viewing date not found",
			map[string]string{"date_id": dateID})
	}
	if err != nil {
		return nil, fmt.Errorf("load viewing date: %w", err)
	}
	return &d, nil
}

// FindSlot returns the slot starting at startTime on date.
func (c *Calendar) FindSlot(ctx context.Context, listingID, date, startTime string) (*models.Slot, error) {
	return c.findSlot(c.db.WithContext(ctx), listingID, date, startTime)
}

func (c *Calendar) findSlot(tx *gorm.DB, listingID, date, startTime string) (*models.Slot, error) {
	day, err := models.NormalizeDay(date)
	if err != nil {
		return nil, err
	}
	if _, err := timeslot.ParseClock(startTime); err != nil {
		return nil, err
	}

	var slot models.Slot
	err = tx.Joins("JOIN viewing_dates ON viewing_dates.id = viewing_slots.viewing_date_id").
		Where("viewing_dates.listing_id = ? AND viewing_dates.date = ? AND viewing_slots.start_time = ?",
			listingID, day, startTime).
		First(&slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.WithMetadata(apperr.CodeSlotNotFound,
			fmt.Sprintf("no viewing slot at %s %s", day, startTime),
			map[string]string{"date": day, "start_time": startTime})
	}
	if err != nil {
		return nil, fmt.Errorf("find slot: %w", err)
	}
	return &slot, nil
}

// Book assigns the slot at date/startTime to tenantID. Booking a slot the
// tenant already holds succeeds without change.
func (c *Calendar) Book(ctx context.Context, listingID, date, startTime, tenantID string) (*models.Slot, error) {
	var booked *models.Slot
	err := c.run(ctx, listingID, func(tx *gorm.DB) error {
		slot, err := c.findSlot(tx, listingID, date, startTime)
		if err != nil {
			return err
		}
		if slot.BookedByTenant(tenantID) {
			booked = slot
			return nil
		}
		if slot.IsBooked {
			return alreadyBooked(slot)
		}

		res := tx.Model(&models.Slot{}).
			Where("id = ? AND is_booked = ?", slot.ID, false).
			Updates(map[string]any{"is_booked": true, "booked_by": tenantID})
		if res.Error != nil {
			return fmt.Errorf("book slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// lost the race; a concurrent request by the same tenant still counts
			var current models.Slot
			if err := tx.First(&current, "id = ?", slot.ID).Error; err != nil {
				return fmt.Errorf("reload slot: %w", err)
			}
			if !current.BookedByTenant(tenantID) {
				return alreadyBooked(&current)
			}
		}
		slot.IsBooked = true
		slot.BookedBy = models.StringPtr(tenantID)
		booked = slot
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booked, nil
}

// Unbook releases the slot at date/startTime held by tenantID. A missing or
// free slot is left alone.
func (c *Calendar) Unbook(ctx context.Context, listingID, date, startTime, tenantID string) error {
	return c.run(ctx, listingID, func(tx *gorm.DB) error {
		slot, err := c.findSlot(tx, listingID, date, startTime)
		if apperr.CodeOf(err) == apperr.CodeSlotNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if !slot.IsBooked {
			return nil
		}
		if !slot.BookedByTenant(tenantID) {
			return apperr.WithMetadata(apperr.CodeNotOwner, "slot is booked by another tenant",
				map[string]string{"date": date, "start_time": startTime})
		}

		res := tx.Model(&models.Slot{}).
			Where("id = ? AND booked_by = ?", slot.ID, tenantID).
			Updates(map[string]any{"is_booked": false, "booked_by": nil})
		if res.Error != nil {
			return fmt.Errorf("unbook slot: %w", res.Error)
		}
		return nil
	})
}

// ListAvailable returns the free slots on date. An unknown date has none.
func (c *Calendar) ListAvailable(ctx context.Context, listingID, date string) ([]models.Slot, error) {
	day, err := models.NormalizeDay(date)
	if err != nil {
		return nil, err
	}
	slots := []models.Slot{}
	err = c.db.WithContext(ctx).
		Joins("JOIN viewing_dates ON viewing_dates.id = viewing_slots.viewing_date_id").
		Where("viewing_dates.listing_id = ? AND viewing_dates.date = ? AND viewing_slots.is_booked = ?",
			listingID, day, false).
		Order("viewing_slots.start_time ASC").
		Find(&slots).Error
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	return slots, nil
}

// ListAvailableDates returns future days of listingID that still have a free
// slot, earliest first.
func (c *Calendar) ListAvailableDates(ctx context.Context, listingID string) ([]AvailableDate, error) {
	today := c.today()
	key := listingID + ":" + today

	if !c.inTx {
		if item := c.cache.Get(key); item != nil && !item.Expired() {
			return cloneDates(item.Value()), nil
		}
	}

	out := []AvailableDate{}
	err := c.db.WithContext(ctx).
		Table("viewing_dates").
		Select("viewing_dates.id AS date_id, viewing_dates.date AS date, COUNT(viewing_slots.id) AS free_slots").
		Joins("JOIN viewing_slots ON viewing_slots.viewing_date_id = viewing_dates.id").
		Where("viewing_dates.listing_id = ? AND viewing_dates.date > ? AND viewing_slots.is_booked = ?",
			listingID, today, false).
		Group("viewing_dates.id, viewing_dates.date").
		Order("viewing_dates.date ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list available dates: %w", err)
	}

	if !c.inTx {
		c.cache.Set(key, cloneDates(out), c.ttl)
	}
	return out, nil
}

// UpdateDate moves a viewing date and/or changes its window. Booked slots
// survive a window change unchanged and the free slots around them are
// clamped to their edges.
func (c *Calendar) UpdateDate(ctx context.Context, listingID, dateID string, upd DateUpdate) (*models.ViewingDate, error) {
	var updated *models.ViewingDate
	err := c.run(ctx, listingID, func(tx *gorm.DB) error {
		current, err := c.loadDate(tx, listingID, dateID)
		if err != nil {
			return err
		}

		day := current.Date
		if upd.Date != nil {
			if day, err = models.NormalizeDay(*upd.Date); err != nil {
				return err
			}
			if day <= c.today() {
				return apperr.WithMetadata(apperr.CodePastDate,
					fmt.Sprintf("viewing date %s must be in the future", day),
					map[string]string{"date": day})
			}
			if day != current.Date {
				var n int64
				if err := tx.Model(&models.ViewingDate{}).
					Where("listing_id = ? AND date = ? AND id <> ?", listingID, day, dateID).
					Count(&n).Error; err != nil {
					return fmt.Errorf("check existing dates: %w", err)
				}
				if n > 0 {
					return duplicateDate(day)
				}
			}
		}

		start, end := current.StartTime, current.EndTime
		if upd.StartTime != nil {
			start = *upd.StartTime
		}
		if upd.EndTime != nil {
			end = *upd.EndTime
		}

		if start != current.StartTime || end != current.EndTime {
			generated, err := timeslot.Generate(start, end)
			if err != nil {
				return apperr.Annotate(err, "date", day)
			}
			var booked []timeslot.Slot
			for _, s := range current.Slots {
				if s.IsBooked {
					booked = append(booked, timeslot.Slot{Start: s.StartTime, End: s.EndTime})
				}
			}
			if err := tx.Where("viewing_date_id = ? AND is_booked = ?", dateID, false).
				Delete(&models.Slot{}).Error; err != nil {
				return fmt.Errorf("drop free slots: %w", err)
			}
			fresh := toModels(listingID, MergeSlots(booked, generated))
			for i := range fresh {
				fresh[i].ViewingDateID = dateID
			}
			if len(fresh) > 0 {
				if err := tx.Create(&fresh).Error; err != nil {
					return fmt.Errorf("create slots: %w", err)
				}
			}
		}

		err = tx.Model(&models.ViewingDate{}).Where("id = ?", dateID).
			Updates(map[string]any{"date": day, "start_time": start, "end_time": end}).Error
		if err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicateDate(day)
			}
			return fmt.Errorf("update viewing date: %w", err)
		}

		updated, err = c.loadDate(tx, listingID, dateID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveDate deletes a viewing date and all of its slots, booked or not.
// It returns what was removed.
func (c *Calendar) RemoveDate(ctx context.Context, listingID, dateID string) (*models.ViewingDate, error) {
	var removed *models.ViewingDate
	err := c.run(ctx, listingID, func(tx *gorm.DB) error {
		d, err := c.loadDate(tx, listingID, dateID)
		if err != nil {
			return err
		}
		if err := tx.Where("viewing_date_id = ?", dateID).Delete(&models.Slot{}).Error; err != nil {
			return fmt.Errorf("delete slots: %w", err)
		}
		if err := tx.Delete(&models.ViewingDate{}, "id = ?", dateID).Error; err != nil {
			return fmt.Errorf("delete viewing date: %w", err)
		}
		removed = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// MergeSlots returns the generated slots with every booked interval cut
// out of them, preserving order. A generated slot that partly overlaps a
// booked one is clamped to the booked slot's edge, so the window stays
// covered between bookings.
func MergeSlots(booked, generated []timeslot.Slot) []timeslot.Slot {
	type span struct{ from, to int }
	taken := make([]span, 0, len(booked))
	for _, b := range booked {
		from, err := timeslot.ParseClock(b.Start)
		if err != nil {
			continue
		}
		to, err := timeslot.ParseClock(b.End)
		if err != nil {
			continue
		}
		taken = append(taken, span{from, to})
	}
	sort.Slice(taken, func(i, j int) bool { return taken[i].from < taken[j].from })

	out := make([]timeslot.Slot, 0, len(generated))
	for _, g := range generated {
		from, err := timeslot.ParseClock(g.Start)
		if err != nil {
			continue
		}
		to, err := timeslot.ParseClock(g.End)
		if err != nil {
			continue
		}
		cursor := from
		for _, b := range taken {
			if b.to <= cursor || b.from >= to {
				continue
			}
			if b.from > cursor {
				out = append(out, timeslot.Slot{Start: timeslot.FormatClock(cursor), End: timeslot.FormatClock(b.from)})
			}
			cursor = b.to
			if cursor >= to {
				break
			}
		}
		if cursor < to {
			out = append(out, timeslot.Slot{Start: timeslot.FormatClock(cursor), End: timeslot.FormatClock(to)})
		}
	}
	return out
}

func toModels(listingID string, slots []timeslot.Slot) []models.Slot {
	out := make([]models.Slot, len(slots))
	for i, s := range slots {
		out[i] = models.Slot{ListingID: listingID, StartTime: s.Start, EndTime: s.End}
	}
	return out
}

func orderSlots(db *gorm.DB) *gorm.DB {
	return db.Order("start_time ASC")
}

func cloneDates(in []AvailableDate) []AvailableDate {
	out := make([]AvailableDate, len(in))
	copy(out, in)
	return out
}

func duplicateDate(day string) error {
	return apperr.WithMetadata(apperr.CodeDuplicateDate,
		fmt.Sprintf("viewing date %s already exists", day),
		map[string]string{"date": day})
}

func listingNotFound(id string) error {
	return apperr.WithMetadata(apperr.CodeListingNotFound, "listing not found",
		map[string]string{"listing_id": id})
}

func alreadyBooked(s *models.Slot) error {
	return apperr.WithMetadata(apperr.CodeAlreadyBooked, "slot is already booked",
		map[string]string{"start_time": s.StartTime})
}
