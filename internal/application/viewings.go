package application

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/beesaferoot/rentals/internal/auth"
	"github.com/beesaferoot/rentals/internal/calendar"
	"github.com/beesaferoot/rentals/internal/events"
	"github.com/beesaferoot/rentals/internal/models"
)

func calendarEvent(actor auth.Actor, listingID, change, day string) events.Event {
	ev := events.New(events.CalendarUpdated, actor.UserID)
	ev.ListingID = listingID
	ev.Data = map[string]string{"change": change, "date": day}
	return ev
}

// AddViewingDates opens viewing days on the landlord's listing.
func (s *Service) AddViewingDates(ctx context.Context, actor auth.Actor, listingID string, windows []calendar.DateWindow) ([]models.ViewingDate, error) {
	var dates []models.ViewingDate
	err := s.transact(ctx, func(tx *gorm.DB) ([]events.Event, error) {
		l, err := s.listings.WithTx(tx).Lock(ctx, listingID)
		if err != nil {
			return nil, err
		}
		if err := auth.RequireLandlordOf(actor, l); err != nil {
			return nil, err
		}
		if dates, err = s.calendar.WithTx(tx).AddDates(ctx, l.ID, windows); err != nil {
			return nil, err
		}
		evs := make([]events.Event, 0, len(dates))
		for _, d := range dates {
			evs = append(evs, calendarEvent(actor, l.ID, "added", d.Date))
		}
		return evs, nil
	})
	if err != nil {
		return nil, err
	}
	return dates, nil
}

// UpdateViewingDate changes a viewing day of the landlord's listing. When
// the day moves, applications booked on it follow.
func (s *Service) UpdateViewingDate(ctx context.Context, actor auth.Actor, listingID, dateID string, upd calendar.DateUpdate) (*models.ViewingDate, error) {
	var updated *models.ViewingDate
	err := s.transact(ctx, func(tx *gorm.DB) ([]events.Event, error) {
		l, err := s.listings.WithTx(tx).Lock(ctx, listingID)
		if err != nil {
			return nil, err
		}
		if err := auth.RequireLandlordOf(actor, l); err != nil {
			return nil, err
		}
		cal := s.calendar.WithTx(tx)
		before, err := cal.GetDate(ctx, l.ID, dateID)
		if err != nil {
			return nil, err
		}
		if updated, err = cal.UpdateDate(ctx, l.ID, dateID, upd); err != nil {
			return nil, err
		}

		if before.Date != updated.Date {
			if err := tx.Model(&models.Application{}).
				Where("listing_id = ? AND viewing_date = ? AND status IN ?", l.ID, before.Date, openStatuses).
				Update("viewing_date", updated.Date).Error; err != nil {
				return nil, fmt.Errorf("move booked viewings: %w", err)
			}
		}
		return []events.Event{calendarEvent(actor, l.ID, "updated", updated.Date)}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveViewingDate deletes a viewing day of the landlord's listing. Open
// applications that had a viewing on that day lose it.
func (s *Service) RemoveViewingDate(ctx context.Context, actor auth.Actor, listingID, dateID string) error {
	return s.transact(ctx, func(tx *gorm.DB) ([]events.Event, error) {
		l, err := s.listings.WithTx(tx).Lock(ctx, listingID)
		if err != nil {
			return nil, err
		}
		if err := auth.RequireLandlordOf(actor, l); err != nil {
			return nil, err
		}
		removed, err := s.calendar.WithTx(tx).RemoveDate(ctx, l.ID, dateID)
		if err != nil {
			return nil, err
		}

		res := tx.Model(&models.Application{}).
			Where("listing_id = ? AND viewing_date = ? AND status IN ?", l.ID, removed.Date, openStatuses).
			Updates(map[string]any{"viewing_date": "", "viewing_time": ""})
		if res.Error != nil {
			return nil, fmt.Errorf("clear removed viewings: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			s.log.Info("[application] listing %s: cleared %d viewings on removed date %s", l.ID, res.RowsAffected, removed.Date)
		}
		return []events.Event{calendarEvent(actor, l.ID, "removed", removed.Date)}, nil
	})
}

// AvailableDates lists the bookable days of a listing.
func (s *Service) AvailableDates(ctx context.Context, listingID string) ([]calendar.AvailableDate, error) {
	if _, err := s.listings.Get(ctx, listingID); err != nil {
		return nil, err
	}
	return s.calendar.ListAvailableDates(ctx, listingID)
}

// AvailableSlots lists the free slots of a listing on one day.
func (s *Service) AvailableSlots(ctx context.Context, listingID, date string) ([]models.Slot, error) {
	if _, err := s.listings.Get(ctx, listingID); err != nil {
		return nil, err
	}
	return s.calendar.ListAvailable(ctx, listingID, date)
}

// ViewingDates returns every viewing day of the landlord's listing.
func (s *Service) ViewingDates(ctx context.Context, actor auth.Actor, listingID string) ([]models.ViewingDate, error) {
	l, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireLandlordOrAdmin(actor, l); err != nil {
		return nil, err
	}
	return s.calendar.Dates(ctx, listingID)
}
