package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/auth"
	"github.com/beesaferoot/rentals/internal/events"
	"github.com/beesaferoot/rentals/internal/models"
	"github.com/beesaferoot/rentals/internal/timeslot"
)

// ApplyInput is a tenant's request to apply for a listing.
type ApplyInput struct {
	ListingID    string `json:"listing_id"`
	WantsViewing bool   `json:"wants_viewing"`
	ViewingDate  string `json:"viewing_date,omitempty"`
	ViewingTime  string `json:"viewing_time,omitempty"`
}

// ViewingInput names a slot to book.
type ViewingInput struct {
	ViewingDate string `json:"viewing_date"`
	ViewingTime string `json:"viewing_time"`
}

// Decision is a landlord's verdict on a pending application.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// viewingSlot validates a requested viewing and returns its normalized day.
func (s *Service) viewingSlot(date, clock string) (string, error) {
	if strings.TrimSpace(date) == "" || strings.TrimSpace(clock) == "" {
		return "", apperr.New(apperr.CodeMissingViewing, "viewing date and time are required")
	}
	day, err := models.NormalizeDay(date)
	if err != nil {
		return "", err
	}
	if _, err := timeslot.ParseClock(clock); err != nil {
		return "", err
	}
	if !models.IsAfterToday(day, s.now()) {
		return "", apperr.WithMetadata(apperr.CodePastDate,
			fmt.Sprintf("viewing date %s must be in the future", day),
			map[string]string{"date": day})
	}
	return day, nil
}

func duplicateApplication(listingID string) error {
	return apperr.WithMetadata(apperr.CodeDuplicateApplication,
		"tenant has already applied for this listing",
		map[string]string{"listing_id": listingID})
}

// Apply creates an application for the calling tenant, booking the
// requested viewing slot when one is wanted.
func (s *Service) Apply(ctx context.Context, actor auth.Actor, in ApplyInput) (*models.Application, error) {
	if err := auth.RequireRole(actor, models.RoleTenant); err != nil {
		return nil, err
	}
	var day string
	if in.WantsViewing {
		var err error
		if day, err = s.viewingSlot(in.ViewingDate, in.ViewingTime); err != nil {
			return nil, err
		}
	}

	score, err := s.scorer.Score(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	var app *models.Application
	err = s.transact(ctx, func(tx *gorm.DB) ([]events.Event, error) {
		l, err := s.listings.WithTx(tx).Lock(ctx, in.ListingID)
		if err != nil {
			return nil, err
		}
		if !l.Available {
			return nil, apperr.WithMetadata(apperr.CodeListingUnavailable, "listing is not accepting applications",
				map[string]string{"listing_id": l.ID})
		}
		if l.LandlordID == actor.UserID {
			return nil, apperr.New(apperr.CodeForbidden, "landlords cannot apply to their own listing")
		}

		var existing int64
		if err := tx.Model(&models.Application{}).
			Where("listing_id = ? AND tenant_id = ?", l.ID, actor.UserID).
			Count(&existing).Error; err != nil {
			return nil, fmt.Errorf("check existing application: %w", err)
		}
		if existing > 0 {
			return nil, duplicateApplication(l.ID)
		}

		app = &models.Application{
			ListingID:   l.ID,
			TenantID:    actor.UserID,
			Status:      models.StatusPending,
			TenantScore: score,
		}
		if in.WantsViewing {
			if _, err := s.calendar.WithTx(tx).Book(ctx, l.ID, day, in.ViewingTime, actor.UserID); err != nil {
				return nil, err
			}
			app.Status = models.StatusViewing
			app.WantsViewing = true
			app.ViewingDate = day
			app.ViewingTime = in.ViewingTime
		}

		if err := tx.Create(app).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, duplicateApplication(l.ID)
			}
			return nil, fmt.Errorf("create application: %w", err)
		}
		if err := syncSummary(tx, app); err != nil {
			return nil, err
		}
		return []events.Event{appEvent(events.ApplicationCreated, actor, app)}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("[application] tenant %s applied for listing %s (%s)", actor.UserID, app.ListingID, app.Status)
	return app, nil
}

// Promote moves the tenant's application from viewing to pending, making it
// eligible for a landlord decision.
func (s *Service) Promote(ctx context.Context, actor auth.Actor, id string) (*models.Application, error) {
	var app *models.Application
	err := s.transact(ctx, func(tx *gorm.DB) ([]events.Event, error) {
		var err error
		if app, err = s.loadApp(tx, id); err != nil {
			return nil, err
		}
		if err := auth.RequireTenantOf(actor, app); err != nil {
			return nil, err
		}
		if err := checkTransition(app, models.StatusPending); err != nil {
			return nil, err
		}
		if err := s.setStatus(tx, app, models.StatusPending); err != nil {
			return nil, err
		}
		return []events.Event{appEvent(events.ApplicationPromoted, actor, app)}, nil
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Decide applies the landlord's decision to a pending application.
// Approving occupies the listing, rejects every other open application for
// it and opens the lease agreement.
func (s *Service) Decide(ctx context.Context, actor auth.Actor, id string, decision Decision) (*models.Application, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, apperr.WithMetadata(apperr.CodeInvalidDecision,
			fmt.Sprintf("decision %q must be approve or reject", decision),
			map[string]string{"decision": string(decision)})
	}

	var app *models.Application
	var cascaded int
	err := s.transact(ctx, func(tx *gorm.DB) ([]events.Event, error) {
		var err error
		if app, err = s.loadApp(tx, id); err != nil {
			return nil, err
		}
		listings := s.listings.WithTx(tx)
		l, err := listings.Lock(ctx, app.ListingID)
		if err != nil {
			return nil, err
		}
		if err := auth.RequireLandlordOf(actor, l); err != nil {
			return nil, err
		}
		if app.Status == models.StatusViewing {
			return nil, apperr.New(apperr.CodeViewingNotPromoted,
				"tenant has not finished the viewing stage")
		}
		target := models.StatusApproved
		if decision == DecisionReject {
			target = models.StatusRejected
		}
		if app.Status != models.StatusPending {
			return nil, checkTransition(app, target)
		}

		if decision == DecisionReject {
			if err := s.releaseViewing(ctx, tx, app); err != nil {
				return nil, err
			}
			if err := s.setStatus(tx, app, models.StatusRejected); err != nil {
				return nil, err
			}
			if l.TenantID != nil && *l.TenantID == app.TenantID {
				if err := listings.Reopen(ctx, l.ID); err != nil {
					return nil, err
				}
			}
			return []events.Event{appEvent(events.ApplicationRejected, actor, app)}, nil
		}

		if !l.Available {
			return nil, apperr.WithMetadata(apperr.CodeListingUnavailable, "listing already has a tenant",
				map[string]string{"listing_id": l.ID})
		}
		if err := s.setStatus(tx, app, models.StatusApproved); err != nil {
			return nil, err
		}

		siblings, err := s.rejectSiblings(ctx, tx, app)
		if err != nil {
			return nil, err
		}
		cascaded = len(siblings)

		if err := listings.Occupy(ctx, l.ID, app.TenantID); err != nil {
			return nil, err
		}
		agreement := &models.LeaseAgreement{ApplicationID: app.ID, Status: models.LeasePending}
		if err := tx.Create(agreement).Error; err != nil {
			return nil, fmt.Errorf("create lease agreement: %w", err)
		}

		evs := []events.Event{appEvent(events.ApplicationApproved, actor, app)}
		for i := range siblings {
			evs = append(evs, appEvent(events.ApplicationRejected, auth.System, &siblings[i]))
		}
		return evs, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("[application] %s %s by %s (%d other applications rejected)", app.ID, app.Status, actor.UserID, cascaded)
	return app, nil
}

// rejectSiblings rejects every other open pre-approval application for the
// approved application's listing in one statement, frees the slots they
// hold and returns them.
func (s *Service) rejectSiblings(ctx context.Context, tx *gorm.DB, approved *models.Application) ([]models.Application, error) {
	open := []models.ApplicationStatus{models.StatusPending, models.StatusViewing}

	var siblings []models.Application
	if err := tx.Where("listing_id = ? AND id <> ? AND status IN ?", approved.ListingID, approved.ID, open).
		Find(&siblings).Error; err != nil {
		return nil, fmt.Errorf("load sibling applications: %w", err)
	}
	if len(siblings) == 0 {
		return nil, nil
	}

	now := s.now().UTC()
	if err := tx.Model(&models.Application{}).
		Where("listing_id = ? AND id <> ? AND status IN ?", approved.ListingID, approved.ID, open).
		Updates(map[string]any{"status": models.StatusRejected, "decided_at": now}).Error; err != nil {
		return nil, fmt.Errorf("reject sibling applications: %w", err)
	}
	if err := tx.Model(&models.ListingApplication{}).
		Where("listing_id = ? AND application_id <> ? AND status IN ?", approved.ListingID, approved.ID, open).
		Update("status", models.StatusRejected).Error; err != nil {
		return nil, fmt.Errorf("reject sibling summaries: %w", err)
	}
	for i := range siblings {
		if err := s.releaseViewing(ctx, tx, &siblings[i]); err != nil {
			return nil, err
		}
		siblings[i].Status = models.StatusRejected
		siblings[i].DecidedAt = &now
	}
	return siblings, nil
}

// releaseViewing frees the slot app holds, if the tenant still owns it.
func (s *Service) releaseViewing(ctx context.Context, tx *gorm.DB, app *models.Application) error {
	if !app.HoldsViewing() {
		return nil
	}
	err := s.calendar.WithTx(tx).Unbook(ctx, app.ListingID, app.ViewingDate, app.ViewingTime, app.TenantID)
	if apperr.CodeOf(err) == apperr.CodeNotOwner {
		return nil
	}
	return err
}

// Reschedule moves the tenant's viewing to another slot. The old slot is
// released and the new one booked in the same transaction.
func (s *Service) Reschedule(ctx context.Context, actor auth.Actor, id string, in ViewingInput) (*models.Application, error) {
	day, err := s.viewingSlot(in.ViewingDate, in.ViewingTime)
	if err != nil {
		return nil, err
	}

	var app *models.Application
	err = s.transact(ctx, func(tx *gorm.DB) ([]events.Event, error) {
		var err error
		if app, err = s.loadApp(tx, id); err != nil {
			return nil, err
		}
		if err := auth.RequireTenantOf(actor, app); err != nil {
			return nil, err
		}
		if app.Status != models.StatusViewing && app.Status != models.StatusPending {
			return nil, apperr.WithMetadata(apperr.CodeInvalidTransition,
				fmt.Sprintf("cannot reschedule a %s application", app.Status),
				map[string]string{"from": string(app.Status)})
		}
		if _, err := s.listings.WithTx(tx).Lock(ctx, app.ListingID); err != nil {
			return nil, err
		}

		if app.ViewingDate != day || app.ViewingTime != in.ViewingTime {
			if err := s.releaseViewing(ctx, tx, app); err != nil {
				return nil, err
			}
		}
		if _, err := s.calendar.WithTx(tx).Book(ctx, app.ListingID, day, in.ViewingTime, app.TenantID); err != nil {
			return nil, err
		}

		previous := app.ViewingDate + " " + app.ViewingTime
		if err := tx.Model(&models.Application{}).Where("id = ?", app.ID).Updates(map[string]any{
			"wants_viewing": true,
			"viewing_date":  day,
			"viewing_time":  in.ViewingTime,
		}).Error; err != nil {
			return nil, fmt.Errorf("update application viewing: %w", err)
		}
		app.WantsViewing = true
		app.ViewingDate = day
		app.ViewingTime = in.ViewingTime

		ev := appEvent(events.ApplicationRescheduled, actor, app)
		ev.Data["previous"] = strings.TrimSpace(previous)
		ev.Data["viewing"] = day + " " + in.ViewingTime
		return []events.Event{ev}, nil
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Cancel withdraws the tenant's application from any non-terminal state,
// releasing its viewing slot and removing its summary row. Cancelling an
// approved application reopens the listing.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, id string) (*models.Application, error) {
	var app *models.Application
	err := s.transact(ctx, func(tx *gorm.DB) ([]events.Event, error) {
		var err error
		if app, err = s.loadApp(tx, id); err != nil {
			return nil, err
		}
		if err := auth.RequireTenantOf(actor, app); err != nil {
			return nil, err
		}
		if err := checkTransition(app, models.StatusCancelled); err != nil {
			return nil, err
		}

		if app.Status == models.StatusApproved {
			listings := s.listings.WithTx(tx)
			l, err := listings.Lock(ctx, app.ListingID)
			if err != nil {
				return nil, err
			}
			if l.TenantID != nil && *l.TenantID == app.TenantID {
				if err := listings.Reopen(ctx, l.ID); err != nil {
					return nil, err
				}
			}
		}
		if err := s.releaseViewing(ctx, tx, app); err != nil {
			return nil, err
		}

		if err := tx.Model(&models.Application{}).Where("id = ?", app.ID).
			Update("status", models.StatusCancelled).Error; err != nil {
			return nil, fmt.Errorf("cancel application: %w", err)
		}
		app.Status = models.StatusCancelled
		if err := tx.Where("application_id = ?", app.ID).Delete(&models.ListingApplication{}).Error; err != nil {
			return nil, fmt.Errorf("remove application summary: %w", err)
		}
		return []events.Event{appEvent(events.ApplicationCancelled, actor, app)}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("[application] %s cancelled by tenant %s", app.ID, actor.UserID)
	return app, nil
}

// Terminate ends an approved tenancy, frees the tenant's viewing slot and
// puts the listing back on the market. Landlords of the listing and admins may terminate.
func (s *Service) Terminate(ctx context.Context, actor auth.Actor, id string) (*models.Application, error) {
	var app *models.Application
	err := s.transact(ctx, func(tx *gorm.DB) ([]events.Event, error) {
		var err error
		if app, err = s.loadApp(tx, id); err != nil {
			return nil, err
		}
		listings := s.listings.WithTx(tx)
		l, err := listings.Lock(ctx, app.ListingID)
		if err != nil {
			return nil, err
		}
		if err := auth.RequireLandlordOrAdmin(actor, l); err != nil {
			return nil, err
		}
		if err := checkTransition(app, models.StatusTerminated); err != nil {
			return nil, err
		}
		if err := s.releaseViewing(ctx, tx, app); err != nil {
			return nil, err
		}
		if err := s.setStatus(tx, app, models.StatusTerminated); err != nil {
			return nil, err
		}
		if err := listings.Reopen(ctx, l.ID); err != nil {
			return nil, err
		}
		return []events.Event{appEvent(events.ApplicationTerminated, actor, app)}, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("[application] %s terminated by %s %s", app.ID, actor.Role, actor.UserID)
	return app, nil
}
