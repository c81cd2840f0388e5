// Package application drives a tenant's application to a listing through
// its lifecycle and keeps viewing slots, the listing and the per-listing
// summary consistent with it.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/auth"
	"github.com/beesaferoot/rentals/internal/calendar"
	"github.com/beesaferoot/rentals/internal/events"
	"github.com/beesaferoot/rentals/internal/listing"
	"github.com/beesaferoot/rentals/internal/logging"
	"github.com/beesaferoot/rentals/internal/models"
)

// Options configures a Service.
type Options struct {
	Scorer    Scorer
	Publisher events.Publisher
	Logger    *logging.Logger
	Now       func() time.Time
}

// Service runs application transitions. Each transition is one database
// transaction; events are published after it commits.
type Service struct {
	db        *gorm.DB
	listings  *listing.Store
	calendar  *calendar.Calendar
	scorer    Scorer
	publisher events.Publisher
	log       *logging.Logger
	now       func() time.Time
}

// NewService wires a Service.
func NewService(db *gorm.DB, listings *listing.Store, cal *calendar.Calendar, opts Options) *Service {
	if opts.Scorer == nil {
		opts.Scorer = NewProfileScorer(db)
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		db:        db,
		listings:  listings,
		calendar:  cal,
		scorer:    opts.Scorer,
		publisher: opts.Publisher,
		log:       opts.Logger,
		now:       opts.Now,
	}
}

// transact runs fn in a transaction. After commit it drops cached
// availability of every listing the events name and publishes the events.
func (s *Service) transact(ctx context.Context, fn func(tx *gorm.DB) ([]events.Event, error)) error {
	var evs []events.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		evs, err = fn(tx)
		return err
	})
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	for _, ev := range evs {
		if ev.ListingID != "" && !seen[ev.ListingID] {
			seen[ev.ListingID] = true
			s.calendar.Invalidate(ev.ListingID)
		}
	}
	events.Emit(ctx, s.publisher, s.log, evs...)
	return nil
}

func (s *Service) loadApp(tx *gorm.DB, id string) (*models.Application, error) {
	var app models.Application
	err := tx.Where("id = ?", id).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.WithMetadata(apperr.CodeApplicationNotFound, "application not found",
			map[string]string{"application_id": id})
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	return &app, nil
}

// setStatus moves app to status and mirrors it into the summary row.
func (s *Service) setStatus(tx *gorm.DB, app *models.Application, status models.ApplicationStatus) error {
	fields := map[string]any{"status": status}
	if status == models.StatusApproved || status == models.StatusRejected {
		now := s.now().UTC()
		fields["decided_at"] = now
		app.DecidedAt = &now
	}
	if err := tx.Model(&models.Application{}).Where("id = ?", app.ID).Updates(fields).Error; err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	app.Status = status
	return syncSummary(tx, app)
}

// syncSummary upserts the summary row for app.
func syncSummary(tx *gorm.DB, app *models.Application) error {
	row := models.ListingApplication{
		ApplicationID: app.ID,
		ListingID:     app.ListingID,
		TenantID:      app.TenantID,
		Status:        app.Status,
	}
	if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("sync application summary: %w", err)
	}
	return nil
}

func appEvent(name string, actor auth.Actor, app *models.Application) events.Event {
	ev := events.New(name, actor.UserID)
	ev.ListingID = app.ListingID
	ev.ApplicationID = app.ID
	ev.Data = map[string]string{
		"status":    string(app.Status),
		"tenant_id": app.TenantID,
	}
	return ev
}

// Get returns an application visible to actor: its tenant, the listing's
// landlord, or an admin.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id string) (*models.Application, error) {
	db := s.db.WithContext(ctx)
	app, err := s.loadApp(db, id)
	if err != nil {
		return nil, err
	}
	if actor.Is(models.RoleTenant) && app.TenantID == actor.UserID {
		return app, nil
	}
	l, err := s.listings.Get(ctx, app.ListingID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireLandlordOrAdmin(actor, l); err != nil {
		return nil, err
	}
	return app, nil
}

// ListForListing returns a listing's applications, best score first.
func (s *Service) ListForListing(ctx context.Context, actor auth.Actor, listingID string) ([]models.Application, error) {
	l, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireLandlordOrAdmin(actor, l); err != nil {
		return nil, err
	}
	apps := []models.Application{}
	err = s.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("tenant_score DESC, created_at ASC").
		Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// ListForTenant returns the actor's own applications, newest first.
func (s *Service) ListForTenant(ctx context.Context, actor auth.Actor) ([]models.Application, error) {
	if err := auth.RequireRole(actor, models.RoleTenant); err != nil {
		return nil, err
	}
	apps := []models.Application{}
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", actor.UserID).
		Order("created_at DESC").
		Find(&apps).Error
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// Summaries returns the summary rows of a listing.
func (s *Service) Summaries(ctx context.Context, actor auth.Actor, listingID string) ([]models.ListingApplication, error) {
	l, err := s.listings.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := auth.RequireLandlordOrAdmin(actor, l); err != nil {
		return nil, err
	}
	rows := []models.ListingApplication{}
	err = s.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list application summaries: %w", err)
	}
	return rows, nil
}
