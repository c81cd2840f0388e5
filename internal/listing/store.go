// Package listing persists rental listings and the occupancy fields the
// application lifecycle changes.
package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/models"
)

// NewListing is the input for Create.
type NewListing struct {
	Title   string `json:"title"`
	Address string `json:"address"`
}

// Store reads and writes listings.
type Store struct {
	db *gorm.DB
}

// NewStore returns a Store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a Store bound to tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// Create stores a new draft listing owned by landlordID. Listings start
// available and become active once viewing dates are added.
func (s *Store) Create(ctx context.Context, landlordID string, in NewListing) (*models.Listing, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.WithMetadata(apperr.CodeInvalidInput, "title is required",
			map[string]string{"field": "title"})
	}
	l := &models.Listing{
		LandlordID: landlordID,
		Title:      title,
		Address:    strings.TrimSpace(in.Address),
		Status:     models.ListingDraft,
		Available:  true,
	}
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}
	return l, nil
}

// Get loads a listing by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Listing, error) {
	return s.get(s.db.WithContext(ctx), id)
}

// Lock loads a listing and holds a row lock on it until the surrounding
// transaction ends. SQLite ignores the lock and serializes writers instead.
func (s *Store) Lock(ctx context.Context, id string) (*models.Listing, error) {
	return s.get(s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (s *Store) get(tx *gorm.DB, id string) (*models.Listing, error) {
	var l models.Listing
	err := tx.Where("id = ?", id).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.WithMetadata(apperr.CodeListingNotFound, "listing not found",
			map[string]string{"listing_id": id})
	}
	if err != nil {
		return nil, fmt.Errorf("load listing: %w", err)
	}
	return &l, nil
}

// ListByLandlord returns the landlord's listings, newest first.
func (s *Store) ListByLandlord(ctx context.Context, landlordID string) ([]models.Listing, error) {
	listings := []models.Listing{}
	err := s.db.WithContext(ctx).
		Where("landlord_id = ?", landlordID).
		Order("created_at DESC").
		Find(&listings).Error
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return listings, nil
}

// Occupy takes the listing off the market for tenantID.
func (s *Store) Occupy(ctx context.Context, id, tenantID string) error {
	return s.update(ctx, id, map[string]any{"available": false, "tenant_id": tenantID})
}

// Reopen clears the tenant and puts the listing back on the market.
func (s *Store) Reopen(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]any{"available": true, "tenant_id": nil})
}

// SetAvailable toggles whether the listing accepts applications.
func (s *Store) SetAvailable(ctx context.Context, id string, available bool) error {
	return s.update(ctx, id, map[string]any{"available": available})
}

func (s *Store) update(ctx context.Context, id string, fields map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update listing: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
