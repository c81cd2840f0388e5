package application

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/beesaferoot/rentals/internal/models"
)

// Scorer provides the tenant score snapshotted onto new applications.
type Scorer interface {
	Score(ctx context.Context, tenantID string) (float64, error)
}

// ProfileScorer reads scores from tenant profiles. Tenants without a
// profile score 0.
type ProfileScorer struct {
	db *gorm.DB
}

func NewProfileScorer(db *gorm.DB) *ProfileScorer {
	return &ProfileScorer{db: db}
}

func (p *ProfileScorer) Score(ctx context.Context, tenantID string) (float64, error) {
	var profile models.TenantProfile
	err := p.db.WithContext(ctx).Where("user_id = ?", tenantID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load tenant profile: %w", err)
	}
	return profile.Score, nil
}
