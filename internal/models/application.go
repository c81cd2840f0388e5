package models

import "time"

// ApplicationStatus is the lifecycle state of an application.
type ApplicationStatus string

const (
	StatusViewing    ApplicationStatus = "viewing"
	StatusPending    ApplicationStatus = "pending"
	StatusApproved   ApplicationStatus = "approved"
	StatusRejected   ApplicationStatus = "rejected"
	StatusCancelled  ApplicationStatus = "cancelled"
	StatusTerminated ApplicationStatus = "terminated"
)

// IsTerminal reports whether no further transition leaves s.
func (s ApplicationStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusTerminated:
		return true
	}
	return false
}

// Application is one tenant's request to rent one listing. The pair
// (ListingID, TenantID) is unique.
type Application struct {
	Base
	ListingID    string            `gorm:"size:36;not null;uniqueIndex:idx_application_listing_tenant" json:"listing_id"`
	TenantID     string            `gorm:"size:64;not null;uniqueIndex:idx_application_listing_tenant;index" json:"tenant_id"`
	Status       ApplicationStatus `gorm:"size:16;not null;index" json:"status"`
	WantsViewing bool              `gorm:"not null" json:"wants_viewing"`
	ViewingDate  string            `gorm:"size:10" json:"viewing_date,omitempty"`
	ViewingTime  string            `gorm:"size:5" json:"viewing_time,omitempty"`
	TenantScore  float64           `json:"tenant_score"`
	DecidedAt    *time.Time        `json:"decided_at,omitempty"`
}

// HoldsViewing reports whether the application references a viewing slot.
func (a Application) HoldsViewing() bool {
	return a.ViewingDate != "" && a.ViewingTime != ""
}

// ListingApplication is the per-listing summary row mirroring an
// application's status.
type ListingApplication struct {
	ApplicationID string            `gorm:"primaryKey;size:36" json:"application_id"`
	ListingID     string            `gorm:"size:36;not null;index" json:"listing_id"`
	TenantID      string            `gorm:"size:64;not null" json:"tenant_id"`
	Status        ApplicationStatus `gorm:"size:16;not null" json:"status"`
	UpdatedAt     time.Time         `json:"updated_at"`
}
