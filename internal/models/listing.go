package models

// ListingStatus controls whether a listing is publicly bookable.
type ListingStatus string

const (
	ListingDraft  ListingStatus = "draft"
	ListingActive ListingStatus = "active"
)

// Listing is a rental property a landlord offers.
type Listing struct {
	Base
	LandlordID   string        `gorm:"size:64;not null;index" json:"landlord_id"`
	Title        string        `gorm:"not null" json:"title"`
	Address      string        `json:"address"`
	Status       ListingStatus `gorm:"size:16;not null" json:"status"`
	Available    bool          `gorm:"not null" json:"available"`
	TenantID     *string       `gorm:"size:64" json:"tenant_id,omitempty"`
	ViewingDates []ViewingDate `gorm:"foreignKey:ListingID" json:"viewing_dates,omitempty"`
}

// ViewingDate is one day a listing is open for viewings, with the window the
// landlord chose and the slots generated from it.
type ViewingDate struct {
	Base
	ListingID string `gorm:"size:36;not null;uniqueIndex:idx_viewing_date_listing_day" json:"listing_id"`
	Date      string `gorm:"size:10;not null;uniqueIndex:idx_viewing_date_listing_day" json:"date"`
	StartTime string `gorm:"size:5;not null" json:"start_time"`
	EndTime   string `gorm:"size:5;not null" json:"end_time"`
	Slots     []Slot `gorm:"foreignKey:ViewingDateID;constraint:OnDelete:CASCADE" json:"slots"`
}

// Slot is a bookable viewing interval.
type Slot struct {
	Base
	ViewingDateID string  `gorm:"size:36;not null;uniqueIndex:idx_slot_date_start" json:"viewing_date_id"`
	ListingID     string  `gorm:"size:36;not null;index" json:"listing_id"`
	StartTime     string  `gorm:"size:5;not null;uniqueIndex:idx_slot_date_start" json:"start_time"`
	EndTime       string  `gorm:"size:5;not null" json:"end_time"`
	IsBooked      bool    `gorm:"not null" json:"is_booked"`
	BookedBy      *string `gorm:"size:64;index" json:"booked_by,omitempty"`
}

func (Slot) TableName() string {
	return "viewing_slots"
}

// BookedByTenant reports whether the slot is held by tenantID.
func (s Slot) BookedByTenant(tenantID string) bool {
	return s.IsBooked && s.BookedBy != nil && *s.BookedBy == tenantID
}

// TenantProfile holds the screening score snapshotted onto applications.
type TenantProfile struct {
	UserID string  `gorm:"primaryKey;size:64" json:"user_id"`
	Score  float64 `gorm:"not null" json:"score"`
}
