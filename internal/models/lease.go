package models

import "time"

// LeaseStatus is the negotiation state of a lease agreement.
type LeaseStatus string

const (
	LeasePending          LeaseStatus = "pending"
	LeaseTenantApproved   LeaseStatus = "tenant_approved"
	LeaseLandlordApproved LeaseStatus = "landlord_approved"
	LeaseSigned           LeaseStatus = "signed"
)

// LeaseStartDate is the proposed first day of the tenancy. ApprovedBy is
// never equal to SetBy.
type LeaseStartDate struct {
	Date          string     `gorm:"size:10" json:"date,omitempty"`
	SetBy         Role       `gorm:"size:16" json:"set_by,omitempty"`
	ApprovedBy    Role       `gorm:"size:16" json:"approved_by,omitempty"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
}

// Proposed reports whether a start date has been proposed.
func (d LeaseStartDate) Proposed() bool {
	return d.Date != ""
}

// LeaseAgreement is the negotiation record attached to an approved
// application.
type LeaseAgreement struct {
	Base
	ApplicationID      string         `gorm:"size:36;not null;uniqueIndex" json:"application_id"`
	Status             LeaseStatus    `gorm:"size:24;not null" json:"status"`
	StartDate          LeaseStartDate `gorm:"embedded;embeddedPrefix:start_date_" json:"lease_start_date"`
	DocumentVersion    int            `gorm:"not null" json:"document_version"`
	TenantApprovedAt   *time.Time     `json:"tenant_approved_at,omitempty"`
	LandlordApprovedAt *time.Time     `json:"landlord_approved_at,omitempty"`
	SignedAt           *time.Time     `json:"signed_at,omitempty"`
	CommentCount       int            `gorm:"not null" json:"comment_count"`
}

// LeaseDocument is one uploaded version of the standard lease document.
// Only metadata is stored; the bytes live in the document store.
type LeaseDocument struct {
	Base
	LeaseAgreementID string `gorm:"size:36;not null;uniqueIndex:idx_lease_document_version" json:"lease_agreement_id"`
	Version          int    `gorm:"not null;uniqueIndex:idx_lease_document_version" json:"version"`
	FileName         string `gorm:"not null" json:"file_name"`
	StorageKey       string `gorm:"not null" json:"storage_key"`
	ContentType      string `json:"content_type"`
	SizeBytes        int64  `json:"size_bytes"`
	UploadedBy       string `gorm:"size:64;not null" json:"uploaded_by"`
	UploadedByRole   Role   `gorm:"size:16;not null" json:"uploaded_by_role"`
}

// LeaseComment is an append-only entry in the negotiation thread. Seq orders
// comments within an agreement.
type LeaseComment struct {
	Base
	LeaseAgreementID string  `gorm:"size:36;not null;uniqueIndex:idx_lease_comment_seq" json:"lease_agreement_id"`
	Seq              int     `gorm:"not null;uniqueIndex:idx_lease_comment_seq" json:"seq"`
	AuthorID         string  `gorm:"size:64;not null" json:"author_id"`
	Role             Role    `gorm:"size:16;not null" json:"role"`
	Text             string  `gorm:"type:text;not null" json:"text"`
	ParentID         *string `gorm:"size:36;index" json:"parent_id,omitempty"`
	System           bool    `gorm:"not null" json:"system"`
}
