package lease

import (
	"fmt"
	"time"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/models"
)

// The functions below mutate an agreement in memory. They assume the caller
// already checked the agreement is open and derived role from the caller's
// relationship to the application.

func proposeStartDate(ag *models.LeaseAgreement, role models.Role, date string, now time.Time) (string, error) {
	day, err := models.NormalizeDay(date)
	if err != nil {
		return "", err
	}
	if !models.IsAfterToday(day, now) {
		return "", apperr.WithMetadata(apperr.CodeStartDateNotFuture,
			fmt.Sprintf("lease start date %s must be after today", day),
			map[string]string{"date": day})
	}
	ag.StartDate = models.LeaseStartDate{
		Date:          day,
		SetBy:         role,
		LastUpdatedAt: models.TimePtr(now.UTC()),
	}
	return day, nil
}

func approveStartDate(ag *models.LeaseAgreement, role models.Role, now time.Time) error {
	switch {
	case !ag.StartDate.Proposed():
		return apperr.New(apperr.CodeNoProposal, "no lease start date has been proposed")
	case ag.StartDate.SetBy == role:
		return apperr.WithMetadata(apperr.CodeSelfApproval, "the proposer cannot approve their own start date",
			map[string]string{"role": string(role)})
	case ag.StartDate.ApprovedBy != "":
		return apperr.WithMetadata(apperr.CodeAlreadyApproved, "lease start date is already approved",
			map[string]string{"approved_by": string(ag.StartDate.ApprovedBy)})
	}
	ag.StartDate.ApprovedBy = role
	ag.StartDate.LastUpdatedAt = models.TimePtr(now.UTC())
	return nil
}

func approveAgreement(ag *models.LeaseAgreement, role models.Role, now time.Time) error {
	at := now.UTC()
	switch role {
	case models.RoleTenant:
		ag.Status = models.LeaseTenantApproved
		ag.TenantApprovedAt = &at
	case models.RoleLandlord:
		ag.Status = models.LeaseLandlordApproved
		ag.LandlordApprovedAt = &at
	default:
		return apperr.New(apperr.CodeForbidden, "only the tenant or landlord can approve the lease")
	}
	return nil
}

// resetApprovals returns the agreement to pending and voids both approvals.
func resetApprovals(ag *models.LeaseAgreement) {
	ag.Status = models.LeasePending
	ag.TenantApprovedAt = nil
	ag.LandlordApprovedAt = nil
}

func markSigned(ag *models.LeaseAgreement, now time.Time) error {
	if ag.TenantApprovedAt == nil || ag.LandlordApprovedAt == nil {
		return apperr.New(apperr.CodeInvalidTransition, "both parties must approve the lease before it is signed")
	}
	ag.Status = models.LeaseSigned
	ag.SignedAt = models.TimePtr(now.UTC())
	return nil
}

// DocumentInput describes an uploaded lease document. The bytes live in the
// document store under StorageKey.
type DocumentInput struct {
	FileName    string `json:"file_name"`
	StorageKey  string `json:"storage_key"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

func (in DocumentInput) validate() error {
	if in.FileName == "" || in.StorageKey == "" {
		return apperr.New(apperr.CodeInvalidDocument, "file_name and storage_key are required")
	}
	if in.SizeBytes < 0 {
		return apperr.New(apperr.CodeInvalidDocument, "size_bytes cannot be negative")
	}
	return nil
}
