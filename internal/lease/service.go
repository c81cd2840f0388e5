// Package lease runs the negotiation attached to an approved application:
// start date proposal and approval, the versioned lease document, party
// approvals and the comment thread.
package lease

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/auth"
	"github.com/beesaferoot/rentals/internal/events"
	"github.com/beesaferoot/rentals/internal/logging"
	"github.com/beesaferoot/rentals/internal/models"
)

// Options configures a Service.
type Options struct {
	Publisher events.Publisher
	Logger    *logging.Logger
	Now       func() time.Time
}

// Service negotiates lease agreements.
type Service struct {
	db        *gorm.DB
	publisher events.Publisher
	log       *logging.Logger
	now       func() time.Time
}

func NewService(db *gorm.DB, opts Options) *Service {
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{db: db, publisher: opts.Publisher, log: opts.Logger, now: opts.Now}
}

// party is a loaded agreement with the caller's role in it.
type party struct {
	app       models.Application
	listing   models.Listing
	agreement models.LeaseAgreement
	role      models.Role
}

func (s *Service) load(tx *gorm.DB, actor auth.Actor, appID string, lock bool) (*party, error) {
	p := &party{}
	err := tx.Where("id = ?", appID).First(&p.app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.WithMetadata(apperr.CodeApplicationNotFound, "application not found",
			map[string]string{"application_id": appID})
	}
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	if err := tx.Where("id = ?", p.app.ListingID).First(&p.listing).Error; err != nil {
		return nil, fmt.Errorf("load listing: %w", err)
	}

	if actor.Is(models.RoleAdmin) {
		p.role = models.RoleAdmin
	} else if p.role, err = auth.PartyRole(actor, &p.app, &p.listing); err != nil {
		return nil, err
	}

	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err = q.Where("application_id = ?", appID).First(&p.agreement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.WithMetadata(apperr.CodeLeaseNotFound, "no lease agreement for this application",
			map[string]string{"application_id": appID})
	}
	if err != nil {
		return nil, fmt.Errorf("load lease agreement: %w", err)
	}
	return p, nil
}

// mutate loads the agreement for update, checks it is open and runs fn.
// The agreement is saved and the returned event published after commit.
func (s *Service) mutate(ctx context.Context, actor auth.Actor, appID string, fn func(tx *gorm.DB, p *party) (string, error)) (*models.LeaseAgreement, error) {
	var p *party
	var ev events.Event
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if p, err = s.load(tx, actor, appID, true); err != nil {
			return err
		}
		if p.app.Status != models.StatusApproved {
			return apperr.WithMetadata(apperr.CodeApplicationNotApproved, "application is not approved",
				map[string]string{"status": string(p.app.Status)})
		}
		if p.agreement.Status == models.LeaseSigned {
			return apperr.New(apperr.CodeLeaseSigned, "lease is already signed")
		}

		name, err := fn(tx, p)
		if err != nil {
			return err
		}
		if err := tx.Save(&p.agreement).Error; err != nil {
			return fmt.Errorf("save lease agreement: %w", err)
		}
		ev = events.New(name, actor.UserID)
		ev.ListingID = p.app.ListingID
		ev.ApplicationID = p.app.ID
		ev.Data = map[string]string{"lease_status": string(p.agreement.Status), "role": string(p.role)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.publisher, s.log, ev)
	return &p.agreement, nil
}

func requireParty(p *party) error {
	if p.role != models.RoleTenant && p.role != models.RoleLandlord {
		return apperr.New(apperr.CodeForbidden, "only the tenant or landlord can do this")
	}
	return nil
}

func requireLandlord(p *party) error {
	if p.role != models.RoleLandlord {
		return apperr.New(apperr.CodeForbidden, "only the landlord can do this")
	}
	return nil
}

// comment appends a comment, giving it the next sequence number.
func (s *Service) comment(tx *gorm.DB, ag *models.LeaseAgreement, c *models.LeaseComment) error {
	ag.CommentCount++
	c.LeaseAgreementID = ag.ID
	c.Seq = ag.CommentCount
	if err := tx.Create(c).Error; err != nil {
		return fmt.Errorf("add lease comment: %w", err)
	}
	return nil
}

func (s *Service) systemComment(tx *gorm.DB, ag *models.LeaseAgreement, format string, args ...any) error {
	return s.comment(tx, ag, &models.LeaseComment{
		AuthorID: auth.System.UserID,
		Role:     models.RoleSystem,
		Text:     fmt.Sprintf(format, args...),
		System:   true,
	})
}

// Get returns the agreement of an application.
func (s *Service) Get(ctx context.Context, actor auth.Actor, appID string) (*models.LeaseAgreement, error) {
	p, err := s.load(s.db.WithContext(ctx), actor, appID, false)
	if err != nil {
		return nil, err
	}
	return &p.agreement, nil
}

// ProposeStartDate proposes the first day of the tenancy, replacing any
// earlier proposal and its approval.
func (s *Service) ProposeStartDate(ctx context.Context, actor auth.Actor, appID, date string) (*models.LeaseAgreement, error) {
	return s.mutate(ctx, actor, appID, func(tx *gorm.DB, p *party) (string, error) {
		if err := requireParty(p); err != nil {
			return "", err
		}
		day, err := proposeStartDate(&p.agreement, p.role, date, s.now())
		if err != nil {
			return "", err
		}
		if err := s.systemComment(tx, &p.agreement, "%s proposed %s as the lease start date", p.role, day); err != nil {
			return "", err
		}
		return events.LeaseStartDateProposed, nil
	})
}

// ApproveStartDate approves the other party's proposed start date.
func (s *Service) ApproveStartDate(ctx context.Context, actor auth.Actor, appID string) (*models.LeaseAgreement, error) {
	return s.mutate(ctx, actor, appID, func(tx *gorm.DB, p *party) (string, error) {
		if err := requireParty(p); err != nil {
			return "", err
		}
		if err := approveStartDate(&p.agreement, p.role, s.now()); err != nil {
			return "", err
		}
		if err := s.systemComment(tx, &p.agreement, "%s approved %s as the lease start date",
			p.role, p.agreement.StartDate.Date); err != nil {
			return "", err
		}
		return events.LeaseStartDateApproved, nil
	})
}

// AddComment appends a comment, optionally as a reply to parentID.
func (s *Service) AddComment(ctx context.Context, actor auth.Actor, appID, text string, parentID *string) (*models.LeaseComment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.New(apperr.CodeEmptyComment, "comment text is required")
	}

	var c *models.LeaseComment
	_, err := s.mutate(ctx, actor, appID, func(tx *gorm.DB, p *party) (string, error) {
		if err := requireParty(p); err != nil {
			return "", err
		}
		if parentID != nil {
			var n int64
			if err := tx.Model(&models.LeaseComment{}).
				Where("id = ? AND lease_agreement_id = ?", *parentID, p.agreement.ID).
				Count(&n).Error; err != nil {
				return "", fmt.Errorf("find parent comment: %w", err)
			}
			if n == 0 {
				return "", parentNotFound(*parentID)
			}
		}
		c = &models.LeaseComment{
			AuthorID: actor.UserID,
			Role:     p.role,
			Text:     text,
			ParentID: parentID,
		}
		if err := s.comment(tx, &p.agreement, c); err != nil {
			return "", err
		}
		return events.LeaseCommented, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Comments returns the comment thread in posting order.
func (s *Service) Comments(ctx context.Context, actor auth.Actor, appID string) ([]models.LeaseComment, error) {
	db := s.db.WithContext(ctx)
	p, err := s.load(db, actor, appID, false)
	if err != nil {
		return nil, err
	}
	comments := []models.LeaseComment{}
	if err := db.Where("lease_agreement_id = ?", p.agreement.ID).Order("seq ASC").Find(&comments).Error; err != nil {
		return nil, fmt.Errorf("list lease comments: %w", err)
	}
	return comments, nil
}

// CommentTree returns the comment thread arranged as a forest.
func (s *Service) CommentTree(ctx context.Context, actor auth.Actor, appID string) ([]*CommentNode, error) {
	comments, err := s.Comments(ctx, actor, appID)
	if err != nil {
		return nil, err
	}
	return BuildTree(comments)
}

// ApproveAgreement records the caller's approval of the lease.
func (s *Service) ApproveAgreement(ctx context.Context, actor auth.Actor, appID string) (*models.LeaseAgreement, error) {
	return s.mutate(ctx, actor, appID, func(tx *gorm.DB, p *party) (string, error) {
		if err := requireParty(p); err != nil {
			return "", err
		}
		if err := approveAgreement(&p.agreement, p.role, s.now()); err != nil {
			return "", err
		}
		return events.LeaseApproved, nil
	})
}

// RequestChanges sends the lease back to pending on the landlord's behalf.
func (s *Service) RequestChanges(ctx context.Context, actor auth.Actor, appID, reason string) (*models.LeaseAgreement, error) {
	return s.mutate(ctx, actor, appID, func(tx *gorm.DB, p *party) (string, error) {
		if err := requireLandlord(p); err != nil {
			return "", err
		}
		resetApprovals(&p.agreement)
		text := "landlord requested changes to the lease"
		if reason = strings.TrimSpace(reason); reason != "" {
			text += ": " + reason
		}
		if err := s.systemComment(tx, &p.agreement, "%s", text); err != nil {
			return "", err
		}
		return events.LeaseChangesRequested, nil
	})
}

// UploadDocument records a new version of the standard lease document.
// Any earlier approval of the lease is void afterwards.
func (s *Service) UploadDocument(ctx context.Context, actor auth.Actor, appID string, in DocumentInput) (*models.LeaseDocument, error) {
	in.FileName = strings.TrimSpace(in.FileName)
	in.StorageKey = strings.TrimSpace(in.StorageKey)
	if err := in.validate(); err != nil {
		return nil, err
	}

	var doc *models.LeaseDocument
	_, err := s.mutate(ctx, actor, appID, func(tx *gorm.DB, p *party) (string, error) {
		if err := requireLandlord(p); err != nil {
			return "", err
		}
		p.agreement.DocumentVersion++
		doc = &models.LeaseDocument{
			LeaseAgreementID: p.agreement.ID,
			Version:          p.agreement.DocumentVersion,
			FileName:         in.FileName,
			StorageKey:       in.StorageKey,
			ContentType:      in.ContentType,
			SizeBytes:        in.SizeBytes,
			UploadedBy:       actor.UserID,
			UploadedByRole:   p.role,
		}
		if err := tx.Create(doc).Error; err != nil {
			return "", fmt.Errorf("store lease document: %w", err)
		}
		resetApprovals(&p.agreement)
		if err := s.systemComment(tx, &p.agreement, "landlord uploaded lease document version %d (%s)",
			doc.Version, doc.FileName); err != nil {
			return "", err
		}
		return events.LeaseDocumentUploaded, nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("[lease] application %s: document version %d uploaded", appID, doc.Version)
	return doc, nil
}

// Documents returns every uploaded document version, newest first.
func (s *Service) Documents(ctx context.Context, actor auth.Actor, appID string) ([]models.LeaseDocument, error) {
	db := s.db.WithContext(ctx)
	p, err := s.load(db, actor, appID, false)
	if err != nil {
		return nil, err
	}
	docs := []models.LeaseDocument{}
	if err := db.Where("lease_agreement_id = ?", p.agreement.ID).Order("version DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list lease documents: %w", err)
	}
	return docs, nil
}

// MarkSigned records that both parties signed the lease outside the
// system. Only admins can do this.
func (s *Service) MarkSigned(ctx context.Context, actor auth.Actor, appID string) (*models.LeaseAgreement, error) {
	if err := auth.RequireRole(actor, models.RoleAdmin); err != nil {
		return nil, err
	}
	return s.mutate(ctx, actor, appID, func(tx *gorm.DB, p *party) (string, error) {
		if err := markSigned(&p.agreement, s.now()); err != nil {
			return "", err
		}
		if err := s.systemComment(tx, &p.agreement, "lease signed"); err != nil {
			return "", err
		}
		return events.LeaseSigned, nil
	})
}
