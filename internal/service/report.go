package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/authz"
	"github.com/pizza-nz/shiftreport-service/internal/db/repository"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

const (
	noteOwnerAutoApproval = "Auto-approved by owner"
	noteSoloAutoApproval  = "Auto-approved (solo user at location)"
	noteApprovalPrefix    = "Approval Notes: "
)

// ReportService drives the shift report lifecycle
type ReportService struct {
	repos     *repository.Repositories
	engine    *authz.Engine
	publisher Publisher
	now       func() time.Time
}

// NewReportService creates a new report service
func NewReportService(repos *repository.Repositories, engine *authz.Engine, publisher Publisher) *ReportService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &ReportService{
		repos:     repos,
		engine:    engine,
		publisher: publisher,
		now:       time.Now,
	}
}

// cents rounds an amount to the two places the columns store, so totals
// are computed from the values that will be persisted.
func cents(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return d.Round(2)
}

// applyRequest copies the editable fields and recomputes the totals
func applyRequest(report *models.Report, req models.ReportRequest) error {
	date, err := time.Parse("2006-01-02", req.ReportDate)
	if err != nil {
		return apperr.Invalid("report_date", "datetime=2006-01-02")
	}

	report.ReportDate = date
	report.ShiftStartTime = req.ShiftStartTime
	report.ShiftEndTime = req.ShiftEndTime
	report.CashSales = cents(req.CashSales)
	report.CardSales = cents(req.CardSales)
	report.OpeningCash = cents(req.OpeningCash)
	report.ClosingCash = cents(req.ClosingCash)
	report.TipsCash = cents(req.TipsCash)
	report.TipsCard = cents(req.TipsCard)
	report.InventoryNotes = req.InventoryNotes
	report.ShiftNotes = req.ShiftNotes
	report.Recalculate()
	return nil
}

// CreateReport creates a draft report authored by the principal
func (s *ReportService) CreateReport(ctx context.Context, principal *models.User, req models.ReportRequest) (*models.Report, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	report := models.Report{
		LocationID: req.LocationID,
		UserID:     principal.ID,
		Status:     models.ReportStatusDraft,
	}
	if err := applyRequest(&report, req); err != nil {
		return nil, err
	}

	if err := s.engine.Authorize(ctx, principal, authz.ReportCreate, authz.At(req.LocationID)); err != nil {
		return nil, err
	}

	created, err := s.repos.Report.Create(ctx, report)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(created.LocationID, EventReportCreated, created)
	return created, nil
}

// GetReport retrieves a report the principal may see
func (s *ReportService) GetReport(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Report, error) {
	report, err := s.repos.Report.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.engine.Authorize(ctx, principal, authz.ReportView, authz.Owned(report.LocationID, report.UserID)); err != nil {
		return nil, err
	}

	return report, nil
}

// GetReports lists reports visible to the principal. Supervisors see every
// report at their locations; everyone else sees their own.
func (s *ReportService) GetReports(ctx context.Context, principal *models.User, q models.ReportQuery) ([]models.Report, error) {
	var locationIDs []uuid.UUID
	if q.LocationID != nil {
		locationIDs = []uuid.UUID{*q.LocationID}
	} else {
		locations, err := s.repos.Location.ListForUser(ctx, principal.ID)
		if err != nil {
			return nil, err
		}
		for _, loc := range locations {
			locationIDs = append(locationIDs, loc.ID)
		}
	}

	var supervised, own []uuid.UUID
	for _, id := range locationIDs {
		d, err := s.engine.CanPerform(ctx, principal, authz.ReportList, authz.At(id))
		if err != nil {
			return nil, err
		}
		if !d.Allowed {
			if q.LocationID != nil {
				return nil, d.Err()
			}
			continue
		}

		if d.Role == models.RoleOwner || d.Role == models.RoleManager {
			supervised = append(supervised, id)
		} else {
			own = append(own, id)
		}
	}

	var supervisedReports, ownReports []models.Report
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		supervisedReports, err = s.repos.Report.List(gctx, models.ReportFilter{
			LocationIDs: supervised, Status: q.Status, From: q.From, To: q.To,
		})
		return err
	})
	g.Go(func() error {
		var err error
		ownReports, err = s.repos.Report.List(gctx, models.ReportFilter{
			LocationIDs: own, UserID: &principal.ID, Status: q.Status, From: q.From, To: q.To,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	reports := append(supervisedReports, ownReports...)
	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].ReportDate.Equal(reports[j].ReportDate) {
			return reports[i].ReportDate.After(reports[j].ReportDate)
		}
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})

	return reports, nil
}

// UpdateReport edits a draft. Only its author may do so.
func (s *ReportService) UpdateReport(ctx context.Context, principal *models.User, id uuid.UUID, req models.ReportRequest) (*models.Report, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	report, err := s.repos.Report.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.engine.Authorize(ctx, principal, authz.ReportEdit, authz.Owned(report.LocationID, report.UserID)); err != nil {
		return nil, err
	}
	if report.Status != models.ReportStatusDraft {
		return nil, apperr.InvalidState("cannot edit a %s report", report.Status)
	}

	// location is fixed at creation
	if err := applyRequest(report, req); err != nil {
		return nil, err
	}

	updated, err := s.repos.Report.UpdateDraft(ctx, *report)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(updated.LocationID, EventReportUpdated, updated)
	return updated, nil
}

// DeleteReport deletes a draft. Only its author may do so.
func (s *ReportService) DeleteReport(ctx context.Context, principal *models.User, id uuid.UUID) error {
	report, err := s.repos.Report.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.engine.Authorize(ctx, principal, authz.ReportDelete, authz.Owned(report.LocationID, report.UserID)); err != nil {
		return err
	}
	if report.Status != models.ReportStatusDraft {
		return apperr.InvalidState("cannot delete a %s report", report.Status)
	}

	if err := s.repos.Report.DeleteDraft(ctx, id); err != nil {
		return err
	}

	s.publisher.Publish(report.LocationID, EventReportDeleted, map[string]uuid.UUID{"id": id})
	return nil
}

// SubmitReport sends a draft for approval. Owners and the only member of a
// location approve their own reports on submission.
func (s *ReportService) SubmitReport(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Report, error) {
	report, err := s.repos.Report.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	d, err := s.engine.CanPerform(ctx, principal, authz.ReportSubmit, authz.Owned(report.LocationID, report.UserID))
	if err != nil {
		return nil, err
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	if report.Status != models.ReportStatusDraft {
		return nil, apperr.InvalidState("only draft reports can be submitted")
	}

	var updated *models.Report
	err = s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		reason := ""
		if d.Role == models.RoleOwner {
			reason = noteOwnerAutoApproval
		} else {
			sole, err := s.isSoleMember(ctx, principal.ID, report.LocationID)
			if err != nil {
				return err
			}
			if sole {
				reason = noteSoloAutoApproval
			}
		}

		next := *report
		if reason != "" {
			now := s.now()
			next.Status = models.ReportStatusApproved
			next.ApprovedBy = &principal.ID
			next.ApprovedAt = &now
			next.AppendNote(reason)
		} else {
			next.Status = models.ReportStatusSubmitted
		}

		var err error
		updated, err = s.repos.Report.Transition(ctx, next, models.ReportStatusDraft)
		return err
	})
	if err != nil {
		return nil, err
	}

	event := EventReportSubmitted
	if updated.Status == models.ReportStatusApproved {
		event = EventReportApproved
		log.Info().Str("report_id", id.String()).Str("user_id", principal.ID.String()).Msg("report auto-approved")
	}
	s.publisher.Publish(updated.LocationID, event, updated)

	return updated, nil
}

// isSoleMember is true when userID holds the only active membership at the
// location
func (s *ReportService) isSoleMember(ctx context.Context, userID, locationID uuid.UUID) (bool, error) {
	n, err := s.repos.Membership.CountActive(ctx, locationID)
	if err != nil {
		return false, err
	}
	if n != 1 {
		return false, nil
	}

	m, err := s.repos.Membership.Get(ctx, userID, locationID)
	if err != nil {
		if apperr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return m.Status == models.MembershipStatusActive, nil
}

// ApproveReport approves a submitted report
func (s *ReportService) ApproveReport(ctx context.Context, principal *models.User, id uuid.UUID, req models.ReviewRequest) (*models.Report, error) {
	return s.review(ctx, principal, id, req, models.ReportStatusApproved)
}

// RejectReport rejects a submitted report
func (s *ReportService) RejectReport(ctx context.Context, principal *models.User, id uuid.UUID, req models.ReviewRequest) (*models.Report, error) {
	return s.review(ctx, principal, id, req, models.ReportStatusRejected)
}

func (s *ReportService) review(ctx context.Context, principal *models.User, id uuid.UUID, req models.ReviewRequest, to models.ReportStatus) (*models.Report, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	report, err := s.repos.Report.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.engine.Authorize(ctx, principal, authz.ReportReview, authz.Owned(report.LocationID, report.UserID)); err != nil {
		return nil, err
	}
	if report.Status != models.ReportStatusSubmitted {
		return nil, apperr.InvalidState("report must be submitted before review, it is %s", report.Status)
	}

	var updated *models.Report
	err = s.repos.Tx.RunInTx(ctx, func(ctx context.Context) error {
		now := s.now()
		next := *report
		next.Status = to
		next.ApprovedBy = &principal.ID
		next.ApprovedAt = &now
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			next.AppendNote(noteApprovalPrefix + notes)
		}

		var err error
		updated, err = s.repos.Report.Transition(ctx, next, models.ReportStatusSubmitted)
		return err
	})
	if err != nil {
		return nil, err
	}

	event := EventReportApproved
	if to == models.ReportStatusRejected {
		event = EventReportRejected
	}
	s.publisher.Publish(updated.LocationID, event, updated)

	log.Info().
		Str("report_id", id.String()).
		Str("status", string(to)).
		Str("reviewer_id", principal.ID.String()).
		Msg("report reviewed")

	return updated, nil
}
