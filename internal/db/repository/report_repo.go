package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/db"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

const reportColumns = `id, location_id, user_id, report_date, shift_start_time, shift_end_time,
	cash_sales, card_sales, total_sales, opening_cash, closing_cash, cash_difference,
	tips_cash, tips_card, total_tips, inventory_notes, shift_notes, status,
	approved_by, approved_at, created_at, updated_at`

// ReportRepository handles shift report data access
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a draft report
func (r *ReportRepository) Create(ctx context.Context, report models.Report) (*models.Report, error) {
	query := `
		INSERT INTO reports (
			location_id, user_id, report_date, shift_start_time, shift_end_time,
			cash_sales, card_sales, total_sales, opening_cash, closing_cash, cash_difference,
			tips_cash, tips_card, total_tips, inventory_notes, shift_notes, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING ` + reportColumns

	var created models.Report
	err := db.Conn(ctx, r.db).GetContext(
		ctx,
		&created,
		query,
		report.LocationID,
		report.UserID,
		report.ReportDate,
		report.ShiftStartTime,
		report.ShiftEndTime,
		report.CashSales,
		report.CardSales,
		report.TotalSales,
		report.OpeningCash,
		report.ClosingCash,
		report.CashDifference,
		report.TipsCash,
		report.TipsCard,
		report.TotalTips,
		report.InventoryNotes,
		report.ShiftNotes,
		report.Status,
	)
	if err != nil {
		return nil, wrap("create report", "report", err)
	}

	return &created, nil
}

// GetByID retrieves a report by ID
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	var report models.Report
	if err := db.Conn(ctx, r.db).GetContext(ctx, &report, query, id); err != nil {
		return nil, wrap("get report", "report", err)
	}

	return &report, nil
}

// UpdateDraft overwrites the editable fields of a report that is still a
// draft
func (r *ReportRepository) UpdateDraft(ctx context.Context, report models.Report) (*models.Report, error) {
	query := `
		UPDATE reports
		SET report_date = $1, shift_start_time = $2, shift_end_time = $3,
			cash_sales = $4, card_sales = $5, total_sales = $6,
			opening_cash = $7, closing_cash = $8, cash_difference = $9,
			tips_cash = $10, tips_card = $11, total_tips = $12,
			inventory_notes = $13, shift_notes = $14, updated_at = NOW()
		WHERE id = $15 AND status = 'draft'
		RETURNING ` + reportColumns

	var updated models.Report
	err := db.Conn(ctx, r.db).GetContext(
		ctx,
		&updated,
		query,
		report.ReportDate,
		report.ShiftStartTime,
		report.ShiftEndTime,
		report.CashSales,
		report.CardSales,
		report.TotalSales,
		report.OpeningCash,
		report.ClosingCash,
		report.CashDifference,
		report.TipsCash,
		report.TipsCard,
		report.TotalTips,
		report.InventoryNotes,
		report.ShiftNotes,
		report.ID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.InvalidState("only draft reports can be edited")
	}
	if err != nil {
		return nil, wrap("update report", "report", err)
	}

	return &updated, nil
}

// Transition moves a report from one status to another, writing the review
// fields. A report no longer in from yields ErrConflict.
func (r *ReportRepository) Transition(ctx context.Context, report models.Report, from models.ReportStatus) (*models.Report, error) {
	query := `
		UPDATE reports
		SET status = $1, shift_notes = $2, approved_by = $3, approved_at = $4, updated_at = NOW()
		WHERE id = $5 AND status = $6
		RETURNING ` + reportColumns

	var updated models.Report
	err := db.Conn(ctx, r.db).GetContext(
		ctx,
		&updated,
		query,
		report.Status,
		report.ShiftNotes,
		report.ApprovedBy,
		report.ApprovedAt,
		report.ID,
		from,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.ErrConflict, fmt.Sprintf("report is no longer %s", from))
	}
	if err != nil {
		return nil, wrap("transition report", "report", err)
	}

	return &updated, nil
}

// DeleteDraft deletes a report that is still a draft
func (r *ReportRepository) DeleteDraft(ctx context.Context, id uuid.UUID) error {
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM reports WHERE id = $1 AND status = 'draft'`, id)
	if err != nil {
		return wrap("delete report", "report", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.InvalidState("cannot delete submitted or approved reports")
	}
	return nil
}

// List returns reports matching filter, newest shift first
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, error) {
	reports := []models.Report{}
	if len(filter.LocationIDs) == 0 {
		return reports, nil
	}

	ids := make([]string, len(filter.LocationIDs))
	for i, id := range filter.LocationIDs {
		ids[i] = id.String()
	}

	conds := []string{"location_id = ANY($1::uuid[])"}
	args := []interface{}{pq.Array(ids)}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conds = append(conds, fmt.Sprintf("report_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conds = append(conds, fmt.Sprintf("report_date <= $%d", len(args)))
	}

	query := `SELECT ` + reportColumns + ` FROM reports WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY report_date DESC, created_at DESC`

	if err := db.Conn(ctx, r.db).SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, wrap("list reports", "report", err)
	}

	return reports, nil
}

// Summary totals approved reports at a location between from and to
// inclusive
func (r *ReportRepository) Summary(ctx context.Context, locationID uuid.UUID, from, to time.Time) (*models.LocationSummary, error) {
	query := `
		SELECT $1::uuid AS location_id,
			COUNT(*) AS report_count,
			COALESCE(SUM(total_sales), 0) AS total_sales,
			COALESCE(SUM(total_tips), 0) AS total_tips,
			COALESCE(SUM(cash_difference), 0) AS cash_difference
		FROM reports
		WHERE location_id = $1 AND status = 'approved' AND report_date BETWEEN $2 AND $3
	`

	var summary models.LocationSummary
	if err := db.Conn(ctx, r.db).GetContext(ctx, &summary, query, locationID, from, to); err != nil {
		return nil, wrap("summarize reports", "report", err)
	}
	summary.From = from
	summary.To = to

	return &summary, nil
}
