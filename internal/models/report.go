package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportStatus represents the lifecycle state of a shift report
type ReportStatus string

const (
	ReportStatusDraft     ReportStatus = "draft"
	ReportStatusSubmitted ReportStatus = "submitted"
	ReportStatusApproved  ReportStatus = "approved"
	ReportStatusRejected  ReportStatus = "rejected"
)

// Report is an end-of-shift cash and card reconciliation
type Report struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	LocationID     uuid.UUID       `db:"location_id" json:"location_id"`
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	ReportDate     time.Time       `db:"report_date" json:"report_date"`
	ShiftStartTime string          `db:"shift_start_time" json:"shift_start_time"`
	ShiftEndTime   string          `db:"shift_end_time" json:"shift_end_time"`
	CashSales      decimal.Decimal `db:"cash_sales" json:"cash_sales"`
	CardSales      decimal.Decimal `db:"card_sales" json:"card_sales"`
	TotalSales     decimal.Decimal `db:"total_sales" json:"total_sales"`
	OpeningCash    decimal.Decimal `db:"opening_cash" json:"opening_cash"`
	ClosingCash    decimal.Decimal `db:"closing_cash" json:"closing_cash"`
	CashDifference decimal.Decimal `db:"cash_difference" json:"cash_difference"`
	TipsCash       decimal.Decimal `db:"tips_cash" json:"tips_cash"`
	TipsCard       decimal.Decimal `db:"tips_card" json:"tips_card"`
	TotalTips      decimal.Decimal `db:"total_tips" json:"total_tips"`
	InventoryNotes *string         `db:"inventory_notes" json:"inventory_notes"`
	ShiftNotes     *string         `db:"shift_notes" json:"shift_notes"`
	Status         ReportStatus    `db:"status" json:"status"`
	ApprovedBy     *uuid.UUID      `db:"approved_by" json:"approved_by"`
	ApprovedAt     *time.Time      `db:"approved_at" json:"approved_at"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Recalculate derives the totals from the source amounts
func (r *Report) Recalculate() {
	r.TotalSales = r.CashSales.Add(r.CardSales)
	r.TotalTips = r.TipsCash.Add(r.TipsCard)
	r.CashDifference = r.ClosingCash.Sub(r.OpeningCash).Sub(r.CashSales).Sub(r.TipsCash)
}

// AppendNote appends a paragraph to the shift notes
func (r *Report) AppendNote(note string) {
	if r.ShiftNotes == nil || *r.ShiftNotes == "" {
		r.ShiftNotes = &note
		return
	}
	joined := *r.ShiftNotes + "\n\n" + note
	r.ShiftNotes = &joined
}

// ReportRequest is used for report creation and draft edits. Derived totals
// are not part of the request; any client-supplied totals are ignored.
type ReportRequest struct {
	LocationID     uuid.UUID        `json:"location_id" validate:"required"`
	ReportDate     string           `json:"report_date" validate:"required,datetime=2006-01-02"`
	ShiftStartTime string           `json:"shift_start_time" validate:"required,datetime=15:04"`
	ShiftEndTime   string           `json:"shift_end_time" validate:"required,datetime=15:04"`
	CashSales      *decimal.Decimal `json:"cash_sales" validate:"required,gte=0"`
	CardSales      *decimal.Decimal `json:"card_sales" validate:"required,gte=0"`
	OpeningCash    *decimal.Decimal `json:"opening_cash" validate:"required,gte=0"`
	ClosingCash    *decimal.Decimal `json:"closing_cash" validate:"required,gte=0"`
	TipsCash       *decimal.Decimal `json:"tips_cash" validate:"required,gte=0"`
	TipsCard       *decimal.Decimal `json:"tips_card" validate:"required,gte=0"`
	InventoryNotes *string          `json:"inventory_notes"`
	ShiftNotes     *string          `json:"shift_notes"`
}

// ReviewRequest carries approver notes for approve/reject
type ReviewRequest struct {
	Notes string `json:"notes" validate:"max=2000"`
}

// ReportFilter narrows report listings
type ReportFilter struct {
	LocationIDs []uuid.UUID
	UserID      *uuid.UUID
	Status      *ReportStatus
	From        *time.Time
	To          *time.Time
}

// LocationSummary totals approved reports for a location over a date range
type LocationSummary struct {
	LocationID     uuid.UUID       `db:"location_id" json:"location_id"`
	From           time.Time       `db:"-" json:"from"`
	To             time.Time       `db:"-" json:"to"`
	ReportCount    int             `db:"report_count" json:"report_count"`
	TotalSales     decimal.Decimal `db:"total_sales" json:"total_sales"`
	TotalTips      decimal.Decimal `db:"total_tips" json:"total_tips"`
	CashDifference decimal.Decimal `db:"cash_difference" json:"cash_difference"`
}

// ReportQuery is the caller-facing report listing filter. A nil LocationID
// lists across every location the caller can see.
type ReportQuery struct {
	LocationID *uuid.UUID
	Status     *ReportStatus
	From       *time.Time
	To         *time.Time
}
