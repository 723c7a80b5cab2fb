package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/pizza-nz/shiftreport-service/internal/api"
	"github.com/pizza-nz/shiftreport-service/internal/apperr"
	"github.com/pizza-nz/shiftreport-service/internal/models"
)

// ReportService is the part of service.ReportService the handlers use
type ReportService interface {
	CreateReport(ctx context.Context, principal *models.User, req models.ReportRequest) (*models.Report, error)
	GetReport(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Report, error)
	GetReports(ctx context.Context, principal *models.User, q models.ReportQuery) ([]models.Report, error)
	UpdateReport(ctx context.Context, principal *models.User, id uuid.UUID, req models.ReportRequest) (*models.Report, error)
	DeleteReport(ctx context.Context, principal *models.User, id uuid.UUID) error
	SubmitReport(ctx context.Context, principal *models.User, id uuid.UUID) (*models.Report, error)
	ApproveReport(ctx context.Context, principal *models.User, id uuid.UUID, req models.ReviewRequest) (*models.Report, error)
	RejectReport(ctx context.Context, principal *models.User, id uuid.UUID, req models.ReviewRequest) (*models.Report, error)
}

// ReportHandler handles shift report requests
type ReportHandler struct {
	reportService ReportService
}

func NewReportHandler(reportService ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// List accepts location_id, status, from and to filters
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	var q models.ReportQuery
	var err error
	if q.LocationID, err = queryID(r, "location_id"); err != nil {
		api.Error(w, r, err)
		return
	}
	if q.From, err = queryDate(r, "from"); err != nil {
		api.Error(w, r, err)
		return
	}
	if q.To, err = queryDate(r, "to"); err != nil {
		api.Error(w, r, err)
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.ReportStatus(raw)
		switch status {
		case models.ReportStatusDraft, models.ReportStatusSubmitted,
			models.ReportStatusApproved, models.ReportStatusRejected:
		default:
			api.Error(w, r, apperr.Invalid("status", "oneof=draft submitted approved rejected"))
			return
		}
		q.Status = &status
	}

	reports, err := h.reportService.GetReports(r.Context(), user, q)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, reports)
}

func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}

	var req models.ReportRequest
	if !api.Decode(w, r, &req) {
		return
	}

	report, err := h.reportService.CreateReport(r.Context(), user, req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusCreated, report)
}

func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.reportService.GetReport(r.Context(), user, id)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, report)
}

func (h *ReportHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.ReportRequest
	if !api.Decode(w, r, &req) {
		return
	}

	report, err := h.reportService.UpdateReport(r.Context(), user, id, req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, report)
}

func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.reportService.DeleteReport(r.Context(), user, id); err != nil {
		api.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.reportService.SubmitReport(r.Context(), user, id)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, report)
}

func (h *ReportHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.reportService.ApproveReport)
}

func (h *ReportHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.reportService.RejectReport)
}

type reviewFunc func(ctx context.Context, principal *models.User, id uuid.UUID, req models.ReviewRequest) (*models.Report, error)

// review handles approve and reject. The notes body is optional.
func (h *ReportHandler) review(w http.ResponseWriter, r *http.Request, fn reviewFunc) {
	user, ok := principal(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req models.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.BadRequest(w, "invalid request body")
		return
	}

	report, err := fn(r.Context(), user, id, req)
	if err != nil {
		api.Error(w, r, err)
		return
	}

	api.JSON(w, http.StatusOK, report)
}
