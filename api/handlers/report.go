package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/linesmerrill/disaster-intake-api/api"
	"github.com/linesmerrill/disaster-intake-api/catalog"
	"github.com/linesmerrill/disaster-intake-api/config"
	"github.com/linesmerrill/disaster-intake-api/databases"
	"github.com/linesmerrill/disaster-intake-api/events"
	"github.com/linesmerrill/disaster-intake-api/lifecycle"
	"github.com/linesmerrill/disaster-intake-api/location"
	"github.com/linesmerrill/disaster-intake-api/models"
)

// ReportService is the lifecycle surface the report routes use
type ReportService interface {
	Create(ctx context.Context, draft *models.ReportDraft) (*models.EmergencyReport, error)
	Acknowledge(ctx context.Context, reportID, actor string) (*models.EmergencyReport, bool, error)
	UpdateStatus(ctx context.Context, reportID, actor string, status models.Status, message string) (*models.EmergencyReport, error)
	GetDetails(ctx context.Context, reportID string) (*models.EmergencyReport, []models.EmergencyResponse, error)
	List(ctx context.Context, f lifecycle.Filter, limit, page int) ([]models.EmergencyReport, error)
}

// Report exposes emergency reports to authenticated responders
type Report struct {
	Reports  ReportService
	Resolver *location.Resolver
	Catalog  *catalog.Catalog
	Hub      *events.Hub
	Metrics  *api.Metrics

	notifier reporterNotifier
}

type createReportRequest struct {
	PhoneNumber string   `json:"phone_number"`
	Category    string   `json:"category"`
	Severity    int      `json:"severity"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Address     string   `json:"address"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
}

type updateStatusRequest struct {
	Status  models.Status `json:"status"`
	Message string        `json:"message"`
}

type servicesResponse struct {
	location.Services
	Contacts []catalog.Contact `json:"contacts"`
}

// ListReportsHandler returns a page of reports, highest priority first
func (rh Report) ListReportsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := lifecycle.Filter{
		Status:   models.Status(strings.ToLower(q.Get("status"))),
		Category: models.Category(strings.ToLower(q.Get("category"))),
		Channel:  models.Channel(strings.ToLower(q.Get("channel"))),
	}
	if v := q.Get("severity"); v != "" {
		severity, err := strconv.Atoi(v)
		if err != nil || !models.ValidSeverity(severity) {
			config.ErrorStatus("invalid severity", http.StatusBadRequest, w, err)
			return
		}
		f.Severity = severity
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	page, _ := strconv.Atoi(q.Get("page"))
	limit, page = databases.PageBounds(limit, page)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	reports, err := rh.Reports.List(ctx, f, limit, page)
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvalidStatus) {
			config.ErrorStatus("invalid status", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to list reports", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ReportListResponse{Reports: reports, Page: page, Limit: limit})
}

// CreateReportHandler stores a report submitted through the web dashboard
func (rh Report) CreateReportHandler(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		config.ErrorStatus("description is required", http.StatusBadRequest, w, nil)
		return
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		config.ErrorStatus("lat and lng must be given together", http.StatusBadRequest, w, nil)
		return
	}

	lang := rh.Catalog.Match(req.Language)
	if req.Language == "" {
		lang = rh.Catalog.Match(rh.Catalog.DetectLanguage(req.PhoneNumber))
	}
	draft := &models.ReportDraft{
		Channel:     models.ChannelWeb,
		Language:    lang,
		PhoneNumber: req.PhoneNumber,
		Category:    models.Category(req.Category),
		Severity:    req.Severity,
		Description: strings.TrimSpace(req.Description),
		RawData:     map[string]interface{}{"submitted_by": api.Actor(r.Context())},
	}
	if req.Lat != nil {
		draft.Coordinates = &models.Coordinates{Lat: *req.Lat, Lng: *req.Lng}
	}
	if req.Address != "" {
		hint := rh.Resolver.ResolveByAddress(req.Address)
		if hint == nil {
			hint = &models.LocationHint{}
		}
		hint.Address = req.Address
		draft.Location = hint
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	report, err := rh.Reports.Create(ctx, draft)
	if err != nil {
		if errors.Is(err, lifecycle.ErrInvalidDraft) {
			config.ErrorStatus("invalid report", http.StatusBadRequest, w, err)
			return
		}
		config.ErrorStatus("failed to create report", http.StatusInternalServerError, w, err)
		return
	}
	if rh.Metrics != nil {
		rh.Metrics.ReportCreated(report)
	}
	rh.notifier.created(r.Context(), report)
	writeJSON(w, http.StatusCreated, report)
}

// ReportDetailsHandler returns a report with its responses
func (rh Report) ReportDetailsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	report, responses, err := rh.Reports.GetDetails(ctx, mux.Vars(r)["report_id"])
	if err != nil {
		rh.lifecycleError(w, "failed to get report", err)
		return
	}
	writeJSON(w, http.StatusOK, models.ReportDetailsResponse{Report: *report, Responses: responses})
}

// AcknowledgeReportHandler marks a report as seen by the calling responder
func (rh Report) AcknowledgeReportHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	report, changed, err := rh.Reports.Acknowledge(ctx, mux.Vars(r)["report_id"], api.Actor(r.Context()))
	if err != nil {
		rh.lifecycleError(w, "failed to acknowledge report", err)
		return
	}
	if changed {
		rh.notifier.statusChanged(r.Context(), report)
	}
	writeJSON(w, http.StatusOK, report)
}

// UpdateStatusHandler moves a report to a new status
func (rh Report) UpdateStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	report, err := rh.Reports.UpdateStatus(ctx, mux.Vars(r)["report_id"], api.Actor(r.Context()), req.Status, req.Message)
	if err != nil {
		rh.lifecycleError(w, "failed to update report status", err)
		return
	}
	rh.notifier.statusChanged(r.Context(), report)
	writeJSON(w, http.StatusOK, report)
}

// EmergencyServicesHandler returns who to call near lat/lng
func (rh Report) EmergencyServicesHandler(w http.ResponseWriter, r *http.Request) {
	lat, latErr := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, lngErr := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if latErr != nil || lngErr != nil {
		config.ErrorStatus("lat and lng are required", http.StatusBadRequest, w, errors.Join(latErr, lngErr))
		return
	}
	if !location.ValidateCoordinates(lat, lng) {
		config.ErrorStatus("coordinates are outside the service area", http.StatusBadRequest, w, nil)
		return
	}
	writeJSON(w, http.StatusOK, servicesResponse{
		Services: rh.Resolver.EmergencyServices(r.Context(), lat, lng),
		Contacts: rh.Catalog.Contacts(true),
	})
}

// StreamHandler upgrades to a websocket that receives every report event
func (rh Report) StreamHandler(w http.ResponseWriter, r *http.Request) {
	id := api.Actor(r.Context()) + ":" + uuid.NewString()
	zap.S().Infow("responder joined report stream", "connection", id)
	rh.Hub.Serve(w, r, id)
}

func (rh Report) lifecycleError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		config.ErrorStatus("report not found", http.StatusNotFound, w, err)
	case errors.Is(err, lifecycle.ErrUnauthorized):
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, err)
	case errors.Is(err, lifecycle.ErrInvalidStatus):
		config.ErrorStatus("invalid status", http.StatusBadRequest, w, err)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		config.ErrorStatus("status transition not allowed", http.StatusConflict, w, err)
	default:
		config.ErrorStatus(message, http.StatusInternalServerError, w, err)
	}
}
