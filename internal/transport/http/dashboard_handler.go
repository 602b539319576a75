// Package http exposes the session dashboard API over chi.
package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"loanpulse/internal/dataprocessing"
	apierrors "loanpulse/internal/errors"
	"loanpulse/internal/mapper"
	"loanpulse/internal/services"
	"loanpulse/pkg/contracts/domain"
)

// DashboardHandler serves the session-scoped analysis pipeline
type DashboardHandler struct {
	service        SessionServiceInterface
	logger         *slog.Logger
	maxUploadBytes int64
}

// NewDashboardHandler creates the handler. maxUploadBytes caps the
// multipart upload body size.
func NewDashboardHandler(service SessionServiceInterface, logger *slog.Logger, maxUploadBytes int64) *DashboardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardHandler{
		service:        service,
		logger:         logger.With(slog.String("component", "dashboard_handler")),
		maxUploadBytes: maxUploadBytes,
	}
}

// Routes returns the session routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.CreateSession)
	r.Route("/{sessionID}", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/upload", h.Upload)
		r.Post("/sample", h.LoadSample)
		r.Put("/mapping/{field}", h.OverrideMapping)
		r.Post("/normalize", h.Normalize)
		r.Get("/metrics", h.Metrics)
		r.Get("/insights", h.Insights)
		r.Get("/export/{format}", h.Export)
	})

	return r
}

// SessionResponse describes one session to API clients
type SessionResponse struct {
	ID         string                       `json:"id"`
	CreatedAt  string                       `json:"created_at"`
	HasTable   bool                         `json:"has_table"`
	HasRecords bool                         `json:"has_records"`
	Proposal   *domain.MappingProposal      `json:"proposal,omitempty"`
	Summary    *domain.NormalizationSummary `json:"summary,omitempty"`
}

func sessionResponse(s *services.Session) *SessionResponse {
	resp := &SessionResponse{
		ID:        s.ID,
		CreatedAt: s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		HasTable:  s.Table != nil,
		Proposal:  s.Proposal,
	}
	if s.Records != nil {
		resp.HasRecords = len(s.Records.Records) > 0
		resp.Summary = &s.Records.Summary
	}
	return resp
}

// CreateSession handles POST /api/sessions
func (h *DashboardHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session := h.service.CreateSession(r.Context())
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, sessionResponse(session))
}

// GetSession handles GET /api/sessions/{sessionID}
func (h *DashboardHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, sessionResponse(session))
}

// UploadResponse returns the proposed mapping for an uploaded table
type UploadResponse struct {
	SessionID string                  `json:"session_id"`
	Proposal  *domain.MappingProposal `json:"proposal"`
}

// Upload handles POST /api/sessions/{sessionID}/upload. Expects a
// multipart form with a "file" part.
func (h *DashboardHandler) Upload(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.renderAPIError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.renderAPIError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.renderAPIError(w, r, apierrors.ErrValidation("file", "A file part is required"))
		return
	}
	defer file.Close()

	proposal, err := h.service.Upload(r.Context(), sessionID, header.Filename, file)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	render.JSON(w, r, &UploadResponse{SessionID: sessionID, Proposal: proposal})
}

// LoadSample handles POST /api/sessions/{sessionID}/sample
func (h *DashboardHandler) LoadSample(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	set, err := h.service.LoadSample(r.Context(), sessionID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, &NormalizeResponse{
		SessionID: sessionID,
		Summary:   set.Summary,
		Records:   len(set.Records),
	})
}

// OverrideRequest is the body of a mapping override
type OverrideRequest struct {
	Header string `json:"header"`
}

// Bind implements render.Binder
func (o *OverrideRequest) Bind(r *http.Request) error {
	return nil
}

// OverrideMapping handles PUT /api/sessions/{sessionID}/mapping/{field}.
// An empty header clears the field's mapping.
func (h *DashboardHandler) OverrideMapping(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	field := chi.URLParam(r, "field")

	var req OverrideRequest
	if err := render.Bind(r, &req); err != nil {
		h.renderAPIError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	proposal, err := h.service.OverrideMapping(r.Context(), sessionID, field, req.Header)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, &UploadResponse{SessionID: sessionID, Proposal: proposal})
}

// NormalizeResponse reports the outcome of a normalization run
type NormalizeResponse struct {
	SessionID string                      `json:"session_id"`
	Summary   domain.NormalizationSummary `json:"summary"`
	Records   int                         `json:"records"`
}

// Normalize handles POST /api/sessions/{sessionID}/normalize
func (h *DashboardHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	set, err := h.service.Normalize(r.Context(), sessionID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, &NormalizeResponse{
		SessionID: sessionID,
		Summary:   set.Summary,
		Records:   len(set.Records),
	})
}

// Metrics handles GET /api/sessions/{sessionID}/metrics?period=month
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	set, err := h.service.Metrics(r.Context(), sessionID, r.URL.Query().Get("period"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, set)
}

// InsightsResponse pairs the ordered insights with their recommendations
type InsightsResponse struct {
	Insights        []domain.Insight        `json:"insights"`
	Recommendations []domain.Recommendation `json:"recommendations"`
}

// Insights handles GET /api/sessions/{sessionID}/insights
func (h *DashboardHandler) Insights(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	found, recs, err := h.service.Insights(r.Context(), sessionID)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, &InsightsResponse{Insights: found, Recommendations: recs})
}

// Export handles GET /api/sessions/{sessionID}/export/{format}.
// Supported formats: csv, metrics-csv, xlsx.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	format := chi.URLParam(r, "format")

	// Buffer the export so a failure mid-serialization still yields a
	// clean JSON error instead of a truncated download.
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), sessionID, format, &buf); err != nil {
		h.renderError(w, r, err)
		return
	}

	contentType := "text/csv; charset=utf-8"
	filename := fmt.Sprintf("loanpulse-%s.csv", sessionID)
	switch format {
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = fmt.Sprintf("loanpulse-%s.xlsx", sessionID)
	case "metrics-csv":
		filename = fmt.Sprintf("loanpulse-metrics-%s.csv", sessionID)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// renderError maps pipeline errors onto API errors at the boundary
func (h *DashboardHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var mappingErr *mapper.MappingError
	var validationErr *dataprocessing.ValidationError

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		h.renderAPIError(w, r, apierrors.ErrSessionNotFound)
	case errors.Is(err, services.ErrNoTable):
		h.renderAPIError(w, r, apierrors.New(http.StatusConflict, "NO_TABLE", "No uploaded table in this session"))
	case errors.Is(err, services.ErrNoRecords):
		h.renderAPIError(w, r, apierrors.ErrNoData)
	case errors.Is(err, services.ErrUnsupportedFormat):
		h.renderAPIError(w, r, apierrors.ErrValidation("format", err.Error()))
	case errors.Is(err, services.ErrUnknownField):
		h.renderAPIError(w, r, apierrors.ErrValidation("field", err.Error()))
	case errors.Is(err, services.ErrUnknownHeader):
		h.renderAPIError(w, r, apierrors.ErrValidation("header", err.Error()))
	case errors.Is(err, services.ErrInvalidPeriod):
		h.renderAPIError(w, r, apierrors.ErrValidation("period", err.Error()))
	case errors.As(err, &mappingErr):
		names := make([]string, len(mappingErr.Missing))
		for i, f := range mappingErr.Missing {
			names[i] = string(f)
		}
		h.renderAPIError(w, r, apierrors.ErrMappingIncomplete(names))
	case errors.As(err, &validationErr):
		h.renderAPIError(w, r, apierrors.ErrTableInvalid(validationErr))
	default:
		h.logger.ErrorContext(r.Context(), "unhandled pipeline error",
			slog.String("error", err.Error()),
			slog.String("path", r.URL.Path))
		h.renderAPIError(w, r, apierrors.ErrInternalServer)
	}
}

func (h *DashboardHandler) renderAPIError(w http.ResponseWriter, r *http.Request, apiErr *apierrors.APIError) {
	if err := render.Render(w, r, apierrors.NewErrorResponse(apiErr)); err != nil {
		apierrors.WriteError(w, apiErr)
	}
}
