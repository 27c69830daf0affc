package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/roadweather/roadweather/internal/api/models"
	"github.com/roadweather/roadweather/internal/api/response"
	"github.com/roadweather/roadweather/internal/dashboard"
	"github.com/roadweather/roadweather/internal/session"
	"github.com/roadweather/roadweather/pkg/polyline"
)

// DashboardHandler serves the dashboard views of a session.
type DashboardHandler struct {
	sessions  *session.Service
	dashboard *dashboard.Service
	logger    zerolog.Logger
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(sessions *session.Service, dash *dashboard.Service, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		sessions:  sessions,
		dashboard: dash,
		logger:    logger,
	}
}

// GetSummary handles GET /v1/sessions/{sessionId}/dashboard/summary.
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, sess *session.Session) (interface{}, error) {
		return h.dashboard.Summary(ctx, sess.Hours)
	})
}

// GetMap handles GET /v1/sessions/{sessionId}/dashboard/map.
// Query: pathEncoding=coordinates|polyline, precision=1..7 (polyline only).
func (h *DashboardHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	opts, fieldErrors := parseMapOptions(r)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid map options", fieldErrors)
		return
	}

	h.serve(w, r, func(ctx context.Context, sess *session.Session) (interface{}, error) {
		return h.dashboard.Map(ctx, sess.Hours, sess.View, opts)
	})
}

// GetTrends handles GET /v1/sessions/{sessionId}/dashboard/trends.
func (h *DashboardHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, sess *session.Session) (interface{}, error) {
		return h.dashboard.Trends(ctx, sess.Hours)
	})
}

// GetAnalytics handles GET /v1/sessions/{sessionId}/dashboard/analytics.
func (h *DashboardHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, sess *session.Session) (interface{}, error) {
		return h.dashboard.Analytics(ctx, sess.Hours)
	})
}

// serve resolves the session and renders the view built from its range.
func (h *DashboardHandler) serve(w http.ResponseWriter, r *http.Request, build func(context.Context, *session.Session) (interface{}, error)) {
	sess, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	payload, err := build(r.Context(), sess)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, payload)
}

func parseMapOptions(r *http.Request) (dashboard.MapOptions, []models.FieldError) {
	q := r.URL.Query()
	opts := dashboard.MapOptions{
		PathEncoding: dashboard.PathEncodingCoordinates,
		Precision:    polyline.DefaultPrecision,
	}

	var fieldErrors []models.FieldError
	switch enc := q.Get("pathEncoding"); enc {
	case "", dashboard.PathEncodingCoordinates:
	case dashboard.PathEncodingPolyline:
		opts.PathEncoding = enc
	default:
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   "pathEncoding",
			Message: "must be coordinates or polyline",
			Code:    "INVALID_ENUM",
		})
	}

	if raw := q.Get("precision"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || !polyline.ValidPrecision(p) {
			fieldErrors = append(fieldErrors, models.FieldError{
				Field:   "precision",
				Message: "must be an integer between 1 and 7",
				Code:    "OUT_OF_RANGE",
			})
		} else {
			opts.Precision = p
		}
	}
	return opts, fieldErrors
}
