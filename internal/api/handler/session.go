package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/roadweather/roadweather/internal/api/models"
	"github.com/roadweather/roadweather/internal/api/response"
	"github.com/roadweather/roadweather/internal/dashboard"
	"github.com/roadweather/roadweather/internal/session"
)

// SessionHandler handles dashboard session endpoints.
type SessionHandler struct {
	sessions *session.Service
	city     string
	logger   zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *session.Service, city string, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		city:     city,
		logger:   logger,
	}
}

// CreateSession handles POST /v1/sessions - start a session on all hours.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Create(r.Context())
	if sess == nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.Created(w, r, "/v1/sessions/"+sess.ID, h.toModel(sess, err))
}

// GetSession handles GET /v1/sessions/{sessionId}.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, h.toModel(sess, nil))
}

// DeleteSession handles DELETE /v1/sessions/{sessionId}.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.NoContent(w, r)
}

// SetHours handles PUT /v1/sessions/{sessionId}/hours - the hour slider.
func (h *SessionHandler) SetHours(w http.ResponseWriter, r *http.Request) {
	var input models.SetHoursRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	var fieldErrors []models.FieldError
	if input.Start == nil {
		fieldErrors = append(fieldErrors, missingField("start"))
	}
	if input.End == nil {
		fieldErrors = append(fieldErrors, missingField("end"))
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "start and end are required", fieldErrors)
		return
	}

	sess, err := h.sessions.SetHours(r.Context(), chi.URLParam(r, "sessionId"), *input.Start, *input.End)
	h.writeTransition(w, r, sess, err)
}

// ApplyPreset handles POST /v1/sessions/{sessionId}/presets/{presetId} - the
// quick-select buttons.
func (h *SessionHandler) ApplyPreset(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.ApplyPreset(r.Context(), chi.URLParam(r, "sessionId"), chi.URLParam(r, "presetId"))
	h.writeTransition(w, r, sess, err)
}

// SetView handles PUT /v1/sessions/{sessionId}/view - the map camera.
func (h *SessionHandler) SetView(w http.ResponseWriter, r *http.Request) {
	var input models.SetViewRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	var fieldErrors []models.FieldError
	if input.Latitude == nil {
		fieldErrors = append(fieldErrors, missingField("latitude"))
	}
	if input.Longitude == nil {
		fieldErrors = append(fieldErrors, missingField("longitude"))
	}
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "latitude and longitude are required", fieldErrors)
		return
	}

	view := dashboard.DefaultView()
	view.Latitude = *input.Latitude
	view.Longitude = *input.Longitude
	if input.Zoom != nil {
		view.Zoom = *input.Zoom
	}
	if input.Pitch != nil {
		view.Pitch = *input.Pitch
	}

	sess, err := h.sessions.SetView(r.Context(), chi.URLParam(r, "sessionId"), view)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, h.toModel(sess, nil))
}

// writeTransition answers an hour transition. The session service keeps the
// new range when the reload fails, so that case is still a 200 carrying a
// warning; the dashboard endpoints report the outage themselves.
func (h *SessionHandler) writeTransition(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	if sess == nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("reload after transition failed")
	}
	response.JSON(w, r, http.StatusOK, h.toModel(sess, err))
}

func (h *SessionHandler) toModel(sess *session.Session, reloadErr error) models.Session {
	m := models.Session{
		SessionID: sess.ID,
		City:      h.city,
		Hours:     models.HourRange{Start: sess.Hours.Start, End: sess.Hours.End},
		HourText:  sess.Hours.Text(),
		View: models.View{
			Latitude:  sess.View.Latitude,
			Longitude: sess.View.Longitude,
			Zoom:      sess.View.Zoom,
			Pitch:     sess.View.Pitch,
		},
		CreatedAt: models.Timestamp(sess.CreatedAt),
		UpdatedAt: models.Timestamp(sess.UpdatedAt),
	}
	if reloadErr != nil {
		warning := "data for the selected hours could not be loaded; dashboard views may be unavailable"
		m.Warning = &warning
	}
	return m
}
