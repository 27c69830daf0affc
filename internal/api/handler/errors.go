package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/roadweather/roadweather/internal/api/models"
	"github.com/roadweather/roadweather/internal/api/response"
	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/session"
	"github.com/roadweather/roadweather/internal/warehouse"
)

// retryAfterSeconds is the Retry-After hint sent while the warehouse is down.
const retryAfterSeconds = 30

// maxBodyBytes bounds request bodies; every request body is a few numbers.
const maxBodyBytes = 1 << 16

// writeServiceError maps a domain error to a problem response.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		response.NotFound(w, r, "session not found")
	case errors.Is(err, hours.ErrUnknownPreset):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, hours.ErrInvalidRange):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, session.ErrInvalidView):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, warehouse.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("warehouse unavailable")
		response.ServiceUnavailable(w, r, "the data warehouse is temporarily unavailable", retryAfterSeconds)
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written.
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}

// decodeJSON decodes a bounded request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		detail := "invalid JSON body"
		if errors.Is(err, io.EOF) {
			detail = "request body is required"
		}
		response.BadRequest(w, r, detail, nil)
		return false
	}
	return true
}

func missingField(name string) models.FieldError {
	return models.FieldError{Field: name, Message: "is required", Code: "REQUIRED"}
}
