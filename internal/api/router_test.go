package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadweather/roadweather/internal/api"
	"github.com/roadweather/roadweather/internal/api/models"
	"github.com/roadweather/roadweather/internal/dashboard"
	"github.com/roadweather/roadweather/internal/hours"
	"github.com/roadweather/roadweather/internal/resilience"
	"github.com/roadweather/roadweather/internal/session"
	"github.com/roadweather/roadweather/internal/table"
	"github.com/roadweather/roadweather/internal/warehouse"
)

const testCity = "Los Angeles"

func newTestRouter(t *testing.T, repo warehouse.Repository) http.Handler {
	t.Helper()
	logger := zerolog.New(io.Discard)

	registry := resilience.NewRegistry()
	guarded := warehouse.NewGuardedRepository(repo, registry)

	dash, err := dashboard.NewService(dashboard.ServiceConfig{
		Repository: guarded,
		City:       testCity,
		Logger:     logger,
	})
	require.NoError(t, err)

	sessions := session.NewService(session.ServiceConfig{
		Repository: session.NewInMemoryRepository(),
		Reloader:   dash,
		Logger:     logger,
	})

	return api.NewRouter(api.RouterConfig{
		Version:   "test",
		BuildTime: "2024-01-01T00:00:00Z",
		Logger:    logger,
		Dashboard: dash,
		Sessions:  sessions,
		Warehouse: guarded,
		Registry:  registry,
	})
}

func sampleRouter(t *testing.T) http.Handler {
	t.Helper()
	return newTestRouter(t, warehouse.NewSampleRepository(testCity, time.Now()))
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, router http.Handler) models.Session {
	t.Helper()

	w := do(t, router, http.MethodPost, "/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var sess models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	return sess
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	return problem
}

func TestRouter_HealthCheck(t *testing.T) {
	router := sampleRouter(t)

	w := do(t, router, http.MethodGet, "/v1/ops/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	router := sampleRouter(t)

	w := do(t, router, http.MethodGet, "/v1/ops/ready", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_ReadinessCheck_WarehouseDown(t *testing.T) {
	router := newTestRouter(t, &failingRepo{err: errors.New("connection refused")})

	w := do(t, router, http.MethodGet, "/v1/ops/ready", nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusFail, health.Status)
}

func TestRouter_SystemStatus(t *testing.T) {
	router := sampleRouter(t)
	createSession(t, router)

	w := do(t, router, http.MethodGet, "/v1/ops/status", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))

	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Equal(t, testCity, status.City)
	require.Len(t, status.Dependencies, 1)
	assert.Equal(t, warehouse.DependencyName, status.Dependencies[0].Name)
	assert.Equal(t, "closed", status.Dependencies[0].CircuitState)
	assert.Equal(t, 1, status.Sessions)
	assert.Equal(t, 1, status.Cache.Size)
	assert.Equal(t, int64(1), status.Cache.Misses)
}

func TestRouter_ListPresets(t *testing.T) {
	router := sampleRouter(t)

	w := do(t, router, http.MethodGet, "/v1/metadata/presets", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var presets models.Presets
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &presets))
	require.Len(t, presets.Items, 7)
	assert.Equal(t, "midnight-4am", presets.Items[0].ID)
	assert.Equal(t, "Hours 0:00-3:00", presets.Items[0].HourText)
	assert.Equal(t, hours.PresetAll, presets.Items[6].ID)
	assert.Equal(t, 23, presets.Items[6].End)
}

func TestRouter_CreateSession(t *testing.T) {
	router := sampleRouter(t)

	w := do(t, router, http.MethodPost, "/v1/sessions", nil)

	require.Equal(t, http.StatusCreated, w.Code)

	var sess models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))

	assert.Equal(t, "/v1/sessions/"+sess.SessionID, w.Header().Get("Location"))
	assert.Contains(t, sess.SessionID, "ses_")
	assert.Equal(t, testCity, sess.City)
	assert.Equal(t, models.HourRange{Start: 0, End: 23}, sess.Hours)
	assert.Equal(t, "Hours 0:00-23:00", sess.HourText)
	assert.Equal(t, 36.7783, sess.View.Latitude)
	assert.Equal(t, -119.4179, sess.View.Longitude)
	assert.Equal(t, float64(6), sess.View.Zoom)
	assert.Nil(t, sess.Warning)
}

func TestRouter_GetSession(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)

	w := do(t, router, http.MethodGet, "/v1/sessions/"+sess.SessionID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/v1/sessions/ses_missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	problem := decodeProblem(t, w)
	assert.Equal(t, models.ProblemTypeNotFound, problem.Type)
	assert.Equal(t, "/v1/sessions/ses_missing", problem.Instance)
}

func TestRouter_SetHours(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)
	path := "/v1/sessions/" + sess.SessionID + "/hours"

	w := do(t, router, http.MethodPut, path, map[string]int{"start": 8, "end": 11})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.HourRange{Start: 8, End: 11}, got.Hours)
	assert.Equal(t, "Hours 8:00-11:00", got.HourText)

	w = do(t, router, http.MethodPut, path, map[string]int{"start": 9, "end": 9})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Hour 9:00", got.HourText)
}

func TestRouter_SetHours_Validation(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)
	path := "/v1/sessions/" + sess.SessionID + "/hours"

	tests := []struct {
		name string
		body interface{}
	}{
		{"start after end", map[string]int{"start": 12, "end": 3}},
		{"out of bounds", map[string]int{"start": 0, "end": 24}},
		{"missing end", map[string]int{"start": 4}},
		{"unknown field", map[string]int{"start": 4, "end": 7, "step": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPut, path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, models.ProblemTypeValidation, decodeProblem(t, w).Type)
		})
	}

	// Rejected transitions leave the state unchanged
	w := do(t, router, http.MethodGet, "/v1/sessions/"+sess.SessionID, nil)
	var got models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.HourRange{Start: 0, End: 23}, got.Hours)
}

func TestRouter_SetHours_MissingFieldsReported(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)

	w := do(t, router, http.MethodPut, "/v1/sessions/"+sess.SessionID+"/hours", map[string]int{})

	require.Equal(t, http.StatusBadRequest, w.Code)
	problem := decodeProblem(t, w)
	require.Len(t, problem.Errors, 2)
	assert.Equal(t, "start", problem.Errors[0].Field)
	assert.Equal(t, "end", problem.Errors[1].Field)
}

func TestRouter_SetHours_RequiresJSON(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)

	req := httptest.NewRequest(http.MethodPut, "/v1/sessions/"+sess.SessionID+"/hours", bytes.NewReader([]byte("start=1")))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_ApplyPreset(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)
	base := "/v1/sessions/" + sess.SessionID + "/presets/"

	w := do(t, router, http.MethodPost, base+"noon-4pm", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.HourRange{Start: 12, End: 15}, got.Hours)

	w = do(t, router, http.MethodPost, base+"all", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.HourRange{Start: 0, End: 23}, got.Hours)

	w = do(t, router, http.MethodPost, base+"dawn", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_SetView(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)
	path := "/v1/sessions/" + sess.SessionID + "/view"

	w := do(t, router, http.MethodPut, path, map[string]float64{"latitude": 34.05, "longitude": -118.24, "zoom": 10, "pitch": 45})

	require.Equal(t, http.StatusOK, w.Code)
	var got models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.View{Latitude: 34.05, Longitude: -118.24, Zoom: 10, Pitch: 45}, got.View)
	assert.Equal(t, models.HourRange{Start: 0, End: 23}, got.Hours)

	w = do(t, router, http.MethodPut, path, map[string]float64{"latitude": 91, "longitude": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPut, path, map[string]float64{"zoom": 3})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_DeleteSession(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)
	path := "/v1/sessions/" + sess.SessionID

	w := do(t, router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, router, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_DashboardSummary(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)

	w := do(t, router, http.MethodGet, "/v1/sessions/"+sess.SessionID+"/dashboard/summary", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var summary dashboard.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, hours.All, summary.Range)
	assert.Equal(t, testCity, summary.City)
	require.Len(t, summary.Metrics, 3)
	assert.Equal(t, "6", summary.Metrics[0].Value)
	assert.Equal(t, 6, summary.ProcessedGeometries)
}

func TestRouter_DashboardMap(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)
	path := "/v1/sessions/" + sess.SessionID + "/dashboard/map"

	w := do(t, router, http.MethodGet, path, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var payload dashboard.MapPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.NotNil(t, payload.Layer)
	assert.Equal(t, dashboard.PathEncodingCoordinates, payload.Layer.PathEncoding)
	assert.Len(t, payload.Layer.Data, 6)
	assert.Equal(t, dashboard.DefaultView(), payload.View)
	_, isList := payload.Layer.Data[0][dashboard.PathField].([]interface{})
	assert.True(t, isList)

	w = do(t, router, http.MethodGet, path+"?pathEncoding=polyline&precision=6", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Equal(t, dashboard.PathEncodingPolyline, payload.Layer.PathEncoding)
	assert.Equal(t, 6, payload.Layer.Precision)
	_, isString := payload.Layer.Data[0][dashboard.PathField].(string)
	assert.True(t, isString)
}

func TestRouter_DashboardMap_InvalidOptions(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)
	path := "/v1/sessions/" + sess.SessionID + "/dashboard/map"

	w := do(t, router, http.MethodGet, path+"?pathEncoding=wkt", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodGet, path+"?pathEncoding=polyline&precision=12", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	problem := decodeProblem(t, w)
	require.Len(t, problem.Errors, 1)
	assert.Equal(t, "precision", problem.Errors[0].Field)
}

func TestRouter_DashboardTrendsAndAnalytics(t *testing.T) {
	router := sampleRouter(t)
	sess := createSession(t, router)
	base := "/v1/sessions/" + sess.SessionID

	w := do(t, router, http.MethodPut, base+"/hours", map[string]int{"start": 8, "end": 11})
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, base+"/dashboard/trends", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var trends dashboard.Trends
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &trends))
	assert.Len(t, trends.Charts, 4)
	assert.Len(t, trends.Hourly, 4)

	w = do(t, router, http.MethodGet, base+"/dashboard/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var analytics dashboard.Analytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &analytics))
	assert.Equal(t, hours.Range{Start: 8, End: 11}, analytics.Range)
	assert.NotNil(t, analytics.LengthHistogram)
	assert.NotNil(t, analytics.SpeedHistogram)
}

func TestRouter_WarehouseUnavailable(t *testing.T) {
	router := newTestRouter(t, &failingRepo{err: errors.New("connection refused")})

	sess := createSession(t, router)
	require.NotNil(t, sess.Warning, "state is kept when the initial load fails")
	assert.Equal(t, models.HourRange{Start: 0, End: 23}, sess.Hours)

	// Failures are not retried; the breaker opens after a few of them.
	path := "/v1/sessions/" + sess.SessionID + "/dashboard/summary"
	var w *httptest.ResponseRecorder
	for range 5 {
		w = do(t, router, http.MethodGet, path, nil)
		if w.Code == http.StatusServiceUnavailable {
			break
		}
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	}

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	assert.Equal(t, models.ProblemTypeUnavailable, decodeProblem(t, w).Type)

	w = do(t, router, http.MethodGet, "/v1/ops/status", nil)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusFail, status.Status)
	assert.Equal(t, "open", status.Dependencies[0].CircuitState)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router := sampleRouter(t)

	w := do(t, router, http.MethodGet, "/v1/ops/health", nil)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestRouter_NotFound(t *testing.T) {
	router := sampleRouter(t)

	w := do(t, router, http.MethodGet, "/v1/unknown", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

type failingRepo struct {
	err error
}

func (r *failingRepo) LoadHighways(context.Context, hours.Range) (*table.Table, error) {
	return nil, r.err
}

func (r *failingRepo) LoadWeatherTrends(context.Context, hours.Range) ([]warehouse.HourlyObservation, error) {
	return nil, r.err
}

func (r *failingRepo) Ping(context.Context) error {
	return r.err
}
