package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/auth"
	"github.com/ukydev/trip-approvals/internal/db"
	"github.com/ukydev/trip-approvals/internal/export"
	"github.com/ukydev/trip-approvals/internal/fieldevent"
	"github.com/ukydev/trip-approvals/internal/lifecycle"
	"github.com/ukydev/trip-approvals/internal/middleware"
	"github.com/ukydev/trip-approvals/internal/models"
	"github.com/ukydev/trip-approvals/internal/notify"
	"github.com/ukydev/trip-approvals/internal/planning"
	"github.com/ukydev/trip-approvals/internal/readmodel"
)

type server struct {
	handler  http.Handler
	auth     *auth.Service
	refs     *db.ReferenceStore
	users    *db.UserStore
	sent     *notify.Recorder
	clientID string
	driverID string
	vehicle  string
	tokens   map[models.Role]string
	driver   string
}

func newServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()
	records := db.NewMemoryStore()
	trips := db.NewTripStore(records, 0)
	events := db.NewEventStore(records, 0)
	refs := db.NewReferenceStore(records, 0)
	users := db.NewUserStore(records, 0)

	logger, _ := test.NewNullLogger()
	entry := log.NewEntry(logger)
	authService := auth.NewService("handler-secret", time.Hour)
	machine := lifecycle.NewMachine()
	sent := &notify.Recorder{}

	rt := Router{
		Auth:      NewAuthHandler(authService, users, refs, entry),
		Trips:     NewTripHandler(planning.NewService(trips, refs, machine, entry), fieldevent.NewRecorder(trips, events, machine, sent, entry), readmodel.NewLoader(trips, refs, events), 30, entry),
		Reference: NewReferenceHandler(refs, entry),
		AuthMW:    middleware.NewAuthMiddleware(authService),
		RateLimit: middleware.NewRateLimitMiddleware(),
		Log:       entry,
	}

	client, err := refs.InsertClient(ctx, models.Client{Name: "Andes Mining"})
	require.NoError(t, err)
	drv, err := refs.InsertDriver(ctx, models.Driver{Name: "Rosa Vera", LicenseNumber: "L-1", Status: models.StatusActive})
	require.NoError(t, err)
	veh, err := refs.InsertVehicle(ctx, models.Vehicle{Plate: "PBA-1234", Status: models.StatusActive})
	require.NoError(t, err)

	s := &server{
		handler:  rt.Handler(),
		auth:     authService,
		refs:     refs,
		users:    users,
		sent:     sent,
		clientID: client.ID,
		driverID: drv.ID,
		vehicle:  veh.ID,
		tokens:   map[models.Role]string{},
	}
	for _, role := range []models.Role{models.RoleAdmin, models.RoleUser, models.RoleSupervisorTier1, models.RoleSupervisorTier2, models.RoleSupervisorTier3} {
		token, err := authService.GenerateToken(&models.User{ID: "u-" + string(role), Username: string(role), Role: role})
		require.NoError(t, err)
		s.tokens[role] = token
	}
	s.driver, err = authService.GenerateToken(&models.User{ID: "u-rosa", Username: "rosa", Role: models.RoleDriver, DriverID: drv.ID})
	require.NoError(t, err)
	return s
}

func (s *server) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "198.51.100.7:5000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *server) draft(answers map[string]string) models.TripDraft {
	return models.TripDraft{
		ClientID:    s.clientID,
		DriverID:    s.driverID,
		VehicleID:   s.vehicle,
		Origin:      "Quito",
		Destination: "Lago Agrio",
		DepartureAt: time.Date(2026, 11, 3, 6, 0, 0, 0, time.UTC),
		ArrivalAt:   time.Date(2026, 11, 3, 14, 0, 0, 0, time.UTC),
		RiskAnswers: answers,
	}
}

func lowAnswers() map[string]string {
	return map[string]string{
		"distance": "short", "road_condition": "degraded", "weather": "clear",
		"communication": "partial", "convoy": "paired", "traffic": "moderate",
	}
}

func highAnswers() map[string]string {
	return map[string]string{
		"distance": "long", "road_condition": "unpaved", "weather": "severe",
		"communication": "none", "convoy": "solo", "traffic": "heavy",
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestTripLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)

	w := s.do(t, "POST", "/api/trips", s.tokens[models.RoleUser], s.draft(lowAnswers()))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var trip models.Trip
	decodeBody(t, w, &trip)
	assert.Equal(t, 10, trip.RiskScore)
	assert.Equal(t, models.TripPendingApproval, trip.Status)
	assert.Equal(t, "TRP-000001", trip.Code)
	base := "/api/trips/" + trip.ID

	w = s.do(t, "GET", "/api/approvals", s.tokens[models.RoleSupervisorTier1], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var queue []readmodel.TripRow
	decodeBody(t, w, &queue)
	require.Len(t, queue, 1)
	assert.Equal(t, trip.ID, queue[0].ID)

	w = s.do(t, "GET", "/api/approvals", s.tokens[models.RoleSupervisorTier2], nil)
	decodeBody(t, w, &queue)
	assert.Empty(t, queue)

	w = s.do(t, "POST", base+"/approve", s.tokens[models.RoleSupervisorTier2], nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, "POST", base+"/reject", s.tokens[models.RoleSupervisorTier1], decisionRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var errBody errorResponse
	decodeBody(t, w, &errBody)
	assert.Contains(t, errBody.Fields, "comment")

	w = s.do(t, "POST", base+"/start", s.driver, fieldEventRequest{Location: &models.Location{Lat: -0.18, Lon: -78.46}})
	assert.Equal(t, http.StatusConflict, w.Code, "cannot start before approval")
	decodeBody(t, w, &errBody)
	assert.Equal(t, []string{"approve", "reject"}, errBody.Allowed)

	w = s.do(t, "POST", base+"/approve", s.tokens[models.RoleSupervisorTier1], decisionRequest{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, "GET", "/api/driver/agenda", s.driver, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var agenda []readmodel.AgendaItem
	decodeBody(t, w, &agenda)
	require.Len(t, agenda, 1)
	assert.Equal(t, lifecycle.EventStart, agenda[0].NextAction)

	w = s.do(t, "POST", base+"/start", s.driver, fieldEventRequest{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(t, "POST", base+"/start", s.driver, fieldEventRequest{Location: &models.Location{Lat: -0.18, Lon: -78.46}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var started fieldevent.Result
	decodeBody(t, w, &started)
	assert.Equal(t, models.TripInProgress, started.Trip.Status)

	w = s.do(t, "POST", base+"/start", s.driver, fieldEventRequest{Location: &models.Location{Lat: -0.18, Lon: -78.46}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, "POST", base+"/finish", s.driver, fieldEventRequest{Location: &models.Location{Lat: 0.08, Lon: -76.88}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, "POST", base+"/finish", s.driver, fieldEventRequest{
		Location:  &models.Location{Lat: 0.08, Lon: -76.88},
		Signature: "data:image/png;base64,iVBOR",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var finished fieldevent.Result
	decodeBody(t, w, &finished)
	assert.Equal(t, models.TripCompleted, finished.Trip.Status)
	require.NotNil(t, finished.Signature)
	assert.Greater(t, finished.Event.DistanceKm, 100.0)
	assert.Len(t, s.sent.Sent(), 2)

	w = s.do(t, "GET", base, s.driver, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestResubmitRoutesToNewTier(t *testing.T) {
	s := newServer(t)
	w := s.do(t, "POST", "/api/trips", s.tokens[models.RoleUser], s.draft(lowAnswers()))
	require.Equal(t, http.StatusCreated, w.Code)
	var trip models.Trip
	decodeBody(t, w, &trip)

	w = s.do(t, "POST", "/api/trips/"+trip.ID+"/reject", s.tokens[models.RoleSupervisorTier1], decisionRequest{Comment: "weather"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, "PUT", "/api/trips/"+trip.ID, s.tokens[models.RoleUser], s.draft(highAnswers()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeBody(t, w, &trip)
	assert.Equal(t, 25, trip.RiskScore)
	assert.Equal(t, models.TripPendingApproval, trip.Status)
	require.Len(t, trip.Reviews, 1)

	var queue []readmodel.TripRow
	decodeBody(t, s.do(t, "GET", "/api/approvals", s.tokens[models.RoleSupervisorTier3], nil), &queue)
	assert.Len(t, queue, 1)
}

func TestPermissions(t *testing.T) {
	s := newServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", "GET", "/api/trips", "", http.StatusUnauthorized},
		{"driver cannot plan", "POST", "/api/trips", s.driver, http.StatusForbidden},
		{"driver cannot list", "GET", "/api/trips", s.driver, http.StatusForbidden},
		{"planner cannot approve", "POST", "/api/trips/x/approve", s.tokens[models.RoleUser], http.StatusForbidden},
		{"admin cannot approve", "POST", "/api/trips/x/approve", s.tokens[models.RoleAdmin], http.StatusForbidden},
		{"supervisor cannot drive", "POST", "/api/trips/x/start", s.tokens[models.RoleSupervisorTier1], http.StatusForbidden},
		{"planner has no dashboard", "GET", "/api/dashboard", s.tokens[models.RoleUser], http.StatusForbidden},
		{"planner cannot register users", "POST", "/api/auth/register", s.tokens[models.RoleUser], http.StatusForbidden},
		{"planner cannot register clients", "POST", "/api/clients", s.tokens[models.RoleUser], http.StatusForbidden},
		{"admin without driver link has no agenda", "GET", "/api/driver/agenda", s.tokens[models.RoleAdmin], http.StatusForbidden},
		{"unknown trip", "GET", "/api/trips/missing", s.tokens[models.RoleUser], http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.do(t, tt.method, tt.path, tt.token, nil).Code)
		})
	}
}

func TestSubmit_ValidationAndReferences(t *testing.T) {
	s := newServer(t)

	bad := s.draft(lowAnswers())
	bad.Origin = ""
	bad.RiskAnswers["weather"] = "hail"
	w := s.do(t, "POST", "/api/trips", s.tokens[models.RoleUser], bad)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body errorResponse
	decodeBody(t, w, &body)
	assert.Contains(t, body.Fields, "origin")
	assert.Contains(t, body.Fields, "risk_answers.weather")

	unknown := s.draft(lowAnswers())
	unknown.VehicleID = "nope"
	w = s.do(t, "POST", "/api/trips", s.tokens[models.RoleUser], unknown)
	require.Equal(t, http.StatusBadRequest, w.Code)
	decodeBody(t, w, &body)
	assert.Contains(t, body.Fields, "vehicle_id")

	req := httptest.NewRequest("POST", "/api/trips", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+s.tokens[models.RoleUser])
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListExportAndDashboard(t *testing.T) {
	s := newServer(t)
	for _, answers := range []map[string]string{lowAnswers(), highAnswers()} {
		require.Equal(t, http.StatusCreated, s.do(t, "POST", "/api/trips", s.tokens[models.RoleUser], s.draft(answers)).Code)
	}

	w := s.do(t, "GET", "/api/trips?sort=risk_desc", s.tokens[models.RoleUser], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []readmodel.TripRow
	decodeBody(t, w, &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, 25, rows[0].RiskScore)
	assert.Equal(t, "Andes Mining", rows[0].ClientName)

	decodeBody(t, s.do(t, "GET", "/api/trips?q=TRP-000001", s.tokens[models.RoleUser], nil), &rows)
	assert.Len(t, rows, 1)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/trips?sort=sideways", s.tokens[models.RoleUser], nil).Code)

	w = s.do(t, "GET", "/api/trips/export", s.tokens[models.RoleUser], nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, export.ContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")
	assert.NotZero(t, w.Body.Len())

	w = s.do(t, "GET", "/api/dashboard?horizon_days=7", s.tokens[models.RoleAdmin], nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash readmodel.Dashboard
	decodeBody(t, w, &dash)
	assert.Equal(t, 2, dash.Total)
	assert.Equal(t, 7, dash.HorizonDays)

	assert.Equal(t, http.StatusBadRequest, s.do(t, "GET", "/api/dashboard?horizon_days=-1", s.tokens[models.RoleAdmin], nil).Code)
}

func TestReferenceRegistration(t *testing.T) {
	s := newServer(t)
	admin := s.tokens[models.RoleAdmin]

	w := s.do(t, "POST", "/api/vehicles", admin, models.Vehicle{Plate: " pcd-987 "})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var v models.Vehicle
	decodeBody(t, w, &v)
	assert.Equal(t, "PCD-987", v.Plate)
	assert.Equal(t, models.StatusActive, v.Status)
	assert.NotEmpty(t, v.ID)

	w = s.do(t, "POST", "/api/drivers", admin, models.Driver{Name: "Luis", Status: "retired"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body errorResponse
	decodeBody(t, w, &body)
	assert.Contains(t, body.Fields, "license_number")
	assert.Contains(t, body.Fields, "status")

	assert.Equal(t, http.StatusBadRequest, s.do(t, "POST", "/api/clients", admin, models.Client{}).Code)

	var clients []models.Client
	decodeBody(t, s.do(t, "GET", "/api/clients", s.tokens[models.RoleUser], nil), &clients)
	assert.Len(t, clients, 1)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.NewValidation("f", "bad"), http.StatusBadRequest},
		{&apperr.AuthorizationError{Reason: "no"}, http.StatusForbidden},
		{apperr.ErrNotFound, http.StatusNotFound},
		{&apperr.InvalidTransition{From: "approved", Event: "approve"}, http.StatusConflict},
		{apperr.ErrStaleState, http.StatusConflict},
		{apperr.ErrDuplicateEvent, http.StatusConflict},
		{db.ErrDuplicate, http.StatusConflict},
		{apperr.ErrLocationUnavailable, http.StatusUnprocessableEntity},
		{apperr.Storage("load", errors.New("timeout")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("reassess: %w: %w", apperr.ErrInconsistentRecord, apperr.NewValidation("distance", "unknown option")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}

func TestWriteError_HidesStorageCause(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, apperr.Storage("load trip", errors.New("mongo: connection refused 10.0.0.3")))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
}

func TestWriteError_InconsistentRecordIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, fmt.Errorf("reassess trip t1: %w: %w", apperr.ErrInconsistentRecord, apperr.NewValidation("distance", "unknown option teleport")))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body.Error)
	assert.Empty(t, body.Fields)
}
