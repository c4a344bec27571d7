package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/export"
	"github.com/ukydev/trip-approvals/internal/fieldevent"
	"github.com/ukydev/trip-approvals/internal/middleware"
	"github.com/ukydev/trip-approvals/internal/models"
	"github.com/ukydev/trip-approvals/internal/planning"
	"github.com/ukydev/trip-approvals/internal/readmodel"
)

// TripHandler serves trip planning, review, execution and the read views.
type TripHandler struct {
	planning    *planning.Service
	recorder    *fieldevent.Recorder
	loader      *readmodel.Loader
	horizonDays int
	now         func() time.Time
	log         *log.Entry
}

// NewTripHandler wires a TripHandler. horizonDays is the dashboard default.
func NewTripHandler(p *planning.Service, rec *fieldevent.Recorder, loader *readmodel.Loader, horizonDays int, logger *log.Entry) *TripHandler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &TripHandler{
		planning:    p,
		recorder:    rec,
		loader:      loader,
		horizonDays: horizonDays,
		now:         time.Now,
		log:         logger.WithField("component", "http"),
	}
}

type decisionRequest struct {
	Comment string `json:"comment"`
}

type fieldEventRequest struct {
	Location  *models.Location `json:"location"`
	Signature string           `json:"signature,omitempty"`
}

func actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	a, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "User context not found")
	}
	return a, ok
}

// Submit handles POST /api/trips.
func (h *TripHandler) Submit(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var draft models.TripDraft
	if err := decode(w, r, &draft); err != nil {
		writeError(w, err)
		return
	}
	trip, err := h.planning.Submit(r.Context(), draft, a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, trip)
}

// Resubmit handles PUT /api/trips/{id}.
func (h *TripHandler) Resubmit(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var draft models.TripDraft
	if err := decode(w, r, &draft); err != nil {
		writeError(w, err)
		return
	}
	trip, err := h.planning.Resubmit(r.Context(), mux.Vars(r)["id"], draft, a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// Get handles GET /api/trips/{id}.
func (h *TripHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	trip, err := h.planning.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if a.Role == models.RoleDriver && trip.DriverID != a.DriverID {
		writeError(w, &apperr.AuthorizationError{Reason: "drivers may only view their own trips"})
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// Approve handles POST /api/trips/{id}/approve.
func (h *TripHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decision(w, r, h.planning.Approve)
}

// Reject handles POST /api/trips/{id}/reject.
func (h *TripHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decision(w, r, h.planning.Reject)
}

func (h *TripHandler) decision(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, id string, a models.Actor, comment string) (models.Trip, error)) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	trip, err := apply(r.Context(), mux.Vars(r)["id"], a, req.Comment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trip)
}

// Start handles POST /api/trips/{id}/start.
func (h *TripHandler) Start(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req fieldEventRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.recorder.RecordStart(r.Context(), mux.Vars(r)["id"], a, req.Location)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Finish handles POST /api/trips/{id}/finish.
func (h *TripHandler) Finish(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req fieldEventRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.recorder.RecordFinish(r.Context(), mux.Vars(r)["id"], a, req.Location, req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func listQuery(r *http.Request) (readmodel.Query, error) {
	sort, err := readmodel.ParseSort(r.URL.Query().Get("sort"))
	if err != nil {
		return readmodel.Query{}, err
	}
	return readmodel.Query{Text: r.URL.Query().Get("q"), Sort: sort}, nil
}

// List handles GET /api/trips?q=&sort=.
func (h *TripHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := h.loader.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readmodel.TripList(d, q))
}

// Export handles GET /api/trips/export and streams the filtered list as a workbook.
func (h *TripHandler) Export(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := h.loader.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	now := h.now()
	var buf bytes.Buffer
	if err := export.WriteTripList(&buf, readmodel.TripList(d, q), now); err != nil {
		h.log.WithError(err).Error("Failed to build trip workbook")
		writeMessage(w, http.StatusInternalServerError, "Failed to generate Excel file")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename(now)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Approvals handles GET /api/approvals: the queue for the caller's own tier.
func (h *TripHandler) Approvals(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	d, err := h.loader.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readmodel.ApprovalQueue(d, a.Role))
}

// Dashboard handles GET /api/dashboard?horizon_days=.
func (h *TripHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	horizon := h.horizonDays
	if raw := r.URL.Query().Get("horizon_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, apperr.NewValidation("horizon_days", "must be a non-negative integer"))
			return
		}
		horizon = n
	}
	d, err := h.loader.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readmodel.BuildDashboard(d, h.now(), horizon))
}

// Agenda handles GET /api/driver/agenda for the driver linked to the caller.
func (h *TripHandler) Agenda(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if a.DriverID == "" {
		writeError(w, &apperr.AuthorizationError{Reason: "the account is not linked to a driver"})
		return
	}
	d, err := h.loader.Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, readmodel.DriverAgenda(d, a.DriverID))
}
