package handlers

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/db"
	"github.com/ukydev/trip-approvals/internal/models"
)

// ReferenceHandler registers and lists clients, drivers and vehicles.
type ReferenceHandler struct {
	refs *db.ReferenceStore
	log  *log.Entry
}

// NewReferenceHandler wires a ReferenceHandler.
func NewReferenceHandler(refs *db.ReferenceStore, logger *log.Entry) *ReferenceHandler {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &ReferenceHandler{refs: refs, log: logger.WithField("component", "reference")}
}

func normalizeStatus(status string, verr *apperr.ValidationError) string {
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "":
		return models.StatusActive
	case models.StatusActive, models.StatusInactive:
		return status
	default:
		verr.Add("status", "must be active or inactive")
		return status
	}
}

func (h *ReferenceHandler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.refs.FindClients(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *ReferenceHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var c models.Client
	if err := decode(w, r, &c); err != nil {
		writeError(w, err)
		return
	}
	c.ID = ""
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		writeError(w, apperr.NewValidation("name", "required"))
		return
	}
	stored, err := h.refs.InsertClient(r.Context(), c)
	if err != nil {
		writeError(w, err)
		return
	}
	h.log.WithFields(log.Fields{"client_id": stored.ID, "name": stored.Name}).Info("Client registered")
	writeJSON(w, http.StatusCreated, stored)
}

func (h *ReferenceHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.refs.FindDrivers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

func (h *ReferenceHandler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var d models.Driver
	if err := decode(w, r, &d); err != nil {
		writeError(w, err)
		return
	}
	d.ID = ""
	d.Name = strings.TrimSpace(d.Name)
	d.LicenseNumber = strings.TrimSpace(d.LicenseNumber)

	verr := &apperr.ValidationError{}
	if d.Name == "" {
		verr.Add("name", "required")
	}
	if d.LicenseNumber == "" {
		verr.Add("license_number", "required")
	}
	d.Status = normalizeStatus(d.Status, verr)
	if err := verr.OrNil(); err != nil {
		writeError(w, err)
		return
	}
	stored, err := h.refs.InsertDriver(r.Context(), d)
	if err != nil {
		writeError(w, err)
		return
	}
	h.log.WithFields(log.Fields{"driver_id": stored.ID, "name": stored.Name}).Info("Driver registered")
	writeJSON(w, http.StatusCreated, stored)
}

func (h *ReferenceHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.refs.FindVehicles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (h *ReferenceHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var v models.Vehicle
	if err := decode(w, r, &v); err != nil {
		writeError(w, err)
		return
	}
	v.ID = ""
	v.Plate = strings.ToUpper(strings.TrimSpace(v.Plate))

	verr := &apperr.ValidationError{}
	if v.Plate == "" {
		verr.Add("plate", "required")
	}
	if v.Year < 0 {
		verr.Add("year", "cannot be negative")
	}
	v.Status = normalizeStatus(v.Status, verr)
	if err := verr.OrNil(); err != nil {
		writeError(w, err)
		return
	}
	stored, err := h.refs.InsertVehicle(r.Context(), v)
	if err != nil {
		writeError(w, err)
		return
	}
	h.log.WithFields(log.Fields{"vehicle_id": stored.ID, "plate": stored.Plate}).Info("Vehicle registered")
	writeJSON(w, http.StatusCreated, stored)
}
