package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/trip-approvals/internal/middleware"
)

// Login attempts allowed per client IP and window.
const (
	loginMaxRequests   = 10
	loginWindowSeconds = 60
)

// Router bundles the handlers and middleware the API is built from.
type Router struct {
	Auth      *AuthHandler
	Trips     *TripHandler
	Reference *ReferenceHandler
	AuthMW    *middleware.AuthMiddleware
	RateLimit *middleware.RateLimitMiddleware
	Log       *log.Entry
}

// Handler builds the HTTP routing tree.
func (rt Router) Handler() http.Handler {
	r := mux.NewRouter()
	logger := rt.Log
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	r.Use(middleware.RequestLogger(logger.WithField("component", "http")))
	r.Use(rt.AuthMW.Authenticate)

	perm := func(action string, h http.HandlerFunc) http.Handler {
		return rt.AuthMW.RequirePermission(action)(h)
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	login := http.HandlerFunc(rt.Auth.Login)
	api.Handle("/auth/login", rt.RateLimit.RateLimit(loginMaxRequests, loginWindowSeconds)(login)).Methods(http.MethodPost)
	api.Handle("/auth/register", perm("manage_users", rt.Auth.Register)).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", rt.Auth.GetProfile).Methods(http.MethodGet)

	api.Handle("/clients", perm("view_trips", rt.Reference.ListClients)).Methods(http.MethodGet)
	api.Handle("/clients", perm("manage_reference", rt.Reference.CreateClient)).Methods(http.MethodPost)
	api.Handle("/drivers", perm("view_trips", rt.Reference.ListDrivers)).Methods(http.MethodGet)
	api.Handle("/drivers", perm("manage_reference", rt.Reference.CreateDriver)).Methods(http.MethodPost)
	api.Handle("/vehicles", perm("view_trips", rt.Reference.ListVehicles)).Methods(http.MethodGet)
	api.Handle("/vehicles", perm("manage_reference", rt.Reference.CreateVehicle)).Methods(http.MethodPost)

	trips := api.PathPrefix("/trips").Subrouter()
	trips.Handle("", perm("view_trips", rt.Trips.List)).Methods(http.MethodGet)
	trips.Handle("", perm("create_trip", rt.Trips.Submit)).Methods(http.MethodPost)
	trips.Handle("/export", perm("view_trips", rt.Trips.Export)).Methods(http.MethodGet)
	trips.HandleFunc("/{id}", rt.Trips.Get).Methods(http.MethodGet)
	trips.Handle("/{id}", perm("update_trip", rt.Trips.Resubmit)).Methods(http.MethodPut)
	trips.Handle("/{id}/approve", perm("decide_trip", rt.Trips.Approve)).Methods(http.MethodPost)
	trips.Handle("/{id}/reject", perm("decide_trip", rt.Trips.Reject)).Methods(http.MethodPost)
	trips.Handle("/{id}/start", perm("drive_trip", rt.Trips.Start)).Methods(http.MethodPost)
	trips.Handle("/{id}/finish", perm("drive_trip", rt.Trips.Finish)).Methods(http.MethodPost)

	api.Handle("/approvals", perm("decide_trip", rt.Trips.Approvals)).Methods(http.MethodGet)
	api.Handle("/dashboard", perm("view_dashboard", rt.Trips.Dashboard)).Methods(http.MethodGet)
	api.Handle("/driver/agenda", perm("view_agenda", rt.Trips.Agenda)).Methods(http.MethodGet)

	return r
}
