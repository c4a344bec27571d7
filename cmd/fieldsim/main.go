// Command fieldsim plays the assigned driver of approved trips: it logs in,
// walks the driver's agenda and records start and finish events with
// jittered coordinates near each trip's origin and destination.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/trip-approvals/internal/config"
	"github.com/ukydev/trip-approvals/internal/geo"
	"github.com/ukydev/trip-approvals/internal/lifecycle"
	"github.com/ukydev/trip-approvals/internal/models"
	"github.com/ukydev/trip-approvals/internal/readmodel"
)

// Known places, so start and finish land near the named origin and destination.
var places = map[string]models.Location{
	"quito":         {Lat: -0.1807, Lon: -78.4678},
	"guayaquil":     {Lat: -2.1710, Lon: -79.9224},
	"cuenca":        {Lat: -2.9001, Lon: -79.0059},
	"lago agrio":    {Lat: 0.0847, Lon: -76.8828},
	"coca":          {Lat: -0.4628, Lon: -76.9872},
	"manta":         {Lat: -0.9677, Lon: -80.7089},
	"ambato":        {Lat: -1.2491, Lon: -78.6168},
	"esmeraldas":    {Lat: 0.9682, Lon: -79.6517},
	"loja":          {Lat: -3.9931, Lon: -79.2042},
	"santo domingo": {Lat: -0.2530, Lon: -79.1754},
}

var fallbackPlaces = []models.Location{
	{Lat: -0.1807, Lon: -78.4678},
	{Lat: -2.1710, Lon: -79.9224},
	{Lat: -2.9001, Lon: -79.0059},
}

// placeFor resolves a place name to coordinates. Unknown names map to a
// stable fallback so the same trip always starts from the same area.
func placeFor(name string) models.Location {
	key := strings.ToLower(strings.TrimSpace(name))
	if loc, ok := places[key]; ok {
		return loc
	}
	h := 0
	for _, c := range key {
		h = (h*31 + int(c)) % len(fallbackPlaces)
	}
	return fallbackPlaces[h]
}

// apiClient talks to the trip API as one driver.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *apiClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *apiClient) login(ctx context.Context, username, password string) (models.User, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", models.LoginRequest{Username: username, Password: password}, &resp); err != nil {
		return models.User{}, err
	}
	c.token = resp.Token
	return resp.User, nil
}

func (c *apiClient) agenda(ctx context.Context) ([]readmodel.AgendaItem, error) {
	var items []readmodel.AgendaItem
	err := c.do(ctx, http.MethodGet, "/driver/agenda", nil, &items)
	return items, err
}

type eventRequest struct {
	Location  models.Location `json:"location"`
	Signature string          `json:"signature,omitempty"`
}

type eventResult struct {
	Trip  models.Trip       `json:"trip"`
	Event models.FieldEvent `json:"event"`
}

// signature renders a placeholder signature image as a data URL.
func signature(driver string, at time.Time) string {
	raw := fmt.Sprintf("signed by %s at %s", driver, at.UTC().Format(time.RFC3339))
	return "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte(raw))
}

// simulator advances a driver's agenda one action per trip per tick.
type simulator struct {
	api             *apiClient
	driver          string
	rng             *rand.Rand
	jitterMeters    float64
	locationTimeout time.Duration
	now             func() time.Time
}

// advance performs the next action of every agenda item and returns how many
// succeeded.
func (s *simulator) advance(ctx context.Context) (int, error) {
	items, err := s.api.agenda(ctx)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, item := range items {
		place := item.Origin
		req := eventRequest{}
		if item.NextAction == lifecycle.EventFinish {
			place = item.Destination
			req.Signature = signature(s.driver, s.now())
		}

		locator := &geo.Jitter{Base: placeFor(place), Meters: s.jitterMeters, Rand: s.rng}
		loc, err := geo.Resolve(ctx, locator, s.locationTimeout)
		if err != nil {
			log.WithError(err).WithField("trip_code", item.Code).Warn("No location fix; skipping")
			continue
		}
		req.Location = loc

		var res eventResult
		path := fmt.Sprintf("/trips/%s/%s", item.ID, item.NextAction)
		if err := s.api.do(ctx, http.MethodPost, path, req, &res); err != nil {
			log.WithError(err).WithField("trip_code", item.Code).Error("Failed to record field event")
			continue
		}
		done++
		log.WithFields(log.Fields{
			"trip_code":   item.Code,
			"action":      item.NextAction,
			"status":      res.Trip.Status,
			"lat":         loc.Lat,
			"lon":         loc.Lon,
			"distance_km": res.Event.DistanceKm,
		}).Info("Recorded field event")
	}
	return done, nil
}

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if err := cfg.ConfigureLogging(); err != nil {
		log.WithError(err).Fatal("Invalid logging configuration")
	}

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}
	interval := 5 * time.Second
	if v := os.Getenv("SIM_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}
	username := os.Getenv("SIM_USERNAME")
	password := os.Getenv("SIM_PASSWORD")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := newAPIClient(apiURL)
	api.token = os.Getenv("SIM_AUTH_TOKEN")
	if api.token == "" {
		user, err := api.login(ctx, username, password)
		if err != nil {
			log.WithError(err).Fatal("Login failed; set SIM_USERNAME and SIM_PASSWORD for a driver account")
		}
		if user.DriverID == "" {
			log.WithField("username", user.Username).Fatal("Account is not linked to a driver")
		}
	}

	sim := &simulator{
		api:             api,
		driver:          username,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		jitterMeters:    300,
		locationTimeout: cfg.LocationTimeout,
		now:             time.Now,
	}
	log.WithFields(log.Fields{"api_url": apiURL, "interval": interval}).Info("Starting field simulation")

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		if _, err := sim.advance(ctx); err != nil {
			log.WithError(err).Error("Failed to load agenda")
		}
		select {
		case <-ctx.Done():
			log.Info("Field simulation stopped")
			return
		case <-tick.C:
		}
	}
}
