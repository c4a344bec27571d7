// Package readmodel builds the read-only views over trips: the trip list,
// the per-role approval queue, the dashboard and the driver agenda.
//
// Every view is a deterministic projection of a Data snapshot.
package readmodel

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/approval"
	"github.com/ukydev/trip-approvals/internal/lifecycle"
	"github.com/ukydev/trip-approvals/internal/models"
	"github.com/ukydev/trip-approvals/internal/risk"
)

// Data is a snapshot of everything the views join over.
type Data struct {
	Trips      []models.Trip
	Clients    []models.Client
	Drivers    []models.Driver
	Vehicles   []models.Vehicle
	Events     []models.FieldEvent
	Signatures []models.Signature
}

// Badge is a display label with a color class.
type Badge struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

var statusBadges = map[models.TripStatus]Badge{
	models.TripPendingApproval: {"Pending approval", "warning"},
	models.TripApproved:        {"Approved", "info"},
	models.TripRejected:        {"Rejected", "danger"},
	models.TripInProgress:      {"In progress", "primary"},
	models.TripCompleted:       {"Completed", "success"},
}

var riskBadges = map[risk.Tier]Badge{
	risk.TierLow:    {"Low", "success"},
	risk.TierMedium: {"Medium", "warning"},
	risk.TierHigh:   {"High", "danger"},
}

// StatusBadge returns the badge for a trip status.
func StatusBadge(s models.TripStatus) Badge {
	if b, ok := statusBadges[s]; ok {
		return b
	}
	return Badge{Label: string(s), Color: "secondary"}
}

// RiskBadge returns the badge for a risk tier.
func RiskBadge(t risk.Tier) Badge {
	if b, ok := riskBadges[t]; ok {
		return b
	}
	return Badge{Label: string(t), Color: "secondary"}
}

// TripRow is one denormalized line of the trip list.
type TripRow struct {
	ID            string            `json:"id"`
	Code          string            `json:"code"`
	ClientName    string            `json:"client_name"`
	DriverID      string            `json:"driver_id"`
	DriverName    string            `json:"driver_name"`
	VehiclePlate  string            `json:"vehicle_plate"`
	Origin        string            `json:"origin"`
	Destination   string            `json:"destination"`
	DepartureAt   time.Time         `json:"departure_at"`
	ArrivalAt     time.Time         `json:"arrival_at"`
	Status        models.TripStatus `json:"status"`
	StatusBadge   Badge             `json:"status_badge"`
	RiskScore     int               `json:"risk_score"`
	RiskTier      risk.Tier         `json:"risk_tier"`
	RiskBadge     Badge             `json:"risk_badge"`
	ApproverRole  models.Role       `json:"approver_role"`
	StartedAt     *time.Time        `json:"started_at,omitempty"`
	FinishedAt    *time.Time        `json:"finished_at,omitempty"`
	DistanceKm    float64           `json:"distance_km,omitempty"`
	Signed        bool              `json:"signed"`
	MissingSafety []string          `json:"missing_safety,omitempty"`
}

// Sort orders the trip list.
type Sort string

const (
	SortDepartureAsc  Sort = "departure_asc"
	SortDepartureDesc Sort = "departure_desc"
	SortRiskAsc       Sort = "risk_asc"
	SortRiskDesc      Sort = "risk_desc"
)

// ParseSort reads a sort key. Empty means departure_desc.
func ParseSort(s string) (Sort, error) {
	switch Sort(s) {
	case "":
		return SortDepartureDesc, nil
	case SortDepartureAsc, SortDepartureDesc, SortRiskAsc, SortRiskDesc:
		return Sort(s), nil
	}
	return "", apperr.NewValidation("sort", fmt.Sprintf("unknown sort %q", s))
}

// Query filters and orders the trip list.
type Query struct {
	Text string
	Sort Sort
}

type index struct {
	clients    map[string]models.Client
	drivers    map[string]models.Driver
	vehicles   map[string]models.Vehicle
	events     map[string]models.FieldEvent
	signatures map[string]bool
}

func newIndex(d Data) index {
	ix := index{
		clients:    make(map[string]models.Client, len(d.Clients)),
		drivers:    make(map[string]models.Driver, len(d.Drivers)),
		vehicles:   make(map[string]models.Vehicle, len(d.Vehicles)),
		events:     make(map[string]models.FieldEvent, len(d.Events)),
		signatures: make(map[string]bool, len(d.Signatures)),
	}
	for _, c := range d.Clients {
		ix.clients[c.ID] = c
	}
	for _, dr := range d.Drivers {
		ix.drivers[dr.ID] = dr
	}
	for _, v := range d.Vehicles {
		ix.vehicles[v.ID] = v
	}
	for _, ev := range d.Events {
		ix.events[ev.ID] = ev
	}
	for _, s := range d.Signatures {
		ix.signatures[s.TripID] = true
	}
	return ix
}

func (ix index) row(t models.Trip) TripRow {
	// Tier is always derived from the stored answers.
	if _, err := lifecycle.Reassess(&t); err != nil {
		t.RiskTier = risk.TierForScore(t.RiskScore)
	}
	required, _ := approval.RequiredRole(t.RiskTier)
	r := TripRow{
		ID:            t.ID,
		Code:          t.Code,
		ClientName:    ix.clients[t.ClientID].Name,
		DriverID:      t.DriverID,
		DriverName:    ix.drivers[t.DriverID].Name,
		VehiclePlate:  ix.vehicles[t.VehicleID].Plate,
		Origin:        t.Origin,
		Destination:   t.Destination,
		DepartureAt:   t.DepartureAt,
		ArrivalAt:     t.ArrivalAt,
		Status:        t.Status,
		StatusBadge:   StatusBadge(t.Status),
		RiskScore:     t.RiskScore,
		RiskTier:      t.RiskTier,
		RiskBadge:     RiskBadge(t.RiskTier),
		ApproverRole:  required,
		Signed:        ix.signatures[t.ID],
		MissingSafety: t.Safety.Missing(),
	}
	if ev, ok := ix.events[models.EventID(t.ID, models.EventStart)]; ok {
		at := ev.OccurredAt
		r.StartedAt = &at
	}
	if ev, ok := ix.events[models.EventID(t.ID, models.EventFinish)]; ok {
		at := ev.OccurredAt
		r.FinishedAt = &at
		r.DistanceKm = ev.DistanceKm
	}
	return r
}

func (r TripRow) matches(text string) bool {
	for _, field := range []string{r.ClientName, r.DriverName, r.Origin, r.Destination, r.Code} {
		if strings.Contains(strings.ToLower(field), text) {
			return true
		}
	}
	return false
}

// TripList returns every trip matching q.Text, ordered by q.Sort.
func TripList(d Data, q Query) []TripRow {
	ix := newIndex(d)
	text := strings.ToLower(strings.TrimSpace(q.Text))
	rows := make([]TripRow, 0, len(d.Trips))
	for _, t := range d.Trips {
		r := ix.row(t)
		if text != "" && !r.matches(text) {
			continue
		}
		rows = append(rows, r)
	}
	sortRows(rows, q.Sort)
	return rows
}

func sortRows(rows []TripRow, s Sort) {
	departureAsc := func(a, b TripRow) bool {
		if !a.DepartureAt.Equal(b.DepartureAt) {
			return a.DepartureAt.Before(b.DepartureAt)
		}
		return a.Code < b.Code
	}
	var less func(a, b TripRow) bool
	switch s {
	case SortDepartureAsc:
		less = departureAsc
	case SortRiskAsc, SortRiskDesc:
		less = func(a, b TripRow) bool {
			ra, rb := a.RiskTier.Rank(), b.RiskTier.Rank()
			if ra != rb {
				if s == SortRiskAsc {
					return ra < rb
				}
				return ra > rb
			}
			return departureAsc(a, b)
		}
	default:
		less = func(a, b TripRow) bool {
			if !a.DepartureAt.Equal(b.DepartureAt) {
				return a.DepartureAt.After(b.DepartureAt)
			}
			return a.Code < b.Code
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return less(rows[i], rows[j]) })
}

// ApprovalQueue lists the pending trips the given role decides, soonest
// departure first. Only the exact tier of a supervisor role is included.
func ApprovalQueue(d Data, role models.Role) []TripRow {
	if _, ok := approval.TierFor(role); !ok {
		return []TripRow{}
	}
	ix := newIndex(d)
	rows := []TripRow{}
	for _, t := range d.Trips {
		if t.Status != models.TripPendingApproval {
			continue
		}
		r := ix.row(t)
		if !approval.IsAuthorized(role, r.RiskTier) {
			continue
		}
		rows = append(rows, r)
	}
	sortRows(rows, SortDepartureAsc)
	return rows
}

// AgendaItem is a trip the driver has to act on.
type AgendaItem struct {
	TripRow
	NextAction lifecycle.Event `json:"next_action"`
}

// DriverAgenda lists the driver's approved and in-progress trips with the
// action each one is waiting for, soonest departure first.
func DriverAgenda(d Data, driverID string) []AgendaItem {
	ix := newIndex(d)
	items := []AgendaItem{}
	if driverID == "" {
		return items
	}
	var rows []TripRow
	for _, t := range d.Trips {
		if t.DriverID != driverID {
			continue
		}
		if t.Status != models.TripApproved && t.Status != models.TripInProgress {
			continue
		}
		rows = append(rows, ix.row(t))
	}
	sortRows(rows, SortDepartureAsc)
	for _, r := range rows {
		next := lifecycle.EventStart
		if r.Status == models.TripInProgress {
			next = lifecycle.EventFinish
		}
		items = append(items, AgendaItem{TripRow: r, NextAction: next})
	}
	return items
}
