package readmodel

import (
	"sort"
	"time"

	"github.com/ukydev/trip-approvals/internal/models"
	"github.com/ukydev/trip-approvals/internal/risk"
)

// DefaultHorizonDays is how far ahead expiring documents are reported.
const DefaultHorizonDays = 30

// AlertKind names the document an expiry alert is about.
type AlertKind string

const (
	AlertDriverLicense     AlertKind = "driver_license"
	AlertVehicleInspection AlertKind = "vehicle_inspection"
	AlertVehicleInsurance  AlertKind = "vehicle_insurance"
)

// Alert is one expired or soon-expiring document. Days counts days overdue
// for expired documents and days left for the others.
type Alert struct {
	Kind      AlertKind `json:"kind"`
	EntityID  string    `json:"entity_id"`
	Label     string    `json:"label"`
	ExpiresAt time.Time `json:"expires_at"`
	Days      int       `json:"days"`
}

// Dashboard aggregates trips and document expiries.
type Dashboard struct {
	Total        int                       `json:"total"`
	ByStatus     map[models.TripStatus]int `json:"by_status"`
	ByTier       map[risk.Tier]int         `json:"by_tier"`
	Expired      []Alert                   `json:"expired"`
	ExpiringSoon []Alert                   `json:"expiring_soon"`
	HorizonDays  int                       `json:"horizon_days"`
	GeneratedAt  time.Time                 `json:"generated_at"`
}

// BuildDashboard counts trips per status and tier and collects the expiry
// alerts of active drivers and vehicles. Days are whole calendar days in UTC;
// a document expiring today is expiring soon with zero days left.
func BuildDashboard(d Data, now time.Time, horizonDays int) Dashboard {
	if horizonDays < 0 {
		horizonDays = 0
	}
	out := Dashboard{
		ByStatus: map[models.TripStatus]int{
			models.TripPendingApproval: 0,
			models.TripApproved:        0,
			models.TripRejected:        0,
			models.TripInProgress:      0,
			models.TripCompleted:       0,
		},
		ByTier:       map[risk.Tier]int{risk.TierLow: 0, risk.TierMedium: 0, risk.TierHigh: 0},
		Expired:      []Alert{},
		ExpiringSoon: []Alert{},
		HorizonDays:  horizonDays,
		GeneratedAt:  now.UTC(),
	}

	ix := newIndex(d)
	for _, t := range d.Trips {
		r := ix.row(t)
		out.Total++
		out.ByStatus[r.Status]++
		out.ByTier[r.RiskTier]++
	}

	today := day(now)
	add := func(kind AlertKind, id, label string, expiry *time.Time) {
		if expiry == nil || expiry.IsZero() {
			return
		}
		days := int(day(*expiry).Sub(today).Hours() / 24)
		a := Alert{Kind: kind, EntityID: id, Label: label, ExpiresAt: expiry.UTC()}
		switch {
		case days < 0:
			a.Days = -days
			out.Expired = append(out.Expired, a)
		case days <= horizonDays:
			a.Days = days
			out.ExpiringSoon = append(out.ExpiringSoon, a)
		}
	}
	for _, dr := range d.Drivers {
		if dr.Status != models.StatusActive {
			continue
		}
		add(AlertDriverLicense, dr.ID, dr.Name, dr.LicenseExpiry)
	}
	for _, v := range d.Vehicles {
		if v.Status != models.StatusActive {
			continue
		}
		add(AlertVehicleInspection, v.ID, v.Plate, v.InspectionExpiry)
		add(AlertVehicleInsurance, v.ID, v.Plate, v.InsuranceExpiry)
	}

	sortAlerts(out.Expired, true)
	sortAlerts(out.ExpiringSoon, false)
	return out
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sortAlerts puts the most urgent first: most overdue, or fewest days left.
func sortAlerts(alerts []Alert, overdue bool) {
	sort.SliceStable(alerts, func(i, j int) bool {
		a, b := alerts[i], alerts[j]
		if a.Days != b.Days {
			if overdue {
				return a.Days > b.Days
			}
			return a.Days < b.Days
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.EntityID < b.EntityID
	})
}
