package models

import (
	"time"

	"github.com/ukydev/trip-approvals/internal/risk"
)

// TripStatus is the lifecycle state of a trip.
type TripStatus string

const (
	TripPendingApproval TripStatus = "pending_approval"
	TripApproved        TripStatus = "approved"
	TripRejected        TripStatus = "rejected"
	TripInProgress      TripStatus = "in_progress"
	TripCompleted       TripStatus = "completed"
)

// Trip represents a planned movement for a client with a driver and vehicle.
type Trip struct {
	ID              string            `json:"id" bson:"_id,omitempty"`
	Code            string            `json:"code" bson:"code"`
	ClientID        string            `json:"client_id" bson:"client_id"`
	DriverID        string            `json:"driver_id" bson:"driver_id"`
	VehicleID       string            `json:"vehicle_id" bson:"vehicle_id"`
	Origin          string            `json:"origin" bson:"origin"`
	Destination     string            `json:"destination" bson:"destination"`
	DepartureAt     time.Time         `json:"departure_at" bson:"departure_at"`
	ArrivalAt       time.Time         `json:"arrival_at" bson:"arrival_at"`
	PriorDutyHours  float64           `json:"prior_duty_hours" bson:"prior_duty_hours"`
	Purpose         string            `json:"purpose" bson:"purpose"`
	Route           string            `json:"route" bson:"route"`
	RiskAnswers     map[string]string `json:"risk_answers" bson:"risk_answers"`
	RiskScore       int               `json:"risk_score" bson:"risk_score"`
	RiskTier        risk.Tier         `json:"risk_tier" bson:"risk_tier"`
	Safety          SafetyChecklist   `json:"safety" bson:"safety"`
	Status          TripStatus        `json:"status" bson:"status"`
	SupervisorID    string            `json:"supervisor_id,omitempty" bson:"supervisor_id"`
	ApprovalComment string            `json:"approval_comment,omitempty" bson:"approval_comment"`
	Reviews         []Review          `json:"reviews" bson:"reviews"`
	CreatedBy       string            `json:"created_by" bson:"created_by"`
	CreatedAt       time.Time         `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" bson:"updated_at"`
	Revision        int64             `json:"revision" bson:"revision"`
}

// SafetyChecklist records the pre-departure safety items.
type SafetyChecklist struct {
	Documents        bool `json:"documents" bson:"documents"`
	FireExtinguisher bool `json:"fire_extinguisher" bson:"fire_extinguisher"`
	FirstAidKit      bool `json:"first_aid_kit" bson:"first_aid_kit"`
	SpareTire        bool `json:"spare_tire" bson:"spare_tire"`
	MandatoryRest    bool `json:"mandatory_rest" bson:"mandatory_rest"`
	LightsAndHorn    bool `json:"lights_and_horn" bson:"lights_and_horn"`
	LoadSecured      bool `json:"load_secured" bson:"load_secured"`
}

// Missing lists the unchecked safety items.
func (s SafetyChecklist) Missing() []string {
	var out []string
	items := []struct {
		name string
		ok   bool
	}{
		{"documents", s.Documents},
		{"fire_extinguisher", s.FireExtinguisher},
		{"first_aid_kit", s.FirstAidKit},
		{"spare_tire", s.SpareTire},
		{"mandatory_rest", s.MandatoryRest},
		{"lights_and_horn", s.LightsAndHorn},
		{"load_secured", s.LoadSecured},
	}
	for _, it := range items {
		if !it.ok {
			out = append(out, it.name)
		}
	}
	return out
}

// ReviewDecision is the outcome of a supervisor review.
type ReviewDecision string

const (
	DecisionApproved ReviewDecision = "approved"
	DecisionRejected ReviewDecision = "rejected"
)

// Review is one entry of the append-only approval audit trail.
type Review struct {
	Decision     ReviewDecision `json:"decision" bson:"decision"`
	SupervisorID string         `json:"supervisor_id" bson:"supervisor_id"`
	Role         Role           `json:"role" bson:"role"`
	Tier         risk.Tier      `json:"tier" bson:"tier"`
	Comment      string         `json:"comment,omitempty" bson:"comment,omitempty"`
	DecidedAt    time.Time      `json:"decided_at" bson:"decided_at"`
}

// TripDraft carries the planner's form input for a new or edited trip.
type TripDraft struct {
	ClientID       string            `json:"client_id"`
	DriverID       string            `json:"driver_id"`
	VehicleID      string            `json:"vehicle_id"`
	Origin         string            `json:"origin"`
	Destination    string            `json:"destination"`
	DepartureAt    time.Time         `json:"departure_at"`
	ArrivalAt      time.Time         `json:"arrival_at"`
	PriorDutyHours float64           `json:"prior_duty_hours"`
	Purpose        string            `json:"purpose"`
	Route          string            `json:"route"`
	RiskAnswers    map[string]string `json:"risk_answers"`
	Safety         SafetyChecklist   `json:"safety"`
}
