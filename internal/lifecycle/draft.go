package lifecycle

import (
	"errors"
	"strings"

	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/models"
	"github.com/ukydev/trip-approvals/internal/risk"
)

func validateDraft(d models.TripDraft) (risk.Assessment, error) {
	verr := &apperr.ValidationError{}
	required := map[string]string{
		"client_id":   d.ClientID,
		"driver_id":   d.DriverID,
		"vehicle_id":  d.VehicleID,
		"origin":      d.Origin,
		"destination": d.Destination,
	}
	for field, v := range required {
		if strings.TrimSpace(v) == "" {
			verr.Add(field, "required")
		}
	}
	if d.DepartureAt.IsZero() {
		verr.Add("departure_at", "required")
	}
	if !d.ArrivalAt.IsZero() && !d.DepartureAt.IsZero() && !d.ArrivalAt.After(d.DepartureAt) {
		verr.Add("arrival_at", "must be after departure")
	}
	if d.PriorDutyHours < 0 {
		verr.Add("prior_duty_hours", "cannot be negative")
	}

	assessment, err := risk.Assess(risk.FromStrings(d.RiskAnswers))
	if err != nil {
		var rerr *apperr.ValidationError
		if !errors.As(err, &rerr) {
			return risk.Assessment{}, err
		}
		for field, reason := range rerr.Fields {
			verr.Add("risk_answers."+field, reason)
		}
	}
	if err := verr.OrNil(); err != nil {
		return risk.Assessment{}, err
	}
	return assessment, nil
}

func applyDraft(t *models.Trip, d models.TripDraft, a risk.Assessment) {
	t.ClientID = strings.TrimSpace(d.ClientID)
	t.DriverID = strings.TrimSpace(d.DriverID)
	t.VehicleID = strings.TrimSpace(d.VehicleID)
	t.Origin = strings.TrimSpace(d.Origin)
	t.Destination = strings.TrimSpace(d.Destination)
	t.DepartureAt = d.DepartureAt.UTC()
	t.ArrivalAt = d.ArrivalAt.UTC()
	t.PriorDutyHours = d.PriorDutyHours
	t.Purpose = d.Purpose
	t.Route = d.Route
	t.Safety = d.Safety

	answers := make(map[string]string, len(a.Answers))
	for _, ans := range a.Answers {
		answers[string(ans.Category)] = ans.Option
	}
	t.RiskAnswers = answers
	t.RiskScore = a.Score
	t.RiskTier = a.Tier
}
