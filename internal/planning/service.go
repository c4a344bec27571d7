// Package planning submits trips and carries them through supervisor review.
package planning

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/approval"
	"github.com/ukydev/trip-approvals/internal/db"
	"github.com/ukydev/trip-approvals/internal/lifecycle"
	"github.com/ukydev/trip-approvals/internal/models"
)

// Service applies planning and approval events to stored trips.
type Service struct {
	trips   *db.TripStore
	refs    *db.ReferenceStore
	machine *lifecycle.Machine
	log     *log.Entry
}

// NewService wires a planning Service.
func NewService(trips *db.TripStore, refs *db.ReferenceStore, machine *lifecycle.Machine, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Service{trips: trips, refs: refs, machine: machine, log: logger.WithField("component", "planning")}
}

// Submit validates a planner's draft, assesses its risk and stores it as a
// trip awaiting approval.
func (s *Service) Submit(ctx context.Context, draft models.TripDraft, actor models.Actor) (models.Trip, error) {
	trip, err := s.machine.Create(draft, actor)
	if err != nil {
		return models.Trip{}, err
	}
	if err := s.checkReferences(ctx, trip); err != nil {
		return models.Trip{}, err
	}
	required, err := approval.RequiredRole(trip.RiskTier)
	if err != nil {
		return models.Trip{}, fmt.Errorf("route trip: %w", err)
	}
	stored, err := s.trips.InsertTrip(ctx, trip)
	if err != nil {
		return models.Trip{}, err
	}

	s.log.WithFields(log.Fields{
		"trip_id":       stored.ID,
		"trip_code":     stored.Code,
		"risk_score":    stored.RiskScore,
		"risk_tier":     stored.RiskTier,
		"approver_role": required,
		"created_by":    actor.UserID,
	}).Info("Trip submitted for approval")
	return stored, nil
}

// Resubmit applies an edited draft to a rejected trip and returns it to the
// approval queue of its newly assessed tier.
func (s *Service) Resubmit(ctx context.Context, tripID string, draft models.TripDraft, actor models.Actor) (models.Trip, error) {
	trip, err := s.Get(ctx, tripID)
	if err != nil {
		return models.Trip{}, err
	}
	prevStatus, prevRevision, prevTier := trip.Status, trip.Revision, trip.RiskTier
	if err := s.machine.Resubmit(&trip, actor, draft); err != nil {
		return models.Trip{}, err
	}
	if err := s.checkReferences(ctx, trip); err != nil {
		return models.Trip{}, err
	}
	updated, err := s.trips.SwapTrip(ctx, trip, prevStatus, prevRevision)
	if err != nil {
		return models.Trip{}, err
	}

	s.log.WithFields(log.Fields{
		"trip_id":       updated.ID,
		"previous_tier": prevTier,
		"risk_tier":     updated.RiskTier,
		"risk_score":    updated.RiskScore,
	}).Info("Trip resubmitted for approval")
	return updated, nil
}

// Approve records a supervisor's approval.
func (s *Service) Approve(ctx context.Context, tripID string, actor models.Actor, comment string) (models.Trip, error) {
	return s.decide(ctx, tripID, actor, func(t *models.Trip) error {
		return s.machine.Approve(t, actor, comment)
	})
}

// Reject records a supervisor's rejection. A comment is required.
func (s *Service) Reject(ctx context.Context, tripID string, actor models.Actor, comment string) (models.Trip, error) {
	return s.decide(ctx, tripID, actor, func(t *models.Trip) error {
		return s.machine.Reject(t, actor, comment)
	})
}

func (s *Service) decide(ctx context.Context, tripID string, actor models.Actor, apply func(*models.Trip) error) (models.Trip, error) {
	trip, err := s.Get(ctx, tripID)
	if err != nil {
		return models.Trip{}, err
	}
	prevStatus, prevRevision := trip.Status, trip.Revision
	if err := apply(&trip); err != nil {
		var aerr *apperr.AuthorizationError
		if errors.As(err, &aerr) {
			s.log.WithFields(log.Fields{
				"trip_id":   tripID,
				"user_id":   actor.UserID,
				"role":      actor.Role,
				"risk_tier": trip.RiskTier,
			}).Warn("Refused trip decision")
		}
		return models.Trip{}, err
	}
	updated, err := s.trips.SwapTrip(ctx, trip, prevStatus, prevRevision)
	if err != nil {
		return models.Trip{}, err
	}

	s.log.WithFields(log.Fields{
		"trip_id":       updated.ID,
		"status":        updated.Status,
		"supervisor_id": actor.UserID,
		"risk_tier":     updated.RiskTier,
	}).Info("Trip decision recorded")
	return updated, nil
}

// Get loads the latest trip. Its risk score and tier are derived again from
// the stored answers; a disagreement is logged and the derived values win.
func (s *Service) Get(ctx context.Context, tripID string) (models.Trip, error) {
	trip, err := s.trips.FindTripByID(ctx, tripID)
	if err != nil {
		return models.Trip{}, err
	}
	storedTier := trip.RiskTier
	changed, err := lifecycle.Reassess(trip)
	if err != nil {
		return models.Trip{}, fmt.Errorf("reassess trip %s: %w: %w", tripID, apperr.ErrInconsistentRecord, err)
	}
	if changed {
		s.log.WithFields(log.Fields{
			"trip_id":     trip.ID,
			"stored_tier": storedTier,
			"risk_tier":   trip.RiskTier,
		}).Warn("Stored risk tier disagrees with answers; using derived tier")
	}
	return *trip, nil
}

// checkReferences requires the client, driver and vehicle to exist, and the
// driver and vehicle to be active.
func (s *Service) checkReferences(ctx context.Context, trip models.Trip) error {
	verr := &apperr.ValidationError{}

	if _, err := s.refs.FindClientByID(ctx, trip.ClientID); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		verr.Add("client_id", "unknown client")
	}

	driver, err := s.refs.FindDriverByID(ctx, trip.DriverID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		verr.Add("driver_id", "unknown driver")
	case err != nil:
		return err
	case driver.Status != models.StatusActive:
		verr.Add("driver_id", "driver is not active")
	}

	vehicle, err := s.refs.FindVehicleByID(ctx, trip.VehicleID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		verr.Add("vehicle_id", "unknown vehicle")
	case err != nil:
		return err
	case vehicle.Status != models.StatusActive:
		verr.Add("vehicle_id", "vehicle is not active")
	}

	return verr.OrNil()
}
