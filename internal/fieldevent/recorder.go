// Package fieldevent records the driver's start and finish of a trip.
//
// Events are immutable and keyed deterministically by trip, so a second start
// or finish for the same trip collides in storage instead of creating a
// second record. Every write set is all-or-nothing: when a later write fails
// the records written before it are removed again.
package fieldevent

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/db"
	"github.com/ukydev/trip-approvals/internal/geo"
	"github.com/ukydev/trip-approvals/internal/lifecycle"
	"github.com/ukydev/trip-approvals/internal/models"
	"github.com/ukydev/trip-approvals/internal/notify"
)

// Recorder writes field events and drives the trip through execution.
type Recorder struct {
	trips     *db.TripStore
	events    *db.EventStore
	machine   *lifecycle.Machine
	publisher notify.Publisher
	log       *log.Entry
}

// NewRecorder wires a Recorder. A nil publisher discards notifications.
func NewRecorder(trips *db.TripStore, events *db.EventStore, machine *lifecycle.Machine, publisher notify.Publisher, logger *log.Entry) *Recorder {
	if publisher == nil {
		publisher = notify.Nop{}
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Recorder{
		trips:     trips,
		events:    events,
		machine:   machine,
		publisher: publisher,
		log:       logger.WithField("component", "fieldevent"),
	}
}

// Result is the outcome of a recorded event.
type Result struct {
	Trip      models.Trip       `json:"trip"`
	Event     models.FieldEvent `json:"event"`
	Signature *models.Signature `json:"signature,omitempty"`
}

// RecordStart records the assigned driver leaving with the trip and moves it
// to in progress.
func (r *Recorder) RecordStart(ctx context.Context, tripID string, actor models.Actor, loc *models.Location) (Result, error) {
	if err := geo.Validate(loc); err != nil {
		return Result{}, err
	}
	trip, err := r.load(ctx, tripID, models.EventStart)
	if err != nil {
		return Result{}, err
	}
	prevStatus, prevRevision := trip.Status, trip.Revision
	if err := r.machine.Start(&trip, actor); err != nil {
		return Result{}, err
	}

	ev := models.FieldEvent{
		ID:         models.EventID(trip.ID, models.EventStart),
		TripID:     trip.ID,
		DriverID:   actor.DriverID,
		Kind:       models.EventStart,
		OccurredAt: trip.UpdatedAt,
		Location:   *loc,
	}
	stored, err := r.events.InsertFieldEvent(ctx, ev)
	if err != nil {
		return Result{}, duplicate(err)
	}

	updated, err := r.trips.SwapTrip(ctx, trip, prevStatus, prevRevision)
	if err != nil {
		return Result{}, r.compensate(ctx, err, func(ctx context.Context) error {
			return r.events.DeleteFieldEvent(ctx, stored.ID)
		})
	}

	r.log.WithFields(log.Fields{
		"trip_id":   updated.ID,
		"trip_code": updated.Code,
		"driver_id": actor.DriverID,
		"lat":       loc.Lat,
		"lon":       loc.Lon,
	}).Info("Trip started")
	r.publish(ctx, updated, stored)
	return Result{Trip: updated, Event: stored}, nil
}

// RecordFinish records the assigned driver completing the trip with a
// signature and moves it to completed.
func (r *Recorder) RecordFinish(ctx context.Context, tripID string, actor models.Actor, loc *models.Location, signature string) (Result, error) {
	if err := geo.Validate(loc); err != nil {
		return Result{}, err
	}
	trip, err := r.load(ctx, tripID, models.EventFinish)
	if err != nil {
		return Result{}, err
	}
	prevStatus, prevRevision := trip.Status, trip.Revision
	if err := r.machine.Finish(&trip, actor, signature); err != nil {
		return Result{}, err
	}

	var distance float64
	start, err := r.events.FindFieldEvent(ctx, models.EventID(trip.ID, models.EventStart))
	switch {
	case err == nil:
		distance = geo.DistanceKm(start.Location, *loc)
	case errors.Is(err, apperr.ErrNotFound):
		r.log.WithField("trip_id", trip.ID).Warn("Finishing trip without a recorded start")
	default:
		return Result{}, err
	}

	sig, err := r.events.InsertSignature(ctx, models.Signature{
		ID:         models.SignatureID(trip.ID),
		TripID:     trip.ID,
		DriverID:   actor.DriverID,
		Image:      signature,
		CapturedAt: trip.UpdatedAt,
	})
	if err != nil {
		return Result{}, duplicate(err)
	}
	undoSignature := func(ctx context.Context) error {
		return r.events.DeleteSignature(ctx, sig.ID)
	}

	ev, err := r.events.InsertFieldEvent(ctx, models.FieldEvent{
		ID:          models.EventID(trip.ID, models.EventFinish),
		TripID:      trip.ID,
		DriverID:    actor.DriverID,
		Kind:        models.EventFinish,
		OccurredAt:  trip.UpdatedAt,
		Location:    *loc,
		SignatureID: sig.ID,
		DistanceKm:  distance,
	})
	if err != nil {
		return Result{}, r.compensate(ctx, duplicate(err), undoSignature)
	}

	updated, err := r.trips.SwapTrip(ctx, trip, prevStatus, prevRevision)
	if err != nil {
		return Result{}, r.compensate(ctx, err, func(ctx context.Context) error {
			return r.events.DeleteFieldEvent(ctx, ev.ID)
		}, undoSignature)
	}

	r.log.WithFields(log.Fields{
		"trip_id":     updated.ID,
		"trip_code":   updated.Code,
		"driver_id":   actor.DriverID,
		"distance_km": distance,
	}).Info("Trip finished")
	r.publish(ctx, updated, ev)
	return Result{Trip: updated, Event: ev, Signature: &sig}, nil
}

// load fetches the latest trip and refuses when kind was already recorded.
func (r *Recorder) load(ctx context.Context, tripID string, kind models.EventKind) (models.Trip, error) {
	trip, err := r.trips.FindTripByID(ctx, tripID)
	if err != nil {
		return models.Trip{}, err
	}
	_, err = r.events.FindFieldEvent(ctx, models.EventID(tripID, kind))
	switch {
	case err == nil:
		return models.Trip{}, fmt.Errorf("%s of trip %s: %w", kind, tripID, apperr.ErrDuplicateEvent)
	case errors.Is(err, apperr.ErrNotFound):
		return *trip, nil
	default:
		return models.Trip{}, err
	}
}

// compensate undoes earlier writes after cause, newest first. Undo runs even
// when ctx is already cancelled.
func (r *Recorder) compensate(ctx context.Context, cause error, undo ...func(context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	var failed []error
	for _, u := range undo {
		if err := u(ctx); err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		return cause
	}
	uerr := errors.Join(failed...)
	r.log.WithError(uerr).WithField("cause", cause.Error()).Error("Failed to roll back field event writes")
	return fmt.Errorf("%w (rollback failed: %v)", cause, uerr)
}

func (r *Recorder) publish(ctx context.Context, trip models.Trip, ev models.FieldEvent) {
	n := notify.Notification{
		Kind:       ev.Kind,
		TripID:     trip.ID,
		TripCode:   trip.Code,
		DriverID:   ev.DriverID,
		Status:     trip.Status,
		OccurredAt: ev.OccurredAt,
		Location:   ev.Location,
		DistanceKm: ev.DistanceKm,
	}
	if err := r.publisher.Publish(ctx, n); err != nil {
		r.log.WithError(err).WithField("trip_id", trip.ID).Warn("Failed to publish field event")
	}
}

func duplicate(err error) error {
	if errors.Is(err, db.ErrDuplicate) {
		return fmt.Errorf("%v: %w", err, apperr.ErrDuplicateEvent)
	}
	return err
}
