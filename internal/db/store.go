package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/models"
)

// DefaultTimeout bounds a single store call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

const tripCodeSequence = "trip_code"

// translate maps store errors onto the engine's failure taxonomy.
// ErrDuplicate is kept as is; only the caller knows what a duplicate means.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	case errors.Is(err, ErrConflict):
		return fmt.Errorf("%s: %w", op, apperr.ErrStaleState)
	case errors.Is(err, ErrDuplicate):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return apperr.Storage(op, err)
	}
}

type accessor struct {
	records RecordStore
	timeout time.Duration
}

func newAccessor(records RecordStore, timeout time.Duration) accessor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return accessor{records: records, timeout: timeout}
}

func (a accessor) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, a.timeout)
}

func (a accessor) get(ctx context.Context, op, collection, id string, out interface{}) error {
	ctx, cancel := a.ctx(ctx)
	defer cancel()
	rec, err := a.records.GetRecord(ctx, collection, id)
	if err != nil {
		return translate(op, err)
	}
	if err := Decode(rec, out); err != nil {
		return apperr.Storage(op, err)
	}
	return nil
}

func (a accessor) create(ctx context.Context, op, collection string, in, out interface{}) error {
	rec, err := Encode(in)
	if err != nil {
		return apperr.Storage(op, err)
	}
	ctx, cancel := a.ctx(ctx)
	defer cancel()
	created, err := a.records.CreateRecord(ctx, collection, rec)
	if err != nil {
		return translate(op, err)
	}
	if err := Decode(created, out); err != nil {
		return apperr.Storage(op, err)
	}
	return nil
}

func (a accessor) delete(ctx context.Context, op, collection, id string) error {
	ctx, cancel := a.ctx(ctx)
	defer cancel()
	return translate(op, a.records.DeleteRecord(ctx, collection, id))
}

func listAll[T any](ctx context.Context, a accessor, op, collection string) ([]T, error) {
	ctx, cancel := a.ctx(ctx)
	defer cancel()
	recs, err := a.records.ListRecords(ctx, collection)
	if err != nil {
		return nil, translate(op, err)
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := Decode(rec, &v); err != nil {
			return nil, apperr.Storage(op, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// TripStore reads and writes trips.
type TripStore struct {
	accessor
}

// NewTripStore returns a TripStore over records. A zero timeout uses DefaultTimeout.
func NewTripStore(records RecordStore, timeout time.Duration) *TripStore {
	return &TripStore{newAccessor(records, timeout)}
}

// InsertTrip stores a new trip, assigning its ID, code and first revision.
func (s *TripStore) InsertTrip(ctx context.Context, trip models.Trip) (models.Trip, error) {
	if trip.ID == "" {
		trip.ID = uuid.NewString()
	}
	if trip.Code == "" {
		seqCtx, cancel := s.ctx(ctx)
		seq, err := s.records.NextSequence(seqCtx, tripCodeSequence)
		cancel()
		if err != nil {
			return models.Trip{}, translate("next trip code", err)
		}
		trip.Code = fmt.Sprintf("TRP-%06d", seq)
	}
	trip.Revision = 1

	var stored models.Trip
	if err := s.create(ctx, "insert trip", CollectionTrips, trip, &stored); err != nil {
		return models.Trip{}, err
	}
	return stored, nil
}

// FindTripByID loads a trip.
func (s *TripStore) FindTripByID(ctx context.Context, id string) (*models.Trip, error) {
	var trip models.Trip
	if err := s.get(ctx, "find trip "+id, CollectionTrips, id, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

// FindTrips loads every trip.
func (s *TripStore) FindTrips(ctx context.Context) ([]models.Trip, error) {
	return listAll[models.Trip](ctx, s.accessor, "list trips", CollectionTrips)
}

// SwapTrip replaces the stored trip only if it is still at prevStatus and
// prevRevision. The revision is bumped; a mismatch yields apperr.ErrStaleState.
func (s *TripStore) SwapTrip(ctx context.Context, trip models.Trip, prevStatus models.TripStatus, prevRevision int64) (models.Trip, error) {
	trip.Revision = prevRevision + 1
	rec, err := Encode(trip)
	if err != nil {
		return models.Trip{}, apperr.Storage("update trip", err)
	}
	match := Record{"status": string(prevStatus), "revision": prevRevision}

	ctx, cancel := s.ctx(ctx)
	defer cancel()
	updated, err := s.records.UpdateRecordIf(ctx, CollectionTrips, trip.ID, match, rec)
	if err != nil {
		return models.Trip{}, translate("update trip "+trip.ID, err)
	}
	var out models.Trip
	if err := Decode(updated, &out); err != nil {
		return models.Trip{}, apperr.Storage("update trip", err)
	}
	return out, nil
}

// EventStore reads and writes field events and signatures.
type EventStore struct {
	accessor
}

// NewEventStore returns an EventStore over records.
func NewEventStore(records RecordStore, timeout time.Duration) *EventStore {
	return &EventStore{newAccessor(records, timeout)}
}

// InsertFieldEvent stores ev under its own ID. A taken ID yields ErrDuplicate.
func (s *EventStore) InsertFieldEvent(ctx context.Context, ev models.FieldEvent) (models.FieldEvent, error) {
	var stored models.FieldEvent
	err := s.create(ctx, "insert field event", CollectionFieldEvents, ev, &stored)
	return stored, err
}

// FindFieldEvent loads one field event.
func (s *EventStore) FindFieldEvent(ctx context.Context, id string) (*models.FieldEvent, error) {
	var ev models.FieldEvent
	if err := s.get(ctx, "find field event "+id, CollectionFieldEvents, id, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

// FindFieldEvents loads every field event.
func (s *EventStore) FindFieldEvents(ctx context.Context) ([]models.FieldEvent, error) {
	return listAll[models.FieldEvent](ctx, s.accessor, "list field events", CollectionFieldEvents)
}

// DeleteFieldEvent removes a field event.
func (s *EventStore) DeleteFieldEvent(ctx context.Context, id string) error {
	return s.delete(ctx, "delete field event "+id, CollectionFieldEvents, id)
}

// InsertSignature stores sig under its own ID.
func (s *EventStore) InsertSignature(ctx context.Context, sig models.Signature) (models.Signature, error) {
	var stored models.Signature
	err := s.create(ctx, "insert signature", CollectionSignatures, sig, &stored)
	return stored, err
}

// FindSignatures loads every signature.
func (s *EventStore) FindSignatures(ctx context.Context) ([]models.Signature, error) {
	return listAll[models.Signature](ctx, s.accessor, "list signatures", CollectionSignatures)
}

// DeleteSignature removes a signature.
func (s *EventStore) DeleteSignature(ctx context.Context, id string) error {
	return s.delete(ctx, "delete signature "+id, CollectionSignatures, id)
}

// ReferenceStore reads and writes clients, drivers and vehicles.
type ReferenceStore struct {
	accessor
}

// NewReferenceStore returns a ReferenceStore over records.
func NewReferenceStore(records RecordStore, timeout time.Duration) *ReferenceStore {
	return &ReferenceStore{newAccessor(records, timeout)}
}

// InsertClient stores c, assigning an ID when it has none.
func (s *ReferenceStore) InsertClient(ctx context.Context, c models.Client) (models.Client, error) {
	var stored models.Client
	err := s.create(ctx, "insert client", CollectionClients, c, &stored)
	return stored, err
}

// InsertDriver stores d, assigning an ID when it has none.
func (s *ReferenceStore) InsertDriver(ctx context.Context, d models.Driver) (models.Driver, error) {
	var stored models.Driver
	err := s.create(ctx, "insert driver", CollectionDrivers, d, &stored)
	return stored, err
}

// InsertVehicle stores v, assigning an ID when it has none.
func (s *ReferenceStore) InsertVehicle(ctx context.Context, v models.Vehicle) (models.Vehicle, error) {
	var stored models.Vehicle
	err := s.create(ctx, "insert vehicle", CollectionVehicles, v, &stored)
	return stored, err
}

// FindClientByID loads a client. A missing client yields apperr.ErrNotFound.
func (s *ReferenceStore) FindClientByID(ctx context.Context, id string) (*models.Client, error) {
	var c models.Client
	if err := s.get(ctx, "find client "+id, CollectionClients, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// FindDriverByID loads a driver. A missing driver yields apperr.ErrNotFound.
func (s *ReferenceStore) FindDriverByID(ctx context.Context, id string) (*models.Driver, error) {
	var d models.Driver
	if err := s.get(ctx, "find driver "+id, CollectionDrivers, id, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// FindVehicleByID loads a vehicle. A missing vehicle yields apperr.ErrNotFound.
func (s *ReferenceStore) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := s.get(ctx, "find vehicle "+id, CollectionVehicles, id, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// FindClients lists every client.
func (s *ReferenceStore) FindClients(ctx context.Context) ([]models.Client, error) {
	return listAll[models.Client](ctx, s.accessor, "list clients", CollectionClients)
}

// FindDrivers lists every driver.
func (s *ReferenceStore) FindDrivers(ctx context.Context) ([]models.Driver, error) {
	return listAll[models.Driver](ctx, s.accessor, "list drivers", CollectionDrivers)
}

// FindVehicles lists every vehicle.
func (s *ReferenceStore) FindVehicles(ctx context.Context) ([]models.Vehicle, error) {
	return listAll[models.Vehicle](ctx, s.accessor, "list vehicles", CollectionVehicles)
}
