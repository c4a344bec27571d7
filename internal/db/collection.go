package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Collection names used by the trip engine.
const (
	CollectionTrips       = "trips"
	CollectionFieldEvents = "field_events"
	CollectionSignatures  = "signatures"
	CollectionClients     = "clients"
	CollectionDrivers     = "drivers"
	CollectionVehicles    = "vehicles"
	CollectionUsers       = "users"
)

// Well-known record fields.
const (
	FieldID        = "_id"
	FieldCreatedAt = "created_at"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrConflict  = errors.New("record does not match expected state")
	ErrDuplicate = errors.New("record id already exists")
)

// Record is a stored document: field name to value, always including FieldID.
type Record map[string]interface{}

// ID returns the record identifier.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// RecordStore defines the generic operations the engine needs from storage.
// Each call is one request with a terminal outcome.
type RecordStore interface {
	ListRecords(ctx context.Context, collection string) ([]Record, error)
	GetRecord(ctx context.Context, collection, id string) (Record, error)
	// CreateRecord assigns an ID unless fields carries one, and stamps created_at.
	CreateRecord(ctx context.Context, collection string, fields Record) (Record, error)
	UpdateRecord(ctx context.Context, collection, id string, fields Record) (Record, error)
	// UpdateRecordIf applies fields only while every match field still holds.
	UpdateRecordIf(ctx context.Context, collection, id string, match, fields Record) (Record, error)
	DeleteRecord(ctx context.Context, collection, id string) error
	NextSequence(ctx context.Context, name string) (int64, error)
}

// Encode converts a bson-tagged model into a Record.
func Encode(v interface{}) (Record, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return Record(m), nil
}

// Decode fills the bson-tagged model out from rec.
func Decode(rec Record, out interface{}) error {
	raw, err := bson.Marshal(map[string]interface{}(rec))
	if err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// withoutID copies fields, dropping the identifier so it is never rewritten.
func withoutID(fields Record) Record {
	out := make(Record, len(fields))
	for k, v := range fields {
		if k == FieldID {
			continue
		}
		out[k] = v
	}
	return out
}
