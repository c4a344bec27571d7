package models

import (
	"time"
)

// EventKind distinguishes start from finish events.
type EventKind string

const (
	EventStart  EventKind = "start"
	EventFinish EventKind = "finish"
)

// FieldEvent is an immutable record of a driver action during execution.
type FieldEvent struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	TripID      string    `json:"trip_id" bson:"trip_id"`
	DriverID    string    `json:"driver_id" bson:"driver_id"`
	Kind        EventKind `json:"kind" bson:"kind"`
	OccurredAt  time.Time `json:"occurred_at" bson:"occurred_at"`
	Location    Location  `json:"location" bson:"location"`
	SignatureID string    `json:"signature_id,omitempty" bson:"signature_id,omitempty"`
	DistanceKm  float64   `json:"distance_km,omitempty" bson:"distance_km,omitempty"`
}

// Signature is the captured proof of completion for a trip.
type Signature struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	TripID     string    `json:"trip_id" bson:"trip_id"`
	DriverID   string    `json:"driver_id" bson:"driver_id"`
	Image      string    `json:"image" bson:"image"`
	CapturedAt time.Time `json:"captured_at" bson:"captured_at"`
}

// EventID is the deterministic record id of a trip's event of the given kind.
func EventID(tripID string, kind EventKind) string {
	return tripID + ":" + string(kind)
}

// SignatureID is the deterministic record id of a trip's signature.
func SignatureID(tripID string) string {
	return tripID + ":signature"
}
