package readmodel

import (
	"context"

	"github.com/ukydev/trip-approvals/internal/db"
)

// Loader reads a Data snapshot from storage.
type Loader struct {
	trips  *db.TripStore
	refs   *db.ReferenceStore
	events *db.EventStore
}

// NewLoader wires a Loader.
func NewLoader(trips *db.TripStore, refs *db.ReferenceStore, events *db.EventStore) *Loader {
	return &Loader{trips: trips, refs: refs, events: events}
}

// Load fetches every collection the views need. Any failure aborts the load.
func (l *Loader) Load(ctx context.Context) (Data, error) {
	var (
		d   Data
		err error
	)
	if d.Trips, err = l.trips.FindTrips(ctx); err != nil {
		return Data{}, err
	}
	if d.Clients, err = l.refs.FindClients(ctx); err != nil {
		return Data{}, err
	}
	if d.Drivers, err = l.refs.FindDrivers(ctx); err != nil {
		return Data{}, err
	}
	if d.Vehicles, err = l.refs.FindVehicles(ctx); err != nil {
		return Data{}, err
	}
	if d.Events, err = l.events.FindFieldEvents(ctx); err != nil {
		return Data{}, err
	}
	if d.Signatures, err = l.events.FindSignatures(ctx); err != nil {
		return Data{}, err
	}
	return d, nil
}
