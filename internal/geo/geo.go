// Package geo provides the geolocation collaborator used when drivers record
// field events, plus coordinate checks and distances built on orb.
package geo

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"
	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/models"
)

// DefaultTimeout bounds a location fix.
const DefaultTimeout = 10 * time.Second

// Locator produces the device's current position.
type Locator interface {
	CurrentLocation(ctx context.Context) (models.Location, error)
}

// Point converts a location to an orb point (lon, lat order).
func Point(loc models.Location) orb.Point {
	return orb.Point{loc.Lon, loc.Lat}
}

// Validate reports whether loc is a usable fix. A nil location, NaN
// coordinates, coordinates out of range and the exact 0,0 placeholder that
// devices report without a fix are all unavailable.
func Validate(loc *models.Location) error {
	if loc == nil {
		return fmt.Errorf("no coordinates: %w", apperr.ErrLocationUnavailable)
	}
	if math.IsNaN(loc.Lat) || math.IsNaN(loc.Lon) || math.IsInf(loc.Lat, 0) || math.IsInf(loc.Lon, 0) {
		return fmt.Errorf("coordinates are not numbers: %w", apperr.ErrLocationUnavailable)
	}
	bound := orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}
	if !bound.Contains(Point(*loc)) {
		return fmt.Errorf("coordinates %.6f,%.6f out of range: %w", loc.Lat, loc.Lon, apperr.ErrLocationUnavailable)
	}
	if loc.Lat == 0 && loc.Lon == 0 {
		return fmt.Errorf("placeholder coordinates: %w", apperr.ErrLocationUnavailable)
	}
	return nil
}

// Resolve asks loc for a fix within timeout. Any failure, including a timeout
// or an invalid fix, is reported as apperr.ErrLocationUnavailable.
func Resolve(ctx context.Context, loc Locator, timeout time.Duration) (models.Location, error) {
	if loc == nil {
		return models.Location{}, fmt.Errorf("no locator: %w", apperr.ErrLocationUnavailable)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		loc models.Location
		err error
	}
	ch := make(chan result, 1)
	go func() {
		l, err := loc.CurrentLocation(ctx)
		ch <- result{l, err}
	}()

	select {
	case <-ctx.Done():
		return models.Location{}, fmt.Errorf("%v: %w", ctx.Err(), apperr.ErrLocationUnavailable)
	case r := <-ch:
		if r.err != nil {
			return models.Location{}, fmt.Errorf("%v: %w", r.err, apperr.ErrLocationUnavailable)
		}
		if err := Validate(&r.loc); err != nil {
			return models.Location{}, err
		}
		return r.loc, nil
	}
}

// DistanceKm is the great-circle distance between two fixes.
func DistanceKm(a, b models.Location) float64 {
	return orbgeo.Distance(Point(a), Point(b)) / 1000
}

// Fixed always reports the same location.
type Fixed models.Location

// CurrentLocation returns the fixed location.
func (f Fixed) CurrentLocation(ctx context.Context) (models.Location, error) {
	return models.Location(f), ctx.Err()
}

// Jitter reports positions scattered within Meters of Base, the way a phone's
// fix wanders around a parked vehicle.
type Jitter struct {
	Base   models.Location
	Meters float64
	Rand   *rand.Rand
}

// CurrentLocation returns a jittered position.
func (j *Jitter) CurrentLocation(ctx context.Context) (models.Location, error) {
	if err := ctx.Err(); err != nil {
		return models.Location{}, err
	}
	return JitterLocation(j.Rand, j.Base, j.Meters), nil
}

// JitterLocation moves base by up to meters in each axis.
func JitterLocation(r *rand.Rand, base models.Location, meters float64) models.Location {
	f := rand.Float64
	if r != nil {
		f = r.Float64
	}
	latMetersPerDeg := 111320.0
	lonMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (f()*2 - 1) * (meters / latMetersPerDeg)
	dLon := (f()*2 - 1) * (meters / lonMetersPerDeg)
	return models.Location{Lat: base.Lat + dLat, Lon: base.Lon + dLon}
}
