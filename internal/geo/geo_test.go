package geo

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/trip-approvals/internal/apperr"
	"github.com/ukydev/trip-approvals/internal/models"
)

var quito = models.Location{Lat: -0.1807, Lon: -78.4678}

type failingLocator struct{ err error }

func (f failingLocator) CurrentLocation(ctx context.Context) (models.Location, error) {
	return models.Location{}, f.err
}

type blockingLocator struct{}

func (blockingLocator) CurrentLocation(ctx context.Context) (models.Location, error) {
	<-ctx.Done()
	return models.Location{}, ctx.Err()
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		loc  *models.Location
		ok   bool
	}{
		{"nil", nil, false},
		{"valid", &quito, true},
		{"lat out of range", &models.Location{Lat: 91, Lon: 10}, false},
		{"lon out of range", &models.Location{Lat: 10, Lon: -181}, false},
		{"nan", &models.Location{Lat: math.NaN(), Lon: 1}, false},
		{"placeholder", &models.Location{}, false},
		{"pole", &models.Location{Lat: 90, Lon: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.loc)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, apperr.ErrLocationUnavailable))
			}
		})
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	got, err := Resolve(ctx, Fixed(quito), time.Second)
	require.NoError(t, err)
	assert.Equal(t, quito, got)

	_, err = Resolve(ctx, failingLocator{errors.New("permission denied")}, time.Second)
	assert.True(t, errors.Is(err, apperr.ErrLocationUnavailable))
	assert.Contains(t, err.Error(), "permission denied")

	_, err = Resolve(ctx, blockingLocator{}, 10*time.Millisecond)
	assert.True(t, errors.Is(err, apperr.ErrLocationUnavailable))

	_, err = Resolve(ctx, Fixed(models.Location{Lat: 200}), time.Second)
	assert.True(t, errors.Is(err, apperr.ErrLocationUnavailable))

	_, err = Resolve(ctx, nil, time.Second)
	assert.True(t, errors.Is(err, apperr.ErrLocationUnavailable))
}

func TestDistanceKm(t *testing.T) {
	guayaquil := models.Location{Lat: -2.1710, Lon: -79.9224}
	d := DistanceKm(quito, guayaquil)
	assert.InDelta(t, 270, d, 10)
	assert.Zero(t, DistanceKm(quito, quito))
}

func TestJitterStaysClose(t *testing.T) {
	j := &Jitter{Base: quito, Meters: 500, Rand: rand.New(rand.NewSource(7))}
	for i := 0; i < 50; i++ {
		loc, err := j.CurrentLocation(context.Background())
		require.NoError(t, err)
		assert.Less(t, DistanceKm(quito, loc), 0.75)
		assert.NoError(t, Validate(&loc))
	}
}
