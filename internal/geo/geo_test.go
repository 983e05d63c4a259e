package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	t.Run("same point", func(t *testing.T) {
		assert.Equal(t, 0.0, HaversineKm(40.4168, -3.7038, 40.4168, -3.7038))
	})

	t.Run("one degree of latitude", func(t *testing.T) {
		// 2*pi*R/360
		assert.InDelta(t, 111.195, HaversineKm(0, 0, 1, 0), 0.01)
	})

	t.Run("madrid to barcelona", func(t *testing.T) {
		d := HaversineKm(40.4168, -3.7038, 41.3874, 2.1686)
		assert.InDelta(t, 505, d, 3)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := Location{Latitude: 51.5, Longitude: -0.12}
		b := Location{Latitude: 48.85, Longitude: 2.35}
		assert.InDelta(t, a.DistanceKm(b), b.DistanceKm(a), 1e-9)
	})
}

func TestLocationValidate(t *testing.T) {
	assert.NoError(t, Location{Latitude: 10, Longitude: 20}.Validate())
	assert.Error(t, Location{Latitude: 91, Longitude: 0}.Validate())
	assert.Error(t, Location{Latitude: 0, Longitude: -181}.Validate())
}
