package models

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestCoordinatesPoint(t *testing.T) {
	c := Coordinates{Lat: 40.5, Lon: -75.2}
	assert.Equal(t, orb.Point{-75.2, 40.5}, c.Point())
}

func TestRoundCoordinate(t *testing.T) {
	assert.Equal(t, 40.12346, RoundCoordinate(40.123456))
	assert.Equal(t, -75.98765, RoundCoordinate(-75.987654))
	assert.Equal(t, 0.0, RoundCoordinate(0.0))
}

func TestAddressPointLocatable(t *testing.T) {
	tests := []struct {
		name string
		addr AddressPoint
		want bool
	}{
		{"valid", AddressPoint{Lat: 40.0, Lon: -75.0}, true},
		{"zero zero is a failed geocode", AddressPoint{Lat: 0, Lon: 0}, false},
		{"lat out of range", AddressPoint{Lat: 91, Lon: 0.1}, false},
		{"lon out of range", AddressPoint{Lat: 0.1, Lon: 181}, false},
		{"negative lat valid", AddressPoint{Lat: -33.8, Lon: 151.2}, true},
		{"zero lat nonzero lon", AddressPoint{Lat: 0, Lon: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.addr.Locatable())
		})
	}
}

func TestDefaultOptimizeOptions(t *testing.T) {
	opts := DefaultOptimizeOptions()

	assert.True(t, opts.BlockOptimize)
	assert.Equal(t, 50, opts.BlockTargetSize)
	assert.Equal(t, 50.0, opts.ThresholdMeters)
	assert.Equal(t, 500.0, opts.SweepNnThresholdM)
	assert.True(t, opts.SnapToWalkway)
	assert.False(t, opts.StreetSideBias)
	assert.False(t, opts.ReturnToDepot)
	assert.Equal(t, 5.0, opts.WalkingSpeedKmh)
	assert.Equal(t, AnchorCentroid, opts.Anchor)
	assert.False(t, opts.UseSolver)
}
