package geo

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"trinetra/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	ahmedabad := types.Coordinate{Lat: 23.0225, Lng: 72.5714}
	nearby := types.Coordinate{Lat: 23.0230, Lng: 72.5718}
	mumbai := types.Coordinate{Lat: 19.0760, Lng: 72.8777}

	t.Run("zero for identical points", func(t *testing.T) {
		assert.Equal(t, 0.0, Distance(ahmedabad, ahmedabad))
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.InDelta(t, Distance(ahmedabad, mumbai), Distance(mumbai, ahmedabad), 1e-9)
		assert.InDelta(t, Distance(ahmedabad, nearby), Distance(nearby, ahmedabad), 1e-9)
	})

	t.Run("short hop is under 100m", func(t *testing.T) {
		d := Distance(ahmedabad, nearby)
		assert.Greater(t, d, 50.0)
		assert.Less(t, d, 100.0)
	})

	t.Run("city pair is roughly 440km", func(t *testing.T) {
		assert.InDelta(t, 441000, Distance(ahmedabad, mumbai), 5000)
	})

	t.Run("quarter meridian", func(t *testing.T) {
		d := Distance(types.Coordinate{Lat: 0, Lng: 0}, types.Coordinate{Lat: 90, Lng: 0})
		assert.InDelta(t, EarthRadiusMeters*math.Pi/2, d, 1e-6)
	})
}

func TestPolicyCheck(t *testing.T) {
	policy := NewPolicy(0)
	require.Equal(t, DefaultMaxDistanceMeters, policy.MaxDistanceMeters)

	candidate := types.Coordinate{Lat: 23.0225, Lng: 72.5714}

	t.Run("accepts a respondent at the door", func(t *testing.T) {
		d, err := policy.Check(candidate, types.Coordinate{Lat: 23.0230, Lng: 72.5718})
		require.NoError(t, err)
		assert.Less(t, d, 100.0)
	})

	t.Run("rejects a respondent in another city", func(t *testing.T) {
		d, err := policy.Check(candidate, types.Coordinate{Lat: 19.0760, Lng: 72.8777})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrTooFar))

		var distErr *DistanceError
		require.True(t, errors.As(err, &distErr))
		assert.Equal(t, d, distErr.Meters)
		assert.Contains(t, err.Error(), fmt.Sprintf("(%dm away)", int64(math.Round(d))))
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		exact := Policy{MaxDistanceMeters: Distance(candidate, types.Coordinate{Lat: 23.0230, Lng: 72.5718})}
		_, err := exact.Check(candidate, types.Coordinate{Lat: 23.0230, Lng: 72.5718})
		assert.NoError(t, err)
	})

	t.Run("rejects an out of range fix as invalid input", func(t *testing.T) {
		_, err := policy.Check(candidate, types.Coordinate{Lat: 123, Lng: 72})
		var vErr *types.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.False(t, errors.Is(err, ErrTooFar))
	})
}

func TestGPSFixCoordinate(t *testing.T) {
	tests := []struct {
		name    string
		fix     *types.GPSFix
		wantErr bool
	}{
		{name: "missing", fix: nil, wantErr: true},
		{name: "null lat", fix: &types.GPSFix{Lat: []byte("null"), Lng: []byte("72.5")}, wantErr: true},
		{name: "string lat", fix: &types.GPSFix{Lat: []byte(`"23.0"`), Lng: []byte("72.5")}, wantErr: true},
		{name: "absent lng", fix: &types.GPSFix{Lat: []byte("23.0")}, wantErr: true},
		{name: "out of range", fix: &types.GPSFix{Lat: []byte("91"), Lng: []byte("72.5")}, wantErr: true},
		{name: "valid", fix: &types.GPSFix{Lat: []byte("23.0230"), Lng: []byte("72.5718")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tt.fix.Coordinate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, "Valid GPS location from respondent is missing.", err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, types.Coordinate{Lat: 23.0230, Lng: 72.5718}, c)
		})
	}
}
