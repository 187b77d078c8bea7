package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance_IdenticalPointsAreZero(t *testing.T) {
	cases := [][2]float64{
		{0, 0},
		{51.5074, -0.1278},
		{-90, 0},
		{90, 180},
		{-33.8688, 151.2093},
	}
	for _, c := range cases {
		assert.Equal(t, 0.0, Distance(c[0], c[1], c[0], c[1]))
	}
}

func TestDistance_Symmetric(t *testing.T) {
	d1 := Distance(51.5074, -0.1278, 48.8566, 2.3522)
	d2 := Distance(48.8566, 2.3522, 51.5074, -0.1278)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestDistance_LondonToParis(t *testing.T) {
	d := Distance(51.5074, -0.1278, 48.8566, 2.3522)
	assert.Greater(t, d, 343.0)
	assert.Less(t, d, 344.5)
}

func TestDistance_MonotoneWithSeparation(t *testing.T) {
	// Walking east along the equator must strictly increase the distance.
	prev := 0.0
	for lon := 1.0; lon <= 179; lon += 1.0 {
		d := Distance(0, 0, 0, lon)
		assert.Greater(t, d, prev, "distance should grow with separation at lon=%v", lon)
		prev = d
	}
}

func TestDistance_AntipodalStable(t *testing.T) {
	// Near-antipodal points push sin²(c/2) toward 1; atan2 keeps this finite.
	d := Distance(0, 0, 0, 180)
	assert.InDelta(t, EarthRadiusKm*3.14159265, d, 1.0)

	d = Distance(45, 45, -45, -135)
	assert.False(t, d != d, "distance must not be NaN")
	assert.Greater(t, d, 20000.0)
}

func TestValidLatitudeLongitude(t *testing.T) {
	assert.True(t, ValidLatitude(0))
	assert.True(t, ValidLatitude(-90))
	assert.True(t, ValidLatitude(90))
	assert.False(t, ValidLatitude(90.01))
	assert.True(t, ValidLongitude(-180))
	assert.True(t, ValidLongitude(180))
	assert.False(t, ValidLongitude(-180.5))
}
