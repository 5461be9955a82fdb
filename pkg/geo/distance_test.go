package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceSymmetry(t *testing.T) {
	pairs := [][4]float64{
		{-6.2, 106.81, -6.17, 106.83},
		{0, 0, 10, 10},
		{51.5, -0.12, 48.85, 2.35},
	}
	for _, p := range pairs {
		d1 := DistanceKm(p[0], p[1], p[2], p[3])
		d2 := DistanceKm(p[2], p[3], p[0], p[1])
		assert.InDelta(t, d1, d2, 1e-9)
	}
}

func TestDistanceToSelfIsZero(t *testing.T) {
	assert.Equal(t, float64(0), DistanceKm(-6.2, 106.81, -6.2, 106.81))
}

func TestDistanceKnownValue(t *testing.T) {
	// Jakarta Monas to Kota Tua is roughly 4.5km.
	d := DistanceKm(-6.1754, 106.8272, -6.1352, 106.8133)
	assert.InDelta(t, 4.7, d, 0.5)
}

func TestDistanceBetweenParsesStrings(t *testing.T) {
	d := DistanceBetween("-6.20", "106.81", "-6.20", "106.81")
	assert.Equal(t, float64(0), d)
}

func TestDistanceBetweenUnparsableIsSentinel(t *testing.T) {
	assert.Equal(t, float64(UnknownDistanceKm), DistanceBetween("abc", "106.81", "-6.2", "106.81"))
	assert.Equal(t, float64(UnknownDistanceKm), DistanceBetween("-6.2", "106.81", "", "106.81"))
}

func TestParseCoord(t *testing.T) {
	v, err := ParseCoord("-6.20")
	assert.NoError(t, err)
	assert.Equal(t, -6.20, v)

	_, err = ParseCoord("not-a-coord")
	assert.Error(t, err)
}
