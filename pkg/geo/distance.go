// Package geo holds the distance math used by dispatch.
package geo

import (
	"math"
	"strconv"
)

// EarthRadiusKm is the haversine sphere radius.
const EarthRadiusKm = 6371

// UnknownDistanceKm is assigned when a coordinate cannot be parsed, so bad
// rows sort after every responder with real coordinates instead of failing
// the whole dispatch.
const UnknownDistanceKm = 99999

// DistanceKm returns the great-circle distance between two points in
// kilometers using the haversine formula.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// ParseCoord parses a numeric-string coordinate as stored on emergencies and
// responders.
func ParseCoord(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// DistanceBetween computes the distance between two numeric-string coordinate
// pairs, returning UnknownDistanceKm when any side fails to parse.
func DistanceBetween(lat1, lon1, lat2, lon2 string) float64 {
	a1, err1 := ParseCoord(lat1)
	o1, err2 := ParseCoord(lon1)
	a2, err3 := ParseCoord(lat2)
	o2, err4 := ParseCoord(lon2)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return UnknownDistanceKm
	}
	return DistanceKm(a1, o1, a2, o2)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
