// README: Great-circle distance, distance ordering and money/distance rounding.
package geo

import (
	"math"
	"sort"
)

// Mean earth radius used by every distance in the service.
const earthRadiusKm = 6371.0

const radPerDeg = math.Pi / 180

// HaversineKm is the great-circle distance in km between two points given
// in decimal degrees.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	phi1, phi2 := lat1*radPerDeg, lat2*radPerDeg
	sinLat := math.Sin((phi2 - phi1) / 2)
	sinLng := math.Sin((lng2 - lng1) * radPerDeg / 2)

	h := sinLat*sinLat + math.Cos(phi1)*math.Cos(phi2)*sinLng*sinLng
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// SortByDistance orders items nearest first. dist is evaluated once per item;
// ties keep input order.
func SortByDistance[T any](items []T, dist func(T) float64) {
	keyed := make([]struct {
		item T
		km   float64
	}, len(items))
	for i, it := range items {
		keyed[i].item, keyed[i].km = it, dist(it)
	}
	sort.SliceStable(keyed, func(i, j int) bool { return keyed[i].km < keyed[j].km })
	for i := range keyed {
		items[i] = keyed[i].item
	}
}

// Round2 rounds to cents, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
