// README: Shared identifiers and coordinates used across modules.
package types

type ID string

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// OptionalPoint returns nil unless both coordinates are present.
func OptionalPoint(lat, lng *float64) *Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &Point{Lat: *lat, Lng: *lng}
}
