// README: Driver position and profile as seen by the locator and matching.
package location

import (
	"time"

	"rideshare/internal/types"
)

type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

const (
	MinRating     = 1.0
	MaxRating     = 5.0
	DefaultRating = 5.0
)

type Vehicle struct {
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Year  int    `json:"year,omitempty"`
	Plate string `json:"plate,omitempty"`
	Color string `json:"color,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Driver is a user row. Riders share the shape; Role tells them apart.
type Driver struct {
	ID                types.ID     `json:"id"`
	Role              Role         `json:"role"`
	Name              string       `json:"name"`
	Position          *types.Point `json:"position,omitempty"`
	Available         bool         `json:"is_available"`
	Rating            float64      `json:"rating"`
	TotalRides        int          `json:"total_rides"`
	LocationUpdatedAt *time.Time   `json:"location_updated_at,omitempty"`
	Vehicle           *Vehicle     `json:"vehicle,omitempty"`
}

// Eligible reports whether the driver can be offered a ride right now.
func (d Driver) Eligible() bool {
	return d.Role == RoleDriver && d.Available && d.Position != nil
}

// Profile is what a user sets up about themselves.
type Profile struct {
	Role    Role
	Name    string
	Phone   string
	Vehicle *Vehicle
}

type NearbyDriver struct {
	Driver
	DistanceKm float64 `json:"distance_km"`
}

type UpdateResult string

const (
	UpdateOK         UpdateResult = "updated"
	UpdateNotFound   UpdateResult = "not_found"
	UpdateNotADriver UpdateResult = "not_a_driver"
)

func clampRating(r float64) float64 {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}
