// README: Ride aggregate, status flow and state events.
package ride

import (
	"time"

	"rideshare/internal/types"
)

type Status string

const (
	StatusNone       Status = "none"
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type Ride struct {
	ID                       types.ID     `json:"id"`
	RiderID                  types.ID     `json:"rider_id"`
	DriverID                 *types.ID    `json:"driver_id,omitempty"`
	Status                   Status       `json:"status"`
	StatusVersion            int          `json:"status_version"`
	PickupAddress            string       `json:"pickup_address"`
	DropoffAddress           string       `json:"dropoff_address"`
	Pickup                   *types.Point `json:"pickup,omitempty"`
	Dropoff                  *types.Point `json:"dropoff,omitempty"`
	Notes                    string       `json:"notes,omitempty"`
	DistanceKm               float64      `json:"distance_km"`
	EstimatedDurationMinutes float64      `json:"estimated_duration_minutes"`
	Price                    float64      `json:"price"`
	RequestedAt              time.Time    `json:"requested_at"`
	AcceptedAt               *time.Time   `json:"accepted_at,omitempty"`
	StartedAt                *time.Time   `json:"started_at,omitempty"`
	CompletedAt              *time.Time   `json:"completed_at,omitempty"`
	CancelledAt              *time.Time   `json:"cancelled_at,omitempty"`
}

// HasParticipant reports whether id is the rider or the assigned driver.
func (r *Ride) HasParticipant(id types.ID) bool {
	if id == "" {
		return false
	}
	if r.RiderID == id {
		return true
	}
	return r.DriverID != nil && *r.DriverID == id
}

type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

const (
	ActorRider  = "rider"
	ActorDriver = "driver"
	ActorSystem = "system"
)

// AllowedTransitions represents the ride state flow as code. Completed and
// cancelled are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusAccepted, StatusCancelled},
	StatusAccepted:   {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsActive reports whether a ride in this status occupies its driver.
func IsActive(s Status) bool {
	return s == StatusAccepted || s == StatusInProgress
}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(s); st {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

// DriverState is the locked view of a driver row used at commit time.
type DriverState struct {
	ID        types.ID
	Role      string
	Available bool
}
