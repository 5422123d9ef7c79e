// README: Matching inputs and outputs: candidates, ride context and decisions.
package matching

import (
	"errors"
	"time"

	"rideshare/internal/modules/location"
	"rideshare/internal/types"
)

// ErrNoCandidate means no candidate in the pool is still available.
var ErrNoCandidate = errors.New("no available candidate")

type Strategy string

const (
	StrategyDeterministic Strategy = "deterministic"
	StrategyDelegated     Strategy = "delegated"
)

// Candidate is a driver snapshot taken by the locator for one ride request.
type Candidate struct {
	Driver      location.Driver
	DistanceKm  float64
	RecentRides int
}

func (c Candidate) ID() types.ID { return c.Driver.ID }

// RideContext is the ride-side input to ranking.
type RideContext struct {
	RideID         types.ID
	Pickup         *types.Point
	Dropoff        *types.Point
	PickupAddress  string
	DropoffAddress string
	DistanceKm     float64
	RequestedAt    time.Time
	Notes          string
}

type Decision struct {
	DriverID      types.ID `json:"driver_id"`
	Confidence    float64  `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
	KeyFactors    []string `json:"key_factors"`
	AlternativeID types.ID `json:"alternative_id,omitempty"`
	Strategy      Strategy `json:"strategy"`
}

type ScoreBreakdown struct {
	Distance   float64 `json:"distance"`
	Rating     float64 `json:"rating"`
	Experience float64 `json:"experience"`
	Freshness  float64 `json:"freshness"`
	Composite  float64 `json:"composite"`
}

type Scored struct {
	Candidate
	Score ScoreBreakdown
}
