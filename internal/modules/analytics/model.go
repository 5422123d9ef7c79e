// README: Matching performance report over completed rides.
package analytics

import (
	"time"

	"rideshare/internal/ai"
)

const (
	MethodBasic     = "basic"
	MethodAIPowered = "ai_powered"

	DefaultPeriodDays = 30
	maxPeriodDays     = 365
	maxSamples        = 50
)

// CompletedRide is one completed ride joined with its driver's rating.
type CompletedRide struct {
	RequestedAt  time.Time
	AcceptedAt   *time.Time
	DriverRating float64
	DistanceKm   float64
	Price        float64
}

// Report carries the basic metrics and, when available, the insights of the
// analysis model flattened into the same JSON object.
type Report struct {
	PeriodDays               int     `json:"period_days"`
	TotalRides               int     `json:"total_rides"`
	AveragePickupTimeMinutes float64 `json:"average_pickup_time_minutes"`
	AverageDriverRating      float64 `json:"average_driver_rating"`
	AnalysisMethod           string  `json:"analysis_method"`
	*ai.MatchingInsights
}
