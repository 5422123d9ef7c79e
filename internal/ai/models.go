package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RideSummary describes the trip being matched.
type RideSummary struct {
	PickupLat      *float64 `json:"pickup_lat"`
	PickupLng      *float64 `json:"pickup_lng"`
	DropoffLat     *float64 `json:"dropoff_lat"`
	DropoffLng     *float64 `json:"dropoff_lng"`
	PickupAddress  string   `json:"pickup_address"`
	DropoffAddress string   `json:"dropoff_address"`
	DistanceKm     float64  `json:"distance_km"`
	RequestTime    string   `json:"request_time"`
	Notes          string   `json:"notes"`
}

// DriverProfile is the per-candidate summary sent to the model.
type DriverProfile struct {
	DriverID                  string  `json:"driver_id"`
	Rating                    float64 `json:"rating"`
	TotalRides                int     `json:"total_rides"`
	RecentRidesCount          int     `json:"recent_rides_count"`
	DistanceToPickupKm        float64 `json:"distance_to_pickup_km"`
	VehicleType               string  `json:"vehicle_type"`
	VehicleYear               int     `json:"vehicle_year"`
	IsAvailable               bool    `json:"is_available"`
	LocationUpdatedMinutesAgo int     `json:"location_updated_minutes_ago"`
	AcceptanceRate            float64 `json:"acceptance_rate"`
}

type DriverRankingRequest struct {
	Ride    RideSummary
	Drivers []DriverProfile
}

// DriverRef accepts a driver id encoded either as a JSON string or number.
type DriverRef string

func (r *DriverRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*r = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = DriverRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("driver id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*r = DriverRef(strconv.FormatInt(i, 10))
		return nil
	}
	*r = DriverRef(n.String())
	return nil
}

// RankingDecision captures the structured output of a ranking call.
type RankingDecision struct {
	SelectedDriverID    DriverRef `json:"selected_driver_id"`
	ConfidenceScore     float64   `json:"confidence_score"`
	Reasoning           string    `json:"reasoning"`
	AlternativeDriverID DriverRef `json:"alternative_driver_id,omitempty"`
	KeyFactors          []string  `json:"key_factors"`
}

// RideSample is one completed ride in an analysis window.
type RideSample struct {
	PickupTimeMinutes *float64 `json:"pickup_time_minutes"`
	DriverRating      float64  `json:"driver_rating"`
	DistanceKm        float64  `json:"distance_km"`
	Price             float64  `json:"price"`
	DayOfWeek         string   `json:"day_of_week"`
	HourOfDay         int      `json:"hour_of_day"`
}

type MatchingStats struct {
	TotalRides               int
	AveragePickupTimeMinutes float64
	AverageDriverRating      float64
	Samples                  []RideSample
}

type MatchingInsights struct {
	OverallPerformance    string   `json:"overall_performance"`
	KeyInsights           []string `json:"key_insights"`
	PickupTimeAnalysis    string   `json:"pickup_time_analysis"`
	DriverQualityAnalysis string   `json:"driver_quality_analysis"`
	Recommendations       []string `json:"recommendations"`
	PerformanceScore      float64  `json:"performance_score"`
	AreasForImprovement   []string `json:"areas_for_improvement"`
}
