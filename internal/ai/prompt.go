package ai

import (
	"encoding/json"
	"fmt"
)

func formatCoord(lat, lng *float64) string {
	if lat == nil || lng == nil {
		return "unknown"
	}
	return fmt.Sprintf("(%.6f, %.6f)", *lat, *lng)
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// buildRankingPrompt renders the ride and candidate profiles into the
// instruction sent to the model.
func buildRankingPrompt(req DriverRankingRequest) (string, error) {
	drivers, err := json.MarshalIndent(req.Drivers, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode driver profiles: %w", err)
	}
	r := req.Ride
	return fmt.Sprintf(`Role: You are the dispatch ranking engine of a ride-hailing platform.
Pick the single best driver for the ride request below.

RIDE REQUEST:
- Pickup: %s %s
- Dropoff: %s %s
- Estimated distance: %.2f km
- Request time: %s
- Rider notes: %s

AVAILABLE DRIVERS:
%s

SELECTION CRITERIA (most important first):
1. Availability and location freshness (prefer recent position updates).
2. Distance to pickup (minimize rider wait).
3. Rating and reliability.
4. Recent activity and acceptance rate.
5. Vehicle suitability for the trip.

RULES:
- "selected_driver_id" MUST be one of the driver_id values listed above, copied exactly.
- "alternative_driver_id" is optional; when present it MUST also be a listed driver_id.
- "confidence_score" is a number between 0 and 1.

Output JSON Schema:
{
  "selected_driver_id": "string",
  "confidence_score": number,
  "reasoning": "string",
  "alternative_driver_id": "string or null",
  "key_factors": ["string"]
}
`,
		formatCoord(r.PickupLat, r.PickupLng), orNone(r.PickupAddress),
		formatCoord(r.DropoffLat, r.DropoffLng), orNone(r.DropoffAddress),
		r.DistanceKm, r.RequestTime, orNone(r.Notes), drivers), nil
}

func buildAnalysisPrompt(stats MatchingStats) (string, error) {
	samples, err := json.MarshalIndent(stats.Samples, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode ride samples: %w", err)
	}
	return fmt.Sprintf(`Analyze the following ride-hailing matching performance data.

SUMMARY METRICS:
- Total rides analyzed: %d
- Average pickup time: %.2f minutes
- Average driver rating: %.2f

RIDE SAMPLES:
%s

Focus on pickup time efficiency, driver quality consistency, peak hour and
day-of-week patterns, distance versus time, and concrete recommendations.

Output JSON Schema:
{
  "overall_performance": "excellent" | "good" | "fair" | "poor",
  "key_insights": ["string"],
  "pickup_time_analysis": "string",
  "driver_quality_analysis": "string",
  "recommendations": ["string"],
  "performance_score": number,
  "areas_for_improvement": ["string"]
}
`, stats.TotalRides, stats.AveragePickupTimeMinutes, stats.AverageDriverRating, samples), nil
}
