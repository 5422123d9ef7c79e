// README: Pricing rates and fare breakdown.
package pricing

import "rideshare/internal/config"

// Rate holds the tariff. Units are currency agnostic.
type Rate struct {
	BaseFare  float64
	PerKm     float64
	PerMinute float64
}

func DefaultRate() Rate {
	return Rate{BaseFare: 5.00, PerKm: 1.50, PerMinute: 0.30}
}

func RateFromConfig(c config.PricingConfig) Rate {
	return Rate{BaseFare: c.BaseFare, PerKm: c.PerKm, PerMinute: c.PerMinute}
}

type Breakdown struct {
	BaseFare        float64 `json:"base_fare"`
	DistanceCost    float64 `json:"distance_cost"`
	TimeCost        float64 `json:"time_cost"`
	Total           float64 `json:"total"`
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
}
