// README: Pricing service computes fare estimates.
package pricing

import "rideshare/internal/geo"

type Service struct {
	rate Rate
}

func NewService(rate Rate) *Service {
	return &Service{rate: rate}
}

// Estimate prices a trip. Each component and the total are rounded to two
// decimals, half away from zero; the total is summed from unrounded parts.
// Inputs are expected to be non-negative.
func (s *Service) Estimate(distanceKm, durationMinutes float64) Breakdown {
	distanceCost := distanceKm * s.rate.PerKm
	timeCost := durationMinutes * s.rate.PerMinute
	return Breakdown{
		BaseFare:        geo.Round2(s.rate.BaseFare),
		DistanceCost:    geo.Round2(distanceCost),
		TimeCost:        geo.Round2(timeCost),
		Total:           geo.Round2(s.rate.BaseFare + distanceCost + timeCost),
		DistanceKm:      distanceKm,
		DurationMinutes: durationMinutes,
	}
}

func (s *Service) Rate() Rate { return s.rate }
