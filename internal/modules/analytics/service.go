// README: Analytics service summarises matching quality, optionally with model insights.
package analytics

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"rideshare/internal/ai"
	"rideshare/internal/geo"
)

var ErrNoData = errors.New("no completed rides in the requested period")

type Analyzer interface {
	AnalyzeMatching(ctx context.Context, stats ai.MatchingStats) (*ai.MatchingInsights, error)
}

type Service struct {
	store    Store
	analyzer Analyzer
	log      *zap.Logger
	now      func() time.Time
}

// NewService accepts a nil analyzer; reports are then always basic.
func NewService(store Store, analyzer Analyzer, log *zap.Logger) *Service {
	return &Service{store: store, analyzer: analyzer, log: log, now: time.Now}
}

// MatchingPerformance reports on rides completed in the last days days.
func (s *Service) MatchingPerformance(ctx context.Context, days int) (*Report, error) {
	if days <= 0 {
		days = DefaultPeriodDays
	}
	if days > maxPeriodDays {
		days = maxPeriodDays
	}
	rides, err := s.store.CompletedRides(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return nil, err
	}
	if len(rides) == 0 {
		return nil, ErrNoData
	}

	stats := summarize(rides)
	report := &Report{
		PeriodDays:               days,
		TotalRides:               stats.TotalRides,
		AveragePickupTimeMinutes: geo.Round2(stats.AveragePickupTimeMinutes),
		AverageDriverRating:      geo.Round2(stats.AverageDriverRating),
		AnalysisMethod:           MethodBasic,
	}
	if s.analyzer == nil {
		return report, nil
	}

	insights, err := s.analyzer.AnalyzeMatching(ctx, stats)
	if err != nil {
		s.log.Warn("matching analysis failed, returning basic report", zap.Error(err))
		return report, nil
	}
	report.MatchingInsights = insights
	report.AnalysisMethod = MethodAIPowered
	return report, nil
}

// summarize averages pickup time over rides that were accepted and rating
// over all rides. Samples are capped to the most recent rides.
func summarize(rides []CompletedRide) ai.MatchingStats {
	var pickupSum, ratingSum float64
	accepted := 0
	samples := make([]ai.RideSample, 0, min(len(rides), maxSamples))
	for i, r := range rides {
		ratingSum += r.DriverRating
		var pickup *float64
		if r.AcceptedAt != nil {
			m := r.AcceptedAt.Sub(r.RequestedAt).Minutes()
			pickup = &m
			pickupSum += m
			accepted++
		}
		if i < maxSamples {
			samples = append(samples, ai.RideSample{
				PickupTimeMinutes: pickup,
				DriverRating:      r.DriverRating,
				DistanceKm:        r.DistanceKm,
				Price:             r.Price,
				DayOfWeek:         r.RequestedAt.Weekday().String(),
				HourOfDay:         r.RequestedAt.Hour(),
			})
		}
	}
	stats := ai.MatchingStats{
		TotalRides:          len(rides),
		AverageDriverRating: ratingSum / float64(len(rides)),
		Samples:             samples,
	}
	if accepted > 0 {
		stats.AveragePickupTimeMinutes = pickupSum / float64(accepted)
	}
	return stats
}
