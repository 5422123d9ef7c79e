package matching

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"rideshare/internal/ai"
	"rideshare/internal/geo"
	"rideshare/internal/observability"
	"rideshare/internal/types"
)

const (
	defaultVehicleType = "sedan"
	defaultVehicleYear = 2020
)

// Fallback reasons, used as metric labels.
const (
	reasonTimeout     = "timeout"
	reasonError       = "error"
	reasonUnknown     = "unknown_driver"
	reasonUnavailable = "unavailable_driver"
)

// DelegatedRanker asks an external model to choose a driver and falls back
// to the deterministic scorer on any failure. It never returns the external
// error to the caller.
type DelegatedRanker struct {
	provider ai.RankingProvider
	fallback *DeterministicScorer
	timeout  time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewDelegatedRanker(provider ai.RankingProvider, fallback *DeterministicScorer, timeout time.Duration, log *zap.Logger) *DelegatedRanker {
	return &DelegatedRanker{
		provider: provider,
		fallback: fallback,
		timeout:  timeout,
		log:      log,
		now:      fallback.now,
	}
}

func (r *DelegatedRanker) Rank(ctx context.Context, ride RideContext, pool []Candidate) (*Decision, error) {
	if !anyAvailable(pool) {
		return nil, ErrNoCandidate
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	resp, err := r.provider.RankDrivers(callCtx, ai.DriverRankingRequest{
		Ride:    r.rideSummary(ride),
		Drivers: r.profiles(pool),
	})
	if err != nil {
		reason := reasonError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = reasonTimeout
		}
		return r.fallBack(ctx, ride, pool, reason, err)
	}
	if resp == nil {
		return r.fallBack(ctx, ride, pool, reasonError, errors.New("empty ranking response"))
	}

	byID := make(map[types.ID]Candidate, len(pool))
	for _, c := range pool {
		byID[c.ID()] = c
	}
	selected, ok := byID[types.ID(resp.SelectedDriverID)]
	if !ok {
		return r.fallBack(ctx, ride, pool, reasonUnknown, nil)
	}
	if !selected.Driver.Available {
		return r.fallBack(ctx, ride, pool, reasonUnavailable, nil)
	}

	d := &Decision{
		DriverID:   selected.ID(),
		Confidence: clamp01(resp.ConfidenceScore),
		Reasoning:  resp.Reasoning,
		KeyFactors: resp.KeyFactors,
		Strategy:   StrategyDelegated,
	}
	if alt, ok := byID[types.ID(resp.AlternativeDriverID)]; ok && alt.Driver.Available && alt.ID() != d.DriverID {
		d.AlternativeID = alt.ID()
	}
	return d, nil
}

func (r *DelegatedRanker) fallBack(ctx context.Context, ride RideContext, pool []Candidate, reason string, cause error) (*Decision, error) {
	observability.RankerFallbacks.WithLabelValues(reason).Inc()
	fields := []zap.Field{zap.String("ride_id", string(ride.RideID)), zap.String("reason", reason)}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	r.log.Warn("delegated ranking unusable, falling back to deterministic scorer", fields...)
	return r.fallback.Rank(ctx, ride, pool)
}

func (r *DelegatedRanker) rideSummary(ride RideContext) ai.RideSummary {
	s := ai.RideSummary{
		PickupAddress:  ride.PickupAddress,
		DropoffAddress: ride.DropoffAddress,
		DistanceKm:     ride.DistanceKm,
		RequestTime:    ride.RequestedAt.Format("15:04 on Monday"),
		Notes:          ride.Notes,
	}
	if ride.Pickup != nil {
		s.PickupLat, s.PickupLng = &ride.Pickup.Lat, &ride.Pickup.Lng
	}
	if ride.Dropoff != nil {
		s.DropoffLat, s.DropoffLng = &ride.Dropoff.Lat, &ride.Dropoff.Lng
	}
	return s
}

func (r *DelegatedRanker) profiles(pool []Candidate) []ai.DriverProfile {
	out := make([]ai.DriverProfile, len(pool))
	for i, c := range pool {
		out[i] = r.profile(c)
	}
	return out
}

func (r *DelegatedRanker) profile(c Candidate) ai.DriverProfile {
	d := c.Driver
	p := ai.DriverProfile{
		DriverID:                  string(d.ID),
		Rating:                    d.Rating,
		TotalRides:                d.TotalRides,
		RecentRidesCount:          c.RecentRides,
		DistanceToPickupKm:        geo.Round2(c.DistanceKm),
		VehicleType:               defaultVehicleType,
		VehicleYear:               defaultVehicleYear,
		IsAvailable:               d.Available,
		LocationUpdatedMinutesAgo: int(staleMinutes),
		AcceptanceRate:            AcceptanceRate(d.Rating, d.TotalRides),
	}
	if d.Vehicle != nil {
		if d.Vehicle.Type != "" {
			p.VehicleType = d.Vehicle.Type
		}
		if d.Vehicle.Year != 0 {
			p.VehicleYear = d.Vehicle.Year
		}
	}
	if d.LocationUpdatedAt != nil {
		p.LocationUpdatedMinutesAgo = int(r.now().Sub(*d.LocationUpdatedAt).Minutes())
	}
	return p
}

// AcceptanceRate is a placeholder signal derived from rating and experience;
// no offer/accept history is recorded.
func AcceptanceRate(rating float64, totalRides int) float64 {
	return geo.Round2(math.Min(0.95, rating/5*0.9) + math.Min(0.1, float64(totalRides)/100*0.1))
}

func anyAvailable(pool []Candidate) bool {
	for _, c := range pool {
		if c.Driver.Available {
			return true
		}
	}
	return false
}
