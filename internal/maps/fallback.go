package maps

import (
	"context"
	"math"

	"go.uber.org/zap"

	"rideshare/internal/geo"
	"rideshare/internal/observability"
	"rideshare/internal/types"
)

const minFallbackMinutes = 15

// EstimateFromPoints is the straight-line estimator used when no routing
// provider is available. Missing coordinates yield a zero distance.
func EstimateFromPoints(origin, destination *types.Point) Quote {
	km := 0.0
	if origin != nil && destination != nil {
		km = geo.Round2(geo.HaversineKm(origin.Lat, origin.Lng, destination.Lat, destination.Lng))
	}
	return Quote{
		DistanceKm:      km,
		DurationMinutes: FallbackMinutes(km),
		Source:          SourceEstimate,
	}
}

// FallbackMinutes is the duration assumed for a trip of km without routing
// data.
func FallbackMinutes(km float64) float64 {
	return math.Max(minFallbackMinutes, km*2.5)
}

// ResilientProvider wraps optional routing and geocoding collaborators and
// never fails: provider errors degrade to the straight-line estimate.
type ResilientProvider struct {
	routes   DistanceProvider
	geocoder Geocoder
	log      *zap.Logger
}

// NewResilientProvider accepts nil collaborators (no API key configured).
func NewResilientProvider(routes DistanceProvider, geocoder Geocoder, log *zap.Logger) *ResilientProvider {
	return &ResilientProvider{routes: routes, geocoder: geocoder, log: log}
}

func (p *ResilientProvider) Quote(ctx context.Context, origin, destination Waypoint) Quote {
	if p.routes != nil {
		q, err := p.routes.Distance(ctx, origin, destination)
		if err == nil {
			return q
		}
		p.log.Warn("distance provider failed, using estimate", zap.Error(err))
	}
	observability.DistanceFallbacks.Inc()
	return EstimateFromPoints(origin.Point, destination.Point)
}

// Resolve fills in a missing coordinate from the address when a geocoder is
// configured. Failures leave the waypoint unchanged.
func (p *ResilientProvider) Resolve(ctx context.Context, w Waypoint) Waypoint {
	if w.Point != nil || w.Address == "" || p.geocoder == nil {
		return w
	}
	pt, err := p.geocoder.Geocode(ctx, w.Address)
	if err != nil {
		p.log.Warn("geocoding failed", zap.String("address", w.Address), zap.Error(err))
		return w
	}
	w.Point = pt
	return w
}
