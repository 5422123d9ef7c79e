package handlers

import (
	"context"

	"rideshare/internal/maps"
	"rideshare/internal/modules/analytics"
	"rideshare/internal/modules/location"
	"rideshare/internal/modules/payment"
	"rideshare/internal/modules/pricing"
	"rideshare/internal/modules/ride"
	"rideshare/internal/types"
)

type RideService interface {
	CreateRide(ctx context.Context, cmd ride.CreateCommand) (*ride.CreateResult, error)
	Accept(ctx context.Context, cmd ride.AcceptCommand) (*ride.Ride, error)
	TransitionStatus(ctx context.Context, cmd ride.TransitionCommand) (*ride.Ride, error)
	SetDriverAvailability(ctx context.Context, driverID types.ID, available bool) error
	Get(ctx context.Context, id types.ID) (*ride.Ride, error)
	ListForUser(ctx context.Context, userID types.ID, role string) ([]ride.Ride, error)
	ListPending(ctx context.Context, limit int) ([]ride.Ride, error)
}

type PaymentService interface {
	ProcessPayment(ctx context.Context, rideID, payerID types.ID) (*payment.Payment, error)
	Refund(ctx context.Context, cmd payment.RefundCommand) (*payment.Payment, error)
	GetByRide(ctx context.Context, rideID types.ID) (*payment.Payment, error)
}

type LocationService interface {
	FindNearby(ctx context.Context, lat, lng, radiusKm float64) ([]location.NearbyDriver, error)
	UpdateLocation(ctx context.Context, driverID types.ID, lat, lng float64) (location.UpdateResult, error)
	GetDriver(ctx context.Context, id types.ID) (*location.Driver, error)
	SaveProfile(ctx context.Context, id types.ID, p location.Profile) (*location.Driver, error)
}

type PricingService interface {
	Estimate(distanceKm, durationMinutes float64) pricing.Breakdown
}

type RouteQuoter interface {
	Quote(ctx context.Context, origin, destination maps.Waypoint) maps.Quote
}

type PlaceService interface {
	Geocode(ctx context.Context, address string) (*maps.Place, error)
	Autocomplete(ctx context.Context, input string, near *types.Point) []maps.Prediction
	Details(ctx context.Context, placeID string) (*maps.Place, error)
}

type AnalyticsService interface {
	MatchingPerformance(ctx context.Context, days int) (*analytics.Report, error)
}
