package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"googlemaps.github.io/maps"

	"rideshare/internal/geo"
	"rideshare/internal/types"
)

var ErrNoRoute = errors.New("no route found")

// Waypoint is an address, a coordinate, or both. The coordinate wins when
// present.
type Waypoint struct {
	Address string
	Point   *types.Point
}

func (w Waypoint) query() string {
	if w.Point != nil {
		return strconv.FormatFloat(w.Point.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(w.Point.Lng, 'f', 6, 64)
	}
	return w.Address
}

// Quote is a driving distance and duration estimate.
type Quote struct {
	DistanceKm      float64 `json:"distance_km"`
	DurationMinutes float64 `json:"duration_minutes"`
	Source          string  `json:"source"`
}

const (
	SourceMaps     = "maps"
	SourceEstimate = "estimate"
)

type DistanceProvider interface {
	Distance(ctx context.Context, origin, destination Waypoint) (Quote, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (*types.Point, error)
}

// mapsClient is the subset of *maps.Client used here.
type mapsClient interface {
	DistanceMatrix(ctx context.Context, r *maps.DistanceMatrixRequest) (*maps.DistanceMatrixResponse, error)
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client mapsClient
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string) (*RouteService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Distance returns the driving distance and duration between two waypoints.
func (s *RouteService) Distance(ctx context.Context, origin, destination Waypoint) (Quote, error) {
	if origin.query() == "" || destination.query() == "" {
		return Quote{}, fmt.Errorf("distance matrix: %w", ErrNoRoute)
	}
	resp, err := s.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{origin.query()},
		Destinations: []string{destination.query()},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	})
	if err != nil {
		return Quote{}, fmt.Errorf("maps api error: %w", err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return Quote{}, ErrNoRoute
	}
	el := resp.Rows[0].Elements[0]
	if el == nil {
		return Quote{}, ErrNoRoute
	}
	if el.Status != "OK" {
		return Quote{}, fmt.Errorf("distance matrix element %s: %w", el.Status, ErrNoRoute)
	}
	return Quote{
		DistanceKm:      geo.Round2(float64(el.Distance.Meters) / 1000),
		DurationMinutes: math.Round(el.Duration.Minutes()),
		Source:          SourceMaps,
	}, nil
}

// Geocode resolves an address to its first matching coordinate.
func (s *RouteService) Geocode(ctx context.Context, address string) (*types.Point, error) {
	res, err := firstGeocode(ctx, s.client, address)
	if err != nil {
		return nil, err
	}
	loc := res.Geometry.Location
	return &types.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
