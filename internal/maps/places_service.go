// README: Address lookup for the booking form: geocoding, autocomplete and place details.
package maps

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"
	"googlemaps.github.io/maps"

	"rideshare/internal/types"
)

// ErrNotConfigured means no maps API key was supplied.
var ErrNotConfigured = errors.New("maps api key not configured")

const (
	minAutocompleteInput = 3
	autocompleteBiasM    = 50000
)

// Place is a resolved location.
type Place struct {
	PlaceID          string  `json:"place_id,omitempty"`
	Name             string  `json:"name,omitempty"`
	FormattedAddress string  `json:"formatted_address"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
}

// Prediction is one autocomplete suggestion.
type Prediction struct {
	PlaceID       string `json:"place_id"`
	Description   string `json:"description"`
	MainText      string `json:"main_text"`
	SecondaryText string `json:"secondary_text"`
}

// placesClient is the subset of *maps.Client used here.
type placesClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	PlaceAutocomplete(ctx context.Context, r *maps.PlaceAutocompleteRequest) (maps.AutocompleteResponse, error)
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
}

// PlacesService handles interactions with the Google Geocoding and Places
// APIs. Without a key every lookup degrades instead of failing hard.
type PlacesService struct {
	client placesClient
	log    *zap.Logger
}

// NewPlacesService creates a PlacesService. An empty key yields a service
// that returns no suggestions and ErrNotConfigured for lookups.
func NewPlacesService(apiKey string, log *zap.Logger) (*PlacesService, error) {
	if apiKey == "" {
		return &PlacesService{log: log}, nil
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &PlacesService{client: client, log: log}, nil
}

// Geocode resolves an address to its best match.
func (s *PlacesService) Geocode(ctx context.Context, address string) (*Place, error) {
	if s.client == nil {
		return nil, ErrNotConfigured
	}
	res, err := firstGeocode(ctx, s.client, address)
	if err != nil {
		return nil, err
	}
	return &Place{
		PlaceID:          res.PlaceID,
		FormattedAddress: res.FormattedAddress,
		Lat:              res.Geometry.Location.Lat,
		Lng:              res.Geometry.Location.Lng,
	}, nil
}

// Autocomplete suggests places for partial input, biased towards near when
// given. Short input, a missing key and provider errors all yield an empty
// list.
func (s *PlacesService) Autocomplete(ctx context.Context, input string, near *types.Point) []Prediction {
	if s.client == nil || utf8.RuneCountInString(input) < minAutocompleteInput {
		return []Prediction{}
	}
	req := &maps.PlaceAutocompleteRequest{Input: input}
	if near != nil {
		req.Location = &maps.LatLng{Lat: near.Lat, Lng: near.Lng}
		req.Radius = autocompleteBiasM
	}
	resp, err := s.client.PlaceAutocomplete(ctx, req)
	if err != nil {
		s.log.Warn("place autocomplete failed", zap.String("input", input), zap.Error(err))
		return []Prediction{}
	}
	out := make([]Prediction, 0, len(resp.Predictions))
	for _, p := range resp.Predictions {
		out = append(out, Prediction{
			PlaceID:       p.PlaceID,
			Description:   p.Description,
			MainText:      p.StructuredFormatting.MainText,
			SecondaryText: p.StructuredFormatting.SecondaryText,
		})
	}
	return out
}

// Details resolves a place id from an autocomplete suggestion.
func (s *PlacesService) Details(ctx context.Context, placeID string) (*Place, error) {
	if s.client == nil {
		return nil, ErrNotConfigured
	}
	res, err := s.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID: placeID,
		Fields: []maps.PlaceDetailsFieldMask{
			maps.PlaceDetailsFieldMaskGeometry,
			maps.PlaceDetailsFieldMaskFormattedAddress,
			maps.PlaceDetailsFieldMaskName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("place details %q: %w", placeID, err)
	}
	return &Place{
		PlaceID:          placeID,
		Name:             res.Name,
		FormattedAddress: res.FormattedAddress,
		Lat:              res.Geometry.Location.Lat,
		Lng:              res.Geometry.Location.Lng,
	}, nil
}

type geocodeClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

func firstGeocode(ctx context.Context, c geocodeClient, address string) (maps.GeocodingResult, error) {
	results, err := c.Geocode(ctx, &maps.GeocodingRequest{Address: address})
	if err != nil {
		return maps.GeocodingResult{}, fmt.Errorf("geocode %q: %w", address, err)
	}
	if len(results) == 0 {
		return maps.GeocodingResult{}, fmt.Errorf("geocode %q: %w", address, ErrNoRoute)
	}
	return results[0], nil
}
