// README: Pricing handler returns fare estimates.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rideshare/internal/maps"
)

type PricingHandler struct {
	pricing PricingService
	routes  RouteQuoter
}

func NewPricingHandler(pricing PricingService, routes RouteQuoter) *PricingHandler {
	return &PricingHandler{pricing: pricing, routes: routes}
}

type estimateReq struct {
	DistanceKm      *float64 `json:"distance_km" validate:"omitempty,gte=0"`
	DurationMinutes *float64 `json:"duration_minutes" validate:"omitempty,gte=0"`
	PickupAddress   string   `json:"pickup_address"`
	DropoffAddress  string   `json:"dropoff_address"`
	PickupLat       *float64 `json:"pickup_lat" validate:"omitempty,gte=-90,lte=90"`
	PickupLng       *float64 `json:"pickup_lng" validate:"omitempty,gte=-180,lte=180"`
	DropoffLat      *float64 `json:"dropoff_lat" validate:"omitempty,gte=-90,lte=90"`
	DropoffLng      *float64 `json:"dropoff_lng" validate:"omitempty,gte=-180,lte=180"`
}

// Estimate prices an explicit distance, or quotes the route between two
// waypoints first.
func (h *PricingHandler) Estimate(c *gin.Context) {
	var req estimateReq
	if !bindJSON(c, &req) {
		return
	}

	var quote maps.Quote
	switch {
	case req.DistanceKm != nil:
		quote = maps.Quote{DistanceKm: *req.DistanceKm, DurationMinutes: maps.FallbackMinutes(*req.DistanceKm), Source: maps.SourceEstimate}
		if req.DurationMinutes != nil {
			quote.DurationMinutes = *req.DurationMinutes
		}
	default:
		pickup, ok1 := pointFrom(req.PickupLat, req.PickupLng)
		dropoff, ok2 := pointFrom(req.DropoffLat, req.DropoffLng)
		if !ok1 || !ok2 {
			writeError(c, http.StatusBadRequest, "coordinates need both lat and lng")
			return
		}
		if (pickup == nil && req.PickupAddress == "") || (dropoff == nil && req.DropoffAddress == "") {
			writeError(c, http.StatusBadRequest, "distance_km or pickup and dropoff required")
			return
		}
		quote = h.routes.Quote(c.Request.Context(),
			maps.Waypoint{Address: req.PickupAddress, Point: pickup},
			maps.Waypoint{Address: req.DropoffAddress, Point: dropoff},
		)
	}
	writeJSON(c, http.StatusOK, gin.H{
		"pricing": h.pricing.Estimate(quote.DistanceKm, quote.DurationMinutes),
		"source":  quote.Source,
	})
}
