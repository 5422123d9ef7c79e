// README: Driver handlers for the open ride list, availability and nearby search.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rideshare/internal/types"
)

type DriverHandler struct {
	rides         RideService
	locations     LocationService
	defaultRadius float64
}

func NewDriverHandler(rides RideService, locations LocationService, defaultRadiusKm float64) *DriverHandler {
	return &DriverHandler{rides: rides, locations: locations, defaultRadius: defaultRadiusKm}
}

func (h *DriverHandler) PendingRides(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rides, err := h.rides.ListPending(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": nonNil(rides)})
}

type availabilityReq struct {
	Available *bool `json:"is_available" validate:"required"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if id != caller(c) {
		writeError(c, http.StatusForbidden, "drivers can only change their own availability")
		return
	}
	var req availabilityReq
	if !bindJSON(c, &req) {
		return
	}
	if err := h.rides.SetDriverAvailability(c.Request.Context(), id, *req.Available); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"driver_id": id, "is_available": *req.Available})
}

type nearbyQuery struct {
	Lat      *float64 `form:"lat" validate:"required,gte=-90,lte=90"`
	Lng      *float64 `form:"lng" validate:"required,gte=-180,lte=180"`
	RadiusKm *float64 `form:"radius_km" validate:"omitempty,gte=0,lte=100"`
}

func (h *DriverHandler) Nearby(c *gin.Context) {
	var q nearbyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		writeError(c, http.StatusBadRequest, "invalid query")
		return
	}
	if err := validate.Struct(q); err != nil {
		writeError(c, http.StatusBadRequest, validationMessage(err))
		return
	}
	radius := h.defaultRadius
	if q.RadiusKm != nil {
		radius = *q.RadiusKm
	}
	drivers, err := h.locations.FindNearby(c.Request.Context(), *q.Lat, *q.Lng, radius)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"radius_km": radius, "drivers": nonNil(drivers)})
}
