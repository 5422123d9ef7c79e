// README: Location handler for driver position updates.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rideshare/internal/modules/location"
	"rideshare/internal/types"
)

type LocationHandler struct {
	locations LocationService
}

func NewLocationHandler(svc LocationService) *LocationHandler {
	return &LocationHandler{locations: svc}
}

type updateLocationReq struct {
	Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

// Get returns a driver profile. Riders are not exposed here.
func (h *LocationHandler) Get(c *gin.Context) {
	d, err := h.locations.GetDriver(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if d.Role != location.RoleDriver {
		writeError(c, http.StatusNotFound, "driver not found")
		return
	}
	writeJSON(c, http.StatusOK, d)
}

func (h *LocationHandler) Update(c *gin.Context) {
	id := types.ID(c.Param("id"))
	if id != caller(c) {
		writeError(c, http.StatusForbidden, "drivers can only update their own location")
		return
	}
	var req updateLocationReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.locations.UpdateLocation(c.Request.Context(), id, *req.Lat, *req.Lng)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	switch res {
	case location.UpdateNotFound:
		writeError(c, http.StatusNotFound, "driver not found")
	case location.UpdateNotADriver:
		writeError(c, http.StatusForbidden, "only drivers report locations")
	default:
		writeJSON(c, http.StatusOK, gin.H{"status": res})
	}
}
