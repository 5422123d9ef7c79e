// README: User handler for the caller's own profile.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rideshare/internal/modules/location"
)

type UserHandler struct {
	locations LocationService
}

func NewUserHandler(svc LocationService) *UserHandler {
	return &UserHandler{locations: svc}
}

type vehicleReq struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Year  int    `json:"year" validate:"omitempty,gte=1900,lte=2100"`
	Plate string `json:"plate"`
	Color string `json:"color"`
	Type  string `json:"type"`
}

type profileReq struct {
	Role    string      `json:"role" validate:"required,oneof=rider driver"`
	Name    string      `json:"name" validate:"max=100"`
	Phone   string      `json:"phone" validate:"max=32"`
	Vehicle *vehicleReq `json:"vehicle"`
}

// UpdateProfile sets the caller's role and, for drivers, vehicle info.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req profileReq
	if !bindJSON(c, &req) {
		return
	}
	p := location.Profile{Role: location.Role(req.Role), Name: req.Name, Phone: req.Phone}
	if req.Vehicle != nil {
		v := location.Vehicle(*req.Vehicle)
		p.Vehicle = &v
	}
	d, err := h.locations.SaveProfile(c.Request.Context(), caller(c), p)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, d)
}
