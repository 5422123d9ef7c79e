// README: Places handlers for address lookup while booking a ride.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rideshare/internal/types"
)

type PlacesHandler struct {
	places PlaceService
}

func NewPlacesHandler(svc PlaceService) *PlacesHandler {
	return &PlacesHandler{places: svc}
}

type geocodeReq struct {
	Address string `json:"address" validate:"required"`
}

func (h *PlacesHandler) Geocode(c *gin.Context) {
	var req geocodeReq
	if !bindJSON(c, &req) {
		return
	}
	place, err := h.places.Geocode(c.Request.Context(), req.Address)
	if err != nil {
		_ = c.Error(err)
		writeError(c, http.StatusBadRequest, "unable to geocode address")
		return
	}
	writeJSON(c, http.StatusOK, place)
}

type autocompleteReq struct {
	Input    string       `json:"input"`
	Location *types.Point `json:"location"`
}

// Autocomplete never fails on provider trouble; it answers an empty list.
func (h *PlacesHandler) Autocomplete(c *gin.Context) {
	var req autocompleteReq
	if !bindJSON(c, &req) {
		return
	}
	preds := h.places.Autocomplete(c.Request.Context(), req.Input, req.Location)
	writeJSON(c, http.StatusOK, gin.H{"predictions": nonNil(preds)})
}

type placeDetailsReq struct {
	PlaceID string `json:"place_id" validate:"required"`
}

func (h *PlacesHandler) Details(c *gin.Context) {
	var req placeDetailsReq
	if !bindJSON(c, &req) {
		return
	}
	place, err := h.places.Details(c.Request.Context(), req.PlaceID)
	if err != nil {
		_ = c.Error(err)
		writeError(c, http.StatusBadRequest, "unable to get place details")
		return
	}
	writeJSON(c, http.StatusOK, place)
}
