// README: Ride handlers for create, history, detail, accept, status and payment.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rideshare/internal/modules/payment"
	"rideshare/internal/modules/ride"
	"rideshare/internal/types"
)

type RideHandler struct {
	rides    RideService
	payments PaymentService
}

func NewRideHandler(rides RideService, payments PaymentService) *RideHandler {
	return &RideHandler{rides: rides, payments: payments}
}

type createRideReq struct {
	PickupAddress  string   `json:"pickup_address" validate:"required,max=255"`
	DropoffAddress string   `json:"dropoff_address" validate:"required,max=255"`
	PickupLat      *float64 `json:"pickup_lat" validate:"omitempty,gte=-90,lte=90"`
	PickupLng      *float64 `json:"pickup_lng" validate:"omitempty,gte=-180,lte=180"`
	DropoffLat     *float64 `json:"dropoff_lat" validate:"omitempty,gte=-90,lte=90"`
	DropoffLng     *float64 `json:"dropoff_lng" validate:"omitempty,gte=-180,lte=180"`
	Notes          string   `json:"notes" validate:"max=1000"`
}

func (h *RideHandler) Create(c *gin.Context) {
	var req createRideReq
	if !bindJSON(c, &req) {
		return
	}
	pickup, ok1 := pointFrom(req.PickupLat, req.PickupLng)
	dropoff, ok2 := pointFrom(req.DropoffLat, req.DropoffLng)
	if !ok1 || !ok2 {
		writeError(c, http.StatusBadRequest, "coordinates need both lat and lng")
		return
	}
	res, err := h.rides.CreateRide(c.Request.Context(), ride.CreateCommand{
		RiderID:        caller(c),
		PickupAddress:  req.PickupAddress,
		DropoffAddress: req.DropoffAddress,
		Pickup:         pickup,
		Dropoff:        dropoff,
		Notes:          req.Notes,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, res)
}

// pointFrom builds a point when both halves are present; one half alone is
// rejected.
func pointFrom(lat, lng *float64) (*types.Point, bool) {
	if lat == nil && lng == nil {
		return nil, true
	}
	if lat == nil || lng == nil {
		return nil, false
	}
	return &types.Point{Lat: *lat, Lng: *lng}, true
}

func (h *RideHandler) List(c *gin.Context) {
	role := c.DefaultQuery("role", ride.ActorRider)
	if role != ride.ActorRider && role != ride.ActorDriver {
		writeError(c, http.StatusBadRequest, "role must be rider or driver")
		return
	}
	rides, err := h.rides.ListForUser(c.Request.Context(), caller(c), role)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"rides": nonNil(rides)})
}

func (h *RideHandler) Get(c *gin.Context) {
	r, err := h.rides.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if !r.HasParticipant(caller(c)) {
		writeError(c, http.StatusForbidden, "access denied")
		return
	}
	resp := gin.H{"ride": r}
	p, err := h.payments.GetByRide(c.Request.Context(), r.ID)
	switch {
	case err == nil:
		resp["payment"] = p
	case !errors.Is(err, payment.ErrNotFound):
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, resp)
}

func (h *RideHandler) Accept(c *gin.Context) {
	r, err := h.rides.Accept(c.Request.Context(), ride.AcceptCommand{
		RideID:   types.ID(c.Param("id")),
		DriverID: caller(c),
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

type updateStatusReq struct {
	Status string `json:"status" validate:"required"`
}

func (h *RideHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusReq
	if !bindJSON(c, &req) {
		return
	}
	to, ok := ride.ParseStatus(req.Status)
	if !ok {
		writeError(c, http.StatusBadRequest, "unknown status")
		return
	}
	r, err := h.rides.TransitionStatus(c.Request.Context(), ride.TransitionCommand{
		RideID:      types.ID(c.Param("id")),
		RequesterID: caller(c),
		To:          to,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *RideHandler) Pay(c *gin.Context) {
	p, err := h.payments.ProcessPayment(c.Request.Context(), types.ID(c.Param("id")), caller(c))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, p)
}

type refundReq struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *RideHandler) Refund(c *gin.Context) {
	var req refundReq
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	p, err := h.payments.Refund(c.Request.Context(), payment.RefundCommand{
		PaymentID:   types.ID(c.Param("id")),
		RequesterID: caller(c),
		Reason:      req.Reason,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, p)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
