// README: Base handler utilities (JSON helpers, validation, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"rideshare/internal/http/middleware"
	"rideshare/internal/modules/analytics"
	"rideshare/internal/modules/location"
	"rideshare/internal/modules/payment"
	"rideshare/internal/modules/ride"
	"rideshare/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

var validate = validator.New()

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// bindJSON decodes and validates the body, answering 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := validate.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = strings.ToLower(fe.Field()) + " " + fe.Tag()
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

func caller(c *gin.Context) types.ID {
	return middleware.CallerUID(c)
}

// writeServiceError maps module errors onto status codes.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest), errors.Is(err, location.ErrInvalidProfile):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound), errors.Is(err, payment.ErrNotFound),
		errors.Is(err, payment.ErrRideNotFound), errors.Is(err, location.ErrNotFound),
		errors.Is(err, analytics.ErrNoData):
		writeError(c, http.StatusNotFound, err.Error())
	// ErrNotPermitted wraps ErrInvalidTransition, so it is matched first.
	case errors.Is(err, ride.ErrNotPermitted), errors.Is(err, payment.ErrNotPermitted):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ride.ErrInvalidTransition), errors.Is(err, ride.ErrDriverUnavailable),
		errors.Is(err, ride.ErrActiveRide), errors.Is(err, location.ErrActiveRide),
		errors.Is(err, ride.ErrConflict),
		errors.Is(err, payment.ErrAlreadyProcessed), errors.Is(err, payment.ErrAlreadyRefunded),
		errors.Is(err, payment.ErrNotCompleted):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
