// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rideshare/internal/http/handlers"
	"rideshare/internal/http/middleware"
)

type RouterDeps struct {
	Rides     handlers.RideService
	Payments  handlers.PaymentService
	Locations handlers.LocationService
	Pricing   handlers.PricingService
	Routes    handlers.RouteQuoter
	Places    handlers.PlaceService
	Analytics handlers.AnalyticsService
	RadiusKm  float64
	Log       *zap.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logging(d.Log), middleware.Recovery(d.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth())

	rides := handlers.NewRideHandler(d.Rides, d.Payments)
	api.POST("/rides", rides.Create)
	api.GET("/rides", rides.List)
	api.GET("/rides/:id", rides.Get)
	api.POST("/rides/:id/accept", rides.Accept)
	api.POST("/rides/:id/status", rides.UpdateStatus)
	api.POST("/rides/:id/payment", rides.Pay)
	api.POST("/payments/:id/refund", rides.Refund)

	drivers := handlers.NewDriverHandler(d.Rides, d.Locations, d.RadiusKm)
	api.GET("/drivers/pending-rides", drivers.PendingRides)
	api.GET("/drivers/nearby", drivers.Nearby)
	api.POST("/drivers/:id/availability", drivers.SetAvailability)

	locations := handlers.NewLocationHandler(d.Locations)
	api.GET("/drivers/:id", locations.Get)
	api.PUT("/drivers/:id/location", locations.Update)

	pricing := handlers.NewPricingHandler(d.Pricing, d.Routes)
	api.POST("/pricing/estimate", pricing.Estimate)

	places := handlers.NewPlacesHandler(d.Places)
	api.POST("/geocode", places.Geocode)
	api.POST("/autocomplete", places.Autocomplete)
	api.POST("/place_details", places.Details)

	users := handlers.NewUserHandler(d.Locations)
	api.PUT("/users/me/profile", users.UpdateProfile)

	analytics := handlers.NewAnalyticsHandler(d.Analytics)
	api.GET("/analytics/matching", analytics.Matching)

	return r
}
