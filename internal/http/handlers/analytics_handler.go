// README: Analytics handler for matching performance reports.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AnalyticsHandler struct {
	analytics AnalyticsService
}

func NewAnalyticsHandler(svc AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: svc}
}

func (h *AnalyticsHandler) Matching(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil || days <= 0 {
		writeError(c, http.StatusBadRequest, "days must be a positive integer")
		return
	}
	report, err := h.analytics.MatchingPerformance(c.Request.Context(), days)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, report)
}
