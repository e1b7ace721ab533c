package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oakmont-tuition/omt-api/internal/service"
	"github.com/oakmont-tuition/omt-api/pkg/response"
)

// MetricsHandler serves the liveness and Prometheus scrape endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
}

func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Prometheus exposes the metrics registry in Prometheus text format.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health answers liveness probes. Readiness is a separate endpoint that also
// checks the database.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Summary godoc
// @Summary System metrics summary
// @Description Aggregated request, cache and database statistics
// @Tags System
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /system/metrics [get]
func (h *MetricsHandler) Summary(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
