package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	v1 "github.com/testbench/inspection-agent/api/v1"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

// GetPhaseMeasurements returns the readings of one phase, oldest first,
// optionally limited to the most recent n.
// (GET /api/v1/measurements/:phase)
func (h *Handler) GetPhaseMeasurements(c *gin.Context) {
	phase := c.Param("phase")

	readings, err := h.store.History().Snapshot(phase)
	if err != nil {
		if srvErrors.IsResourceNotFoundError(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read measurements"})
		return
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		if limit < len(readings) {
			readings = readings[len(readings)-limit:]
		}
	}

	c.JSON(http.StatusOK, v1.NewReadings(readings))
}

// GetMergedMeasurements returns the cross-phase view in arrival order.
// (GET /api/v1/measurements)
func (h *Handler) GetMergedMeasurements(c *gin.Context) {
	c.JSON(http.StatusOK, v1.NewReadings(h.store.History().Merged()))
}
