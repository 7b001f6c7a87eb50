package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/testbench/inspection-agent/api/v1"
	"github.com/testbench/inspection-agent/internal/models"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

// ListDevices returns the device cache, refreshed from the driver registry
// when ?refresh=true.
// (GET /api/v1/devices)
func (h *Handler) ListDevices(c *gin.Context) {
	refresh := c.Query("refresh") == "true"

	devices, err := h.deviceSrv.List(c.Request.Context(), refresh)
	if err != nil {
		zap.S().Named("device_handler").Errorw("failed to list devices", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, v1.NewDevices(devices))
}

// ConnectDevice connects one instrument.
// (POST /api/v1/devices/:type/connect)
func (h *Handler) ConnectDevice(c *gin.Context) {
	deviceType, err := models.ParseDeviceType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := h.deviceSrv.Connect(c.Request.Context(), deviceType)
	if err != nil {
		if srvErrors.IsConnectError(err) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		zap.S().Named("device_handler").Errorw("failed to connect device", "device", deviceType, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to connect device"})
		return
	}

	c.JSON(http.StatusOK, v1.NewDevice(device))
}

// DisconnectDevice disconnects one instrument. Best effort: the state is
// DISCONNECTED afterwards regardless of the transport outcome.
// (POST /api/v1/devices/:type/disconnect)
func (h *Handler) DisconnectDevice(c *gin.Context) {
	deviceType, err := models.ParseDeviceType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.deviceSrv.Disconnect(c.Request.Context(), deviceType)
	c.Status(http.StatusNoContent)
}
