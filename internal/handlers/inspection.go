package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "github.com/testbench/inspection-agent/api/v1"
	srvErrors "github.com/testbench/inspection-agent/pkg/errors"
)

// GetStatus returns the aggregate agent status: stream, session and devices.
// (GET /api/v1/status)
func (h *Handler) GetStatus(c *gin.Context) {
	devices, err := h.deviceSrv.List(c.Request.Context(), false)
	if err != nil {
		devices = nil
	}

	c.JSON(http.StatusOK, v1.AgentStatus{
		Stream:  v1.NewStreamStatus(h.streamSrv.Status()),
		Session: v1.NewInspectionSession(h.inspectionSrv.Status()),
		Devices: v1.NewDevices(devices),
	})
}

// GetInspection returns the current session.
// (GET /api/v1/inspection)
func (h *Handler) GetInspection(c *gin.Context) {
	c.JSON(http.StatusOK, v1.NewInspectionSession(h.inspectionSrv.Status()))
}

// StartInspection begins a sequential inspection run.
// (POST /api/v1/inspection/start)
func (h *Handler) StartInspection(c *gin.Context) {
	var req v1.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Barcode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "barcode is required"})
		return
	}

	if err := h.inspectionSrv.Start(c.Request.Context(), req.Barcode, req.ModelId); err != nil {
		h.startError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, v1.NewInspectionSession(h.inspectionSrv.Status()))
}

// StartSafetyInspection begins a synchronous safety run.
// (POST /api/v1/inspection/safety/start)
func (h *Handler) StartSafetyInspection(c *gin.Context) {
	var req v1.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Barcode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "barcode is required"})
		return
	}

	if err := h.safetySrv.Start(c.Request.Context(), req.Barcode, req.ModelId); err != nil {
		h.startError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, v1.NewInspectionSession(h.inspectionSrv.Status()))
}

// StopInspection stops the RUNNING session. Stopping an idle session is a
// no-op success.
// (POST /api/v1/inspection/stop)
func (h *Handler) StopInspection(c *gin.Context) {
	if err := h.inspectionSrv.Stop(c.Request.Context()); err != nil {
		zap.S().Named("inspection_handler").Errorw("failed to stop inspection", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop inspection"})
		return
	}

	c.JSON(http.StatusOK, v1.NewInspectionSession(h.inspectionSrv.Status()))
}

func (h *Handler) startError(c *gin.Context, err error) {
	switch {
	case srvErrors.IsSessionConflictError(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case srvErrors.IsResourceNotFoundError(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case srvErrors.IsInvalidStateError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case srvErrors.IsGatewayError(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		zap.S().Named("inspection_handler").Errorw("failed to start inspection", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start inspection"})
	}
}
