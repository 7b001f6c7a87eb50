package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/testbench/inspection-agent/internal/hub"
	"github.com/testbench/inspection-agent/internal/metrics"
	"github.com/testbench/inspection-agent/internal/models"
	"github.com/testbench/inspection-agent/internal/store"
)

// DeviceService manages the connection lifecycle of the bench instruments.
type DeviceService interface {
	Connect(ctx context.Context, deviceType models.DeviceType) (models.Device, error)
	Disconnect(ctx context.Context, deviceType models.DeviceType)
	List(ctx context.Context, refresh bool) ([]models.Device, error)
}

// InspectionService is the session state machine.
type InspectionService interface {
	Start(ctx context.Context, barcode, modelID string) error
	Stop(ctx context.Context) error
	Status() models.InspectionSession
}

// SafetyService runs the synchronous safety path.
type SafetyService interface {
	Start(ctx context.Context, barcode, modelID string) error
}

// StreamService owns the driver event stream.
type StreamService interface {
	Reconnect(ctx context.Context) error
	Status() models.StreamStatus
}

type Handler struct {
	deviceSrv     DeviceService
	inspectionSrv InspectionService
	safetySrv     SafetyService
	streamSrv     StreamService
	store         *store.Store
	hub           *hub.Hub
	metrics       *metrics.Metrics
}

func New(deviceSrv DeviceService, inspectionSrv InspectionService, safetySrv SafetyService, streamSrv StreamService, st *store.Store, h *hub.Hub, m *metrics.Metrics) *Handler {
	return &Handler{
		deviceSrv:     deviceSrv,
		inspectionSrv: inspectionSrv,
		safetySrv:     safetySrv,
		streamSrv:     streamSrv,
		store:         st,
		hub:           h,
		metrics:       m,
	}
}

// RegisterRoutes wires the API surface onto the /api/v1 group.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/status", h.GetStatus)

	router.GET("/devices", h.ListDevices)
	router.POST("/devices/:type/connect", h.ConnectDevice)
	router.POST("/devices/:type/disconnect", h.DisconnectDevice)

	router.GET("/inspection", h.GetInspection)
	router.POST("/inspection/start", h.StartInspection)
	router.POST("/inspection/stop", h.StopInspection)
	router.POST("/inspection/safety/start", h.StartSafetyInspection)

	router.GET("/measurements", h.GetMergedMeasurements)
	router.GET("/measurements/:phase", h.GetPhaseMeasurements)

	router.GET("/models", h.ListModels)
	router.PUT("/models/selected", h.SelectModel)

	router.GET("/settings", h.GetSettings)
	router.PUT("/settings", h.UpdateSettings)

	router.GET("/results", h.ListResults)

	router.GET("/stream/status", h.GetStreamStatus)
	router.POST("/stream/reconnect", h.ReconnectStream)

	router.GET("/events/ws", h.StreamEvents)
}

// RegisterRootRoutes wires the endpoints living outside /api/v1.
func (h *Handler) RegisterRootRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{})))
}
