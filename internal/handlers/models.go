package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	v1 "github.com/testbench/inspection-agent/api/v1"
)

// ListModels returns the model catalog and the operator's selection.
// (GET /api/v1/models)
func (h *Handler) ListModels(c *gin.Context) {
	catalog := v1.ModelCatalog{
		Selected: h.store.Settings().SelectedModelID(),
	}
	for _, m := range h.store.Models().List() {
		catalog.Models = append(catalog.Models, v1.NewInspectionModel(m))
	}

	c.JSON(http.StatusOK, catalog)
}

// SelectModel changes the model applied to barcode-triggered runs.
// (PUT /api/v1/models/selected)
func (h *Handler) SelectModel(c *gin.Context) {
	var req v1.SelectModelRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ModelId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model_id is required"})
		return
	}

	if _, err := h.store.Models().Get(req.ModelId); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	h.store.Settings().SelectModel(req.ModelId)
	c.JSON(http.StatusOK, gin.H{"selected": req.ModelId})
}

// GetSettings returns the inspection timings.
// (GET /api/v1/settings)
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, v1.NewSettings(h.store.Settings().Get()))
}

// UpdateSettings replaces the inspection timings.
// (PUT /api/v1/settings)
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req v1.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.store.Settings().Update(req.ToModel()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, v1.NewSettings(h.store.Settings().Get()))
}

// ListResults returns the bounded archive of finished sessions.
// (GET /api/v1/results)
func (h *Handler) ListResults(c *gin.Context) {
	c.JSON(http.StatusOK, v1.NewSessionRecords(h.store.Results().List()))
}
