package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/reconcile"
	"github.com/your-org/faceid/pkg/dto"
)

type SettingsHandler struct {
	engines *reconcile.Holder
}

func NewSettingsHandler(engines *reconcile.Holder) *SettingsHandler {
	return &SettingsHandler{engines: engines}
}

func settingsResponse(r config.RecognitionConfig) dto.SettingsResponse {
	return dto.SettingsResponse{
		Mode:                r.Mode,
		DetectorBackend:     r.DetectorBackend,
		RecognitionModel:    r.RecognitionModel,
		DistanceMetric:      r.DistanceMetric,
		ConfidenceThreshold: r.ConfidenceThreshold,
		DefaultKind:         string(r.Kind()),
		AvailableModes:      config.Modes(),
	}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, settingsResponse(h.engines.Load().Settings()))
}

// SetPerformance installs an engine bound to the named preset. Requests
// already running finish with the engine they started with.
func (h *SettingsHandler) SetPerformance(c *gin.Context) {
	var req dto.PerformanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	current := h.engines.Load()
	settings, err := current.Settings().WithMode(req.Mode)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	next, err := current.WithSettings(settings)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}
	h.engines.Swap(next)
	slog.Info("performance mode changed", "mode", settings.Mode,
		"detector", settings.DetectorBackend, "model", settings.RecognitionModel,
		"threshold", settings.ConfidenceThreshold)

	c.JSON(http.StatusOK, settingsResponse(settings))
}
