package dto

import "github.com/your-org/faceid/internal/models"

type EventListResponse struct {
	GroupID string                 `json:"group_id"`
	Events  []models.IdentityEvent `json:"events"`
	Total   int                    `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

type PerformanceRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type SettingsResponse struct {
	Mode                string   `json:"mode"`
	DetectorBackend     string   `json:"detector_backend"`
	RecognitionModel    string   `json:"recognition_model"`
	DistanceMetric      string   `json:"distance_metric"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
	DefaultKind         string   `json:"default_kind"`
	AvailableModes      []string `json:"available_modes"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
