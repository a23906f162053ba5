package config

import (
	"fmt"

	"github.com/your-org/faceid/internal/models"
)

type preset struct {
	DetectorBackend     string
	RecognitionModel    string
	ConfidenceThreshold float64
}

var presets = map[string]preset{
	"speed":         {DetectorBackend: "ssd", RecognitionModel: "VGG-Face", ConfidenceThreshold: 0.4},
	"balanced":      {DetectorBackend: "retinaface", RecognitionModel: "VGG-Face", ConfidenceThreshold: 0.5},
	"accuracy":      {DetectorBackend: "retinaface", RecognitionModel: "ArcFace", ConfidenceThreshold: 0.6},
	"gpu_optimized": {DetectorBackend: "retinaface", RecognitionModel: "VGG-Face", ConfidenceThreshold: 0.5},
}

var distanceMetrics = map[string]bool{
	"cosine":       true,
	"euclidean":    true,
	"euclidean_l2": true,
}

// WithMode returns a copy of r with the preset for mode applied. Fields a
// preset does not cover (metric, timeouts, service URL) are kept.
func (r RecognitionConfig) WithMode(mode string) (RecognitionConfig, error) {
	p, ok := presets[mode]
	if !ok {
		return r, fmt.Errorf("invalid mode %q, must be one of: %v", mode, Modes())
	}
	r.Mode = mode
	r.DetectorBackend = p.DetectorBackend
	r.RecognitionModel = p.RecognitionModel
	r.ConfidenceThreshold = p.ConfidenceThreshold
	return r, nil
}

// Kind is the default classification for new identities.
func (r RecognitionConfig) Kind() models.Kind {
	k, err := models.ParseKind(r.DefaultKind, models.KindTemporary)
	if err != nil {
		return models.KindTemporary
	}
	return k
}

func (r RecognitionConfig) Validate() error {
	if r.ConfidenceThreshold < 0 || r.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be within [0,1], got %v", r.ConfidenceThreshold)
	}
	if !distanceMetrics[r.DistanceMetric] {
		return fmt.Errorf("unknown distance_metric %q", r.DistanceMetric)
	}
	if _, err := models.ParseKind(r.DefaultKind, models.KindTemporary); err != nil {
		return fmt.Errorf("default_kind: %w", err)
	}
	if r.MatchTimeout < 0 {
		return fmt.Errorf("match_timeout must not be negative")
	}
	return nil
}
