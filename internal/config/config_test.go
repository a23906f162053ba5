package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/faceid/internal/models"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data", cfg.Storage.DataRoot)
	assert.Equal(t, filepath.Join("data", ".scratch"), cfg.Storage.ScratchDir)
	assert.Equal(t, "balanced", cfg.Recognition.Mode)
	assert.Equal(t, "retinaface", cfg.Recognition.DetectorBackend)
	assert.InDelta(t, 0.5, cfg.Recognition.ConfidenceThreshold, 1e-9)
	assert.Equal(t, "cosine", cfg.Recognition.DistanceMetric)
	assert.Equal(t, models.KindTemporary, cfg.Recognition.Kind())
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.NATS.Enabled())
	assert.False(t, cfg.MinIO.Enabled())
}

func TestParseYAMLAndEnv(t *testing.T) {
	t.Setenv("FACEID_DATA_ROOT", "/srv/faces")
	t.Setenv("FACEID_MATCH_TIMEOUT", "5s")

	cfg, err := Parse([]byte(`
server:
  port: 9090
recognition:
  mode: speed
  default_kind: permanent
database:
  host: db
  name: faceid
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/srv/faces", cfg.Storage.DataRoot)
	assert.Equal(t, 5*time.Second, cfg.Recognition.MatchTimeout)
	assert.Equal(t, "ssd", cfg.Recognition.DetectorBackend)
	assert.InDelta(t, 0.4, cfg.Recognition.ConfidenceThreshold, 1e-9)
	assert.Equal(t, models.KindPermanent, cfg.Recognition.Kind())
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, "postgres://:@db:5432/faceid?sslmode=disable", cfg.Database.DSN())
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte("recognition:\n  mode: turbo\n"))
	assert.ErrorContains(t, err, "unknown performance mode")

	_, err = Parse([]byte("recognition:\n  confidence_threshold: 1.5\n"))
	assert.ErrorContains(t, err, "confidence_threshold")

	_, err = Parse([]byte("recognition:\n  distance_metric: manhattan\n"))
	assert.ErrorContains(t, err, "distance_metric")
}

func TestWithMode(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)

	r, err := cfg.Recognition.WithMode("accuracy")
	require.NoError(t, err)
	assert.Equal(t, "ArcFace", r.RecognitionModel)
	assert.InDelta(t, 0.6, r.ConfidenceThreshold, 1e-9)
	assert.Equal(t, cfg.Recognition.MatchTimeout, r.MatchTimeout)
	assert.Equal(t, "balanced", cfg.Recognition.Mode, "receiver is not modified")

	_, err = cfg.Recognition.WithMode("turbo")
	assert.Error(t, err)

	assert.Equal(t, []string{"accuracy", "balanced", "gpu_optimized", "speed"}, Modes())
}
