package recognizer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.RecognitionConfig{
		ServiceURL:        srv.URL + "/",
		DetectorBackend:   "retinaface",
		MaxImageDimension: 1280,
		MatchTimeout:      5 * time.Second,
	})
}

func TestDetectDecodesCrops(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/detect", r.URL.Path)
		var req detectRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "retinaface", req.DetectorBackend)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("photo")), req.Image)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"faces": []map[string]any{{
				"facial_area": map[string]int{"x": 10, "y": 20, "w": 30, "h": 40},
				"confidence":  0.98,
				"face":        base64.StdEncoding.EncodeToString([]byte("crop")),
			}},
		})
	})

	faces, err := c.Detect(context.Background(), []byte("photo"))
	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Equal(t, models.Region{X: 10, Y: 20, W: 30, H: 40}, faces[0].Region)
	assert.Equal(t, []byte("crop"), faces[0].Image)
}

func TestMatchReadsDistanceColumns(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/find", r.URL.Path)
		var req findRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "/data/g1", req.DBPath)
		assert.Equal(t, "skip", req.DetectorBackend)

		_, _ = w.Write([]byte(`{"results":[
			{"identity":"/data/g1/p1/a.jpg","VGG-Face_cosine":0.12},
			{"identity":"/data/g1/p2/b.jpg","distance":0.3},
			{"identity":"/data/g1/p3/c.jpg","threshold":0.68},
			{"distance":0.1}
		]}`))
	})

	res, err := c.Match(context.Background(), models.MatchRequest{
		Image:      []byte("crop"),
		CorpusPath: "/data/g1",
		Model:      "VGG-Face",
		Metric:     "cosine",
	})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 3)

	assert.Equal(t, "p1", res.Candidates[0].PersonID())
	require.NotNil(t, res.Candidates[0].Distance)
	assert.InDelta(t, 0.12, *res.Candidates[0].Distance, 1e-9)
	assert.Equal(t, "VGG-Face_cosine", res.Candidates[0].Column)

	require.NotNil(t, res.Candidates[1].Distance)
	assert.Equal(t, "distance", res.Candidates[1].Column)

	assert.Nil(t, res.Candidates[2].Distance)
}

func TestMatchSurfacesServerErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	})

	_, err := c.Match(context.Background(), models.MatchRequest{Image: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "model not loaded")
}
