// Package recognizer is the HTTP client for the face detection and
// matching sidecar.
package recognizer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/models"
)

// Client talks to the sidecar that owns the detection and embedding models.
// It serves as both the detector and the recognizer of the reconcile engine.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	backend      string
	maxDimension int
}

func NewClient(cfg config.RecognitionConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.ServiceURL, "/"),
		httpClient:   &http.Client{Timeout: 2 * cfg.MatchTimeout},
		backend:      cfg.DetectorBackend,
		maxDimension: cfg.MaxImageDimension,
	}
}

type detectRequest struct {
	Image           string `json:"image"`
	DetectorBackend string `json:"detector_backend"`
	MaxDimension    int    `json:"max_dimension,omitempty"`
}

type detectedFace struct {
	FacialArea models.Region `json:"facial_area"`
	Confidence float64       `json:"confidence"`
	Face       string        `json:"face"`
}

type detectResponse struct {
	Faces []detectedFace `json:"faces"`
}

// Detect returns the faces found in image with their JPEG crops.
func (c *Client) Detect(ctx context.Context, image []byte) ([]models.DetectedFace, error) {
	resp, err := postJSON[detectResponse](ctx, c, "/detect", detectRequest{
		Image:           base64.StdEncoding.EncodeToString(image),
		DetectorBackend: c.backend,
		MaxDimension:    c.maxDimension,
	})
	if err != nil {
		return nil, err
	}

	faces := make([]models.DetectedFace, 0, len(resp.Faces))
	for i, f := range resp.Faces {
		crop, err := base64.StdEncoding.DecodeString(f.Face)
		if err != nil {
			return nil, fmt.Errorf("decode face %d: %w", i, err)
		}
		faces = append(faces, models.DetectedFace{
			Region:     f.FacialArea,
			Confidence: f.Confidence,
			Image:      crop,
		})
	}
	return faces, nil
}

type findRequest struct {
	Image           string `json:"image"`
	ImagePath       string `json:"img_path,omitempty"`
	DBPath          string `json:"db_path"`
	ModelName       string `json:"model_name"`
	DistanceMetric  string `json:"distance_metric"`
	DetectorBackend string `json:"detector_backend"`
}

type findResponse struct {
	Results []map[string]any `json:"results"`
}

// Match searches the corpus for req's face. Rows come back best first; a
// row whose distance column is missing or not a number yields a candidate
// without a distance.
func (c *Client) Match(ctx context.Context, req models.MatchRequest) (*models.MatchResult, error) {
	// Crops are already aligned; the sidecar must not detect again.
	resp, err := postJSON[findResponse](ctx, c, "/find", findRequest{
		Image:           base64.StdEncoding.EncodeToString(req.Image),
		ImagePath:       req.ImagePath,
		DBPath:          req.CorpusPath,
		ModelName:       req.Model,
		DistanceMetric:  req.Metric,
		DetectorBackend: "skip",
	})
	if err != nil {
		return nil, err
	}

	column := req.Model + "_" + req.Metric
	result := &models.MatchResult{Candidates: make([]models.Candidate, 0, len(resp.Results))}
	for _, row := range resp.Results {
		identity, _ := row["identity"].(string)
		if identity == "" {
			continue
		}
		cand := models.Candidate{Identity: identity}
		for _, col := range []string{column, "distance"} {
			if v, ok := row[col].(float64); ok {
				d := v
				cand.Distance = &d
				cand.Column = col
				break
			}
		}
		result.Candidates = append(result.Candidates, cand)
	}
	return result, nil
}

// Ping checks that the sidecar is reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("recognizer health check failed with status %d", resp.StatusCode)
	}
	return nil
}

func postJSON[T any](ctx context.Context, c *Client, endpoint string, body any) (*T, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("could not marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s failed with status %d: %s", endpoint, resp.StatusCode, readErrorBody(resp.Body))
	}

	var result T
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}
	return &result, nil
}

func readErrorBody(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
