// Package reconcile turns detected faces and recognizer matches into
// durable identity assignments in the identity store.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/faceid/internal/apperrors"
	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/events"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/storage"
)

// ErrNoFaces is returned when the detector finds nothing to reconcile.
var ErrNoFaces = fmt.Errorf("%w: no faces detected in the image", apperrors.ErrInvalidInput)

// Detector finds faces in an image and returns their crops.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]models.DetectedFace, error)
}

// Recognizer searches a group's corpus for the closest identities.
type Recognizer interface {
	Match(ctx context.Context, req models.MatchRequest) (*models.MatchResult, error)
}

// SourceArchive keeps a copy of each uploaded image.
type SourceArchive interface {
	ArchiveSource(ctx context.Context, groupID, name string, data []byte) (string, error)
}

type Options struct {
	Detector   Detector
	Recognizer Recognizer
	Publisher  events.Publisher // optional
	Archive    SourceArchive    // optional
}

// Engine is bound to one set of recognition settings for its lifetime.
// A settings change builds a new Engine with WithSettings.
type Engine struct {
	store    *storage.FSStore
	settings config.RecognitionConfig
	opts     Options
}

func NewEngine(store *storage.FSStore, settings config.RecognitionConfig, opts Options) (*Engine, error) {
	if store == nil {
		return nil, errors.New("reconcile: identity store is required")
	}
	if opts.Detector == nil || opts.Recognizer == nil {
		return nil, errors.New("reconcile: detector and recognizer are required")
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("recognition settings: %w", err)
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Discard{}
	}
	return &Engine{store: store, settings: settings, opts: opts}, nil
}

func (e *Engine) Settings() config.RecognitionConfig {
	return e.settings
}

// WithSettings returns a new Engine sharing e's collaborators.
func (e *Engine) WithSettings(settings config.RecognitionConfig) (*Engine, error) {
	return NewEngine(e.store, settings, e.opts)
}

func (e *Engine) detect(ctx context.Context, image []byte) ([]models.DetectedFace, error) {
	start := time.Now()
	faces, err := e.opts.Detector.Detect(ctx, image)
	observability.RecognizerDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}
	return faces, nil
}

// match asks the recognizer for candidates, bounded by the match timeout
// so a stalled call cannot hold the group lock indefinitely.
func (e *Engine) match(ctx context.Context, groupID string, image []byte) (*models.MatchResult, error) {
	corpus, err := e.store.GroupDir(groupID)
	if err != nil {
		return nil, err
	}
	scratch, err := e.store.SaveTransient(image)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := e.store.CleanupTransient(scratch); err != nil {
			slog.Warn("cleanup scratch face", "path", scratch, "error", err)
		}
	}()

	if e.settings.MatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.settings.MatchTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := e.opts.Recognizer.Match(ctx, models.MatchRequest{
		Image:           image,
		ImagePath:       scratch,
		CorpusPath:      corpus,
		Model:           e.settings.RecognitionModel,
		Metric:          e.settings.DistanceMetric,
		DetectorBackend: e.settings.DetectorBackend,
	})
	observability.RecognizerDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("match face: %w", err)
	}
	return res, nil
}

// decision is the confidence policy's verdict for one face. An empty
// personID means the face is a new identity.
type decision struct {
	personID    string
	confidence  float64
	approximate bool
	closest     string
	uncertain   bool
}

// decide applies the confidence policy to the recognizer's best candidate.
// Callers mutating the store hold the group lock.
func (e *Engine) decide(ctx context.Context, groupID string, image []byte) (decision, error) {
	hasCorpus, err := e.store.GroupExists(groupID)
	if err != nil {
		return decision{}, err
	}
	if !hasCorpus {
		observability.MatchDecisions.WithLabelValues("no_corpus").Inc()
		return decision{}, nil
	}

	res, err := e.match(ctx, groupID, image)
	if err != nil {
		return decision{}, err
	}

	best, ok := res.Best()
	if !ok {
		observability.MatchDecisions.WithLabelValues("no_match").Inc()
		return decision{}, nil
	}

	candidate := best.PersonID()
	if storage.ValidateID("person_id", candidate) != nil {
		slog.Warn("recognizer returned an identity outside the corpus",
			"group_id", groupID, "identity", best.Identity)
		observability.MatchDecisions.WithLabelValues("no_match").Inc()
		return decision{}, nil
	}

	if best.Distance == nil {
		observability.MatchDecisions.WithLabelValues("uncertain").Inc()
		return decision{closest: candidate, uncertain: true}, nil
	}

	score, exact := Confidence(*best.Distance, e.settings.DistanceMetric)
	d := decision{confidence: score, approximate: !exact}
	if d.confidence < e.settings.ConfidenceThreshold {
		observability.MatchDecisions.WithLabelValues("rejected").Inc()
		d.closest = candidate
		return d, nil
	}

	exists, err := e.store.PersonExists(groupID, candidate)
	if err != nil {
		return decision{}, err
	}
	if !exists {
		// The corpus changed under the recognizer's cache.
		slog.Warn("matched person no longer exists", "group_id", groupID, "person_id", candidate)
		observability.MatchDecisions.WithLabelValues("stale").Inc()
		d.closest = candidate
		return d, nil
	}

	observability.MatchDecisions.WithLabelValues("accepted").Inc()
	d.personID = candidate
	return d, nil
}
