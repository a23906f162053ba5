// Package merge folds source persons into a target person within a group.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/your-org/faceid/internal/apperrors"
	"github.com/your-org/faceid/internal/events"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/storage"
)

type Request struct {
	GroupID         string
	SourcePersonIDs []string
	TargetPersonID  string
}

type SourceResult struct {
	PersonID       string
	FacesMoved     int
	WasTempUser    bool
	SourceMetadata *models.Metadata
}

// Failure is one unit that could not be merged: a whole source, or a single
// sample file of a source when File is set.
type Failure struct {
	PersonID string
	File     string
	Err      error
}

func (f Failure) Error() string {
	if f.File != "" {
		return fmt.Sprintf("%s/%s: %v", f.PersonID, f.File, f.Err)
	}
	return fmt.Sprintf("%s: %v", f.PersonID, f.Err)
}

type Result struct {
	GroupID          string
	TargetPersonID   string
	TargetExisted    bool
	CreatedFromMerge bool
	MergedSources    []SourceResult
	TotalFacesMoved  int
	Failures         []Failure
}

// Err wraps apperrors.ErrPartialFailure when any unit failed.
func (r *Result) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return fmt.Errorf("%w: %d merge failures: %w",
		apperrors.ErrPartialFailure, len(r.Failures), errors.Join(errs...))
}

type Coordinator struct {
	store     *storage.FSStore
	publisher events.Publisher
}

func NewCoordinator(store *storage.FSStore, publisher events.Publisher) *Coordinator {
	if publisher == nil {
		publisher = events.Discard{}
	}
	return &Coordinator{store: store, publisher: publisher}
}

var (
	errSelfMerge      = errors.New("cannot merge a person into itself")
	errSourceNotFound = fmt.Errorf("%w: source person", apperrors.ErrNotFound)
)

// Merge moves every sample of each source into the target and removes the
// emptied sources. It is not transactional: whatever could be moved stays
// moved, and each failure is reported in the result, which is returned
// together with a partial-failure error.
func (c *Coordinator) Merge(ctx context.Context, req Request) (*Result, error) {
	sources, err := validate(req)
	if err != nil {
		return nil, err
	}

	unlock := c.store.LockGroup(req.GroupID)
	res, err := c.merge(req.GroupID, sources, req.TargetPersonID)
	unlock()
	if err != nil {
		observability.Merges.WithLabelValues("rejected").Inc()
		return nil, err
	}

	if len(res.MergedSources) > 0 {
		ev := models.NewIdentityEvent(models.EventPersonsMerged, req.GroupID)
		ev.PersonID = res.TargetPersonID
		ev.SamplesMoved = res.TotalFacesMoved
		for _, s := range res.MergedSources {
			ev.SourcePersonIDs = append(ev.SourcePersonIDs, s.PersonID)
		}
		events.Emit(ctx, c.publisher, ev)
	}

	resultLabel := "ok"
	if len(res.Failures) > 0 {
		resultLabel = "partial"
	}
	observability.Merges.WithLabelValues(resultLabel).Inc()
	observability.SamplesMoved.Add(float64(res.TotalFacesMoved))
	slog.Info("persons merged",
		"group_id", req.GroupID, "target", res.TargetPersonID, "merged", len(res.MergedSources),
		"faces_moved", res.TotalFacesMoved, "failures", len(res.Failures))

	return res, res.Err()
}

// validate fails fast on malformed requests and returns the distinct
// sources in request order.
func validate(req Request) ([]string, error) {
	if err := storage.ValidateID("group_id", req.GroupID); err != nil {
		return nil, err
	}
	if err := storage.ValidateID("target_person_id", req.TargetPersonID); err != nil {
		return nil, err
	}
	if len(req.SourcePersonIDs) == 0 {
		return nil, fmt.Errorf("%w: source_person_ids must not be empty", apperrors.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(req.SourcePersonIDs))
	sources := make([]string, 0, len(req.SourcePersonIDs))
	onlySelf := true
	for _, id := range req.SourcePersonIDs {
		if err := storage.ValidateID("source_person_id", id); err != nil {
			return nil, err
		}
		if id != req.TargetPersonID {
			onlySelf = false
		}
		if !seen[id] {
			seen[id] = true
			sources = append(sources, id)
		}
	}
	if onlySelf {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, errSelfMerge)
	}
	return sources, nil
}

// merge runs under the group lock.
func (c *Coordinator) merge(groupID string, sources []string, targetID string) (*Result, error) {
	ok, err := c.store.HasGroup(groupID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: group %q", apperrors.ErrNotFound, groupID)
	}

	res := &Result{GroupID: groupID, TargetPersonID: targetID}
	res.TargetExisted, err = c.store.PersonExists(groupID, targetID)
	if err != nil {
		return nil, err
	}
	if !res.TargetExisted {
		if _, err := c.store.InitPerson(groupID, targetID, models.KindPermanent); err != nil {
			return nil, err
		}
		res.CreatedFromMerge = true
	}

	for _, sourceID := range sources {
		c.absorb(res, groupID, sourceID, targetID)
	}

	if len(res.MergedSources) == 0 {
		if res.CreatedFromMerge {
			if err := c.store.RemovePerson(groupID, targetID); err != nil {
				slog.Warn("remove unused merge target", "group_id", groupID, "person_id", targetID, "error", err)
			}
			res.CreatedFromMerge = false
		}
		return res, nil
	}

	if err := c.recordHistory(res); err != nil {
		res.Failures = append(res.Failures, Failure{PersonID: targetID, Err: err})
	}
	if err := c.store.InvalidateCorpusCache(groupID); err != nil {
		slog.Warn("invalidate recognizer cache", "group_id", groupID, "error", err)
	}
	return res, nil
}

// absorb moves one source's samples into the target. The source is removed
// only when every sample moved, so a failed move never loses a sample.
func (c *Coordinator) absorb(res *Result, groupID, sourceID, targetID string) {
	if sourceID == targetID {
		res.Failures = append(res.Failures, Failure{PersonID: sourceID, Err: errSelfMerge})
		return
	}
	exists, err := c.store.PersonExists(groupID, sourceID)
	if err != nil {
		res.Failures = append(res.Failures, Failure{PersonID: sourceID, Err: err})
		return
	}
	if !exists {
		res.Failures = append(res.Failures, Failure{PersonID: sourceID, Err: errSourceNotFound})
		return
	}

	md, err := c.store.GetMetadata(groupID, sourceID)
	if err != nil {
		slog.Warn("read source metadata", "group_id", groupID, "person_id", sourceID, "error", err)
		md = nil
	}

	samples, err := c.store.ListSamples(groupID, sourceID)
	if err != nil {
		res.Failures = append(res.Failures, Failure{PersonID: sourceID, Err: err})
		return
	}

	moved, failed := 0, 0
	for _, s := range samples {
		if _, err := c.store.MoveSample(groupID, sourceID, targetID, s.Filename); err != nil {
			res.Failures = append(res.Failures, Failure{PersonID: sourceID, File: s.Filename, Err: err})
			failed++
			continue
		}
		moved++
	}

	if failed == 0 {
		if err := c.store.RemovePerson(groupID, sourceID); err != nil {
			res.Failures = append(res.Failures, Failure{PersonID: sourceID, Err: fmt.Errorf("remove source: %w", err)})
		}
	}

	if moved == 0 && failed > 0 {
		return
	}
	sr := SourceResult{PersonID: sourceID, FacesMoved: moved, SourceMetadata: md}
	if md != nil {
		sr.WasTempUser = md.Kind() == models.KindTemporary
	}
	res.MergedSources = append(res.MergedSources, sr)
	res.TotalFacesMoved += moved
}

// recordHistory appends one merge event to the target and makes it
// permanent.
func (c *Coordinator) recordHistory(res *Result) error {
	md, err := c.store.GetMetadata(res.GroupID, res.TargetPersonID)
	if err != nil {
		return err
	}
	if md.CreatedAt.IsZero() {
		md.CreatedAt = models.NewTimestamp(time.Now())
	}
	if res.CreatedFromMerge {
		md.CreatedFromMerge = true
	}
	md.SetKind(models.KindPermanent)

	absorbed := make([]string, 0, len(res.MergedSources))
	for _, s := range res.MergedSources {
		absorbed = append(absorbed, s.PersonID)
	}
	md.MergeHistory = append(md.MergeHistory, models.MergeEvent{
		MergedAt:        models.NewTimestamp(time.Now()),
		MergedSources:   absorbed,
		TotalFacesAdded: res.TotalFacesMoved,
	})
	return c.store.SaveMetadata(res.GroupID, res.TargetPersonID, md)
}
