package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/your-org/faceid/internal/apperrors"
	"github.com/your-org/faceid/internal/events"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/observability"
	"github.com/your-org/faceid/internal/storage"
)

type IngestRequest struct {
	GroupID    string
	Image      []byte
	SourceName string
	Kind       models.Kind // kind of new identities; empty uses the configured default
}

// FaceOutcome reports what happened to one detected face. Err is set when
// the face failed; the other faces of the image are unaffected.
type FaceOutcome struct {
	FaceIndex       int
	Region          models.Region
	PersonID        string
	IsNewPerson     bool
	IsTempUser      bool
	Confidence      float64
	Approximate     bool // confidence derived from an unbounded distance metric
	RecognitionType models.RecognitionType
	ClosestMatch    string
	Uncertain       bool
	SampleFile      string
	SamplePath      string
	Err             error
}

type IngestResult struct {
	GroupID    string
	SourceName string
	ArchiveKey string
	Faces      []FaceOutcome
}

func (r *IngestResult) Failed() int {
	n := 0
	for _, f := range r.Faces {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Err wraps apperrors.ErrPartialFailure when any face failed.
func (r *IngestResult) Err() error {
	failed := r.Failed()
	if failed == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d faces failed", apperrors.ErrPartialFailure, failed, len(r.Faces))
}

// Ingest detects the faces in an image and reconciles each one into the
// group, creating the group on first use. Each face is matched and stored
// under the group lock; faces are independent, so the result is returned
// together with a partial-failure error when some of them failed.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if err := storage.ValidateID("group_id", req.GroupID); err != nil {
		return nil, err
	}
	if len(req.Image) == 0 {
		return nil, fmt.Errorf("%w: image is required", apperrors.ErrInvalidInput)
	}
	kind := req.Kind
	if kind == "" {
		kind = e.settings.Kind()
	}

	faces, err := e.detect(ctx, req.Image)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFaces
	}

	if err := e.store.EnsureGroup(req.GroupID); err != nil {
		return nil, err
	}

	result := &IngestResult{
		GroupID: req.GroupID,
		Faces:   make([]FaceOutcome, 0, len(faces)),
	}
	if req.SourceName != "" {
		result.SourceName = filepath.Base(req.SourceName)
	}
	if e.opts.Archive != nil {
		key, err := e.opts.Archive.ArchiveSource(ctx, req.GroupID, result.SourceName, req.Image)
		if err != nil {
			slog.Warn("archive source image", "group_id", req.GroupID, "error", err)
		} else {
			result.ArchiveKey = key
		}
	}

	for i, face := range faces {
		out, ev := e.reconcileFace(ctx, req.GroupID, i, face, kind, result.SourceName)
		result.Faces = append(result.Faces, out)
		if ev != nil {
			events.Emit(ctx, e.opts.Publisher, *ev)
		}
	}

	slog.Info("image ingested",
		"group_id", req.GroupID, "faces", len(result.Faces), "failed", result.Failed())
	return result, result.Err()
}

// reconcileFace assigns one face under the group lock and returns the event
// to publish once the lock is released.
func (e *Engine) reconcileFace(ctx context.Context, groupID string, index int, face models.DetectedFace, kind models.Kind, source string) (FaceOutcome, *models.IdentityEvent) {
	out := FaceOutcome{FaceIndex: index, Region: face.Region}
	fail := func(err error) (FaceOutcome, *models.IdentityEvent) {
		out.Err = err
		observability.FacesIngested.WithLabelValues("error").Inc()
		slog.Warn("reconcile face failed", "group_id", groupID, "face_index", index, "error", err)
		return out, nil
	}

	if len(face.Image) == 0 {
		return fail(fmt.Errorf("%w: detector returned no crop for face %d", apperrors.ErrInvalidInput, index))
	}

	unlock := e.store.LockGroup(groupID)
	defer unlock()

	d, err := e.decide(ctx, groupID, face.Image)
	if err != nil {
		return fail(err)
	}

	out.Confidence = d.confidence
	out.Approximate = d.approximate
	out.Uncertain = d.uncertain
	out.ClosestMatch = d.closest

	var md *models.Metadata
	if d.personID != "" {
		md, err = e.store.GetMetadata(groupID, d.personID)
		if err != nil {
			return fail(err)
		}
		if md.CreatedAt.IsZero() {
			md.CreatedAt = models.NewTimestamp(time.Now())
		}
		// An accepted match settles any doubt recorded at creation.
		md.ClosestMatch = ""
		md.Uncertain = false
		out.PersonID = d.personID
		out.IsTempUser = md.Kind() == models.KindTemporary
		out.RecognitionType = models.RecognitionRecognized
		if out.IsTempUser {
			out.RecognitionType = models.RecognitionTempUser
		}
	} else {
		personID, err := e.store.CreatePerson(groupID, kind)
		if err != nil {
			return fail(err)
		}
		out.PersonID = personID
		out.IsNewPerson = true
		out.IsTempUser = kind == models.KindTemporary
		out.RecognitionType = models.RecognitionUnknown
		if out.IsTempUser {
			out.RecognitionType = models.RecognitionTempUser
		}
		md = &models.Metadata{
			PersonID:     personID,
			CreatedAt:    models.NewTimestamp(time.Now()),
			ClosestMatch: d.closest,
			Uncertain:    d.uncertain,
		}
		md.SetKind(kind)
	}

	sample, err := e.store.SaveSample(groupID, out.PersonID, face.Image)
	if err != nil {
		e.rollback(groupID, out, "")
		return fail(err)
	}

	md.RecognitionType = out.RecognitionType
	md.Confidence = out.Confidence
	md.SourceImage = source
	if err := e.store.SaveMetadata(groupID, out.PersonID, md); err != nil {
		e.rollback(groupID, out, sample.Filename)
		return fail(err)
	}

	out.SampleFile = sample.Filename
	out.SamplePath = sample.Path

	outcome := "matched"
	if out.IsNewPerson {
		outcome = "new_" + string(kind)
	}
	observability.FacesIngested.WithLabelValues(outcome).Inc()
	slog.Debug("face reconciled",
		"group_id", groupID, "face_index", index, "person_id", out.PersonID,
		"new", out.IsNewPerson, "confidence", out.Confidence, "recognition_type", out.RecognitionType)

	ev := models.NewIdentityEvent(models.EventFaceAssigned, groupID)
	ev.PersonID = out.PersonID
	ev.IsNewPerson = out.IsNewPerson
	ev.IsTempUser = out.IsTempUser
	ev.RecognitionType = out.RecognitionType
	ev.Confidence = out.Confidence
	return out, &ev
}

// rollback undoes the writes of a failed face so the store holds neither a
// sample without metadata nor a person without samples.
func (e *Engine) rollback(groupID string, out FaceOutcome, sampleFile string) {
	var err error
	switch {
	case out.IsNewPerson:
		err = e.store.RemovePerson(groupID, out.PersonID)
	case sampleFile != "":
		err = e.store.RemoveSample(groupID, out.PersonID, sampleFile)
	}
	if err != nil {
		slog.Error("rollback failed face", "group_id", groupID, "person_id", out.PersonID, "error", err)
	}
}
