package reconcile

import (
	"context"
	"fmt"

	"github.com/your-org/faceid/internal/apperrors"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/storage"
)

// RecognizedFace is the read-only verdict for one face. PersonID is empty
// when no candidate passed the confidence policy.
type RecognizedFace struct {
	FaceIndex    int
	Region       models.Region
	PersonID     string
	IsTempUser   bool
	Confidence   float64
	Approximate  bool
	ClosestMatch string
	Uncertain    bool
	Err          error
}

// Recognize identifies the faces in an image without writing anything.
// It fails with NotFound when the group has no corpus to match against.
func (e *Engine) Recognize(ctx context.Context, groupID string, image []byte) ([]RecognizedFace, error) {
	if err := storage.ValidateID("group_id", groupID); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: image is required", apperrors.ErrInvalidInput)
	}
	hasCorpus, err := e.store.GroupExists(groupID)
	if err != nil {
		return nil, err
	}
	if !hasCorpus {
		return nil, fmt.Errorf("%w: group %q has no trained persons", apperrors.ErrNotFound, groupID)
	}

	faces, err := e.detect(ctx, image)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, ErrNoFaces
	}

	out := make([]RecognizedFace, 0, len(faces))
	for i, face := range faces {
		rf := RecognizedFace{FaceIndex: i, Region: face.Region}
		if len(face.Image) == 0 {
			rf.Err = fmt.Errorf("%w: detector returned no crop for face %d", apperrors.ErrInvalidInput, i)
			out = append(out, rf)
			continue
		}

		d, err := e.decide(ctx, groupID, face.Image)
		if err != nil {
			rf.Err = err
			out = append(out, rf)
			continue
		}
		rf.PersonID = d.personID
		rf.Confidence = d.confidence
		rf.Approximate = d.approximate
		rf.ClosestMatch = d.closest
		rf.Uncertain = d.uncertain
		if d.personID != "" {
			if md, err := e.store.GetMetadata(groupID, d.personID); err == nil {
				rf.IsTempUser = md.Kind() == models.KindTemporary
			}
		}
		out = append(out, rf)
	}
	return out, nil
}
