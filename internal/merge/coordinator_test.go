package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/faceid/internal/apperrors"
	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/storage"
)

type recordingPublisher struct {
	events []models.IdentityEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.IdentityEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func setup(t *testing.T) (*storage.FSStore, *Coordinator, *recordingPublisher) {
	t.Helper()
	store, err := storage.NewFSStore(config.StorageConfig{DataRoot: t.TempDir()})
	require.NoError(t, err)
	pub := &recordingPublisher{}
	return store, NewCoordinator(store, pub), pub
}

func person(t *testing.T, s *storage.FSStore, group, id string, kind models.Kind, samples int) {
	t.Helper()
	_, err := s.InitPerson(group, id, kind)
	require.NoError(t, err)
	for i := 0; i < samples; i++ {
		_, err := s.SaveSample(group, id, []byte{byte(i)})
		require.NoError(t, err)
	}
}

func countSamples(t *testing.T, s *storage.FSStore, group, id string) int {
	t.Helper()
	samples, err := s.ListSamples(group, id)
	require.NoError(t, err)
	return len(samples)
}

func TestMergeTemporaryIntoPermanent(t *testing.T) {
	s, c, pub := setup(t)
	person(t, s, "G1", "temp_X", models.KindTemporary, 3)
	person(t, s, "G1", "P1", models.KindPermanent, 2)

	res, err := c.Merge(context.Background(), Request{GroupID: "G1", SourcePersonIDs: []string{"temp_X"}, TargetPersonID: "P1"})
	require.NoError(t, err)

	assert.True(t, res.TargetExisted)
	assert.Equal(t, 3, res.TotalFacesMoved)
	require.Len(t, res.MergedSources, 1)
	assert.True(t, res.MergedSources[0].WasTempUser)
	assert.Equal(t, 5, countSamples(t, s, "G1", "P1"))

	exists, err := s.PersonExists("G1", "temp_X")
	require.NoError(t, err)
	assert.False(t, exists)

	md, err := s.GetMetadata("G1", "P1")
	require.NoError(t, err)
	require.Len(t, md.MergeHistory, 1)
	assert.Equal(t, []string{"temp_X"}, md.MergeHistory[0].MergedSources)
	assert.Equal(t, 3, md.MergeHistory[0].TotalFacesAdded)

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventPersonsMerged, pub.events[0].Type)
	assert.Equal(t, []string{"temp_X"}, pub.events[0].SourcePersonIDs)
}

func TestMergeSelfIsInvalid(t *testing.T) {
	s, c, _ := setup(t)
	person(t, s, "G1", "P1", models.KindPermanent, 2)

	res, err := c.Merge(context.Background(), Request{GroupID: "G1", SourcePersonIDs: []string{"P1"}, TargetPersonID: "P1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Nil(t, res)
	assert.Equal(t, 2, countSamples(t, s, "G1", "P1"))
}

func TestMergeValidation(t *testing.T) {
	_, c, _ := setup(t)
	ctx := context.Background()

	_, err := c.Merge(ctx, Request{GroupID: "G1", TargetPersonID: "P1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = c.Merge(ctx, Request{GroupID: "G1", SourcePersonIDs: []string{"../x"}, TargetPersonID: "P1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = c.Merge(ctx, Request{GroupID: "missing", SourcePersonIDs: []string{"a"}, TargetPersonID: "P1"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestMergeAlreadyMergedSourceIsPartialFailure(t *testing.T) {
	s, c, pub := setup(t)
	person(t, s, "G1", "P1", models.KindPermanent, 2)

	res, err := c.Merge(context.Background(), Request{GroupID: "G1", SourcePersonIDs: []string{"temp_X"}, TargetPersonID: "P1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPartialFailure)
	require.NotNil(t, res)
	assert.Zero(t, res.TotalFacesMoved)
	require.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures[0].Err, apperrors.ErrNotFound)

	md, err := s.GetMetadata("G1", "P1")
	require.NoError(t, err)
	assert.Empty(t, md.MergeHistory)
	assert.Empty(t, pub.events)
}

func TestMergeMixedSourcesContinuesPastFailures(t *testing.T) {
	s, c, _ := setup(t)
	person(t, s, "G1", "P1", models.KindPermanent, 1)
	person(t, s, "G1", "a", models.KindTemporary, 2)
	person(t, s, "G1", "b", models.KindTemporary, 1)

	res, err := c.Merge(context.Background(), Request{
		GroupID:         "G1",
		SourcePersonIDs: []string{"a", "P1", "ghost", "b", "a"},
		TargetPersonID:  "P1",
	})
	assert.ErrorIs(t, err, apperrors.ErrPartialFailure)
	assert.Equal(t, 3, res.TotalFacesMoved)
	assert.Len(t, res.MergedSources, 2)
	assert.Len(t, res.Failures, 2)
	assert.Equal(t, 4, countSamples(t, s, "G1", "P1"))
}

func TestMergeResolvesFilenameCollisions(t *testing.T) {
	s, c, _ := setup(t)
	person(t, s, "G1", "P1", models.KindPermanent, 0)
	person(t, s, "G1", "T1", models.KindTemporary, 0)
	for _, id := range []string{"P1", "T1"} {
		require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "G1", id, "face.jpg"), []byte(id), 0o644))
	}

	_, err := c.Merge(context.Background(), Request{GroupID: "G1", SourcePersonIDs: []string{"T1"}, TargetPersonID: "P1"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(s.Root(), "G1", "P1", "face.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "P1", string(data))
	data, err = os.ReadFile(filepath.Join(s.Root(), "G1", "P1", "face_1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "T1", string(data))
}

func TestMergeCreatesPermanentTarget(t *testing.T) {
	s, c, _ := setup(t)
	person(t, s, "G1", "T1", models.KindTemporary, 2)

	res, err := c.Merge(context.Background(), Request{GroupID: "G1", SourcePersonIDs: []string{"T1"}, TargetPersonID: "alice"})
	require.NoError(t, err)
	assert.False(t, res.TargetExisted)
	assert.True(t, res.CreatedFromMerge)

	md, err := s.GetMetadata("G1", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.KindPermanent, md.Kind())
	assert.True(t, md.CreatedFromMerge)
	assert.False(t, md.CreatedAt.IsZero())
	assert.Equal(t, 2, countSamples(t, s, "G1", "alice"))
}

func TestMergeWithNothingAbsorbedDropsCreatedTarget(t *testing.T) {
	s, c, _ := setup(t)
	person(t, s, "G1", "P1", models.KindPermanent, 1)

	_, err := c.Merge(context.Background(), Request{GroupID: "G1", SourcePersonIDs: []string{"ghost"}, TargetPersonID: "alice"})
	assert.ErrorIs(t, err, apperrors.ErrPartialFailure)

	exists, err := s.PersonExists("G1", "alice")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMergePromotesTemporaryTarget(t *testing.T) {
	s, c, _ := setup(t)
	person(t, s, "G1", "T1", models.KindTemporary, 1)
	person(t, s, "G1", "T2", models.KindTemporary, 1)

	_, err := c.Merge(context.Background(), Request{GroupID: "G1", SourcePersonIDs: []string{"T2"}, TargetPersonID: "T1"})
	require.NoError(t, err)

	listing, err := s.ListPersons("G1")
	require.NoError(t, err)
	require.Len(t, listing.Permanent, 1)
	assert.Equal(t, "T1", listing.Permanent[0].PersonID)
	assert.Empty(t, listing.Temporary)
}

func TestMergeInvalidatesRecognizerCache(t *testing.T) {
	s, c, _ := setup(t)
	person(t, s, "G1", "P1", models.KindPermanent, 1)
	person(t, s, "G1", "T1", models.KindTemporary, 1)
	cache := filepath.Join(s.Root(), "G1", "ds_model_vggface.pkl")
	require.NoError(t, os.WriteFile(cache, []byte("x"), 0o644))

	_, err := c.Merge(context.Background(), Request{GroupID: "G1", SourcePersonIDs: []string{"T1"}, TargetPersonID: "P1"})
	require.NoError(t, err)
	assert.NoFileExists(t, cache)
}
