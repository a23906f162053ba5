package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/faceid/internal/apperrors"
	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/models"
)

func newTestStore(t *testing.T) *FSStore {
	t.Helper()
	root := t.TempDir()
	s, err := NewFSStore(config.StorageConfig{DataRoot: root})
	require.NoError(t, err)
	return s
}

func addPerson(t *testing.T, s *FSStore, group string, kind models.Kind, samples int) string {
	t.Helper()
	id, err := s.CreatePerson(group, kind)
	require.NoError(t, err)
	for i := 0; i < samples; i++ {
		_, err := s.SaveSample(group, id, []byte{0xff, 0xd8, byte(i)})
		require.NoError(t, err)
	}
	return id
}

func TestGroupExistsRequiresAPerson(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.GroupExists("g1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.EnsureGroup("g1"))
	require.NoError(t, s.EnsureGroup("g1"))

	ok, err = s.GroupExists("g1")
	require.NoError(t, err)
	assert.False(t, ok, "an empty group has no corpus")

	has, err := s.HasGroup("g1")
	require.NoError(t, err)
	assert.True(t, has)

	addPerson(t, s, "g1", models.KindTemporary, 1)
	ok, err = s.GroupExists("g1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRejectsTraversalIDs(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.EnsureGroup("../outside"), apperrors.ErrInvalidInput)
	_, err := s.SaveSample("g1", "../../x", []byte("img"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	_, err = s.GetMetadata("g1", "a/b")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSaveSampleCreatesPersonDir(t *testing.T) {
	s := newTestStore(t)

	sample, err := s.SaveSample("g1", "p1", []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "g1", "p1", sample.Filename), sample.Path)
	assert.Equal(t, ".jpg", filepath.Ext(sample.Filename))

	data, err := os.ReadFile(sample.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	_, err = os.Stat(filepath.Join(s.Root(), "g1", "p1", MetadataFile))
	assert.ErrorIs(t, err, os.ErrNotExist, "saving a sample does not write metadata")
}

func TestMetadataRoundTripKeepsTempFlag(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.EnsureGroup("g1"))

	for _, kind := range []models.Kind{models.KindTemporary, models.KindPermanent, models.KindTemporary} {
		md := &models.Metadata{RecognitionType: models.RecognitionTempUser}
		md.SetKind(kind)
		require.NoError(t, s.SaveMetadata("g1", "p1", md))
		require.NoError(t, s.SaveMetadata("g1", "p1", md))

		got, err := s.GetMetadata("g1", "p1")
		require.NoError(t, err)
		assert.Equal(t, kind, got.Kind())
		assert.False(t, got.LastUpdated.IsZero())
		assert.Equal(t, "p1", got.PersonID)
	}
}

func TestSaveMetadataDefaultsAbsentFlagToPermanent(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveMetadata("g1", "p1", &models.Metadata{}))

	raw, err := os.ReadFile(filepath.Join(s.Root(), "g1", "p1", MetadataFile))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, false, doc["is_temp_user"])
	assert.Equal(t, []any{}, doc["merge_history"])
}

func TestGetMetadata(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetMetadata("g1", "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = s.SaveSample("g1", "bare", []byte("x"))
	require.NoError(t, err)
	md, err := s.GetMetadata("g1", "bare")
	require.NoError(t, err)
	assert.False(t, md.HasKind())

	dir := filepath.Join(s.Root(), "g1", "bare")
	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte("{not json"), 0o644))
	_, err = s.GetMetadata("g1", "bare")
	assert.ErrorIs(t, err, apperrors.ErrStorage)
}

func TestListPersonsPartitionsByStoredFlag(t *testing.T) {
	s := newTestStore(t)

	// Ids that look like the old temp_ naming convention do not decide the kind.
	_, err := s.InitPerson("g1", "temp_looks_temporary", models.KindPermanent)
	require.NoError(t, err)
	_, err = s.InitPerson("g1", "alice", models.KindTemporary)
	require.NoError(t, err)
	_, err = s.SaveSample("g1", "alice", []byte("a"))
	require.NoError(t, err)
	// No metadata at all counts as permanent.
	_, err = s.SaveSample("g1", "legacy", []byte("l"))
	require.NoError(t, err)

	listing, err := s.ListPersons("g1")
	require.NoError(t, err)
	assert.Equal(t, 3, listing.Total())

	require.Len(t, listing.Temporary, 1)
	assert.Equal(t, "alice", listing.Temporary[0].PersonID)
	assert.Equal(t, 1, listing.Temporary[0].FaceCount)

	var permanent []string
	for _, p := range listing.Permanent {
		permanent = append(permanent, p.PersonID)
		assert.Equal(t, models.KindPermanent, p.Kind)
	}
	assert.ElementsMatch(t, []string{"temp_looks_temporary", "legacy"}, permanent)
}

func TestListPersonsMissingGroupIsEmpty(t *testing.T) {
	s := newTestStore(t)
	listing, err := s.ListPersons("nope")
	require.NoError(t, err)
	assert.Equal(t, 0, listing.Total())
	assert.NotNil(t, listing.Permanent)
	assert.NotNil(t, listing.Temporary)
}

func TestLatestSampleIsNewest(t *testing.T) {
	s := newTestStore(t)
	id := addPerson(t, s, "g1", models.KindPermanent, 0)

	base := time.Now().Add(-time.Hour)
	var newest string
	for i, offset := range []time.Duration{3 * time.Minute, 10 * time.Minute, time.Minute} {
		sample, err := s.SaveSample("g1", id, []byte{byte(i)})
		require.NoError(t, err)
		mtime := base.Add(offset)
		require.NoError(t, os.Chtimes(sample.Path, mtime, mtime))
		if offset == 10*time.Minute {
			newest = sample.Filename
		}
	}

	latest, err := s.LatestSample("g1", id)
	require.NoError(t, err)
	assert.Equal(t, newest, latest.Filename)
	assert.Equal(t, []byte{1}, latest.Data)
	assert.EqualValues(t, 1, latest.Size)
}

func TestLatestSampleWithoutSamples(t *testing.T) {
	s := newTestStore(t)
	id := addPerson(t, s, "g1", models.KindPermanent, 0)

	_, err := s.LatestSample("g1", id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = s.LatestSample("g1", "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteGroup(t *testing.T) {
	s := newTestStore(t)
	addPerson(t, s, "G1", models.KindTemporary, 2)

	require.NoError(t, s.DeleteGroup("G1"))

	ok, err := s.GroupExists("G1")
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.DeleteGroup("G1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), tombstonePrefix)
	}
}

func TestSweepTombstones(t *testing.T) {
	s := newTestStore(t)
	tomb := filepath.Join(s.Root(), tombstonePrefix+"leftover")
	require.NoError(t, os.MkdirAll(filepath.Join(tomb, "p1"), 0o755))
	addPerson(t, s, "kept", models.KindPermanent, 1)

	n, err := s.SweepTombstones()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoDirExists(t, tomb)

	groups, err := s.ListGroups()
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, groups)
}

func TestMoveSampleResolvesCollisions(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "g1", "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), "g1", "dst"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "g1", "src", "face.jpg"), []byte("src"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "g1", "dst", "face.jpg"), []byte("dst"), 0o644))

	name, err := s.MoveSample("g1", "src", "dst", "face.jpg")
	require.NoError(t, err)
	assert.Equal(t, "face_1.jpg", name)

	assert.NoFileExists(t, filepath.Join(s.Root(), "g1", "src", "face.jpg"))
	data, err := os.ReadFile(filepath.Join(s.Root(), "g1", "dst", "face_1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("src"), data)

	_, err = s.MoveSample("g1", "src", "dst", "../metadata.json")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRemovePerson(t *testing.T) {
	s := newTestStore(t)
	id := addPerson(t, s, "g1", models.KindTemporary, 1)

	require.NoError(t, s.RemovePerson("g1", id))
	ok, err := s.PersonExists("g1", id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, s.RemovePerson("g1", id), apperrors.ErrNotFound)
}

func TestTransientFiles(t *testing.T) {
	s := newTestStore(t)

	path, err := s.SaveTransient([]byte("face"))
	require.NoError(t, err)
	assert.FileExists(t, path)

	ok, err := s.GroupExists(".scratch")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.False(t, ok)

	require.NoError(t, s.CleanupTransient(path, path, ""))
	assert.NoFileExists(t, path)

	outside := filepath.Join(t.TempDir(), "keep.jpg")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))
	assert.ErrorIs(t, s.CleanupTransient(outside), apperrors.ErrInvalidInput)
	assert.FileExists(t, outside)
}

func TestInvalidateCorpusCache(t *testing.T) {
	s := newTestStore(t)
	addPerson(t, s, "g1", models.KindPermanent, 1)
	cache := filepath.Join(s.Root(), "g1", "representations_vgg_face.pkl")
	require.NoError(t, os.WriteFile(cache, []byte("pickle"), 0o644))

	require.NoError(t, s.InvalidateCorpusCache("g1"))
	assert.NoFileExists(t, cache)
}

func TestPruneOrphans(t *testing.T) {
	s := newTestStore(t)
	keep := addPerson(t, s, "g1", models.KindTemporary, 1)
	orphan := addPerson(t, s, "g1", models.KindTemporary, 0)

	pruned, err := s.PruneOrphans("g1")
	require.NoError(t, err)
	assert.Equal(t, []string{orphan}, pruned)

	ok, err := s.PersonExists("g1", keep)
	require.NoError(t, err)
	assert.True(t, ok)
}
