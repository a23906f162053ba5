package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/storage"
)

func setupStore(t *testing.T) *storage.FSStore {
	t.Helper()
	root := t.TempDir()
	t.Setenv("FACEID_DATA_ROOT", root)
	t.Setenv("FACEID_SCRATCH_DIR", filepath.Join(root, ".scratch"))
	t.Setenv("FACEID_NATS_URL", "")
	t.Setenv("FACEID_MINIO_ENDPOINT", "")

	store, err := storage.NewFSStore(config.StorageConfig{DataRoot: root})
	require.NoError(t, err)
	return store
}

func addPerson(t *testing.T, s *storage.FSStore, group string, kind models.Kind, samples int) string {
	t.Helper()
	id, err := s.CreatePerson(group, kind)
	require.NoError(t, err)
	for i := 0; i < samples; i++ {
		_, err := s.SaveSample(group, id, []byte{0xff, 0xd8, byte(i)})
		require.NoError(t, err)
	}
	return id
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestListJSON(t *testing.T) {
	store := setupStore(t)
	perm := addPerson(t, store, "G1", models.KindPermanent, 2)
	addPerson(t, store, "G1", models.KindTemporary, 1)

	out, err := run(t, "list", "G1", "--json")
	require.NoError(t, err)

	var listing models.PersonListing
	require.NoError(t, json.Unmarshal([]byte(out), &listing))
	require.Len(t, listing.Permanent, 1)
	assert.Equal(t, perm, listing.Permanent[0].PersonID)
	assert.Equal(t, 2, listing.Permanent[0].FaceCount)
	assert.Len(t, listing.Temporary, 1)
}

func TestMergeCommand(t *testing.T) {
	store := setupStore(t)
	src := addPerson(t, store, "G1", models.KindTemporary, 2)
	dst := addPerson(t, store, "G1", models.KindPermanent, 1)

	out, err := run(t, "merge", "G1", dst, src)
	require.NoError(t, err)
	assert.Contains(t, out, "2 faces moved into "+dst)

	exists, err := store.PersonExists("G1", src)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteGroupNeedsConfirmation(t *testing.T) {
	store := setupStore(t)
	addPerson(t, store, "G1", models.KindPermanent, 1)

	_, err := run(t, "delete-group", "G1")
	require.Error(t, err)

	_, err = run(t, "delete-group", "G1", "--yes")
	require.NoError(t, err)

	exists, err := store.HasGroup("G1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLastImageWritesFile(t *testing.T) {
	store := setupStore(t)
	id := addPerson(t, store, "G1", models.KindPermanent, 1)
	dest := filepath.Join(t.TempDir(), "face.jpg")

	_, err := run(t, "last-image", "G1", id, "-o", dest)
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8, 0x00}, data)
}

func TestPruneAndSweep(t *testing.T) {
	store := setupStore(t)
	addPerson(t, store, "G1", models.KindPermanent, 1)
	orphan := addPerson(t, store, "G1", models.KindTemporary, 0)

	out, err := run(t, "prune", "G1")
	require.NoError(t, err)
	assert.Contains(t, out, "pruned "+orphan)

	out, err = run(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 0")
}
