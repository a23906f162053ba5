package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/faceid/internal/apperrors"
	"github.com/your-org/faceid/internal/config"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/observability"
)

// FSStore persists groups, persons, samples and metadata as a directory tree:
//
//	<root>/<group_id>/<person_id>/<sample_uuid>.jpg
//	<root>/<group_id>/<person_id>/metadata.json
//
// The tree is also the corpus the external recognizer searches, so FSStore
// is its only writer. DeleteGroup and PruneOrphans take the group lock
// themselves; other methods do not, and callers that run multi-step
// sequences hold LockGroup for the duration.
type FSStore struct {
	root    string
	scratch string
	locks   *GroupLocks
}

func NewFSStore(cfg config.StorageConfig) (*FSStore, error) {
	root, err := filepath.Abs(cfg.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve data root: %w", err)
	}
	scratch := cfg.ScratchDir
	if scratch == "" {
		scratch = filepath.Join(root, ".scratch")
	}
	scratch, err = filepath.Abs(scratch)
	if err != nil {
		return nil, fmt.Errorf("resolve scratch dir: %w", err)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data root: %w", err)
	}
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}

	return &FSStore{
		root:    root,
		scratch: scratch,
		locks:   NewGroupLocks(),
	}, nil
}

func (s *FSStore) Root() string { return s.root }

// LockGroup serializes mutations within one group.
func (s *FSStore) LockGroup(groupID string) (unlock func()) {
	return s.locks.Lock(groupID)
}

func (s *FSStore) GroupDir(groupID string) (string, error) {
	if err := ValidateID("group_id", groupID); err != nil {
		return "", err
	}
	return filepath.Join(s.root, groupID), nil
}

func (s *FSStore) PersonDir(groupID, personID string) (string, error) {
	groupDir, err := s.GroupDir(groupID)
	if err != nil {
		return "", err
	}
	if err := ValidateID("person_id", personID); err != nil {
		return "", err
	}
	return filepath.Join(groupDir, personID), nil
}

func storageError(op, groupID, personID string, err error) error {
	observability.StorageErrors.WithLabelValues(op).Inc()
	slog.Error("identity store operation failed",
		"op", op, "group_id", groupID, "person_id", personID, "error", err)
	return fmt.Errorf("%s: %w: %w", op, apperrors.ErrStorage, err)
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrNotFound, fmt.Sprintf(format, args...))
}

// --- Groups ---

// EnsureGroup creates the group directory if it is absent.
func (s *FSStore) EnsureGroup(groupID string) error {
	dir, err := s.GroupDir(groupID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageError("ensure_group", groupID, "", err)
	}
	return nil
}

// HasGroup reports whether the group directory exists, empty or not.
func (s *FSStore) HasGroup(groupID string) (bool, error) {
	dir, err := s.GroupDir(groupID)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, storageError("stat_group", groupID, "", err)
	}
	return info.IsDir(), nil
}

// GroupExists reports whether the group holds at least one person, i.e.
// whether there is a corpus the recognizer can match against.
func (s *FSStore) GroupExists(groupID string) (bool, error) {
	dir, err := s.GroupDir(groupID)
	if err != nil {
		return false, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, storageError("read_group", groupID, "", err)
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			return true, nil
		}
	}
	return false, nil
}

// ListGroups returns every group id under the data root.
func (s *FSStore) ListGroups() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, storageError("list_groups", "", "", err)
	}
	var groups []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			groups = append(groups, e.Name())
		}
	}
	return groups, nil
}

// DeleteGroup renames the group to a tombstone and then removes it, so the
// group disappears from GroupExists atomically. A failed removal leaves
// only the hidden tombstone, which SweepTombstones retries.
func (s *FSStore) DeleteGroup(groupID string) error {
	dir, err := s.GroupDir(groupID)
	if err != nil {
		return err
	}

	unlock := s.LockGroup(groupID)
	defer unlock()

	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return notFound("group %q", groupID)
	} else if err != nil {
		return storageError("delete_group", groupID, "", err)
	}

	tomb := filepath.Join(s.root, tombstonePrefix+uuid.NewString())
	if err := os.Rename(dir, tomb); err != nil {
		return storageError("delete_group", groupID, "", err)
	}
	if err := os.RemoveAll(tomb); err != nil {
		slog.Warn("group tombstone not fully removed", "group_id", groupID, "tombstone", tomb, "error", err)
	}
	return nil
}

// SweepTombstones removes leftovers of interrupted group deletions.
func (s *FSStore) SweepTombstones() (int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, storageError("sweep_tombstones", "", "", err)
	}
	removed := 0
	var errs []error
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), tombstonePrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// InvalidateCorpusCache drops recognizer representation caches (*.pkl at
// the group root) so the next match rebuilds them from the tree.
func (s *FSStore) InvalidateCorpusCache(groupID string) error {
	dir, err := s.GroupDir(groupID)
	if err != nil {
		return err
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.pkl"))
	if err != nil {
		return err
	}
	var errs []error
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return storageError("invalidate_cache", groupID, "", err)
	}
	return nil
}

// --- Persons ---

func (s *FSStore) PersonExists(groupID, personID string) (bool, error) {
	dir, err := s.PersonDir(groupID, personID)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, storageError("stat_person", groupID, personID, err)
	}
	return info.IsDir(), nil
}

// CreatePerson allocates a random person id and an empty person record.
func (s *FSStore) CreatePerson(groupID string, kind models.Kind) (string, error) {
	personID := uuid.NewString()
	if _, err := s.InitPerson(groupID, personID, kind); err != nil {
		return "", err
	}
	return personID, nil
}

// InitPerson creates the person with the given id and kind if it does not
// exist yet. It reports whether it created the person.
func (s *FSStore) InitPerson(groupID, personID string, kind models.Kind) (bool, error) {
	exists, err := s.PersonExists(groupID, personID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	dir, _ := s.PersonDir(groupID, personID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, storageError("create_person", groupID, personID, err)
	}

	md := &models.Metadata{
		PersonID:  personID,
		CreatedAt: models.NewTimestamp(time.Now()),
	}
	md.SetKind(kind)
	if err := s.SaveMetadata(groupID, personID, md); err != nil {
		return true, err
	}
	return true, nil
}

// RemovePerson deletes a person and everything under it.
func (s *FSStore) RemovePerson(groupID, personID string) error {
	exists, err := s.PersonExists(groupID, personID)
	if err != nil {
		return err
	}
	if !exists {
		return notFound("person %q in group %q", personID, groupID)
	}
	dir, _ := s.PersonDir(groupID, personID)
	if err := os.RemoveAll(dir); err != nil {
		return storageError("remove_person", groupID, personID, err)
	}
	return nil
}

// ListPersons partitions the group's persons by the is_temp_user flag in
// their metadata. Persons whose metadata cannot be read count as permanent.
func (s *FSStore) ListPersons(groupID string) (*models.PersonListing, error) {
	dir, err := s.GroupDir(groupID)
	if err != nil {
		return nil, err
	}
	listing := &models.PersonListing{
		Permanent: []models.PersonSummary{},
		Temporary: []models.PersonSummary{},
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return listing, nil
	}
	if err != nil {
		return nil, storageError("list_persons", groupID, "", err)
	}

	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		personID := e.Name()

		count, err := countSamples(filepath.Join(dir, personID))
		if err != nil {
			slog.Warn("count samples", "group_id", groupID, "person_id", personID, "error", err)
		}

		md, err := s.GetMetadata(groupID, personID)
		if err != nil {
			md = &models.Metadata{}
		}

		summary := models.PersonSummary{
			PersonID:    personID,
			Kind:        md.Kind(),
			FaceCount:   count,
			CreatedAt:   md.CreatedAt.Ptr(),
			LastUpdated: md.LastUpdated.Ptr(),
			Metadata:    *md,
		}
		if summary.Kind == models.KindTemporary {
			listing.Temporary = append(listing.Temporary, summary)
		} else {
			listing.Permanent = append(listing.Permanent, summary)
		}
	}
	return listing, nil
}

// PruneOrphans removes persons that own no samples.
func (s *FSStore) PruneOrphans(groupID string) ([]string, error) {
	if err := ValidateID("group_id", groupID); err != nil {
		return nil, err
	}
	unlock := s.LockGroup(groupID)
	defer unlock()

	listing, err := s.ListPersons(groupID)
	if err != nil {
		return nil, err
	}
	var pruned []string
	var errs []error
	for _, p := range append(listing.Permanent, listing.Temporary...) {
		if p.FaceCount > 0 {
			continue
		}
		if err := s.RemovePerson(groupID, p.PersonID); err != nil {
			errs = append(errs, err)
			continue
		}
		pruned = append(pruned, p.PersonID)
	}
	return pruned, errors.Join(errs...)
}

// --- Metadata ---

// SaveMetadata writes metadata.json atomically and stamps last_updated.
// A caller-supplied is_temp_user is kept; only an absent flag defaults to
// permanent.
func (s *FSStore) SaveMetadata(groupID, personID string, md *models.Metadata) error {
	dir, err := s.PersonDir(groupID, personID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageError("save_metadata", groupID, personID, err)
	}

	md.LastUpdated = models.NewTimestamp(time.Now())
	if md.PersonID == "" {
		md.PersonID = personID
	}
	if !md.HasKind() {
		md.SetKind(models.KindPermanent)
	}

	data, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := writeFileAtomic(dir, MetadataFile, data, 0o644); err != nil {
		return storageError("save_metadata", groupID, personID, err)
	}
	return nil
}

// GetMetadata reads a person's metadata. A person without a metadata file
// yields an empty document.
func (s *FSStore) GetMetadata(groupID, personID string) (*models.Metadata, error) {
	exists, err := s.PersonExists(groupID, personID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, notFound("person %q in group %q", personID, groupID)
	}

	dir, _ := s.PersonDir(groupID, personID)
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &models.Metadata{}, nil
	}
	if err != nil {
		return nil, storageError("get_metadata", groupID, personID, err)
	}

	var md models.Metadata
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, storageError("decode_metadata", groupID, personID, err)
	}
	return &md, nil
}

// --- Samples ---

// SaveSample writes the image under the person with a fresh uuid filename,
// creating the person directory if needed. Metadata is left to the caller.
func (s *FSStore) SaveSample(groupID, personID string, image []byte) (models.Sample, error) {
	dir, err := s.PersonDir(groupID, personID)
	if err != nil {
		return models.Sample{}, err
	}
	if len(image) == 0 {
		return models.Sample{}, fmt.Errorf("%w: empty image", apperrors.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.Sample{}, storageError("save_sample", groupID, personID, err)
	}

	name := uuid.NewString() + sampleExt
	if err := writeFileAtomic(dir, name, image, 0o644); err != nil {
		return models.Sample{}, storageError("save_sample", groupID, personID, err)
	}

	path := filepath.Join(dir, name)
	sample := models.Sample{Filename: name, Path: path, Size: int64(len(image)), CreatedAt: time.Now()}
	if info, err := os.Stat(path); err == nil {
		sample.CreatedAt = info.ModTime()
	}
	return sample, nil
}

// ListSamples returns a person's samples, newest first.
func (s *FSStore) ListSamples(groupID, personID string) ([]models.Sample, error) {
	dir, err := s.PersonDir(groupID, personID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound("person %q in group %q", personID, groupID)
	}
	if err != nil {
		return nil, storageError("list_samples", groupID, personID, err)
	}

	samples := make([]models.Sample, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || !isSampleFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Moved or removed since ReadDir.
			continue
		}
		samples = append(samples, models.Sample{
			Filename:  e.Name(),
			Path:      filepath.Join(dir, e.Name()),
			CreatedAt: info.ModTime(),
			Size:      info.Size(),
		})
	}

	sort.Slice(samples, func(i, j int) bool {
		if !samples[i].CreatedAt.Equal(samples[j].CreatedAt) {
			return samples[i].CreatedAt.After(samples[j].CreatedAt)
		}
		return samples[i].Filename < samples[j].Filename
	})
	return samples, nil
}

// LatestSample returns the newest sample with its bytes loaded.
func (s *FSStore) LatestSample(groupID, personID string) (*models.Sample, error) {
	samples, err := s.ListSamples(groupID, personID)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, notFound("no samples for person %q in group %q", personID, groupID)
	}

	latest := samples[0]
	data, err := os.ReadFile(latest.Path)
	if err != nil {
		return nil, storageError("read_sample", groupID, personID, err)
	}
	latest.Data = data
	latest.Size = int64(len(data))
	return &latest, nil
}

// MoveSample renames one sample from one person to another within a group.
// A name collision in the destination gets a _N suffix. It returns the
// sample's new filename.
func (s *FSStore) MoveSample(groupID, fromPerson, toPerson, filename string) (string, error) {
	srcDir, err := s.PersonDir(groupID, fromPerson)
	if err != nil {
		return "", err
	}
	dstDir, err := s.PersonDir(groupID, toPerson)
	if err != nil {
		return "", err
	}
	if filepath.Base(filename) != filename || !isSampleFile(filename) {
		return "", fmt.Errorf("%w: %q is not a sample filename", apperrors.ErrInvalidInput, filename)
	}

	name, err := uniqueName(dstDir, filename)
	if err != nil {
		return "", storageError("move_sample", groupID, toPerson, err)
	}
	if err := os.Rename(filepath.Join(srcDir, filename), filepath.Join(dstDir, name)); err != nil {
		return "", storageError("move_sample", groupID, fromPerson, err)
	}
	return name, nil
}

// RemoveSample deletes one sample of a person.
func (s *FSStore) RemoveSample(groupID, personID, filename string) error {
	dir, err := s.PersonDir(groupID, personID)
	if err != nil {
		return err
	}
	if filepath.Base(filename) != filename || !isSampleFile(filename) {
		return fmt.Errorf("%w: %q is not a sample filename", apperrors.ErrInvalidInput, filename)
	}
	err = os.Remove(filepath.Join(dir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return notFound("sample %q of person %q", filename, personID)
	}
	if err != nil {
		return storageError("remove_sample", groupID, personID, err)
	}
	return nil
}

func countSamples(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() && isSampleFile(e.Name()) {
			n++
		}
	}
	return n, nil
}

// --- Scratch files ---

// SaveTransient writes a scratch copy of image outside every group and
// returns its path.
func (s *FSStore) SaveTransient(image []byte) (string, error) {
	name := "face_" + uuid.NewString() + sampleExt
	if err := writeFileAtomic(s.scratch, name, image, 0o600); err != nil {
		return "", storageError("save_transient", "", "", err)
	}
	return filepath.Join(s.scratch, name), nil
}

// CleanupTransient removes scratch files. Missing paths are ignored; paths
// outside the scratch directory are refused.
func (s *FSStore) CleanupTransient(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if filepath.Dir(abs) != s.scratch {
			errs = append(errs, fmt.Errorf("%w: %q is not a scratch file", apperrors.ErrInvalidInput, p))
			continue
		}
		if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
