package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/your-org/faceid/internal/apperrors"
)

const (
	// MetadataFile sits next to a person's samples.
	MetadataFile = "metadata.json"

	sampleExt       = ".jpg"
	tombstonePrefix = ".deleted-"
	maxIDLength     = 255
)

var sampleExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// ValidateID rejects identifiers that are unsafe to use as a single path
// segment: empty, separators, parent references, leading dots (reserved for
// scratch and tombstone entries) and control characters.
func ValidateID(what, id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: %s is required", apperrors.ErrInvalidInput, what)
	case len(id) > maxIDLength:
		return fmt.Errorf("%w: %s is longer than %d bytes", apperrors.ErrInvalidInput, what, maxIDLength)
	case strings.HasPrefix(id, "."):
		return fmt.Errorf("%w: %s %q must not start with a dot", apperrors.ErrInvalidInput, what, id)
	case strings.Contains(id, ".."):
		return fmt.Errorf("%w: %s %q must not contain \"..\"", apperrors.ErrInvalidInput, what, id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("%w: %s %q must not contain path separators", apperrors.ErrInvalidInput, what, id)
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: %s %q contains control characters", apperrors.ErrInvalidInput, what, id)
		}
	}
	if filepath.Base(id) != id {
		return fmt.Errorf("%w: %s %q is not a single path segment", apperrors.ErrInvalidInput, what, id)
	}
	return nil
}

func isSampleFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return sampleExts[strings.ToLower(filepath.Ext(name))]
}

// uniqueName returns name, or name with a _N counter before the extension,
// such that nothing by that name exists in dir.
func uniqueName(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := name
	for counter := 1; ; counter++ {
		_, err := os.Lstat(filepath.Join(dir, candidate))
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s_%d%s", base, counter, ext)
	}
}

// writeFileAtomic writes data to a hidden temp file in dir and renames it
// into place, so readers never observe a partial file.
func writeFileAtomic(dir, name string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, name))
}
