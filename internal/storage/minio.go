package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/your-org/faceid/internal/config"
)

// MinIOStore archives original upload images. The recognizer never reads
// from it; the identity tree on disk stays the corpus.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

func NewMinIOStore(cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinIOStore{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (s *MinIOStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

func sourcePrefix(groupID string) string {
	return "sources/" + groupID + "/"
}

// ArchiveSource stores an uploaded image under sources/<group>/ and returns
// its object key.
func (s *MinIOStore) ArchiveSource(ctx context.Context, groupID, name string, data []byte) (string, error) {
	if name == "" {
		name = "upload.jpg"
	}
	key := sourcePrefix(groupID) + uuid.NewString() + "_" + path.Base(name)
	if err := s.putObject(ctx, key, data, "image/jpeg"); err != nil {
		return "", err
	}
	return key, nil
}

func (s *MinIOStore) putObject(ctx context.Context, key string, data []byte, contentType string) error {
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// EnforceRetention keeps the newest keep archived sources of a group and
// deletes the rest. keep <= 0 keeps everything.
func (s *MinIOStore) EnforceRetention(ctx context.Context, groupID string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	type object struct {
		key      string
		modified time.Time
	}
	var objects []object
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    sourcePrefix(groupID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return 0, fmt.Errorf("list objects %s: %w", groupID, obj.Err)
		}
		objects = append(objects, object{key: obj.Key, modified: obj.LastModified})
	}
	if len(objects) <= keep {
		return 0, nil
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].modified.After(objects[j].modified)
	})
	stale := make([]string, 0, len(objects)-keep)
	for _, o := range objects[keep:] {
		stale = append(stale, o.key)
	}
	if err := s.deleteObjects(ctx, stale); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// DeleteGroupSources removes every archived source of a group.
func (s *MinIOStore) DeleteGroupSources(ctx context.Context, groupID string) error {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    sourcePrefix(groupID),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("list objects %s: %w", groupID, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.deleteObjects(ctx, keys)
}

// deleteObjects removes multiple objects in a single batch request.
func (s *MinIOStore) deleteObjects(ctx context.Context, keys []string) error {
	objectsCh := make(chan minio.ObjectInfo, len(keys))
	for _, key := range keys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)
	for result := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if result.Err != nil {
			return fmt.Errorf("delete object %s: %w", result.ObjectName, result.Err)
		}
	}
	return nil
}

// Ping checks MinIO connectivity.
func (s *MinIOStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
