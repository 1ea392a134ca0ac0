package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// ArtifactStore archives intermediate pipeline outputs of a run.
type ArtifactStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// ArtifactKey places a run's artifacts under lectures/{user}/{run}/.
func ArtifactKey(userId string, runId uuid.UUID, name string) string {
	return path.Join("lectures", userId, runId.String(), name)
}

type objectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type minioStore struct {
	client objectPutter
	bucket string
}

func NewMinIOStore(client *minio.Client, bucket string) ArtifactStore {
	return &minioStore{
		client: client,
		bucket: bucket,
	}
}

func (s *minioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

type nopStore struct{}

// NewNopStore discards every artifact. Used when no object storage is configured.
func NewNopStore() ArtifactStore {
	return nopStore{}
}

func (nopStore) Put(context.Context, string, []byte, string) error {
	return nil
}
