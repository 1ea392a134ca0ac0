package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPutter struct {
	mock.Mock
}

func (m *mockPutter) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, _ := io.ReadAll(reader)
	args := m.Called(bucketName, objectName, string(data), objectSize, opts.ContentType)
	return minio.UploadInfo{}, args.Error(0)
}

func TestArtifactKey(t *testing.T) {
	runId := uuid.MustParse("7b0b3c5e-1c1f-4a55-9d1e-2f7b3a6f9c10")
	assert.Equal(t, "lectures/user-1/7b0b3c5e-1c1f-4a55-9d1e-2f7b3a6f9c10/slides.json", ArtifactKey("user-1", runId, "slides.json"))
}

func TestMinIOStore_Put(t *testing.T) {
	putter := new(mockPutter)
	putter.On("PutObject", "lectures", "lectures/u/r/slides.json", `[{"title":"A"}]`, int64(15), "application/json").Return(nil)

	store := &minioStore{client: putter, bucket: "lectures"}
	err := store.Put(context.Background(), "lectures/u/r/slides.json", []byte(`[{"title":"A"}]`), "application/json")
	require.NoError(t, err)
	putter.AssertExpectations(t)
}

func TestMinIOStore_PutError(t *testing.T) {
	putter := new(mockPutter)
	putter.On("PutObject", "lectures", "k", "x", int64(1), "text/plain").Return(errors.New("bucket missing"))

	store := &minioStore{client: putter, bucket: "lectures"}
	err := store.Put(context.Background(), "k", []byte("x"), "text/plain")
	assert.ErrorContains(t, err, "bucket missing")
}

func TestNopStore(t *testing.T) {
	assert.NoError(t, NewNopStore().Put(context.Background(), "k", []byte("x"), "text/plain"))
}
