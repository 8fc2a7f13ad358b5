package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBucket struct {
	objects map[string][]byte
	failOn  string
	closed  bool
}

func (b *fakeBucket) Upload(_ context.Context, objectName string, data []byte) error {
	if objectName == b.failOn {
		return errors.New("upload refused")
	}
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[objectName] = data
	return nil
}

func (b *fakeBucket) Close() error {
	b.closed = true
	return nil
}

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestUploadFiles(t *testing.T) {
	dir := t.TempDir()
	chart := writeArtifact(t, dir, "aqi_trend_ha-noi.png", "png-bytes")
	csvFile := writeArtifact(t, dir, "aqi_hanoi_2025_jun.csv", "timestamp,city\n")

	bucket := &fakeBucket{}
	u := NewWithBucket(bucket, "artifacts", zap.NewNop())

	require.NoError(t, u.UploadFiles(context.Background(), []string{chart, csvFile}))
	assert.Equal(t, []byte("png-bytes"), bucket.objects["artifacts/aqi_trend_ha-noi.png"])
	assert.Equal(t, []byte("timestamp,city\n"), bucket.objects["artifacts/aqi_hanoi_2025_jun.csv"])
}

func TestUploadFilesNoPrefix(t *testing.T) {
	dir := t.TempDir()
	chart := writeArtifact(t, dir, "aqi_trend_hue.png", "png")

	bucket := &fakeBucket{}
	u := NewWithBucket(bucket, "", zap.NewNop())

	require.NoError(t, u.UploadFiles(context.Background(), []string{chart}))
	assert.Contains(t, bucket.objects, "aqi_trend_hue.png")
}

func TestUploadFilesKeepsGoingAfterFailure(t *testing.T) {
	dir := t.TempDir()
	bad := writeArtifact(t, dir, "bad.png", "x")
	good := writeArtifact(t, dir, "good.png", "y")

	bucket := &fakeBucket{failOn: "bad.png"}
	u := NewWithBucket(bucket, "", zap.NewNop())

	err := u.UploadFiles(context.Background(), []string{bad, good})
	assert.Error(t, err)
	assert.Contains(t, bucket.objects, "good.png", "later artifacts still uploaded")
}

func TestUploadFilesMissingLocalFile(t *testing.T) {
	bucket := &fakeBucket{}
	u := NewWithBucket(bucket, "", zap.NewNop())

	err := u.UploadFiles(context.Background(), []string{"/does/not/exist.png"})
	assert.Error(t, err)
	assert.Empty(t, bucket.objects)
}

func TestClose(t *testing.T) {
	bucket := &fakeBucket{}
	u := NewWithBucket(bucket, "", zap.NewNop())
	require.NoError(t, u.Close())
	assert.True(t, bucket.closed)
}
