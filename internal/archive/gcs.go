// Package archive uploads crawl artifacts to Google Cloud Storage.
//
// Scheduled runs often execute on ephemeral machines; uploading the
// rendered charts and the current month's CSV files is how their output
// survives the instance. Authentication uses Application Default
// Credentials.
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// BucketWriter is the narrow slice of the GCS API the uploader needs,
// kept as an interface so tests can fake the client.
type BucketWriter interface {
	Upload(ctx context.Context, objectName string, data []byte) error
	Close() error
}

// gcsBucket adapts *storage.Client to BucketWriter.
type gcsBucket struct {
	client *storage.Client
	bucket string
}

func (b *gcsBucket) Upload(ctx context.Context, objectName string, data []byte) error {
	wc := b.client.Bucket(b.bucket).Object(objectName).NewWriter(ctx)
	if _, err := wc.Write(data); err != nil {
		// Close anyway to release the upload; the write error wins.
		_ = wc.Close()
		return fmt.Errorf("write object %s: %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", objectName, err)
	}
	return nil
}

func (b *gcsBucket) Close() error {
	return b.client.Close()
}

// Uploader copies local artifact files into a bucket under a prefix.
type Uploader struct {
	bucket BucketWriter
	prefix string
	logger *zap.Logger
}

// New builds an Uploader against a real GCS bucket, verifying access up
// front so a misconfigured bucket fails before the crawl's output is
// sitting on a disk about to disappear.
func New(ctx context.Context, bucketName, prefix string, logger *zap.Logger) (*Uploader, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	if _, err := client.Bucket(bucketName).Attrs(ctx); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close gcs client after attrs failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("check bucket %s: %w", bucketName, err)
	}
	return &Uploader{
		bucket: &gcsBucket{client: client, bucket: bucketName},
		prefix: prefix,
		logger: logger,
	}, nil
}

// NewWithBucket wires a fake bucket; the test seam.
func NewWithBucket(bucket BucketWriter, prefix string, logger *zap.Logger) *Uploader {
	return &Uploader{bucket: bucket, prefix: prefix, logger: logger}
}

// UploadFiles copies each local path to <prefix>/<basename>. It keeps
// going after individual failures and returns the first error at the end,
// so one bad file does not strand the rest of the artifacts.
func (u *Uploader) UploadFiles(ctx context.Context, paths []string) error {
	var firstErr error
	for _, path := range paths {
		data, err := os.ReadFile(path) // #nosec G304 -- paths are artifacts this process just wrote.
		if err != nil {
			u.logger.Error("read artifact", zap.String("path", path), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		objectName := filepath.Base(path)
		if u.prefix != "" {
			objectName = u.prefix + "/" + objectName
		}
		if err := u.bucket.Upload(ctx, objectName, data); err != nil {
			u.logger.Error("upload artifact", zap.String("object", objectName), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		u.logger.Info("artifact uploaded", zap.String("object", objectName))
	}
	return firstErr
}

// Close releases the underlying client.
func (u *Uploader) Close() error {
	return u.bucket.Close()
}
