// Package gcsuploader stores receipt images in Google Cloud Storage.
package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

const uploadTimeout = 2 * time.Minute

// BucketStore uploads and fetches objects in one bucket, sharing one client.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
type BucketStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewBucketStore creates a storage client for bucket. Objects are written under prefix.
func NewBucketStore(ctx context.Context, bucket, prefix string) (*BucketStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewBucketStore: bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewBucketStore: create storage client: %w", err)
	}
	return &BucketStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Close releases the storage client.
func (s *BucketStore) Close() error {
	return s.client.Close()
}

// Put uploads data as a new object and returns its gs:// URI. The object name
// is made unique so repeated uploads of the same file never overwrite each other.
func (s *BucketStore) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	objectName := ObjectName(s.prefix, name, time.Now())

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Put: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Put: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}

// Fetch downloads the bytes of a gs:// URI.
func (s *BucketStore) Fetch(ctx context.Context, gcsURI string) ([]byte, error) {
	bucketName, objectPath, err := ParseURI(gcsURI)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	rc, err := s.client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// ParseURI splits gs://bucket/path/to/object into bucket and object path.
func ParseURI(gcsURI string) (bucket, object string, err error) {
	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", gcsURI)
	}

	parts := strings.SplitN(strings.TrimPrefix(gcsURI, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", gcsURI)
	}
	return parts[0], parts[1], nil
}

// ObjectName builds prefix/YYYY/MM/<uuid>-<base name>.
func ObjectName(prefix, name string, now time.Time) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "receipt"
	}
	base = strings.ReplaceAll(base, " ", "_")
	return path.Join(prefix, now.UTC().Format("2006/01"), uuid.New().String()+"-"+base)
}

// Filename extracts the original file name from a URI produced by Put.
// e.g., "gs://bucket/receipts/2026/10/<uuid>-bill.jpg" → "bill.jpg"
func Filename(uri string) string {
	base := path.Base(strings.TrimPrefix(uri, "gs://"))
	if len(base) > 37 && base[36] == '-' {
		if _, err := uuid.Parse(base[:36]); err == nil {
			return base[37:]
		}
	}
	return base
}
