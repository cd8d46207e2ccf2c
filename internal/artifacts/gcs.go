package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
)

const transferTimeout = 2 * time.Minute

// GCSPublisher uploads artifacts to gs://<Bucket>/<Prefix>/<version>/<file>.
// It relies on Application Default Credentials.
type GCSPublisher struct {
	Bucket string
	Prefix string
}

// NewGCSPublisher returns a publisher for bucket, or nil when bucket is empty.
func NewGCSPublisher(bucket, prefix string) *GCSPublisher {
	if bucket == "" {
		return nil
	}
	return &GCSPublisher{Bucket: bucket, Prefix: prefix}
}

func (p *GCSPublisher) Publish(ctx context.Context, localPath, version string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open file %q: %w", localPath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	objectName := ObjectName(p.Prefix, version, filepath.Base(localPath))
	w := client.Bucket(p.Bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/zip"
	w.Metadata = map[string]string{"model-version": version}

	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy file to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", p.Bucket, objectName)
	log.Info().Str("version", version).Str("uri", uri).Msg("Model published")
	return uri, nil
}

// FetchGCS downloads the object at uri into dest.
func FetchGCS(ctx context.Context, uri, dest string) error {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return err
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, transferTimeout)
	defer cancel()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open GCS object reader %s: %w", uri, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file %q: %w", dest, err)
	}
	n, err := io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("read GCS object: %w", err)
	}

	log.Info().Str("uri", uri).Int64("bytes", n).Str("file", dest).Msg("Model fetched")
	return nil
}
