// Package artifacts publishes trained model archives to durable storage and
// fetches them back for prediction.
package artifacts

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Publisher uploads a local artifact for a model version and returns the
// location it was stored at.
type Publisher interface {
	Publish(ctx context.Context, localPath, version string) (string, error)
}

// ObjectName is the object key of file for version under prefix.
func ObjectName(prefix, version, file string) string {
	return path.Join(strings.Trim(prefix, "/"), version, file)
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// IsGCSURI reports whether location points at Cloud Storage.
func IsGCSURI(location string) bool {
	return strings.HasPrefix(location, "gs://")
}

// DirPublisher copies artifacts into a local directory tree laid out like
// the bucket: <Root>/<Prefix>/<version>/<file>.
type DirPublisher struct {
	Root   string
	Prefix string
}

func (p DirPublisher) Publish(_ context.Context, localPath, version string) (string, error) {
	dest := filepath.Join(p.Root, filepath.FromSlash(ObjectName(p.Prefix, version, filepath.Base(localPath))))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create publish directory: %w", err)
	}
	if err := copyFile(localPath, dest); err != nil {
		return "", err
	}

	log.Info().Str("version", version).Str("dest", dest).Msg("Model published")
	return dest, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open file %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file %q: %w", dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %q: %w", src, err)
	}
	return out.Close()
}
