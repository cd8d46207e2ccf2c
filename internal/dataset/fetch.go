// Package dataset makes sure the credit card transactions CSV is available
// locally: it reuses an existing file, unpacks a zipped copy or downloads it.
package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
)

var zipMagic = []byte("PK\x03\x04")

// Options configures Ensure.
type Options struct {
	URL     string
	Timeout time.Duration
}

// Client downloads dataset files over HTTP.
type Client struct {
	rest *resty.Client
}

// NewClient returns a client with the given request timeout and two retries.
func NewClient(timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(2 * time.Minute)
	}
	r.SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			return err != nil || (resp != nil && resp.StatusCode() >= http.StatusInternalServerError)
		})
	return &Client{rest: r}
}

// Ensure makes the CSV at path available. An existing file is left alone; a
// sibling zip archive is extracted; otherwise the file is fetched from
// opts.URL.
func Ensure(ctx context.Context, path string, opts Options) error {
	if fileExists(path) {
		log.Debug().Str("file", path).Msg("Dataset already present")
		return nil
	}

	for _, archive := range zipCandidates(path) {
		if fileExists(archive) {
			log.Info().Str("archive", archive).Str("file", path).Msg("Extracting dataset archive")
			return ExtractCSV(archive, path)
		}
	}

	if opts.URL == "" {
		return fmt.Errorf("dataset %s not found and no download URL configured", path)
	}
	return NewClient(opts.Timeout).Download(ctx, opts.URL, path)
}

// Download fetches url into dest. Zip payloads are unpacked so that dest
// always ends up holding the CSV.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}

	tmp := dest + ".part"
	defer os.Remove(tmp)

	start := time.Now()
	resp, err := c.rest.R().
		SetContext(ctx).
		SetOutput(tmp).
		Get(url)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode())
	}

	isZip, err := hasZipMagic(tmp)
	if err != nil {
		return err
	}

	log.Info().
		Str("url", url).
		Str("file", dest).
		Bool("zip", isZip).
		Dur("took", time.Since(start)).
		Msg("Dataset downloaded")

	if isZip {
		return ExtractCSV(tmp, dest)
	}
	return os.Rename(tmp, dest)
}

// ExtractCSV writes the CSV entry of the archive to dest. An entry with the
// same base name as dest is preferred over any other .csv entry.
func ExtractCSV(archive, dest string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archive, err)
	}
	defer zr.Close()

	var entry *zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			continue
		}
		if filepath.Base(f.Name) == filepath.Base(dest) {
			entry = f
			break
		}
		if entry == nil {
			entry = f
		}
	}
	if entry == nil {
		return fmt.Errorf("archive %s contains no .csv file", archive)
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open %s in %s: %w", entry.Name, archive, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}
	tmp := dest + ".extract"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	n, err := io.Copy(out, rc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("extract %s: %w", entry.Name, err)
	}

	log.Info().Str("entry", entry.Name).Int64("bytes", n).Str("file", dest).Msg("Dataset extracted")
	return os.Rename(tmp, dest)
}

func zipCandidates(path string) []string {
	candidates := []string{path + ".zip"}
	if ext := filepath.Ext(path); ext != "" {
		candidates = append(candidates, strings.TrimSuffix(path, ext)+".zip")
	}
	return candidates
}

func hasZipMagic(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open download: %w", err)
	}
	defer f.Close()

	head := make([]byte, len(zipMagic))
	n, err := io.ReadFull(f, head)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bytes.Equal(head[:n], zipMagic), nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
