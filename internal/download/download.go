// Package download fetches burst rasters and SLC metadata from the ASF
// burst extractor, which returns 202 while an extract is being prepared.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/robert-malhotra/burst2safe/internal/search"
)

// Options configure a Downloader.
type Options struct {
	// Concurrency bounds the number of parallel downloads.
	Concurrency int
	// RequestsPerSecond throttles requests to the extractor.
	RequestsPerSecond float64
	// MaxWait bounds how long to retry a single URL while the extractor
	// responds 202.
	MaxWait time.Duration
	// Force re-downloads files that already exist on disk.
	Force bool
	// MetadataOnly skips the burst rasters, for annotation-only runs.
	MetadataOnly bool
}

// Downloader fetches burst files into a working directory.
type Downloader struct {
	opts    Options
	creds   *Credentials
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Files maps each local destination path to its source URL.
type Files map[string]string

// NewDownloader creates a Downloader with the given credentials.
func NewDownloader(creds *Credentials, opts Options) *Downloader {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = 2 * time.Minute
	}
	return &Downloader{
		opts:  opts,
		creds: creds,
		client: &http.Client{
			// The extractor can take minutes to stream a full burst.
			Timeout: 10 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		logger:  slog.Default(),
	}
}

// WithLogger sets the logger used during downloads.
func (d *Downloader) WithLogger(logger *slog.Logger) *Downloader {
	d.logger = logger
	return d
}

// Plan maps the search results onto local paths beneath dir: one raster
// per burst and one combined metadata file per source SLC. Existing files
// are skipped unless Force is set.
func (d *Downloader) Plan(results []*search.Result, dir string) Files {
	files := Files{}
	for _, result := range results {
		dataPath := filepath.Join(dir, result.Granule+".dat")
		metadataPath := filepath.Join(dir, result.SLCGranule+".xml")
		if !d.opts.MetadataOnly && (d.opts.Force || !fileExists(dataPath)) {
			files[dataPath] = result.DataURL
		}
		if d.opts.Force || !fileExists(metadataPath) {
			files[metadataPath] = result.MetadataURL
		}
	}
	return files
}

// Fetch downloads every planned file, bounded by the configured
// concurrency and request rate.
func (d *Downloader) Fetch(ctx context.Context, files Files) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(d.opts.Concurrency)

	for path, url := range files {
		eg.Go(func() error {
			if err := d.fetchOne(ctx, url, path); err != nil {
				return fmt.Errorf("downloading %s: %w", filepath.Base(path), err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for path := range files {
		if !fileExists(path) {
			return fmt.Errorf("download finished but %s is missing", path)
		}
	}
	return nil
}

// fetchOne downloads one URL, retrying while the extractor reports the
// extract is still being prepared.
func (d *Downloader) fetchOne(ctx context.Context, url, path string) error {
	started := time.Now()

	operation := func() (*http.Response, error) {
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		d.creds.Apply(req)

		resp, err := d.client.Do(req)
		if err != nil {
			return nil, err
		}
		switch {
		case resp.StatusCode == http.StatusAccepted:
			// Extract not ready yet.
			resp.Body.Close()
			return nil, fmt.Errorf("extractor still preparing %s", url)
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			resp.Body.Close()
			err := fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(d.opts.MaxWait),
	)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := writeAtomic(path, resp.Body); err != nil {
		return err
	}
	d.logger.Info("downloaded file",
		"path", filepath.Base(path), "duration", time.Since(started))
	return nil
}

// ScratchDir creates a unique working directory beneath base for one run.
func ScratchDir(base string) (string, error) {
	dir := filepath.Join(base, "burst2safe-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	return dir, nil
}

// writeAtomic streams body into path via a temporary file so partial
// downloads never shadow complete ones.
func writeAtomic(path string, body io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
