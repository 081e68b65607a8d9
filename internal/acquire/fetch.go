package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/sync/errgroup"
)

// ErrTruncated is returned when the body is shorter than the advertised
// Content-Length.
var ErrTruncated = errors.New("download truncated")

// StatusError is returned for a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// FetcherConfig configures a Fetcher. Zero values select defaults.
type FetcherConfig struct {
	Parallel  int           // concurrent range requests; <= 1 downloads in one stream
	RetryMax  int           // retries per request, default 2
	RetryWait time.Duration // minimum backoff between retries
	Timeout   time.Duration // per-request timeout, 0 for none
	Logger    *slog.Logger
}

// Fetcher downloads a remote feed to a local file.
type Fetcher struct {
	client   *retryablehttp.Client
	parallel int
	logger   *slog.Logger
}

// NewFetcher builds a Fetcher backed by a retrying HTTP client.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := retryablehttp.NewClient()
	client.Logger = logger // *slog.Logger satisfies retryablehttp.LeveledLogger
	client.RetryMax = 2
	if cfg.RetryMax > 0 {
		client.RetryMax = cfg.RetryMax
	}
	if cfg.RetryWait > 0 {
		client.RetryWaitMin = cfg.RetryWait
		client.RetryWaitMax = 10 * cfg.RetryWait
	}
	client.HTTPClient.Timeout = cfg.Timeout
	// Hand the final response back so non-2xx becomes a StatusError.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Fetcher{
		client:   client,
		parallel: cfg.Parallel,
		logger:   logger,
	}
}

// Fetch downloads url to dest and returns the number of bytes written. The
// file appears at dest only once the download is complete.
func (f *Fetcher) Fetch(ctx context.Context, url, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create download dir: %w", err)
	}

	tmp := dest + ".part"
	start := time.Now()

	n, err := f.fetchTo(ctx, url, tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return n, err
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("move download into place: %w", err)
	}

	f.logger.Info("download complete",
		"url", url,
		"bytes", n,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return n, nil
}

func (f *Fetcher) fetchTo(ctx context.Context, url, path string) (int64, error) {
	if f.parallel > 1 {
		size, ok, err := f.probeRanges(ctx, url)
		if err != nil {
			return 0, err
		}
		if ok {
			return f.fetchRanges(ctx, url, path, size)
		}
		f.logger.Debug("server does not support ranges, downloading in one stream", "url", url)
	}
	return f.fetchWhole(ctx, url, path)
}

func (f *Fetcher) fetchWhole(ctx context.Context, url, path string) (int64, error) {
	resp, err := f.do(ctx, http.MethodGet, url, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := checkStatus(url, resp, http.StatusOK); err != nil {
		return 0, err
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create download file: %w", err)
	}

	n, err := io.Copy(out, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, copyErr(url, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, fmt.Errorf("%w: got %d of %d bytes", ErrTruncated, n, resp.ContentLength)
	}
	return n, nil
}

// probeRanges reports the content length when the server accepts byte ranges.
func (f *Fetcher) probeRanges(ctx context.Context, url string) (int64, bool, error) {
	resp, err := f.do(ctx, http.MethodHead, url, "")
	if err != nil {
		return 0, false, err
	}
	resp.Body.Close()

	if err := checkStatus(url, resp, http.StatusOK); err != nil {
		return 0, false, err
	}
	ok := strings.EqualFold(resp.Header.Get("Accept-Ranges"), "bytes") && resp.ContentLength > 0
	return resp.ContentLength, ok, nil
}

// fetchRanges splits [0, size) into f.parallel parts and writes each at its
// offset. Any failed part cancels the rest.
func (f *Fetcher) fetchRanges(ctx context.Context, url, path string, size int64) (int64, error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create download file: %w", err)
	}
	defer out.Close()

	if err := out.Truncate(size); err != nil {
		return 0, fmt.Errorf("allocate download file: %w", err)
	}

	parts := int64(f.parallel)
	if parts > size {
		parts = size
	}
	partSize := (size + parts - 1) / parts

	f.logger.Info("downloading in parallel", "url", url, "bytes", size, "parts", parts)

	g, gctx := errgroup.WithContext(ctx)
	for start := int64(0); start < size; start += partSize {
		end := min(start+partSize, size) - 1
		g.Go(func() error {
			return f.fetchPart(gctx, url, out, start, end)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return size, out.Close()
}

func (f *Fetcher) fetchPart(ctx context.Context, url string, out io.WriterAt, start, end int64) error {
	resp, err := f.do(ctx, http.MethodGet, url, fmt.Sprintf("bytes=%d-%d", start, end))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(url, resp, http.StatusPartialContent); err != nil {
		return err
	}

	want := end - start + 1
	n, err := io.Copy(io.NewOffsetWriter(out, start), io.LimitReader(resp.Body, want))
	if err != nil {
		return copyErr(url, err)
	}
	if n != want {
		return fmt.Errorf("%w: range %d-%d got %d bytes", ErrTruncated, start, end, n)
	}
	return nil
}

func (f *Fetcher) do(ctx context.Context, method, url, byteRange string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if byteRange != "" {
		req.Header.Set("Range", byteRange)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	return resp, nil
}

func checkStatus(url string, resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	return &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
}

func copyErr(url string, err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %s: %v", ErrTruncated, url, err)
	}
	return fmt.Errorf("download %s: %w", url, err)
}
