package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stormydragon/twitfix/internal/config"
	"github.com/stormydragon/twitfix/internal/domain"
)

const maxAttempts = 3

// HTTPDownloader implements Downloader using HTTP requests.
type HTTPDownloader struct {
	// streamClient has no overall timeout; media downloads can outlive any
	// sane request deadline, so only the response headers are bounded.
	streamClient *http.Client
	userAgent    string
	cfg          config.DownloadConfig
}

// NewHTTPDownloader creates a new HTTP-based media downloader.
func NewHTTPDownloader(cfg config.DownloadConfig) *HTTPDownloader {
	return &HTTPDownloader{
		streamClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		userAgent: cfg.UserAgent,
		cfg:       cfg,
	}
}

// Download fetches media from url with retry and exponential backoff.
// Expired URLs fail immediately; transient failures are retried.
func (d *HTTPDownloader) Download(ctx context.Context, url string) (io.ReadCloser, int64, string, error) {
	var lastErr error

	delay := d.cfg.RetryDelay
	for attempt := 0; attempt < maxAttempts; attempt++ {
		body, size, contentType, err := d.downloadOnce(ctx, url)
		if err == nil {
			return body, size, contentType, nil
		}

		lastErr = err
		if !isRetryable(err) || attempt == maxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return nil, 0, "", ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > d.cfg.MaxRetryDelay {
			delay = d.cfg.MaxRetryDelay
		}
	}

	return nil, 0, "", fmt.Errorf("download failed: %w", lastErr)
}

func (d *HTTPDownloader) downloadOnce(ctx context.Context, url string) (io.ReadCloser, int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "video/mp4,video/*;q=0.9,*/*;q=0.8")

	resp, err := d.streamClient.Do(req)
	if err != nil {
		return nil, 0, "", fmt.Errorf("send request: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, 0, "", domain.ErrURLExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, 0, "", domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, 0, "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "video/mp4"
	}

	return resp.Body, resp.ContentLength, contentType, nil
}

func isRetryable(err error) bool {
	return !errors.Is(err, domain.ErrURLExpired)
}
