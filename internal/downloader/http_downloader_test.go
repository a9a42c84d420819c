package downloader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stormydragon/twitfix/internal/config"
	"github.com/stormydragon/twitfix/internal/domain"
)

func testConfig() config.DownloadConfig {
	return config.DownloadConfig{
		Timeout:       5 * time.Second,
		RetryDelay:    time.Millisecond,
		MaxRetryDelay: 5 * time.Millisecond,
		UserAgent:     "test-agent",
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("User-Agent = %q, want test-agent", got)
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("mp4-bytes"))
	}))
	defer srv.Close()

	d := NewHTTPDownloader(testConfig())
	body, size, contentType, err := d.Download(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(data) != "mp4-bytes" {
		t.Errorf("body = %q, want mp4-bytes", data)
	}
	if size != int64(len("mp4-bytes")) {
		t.Errorf("size = %d, want %d", size, len("mp4-bytes"))
	}
	if contentType != "video/mp4" {
		t.Errorf("content type = %q, want video/mp4", contentType)
	}
}

func TestDownloadRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := NewHTTPDownloader(testConfig())
	body, _, _, err := d.Download(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Download() error: %v", err)
	}
	body.Close()

	if got := calls.Load(); got != 3 {
		t.Errorf("upstream calls = %d, want 3", got)
	}
}

func TestDownloadExpiredURLNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewHTTPDownloader(testConfig())
	_, _, _, err := d.Download(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrURLExpired) {
		t.Fatalf("Download() error = %v, want ErrURLExpired", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (no retry on expired URL)", got)
	}
}

func TestDownloadContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.RetryDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	d := NewHTTPDownloader(cfg)
	_, _, _, err := d.Download(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Download() error = %v, want context.Canceled", err)
	}
}
