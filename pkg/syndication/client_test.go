package syndication

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stormydragon/twitfix/internal/domain"
)

func fakeSyndication(t *testing.T, payload map[string]any) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tweet-result" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("id") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(srv.Close)
	return NewClient("test-agent", WithBaseURL(srv.URL))
}

func TestExtractPostVideo(t *testing.T) {
	c := fakeSyndication(t, map[string]any{
		"text":       "a video",
		"created_at": "2018-10-10T20:19:24.000Z",
		"user":       map[string]any{"name": "Jack", "screen_name": "jack"},
		"mediaDetails": []map[string]any{{
			"type":            "video",
			"media_url_https": "https://pbs.example/poster.jpg",
			"video_info": map[string]any{
				"variants": []map[string]any{
					{"bitrate": 632000, "content_type": "video/mp4", "url": "https://video.example/low.mp4"},
					{"bitrate": 2176000, "content_type": "video/mp4", "url": "https://video.example/high.mp4"},
					{"bitrate": 0, "content_type": "application/x-mpegURL", "url": "https://video.example/playlist.m3u8"},
				},
			},
		}},
	})

	rec, err := c.ExtractPost(context.Background(), "https://twitter.com/jack/status/1050118621198921728")
	if err != nil {
		t.Fatalf("ExtractPost() error: %v", err)
	}
	if rec.Kind != domain.PostKindVideo {
		t.Errorf("Kind = %q, want Video", rec.Kind)
	}
	if rec.MediaURL != "https://video.example/high.mp4" {
		t.Errorf("MediaURL = %q, want highest-bitrate mp4", rec.MediaURL)
	}
	if rec.Thumbnail != "https://pbs.example/poster.jpg" {
		t.Errorf("Thumbnail = %q", rec.Thumbnail)
	}
}

func TestExtractPostImages(t *testing.T) {
	c := fakeSyndication(t, map[string]any{
		"text": "pics",
		"user": map[string]any{"name": "Jack", "screen_name": "jack"},
		"photos": []map[string]any{
			{"url": "https://pbs.example/a.jpg"},
			{"url": "https://pbs.example/b.jpg"},
		},
	})

	rec, err := c.ExtractPost(context.Background(), "https://twitter.com/jack/status/20")
	if err != nil {
		t.Fatalf("ExtractPost() error: %v", err)
	}
	if rec.Kind != domain.PostKindImage {
		t.Errorf("Kind = %q, want Image", rec.Kind)
	}
	if got := rec.ImageCount(); got != 2 {
		t.Errorf("ImageCount() = %d, want 2", got)
	}
	if rec.Thumbnail != "https://pbs.example/a.jpg" {
		t.Errorf("Thumbnail = %q", rec.Thumbnail)
	}
}

func TestExtractPostText(t *testing.T) {
	c := fakeSyndication(t, map[string]any{
		"text": "just words",
		"user": map[string]any{"name": "Jack", "screen_name": "jack"},
	})

	rec, err := c.ExtractPost(context.Background(), "https://twitter.com/jack/status/20")
	if err != nil {
		t.Fatalf("ExtractPost() error: %v", err)
	}
	if rec.Kind != domain.PostKindText {
		t.Errorf("Kind = %q, want Text", rec.Kind)
	}
}

func TestExtractPostUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("test-agent", WithBaseURL(srv.URL))
	if _, err := c.ExtractPost(context.Background(), "https://twitter.com/jack/status/20"); err == nil {
		t.Fatal("ExtractPost() expected error on upstream 404")
	}
}
