// Package syndication is the unauthenticated best-effort extractor. It
// reads the public syndication endpoint, which needs no credentials but
// yields less precise data than the structured API. Used as the fallback
// resolution strategy.
package syndication

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stormydragon/twitfix/internal/domain"
	"github.com/stormydragon/twitfix/pkg/twitter"
)

const defaultBase = "https://cdn.syndication.twimg.com"

// Client extracts post data from the public syndication endpoint.
type Client struct {
	httpClient *http.Client
	userAgent  string
	base       string
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the syndication endpoint. Used in tests.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.base = strings.TrimSuffix(base, "/")
	}
}

// NewClient creates a syndication extractor.
func NewClient(userAgent string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		userAgent: userAgent,
		base:      defaultBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtractPost resolves postURL into a normalized record, best effort.
func (c *Client) ExtractPost(ctx context.Context, postURL string) (*domain.PostRecord, error) {
	id := twitter.ExtractStatusID(postURL)
	if id == "" {
		return nil, fmt.Errorf("%w: no status id in %s", domain.ErrUpstreamFailure, postURL)
	}

	endpoint := fmt.Sprintf("%s/tweet-result?id=%s&token=0", c.base, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("syndication error (status %d): %s", resp.StatusCode, string(body))
	}

	var payload tweetResult
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return buildRecord(postURL, &payload), nil
}

// tweetResult is the syndication payload trimmed to what the record needs.
// The endpoint mixes several historical formats; media shows up in
// mediaDetails (with explicit bitrates) and photos.
type tweetResult struct {
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	FavoriteCount int    `json:"favorite_count"`
	RetweetCount  int    `json:"retweet_count"`
	User          struct {
		Name            string `json:"name"`
		ScreenName      string `json:"screen_name"`
		ProfileImageURL string `json:"profile_image_url_https"`
	} `json:"user"`
	Photos []struct {
		URL string `json:"url"`
	} `json:"photos"`
	MediaDetails []struct {
		Type          string `json:"type"`
		MediaURLHTTPS string `json:"media_url_https"`
		VideoInfo     struct {
			Variants []struct {
				Bitrate     int    `json:"bitrate"`
				ContentType string `json:"content_type"`
				URL         string `json:"url"`
			} `json:"variants"`
		} `json:"video_info"`
	} `json:"mediaDetails"`
	QuotedTweet *struct {
		Text string `json:"text"`
		User struct {
			Name       string `json:"name"`
			ScreenName string `json:"screen_name"`
		} `json:"user"`
	} `json:"quoted_tweet"`
	PossiblySensitive bool `json:"possibly_sensitive"`
}

func buildRecord(postURL string, payload *tweetResult) *domain.PostRecord {
	rec := &domain.PostRecord{
		SourceURL:    postURL,
		Description:  payload.Text,
		AuthorName:   payload.User.Name,
		AuthorHandle: payload.User.ScreenName,
		AuthorAvatar: payload.User.ProfileImageURL,
		Kind:         domain.PostKindText,
		Images:       domain.NewImageSlots(),
		LikeCount:    payload.FavoriteCount,
		RetweetCount: payload.RetweetCount,
		CreatedAt:    payload.CreatedAt,
		NSFW:         payload.PossiblySensitive,
	}

	// Prefer video: highest-bitrate mp4 across all media entries.
	bestBitrate := -1
	for _, md := range payload.MediaDetails {
		if md.Type != "video" && md.Type != "animated_gif" {
			continue
		}
		for _, v := range md.VideoInfo.Variants {
			if v.ContentType != "video/mp4" {
				continue
			}
			if v.Bitrate > bestBitrate {
				rec.MediaURL = v.URL
				rec.Thumbnail = md.MediaURLHTTPS
				bestBitrate = v.Bitrate
			}
		}
	}
	if rec.MediaURL != "" {
		rec.Kind = domain.PostKindVideo
	} else if len(payload.Photos) > 0 {
		urls := make([]string, 0, len(payload.Photos))
		for _, p := range payload.Photos {
			urls = append(urls, p.URL)
		}
		rec.SetImages(urls)
		rec.Thumbnail = urls[0]
		rec.Kind = domain.PostKindImage
	}

	if q := payload.QuotedTweet; q != nil {
		rec.Quoted = &domain.QuotedPost{
			Description:  q.Text,
			AuthorName:   q.User.Name,
			AuthorHandle: q.User.ScreenName,
		}
	}

	return rec
}
