// Package twitter is the authenticated structured-API client. It is the
// richest resolution strategy: full engagement metrics, quoted posts and
// the complete media variant list, at the cost of valid credentials.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/stormydragon/twitfix/internal/domain"
)

// tokenRefresh is how long an app-auth bearer token is trusted before a
// fresh one is requested.
const tokenRefresh = 110 * time.Minute

const (
	defaultAPIBase  = "https://api.twitter.com/1.1"
	defaultAuthBase = "https://api.twitter.com"
)

// Credentials holds the application key pair used for app-auth.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Client fetches post data from the structured API.
type Client struct {
	httpClient *http.Client
	creds      Credentials
	apiBase    string
	authBase   string

	mu           sync.Mutex
	token        string
	tokenExpires time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURLs overrides the API and auth endpoints. Used in tests.
func WithBaseURLs(apiBase, authBase string) Option {
	return func(c *Client) {
		c.apiBase = strings.TrimSuffix(apiBase, "/")
		c.authBase = strings.TrimSuffix(authBase, "/")
	}
}

// NewClient creates a structured-API client.
func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		creds:    creds,
		apiBase:  defaultAPIBase,
		authBase: defaultAuthBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// statusIDPattern extracts the numeric post id from the trailing path
// segment of a post URL, ignoring any query string.
var statusIDPattern = regexp.MustCompile(`(\d{2,20})(?:\?.*)?$`)

// FetchPost resolves postURL into a normalized record.
// Returns domain.ErrProtectedAccount when the author guards their posts.
func (c *Client) FetchPost(ctx context.Context, postURL string) (*domain.PostRecord, error) {
	id := ExtractStatusID(postURL)
	if id == "" {
		return nil, fmt.Errorf("%w: no status id in %s", domain.ErrUpstreamFailure, postURL)
	}

	status, err := c.fetchStatus(ctx, id)
	if err != nil {
		return nil, err
	}

	if status.User.Protected {
		return nil, domain.ErrProtectedAccount
	}

	return buildRecord(postURL, status), nil
}

func (c *Client) fetchStatus(ctx context.Context, id string) (*statusResponse, error) {
	token, err := c.bearerToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire bearer token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/statuses/show.json?id=%s&tweet_mode=extended", c.apiBase, url.QueryEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	var status statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &status, nil
}

// bearerToken returns a cached app-auth token, requesting a new one from
// the oauth2 endpoint once the refresh window has passed.
func (c *Client) bearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpires) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authBase+"/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.creds.APIKey, c.creds.APISecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned empty access_token")
	}

	c.token = payload.AccessToken
	c.tokenExpires = time.Now().Add(tokenRefresh)
	return c.token, nil
}

// statusResponse is the extended-mode statuses/show payload, trimmed to
// the fields the record needs.
type statusResponse struct {
	FullText          string `json:"full_text"`
	CreatedAt         string `json:"created_at"`
	FavoriteCount     int    `json:"favorite_count"`
	RetweetCount      int    `json:"retweet_count"`
	PossiblySensitive bool   `json:"possibly_sensitive"`
	User              struct {
		Name            string `json:"name"`
		ScreenName      string `json:"screen_name"`
		ProfileImageURL string `json:"profile_image_url_https"`
		Protected       bool   `json:"protected"`
	} `json:"user"`
	ExtendedEntities struct {
		Media []mediaEntity `json:"media"`
	} `json:"extended_entities"`
	QuotedStatus *struct {
		FullText string `json:"full_text"`
		User     struct {
			Name       string `json:"name"`
			ScreenName string `json:"screen_name"`
		} `json:"user"`
	} `json:"quoted_status"`
}

type mediaEntity struct {
	MediaURLHTTPS string `json:"media_url_https"`
	VideoInfo     *struct {
		Variants []videoVariant `json:"variants"`
	} `json:"video_info"`
}

type videoVariant struct {
	Bitrate     int    `json:"bitrate"`
	ContentType string `json:"content_type"`
	URL         string `json:"url"`
}

func buildRecord(postURL string, status *statusResponse) *domain.PostRecord {
	rec := &domain.PostRecord{
		SourceURL:    postURL,
		Description:  status.FullText,
		AuthorName:   status.User.Name,
		AuthorHandle: status.User.ScreenName,
		AuthorAvatar: status.User.ProfileImageURL,
		Kind:         classify(status),
		Images:       domain.NewImageSlots(),
		LikeCount:    status.FavoriteCount,
		RetweetCount: status.RetweetCount,
		CreatedAt:    status.CreatedAt,
		NSFW:         status.PossiblySensitive,
	}

	media := status.ExtendedEntities.Media
	switch rec.Kind {
	case domain.PostKindVideo:
		rec.Thumbnail = media[0].MediaURLHTTPS
		rec.MediaURL = bestVariant(media[0].VideoInfo.Variants)
	case domain.PostKindImage:
		urls := make([]string, 0, len(media))
		for _, m := range media {
			urls = append(urls, m.MediaURLHTTPS)
		}
		rec.SetImages(urls)
		rec.Thumbnail = media[0].MediaURLHTTPS
	}

	if q := status.QuotedStatus; q != nil {
		rec.Quoted = &domain.QuotedPost{
			Description:  q.FullText,
			AuthorName:   q.User.Name,
			AuthorHandle: q.User.ScreenName,
		}
	}

	return rec
}

func classify(status *statusResponse) domain.PostKind {
	media := status.ExtendedEntities.Media
	if len(media) == 0 {
		return domain.PostKindText
	}
	if media[0].VideoInfo != nil && len(media[0].VideoInfo.Variants) > 0 {
		return domain.PostKindVideo
	}
	return domain.PostKindImage
}

// bestVariant picks the video/mp4 variant with the highest bit rate.
// Ties keep the first-seen variant.
func bestVariant(variants []videoVariant) string {
	best := ""
	bestBitrate := -1
	for _, v := range variants {
		if v.ContentType != "video/mp4" {
			continue
		}
		if v.Bitrate > bestBitrate {
			best = v.URL
			bestBitrate = v.Bitrate
		}
	}
	return best
}

// ExtractStatusID pulls the numeric post id out of a post URL. Empty when
// the URL carries no id.
func ExtractStatusID(postURL string) string {
	trimmed := postURL
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	m := statusIDPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return ""
	}
	return m[1]
}
