// Package classifier turns an inbound path/host/user-agent triple into one
// of a fixed set of actions. Classification is a pure function of its
// inputs; all side effects live in the handlers.
package classifier

import (
	"regexp"
	"strings"
)

// Kind enumerates the recognized actions.
type Kind int

const (
	// Unrecognized means the path does not reference a post.
	Unrecognized Kind = iota
	// EmbedOrRedirect serves an embed to allow-listed clients and a
	// redirect to the canonical post URL to everyone else.
	EmbedOrRedirect
	// RawJSON serves the normalized record as a JSON document.
	RawJSON
	// DownloadAndRedirect is the "d." direct-link mode: redirect straight
	// to the post's media URL.
	DownloadAndRedirect
	// DirectDownload rehosts the post's media and serves it.
	DirectDownload
	// ImageAt embeds one image of a multi-image post.
	ImageAt
)

func (k Kind) String() string {
	switch k {
	case EmbedOrRedirect:
		return "embed"
	case RawJSON:
		return "json"
	case DownloadAndRedirect:
		return "direct-link"
	case DirectDownload:
		return "download"
	case ImageAt:
		return "image"
	}
	return "unrecognized"
}

// Action is the classified request.
type Action struct {
	Kind Kind
	// PostURL is the canonical post URL, set for every kind except
	// Unrecognized.
	PostURL string
	// ImageIndex selects one image of a multi-image post; only meaningful
	// for ImageAt.
	ImageIndex int
	// EmbedClient reports whether the caller's user-agent is in the
	// allow-list of embed-generating clients. Carried as a capability flag
	// so callers never compare user-agent strings themselves.
	EmbedClient bool
}

// postRefPattern matches a post reference: a 1-15 word-character handle, a
// literal status/statuses segment, and a 2-20 digit id, anywhere in the path.
var postRefPattern = regexp.MustCompile(`\w{1,15}/(status|statuses)/\d{2,20}`)

// directLinkHostPrefix flags direct-link mode on the request host.
const directLinkHostPrefix = "d."

// Classifier classifies request triples. The platform base URL and the
// embed user-agent allow-list are configuration data fixed at construction.
type Classifier struct {
	platformBase string
	embedAgents  map[string]struct{}
}

// New creates a Classifier. platformBase is the URL prefix used to
// synthesize canonical post URLs from bare handle/status paths, e.g.
// "https://twitter.com/".
func New(platformBase string, embedUserAgents []string) *Classifier {
	agents := make(map[string]struct{}, len(embedUserAgents))
	for _, ua := range embedUserAgents {
		agents[ua] = struct{}{}
	}
	if !strings.HasSuffix(platformBase, "/") {
		platformBase += "/"
	}
	return &Classifier{platformBase: platformBase, embedAgents: agents}
}

// suffix pairs a recognized path ending (and its percent-encoded form)
// with the action it selects. Order matters: .mp4 wins over .json wins
// over the image digits.
type suffix struct {
	plain   string
	encoded string
	kind    Kind
	index   int
}

var suffixes = []suffix{
	{".mp4", "%2Emp4", DirectDownload, 0},
	{".json", "%2Ejson", RawJSON, 0},
	{"/1", "%2F1", ImageAt, 0},
	{"/2", "%2F2", ImageAt, 1},
	{"/3", "%2F3", ImageAt, 2},
	{"/4", "%2F4", ImageAt, 3},
}

// Classify parses the request triple into an Action. It is free of side
// effects: identical inputs always produce identical results.
func (c *Classifier) Classify(path, host, userAgent string) Action {
	_, embedClient := c.embedAgents[userAgent]

	sub := strings.TrimPrefix(path, "/")

	kind := EmbedOrRedirect
	imageIndex := 0
	for _, s := range suffixes {
		if trimmed, ok := trimSuffix(sub, s); ok {
			sub = trimmed
			kind = s.kind
			imageIndex = s.index
			break
		}
	}

	postURL, ok := c.canonicalPostURL(sub)
	if !ok {
		return Action{Kind: Unrecognized, EmbedClient: embedClient}
	}

	// Direct-link mode on the host takes precedence over any suffix.
	if strings.HasPrefix(host, directLinkHostPrefix) {
		kind = DownloadAndRedirect
		imageIndex = 0
	}

	return Action{
		Kind:        kind,
		PostURL:     postURL,
		ImageIndex:  imageIndex,
		EmbedClient: embedClient,
	}
}

func trimSuffix(sub string, s suffix) (string, bool) {
	if strings.HasSuffix(sub, s.plain) {
		return strings.TrimSuffix(sub, s.plain), true
	}
	if strings.HasSuffix(sub, s.encoded) {
		return strings.TrimSuffix(sub, s.encoded), true
	}
	return "", false
}

// canonicalPostURL locates a post reference in the path. A match at offset
// zero means the caller supplied a bare handle/id pair and the platform
// prefix is added; a later match means the path already carries a full URL.
func (c *Classifier) canonicalPostURL(sub string) (string, bool) {
	loc := postRefPattern.FindStringIndex(sub)
	if loc == nil {
		return "", false
	}
	if loc[0] == 0 {
		return c.platformBase + sub, true
	}
	return sub, true
}
