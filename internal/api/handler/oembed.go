package handler

import (
	"encoding/json"
	"net/http"
)

// oembedResponse is the envelope link-unfurling clients fetch from the
// alternate link on an embed page.
type oembedResponse struct {
	Type         string `json:"type"`
	Version      string `json:"version"`
	ProviderName string `json:"provider_name"`
	ProviderURL  string `json:"provider_url"`
	Title        string `json:"title"`
	AuthorName   string `json:"author_name"`
	AuthorURL    string `json:"author_url"`
}

// OEmbed handles GET /oembed.json. The page that linked here already
// carries the post content, so the envelope is built straight from the
// query parameters.
func (h *PostHandler) OEmbed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	kind := q.Get("type")
	if kind == "" {
		kind = "link"
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(oembedResponse{
		Type:         kind,
		Version:      "1.0",
		ProviderName: h.app.Name,
		ProviderURL:  h.app.Repo,
		Title:        q.Get("desc"),
		AuthorName:   q.Get("user"),
		AuthorURL:    q.Get("link"),
	}); err != nil {
		h.logger.Error("failed to write oembed json", "error", err)
	}
}
