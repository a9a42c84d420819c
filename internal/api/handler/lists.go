package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/stormydragon/twitfix/internal/cache"
	"github.com/stormydragon/twitfix/internal/domain"
	"github.com/stormydragon/twitfix/internal/stats"
)

const (
	defaultListCount = 10
	maxListCount     = 50
)

// ListHandler serves the public cache listings.
type ListHandler struct {
	cache  cache.LinkCache
	stats  stats.Recorder
	logger *slog.Logger
}

func NewListHandler(linkCache cache.LinkCache, recorder stats.Recorder, logger *slog.Logger) *ListHandler {
	return &ListHandler{
		cache:  linkCache,
		stats:  recorder,
		logger: logger.With("component", "handler"),
	}
}

// listResponse wraps the records so the envelope can grow without
// breaking consumers.
type listResponse struct {
	Sort  string               `json:"sort,omitempty"`
	Posts []*domain.PostRecord `json:"posts"`
}

// Top handles GET /api/top.json?field=hits&count=10&offset=0.
func (h *ListHandler) Top(w http.ResponseWriter, r *http.Request) {
	h.stats.Increment(stats.MetricAPIHits)

	field := r.URL.Query().Get("field")
	if field == "" {
		field = "hits"
	}
	count, offset := listWindow(r)

	posts, err := h.cache.TopByField(r.Context(), field, count, offset)
	if err != nil {
		if errors.Is(err, domain.ErrCacheUnavailable) {
			h.logger.Error("listing failed", "error", err)
			http.Error(w, "cache unavailable", http.StatusInternalServerError)
			return
		}
		http.Error(w, "unsupported sort field", http.StatusBadRequest)
		return
	}
	h.writeList(w, listResponse{Sort: field, Posts: posts})
}

// Latest handles GET /api/latest.json?count=10&offset=0.
func (h *ListHandler) Latest(w http.ResponseWriter, r *http.Request) {
	h.stats.Increment(stats.MetricAPIHits)

	count, offset := listWindow(r)

	posts, err := h.cache.Latest(r.Context(), count, offset)
	if err != nil {
		h.logger.Error("listing failed", "error", err)
		http.Error(w, "cache unavailable", http.StatusInternalServerError)
		return
	}
	h.writeList(w, listResponse{Posts: posts})
}

func (h *ListHandler) writeList(w http.ResponseWriter, resp listResponse) {
	if resp.Posts == nil {
		resp.Posts = []*domain.PostRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to write listing json", "error", err)
	}
}

// listWindow parses the count/offset pagination parameters, clamping
// count to a sane ceiling.
func listWindow(r *http.Request) (count, offset int) {
	count = defaultListCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			count = n
		}
	}
	if count > maxListCount {
		count = maxListCount
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			offset = n
		}
	}
	return count, offset
}
