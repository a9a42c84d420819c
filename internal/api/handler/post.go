package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stormydragon/twitfix/internal/cache"
	"github.com/stormydragon/twitfix/internal/classifier"
	"github.com/stormydragon/twitfix/internal/config"
	"github.com/stormydragon/twitfix/internal/domain"
	"github.com/stormydragon/twitfix/internal/render"
	"github.com/stormydragon/twitfix/internal/stats"
	"github.com/stormydragon/twitfix/internal/storage"
)

// Resolver fetches a normalized post record for a canonical post URL.
type Resolver interface {
	Resolve(ctx context.Context, postURL string) (*domain.PostRecord, error)
}

// PostHandler is the orchestrator behind the catch-all route: it
// classifies the request, consults the cache, resolves on a miss and
// dispatches on the classified action.
type PostHandler struct {
	classifier *classifier.Classifier
	resolver   Resolver
	cache      cache.LinkCache
	store      storage.MediaStore
	renderer   *render.Renderer
	stats      stats.Recorder
	logger     *slog.Logger
	app        config.AppConfig
}

// NewPostHandler wires the orchestrator.
func NewPostHandler(
	cl *classifier.Classifier,
	res Resolver,
	linkCache cache.LinkCache,
	store storage.MediaStore,
	renderer *render.Renderer,
	recorder stats.Recorder,
	app config.AppConfig,
	logger *slog.Logger,
) *PostHandler {
	return &PostHandler{
		classifier: cl,
		resolver:   res,
		cache:      linkCache,
		store:      store,
		renderer:   renderer,
		stats:      recorder,
		logger:     logger.With("component", "handler"),
		app:        app,
	}
}

// Home handles GET /. Embed crawlers get a card describing the service;
// browsers are sent to the project page.
func (h *PostHandler) Home(w http.ResponseWriter, r *http.Request) {
	act := h.classifier.Classify("/", r.Host, r.UserAgent())
	if act.EmbedClient {
		h.message(w, http.StatusOK, h.app.Name,
			"Add this domain to a post link to fix its embed.")
		return
	}
	http.Redirect(w, r, h.app.Repo, http.StatusMovedPermanently)
}

// Serve handles the catch-all post route.
func (h *PostHandler) Serve(w http.ResponseWriter, r *http.Request) {
	act := h.classifier.Classify(r.URL.Path, r.Host, r.UserAgent())
	if act.Kind == classifier.Unrecognized {
		h.message(w, http.StatusOK, h.app.Name,
			"That doesn't look like a link to a post.")
		return
	}

	// Classification already knows where the post lives, so plain
	// browsers are redirected without touching the cache or an upstream.
	if act.Kind == classifier.EmbedOrRedirect && !act.EmbedClient {
		http.Redirect(w, r, act.PostURL, http.StatusMovedPermanently)
		return
	}

	rec, err := h.lookup(r.Context(), act.PostURL)
	if err != nil {
		h.renderError(w, err)
		return
	}

	switch act.Kind {
	case classifier.EmbedOrRedirect:
		h.embed(w, rec, act)

	case classifier.RawJSON:
		// Crawlers asking for .json still want something to show.
		if act.EmbedClient {
			h.message(w, http.StatusOK, "@"+rec.AuthorHandle, rec.Description)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(rec); err != nil {
			h.logger.Error("failed to write record json", "error", err)
		}

	case classifier.DownloadAndRedirect:
		if act.EmbedClient {
			h.embed(w, rec, act)
			return
		}
		target := rec.MediaURL
		if target == "" {
			target = rec.SourceURL
		}
		http.Redirect(w, r, target, http.StatusMovedPermanently)

	case classifier.DirectDownload:
		h.download(w, r, rec)

	case classifier.ImageAt:
		h.embed(w, rec, act)
	}
}

// lookup runs the cache-then-resolve sequence. Cache failures degrade to
// a resolve; they never fail the request on their own.
func (h *PostHandler) lookup(ctx context.Context, postURL string) (*domain.PostRecord, error) {
	rec, err := h.cache.Get(ctx, postURL)
	if err != nil {
		h.logger.Warn("cache read failed", "url", postURL, "error", err)
	}
	if rec != nil {
		h.stats.Increment(stats.MetricEmbeds)
		return rec, nil
	}

	rec, err = h.resolver.Resolve(ctx, postURL)
	if err != nil {
		return nil, err
	}

	if ok, err := h.cache.Put(ctx, postURL, rec); err != nil {
		h.logger.Warn("cache write failed", "url", postURL, "error", err)
	} else if ok {
		h.stats.Increment(stats.MetricLinksCached)
	}
	return rec, nil
}

func (h *PostHandler) embed(w http.ResponseWriter, rec *domain.PostRecord, act classifier.Action) {
	var videoURL, imageURL string
	switch rec.Kind {
	case domain.PostKindVideo:
		videoURL = rec.MediaURL
	case domain.PostKindImage:
		index := 0
		if act.Kind == classifier.ImageAt {
			index = act.ImageIndex
		}
		imageURL = rec.ImageAt(index)
		if imageURL == "" {
			imageURL = rec.ImageAt(0)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Embed(w, rec, videoURL, imageURL); err != nil {
		h.logger.Error("failed to render embed", "url", rec.SourceURL, "error", err)
	}
}

// download rehosts the post's video and serves it.
func (h *PostHandler) download(w http.ResponseWriter, r *http.Request, rec *domain.PostRecord) {
	if rec.Kind != domain.PostKindVideo || rec.MediaURL == "" {
		h.message(w, http.StatusOK, h.app.Name, "That post has no video to download.")
		return
	}

	identifier, existed, err := h.store.Store(r.Context(), rec.MediaURL)
	if err != nil {
		h.renderError(w, err)
		return
	}
	if !existed {
		h.stats.Increment(stats.MetricDownloads)
	}

	delivery, err := h.store.Retrieve(r.Context(), identifier)
	if err != nil {
		h.renderError(w, err)
		return
	}
	switch delivery.Kind {
	case storage.DeliverFile:
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("Content-Type", "video/mp4")
		http.ServeFile(w, r, delivery.FilePath)
	case storage.DeliverRedirect:
		http.Redirect(w, r, delivery.Location, http.StatusFound)
	}
}

func (h *PostHandler) message(w http.ResponseWriter, status int, title, text string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.renderer.Message(w, title, text); err != nil {
		h.logger.Error("failed to render message page", "error", err)
	}
}

// renderError translates pipeline failures into client responses. Raw
// error text never reaches the client.
func (h *PostHandler) renderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrProtectedAccount):
		h.message(w, http.StatusOK, "Protected account",
			"This account's posts are protected, so there is nothing to embed.")
	case errors.Is(err, domain.ErrUpstreamFailure):
		h.logger.Warn("resolution failed", "error", err)
		h.message(w, http.StatusOK, "Failed to scan your link!",
			"The post could not be fetched right now. Try again in a moment.")
	case errors.Is(err, domain.ErrInvalidIdentifier):
		http.Error(w, "not found", http.StatusNotFound)
	default:
		h.logger.Error("request failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
