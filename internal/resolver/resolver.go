// Package resolver turns a post URL into a normalized record by calling
// one or more upstream strategies under a configured fallback policy.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/stormydragon/twitfix/internal/config"
	"github.com/stormydragon/twitfix/internal/domain"
)

// StructuredAPI is the authenticated platform API strategy.
type StructuredAPI interface {
	FetchPost(ctx context.Context, postURL string) (*domain.PostRecord, error)
}

// Extractor is the unauthenticated best-effort strategy.
type Extractor interface {
	ExtractPost(ctx context.Context, postURL string) (*domain.PostRecord, error)
}

// Resolver resolves post URLs using the configured strategy.
type Resolver struct {
	method    string
	api       StructuredAPI
	extractor Extractor
	logger    *slog.Logger
}

// New creates a Resolver. The clients for strategies the method never uses
// may be nil.
func New(method string, api StructuredAPI, extractor Extractor, logger *slog.Logger) *Resolver {
	return &Resolver{
		method:    method,
		api:       api,
		extractor: extractor,
		logger:    logger,
	}
}

// Resolve produces a normalized record for postURL.
//
// A protected account always surfaces immediately: protection is a property
// of the account, so no other strategy could do better and none is tried.
// Under the hybrid method any other API failure triggers exactly one
// extractor attempt, whose failure becomes the final surfaced error.
func (r *Resolver) Resolve(ctx context.Context, postURL string) (*domain.PostRecord, error) {
	switch r.method {
	case config.MethodAPI:
		return r.fromAPI(ctx, postURL)

	case config.MethodExtractor:
		return r.fromExtractor(ctx, postURL)

	case config.MethodHybrid:
		rec, err := r.fromAPI(ctx, postURL)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, domain.ErrProtectedAccount) {
			return nil, err
		}
		r.logger.Warn("structured API failed, falling back to extractor",
			"url", postURL,
			"error", err,
		)
		return r.fromExtractor(ctx, postURL)
	}

	return nil, fmt.Errorf("unrecognized resolve method %q", r.method)
}

func (r *Resolver) fromAPI(ctx context.Context, postURL string) (*domain.PostRecord, error) {
	rec, err := r.api.FetchPost(ctx, postURL)
	if err != nil {
		if errors.Is(err, domain.ErrProtectedAccount) {
			return nil, err
		}
		return nil, domain.NewResolveError(postURL, "api", upstream(err))
	}
	return rec, nil
}

func (r *Resolver) fromExtractor(ctx context.Context, postURL string) (*domain.PostRecord, error) {
	rec, err := r.extractor.ExtractPost(ctx, postURL)
	if err != nil {
		return nil, domain.NewResolveError(postURL, "extractor", upstream(err))
	}
	return rec, nil
}

func upstream(err error) error {
	if errors.Is(err, domain.ErrUpstreamFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrUpstreamFailure, err)
}
