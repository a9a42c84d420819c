// Package storage rehosts post media so embeds do not depend on
// short-lived upstream URLs.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stormydragon/twitfix/internal/config"
	"github.com/stormydragon/twitfix/internal/downloader"
)

// DeliveryKind tells the HTTP layer how to hand stored media to a client.
type DeliveryKind int

const (
	// DeliverFile serves the bytes straight from a local path.
	DeliverFile DeliveryKind = iota
	// DeliverRedirect points the client at another URL.
	DeliverRedirect
)

// Delivery is how stored media reaches a client: either a local file to
// serve or a URL to redirect to.
type Delivery struct {
	Kind DeliveryKind

	// FilePath is set when Kind is DeliverFile.
	FilePath string
	// Location is set when Kind is DeliverRedirect.
	Location string
}

// MediaStore persists remote media under a deterministic identifier
// derived from the source URL, so repeated requests for the same media
// converge on one stored copy.
//
// Existence of the stored object is the only dedup signal. The
// check-then-download sequence is not atomic: two concurrent callers can
// both miss the existence check and download the same media twice. The
// write is idempotent, so the copies are identical and the race only
// costs bandwidth.
type MediaStore interface {
	// Store ensures the media at mediaURL is persisted and returns its
	// identifier. The second return is true when the object already
	// existed and no download happened.
	Store(ctx context.Context, mediaURL string) (string, bool, error)

	// Retrieve says how to deliver a stored identifier to a client.
	Retrieve(ctx context.Context, identifier string) (*Delivery, error)
}

// New builds the media store selected by cfg.
func New(cfg config.StorageConfig, dl downloader.Downloader, logger *slog.Logger) (MediaStore, error) {
	switch cfg.Backend {
	case config.StorageFilesystem:
		return NewFilesystemStore(cfg.BasePath, dl, logger)
	case config.StorageS3:
		return NewS3Store(cfg.S3, dl, logger)
	case config.StorageNone:
		return NewPassthroughStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
