package downloader

import (
	"context"
	"io"
)

// Downloader fetches remote media for rehosting.
type Downloader interface {
	// Download streams media from url. It returns the body, the content
	// length (-1 when unknown) and the remote content type. Caller is
	// responsible for closing the reader.
	Download(ctx context.Context, url string) (io.ReadCloser, int64, string, error)
}
