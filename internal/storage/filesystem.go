package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/stormydragon/twitfix/internal/domain"
	"github.com/stormydragon/twitfix/internal/downloader"
)

// FilesystemStore keeps media as plain files under a base directory and
// serves them directly.
type FilesystemStore struct {
	base   string
	dl     downloader.Downloader
	logger *slog.Logger
}

func NewFilesystemStore(base string, dl downloader.Downloader, logger *slog.Logger) (*FilesystemStore, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolving storage path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &FilesystemStore{
		base:   abs,
		dl:     dl,
		logger: logger.With("component", "storage", "backend", "filesystem"),
	}, nil
}

func (s *FilesystemStore) Store(ctx context.Context, mediaURL string) (string, bool, error) {
	name, err := fileIdentifier(mediaURL)
	if err != nil {
		return "", false, err
	}
	target, err := s.containedPath(name)
	if err != nil {
		return "", false, err
	}

	// Dedup requires the stored copy to be readable, not merely present.
	// A missing or unreadable file is re-downloaded; the rename below
	// replaces any unreadable leftover.
	if f, err := os.Open(target); err == nil {
		f.Close()
		return name, true, nil
	}

	body, size, _, err := s.dl.Download(ctx, mediaURL)
	if err != nil {
		return "", false, err
	}
	defer body.Close()

	if err := s.write(target, body); err != nil {
		return "", false, err
	}
	s.logger.Info("stored media", "name", name, "bytes", size)
	return name, false, nil
}

func (s *FilesystemStore) Retrieve(ctx context.Context, identifier string) (*Delivery, error) {
	target, err := s.containedPath(identifier)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %q not stored", domain.ErrInvalidIdentifier, identifier)
	}
	f.Close()
	return &Delivery{Kind: DeliverFile, FilePath: target}, nil
}

// containedPath joins the identifier under the base directory and
// verifies the result cannot escape it. The check runs before any
// filesystem access.
func (s *FilesystemStore) containedPath(identifier string) (string, error) {
	if identifier == "" || strings.ContainsAny(identifier, "/\\") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidIdentifier, identifier)
	}
	target := filepath.Join(s.base, identifier)
	if !strings.HasPrefix(target, s.base+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q escapes storage directory", domain.ErrInvalidIdentifier, identifier)
	}
	return target, nil
}

// write lands the download in a temp file first so a partial download
// never becomes visible under the final name.
func (s *FilesystemStore) write(target string, body io.Reader) error {
	tmp, err := os.CreateTemp(s.base, ".download-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("writing media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("placing media: %w", err)
	}
	return nil
}

// fileIdentifier derives the stored filename from the last URL segment,
// normalized to an .mp4 extension. The same URL always maps to the same
// name.
func fileIdentifier(mediaURL string) (string, error) {
	trimmed := mediaURL
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	segment := trimmed
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		segment = trimmed[i+1:]
	}
	if segment == "" || segment == "." || segment == ".." {
		return "", fmt.Errorf("%w: no usable segment in %q", domain.ErrInvalidIdentifier, mediaURL)
	}
	if !strings.HasSuffix(segment, ".mp4") {
		segment += ".mp4"
	}
	return segment, nil
}
