package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stormydragon/twitfix/internal/domain"
)

// fakeDownloader serves canned bytes and counts calls.
type fakeDownloader struct {
	payload string
	calls   int
	err     error
}

func (d *fakeDownloader) Download(ctx context.Context, url string) (io.ReadCloser, int64, string, error) {
	d.calls++
	if d.err != nil {
		return nil, 0, "", d.err
	}
	return io.NopCloser(strings.NewReader(d.payload)), int64(len(d.payload)), "video/mp4", nil
}

func newTestStore(t *testing.T, dl *fakeDownloader) (*FilesystemStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFilesystemStore(dir, dl, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("NewFilesystemStore() error: %v", err)
	}
	return s, dir
}

func TestFilesystemStoreDownloadsOnce(t *testing.T) {
	dl := &fakeDownloader{payload: "video bytes"}
	s, dir := newTestStore(t, dl)
	ctx := context.Background()
	url := "https://video.twimg.com/ext_tw_video/123/pu/vid/abc.mp4?tag=12"

	id, existed, err := s.Store(ctx, url)
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if existed {
		t.Error("first Store() reported existing media")
	}
	if id != "abc.mp4" {
		t.Errorf("identifier = %q, want abc.mp4", id)
	}
	got, err := os.ReadFile(filepath.Join(dir, id))
	if err != nil {
		t.Fatalf("reading stored file: %v", err)
	}
	if string(got) != "video bytes" {
		t.Errorf("stored bytes = %q", got)
	}

	// Second call finds the file and skips the download.
	id2, existed, err := s.Store(ctx, url)
	if err != nil {
		t.Fatalf("second Store() error: %v", err)
	}
	if !existed {
		t.Error("second Store() did not report existing media")
	}
	if id2 != id {
		t.Errorf("identifier changed between calls: %q vs %q", id, id2)
	}
	if dl.calls != 1 {
		t.Errorf("downloader called %d times, want 1", dl.calls)
	}
}

func TestFilesystemStoreRedownloadsUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dl := &fakeDownloader{payload: "fresh bytes"}
	s, dir := newTestStore(t, dl)
	ctx := context.Background()
	url := "https://video.twimg.com/vid/abc.mp4"

	// An unreadable leftover must not count as an existing copy.
	target := filepath.Join(dir, "abc.mp4")
	if err := os.WriteFile(target, []byte("stale"), 0o000); err != nil {
		t.Fatal(err)
	}

	id, existed, err := s.Store(ctx, url)
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if existed {
		t.Error("unreadable file reported as existing media")
	}
	if dl.calls != 1 {
		t.Errorf("downloader called %d times, want 1", dl.calls)
	}
	got, err := os.ReadFile(filepath.Join(dir, id))
	if err != nil {
		t.Fatalf("stored file still unreadable: %v", err)
	}
	if string(got) != "fresh bytes" {
		t.Errorf("stored bytes = %q, want the fresh download", got)
	}
}

func TestFilesystemStoreNormalizesExtension(t *testing.T) {
	dl := &fakeDownloader{payload: "x"}
	s, _ := newTestStore(t, dl)

	id, _, err := s.Store(context.Background(), "https://video.twimg.com/tweet_video/abc")
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if id != "abc.mp4" {
		t.Errorf("identifier = %q, want mp4 extension appended", id)
	}
}

func TestFilesystemStoreRetrieve(t *testing.T) {
	dl := &fakeDownloader{payload: "x"}
	s, dir := newTestStore(t, dl)
	ctx := context.Background()

	id, _, err := s.Store(ctx, "https://video.twimg.com/vid/abc.mp4")
	if err != nil {
		t.Fatal(err)
	}

	d, err := s.Retrieve(ctx, id)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if d.Kind != DeliverFile {
		t.Fatalf("Kind = %v, want DeliverFile", d.Kind)
	}
	if d.FilePath != filepath.Join(dir, "abc.mp4") {
		t.Errorf("FilePath = %q", d.FilePath)
	}

	if _, err := s.Retrieve(ctx, "missing.mp4"); !errors.Is(err, domain.ErrInvalidIdentifier) {
		t.Errorf("Retrieve(missing) error = %v, want ErrInvalidIdentifier", err)
	}
}

func TestFilesystemStoreRejectsTraversal(t *testing.T) {
	dl := &fakeDownloader{payload: "x"}
	s, _ := newTestStore(t, dl)
	ctx := context.Background()

	storeCases := []string{
		"https://video.twimg.com/vid/..",
		"https://video.twimg.com/vid/",
	}
	for _, url := range storeCases {
		if _, _, err := s.Store(ctx, url); !errors.Is(err, domain.ErrInvalidIdentifier) {
			t.Errorf("Store(%q) error = %v, want ErrInvalidIdentifier", url, err)
		}
	}
	if dl.calls != 0 {
		t.Errorf("downloader called %d times for rejected identifiers, want 0", dl.calls)
	}

	retrieveCases := []string{"../links.json", "a/b.mp4", ""}
	for _, id := range retrieveCases {
		if _, err := s.Retrieve(ctx, id); !errors.Is(err, domain.ErrInvalidIdentifier) {
			t.Errorf("Retrieve(%q) error = %v, want ErrInvalidIdentifier", id, err)
		}
	}
}

func TestFilesystemStoreDownloadErrorPropagates(t *testing.T) {
	wantErr := errors.New("upstream gone")
	dl := &fakeDownloader{err: wantErr}
	s, dir := newTestStore(t, dl)

	_, _, err := s.Store(context.Background(), "https://video.twimg.com/vid/abc.mp4")
	if !errors.Is(err, wantErr) {
		t.Fatalf("Store() error = %v, want %v", err, wantErr)
	}

	// A failed download must not leave a visible file behind.
	if _, err := os.Stat(filepath.Join(dir, "abc.mp4")); !os.IsNotExist(err) {
		t.Error("failed download left a file under the final name")
	}
}

func TestFileIdentifierDeterministic(t *testing.T) {
	url := "https://video.twimg.com/ext_tw_video/123/pu/vid/abc.mp4?tag=12"
	a, err := fileIdentifier(url)
	if err != nil {
		t.Fatal(err)
	}
	b, err := fileIdentifier(url)
	if err != nil {
		t.Fatal(err)
	}
	if a != b || a != "abc.mp4" {
		t.Errorf("fileIdentifier = %q, %q, want stable abc.mp4", a, b)
	}
}

func TestPassthroughStore(t *testing.T) {
	s := NewPassthroughStore()
	ctx := context.Background()
	url := "https://video.twimg.com/vid/abc.mp4"

	id, existed, err := s.Store(ctx, url)
	if err != nil {
		t.Fatalf("Store() error: %v", err)
	}
	if existed {
		t.Error("passthrough reported existing media")
	}
	if id != url {
		t.Errorf("identifier = %q, want the source URL", id)
	}

	d, err := s.Retrieve(ctx, id)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if d.Kind != DeliverRedirect || d.Location != url {
		t.Errorf("Delivery = %+v, want redirect to source", d)
	}
}

func TestObjectKeyDeterministic(t *testing.T) {
	url := "https://video.twimg.com/vid/abc.mp4"
	a := objectKey(url)
	b := objectKey(url)
	if a != b {
		t.Fatalf("objectKey not deterministic: %q vs %q", a, b)
	}
	if !strings.HasSuffix(a, ".mp4") {
		t.Errorf("objectKey = %q, want .mp4 suffix", a)
	}
	if a == objectKey("https://video.twimg.com/vid/other.mp4") {
		t.Error("distinct URLs mapped to the same object key")
	}
}
