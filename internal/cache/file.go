package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/stormydragon/twitfix/internal/domain"
)

// FileCache keeps the whole cache in memory and rewrites a single JSON
// file on every mutation. Fine for a single small instance; it has no
// partial-write atomicity and cannot be shared between processes.
type FileCache struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	records map[string]*domain.PostRecord
	// order tracks insertion sequence for the stable TopByField tie-break.
	// The JSON file does not carry ordering, so entries loaded at startup
	// fall back to sorted-key order.
	order []string
}

// NewFileCache loads the full cache state from path, starting empty when
// the file does not exist yet.
func NewFileCache(path string, logger *slog.Logger) (*FileCache, error) {
	c := &FileCache{
		path:    path,
		logger:  logger,
		records: make(map[string]*domain.PostRecord),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	if err := json.Unmarshal(data, &c.records); err != nil {
		return nil, fmt.Errorf("parse cache file: %w", err)
	}

	c.order = make([]string, 0, len(c.records))
	for key := range c.records {
		c.order = append(c.order, key)
	}
	sort.Strings(c.order)

	return c, nil
}

func (c *FileCache) Get(ctx context.Context, sourceURL string) (*domain.PostRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[sourceURL]
	if !ok {
		return nil, nil
	}

	rec.HitCount++
	if err := c.writeLocked(); err != nil {
		c.logger.Error("failed to persist hit counter", "url", sourceURL, "error", err)
	}

	out := *rec
	return &out, nil
}

func (c *FileCache) Put(ctx context.Context, sourceURL string, rec *domain.PostRecord) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := *rec
	if _, exists := c.records[sourceURL]; !exists {
		c.order = append(c.order, sourceURL)
	}
	c.records[sourceURL] = &stored

	if err := c.writeLocked(); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	return true, nil
}

func (c *FileCache) TopByField(ctx context.Context, field string, count, offset int) ([]*domain.PostRecord, error) {
	if err := validSortField(field); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ordered := make([]*domain.PostRecord, 0, len(c.order))
	for _, key := range c.order {
		if rec, ok := c.records[key]; ok {
			ordered = append(ordered, rec)
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SortField(field) > ordered[j].SortField(field)
	})

	return slice(ordered, count, offset), nil
}

func (c *FileCache) Latest(ctx context.Context, count, offset int) ([]*domain.PostRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	newest := make([]*domain.PostRecord, 0, len(c.order))
	for i := len(c.order) - 1; i >= 0; i-- {
		if rec, ok := c.records[c.order[i]]; ok {
			newest = append(newest, rec)
		}
	}
	return slice(newest, count, offset), nil
}

func (c *FileCache) Close(ctx context.Context) error {
	return nil
}

// writeLocked rewrites the whole cache file. Caller holds the mutex.
func (c *FileCache) writeLocked() error {
	data, err := json.MarshalIndent(c.records, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// slice copies the [offset, offset+count) window of ordered records.
func slice(ordered []*domain.PostRecord, count, offset int) []*domain.PostRecord {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ordered) || count <= 0 {
		return nil
	}
	end := offset + count
	if end > len(ordered) {
		end = len(ordered)
	}

	out := make([]*domain.PostRecord, 0, end-offset)
	for _, rec := range ordered[offset:end] {
		copied := *rec
		out = append(out, &copied)
	}
	return out
}
