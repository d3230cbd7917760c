// Package history is the bounded, ordered, durable record of past analysis
// results. The persisted sequence is the only source of truth: every
// operation re-reads it, and Append runs its read-modify-write through
// kvstore.Store.Update so overlapping appends cannot lose each other, even
// from separate processes sharing one store.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/raysh454/medtriage/internal/kvstore"
	"github.com/raysh454/medtriage/internal/logging"
	"github.com/raysh454/medtriage/internal/model"
)

// ErrNotFound is returned by Get when no entry has the requested id.
var ErrNotFound = errors.New("history: entry not found")

// Cache stores HistoryEntries most-recent-first in a kvstore.Store.
type Cache struct {
	store  kvstore.Store
	logger logging.Logger
	config *Config

	newID func() (string, error)
	now   func() time.Time
}

// NewCache creates a Cache over store. If config is nil, defaults are used.
func NewCache(store kvstore.Store, logger logging.Logger, config *Config) (*Cache, error) {
	if logger == nil {
		return nil, errors.New("history: nil logger provided")
	}
	if store == nil {
		return nil, errors.New("history: nil store provided")
	}
	if config == nil {
		config = &Config{}
	}
	return &Cache{
		store:  store,
		logger: logger.With(logging.Field{Key: "component", Value: "history"}),
		config: config,
		newID:  newEntryID,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// newEntryID returns a UUIDv7. Version 7 ids sort by creation time and the
// generator keeps them strictly increasing within a process, so two appends
// in the same millisecond still get distinct, ordered ids.
func newEntryID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Load returns the persisted sequence, most recent first. It never fails:
// an unreadable or corrupt persisted form is logged and reads as empty.
func (c *Cache) Load(ctx context.Context) []model.HistoryEntry {
	entries, err := c.read(ctx)
	if err != nil {
		c.logger.Warn("history unreadable, treating as empty", logging.Err(err))
		return []model.HistoryEntry{}
	}
	return entries
}

// Append prepends a new entry for result, evicts anything beyond the cap and
// writes the whole sequence back. Failures are returned as a ScanError of
// kind KindPersistence.
func (c *Cache) Append(ctx context.Context, result model.AnalysisResult) (model.HistoryEntry, error) {
	var (
		entry         model.HistoryEntry
		size, evicted int
	)
	// The id and timestamp are taken under the store's lock so that list
	// order and id order agree across processes.
	err := c.store.Update(ctx, c.config.key(), func(raw string, ok bool) (string, error) {
		id, err := c.newID()
		if err != nil {
			return "", model.NewScanError(model.KindPersistence, "failed to generate entry id", err)
		}
		entry = model.HistoryEntry{
			ID:             id,
			AnalysisResult: result.Clone(),
			SavedAt:        c.now(),
		}

		current, err := decode(raw, ok)
		if err != nil {
			c.logger.Warn("discarding corrupt history before append", logging.Err(err))
			current = nil
		}

		limit := c.config.maxEntries()
		next := make([]model.HistoryEntry, 0, min(len(current)+1, limit))
		next = append(next, entry)
		for _, e := range current {
			if len(next) == limit {
				break
			}
			next = append(next, e)
		}
		size, evicted = len(next), len(current)+1-len(next)

		data, err := json.Marshal(next)
		if err != nil {
			return "", model.NewScanError(model.KindPersistence, "failed to encode history", err)
		}
		return string(data), nil
	})
	if err != nil {
		var se *model.ScanError
		if errors.As(err, &se) {
			return model.HistoryEntry{}, err
		}
		// The store refused the read or the write; nothing was overwritten.
		return model.HistoryEntry{}, model.NewScanError(model.KindPersistence, "failed to write history", err)
	}

	c.logger.Info("history entry appended",
		logging.Field{Key: "id", Value: entry.ID},
		logging.Field{Key: "len", Value: size},
		logging.Field{Key: "evicted", Value: evicted})
	return entry.Clone(), nil
}

// Get returns the entry with the given id.
func (c *Cache) Get(ctx context.Context, id string) (model.HistoryEntry, error) {
	for _, e := range c.Load(ctx) {
		if e.ID == id {
			return e, nil
		}
	}
	return model.HistoryEntry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Len returns the number of stored entries.
func (c *Cache) Len(ctx context.Context) int {
	return len(c.Load(ctx))
}

type corruptError struct{ err error }

func (e *corruptError) Error() string { return "corrupt history: " + e.err.Error() }
func (e *corruptError) Unwrap() error { return e.err }

func (c *Cache) read(ctx context.Context) ([]model.HistoryEntry, error) {
	raw, ok, err := c.store.Get(ctx, c.config.key())
	if err != nil {
		return nil, err
	}
	return decode(raw, ok)
}

func decode(raw string, ok bool) ([]model.HistoryEntry, error) {
	if !ok || raw == "" {
		return []model.HistoryEntry{}, nil
	}
	var entries []model.HistoryEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, &corruptError{err: err}
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	return entries, nil
}
