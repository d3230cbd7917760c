// Package testutil provides shared test doubles for use across package tests.
// All dummies implement the corresponding interfaces from the production code,
// allowing injection into components under test without real I/O or side effects.
package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/raysh454/medtriage/internal/analyzer"
	"github.com/raysh454/medtriage/internal/kvstore"
	"github.com/raysh454/medtriage/internal/logging"
)

// ─── Logger ────────────────────────────────────────────────────────────

// DummyLogger implements logging.Logger with in-memory recording.
type DummyLogger struct {
	mu     sync.Mutex
	Errors []string
	Infos  []string
	Debugs []string
	Warns  []string
}

func (l *DummyLogger) Debug(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Debugs = append(l.Debugs, msg)
}

func (l *DummyLogger) Info(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Infos = append(l.Infos, msg)
}

func (l *DummyLogger) Warn(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *DummyLogger) Error(msg string, fields ...logging.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *DummyLogger) With(_ ...logging.Field) logging.Logger { return l }

// ErrorCount returns the number of Error calls recorded so far.
func (l *DummyLogger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// WarnCount returns the number of Warn calls recorded so far.
func (l *DummyLogger) WarnCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Warns)
}

// ─── Transport ─────────────────────────────────────────────────────────

// FakeTransport implements analyzer.Transport.
// By default it returns Body (decoded JSON value) for every upload. Set Err to
// fail instead. When Gate is non-nil, Analyze blocks until Gate is closed or
// the context ends, which lets tests hold a job in the uploading state.
type FakeTransport struct {
	mu    sync.Mutex
	Body  any
	Err   error
	Gate  chan struct{}
	Calls []string

	// Started, when non-nil, receives one value per Analyze call once the
	// call has been recorded.
	Started chan struct{}
}

var _ analyzer.Transport = (*FakeTransport)(nil)

func (f *FakeTransport) Analyze(ctx context.Context, up analyzer.Upload) (any, error) {
	if up.Content != nil {
		_, _ = io.Copy(io.Discard, up.Content)
	}
	f.mu.Lock()
	f.Calls = append(f.Calls, up.FileName)
	gate, body, err, started := f.Gate, f.Body, f.Err, f.Started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// CallCount returns how many uploads reached the transport.
func (f *FakeTransport) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// SampleBody returns the decoded JSON shape the analysis service returns for
// the J. Doe chest scan used throughout the tests.
func SampleBody() map[string]any {
	return map[string]any{
		"patientName":  "J. Doe",
		"analysisDate": "2024-01-01",
		"findings": []any{
			map[string]any{"name": "Infiltration", "score": 72.3},
			map[string]any{"name": "Nodule", "score": 12.0},
		},
		"imageBase64": "data:image/png;base64,iVBORw0KGgo=",
	}
}

// ─── Store ─────────────────────────────────────────────────────────────

// ErrStoreDown is returned by FailingStore.
var ErrStoreDown = errors.New("store unavailable")

// FailingStore implements kvstore.Store and fails the selected operations.
type FailingStore struct {
	kvstore.Store
	FailGet bool
	FailSet bool
}

var _ kvstore.Store = (*FailingStore)(nil)

// NewFailingStore wraps an in-memory store.
func NewFailingStore(failGet, failSet bool) *FailingStore {
	return &FailingStore{Store: kvstore.NewMemoryStore(), FailGet: failGet, FailSet: failSet}
}

func (s *FailingStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.FailGet {
		return "", false, ErrStoreDown
	}
	return s.Store.Get(ctx, key)
}

func (s *FailingStore) Set(ctx context.Context, key, value string) error {
	if s.FailSet {
		return ErrStoreDown
	}
	return s.Store.Set(ctx, key, value)
}

// Update fails before fn runs when FailGet is set, and after fn but before
// the write when FailSet is set.
func (s *FailingStore) Update(ctx context.Context, key string, fn kvstore.UpdateFunc) error {
	if s.FailGet {
		return ErrStoreDown
	}
	if !s.FailSet {
		return s.Store.Update(ctx, key, fn)
	}
	old, ok, err := s.Store.Get(ctx, key)
	if err != nil {
		return err
	}
	if _, err := fn(old, ok); err != nil {
		return err
	}
	return ErrStoreDown
}
