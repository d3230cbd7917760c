package history_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/raysh454/medtriage/internal/history"
	"github.com/raysh454/medtriage/internal/kvstore"
	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/testutil"
)

func newCache(t *testing.T, store kvstore.Store) *history.Cache {
	t.Helper()
	c, err := history.NewCache(store, &testutil.DummyLogger{}, nil)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	return c
}

func result(patient string) model.AnalysisResult {
	return model.AnalysisResult{
		PatientName:  patient,
		AnalysisDate: "2024-01-01",
		Findings:     []model.Finding{{Name: "Infiltration", Score: 72.3}, {Name: "Nodule", Score: 12.0}},
		ImagePayload: "data:image/png;base64,AAAA",
	}
}

// ─── Construction ──────────────────────────────────────────────────────

func TestNewCache_RejectsNilDependencies(t *testing.T) {
	t.Parallel()
	if _, err := history.NewCache(kvstore.NewMemoryStore(), nil, nil); err == nil {
		t.Error("expected error for nil logger")
	}
	if _, err := history.NewCache(nil, &testutil.DummyLogger{}, nil); err == nil {
		t.Error("expected error for nil store")
	}
}

// ─── Load ──────────────────────────────────────────────────────────────

func TestLoad_NeverWrittenIsEmpty(t *testing.T) {
	t.Parallel()
	c := newCache(t, kvstore.NewMemoryStore())
	got := c.Load(context.Background())
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestLoad_CorruptFormIsEmpty(t *testing.T) {
	t.Parallel()
	store := kvstore.NewMemoryStore()
	_ = store.Set(context.Background(), history.DefaultKey, "{not json")
	logger := &testutil.DummyLogger{}
	c, _ := history.NewCache(store, logger, nil)

	if got := c.Load(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(got))
	}
	if logger.WarnCount() == 0 {
		t.Error("expected corrupt history to be logged")
	}
}

func TestLoad_ReadFailureIsEmpty(t *testing.T) {
	t.Parallel()
	c := newCache(t, testutil.NewFailingStore(true, false))
	if got := c.Load(context.Background()); len(got) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(got))
	}
}

// ─── Append ────────────────────────────────────────────────────────────

func TestAppend_MostRecentFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newCache(t, kvstore.NewMemoryStore())

	first, err := c.Append(ctx, result("A"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	second, _ := c.Append(ctx, result("B"))

	got := c.Load(ctx)
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ID != second.ID || got[1].ID != first.ID {
		t.Errorf("expected [%s %s], got [%s %s]", second.ID, first.ID, got[0].ID, got[1].ID)
	}
	if got[0].PatientName != "B" || got[0].SavedAt.IsZero() {
		t.Errorf("unexpected head entry: %+v", got[0])
	}
	if first.ID >= second.ID {
		t.Errorf("expected ids to increase with creation time: %s then %s", first.ID, second.ID)
	}
}

func TestAppend_FiftyOneEvictsFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newCache(t, kvstore.NewMemoryStore())

	var ids []string
	for i := 0; i < 51; i++ {
		e, err := c.Append(ctx, result(fmt.Sprintf("P%d", i)))
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		ids = append(ids, e.ID)
	}

	got := c.Load(ctx)
	if len(got) != history.Capacity {
		t.Fatalf("expected %d entries, got %d", history.Capacity, len(got))
	}
	for _, e := range got {
		if e.ID == ids[0] {
			t.Fatal("oldest entry should have been evicted")
		}
	}
	// Survivors keep their relative order, newest first.
	for i, e := range got {
		if want := ids[50-i]; e.ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, e.ID)
		}
	}
}

func TestAppend_IDsDistinct(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newCache(t, kvstore.NewMemoryStore())
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		e, err := c.Append(ctx, result("X"))
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if seen[e.ID] {
			t.Fatalf("duplicate id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestAppend_ConcurrentNoLostUpdates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newCache(t, kvstore.NewMemoryStore())

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := c.Append(ctx, result(fmt.Sprintf("P%d", i))); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := c.Len(ctx); got != n {
		t.Fatalf("expected %d entries after concurrent appends, got %d", n, got)
	}
}

// serve and every scan command open their own store on the same database.
func TestAppend_TwoCachesOnOneDatabaseLoseNothing(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	logger := &testutil.DummyLogger{}

	var caches []*history.Cache
	for i := 0; i < 2; i++ {
		s, err := kvstore.Open(kvstore.BackendSQLite, dir, logger)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		caches = append(caches, newCache(t, s))
	}

	const perCache = 20
	var wg sync.WaitGroup
	for ci, c := range caches {
		for i := 0; i < perCache; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := c.Append(ctx, result(fmt.Sprintf("C%d-P%d", ci, i))); err != nil {
					t.Errorf("Append: %v", err)
				}
			}()
		}
	}
	wg.Wait()

	if got := caches[0].Len(ctx); got != 2*perCache {
		t.Fatalf("expected %d entries, got %d", 2*perCache, got)
	}
}

func TestAppend_WriteFailureIsPersistenceError(t *testing.T) {
	t.Parallel()
	c := newCache(t, testutil.NewFailingStore(false, true))
	_, err := c.Append(context.Background(), result("A"))
	if !errors.Is(err, model.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
}

func TestAppend_ReadFailureDoesNotOverwrite(t *testing.T) {
	t.Parallel()
	store := testutil.NewFailingStore(false, false)
	c := newCache(t, store)
	ctx := context.Background()
	if _, err := c.Append(ctx, result("A")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	store.FailGet = true
	if _, err := c.Append(ctx, result("B")); !errors.Is(err, model.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	store.FailGet = false
	if got := c.Len(ctx); got != 1 {
		t.Fatalf("expected original entry to survive, got %d entries", got)
	}
}

func TestAppend_CorruptFormIsReplaced(t *testing.T) {
	t.Parallel()
	store := kvstore.NewMemoryStore()
	ctx := context.Background()
	_ = store.Set(ctx, history.DefaultKey, "[garbage")
	c := newCache(t, store)

	if _, err := c.Append(ctx, result("A")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if got := c.Len(ctx); got != 1 {
		t.Fatalf("expected 1 entry, got %d", got)
	}
}

func TestAppend_EntryDoesNotAliasCaller(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newCache(t, kvstore.NewMemoryStore())
	r := result("A")
	e, _ := c.Append(ctx, r)
	r.Findings[0].Name = "mutated"
	if e.Findings[0].Name != "Infiltration" {
		t.Error("returned entry aliases caller's findings")
	}
}

// ─── Get ───────────────────────────────────────────────────────────────

func TestGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newCache(t, kvstore.NewMemoryStore())
	e, _ := c.Append(ctx, result("A"))

	got, err := c.Get(ctx, e.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.PatientName != "A" || len(got.Findings) != 2 {
		t.Errorf("unexpected entry: %+v", got)
	}
	if _, err := c.Get(ctx, "missing"); !errors.Is(err, history.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCache_SurvivesReopenOnSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	logger := &testutil.DummyLogger{}

	s1, err := kvstore.Open(kvstore.BackendSQLite, dir, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c1, _ := history.NewCache(s1, logger, nil)
	e, _ := c1.Append(ctx, result("A"))
	s1.Close()

	s2, err := kvstore.Open(kvstore.BackendSQLite, dir, logger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	c2, _ := history.NewCache(s2, logger, nil)
	got := c2.Load(ctx)
	if len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("expected entry %s after reopen, got %+v", e.ID, got)
	}
}
