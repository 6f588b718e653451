package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/modelscout/internal/domain/catalog"
)

var base = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

func f64(v float64) *float64 { return &v }

func makeRow(name, provider string, ts time.Time, quality float64) catalog.Row {
	p := catalog.Ptr(provider)
	return catalog.Row{
		SnapshotTS:        ts,
		Source:            "fixture",
		ModelName:         name,
		Provider:          p,
		QualityIndex:      f64(quality),
		PriceInputPer1M:   f64(quality / 10),
		ContextWindow:     catalog.Ptr(int64(quality * 1000)),
		IsOpenSource:      catalog.Ptr(quality > 50),
		CanonicalModelKey: catalog.CanonicalKey(name, p),
	}
}

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "warehouse.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// forEachStore runs fn against every Store implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLite(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func TestStore_EmptyStore(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		latest, err := s.Latest(ctx)
		if err != nil {
			t.Fatalf("Latest: %v", err)
		}
		if latest == nil || len(latest) != 0 {
			t.Errorf("expected empty non-nil latest, got %v", latest)
		}

		if _, ok, err := s.LatestSnapshotTime(ctx); err != nil || ok {
			t.Errorf("expected no snapshot time, got ok=%v err=%v", ok, err)
		}

		if err := s.AppendSnapshot(ctx, nil); err != nil {
			t.Errorf("empty append should be a no-op: %v", err)
		}
	})
}

func TestStore_LatestTracksNewestSnapshot(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const n = 4

		for i := 0; i < n; i++ {
			ts := base.Add(time.Duration(i) * time.Hour)
			batch := []catalog.Row{
				makeRow("Test Model", "Acme Labs", ts, float64(10*(i+1))),
				makeRow("other", "globex", ts, 42),
			}
			if err := s.AppendSnapshot(ctx, batch); err != nil {
				t.Fatalf("AppendSnapshot %d: %v", i, err)
			}
		}

		history, err := s.History(ctx)
		if err != nil {
			t.Fatalf("History: %v", err)
		}
		if len(history) != 2*n {
			t.Fatalf("expected %d history rows, got %d", 2*n, len(history))
		}

		latest, err := s.Latest(ctx)
		if err != nil {
			t.Fatalf("Latest: %v", err)
		}
		if len(latest) != 2 {
			t.Fatalf("expected one row per key, got %d", len(latest))
		}

		got := latest[0]
		if got.CanonicalModelKey != "acme-labs::test-model" {
			t.Fatalf("expected latest ordered by key, got %s first", got.CanonicalModelKey)
		}
		wantTS := base.Add((n - 1) * time.Hour)
		if !got.SnapshotTS.Equal(wantTS) {
			t.Errorf("expected snapshot %v, got %v", wantTS, got.SnapshotTS)
		}
		// Every column must come from the newest row.
		if *got.QualityIndex != 40 || *got.PriceInputPer1M != 4 || *got.ContextWindow != 40000 || *got.IsOpenSource {
			t.Errorf("latest row mixes columns: %+v", got)
		}
		if got.MathIndex != nil {
			t.Errorf("expected nil math_index, got %v", *got.MathIndex)
		}

		// latest is a subset of history
		for _, l := range latest {
			found := false
			for _, h := range history {
				if h.CanonicalModelKey == l.CanonicalModelKey && h.SnapshotTS.Equal(l.SnapshotTS) {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("latest row %s not in history", l.CanonicalModelKey)
			}
		}

		ts, ok, err := s.LatestSnapshotTime(ctx)
		if err != nil || !ok || !ts.Equal(wantTS) {
			t.Errorf("LatestSnapshotTime = %v %v %v, want %v", ts, ok, err, wantTS)
		}

		counts, err := s.Counts(ctx)
		if err != nil {
			t.Fatalf("Counts: %v", err)
		}
		if counts != (Counts{HistoryRows: 2 * n, LatestRows: 2, Snapshots: n}) {
			t.Errorf("unexpected counts %+v", counts)
		}
	})
}

func TestStore_SameTimestampLaterInsertWins(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.AppendSnapshot(ctx, []catalog.Row{makeRow("m", "p", base, 10)}); err != nil {
			t.Fatal(err)
		}
		if err := s.AppendSnapshot(ctx, []catalog.Row{makeRow("m", "p", base, 20)}); err != nil {
			t.Fatal(err)
		}
		latest, err := s.Latest(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(latest) != 1 || *latest[0].QualityIndex != 20 {
			t.Errorf("expected the later insert to win, got %+v", latest)
		}
	})
}

func TestStore_OlderSnapshotDoesNotReplaceLatest(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		if err := s.AppendSnapshot(ctx, []catalog.Row{makeRow("m", "p", base.Add(time.Hour), 90)}); err != nil {
			t.Fatal(err)
		}
		if err := s.AppendSnapshot(ctx, []catalog.Row{makeRow("m", "p", base, 10)}); err != nil {
			t.Fatal(err)
		}
		latest, err := s.Latest(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if *latest[0].QualityIndex != 90 {
			t.Errorf("expected newest timestamp to win, got %v", *latest[0].QualityIndex)
		}
	})
}

func TestStore_RejectsBadBatches(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		noKey := makeRow("m", "p", base, 1)
		noKey.CanonicalModelKey = ""
		if err := s.AppendSnapshot(ctx, []catalog.Row{noKey}); !errors.Is(err, ErrEmptyKey) {
			t.Errorf("expected ErrEmptyKey, got %v", err)
		}

		mixed := []catalog.Row{makeRow("a", "p", base, 1), makeRow("b", "p", base.Add(time.Second), 1)}
		if err := s.AppendSnapshot(ctx, mixed); !errors.Is(err, ErrMixedSnapshot) {
			t.Errorf("expected ErrMixedSnapshot, got %v", err)
		}

		history, err := s.History(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 0 {
			t.Errorf("rejected batches must not be stored, got %d rows", len(history))
		}
	})
}

func TestStore_ClosedStore(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		if err := s.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if _, err := s.Latest(context.Background()); !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	})
}

func TestStore_ConcurrentAppends(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		const writers = 8

		var wg sync.WaitGroup
		errs := make(chan error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ts := base.Add(time.Duration(i) * time.Minute)
				errs <- s.AppendSnapshot(ctx, []catalog.Row{makeRow("shared", "p", ts, float64(i))})
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("concurrent append: %v", err)
			}
		}

		latest, err := s.Latest(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(latest) != 1 || *latest[0].QualityIndex != writers-1 {
			t.Errorf("expected newest writer to win, got %+v", latest)
		}
	})
}

func TestSQLiteStore_ReopenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "warehouse.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.AppendSnapshot(ctx, []catalog.Row{makeRow("m", "p", base, 5)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	again, err := OpenSQLite(ctx, path, WithBusyTimeout(time.Second), WithMaxOpenConns(2))
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer again.Close()

	if again.Path() != path {
		t.Errorf("unexpected path %s", again.Path())
	}
	history, err := again.History(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("expected data to survive reopen, got %d rows", len(history))
	}
}

func TestSQLiteStore_CreatesParentDirs(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "warehouse.db")

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	if err := s.AppendSnapshot(ctx, []catalog.Row{makeRow("m", "p", base, 5)}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected database file at %s: %v", path, err)
	}
}

func TestSQLiteStore_ParentIsAFile(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenSQLite(context.Background(), filepath.Join(blocker, "warehouse.db")); err == nil {
		t.Error("expected an error when the parent path is a regular file")
	}
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	mem, err := Open(ctx, "memory", "")
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := mem.(*MemoryStore); !ok {
		t.Errorf("expected *MemoryStore, got %T", mem)
	}

	sq, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer sq.Close()

	if _, err := Open(ctx, "duckdb", ""); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("expected ErrUnknownDriver, got %v", err)
	}
}
