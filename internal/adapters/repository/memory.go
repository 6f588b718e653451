package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/modelscout/internal/domain/catalog"
)

type memEntry struct {
	seq int
	row catalog.Row
}

// MemoryStore is an in-process Store with the same view semantics as
// SQLiteStore.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []memEntry
	nextSeq int
	closed  bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AppendSnapshot stores copies of rows under one lock.
func (m *MemoryStore) AppendSnapshot(_ context.Context, rows []catalog.Row) error {
	if err := validateBatch(rows); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for _, r := range rows {
		c := r.Clone()
		c.SnapshotTS = c.SnapshotTS.UTC().Truncate(time.Second)
		m.nextSeq++
		m.entries = append(m.entries, memEntry{seq: m.nextSeq, row: c})
	}
	return nil
}

// Latest returns the newest row per canonical key.
func (m *MemoryStore) Latest(_ context.Context) ([]catalog.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	best := make(map[string]memEntry)
	for _, e := range m.entries {
		cur, ok := best[e.row.CanonicalModelKey]
		if !ok || newer(e, cur) {
			best[e.row.CanonicalModelKey] = e
		}
	}

	out := make([]catalog.Row, 0, len(best))
	for _, e := range best {
		out = append(out, e.row.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalModelKey < out[j].CanonicalModelKey })
	return out, nil
}

// History returns every row ordered by snapshot_ts then insertion.
func (m *MemoryStore) History(_ context.Context) ([]catalog.Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	sorted := make([]memEntry, len(m.entries))
	copy(sorted, m.entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].row.SnapshotTS.Before(sorted[j].row.SnapshotTS) })

	out := make([]catalog.Row, len(sorted))
	for i, e := range sorted {
		out[i] = e.row.Clone()
	}
	return out, nil
}

// LatestSnapshotTime returns the newest snapshot_ts.
func (m *MemoryStore) LatestSnapshotTime(_ context.Context) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return time.Time{}, false, ErrClosed
	}
	var (
		latest time.Time
		found  bool
	)
	for _, e := range m.entries {
		if !found || e.row.SnapshotTS.After(latest) {
			latest, found = e.row.SnapshotTS, true
		}
	}
	return latest, found, nil
}

// Counts returns row and snapshot totals.
func (m *MemoryStore) Counts(_ context.Context) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Counts{}, ErrClosed
	}
	keys := make(map[string]struct{})
	stamps := make(map[time.Time]struct{})
	for _, e := range m.entries {
		keys[e.row.CanonicalModelKey] = struct{}{}
		stamps[e.row.SnapshotTS] = struct{}{}
	}
	return Counts{HistoryRows: len(m.entries), LatestRows: len(keys), Snapshots: len(stamps)}, nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func newer(a, b memEntry) bool {
	if !a.row.SnapshotTS.Equal(b.row.SnapshotTS) {
		return a.row.SnapshotTS.After(b.row.SnapshotTS)
	}
	return a.seq > b.seq
}
