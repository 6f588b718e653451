package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okian/modelscout/internal/adapters/repository"
	"github.com/okian/modelscout/internal/adapters/snapshotfile"
	"github.com/okian/modelscout/internal/adapters/source"
	"github.com/okian/modelscout/internal/app/ingest"
	"github.com/okian/modelscout/internal/domain/catalog"
	"github.com/okian/modelscout/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type stubSource struct {
	name    string
	records []map[string]any
	err     error

	mu    sync.Mutex
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) ([]map[string]any, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.records, s.err
}

func (s *stubSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type failingStore struct{}

func (failingStore) AppendSnapshot(context.Context, []catalog.Row) error { return errors.New("disk full") }

var clock = time.Date(2026, 4, 10, 9, 15, 30, 123, time.UTC)

func records() []map[string]any {
	return []map[string]any{
		{"name": "Alpha", "vendor": "Acme", "quality_index": 70.0},
		{"model_name": "Beta", "provider": "Globex", "intelligence_index": "55"},
	}
}

func TestController_RunIngest(t *testing.T) {
	Convey("Given a controller with a healthy primary source", t, func() {
		dir := t.TempDir()
		store := repository.NewMemoryStore()
		primary := &stubSource{name: source.NameArtificialAnalysis, records: records()}
		fallback := &stubSource{name: source.NameFixture, records: records()[:1]}

		ctl := ingest.New(
			ingest.WithPrimary(primary),
			ingest.WithFallback(fallback),
			ingest.WithStore(store),
			ingest.WithSnapshotDir(dir),
			ingest.WithClock(func() time.Time { return clock }),
		)

		Convey("When a run completes", func() {
			ref, err := ctl.RunIngest(context.Background())
			So(err, ShouldBeNil)

			Convey("Then the snapshot is attributed to the primary source", func() {
				So(ref.Source, ShouldEqual, source.NameArtificialAnalysis)
				So(ref.Rows, ShouldEqual, 2)
				So(ref.SnapshotTS.Equal(clock.Truncate(time.Second)), ShouldBeTrue)
				So(fallback.Calls(), ShouldEqual, 0)
			})

			Convey("And the file lives under the source directory", func() {
				want := filepath.Join(dir, source.NameArtificialAnalysis, "models_snapshot_2026-04-10T09-15-30Z.json.zst")
				So(ref.Path, ShouldEqual, want)
				_, statErr := os.Stat(ref.Path)
				So(statErr, ShouldBeNil)

				frame, readErr := snapshotfile.Read(ref.Path)
				So(readErr, ShouldBeNil)
				So(len(frame.Rows), ShouldEqual, 2)
			})

			Convey("And the store holds the same rows", func() {
				latest, lerr := store.Latest(context.Background())
				So(lerr, ShouldBeNil)
				So(len(latest), ShouldEqual, 2)
				So(latest[0].CanonicalModelKey, ShouldEqual, "acme::alpha")
				So(latest[1].CanonicalModelKey, ShouldEqual, "globex::beta")
				So(*latest[1].QualityIndex, ShouldEqual, 55.0)
			})
		})

		Convey("When two runs share a timestamp", func() {
			first, err := ctl.RunIngest(context.Background())
			So(err, ShouldBeNil)
			second, err := ctl.RunIngest(context.Background())
			So(err, ShouldBeNil)

			Convey("Then the second file does not overwrite the first", func() {
				So(second.Path, ShouldNotEqual, first.Path)
				So(second.Path, ShouldContainSubstring, second.RunID.String())
			})
		})
	})

	Convey("Given a primary source that is unavailable", t, func() {
		store := repository.NewMemoryStore()
		primary := &stubSource{name: source.NameArtificialAnalysis, err: fmt.Errorf("%w: boom", source.ErrUnavailable)}
		fallback := &stubSource{name: source.NameFixture, records: records()[:1]}
		ctl := ingest.New(
			ingest.WithPrimary(primary),
			ingest.WithFallback(fallback),
			ingest.WithStore(store),
			ingest.WithSnapshotDir(t.TempDir()),
		)

		Convey("When ingesting", func() {
			ref, err := ctl.RunIngest(context.Background())

			Convey("Then the fallback source is used", func() {
				So(err, ShouldBeNil)
				So(ref.Source, ShouldEqual, source.NameFixture)
				So(ref.Rows, ShouldEqual, 1)
				So(primary.Calls(), ShouldEqual, 1)
				So(fallback.Calls(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a primary source failing for another reason", t, func() {
		primary := &stubSource{name: source.NameArtificialAnalysis, err: errors.New("programming error")}
		fallback := &stubSource{name: source.NameFixture, records: records()}
		ctl := ingest.New(
			ingest.WithPrimary(primary),
			ingest.WithFallback(fallback),
			ingest.WithStore(repository.NewMemoryStore()),
			ingest.WithSnapshotDir(t.TempDir()),
		)

		Convey("Then the error propagates without fallback", func() {
			_, err := ctl.RunIngest(context.Background())
			So(err, ShouldNotBeNil)
			So(fallback.Calls(), ShouldEqual, 0)
		})
	})

	Convey("Given a source that returns no records", t, func() {
		store := repository.NewMemoryStore()
		ctl := ingest.New(
			ingest.WithFallback(&stubSource{name: source.NameFixture}),
			ingest.WithStore(store),
			ingest.WithSnapshotDir(t.TempDir()),
		)

		Convey("Then an empty snapshot file is still written", func() {
			ref, err := ctl.RunIngest(context.Background())
			So(err, ShouldBeNil)
			So(ref.Rows, ShouldEqual, 0)
			_, statErr := os.Stat(ref.Path)
			So(statErr, ShouldBeNil)
		})
	})

	Convey("Given a store that rejects the append", t, func() {
		ctl := ingest.New(
			ingest.WithFallback(&stubSource{name: source.NameFixture, records: records()}),
			ingest.WithStore(failingStore{}),
			ingest.WithSnapshotDir(t.TempDir()),
		)

		Convey("Then the run reports a persist error", func() {
			_, err := ctl.RunIngest(context.Background())
			So(errors.Is(err, ingest.ErrPersist), ShouldBeTrue)
		})
	})

	Convey("Given a controller without dependencies", t, func() {
		Convey("Then it fails fast", func() {
			_, err := ingest.New().RunIngest(context.Background())
			So(errors.Is(err, ingest.ErrNoStore), ShouldBeTrue)

			_, err = ingest.New(ingest.WithStore(repository.NewMemoryStore())).RunIngest(context.Background())
			So(errors.Is(err, ingest.ErrNoSource), ShouldBeTrue)
		})
	})
}
