package source

import (
	"context"
	_ "embed"
	"errors"
	"io/fs"
	"os"

	"github.com/okian/modelscout/pkg/logger"
)

//go:embed fixture.json
var embeddedFixture []byte

// FixtureSource reads records from a local JSON file, falling back to the
// bundled dataset. It never reports ErrUnavailable.
type FixtureSource struct {
	path string
	log  logger.Logger
}

var _ Source = (*FixtureSource)(nil)

// NewFixtureSource returns a source backed by path. An empty path selects the
// bundled dataset.
func NewFixtureSource(path string) *FixtureSource {
	return &FixtureSource{path: path, log: logger.Get().Named("source.fixture")}
}

// Name implements Source.
func (f *FixtureSource) Name() string { return NameFixture }

// Fetch returns the fixture records. A missing or unreadable file yields the
// bundled dataset; an undecodable file yields no records.
func (f *FixtureSource) Fetch(ctx context.Context) ([]map[string]any, error) {
	data := embeddedFixture
	if f.path != "" {
		raw, err := os.ReadFile(f.path)
		switch {
		case err == nil:
			data = raw
		case errors.Is(err, fs.ErrNotExist):
			f.log.Debug(ctx, "fixture file not found, using bundled dataset", logger.String("path", f.path))
		default:
			f.log.Warn(ctx, "fixture file unreadable, using bundled dataset", logger.String("path", f.path), logger.Error(err))
		}
	}

	records, err := DecodeRecords(data)
	if err != nil {
		f.log.Warn(ctx, "fixture payload malformed", logger.Error(err))
		return []map[string]any{}, nil
	}
	return records, nil
}

// Bundled returns a copy of the bundled dataset.
func Bundled() []byte {
	out := make([]byte, len(embeddedFixture))
	copy(out, embeddedFixture)
	return out
}
