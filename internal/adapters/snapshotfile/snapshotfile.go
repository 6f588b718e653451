// Package snapshotfile persists one immutable, zstd-compressed columnar file
// per ingestion run.
package snapshotfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/okian/modelscout/internal/domain/canonical"
	"github.com/okian/modelscout/internal/domain/catalog"
)

// Format identifies the document layout.
const Format = "modelscout.snapshot/v1"

const (
	filePrefix = "models_snapshot_"
	fileSuffix = ".json.zst"
)

// Header describes the run a file belongs to.
type Header struct {
	RunID      uuid.UUID
	Source     string
	SnapshotTS time.Time
}

type document struct {
	Format     string           `json:"format"`
	RunID      string           `json:"run_id"`
	Source     string           `json:"source"`
	SnapshotTS string           `json:"snapshot_ts"`
	RowCount   int              `json:"row_count"`
	Columns    []catalog.Column `json:"columns"`
	Data       [][]any          `json:"data"`
}

// FileName returns the base name for a snapshot taken at ts.
func FileName(ts time.Time) string {
	stamp := strings.ReplaceAll(ts.UTC().Truncate(time.Second).Format(time.RFC3339), ":", "-")
	return filePrefix + stamp + fileSuffix
}

// Write stores frame under dir/<source>/ and returns the file path. An
// existing file is never overwritten: a clash retries once with the run id
// appended to the name.
func Write(dir string, h Header, frame catalog.Frame) (string, error) {
	payload, err := encode(h, frame)
	if err != nil {
		return "", err
	}

	target := filepath.Join(dir, h.Source)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(target, FileName(h.SnapshotTS))
	err = writeExclusive(path, payload)
	if errors.Is(err, ErrExists) {
		name := strings.TrimSuffix(FileName(h.SnapshotTS), fileSuffix) + "_" + h.RunID.String() + fileSuffix
		path = filepath.Join(target, name)
		err = writeExclusive(path, payload)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func writeExclusive(path string, payload []byte) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close snapshot file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	if _, err = enc.Write(payload); err != nil {
		_ = enc.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err = enc.Close(); err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}
	return nil
}

func encode(h Header, frame catalog.Frame) ([]byte, error) {
	cols := catalog.Columns
	data := make([][]any, len(cols))
	for i := range data {
		data[i] = make([]any, len(frame.Rows))
	}
	for r := range frame.Rows {
		for c, v := range frame.Rows[r].Values() {
			if ts, ok := v.(time.Time); ok {
				v = ts.UTC().Format(time.RFC3339)
			}
			data[c][r] = v
		}
	}

	doc := document{
		Format:     Format,
		RunID:      h.RunID.String(),
		Source:     h.Source,
		SnapshotTS: h.SnapshotTS.UTC().Truncate(time.Second).Format(time.RFC3339),
		RowCount:   len(frame.Rows),
		Columns:    cols,
		Data:       data,
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return out, nil
}

// Read loads a snapshot file back into a frame.
func Read(path string) (catalog.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return catalog.Frame{}, fmt.Errorf("open snapshot file: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return catalog.Frame{}, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return catalog.Frame{}, fmt.Errorf("read snapshot: %w", err)
	}
	return decode(raw)
}

func decode(raw []byte) (catalog.Frame, error) {
	jd := json.NewDecoder(bytes.NewReader(raw))
	jd.UseNumber()
	var doc document
	if err := jd.Decode(&doc); err != nil {
		return catalog.Frame{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if doc.Format != Format {
		return catalog.Frame{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Format)
	}
	if len(doc.Columns) != len(doc.Data) {
		return catalog.Frame{}, fmt.Errorf("%w: %d columns, %d arrays", ErrColumnLength, len(doc.Columns), len(doc.Data))
	}

	rows := make([]catalog.Row, doc.RowCount)
	for c, col := range doc.Columns {
		vals := doc.Data[c]
		if len(vals) != doc.RowCount {
			return catalog.Frame{}, fmt.Errorf("%w: %s has %d values, want %d", ErrColumnLength, col, len(vals), doc.RowCount)
		}
		set, ok := setters[col]
		if !ok {
			continue
		}
		for r, v := range vals {
			if err := set(&rows[r], v); err != nil {
				return catalog.Frame{}, fmt.Errorf("column %s row %d: %w", col, r, err)
			}
		}
	}
	return catalog.NewFrame(rows), nil
}

func text(v any) string {
	if s := canonical.ToText(v); s != nil {
		return *s
	}
	return ""
}

var setters = map[catalog.Column]func(*catalog.Row, any) error{ //nolint:gochecknoglobals // column decoders
	catalog.ColSnapshotTS: func(r *catalog.Row, v any) error {
		ts, err := time.Parse(time.RFC3339, text(v))
		if err != nil {
			return err
		}
		r.SnapshotTS = ts.UTC()
		return nil
	},
	catalog.ColSource:            func(r *catalog.Row, v any) error { r.Source = text(v); return nil },
	catalog.ColModelName:         func(r *catalog.Row, v any) error { r.ModelName = text(v); return nil },
	catalog.ColProvider:          func(r *catalog.Row, v any) error { r.Provider = canonical.ToText(v); return nil },
	catalog.ColQualityIndex:      func(r *catalog.Row, v any) error { r.QualityIndex = canonical.ToFloat(v); return nil },
	catalog.ColCodingIndex:       func(r *catalog.Row, v any) error { r.CodingIndex = canonical.ToFloat(v); return nil },
	catalog.ColMathIndex:         func(r *catalog.Row, v any) error { r.MathIndex = canonical.ToFloat(v); return nil },
	catalog.ColReasoningIndex:    func(r *catalog.Row, v any) error { r.ReasoningIndex = canonical.ToFloat(v); return nil },
	catalog.ColOutputTokensPerS:  func(r *catalog.Row, v any) error { r.OutputTokensPerS = canonical.ToFloat(v); return nil },
	catalog.ColTTFTS:             func(r *catalog.Row, v any) error { r.TTFTS = canonical.ToFloat(v); return nil },
	catalog.ColPriceInputPer1M:   func(r *catalog.Row, v any) error { r.PriceInputPer1M = canonical.ToFloat(v); return nil },
	catalog.ColPriceOutputPer1M:  func(r *catalog.Row, v any) error { r.PriceOutputPer1M = canonical.ToFloat(v); return nil },
	catalog.ColContextWindow:     func(r *catalog.Row, v any) error { r.ContextWindow = canonical.ToInt(v); return nil },
	catalog.ColIsOpenSource:      func(r *catalog.Row, v any) error { r.IsOpenSource = canonical.ToBool(v); return nil },
	catalog.ColLicense:           func(r *catalog.Row, v any) error { r.License = canonical.ToText(v); return nil },
	catalog.ColCanonicalModelKey: func(r *catalog.Row, v any) error { r.CanonicalModelKey = text(v); return nil },
}
