package scoring_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/modelscout/internal/domain/catalog"
	"github.com/okian/modelscout/internal/domain/profile"
	"github.com/okian/modelscout/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

type staticReader struct {
	rows []catalog.Row
	err  error
}

func (s staticReader) Latest(context.Context) ([]catalog.Row, error) {
	return s.rows, s.err
}

var ts = time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

func f(v float64) *float64 { return &v }

func model(name, provider string, coding, price, tps *float64) catalog.Row {
	p := catalog.Ptr(provider)
	return catalog.Row{
		SnapshotTS:        ts,
		Source:            "fixture",
		ModelName:         name,
		Provider:          p,
		CodingIndex:       coding,
		QualityIndex:      coding,
		OutputTokensPerS:  tps,
		TTFTS:             f(0.5),
		PriceInputPer1M:   price,
		ContextWindow:     catalog.Ptr(int64(128000)),
		CanonicalModelKey: catalog.CanonicalKey(name, p),
	}
}

func fiveModels() []catalog.Row {
	return []catalog.Row{
		model("alpha", "acme", f(80), f(3), f(100)),
		model("beta", "acme", f(60), f(1), f(200)),
		model("gamma", "globex", f(90), f(10), f(50)),
		model("delta", "initech", f(40), f(0.5), f(300)),
		model("epsilon", "umbrella", f(70), f(2), f(120)),
	}
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()
	coding := profile.Parse("python debugging, prefer quality", nil, nil, "")

	Convey("Given an empty store", t, func() {
		engine := scoring.NewEngine(scoring.WithReader(staticReader{}))

		Convey("When recommending", func() {
			res, err := engine.Recommend(ctx, coding, 5, scoring.Penalize)

			Convey("Then an empty list is returned without error", func() {
				So(err, ShouldBeNil)
				So(res.Recommendations, ShouldNotBeNil)
				So(res.Recommendations, ShouldBeEmpty)
				So(res.SnapshotTS, ShouldBeNil)
				So(res.Warning(), ShouldEqual, "")
			})
		})
	})

	Convey("Given five eligible models", t, func() {
		engine := scoring.NewEngine(scoring.WithReader(staticReader{rows: fiveModels()}))

		Convey("When asking for the top two", func() {
			res, err := engine.Recommend(ctx, coding, 2, scoring.Penalize)

			Convey("Then exactly two are returned in descending score order", func() {
				So(err, ShouldBeNil)
				So(len(res.Recommendations), ShouldEqual, 2)
				So(res.Recommendations[0].Score, ShouldBeGreaterThanOrEqualTo, res.Recommendations[1].Score)
				So(res.Considered, ShouldEqual, 5)
				So(res.CatalogSize, ShouldEqual, 5)
				So(*res.SnapshotTS, ShouldEqual, ts)
			})

			Convey("Then each entry carries rounded scores and a justification", func() {
				top := res.Recommendations[0]
				So(top.Score, ShouldEqual, float64(int64(top.Score*1e4+0.5))/1e4)
				So(top.Justification, ShouldStartWith, "Strong coding quality signal with normalized quality ")
				So(top.Justification, ShouldContainSubstring, fmt.Sprintf("%.2f", top.QualityNorm))
				So(top.SnapshotTS, ShouldEqual, ts)
				So(top.Metrics.ContextWindow, ShouldNotBeNil)
			})
		})

		Convey("When the price ceiling is below every price", func() {
			cheap := profile.Parse("python", f(0.1), nil, "")
			res, err := engine.Recommend(ctx, cheap, 5, scoring.Penalize)

			Convey("Then nothing is recommended", func() {
				So(err, ShouldBeNil)
				So(res.Recommendations, ShouldBeEmpty)
				So(res.SnapshotTS, ShouldBeNil)
			})
		})

		Convey("When restricting providers", func() {
			only := profile.Parse("python", nil, nil, "ACME")
			res, err := engine.Recommend(ctx, only, 5, scoring.Neutral)

			Convey("Then only allowlisted providers remain", func() {
				So(err, ShouldBeNil)
				So(len(res.Recommendations), ShouldEqual, 2)
				for _, r := range res.Recommendations {
					So(*r.Provider, ShouldEqual, "acme")
				}
			})
		})

		Convey("When the same request runs twice", func() {
			a, errA := engine.Recommend(ctx, coding, 5, scoring.Neutral)
			b, errB := engine.Recommend(ctx, coding, 5, scoring.Neutral)

			Convey("Then the ranking is deterministic", func() {
				So(errA, ShouldBeNil)
				So(errB, ShouldBeNil)
				So(a.Recommendations, ShouldResemble, b.Recommendations)
			})
		})
	})

	Convey("Given rows with unknown price, context and provider", t, func() {
		unknown := model("mystery", "x", f(50), nil, f(10))
		unknown.ContextWindow = nil
		noProvider := model("orphan", "y", f(55), f(1), f(10))
		noProvider.Provider = nil
		engine := scoring.NewEngine(scoring.WithReader(staticReader{rows: []catalog.Row{unknown, noProvider}}))

		Convey("When a price ceiling and context floor are set", func() {
			p := profile.Parse("python", f(0.5), catalog.Ptr(int64(1_000_000)), "")
			res, err := engine.Recommend(ctx, p, 5, scoring.Penalize)

			Convey("Then the row with unknown values is kept", func() {
				So(err, ShouldBeNil)
				So(len(res.Recommendations), ShouldEqual, 1)
				So(res.Recommendations[0].ModelName, ShouldEqual, "mystery")
			})
		})

		Convey("When an allowlist is set", func() {
			p := profile.Parse("python", nil, nil, "x,y")
			res, err := engine.Recommend(ctx, p, 5, scoring.Penalize)

			Convey("Then the row without provider is removed", func() {
				So(err, ShouldBeNil)
				So(len(res.Recommendations), ShouldEqual, 1)
				So(res.Recommendations[0].ModelName, ShouldEqual, "mystery")
			})
		})
	})

	Convey("Given rows without any quality metric for the task", t, func() {
		rows := fiveModels()
		for i := range rows {
			rows[i].CodingIndex = nil
			rows[i].QualityIndex = nil
		}
		engine := scoring.NewEngine(scoring.WithReader(staticReader{rows: rows}))

		Convey("When recommending a coding task", func() {
			res, err := engine.Recommend(ctx, coding, 5, scoring.Penalize)

			Convey("Then the list is empty and explained", func() {
				So(err, ShouldBeNil)
				So(res.Recommendations, ShouldBeEmpty)
				So(res.Warning(), ShouldEqual, scoring.WarnNoQuality)
				So(res.SnapshotTS, ShouldNotBeNil)
			})
		})
	})

	Convey("Given a catalog whose headline columns are empty", t, func() {
		rows := make([]catalog.Row, 0, 3)
		for i := 0; i < 3; i++ {
			name := fmt.Sprintf("m%d", i)
			rows = append(rows, catalog.Row{
				SnapshotTS:        ts,
				ModelName:         name,
				QualityIndex:      f(float64(10 * (i + 1))),
				CanonicalModelKey: catalog.CanonicalKey(name, nil),
			})
		}
		engine := scoring.NewEngine(scoring.WithReader(staticReader{rows: rows}))
		res, err := engine.Recommend(ctx, profile.Parse("hello", nil, nil, ""), 5, scoring.Penalize)

		Convey("Then results carry the data-quality warning", func() {
			So(err, ShouldBeNil)
			So(len(res.Recommendations), ShouldEqual, 3)
			So(res.Warnings, ShouldResemble, []string{scoring.WarnDataQuality})
			So(res.Recommendations[0].ModelName, ShouldEqual, "m2")
		})
	})

	Convey("Given invalid arguments", t, func() {
		engine := scoring.NewEngine(scoring.WithReader(staticReader{rows: fiveModels()}))

		_, err := engine.Recommend(ctx, coding, 0, scoring.Penalize)
		So(errors.Is(err, scoring.ErrInvalidTopK), ShouldBeTrue)

		_, err = engine.Recommend(ctx, coding, 3, scoring.MissingPolicy(7))
		So(errors.Is(err, scoring.ErrUnknownPolicy), ShouldBeTrue)

		_, err = scoring.NewEngine().Recommend(ctx, coding, 3, scoring.Penalize)
		So(errors.Is(err, scoring.ErrNoReader), ShouldBeTrue)

		boom := errors.New("boom")
		_, err = scoring.NewEngine(scoring.WithReader(staticReader{err: boom})).Recommend(ctx, coding, 3, scoring.Penalize)
		So(errors.Is(err, boom), ShouldBeTrue)
	})
}

func TestQualityColumns(t *testing.T) {
	Convey("Given every task type", t, func() {
		for _, tt := range profile.TaskTypes {
			So(scoring.QualityColumns(tt), ShouldNotBeEmpty)
		}
		So(scoring.QualityColumns(profile.TaskCoding)[0], ShouldEqual, catalog.ColCodingIndex)
		So(scoring.QualityColumns("unknown"), ShouldResemble, scoring.QualityColumns(profile.TaskGeneral))
	})
}
