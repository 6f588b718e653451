package scoring

import (
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func ptr(v float64) *float64 { return &v }

func TestParseMissingPolicy(t *testing.T) {
	Convey("Given policy names", t, func() {
		p, err := ParseMissingPolicy(" Neutral ")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, Neutral)

		p, err = ParseMissingPolicy("penalize")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, Penalize)
		So(p.String(), ShouldEqual, "penalize")

		_, err = ParseMissingPolicy("optimistic")
		So(errors.Is(err, ErrUnknownPolicy), ShouldBeTrue)
	})

	Convey("Given JSON text", t, func() {
		var body struct {
			Policy MissingPolicy `json:"policy"`
		}
		So(json.Unmarshal([]byte(`{"policy":"neutral"}`), &body), ShouldBeNil)
		So(body.Policy, ShouldEqual, Neutral)
		So(json.Unmarshal([]byte(`{"policy":"other"}`), &body), ShouldNotBeNil)

		out, err := json.Marshal(body)
		So(err, ShouldBeNil)
		So(string(out), ShouldEqual, `{"policy":"neutral"}`)

		_, err = MissingPolicy(9).MarshalText()
		So(errors.Is(err, ErrUnknownPolicy), ShouldBeTrue)
	})
}

func TestFillMissing(t *testing.T) {
	Convey("Given a column with a gap", t, func() {
		col := []*float64{ptr(1), nil, ptr(3), ptr(10)}

		Convey("When filling neutrally", func() {
			out, err := FillMissing(col, Neutral, false)

			Convey("Then the median is used", func() {
				So(err, ShouldBeNil)
				So(out, ShouldResemble, []float64{1, 3, 3, 10})
			})
		})

		Convey("When penalizing a higher-is-better column", func() {
			out, err := FillMissing(col, Penalize, false)
			So(err, ShouldBeNil)
			So(out[1], ShouldEqual, 1)
		})

		Convey("When penalizing a lower-is-better column", func() {
			out, err := FillMissing(col, Penalize, true)
			So(err, ShouldBeNil)
			So(out[1], ShouldEqual, 10)
		})

		Convey("Then the two policies diverge", func() {
			n, _ := FillMissing(col, Neutral, false)
			p, _ := FillMissing(col, Penalize, false)
			So(n[1], ShouldNotEqual, p[1])
		})
	})

	Convey("Given an even number of present values", t, func() {
		out, err := FillMissing([]*float64{ptr(4), ptr(2), nil, ptr(8), ptr(6)}, Neutral, false)
		So(err, ShouldBeNil)
		So(out[2], ShouldEqual, 5)
	})

	Convey("Given an all-missing column", t, func() {
		out, err := FillMissing([]*float64{nil, nil}, Penalize, true)
		So(err, ShouldBeNil)
		So(out, ShouldResemble, []float64{0, 0})
	})

	Convey("Given an out-of-range policy", t, func() {
		_, err := FillMissing([]*float64{ptr(1)}, MissingPolicy(-1), false)
		So(errors.Is(err, ErrUnknownPolicy), ShouldBeTrue)
	})
}

func TestMinMax(t *testing.T) {
	Convey("Given a spread column", t, func() {
		out := MinMax([]float64{2, 4, 6, 3.5}, false)

		Convey("Then values lie in [0,1] with the extremes at the bounds", func() {
			for _, v := range out {
				So(v, ShouldBeBetweenOrEqual, 0, 1)
			}
			So(out[0], ShouldEqual, 0)
			So(out[2], ShouldEqual, 1)
			So(out[1], ShouldEqual, 0.5)
		})

		Convey("Then inversion flips the order", func() {
			inv := MinMax([]float64{2, 4, 6}, true)
			So(inv, ShouldResemble, []float64{1, 0.5, 0})
		})
	})

	Convey("Given a flat column", t, func() {
		So(MinMax([]float64{7, 7, 7}, false), ShouldResemble, []float64{0.5, 0.5, 0.5})
		So(MinMax([]float64{7, 7}, true), ShouldResemble, []float64{0.5, 0.5})
	})

	Convey("Given an empty column", t, func() {
		So(MinMax(nil, false), ShouldBeEmpty)
	})

	Convey("Given Normalize over an all-missing column", t, func() {
		out, err := Normalize([]*float64{nil, nil, nil}, Neutral, true)
		So(err, ShouldBeNil)
		So(out, ShouldResemble, []float64{0.5, 0.5, 0.5})
	})
}
