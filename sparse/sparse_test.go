package sparse

import (
	"errors"
	"math"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"stochnet/errcode"
)

func TestView(t *testing.T) {
	Convey("When a CSC view wraps valid triples", t, func() {
		// 3x2: col 0 = {row 0: -1, row 2: 1}, col 1 = {row 1: 4}
		m, err := NewView(3, 2, []int{0, 2, 1}, []int{0, 2, 3}, []int{-1, 1, 4})
		So(err, ShouldBeNil)
		So(m.Rows(), ShouldEqual, 3)
		So(m.Cols(), ShouldEqual, 2)
		So(m.ColLen(0), ShouldEqual, 2)
		So(m.ColRows(1), ShouldResemble, []int{1})

		var rows, vals []int
		m.Visit(0, func(row, val int) {
			rows = append(rows, row)
			vals = append(vals, val)
		})
		So(rows, ShouldResemble, []int{0, 2})
		So(vals, ShouldResemble, []int{-1, 1})
	})

	Convey("When a pattern matrix has no value array", t, func() {
		m, err := NewView(2, 1, []int{0, 1}, []int{0, 2}, nil)
		So(err, ShouldBeNil)

		sum := 0
		m.Visit(0, func(row, val int) { sum += val })
		So(sum, ShouldEqual, 2)
	})

	Convey("When triples are malformed", t, func() {
		Convey("a short column pointer is rejected", func() {
			_, err := NewView(2, 2, []int{0}, []int{0, 1}, nil)
			So(errors.Is(err, errcode.ErrInvalidInput), ShouldBeTrue)
		})
		Convey("a row index outside the matrix is rejected", func() {
			_, err := NewView(2, 1, []int{5}, []int{0, 1}, nil)
			So(errors.Is(err, errcode.ErrInvalidInput), ShouldBeTrue)
		})
		Convey("a decreasing column pointer is rejected", func() {
			_, err := NewView(2, 2, []int{0}, []int{0, 2, 1}, nil)
			So(errors.Is(err, errcode.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestViewFromDoubles(t *testing.T) {
	Convey("When host values are representable integers", t, func() {
		m, err := NewViewFromDoubles(2, 1, []int{0, 1}, []int{0, 2}, []float64{3.0, -2.0})
		So(err, ShouldBeNil)

		var vals []int
		m.Visit(0, func(row, val int) { vals = append(vals, val) })
		So(vals, ShouldResemble, []int{3, -2})
	})

	Convey("When a host value is fractional", t, func() {
		_, err := NewViewFromDoubles(2, 1, []int{0, 1}, []int{0, 2}, []float64{1.5, 0})
		So(errors.Is(err, errcode.ErrInvalidInput), ShouldBeTrue)
	})

	Convey("When a host value is NaN", t, func() {
		_, err := NewViewFromDoubles(1, 1, []int{0}, []int{0, 1}, []float64{math.NaN()})
		So(errors.Is(err, errcode.ErrInvalidInput), ShouldBeTrue)
	})
}
