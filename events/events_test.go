package events

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"stochnet/errcode"
)

func evenOdd(node int) int { return node % 2 }

func TestFromArrays(t *testing.T) {
	Convey("When the host arrays agree", t, func() {
		evts, err := FromArrays(
			[]int{int(Exit), int(ExternalTransfer)},
			[]int{1, 2},
			[]int{0, 1},
			[]int{0, 0},
			[]int{3, 0},
			[]float64{0, 0.5},
			[]int{1, 1},
			[]int{-1, -1})
		So(err, ShouldBeNil)
		So(len(evts), ShouldEqual, 2)
		So(evts[0].Kind, ShouldEqual, Exit)
		So(evts[1].Kind, ShouldEqual, ExternalTransfer)
		So(evts[1].Proportion, ShouldEqual, 0.5)
	})

	Convey("When array lengths differ", t, func() {
		_, err := FromArrays(
			[]int{int(Exit)},
			[]int{1, 2},
			[]int{0},
			[]int{0},
			[]int{3},
			[]float64{0},
			[]int{1},
			[]int{-1})
		So(errors.Is(err, errcode.ErrInvalidInput), ShouldBeTrue)
	})

	Convey("When a kind is unknown", t, func() {
		_, err := FromArrays(
			[]int{99},
			[]int{1},
			[]int{0},
			[]int{0},
			[]int{3},
			[]float64{0},
			[]int{1},
			[]int{-1})
		So(errors.Is(err, errcode.ErrInvalidEvent), ShouldBeTrue)
	})
}

func TestSplit(t *testing.T) {
	Convey("When a mixed stream is split over two workers", t, func() {
		evts := []Event{
			{Kind: Exit, Time: 1, Node: 0, N: 1, Select: 0},
			{Kind: Enter, Time: 1, Node: 1, N: 1, Select: 0},
			{Kind: ExternalTransfer, Time: 2, Node: 0, Dest: 3, N: 1, Select: 0, Shift: -1},
			{Kind: Exit, Time: 3, Node: 2, N: 1, Select: 0},
		}
		e1, e2, err := Split(evts, 4, 2, evenOdd)
		So(err, ShouldBeNil)

		// Worker 0 owns even nodes, worker 1 odd ones.
		So(e1[0].Len(), ShouldEqual, 2)
		So(e1[1].Len(), ShouldEqual, 1)
		So(e2.Len(), ShouldEqual, 1)

		Convey("and each queue drains in day order", func() {
			day1 := e1[0].UpTo(1)
			So(len(day1), ShouldEqual, 1)
			So(day1[0].Node, ShouldEqual, 0)

			So(len(e1[0].UpTo(2)), ShouldEqual, 0)
			day3 := e1[0].UpTo(3)
			So(len(day3), ShouldEqual, 1)
			So(day3[0].Node, ShouldEqual, 2)
			So(e1[0].Pending(), ShouldBeFalse)
		})
	})

	Convey("When the stream is malformed", t, func() {
		Convey("an out-of-range node is rejected", func() {
			_, _, err := Split([]Event{{Kind: Exit, Node: 9}}, 4, 2, evenOdd)
			So(errors.Is(err, errcode.ErrInvalidEvent), ShouldBeTrue)
		})
		Convey("an out-of-range dest is rejected", func() {
			_, _, err := Split(
				[]Event{{Kind: ExternalTransfer, Node: 0, Dest: -1}}, 4, 2, evenOdd)
			So(errors.Is(err, errcode.ErrInvalidEvent), ShouldBeTrue)
		})
		Convey("a proportion above one is rejected", func() {
			_, _, err := Split(
				[]Event{{Kind: Exit, Node: 0, Proportion: 1.5}}, 4, 2, evenOdd)
			So(errors.Is(err, errcode.ErrInvalidEvent), ShouldBeTrue)
		})
		Convey("a negative count is rejected", func() {
			_, _, err := Split([]Event{{Kind: Exit, Node: 0, N: -2}}, 4, 2, evenOdd)
			So(errors.Is(err, errcode.ErrInvalidEvent), ShouldBeTrue)
		})
		Convey("out-of-order times are rejected", func() {
			evts := []Event{
				{Kind: Exit, Node: 0, Time: 5},
				{Kind: Exit, Node: 0, Time: 4},
			}
			_, _, err := Split(evts, 4, 2, evenOdd)
			So(errors.Is(err, errcode.ErrInvalidEvent), ShouldBeTrue)
		})
	})
}
