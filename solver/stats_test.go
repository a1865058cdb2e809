package solver

import (
	"context"
	"math"
	"sort"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"stochnet/model"
	"stochnet/rng"
	"stochnet/sparse"
)

// counterProblem is a pure Poisson process: one transition at constant
// rate lambda that bumps a counter compartment it does not depend on, so
// the dependency graph is empty and the rate never refreshes.
func counterProblem(lambda float64, days int, seed int64) *Problem {
	tspan := daySpan(days)
	g, _ := sparse.NewView(1, 1, nil, []int{0, 0}, nil)
	n, _ := sparse.NewView(1, 1, []int{0}, []int{0, 1}, []int{1})
	e, _ := sparse.NewView(1, 1, []int{0}, []int{0, 1}, nil)
	s, _ := sparse.NewView(1, 1, nil, []int{0, 0}, nil)
	return &Problem{
		Nn:    1,
		U0:    []int{0},
		G:     g,
		N:     n,
		E:     e,
		S:     s,
		Tspan: tspan,
		Transitions: []model.Propensity{
			func(u []int, v, ldata, gdata []float64, t float64) float64 { return lambda },
		},
		U:       make([]int, len(tspan)),
		Nthread: 1,
		Seed:    seedOf(seed),
	}
}

func TestPoissonCounts(t *testing.T) {
	Convey("When a unit-rate counter runs to day 10 across replicates", t, func() {
		const (
			replicates = 300
			horizon    = 10.0
		)
		counts := make([]float64, replicates)
		for i := 0; i < replicates; i++ {
			p := counterProblem(1.0, 10, int64(i+1))
			s, err := New(p)
			So(err, ShouldBeNil)
			So(s.Run(context.Background()), ShouldBeNil)
			counts[i] = float64(p.U[len(p.U)-1])
		}

		mean := 0.0
		for _, c := range counts {
			mean += c
		}
		mean /= replicates
		variance := 0.0
		for _, c := range counts {
			variance += (c - mean) * (c - mean)
		}
		variance /= replicates - 1

		Convey("the count matches Poisson(10) in mean and variance", func() {
			// sd of the sample mean is sqrt(10/300) ~ 0.18
			So(math.Abs(mean-horizon), ShouldBeLessThan, 0.6)
			So(variance, ShouldBeBetween, 6.5, 14.0)
		})
	})
}

func TestExponentialDecay(t *testing.T) {
	Convey("When recovery alone acts on ten infected across replicates", t, func() {
		const replicates = 300
		def := model.SIS(0, 0.1)

		sum := 0.0
		for i := 0; i < replicates; i++ {
			p := sisProblem(def, []int{0, 10}, daySpan(10), nil, 1, int64(i+1))
			So(run(p), ShouldBeNil)
			sum += float64(col(p, 10)[1])
		}
		mean := sum / replicates

		// Each individual survives to day 10 with probability e^-1, so the
		// mean infected count is 10/e ~ 3.68 with sd of the mean ~ 0.088.
		So(math.Abs(mean-10*math.Exp(-1)), ShouldBeLessThan, 0.4)
	})
}

func TestWaitingTimeDistribution(t *testing.T) {
	Convey("When waiting times are drawn the way the kernel draws them", t, func() {
		const n = 2000
		r := rng.New(1234)
		draws := make([]float64, n)
		for i := range draws {
			// Mirrors the kernel: U on (0,1], tau = -ln(U)/rate at rate 1.
			draws[i] = -math.Log(1.0 - r.Float64())
		}
		sort.Float64s(draws)

		// Kolmogorov-Smirnov against Exp(1), with a critical value far
		// beyond the 1% level so the fixed stream cannot flake.
		d := 0.0
		for i, x := range draws {
			cdf := 1.0 - math.Exp(-x)
			lo := cdf - float64(i)/n
			hi := float64(i+1)/n - cdf
			d = math.Max(d, math.Max(lo, hi))
		}
		So(d, ShouldBeLessThan, 2.0/math.Sqrt(n))

		mean := 0.0
		for _, x := range draws {
			mean += x
		}
		mean /= n
		So(math.Abs(mean-1.0), ShouldBeLessThan, 0.1)
	})
}
