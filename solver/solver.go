// Package solver is the multithreaded stochastic core: a per-node direct
// Gillespie loop driven by a dependency graph, a two-phase scheduled-event
// pipeline that only serializes inter-node transfers, and a day-stepped
// coordination protocol that samples the trajectory into caller-provided
// outputs.
//
// Each simulated day runs SSA and intra-node events in parallel over a
// static node partition, joins, applies inter-node events on a single
// stream, joins again, then runs the post-timestep callback and samples.
// The errgroup joins are the barriers; the first worker error wins and
// halts the run.
package solver

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"stochnet/atomic_float"
	"stochnet/errcode"
	"stochnet/events"
	"stochnet/model"
	"stochnet/rng"
	"stochnet/sparse"
)

// Frame is one sampled trajectory column, copied out for live views.
type Frame struct {
	Column int
	Time   float64
	U      []int
	V      []float64
}

// Problem carries everything one solver invocation needs: initial state,
// static matrices, sample grid, events, the model's callback table and the
// output targets. Outputs are written in place.
type Problem struct {
	// Nn is the node count; all per-node array strides derive from it.
	Nn int

	U0 []int     // initial compartment counts, len Nn*Nc
	V0 []float64 // initial auxiliary variables, len Nn*Nd

	G *sparse.Matrix // Nt x Nt dependency graph
	N *sparse.Matrix // Nc x Nt state-change matrix
	E *sparse.Matrix // Nc x Nselect select matrix
	S *sparse.Matrix // Nc x Nshift shift matrix

	Tspan []float64 // strictly increasing sample times
	Ldata []float64 // per-node parameters, len Nn*Nld
	Gdata []float64 // global parameters

	Events []events.Event

	Transitions []model.Propensity
	PostStep    model.PostStep

	// Dense outputs, column-major over the sample index: sample k of node
	// n compartment c lands at U[k*Nn*Nc + n*Nc + c]. Mutually exclusive
	// with the sparse sink for the same matrix. V targets may be omitted.
	U       []int
	V       []float64
	USparse *SparseSink
	VSparse *SparseSink

	// Frames optionally receives a copy of every sampled column; sends
	// never block, late consumers just miss frames.
	Frames chan<- Frame

	Nthread int    // 0 means one worker per CPU
	Seed    *int64 // nil means wall clock
}

// Solver is one prepared invocation. Not reusable after Run returns.
type Solver struct {
	p *Problem

	nn, nc, nt, nd, nld int
	tlen                int

	u       []int
	v, vNew []float64
	tTime   []float64
	tRate   []float64 // node-major, stride nt
	sumRate []float64
	update  []bool

	workers []*worker
	proc    *events.Processor
	e2      *events.Queue

	tt      float64
	nextDay float64
	cursor  int

	day   *atomic_float.Float64
	fired *atomic_float.Float64
}

// New validates the problem and lays out all per-thread state. Validation
// failures map to INVALID_INPUT; the event stream is split here so a
// malformed event fails fast with INVALID_EVENT.
func New(p *Problem) (*Solver, error) {
	s := &Solver{
		p:     p,
		nn:    p.Nn,
		day:   atomic_float.New(0),
		fired: atomic_float.New(0),
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	nworkers := p.Nthread
	if nworkers == 0 {
		nworkers = runtime.NumCPU()
	}
	if nworkers > s.nn {
		nworkers = s.nn
	}
	if nworkers < 1 {
		nworkers = 1
	}

	seed := int64(0)
	if p.Seed != nil {
		seed = *p.Seed
	} else {
		seed = rng.WallClockSeed()
	}
	s.workers = newWorkers(s.nn, rng.Streams(seed, nworkers))

	var err error
	if s.proc, err = events.NewProcessor(p.E, p.S, s.nc); err != nil {
		return nil, err
	}

	e1, e2, err := events.Split(p.Events, s.nn, nworkers, partition(s.nn, nworkers))
	if err != nil {
		return nil, err
	}
	for i, w := range s.workers {
		w.e1 = e1[i]
	}
	s.e2 = e2

	// Working state: copies of u0/v0 so reruns of the host arrays stay
	// possible, plus the per-node rate caches.
	s.u = make([]int, len(p.U0))
	copy(s.u, p.U0)
	s.v = make([]float64, len(p.V0))
	copy(s.v, p.V0)
	s.vNew = make([]float64, len(p.V0))
	copy(s.vNew, p.V0)
	s.tRate = make([]float64, s.nn*s.nt)
	s.sumRate = make([]float64, s.nn)
	s.tTime = make([]float64, s.nn)
	s.update = make([]bool, s.nn)
	for n := range s.update {
		s.update[n] = true // first day recomputes everything
	}

	s.tt = p.Tspan[0]
	s.nextDay = math.Floor(s.tt) + 1
	for n := range s.tTime {
		s.tTime[n] = s.tt
	}
	s.day.Store(s.tt)
	return s, nil
}

func (s *Solver) validate() (err error) {
	p := s.p
	fail := func(format string, args ...interface{}) error {
		args = append(args, errcode.ErrInvalidInput)
		return fmt.Errorf(format+": %w", args...)
	}

	if p.Nn <= 0 {
		return fail("node count %d", p.Nn)
	}
	if p.Nthread < 0 {
		return fail("thread count %d", p.Nthread)
	}
	if len(p.Transitions) == 0 {
		return fail("no transitions")
	}
	s.nt = len(p.Transitions)
	if p.G == nil || p.G.Rows() != s.nt || p.G.Cols() != s.nt {
		return fail("dependency graph must be %dx%d", s.nt, s.nt)
	}
	if p.N == nil || p.N.Cols() != s.nt {
		return fail("state-change matrix must have %d columns", s.nt)
	}
	s.nc = p.N.Rows()
	if s.nc <= 0 {
		return fail("state-change matrix has no rows")
	}
	if len(p.U0) != s.nn*s.nc {
		return fail("u0 has length %d, want %d", len(p.U0), s.nn*s.nc)
	}
	for i, c := range p.U0 {
		if c < 0 {
			return fail("u0[%d] = %d", i, c)
		}
	}
	if len(p.V0)%s.nn != 0 {
		return fail("v0 length %d is not a multiple of %d nodes", len(p.V0), s.nn)
	}
	s.nd = len(p.V0) / s.nn
	if len(p.Ldata)%s.nn != 0 {
		return fail("ldata length %d is not a multiple of %d nodes", len(p.Ldata), s.nn)
	}
	s.nld = len(p.Ldata) / s.nn

	s.tlen = len(p.Tspan)
	if s.tlen < 1 {
		return fail("empty tspan")
	}
	for k := 1; k < s.tlen; k++ {
		if p.Tspan[k] <= p.Tspan[k-1] {
			return fail("tspan[%d]=%v does not increase past %v", k, p.Tspan[k], p.Tspan[k-1])
		}
	}

	// Output targets. The compartment trajectory always has a sink; the
	// auxiliary trajectory may be discarded.
	if p.U != nil && p.USparse != nil {
		return fail("both dense and sparse U outputs set")
	}
	if p.V != nil && p.VSparse != nil {
		return fail("both dense and sparse V outputs set")
	}
	if p.U == nil && p.USparse == nil {
		return fail("no U output target")
	}
	cells := s.nn * s.nc
	if cells > 0 && s.tlen > math.MaxInt/cells {
		return fmt.Errorf("dense output of %d columns over %d cells: %w",
			s.tlen, cells, errcode.ErrAlloc)
	}
	if p.U != nil && len(p.U) != cells*s.tlen {
		return fail("U has length %d, want %d", len(p.U), cells*s.tlen)
	}
	if p.V != nil && len(p.V) != s.nn*s.nd*s.tlen {
		return fail("V has length %d, want %d", len(p.V), s.nn*s.nd*s.tlen)
	}
	if p.USparse != nil {
		if err = p.USparse.check(s.nn*s.nc, s.tlen); err != nil {
			return
		}
	}
	if p.VSparse != nil {
		if err = p.VSparse.check(s.nn*s.nd, s.tlen); err != nil {
			return
		}
	}
	return nil
}

// Run drives the day loop to the end of tspan. It returns nil on success,
// ctx.Err() on cancellation (polled at the barriers), or the first worker
// error otherwise. The output targets hold every column sampled before the
// failure.
func (s *Solver) Run(ctx context.Context) error {
	s.writeInitialColumn()

	for s.cursor < s.tlen {
		if err := ctx.Err(); err != nil {
			return err
		}

		// SSA and intra-node events over the partition; the join is the
		// first barrier of the day.
		var g errgroup.Group
		for _, w := range s.workers {
			w := w
			g.Go(func() error { return s.dayLocal(w) })
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// Inter-node events on the designated worker's stream. Everything
		// else is parked between the joins, so cross-partition writes are
		// race-free.
		if err := s.dayGlobal(s.workers[0]); err != nil {
			return err
		}

		// Post-timestep callback and pending rate refreshes.
		var g2 errgroup.Group
		for _, w := range s.workers {
			w := w
			g2.Go(func() error { return s.dayPost(w) })
		}
		if err := g2.Wait(); err != nil {
			return err
		}

		s.tt = s.nextDay
		s.nextDay++
		s.day.Store(s.tt)

		s.sampleUpTo(s.tt)
		if s.p.PostStep != nil {
			s.v, s.vNew = s.vNew, s.v
		}
	}
	return nil
}

// dayLocal advances every owned node to the day boundary, then applies the
// day's intra-node events.
func (s *Solver) dayLocal(w *worker) error {
	for n := w.first; n < w.last; n++ {
		if err := s.ssaNode(w, n); err != nil {
			return err
		}
	}
	for _, ev := range w.e1.UpTo(int(s.nextDay)) {
		if err := s.proc.Intra(w.rng, s.nodeU(ev.Node), ev); err != nil {
			return fmt.Errorf("node %d day %v %v event: %w", ev.Node, s.nextDay, ev.Kind, err)
		}
		s.update[ev.Node] = true
	}
	return nil
}

// dayGlobal applies the day's external transfers serially.
func (s *Solver) dayGlobal(w *worker) error {
	for _, ev := range s.e2.UpTo(int(s.nextDay)) {
		if err := s.proc.Inter(w.rng, s.nodeU(ev.Node), s.nodeU(ev.Dest), ev); err != nil {
			return fmt.Errorf("node %d->%d day %v transfer: %w", ev.Node, ev.Dest, s.nextDay, err)
		}
		s.update[ev.Node] = true
		s.update[ev.Dest] = true
	}
	return nil
}

// dayPost runs the post-timestep callback per owned node and refreshes
// rates where the callback or the day's events demand it. The refresh
// evaluates against the auxiliaries the next day will read.
func (s *Solver) dayPost(w *worker) error {
	for n := w.first; n < w.last; n++ {
		next := s.v
		if s.p.PostStep != nil {
			code := s.p.PostStep(
				s.nodeVNew(n), s.nodeU(n), s.nodeV(n),
				s.nodeLdata(n), s.p.Gdata, n, s.nextDay)
			if code < 0 {
				return fmt.Errorf("node %d day %v post-step callback returned %d: %w",
					n, s.nextDay, code, errcode.ErrInvalidRate)
			}
			if code > 0 {
				s.update[n] = true
			}
			next = s.vNew
		}
		if s.update[n] {
			if err := s.refreshNode(n, next); err != nil {
				return err
			}
			s.update[n] = false
		}
	}
	s.fired.Add(float64(w.steps))
	w.steps = 0
	return nil
}

func (s *Solver) nodeU(n int) []int         { return s.u[n*s.nc : (n+1)*s.nc] }
func (s *Solver) nodeV(n int) []float64     { return s.v[n*s.nd : (n+1)*s.nd] }
func (s *Solver) nodeVNew(n int) []float64  { return s.vNew[n*s.nd : (n+1)*s.nd] }
func (s *Solver) nodeLdata(n int) []float64 { return s.p.Ldata[n*s.nld : (n+1)*s.nld] }

// Day reports the current simulated day; safe to read while running.
func (s *Solver) Day() float64 { return s.day.Load() }

// Fired reports the total transitions fired; safe to read while running.
func (s *Solver) Fired() float64 { return s.fired.Load() }
