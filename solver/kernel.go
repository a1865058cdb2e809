package solver

import (
	"fmt"
	"math"

	"stochnet/errcode"
)

// ssaNode advances one node to the day boundary with the direct method:
// exponential waiting times against the cached rate sum, a categorical
// draw over the cached rates, the state change from column tr of N, then
// an incremental refresh of just the propensities column tr of G marks
// stale. The refresh accumulates deltas into the cached sum instead of
// resumming, which is what makes dense models cheap; the draw-time
// safeguards below arrest the float drift that accumulates in exchange.
func (s *Solver) ssaNode(w *worker, node int) error {
	if s.update[node] {
		if err := s.refreshNode(node, s.v); err != nil {
			return err
		}
		s.update[node] = false
	}

	un := s.nodeU(node)
	vn := s.nodeV(node)
	ld := s.nodeLdata(node)
	rates := s.tRate[node*s.nt : (node+1)*s.nt]

	for {
		sum := s.sumRate[node]
		if sum <= 0 {
			// Absorbing state: nothing can fire, jump to the boundary.
			s.tTime[node] = s.nextDay
			return nil
		}

		// U1 on (0,1]: Float64 is [0,1), so flip it. Log(0) must stay
		// unreachable.
		tau := -math.Log(1.0-w.rng.Float64()) / sum
		if s.tTime[node]+tau >= s.nextDay {
			s.tTime[node] = s.nextDay
			return nil
		}
		s.tTime[node] += tau

		// Categorical draw by cumulative scan. Rounding can overshoot the
		// last slot or land on a zero-rate slot; clamp and walk back.
		r := w.rng.Float64() * sum
		tr := s.nt - 1
		cum := 0.0
		for j := 0; j < s.nt; j++ {
			cum += rates[j]
			if cum > r {
				tr = j
				break
			}
		}
		for tr >= 0 && rates[tr] <= 0 {
			tr--
		}
		if tr < 0 {
			// Every rate is zero yet the cached sum was positive: pure
			// accumulated drift. Null event; resync and stop.
			s.sumRate[node] = 0
			s.tTime[node] = s.nextDay
			return nil
		}

		neg := -1
		s.p.N.Visit(tr, func(row, val int) {
			un[row] += val
			if un[row] < 0 {
				neg = row
			}
		})
		if neg >= 0 {
			return fmt.Errorf("node %d transition %d empties compartment %d: %w",
				node, tr, neg, errcode.ErrNegativeState)
		}
		w.steps++

		// Refresh the propensities transition tr invalidates.
		for _, i := range s.p.G.ColRows(tr) {
			rate := s.p.Transitions[i](un, vn, ld, s.p.Gdata, s.tTime[node])
			if err := checkRate(rate, node, i); err != nil {
				return err
			}
			s.sumRate[node] += rate - rates[i]
			rates[i] = rate
		}
	}
}

// refreshNode fully recomputes the node's propensities against the given
// auxiliary values and rebuilds the cached sum.
func (s *Solver) refreshNode(node int, v []float64) error {
	un := s.nodeU(node)
	vn := v[node*s.nd : (node+1)*s.nd]
	ld := s.nodeLdata(node)
	rates := s.tRate[node*s.nt : (node+1)*s.nt]

	sum := 0.0
	for i := range rates {
		rate := s.p.Transitions[i](un, vn, ld, s.p.Gdata, s.tTime[node])
		if err := checkRate(rate, node, i); err != nil {
			return err
		}
		rates[i] = rate
		sum += rate
	}
	s.sumRate[node] = sum
	return nil
}

func checkRate(rate float64, node, transition int) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return fmt.Errorf("node %d transition %d propensity %v: %w",
			node, transition, rate, errcode.ErrInvalidRate)
	}
	return nil
}
