package solver

import (
	"fmt"

	"stochnet/errcode"
)

// SparseSink records only the trajectory cells named by a caller-provided
// CSC pattern: column k of the pattern lists the flattened state indices
// (node*stride + component) to record at tspan[k], and the value array
// receives them in the host's double-precision storage.
type SparseSink struct {
	Ir []int
	Jc []int
	Pr []float64
}

func (snk *SparseSink) check(rows, tlen int) error {
	if len(snk.Jc) != tlen+1 {
		return fmt.Errorf("sparse sink has %d column pointers, want %d: %w",
			len(snk.Jc), tlen+1, errcode.ErrInvalidInput)
	}
	if snk.Jc[0] != 0 || snk.Jc[tlen] != len(snk.Ir) || len(snk.Pr) != len(snk.Ir) {
		return fmt.Errorf("sparse sink pattern spans [%d,%d] over %d values: %w",
			snk.Jc[0], snk.Jc[tlen], len(snk.Pr), errcode.ErrInvalidInput)
	}
	for k := 1; k <= tlen; k++ {
		if snk.Jc[k] < snk.Jc[k-1] {
			return fmt.Errorf("sparse sink column pointer decreases at %d: %w",
				k, errcode.ErrInvalidInput)
		}
	}
	for i, r := range snk.Ir {
		if r < 0 || r >= rows {
			return fmt.Errorf("sparse sink row ir[%d]=%d outside [0,%d): %w",
				i, r, rows, errcode.ErrInvalidInput)
		}
	}
	return nil
}

func (snk *SparseSink) writeCol(k int, at func(row int) float64) {
	for off := snk.Jc[k]; off < snk.Jc[k+1]; off++ {
		snk.Pr[off] = at(snk.Ir[off])
	}
}

// writeInitialColumn stores u0/v0 into column 0 directly and parks the
// cursor past it, so the day loop can never write that column again.
func (s *Solver) writeInitialColumn() {
	s.writeColumn(0, s.p.U0, s.p.V0)
	s.cursor = 1
}

// sampleUpTo writes every unwritten column whose sample time has been
// reached. The cursor is monotone: a column is written exactly once, at
// the first day boundary tt with tspan[k] <= tt.
func (s *Solver) sampleUpTo(tt float64) {
	for s.cursor < s.tlen && s.p.Tspan[s.cursor] <= tt {
		s.writeColumn(s.cursor, s.u, s.v)
		s.cursor++
	}
}

func (s *Solver) writeColumn(k int, u []int, v []float64) {
	cells := s.nn * s.nc
	if s.p.U != nil {
		copy(s.p.U[k*cells:(k+1)*cells], u)
	}
	if s.p.USparse != nil {
		s.p.USparse.writeCol(k, func(row int) float64 { return float64(u[row]) })
	}
	vcells := s.nn * s.nd
	if s.p.V != nil {
		copy(s.p.V[k*vcells:(k+1)*vcells], v)
	}
	if s.p.VSparse != nil {
		s.p.VSparse.writeCol(k, func(row int) float64 { return v[row] })
	}

	if s.p.Frames != nil {
		frame := Frame{Column: k, Time: s.p.Tspan[k]}
		frame.U = make([]int, cells)
		copy(frame.U, u)
		if vcells > 0 {
			frame.V = make([]float64, vcells)
			copy(frame.V, v)
		}
		select {
		case s.p.Frames <- frame:
		default:
			// The view is behind; the solver never waits for it.
		}
	}
}
