package events

import (
	"fmt"
	"math"
	"math/rand"

	"stochnet/errcode"
	"stochnet/sparse"
)

// Processor applies scheduled events to compartment count vectors. The
// select matrix E maps an event's select index to the compartments it
// touches; the shift matrix S maps a shift index to a per-compartment
// identity offset. Both are read-only, so one Processor serves every
// worker concurrently; randomness comes from the calling worker's stream.
type Processor struct {
	nc      int
	selects [][]int // select column -> compartment indices
	shifts  [][]int // shift column -> per-compartment offsets
}

// NewProcessor precomputes the select and shift lookups. E must be
// Nc x Nselect, S must be Nc x Nshift.
func NewProcessor(e, s *sparse.Matrix, nc int) (*Processor, error) {
	if e.Rows() != nc {
		return nil, fmt.Errorf("select matrix has %d rows, want %d: %w",
			e.Rows(), nc, errcode.ErrInvalidInput)
	}
	if s.Rows() != nc {
		return nil, fmt.Errorf("shift matrix has %d rows, want %d: %w",
			s.Rows(), nc, errcode.ErrInvalidInput)
	}

	p := &Processor{
		nc:      nc,
		selects: make([][]int, e.Cols()),
		shifts:  make([][]int, s.Cols()),
	}
	for j := 0; j < e.Cols(); j++ {
		cols := make([]int, 0, e.ColLen(j))
		e.Visit(j, func(row, val int) {
			if val != 0 {
				cols = append(cols, row)
			}
		})
		p.selects[j] = cols
	}
	for j := 0; j < s.Cols(); j++ {
		offsets := make([]int, nc)
		s.Visit(j, func(row, val int) {
			offsets[row] = val
		})
		p.shifts[j] = offsets
	}
	return p, nil
}

// Intra applies an E1 event to the local node's compartment counts u
// (length Nc). The caller marks the node for rate refresh.
func (p *Processor) Intra(r *rand.Rand, u []int, ev Event) error {
	switch ev.Kind {
	case Enter:
		return p.enter(u, ev)
	case Exit:
		kn, err := p.drawSelection(r, u, ev)
		if err != nil {
			return err
		}
		sel := p.selects[ev.Select]
		for i, c := range sel {
			u[c] -= kn[i]
		}
		return nil
	case InternalTransfer:
		return p.transfer(r, u, u, ev, true)
	}
	return fmt.Errorf("%v is not an intra-node event: %w", ev.Kind, errcode.ErrInvalidEvent)
}

// Inter applies an E2 event: individuals sampled from the source node's
// counts src move into the destination node's counts dst, optionally under
// a compartment shift. The caller marks both nodes for rate refresh.
func (p *Processor) Inter(r *rand.Rand, src, dst []int, ev Event) error {
	if ev.Kind != ExternalTransfer {
		return fmt.Errorf("%v is not an inter-node event: %w", ev.Kind, errcode.ErrInvalidEvent)
	}
	return p.transfer(r, src, dst, ev, ev.Shift >= 0)
}

func (p *Processor) enter(u []int, ev Event) error {
	if ev.Select < 0 || ev.Select >= len(p.selects) {
		return fmt.Errorf("select %d of %d: %w", ev.Select, len(p.selects), errcode.ErrInvalidEvent)
	}
	sel := p.selects[ev.Select]
	if len(sel) != 1 {
		return fmt.Errorf("enter event select %d touches %d compartments, want 1: %w",
			ev.Select, len(sel), errcode.ErrInvalidEvent)
	}
	n := ev.N
	if ev.Proportion > 0 {
		n = int(math.Round(ev.Proportion * float64(u[sel[0]])))
	}
	u[sel[0]] += n
	return nil
}

// transfer removes a sampled selection from src and, when shifted is set,
// re-adds each sampled individual at compartment c + S[c, shift]; without
// a shift the same compartments receive them (only meaningful when src and
// dst are different nodes).
func (p *Processor) transfer(r *rand.Rand, src, dst []int, ev Event, shifted bool) error {
	kn, err := p.drawSelection(r, src, ev)
	if err != nil {
		return err
	}
	var offsets []int
	if shifted {
		if ev.Shift < 0 || ev.Shift >= len(p.shifts) {
			return fmt.Errorf("shift %d of %d: %w", ev.Shift, len(p.shifts), errcode.ErrInvalidEvent)
		}
		offsets = p.shifts[ev.Shift]
	}

	sel := p.selects[ev.Select]
	for i, c := range sel {
		if kn[i] == 0 {
			continue
		}
		to := c
		if shifted {
			to = c + offsets[c]
			if to < 0 || to >= p.nc {
				return fmt.Errorf("shift %d maps compartment %d to %d: %w",
					ev.Shift, c, to, errcode.ErrInvalidEvent)
			}
		}
		src[c] -= kn[i]
		dst[to] += kn[i]
	}
	return nil
}

// drawSelection decides how many individuals the event moves and samples
// them from the selected compartments of u, proportionally to the current
// counts and without replacement, so compartment totals are preserved.
func (p *Processor) drawSelection(r *rand.Rand, u []int, ev Event) ([]int, error) {
	if ev.Select < 0 || ev.Select >= len(p.selects) {
		return nil, fmt.Errorf("select %d of %d: %w", ev.Select, len(p.selects), errcode.ErrInvalidEvent)
	}
	sel := p.selects[ev.Select]

	total := 0
	for _, c := range sel {
		total += u[c]
	}

	n := ev.N
	if ev.Proportion > 0 {
		n = int(math.Round(ev.Proportion * float64(total)))
	}
	if n > total {
		return nil, fmt.Errorf("event moves %d of %d individuals: %w",
			n, total, errcode.ErrNegativeState)
	}

	kn := make([]int, len(sel))
	switch {
	case n == total:
		// Take everyone; no need to sample.
		for i, c := range sel {
			kn[i] = u[c]
		}
	case len(sel) == 1:
		kn[0] = n
	default:
		// Multivariate hypergeometric draw: pick n individuals uniformly
		// from the pooled selected compartments, one at a time.
		remaining := make([]int, len(sel))
		for i, c := range sel {
			remaining[i] = u[c]
		}
		left := total
		for drawn := 0; drawn < n; drawn++ {
			pick := r.Intn(left)
			for i := range remaining {
				if pick < remaining[i] {
					kn[i]++
					remaining[i]--
					break
				}
				pick -= remaining[i]
			}
			left--
		}
	}
	return kn, nil
}
