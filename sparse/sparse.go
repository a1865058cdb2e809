// Package sparse holds the read-only compressed sparse column (CSC) view
// the solver uses for its static integer matrices: the dependency graph G,
// the state-change matrix N, the select matrix E and the shift matrix S.
// A view never copies the host's index arrays; only the value array is
// converted (the host may store values as doubles).
package sparse

import (
	"fmt"
	"math"

	"stochnet/errcode"
)

// Matrix is a read-only CSC matrix over (ir, jc, pr) triples: column j
// spans row indices Ir[Jc[j]:Jc[j+1]] with values Pr at the same offsets.
// A nil/empty Pr means a pattern matrix; every stored entry counts as 1.
type Matrix struct {
	rows, cols int
	ir, jc     []int
	pr         []int
}

// NewView wraps host-provided CSC triples without copying. The integer
// value array may be nil for pattern (boolean) matrices.
func NewView(rows, cols int, ir, jc, pr []int) (*Matrix, error) {
	m := &Matrix{rows: rows, cols: cols, ir: ir, jc: jc, pr: pr}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewViewFromDoubles wraps CSC triples whose value array arrives in the
// host's double-precision storage. Conversion to integer is explicit here;
// a value that is not a representable integer rejects the whole matrix.
func NewViewFromDoubles(rows, cols int, ir, jc []int, pr []float64) (*Matrix, error) {
	var vals []int
	if pr != nil {
		vals = make([]int, len(pr))
		for i, x := range pr {
			if math.IsNaN(x) || math.IsInf(x, 0) || math.Trunc(x) != x {
				return nil, fmt.Errorf("matrix value pr[%d]=%v is not an integer: %w",
					i, x, errcode.ErrInvalidInput)
			}
			vals[i] = int(x)
		}
	}
	return NewView(rows, cols, ir, jc, vals)
}

func (m *Matrix) validate() (err error) {
	if m.rows < 0 || m.cols < 0 {
		err = fmt.Errorf("matrix is %dx%d: %w", m.rows, m.cols, errcode.ErrInvalidInput)
		return
	}
	if len(m.jc) != m.cols+1 {
		err = fmt.Errorf("column pointer has length %d, want %d: %w",
			len(m.jc), m.cols+1, errcode.ErrInvalidInput)
		return
	}
	if m.jc[0] != 0 || m.jc[m.cols] != len(m.ir) {
		err = fmt.Errorf("column pointer spans [%d, %d], want [0, %d]: %w",
			m.jc[0], m.jc[m.cols], len(m.ir), errcode.ErrInvalidInput)
		return
	}
	if m.pr != nil && len(m.pr) != len(m.ir) {
		err = fmt.Errorf("value array has length %d, want %d: %w",
			len(m.pr), len(m.ir), errcode.ErrInvalidInput)
		return
	}
	for j := 0; j < m.cols; j++ {
		if m.jc[j] > m.jc[j+1] {
			err = fmt.Errorf("column pointer decreases at column %d: %w", j, errcode.ErrInvalidInput)
			return
		}
	}
	for k, r := range m.ir {
		if r < 0 || r >= m.rows {
			err = fmt.Errorf("row index ir[%d]=%d outside [0,%d): %w",
				k, r, m.rows, errcode.ErrInvalidInput)
			return
		}
	}
	return
}

// Rows returns the row dimension.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the column dimension.
func (m *Matrix) Cols() int { return m.cols }

// ColRows returns the row indices stored in column j, a subslice of the
// host array. Callers must not mutate it.
func (m *Matrix) ColRows(j int) []int {
	return m.ir[m.jc[j]:m.jc[j+1]]
}

// ColLen returns the number of stored entries in column j.
func (m *Matrix) ColLen(j int) int {
	return m.jc[j+1] - m.jc[j]
}

// Visit walks the stored entries of column j in storage order.
func (m *Matrix) Visit(j int, fn func(row, val int)) {
	for k := m.jc[j]; k < m.jc[j+1]; k++ {
		v := 1
		if m.pr != nil {
			v = m.pr[k]
		}
		fn(m.ir[k], v)
	}
}
