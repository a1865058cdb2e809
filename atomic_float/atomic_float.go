// Package atomic_float provides a lock-free float64 cell. The solver's
// workers publish telemetry (current simulated day, step counts) that the
// monitoring path reads while the day loop is running; the cell CASes on
// the float's bit pattern so readers never take a lock.
package atomic_float

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// Float64 is a float64 updated and read atomically.
// NOTE: the unsafe pointer is never stored; it is taken and consumed in
// the same expression so the GC cannot move the field out from under it.
type Float64 struct {
	val float64
}

// New returns a cell holding val.
func New(val float64) *Float64 {
	return &Float64{val: val}
}

// Load reads the current value, synchronized with main memory.
func (f *Float64) Load() float64 {
	bits := atomic.LoadUint64((*uint64)(unsafe.Pointer(&f.val)))
	return math.Float64frombits(bits)
}

// Store overwrites the value unconditionally.
func (f *Float64) Store(val float64) {
	atomic.StoreUint64((*uint64)(unsafe.Pointer(&f.val)), math.Float64bits(val))
}

// Add adds delta, retrying until the CAS lands, and returns the new value.
// With a single writer per cell the retry loop runs once.
func (f *Float64) Add(delta float64) float64 {
	for {
		old := f.Load()
		next := old + delta
		if atomic.CompareAndSwapUint64(
			(*uint64)(unsafe.Pointer(&f.val)),
			math.Float64bits(old),
			math.Float64bits(next)) {
			return next
		}
	}
}
