// Package errcode defines the solver's error taxonomy. Each failure a
// worker can latch maps onto exactly one of these sentinels; callers test
// with errors.Is. Reaching an absorbing state with no transitions left is
// a normal condition, not an error.
package errcode

import "errors"

var (
	// ErrAlloc is an allocation failure. Go aborts on heap exhaustion, so
	// this only surfaces from explicit sizing guards.
	ErrAlloc = errors.New("allocation failure")

	// ErrInvalidRate is a propensity that returned a non-finite or
	// negative rate, or a post-timestep callback that reported an error.
	ErrInvalidRate = errors.New("invalid rate")

	// ErrNegativeState is an event or transition that would drive a
	// compartment count below zero.
	ErrNegativeState = errors.New("negative state")

	// ErrInvalidEvent is a malformed scheduled event: bad node, dest,
	// select or shift index, or a proportion outside [0,1].
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidInput is a structural input error: mismatched shapes,
	// non-increasing tspan, bad thread count.
	ErrInvalidInput = errors.New("invalid input")
)
