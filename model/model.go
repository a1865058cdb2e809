// Package model defines the callable surface a compartment model presents
// to the solver, plus ready-made demo models. The solver never knows what
// the compartments mean; it only evaluates propensities and the
// post-timestep callback the host hands it.
package model

// Propensity computes the instantaneous rate of one transition in one
// node: u is the node's compartment counts, v its current auxiliary
// variables, ldata its read-only local parameters, gdata the global
// parameters, t the node's simulated time. Rates must be finite and
// non-negative.
type Propensity func(u []int, v, ldata, gdata []float64, t float64) float64

// PostStep runs once per node per day after all events. It may write the
// node's next auxiliary variables into vNew (reading the current v) and
// reports via its code whether the node's rates must be refreshed.
type PostStep func(vNew []float64, u []int, v, ldata, gdata []float64, node int, t float64) PostStepCode

// PostStepCode is the post-timestep verdict: negative is a model-defined
// fatal error, zero means the rates are still valid, positive requests a
// full rate refresh for the node.
type PostStepCode int

const (
	NoUpdate PostStepCode = 0
	Update   PostStepCode = 1
)
