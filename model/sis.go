package model

import (
	"math"

	"stochnet/sparse"
)

// Definition bundles everything the solver needs from a compartment model:
// the dimension, the static matrices and the callback table.
type Definition struct {
	Nc          int
	Transitions []Propensity
	PostStep    PostStep
	G, N, E, S  *sparse.Matrix
}

// SIS compartment indices.
const (
	Susceptible = 0
	Infected    = 1
)

// must unwraps matrix construction for the literal matrices below, which
// cannot fail once the package tests pass.
func must(m *sparse.Matrix, err error) *sparse.Matrix {
	if err != nil {
		panic(err)
	}
	return m
}

// SIS builds the two-compartment susceptible-infected-susceptible model:
// infection fires at upsilon*S*I/(S+I), recovery at gamma*I. Both
// transitions touch both counts, so the dependency graph is full.
//
// Select columns: 0 = {S}, 1 = {I}, 2 = {S, I}. Shift column 0 moves a
// susceptible one compartment up, i.e. S -> I on a shifted transfer.
func SIS(upsilon, gamma float64) *Definition {
	infect := func(u []int, v, ldata, gdata []float64, t float64) float64 {
		pop := u[Susceptible] + u[Infected]
		if pop == 0 {
			return 0
		}
		return upsilon * float64(u[Susceptible]) * float64(u[Infected]) / float64(pop)
	}
	recoveryFn := func(u []int, v, ldata, gdata []float64, t float64) float64 {
		return gamma * float64(u[Infected])
	}

	return &Definition{
		Nc:          2,
		Transitions: []Propensity{infect, recoveryFn},
		G:           must(sparse.NewView(2, 2, []int{0, 1, 0, 1}, []int{0, 2, 4}, nil)),
		N: must(sparse.NewView(2, 2,
			[]int{0, 1, 0, 1},
			[]int{0, 2, 4},
			[]int{-1, 1, 1, -1})),
		E: must(sparse.NewView(2, 3,
			[]int{0, 1, 0, 1},
			[]int{0, 1, 2, 4},
			nil)),
		S: must(sparse.NewView(2, 1, []int{0}, []int{0, 1}, []int{1})),
	}
}

// SIR compartment indices.
const (
	SirSusceptible = 0
	SirInfected    = 1
	SirRecovered   = 2
)

// SIRPressure builds a three-compartment model driven by one auxiliary
// variable per node, the environmental infectious pressure phi. Infection
// fires at beta*phi*S with the per-node contact rate beta in ldata[0];
// recovery fires at the global rate gdata[0]. The post-timestep callback
// decays phi and feeds it from the node's current prevalence, so every day
// ends with a rate refresh.
//
// Select columns: 0 = {S}, 1 = {I}, 2 = {S, I, R}. Shift column 0 maps
// S -> I and I -> R (one compartment up), used by shifted transfers.
func SIRPressure(decay float64) *Definition {
	infect := func(u []int, v, ldata, gdata []float64, t float64) float64 {
		return ldata[0] * v[0] * float64(u[SirSusceptible])
	}
	recoveryFn := func(u []int, v, ldata, gdata []float64, t float64) float64 {
		return gdata[0] * float64(u[SirInfected])
	}
	pressure := func(vNew []float64, u []int, v, ldata, gdata []float64, node int, t float64) PostStepCode {
		pop := u[SirSusceptible] + u[SirInfected] + u[SirRecovered]
		prevalence := 0.0
		if pop > 0 {
			prevalence = float64(u[SirInfected]) / float64(pop)
		}
		phi := decay*v[0] + (1-decay)*prevalence
		if math.IsNaN(phi) || phi < 0 {
			return PostStepCode(-1)
		}
		vNew[0] = phi
		return Update
	}

	return &Definition{
		Nc:          3,
		Transitions: []Propensity{infect, recoveryFn},
		PostStep:    pressure,
		G:           must(sparse.NewView(2, 2, []int{0, 1, 0, 1}, []int{0, 2, 4}, nil)),
		N: must(sparse.NewView(3, 2,
			[]int{0, 1, 1, 2},
			[]int{0, 2, 4},
			[]int{-1, 1, -1, 1})),
		E: must(sparse.NewView(3, 3,
			[]int{0, 1, 0, 1, 2},
			[]int{0, 1, 2, 5},
			nil)),
		S: must(sparse.NewView(3, 1, []int{0, 1}, []int{0, 2}, []int{1, 1})),
	}
}
