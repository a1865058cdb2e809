// Package rng hands out the solver's random number streams. One master
// Mersenne-Twister generator is seeded from the caller's seed (or the wall
// clock when the caller passes none) and used exactly once, to derive one
// child seed per worker. Results therefore depend on the master seed and
// the worker count, never on goroutine scheduling.
package rng

import (
	"math/rand"
	"time"

	"github.com/seehuhn/mt19937"
)

// New returns a Mersenne-Twister backed generator for the given seed.
func New(seed int64) *rand.Rand {
	src := mt19937.New()
	src.Seed(seed)
	return rand.New(src)
}

// Streams derives nworkers independent generators from masterSeed.
// Passing the same (masterSeed, nworkers) pair reproduces the exact same
// child streams. Child i depends only on masterSeed and i, so runs with
// different worker counts share their leading streams.
func Streams(masterSeed int64, nworkers int) []*rand.Rand {
	master := New(masterSeed)
	children := make([]*rand.Rand, nworkers)
	for i := range children {
		children[i] = New(master.Int63())
	}
	return children
}

// WallClockSeed is the fallback master seed when the caller supplies none.
func WallClockSeed() int64 {
	return time.Now().UnixNano()
}
