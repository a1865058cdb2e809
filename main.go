/*
Stochnet is a parallel stochastic simulation engine for compartment models
on a network of interacting nodes. Each node carries integer compartment
counts driven by a per-node Gillespie loop; scheduled events move
individuals within and between nodes; the trajectory is sampled on a day
grid. This harness wires the demo SIS metapopulation into the solver and
serves a live trajectory view while it runs; the engine itself lives in
the solver package and performs no I/O.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	channerics "github.com/niceyeti/channerics/channels"

	"stochnet/config"
	"stochnet/events"
	"stochnet/model"
	"stochnet/server"
	"stochnet/solver"
)

var (
	nworkers *int
	host     *string
	port     *string
	addr     string
)

func init() {
	nworkers = flag.Int("nworkers", 0, "number of solver workers (0 = use the config's worker count)")
	host = flag.String("host", "", "The host ip")
	port = flag.String("port", "8080", "The host port")
	flag.Parse()
	addr = *host + ":" + *port
}

// demoEvents schedules a weekly ring migration: one percent of every
// node's individuals move to the next node, susceptible and infected
// alike.
func demoEvents(nn, days int) []events.Event {
	var evts []events.Event
	for day := 7; day < days; day += 7 {
		for n := 0; n < nn; n++ {
			evts = append(evts, events.Event{
				Kind:       events.ExternalTransfer,
				Time:       day,
				Node:       n,
				Dest:       (n + 1) % nn,
				Proportion: 0.01,
				Select:     2, // {S, I}
				Shift:      -1,
			})
		}
	}
	return evts
}

func runApp() (err error) {
	var cfg *config.SimConfig
	if cfg, err = config.FromYaml("./config.yaml"); err != nil {
		return
	}

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	runCtx, runCancel, err := cfg.WithRunDeadline(appCtx)
	if err != nil {
		return
	}
	defer runCancel()

	def := model.SIS(
		cfg.GetHyperParamOrDefault("upsilon", 0.17),
		cfg.GetHyperParamOrDefault("gamma", 0.1))

	nn := cfg.Nodes
	days := cfg.Days
	population := int(cfg.GetHyperParamOrDefault("population", 1000))
	infected := int(cfg.GetHyperParamOrDefault("initInfected", 10))

	u0 := make([]int, nn*def.Nc)
	for n := 0; n < nn; n++ {
		u0[n*def.Nc+model.Susceptible] = population
	}
	// Seed the outbreak in node 0.
	u0[model.Susceptible] -= infected
	u0[model.Infected] = infected

	tspan := make([]float64, days+1)
	for k := range tspan {
		tspan[k] = float64(k)
	}

	workers := cfg.Workers
	if *nworkers > 0 {
		workers = *nworkers
	}

	frames := make(chan solver.Frame, 8)
	prob := &solver.Problem{
		Nn:          nn,
		U0:          u0,
		G:           def.G,
		N:           def.N,
		E:           def.E,
		S:           def.S,
		Tspan:       tspan,
		Events:      demoEvents(nn, days),
		Transitions: def.Transitions,
		PostStep:    def.PostStep,
		U:           make([]int, nn*def.Nc*len(tspan)),
		Frames:      frames,
		Nthread:     workers,
		Seed:        cfg.Seed,
	}

	var s *solver.Solver
	if s, err = solver.New(prob); err != nil {
		return
	}

	go func() {
		defer close(frames)
		if err := s.Run(runCtx); err != nil {
			fmt.Println("solver:", err)
			return
		}
		fmt.Println("solver: done")
	}()

	// Progress line while the run is live.
	go func() {
		for range channerics.NewTicker(appCtx.Done(), 2*time.Second) {
			fmt.Printf("day %.0f, %.0f transitions fired\n", s.Day(), s.Fired())
		}
	}()

	initial := solver.Frame{Column: 0, Time: tspan[0], U: u0}
	var srv *server.Server
	if srv, err = server.NewServer(
		appCtx,
		addr,
		nn,
		def.Nc,
		[]string{"S", "I"},
		initial,
		frames,
	); err != nil {
		return
	}
	err = srv.Serve()
	return
}

func main() {
	if err := runApp(); err != nil {
		fmt.Println(err)
	}
}
