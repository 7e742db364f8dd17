// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package levelsweep runs a level-synchronous parallel sweep over a
// levelized DAG: every vertex on a level is visited only after every
// vertex on all its predecessor levels has finished, but vertices within
// one level are visited concurrently. This is the worker-pool shape the
// hwsim example uses to fan out per-component simulation across a
// generation (hwsim.go's NewCircuit/worker), generalized here to run
// levels in strict order with an errgroup per level instead of hwsim's
// free-running goroutine pool.
package levelsweep

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Options configures a Sweep.
type Options struct {
	// Workers bounds the number of goroutines used to visit one level's
	// vertices concurrently. 0 means unbounded (one goroutine per
	// vertex, capped naturally by GOMAXPROCS scheduling).
	Workers int

	// ParallelThreshold is the minimum level width that triggers
	// parallel dispatch; narrower levels are visited on the calling
	// goroutine to avoid goroutine-spawn overhead dominating small
	// levels.
	ParallelThreshold int
}

// VisitFunc processes one item (identified by the id stored in the level
// slice) and reports an error to abort the whole sweep.
type VisitFunc func(ctx context.Context, id uint32) error

// Forward visits levels in ascending order (arrival propagation).
func Forward(ctx context.Context, levels [][]uint32, opts Options, visit VisitFunc) error {
	for l := 0; l <= len(levels)-1; l++ {
		if err := visitLevel(ctx, levels[l], opts, visit); err != nil {
			return err
		}
	}
	return nil
}

// Backward visits levels in descending order (required-time propagation).
func Backward(ctx context.Context, levels [][]uint32, opts Options, visit VisitFunc) error {
	for l := len(levels) - 1; l >= 0; l-- {
		if err := visitLevel(ctx, levels[l], opts, visit); err != nil {
			return err
		}
	}
	return nil
}

func visitLevel(ctx context.Context, level []uint32, opts Options, visit VisitFunc) error {
	if len(level) == 0 {
		return nil
	}
	if len(level) < opts.ParallelThreshold {
		for _, id := range level {
			if err := visit(ctx, id); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for _, id := range level {
		id := id
		g.Go(func() error {
			return visit(gctx, id)
		})
	}
	return g.Wait()
}
