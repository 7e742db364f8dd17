// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import "github.com/db47h/stacore/internal/intern"

// Config holds the engine's tunable limits and feature switches. Every
// field documents its default, following the AleutianLocal example's
// tdg.Config convention of a documented-default-in-comment per field
// rather than a separate defaults table that can drift out of sync.
type Config struct {
	// TagIndexMax bounds the tag intern table (spec.md §4.1
	// tag_index_max). Exceeding it aborts the analysis.
	// Default: 1<<20.
	TagIndexMax intern.ID

	// TagGroupIndexMax bounds the tag-group intern table (spec.md §4.1
	// tag_group_index_max).
	// Default: 1<<18.
	TagGroupIndexMax intern.ID

	// FuzzyTolerance is the epsilon used by FuzzyEqual when deciding
	// whether a vertex's arrivals changed (spec.md §4.5 step 6).
	// Default: 1e-10.
	FuzzyTolerance float64

	// Workers is the number of goroutines used per level by the
	// parallel level-sweep BFS. 0 means no limit: a level dispatched in
	// parallel gets one goroutine per vertex.
	// Default: 0.
	Workers int

	// ParallelThreshold is the minimum level width that triggers
	// parallel dispatch for that level; narrower levels run
	// sequentially for cache locality (grounded on the AleutianLocal
	// example's parallelThreshold constant).
	// Default: 32.
	ParallelThreshold int

	// Statistical is not read by the engine: every Delay carries a
	// (Mean, Sigma) pair whichever way it is set (spec.md §3 Arrival).
	// Default: false.
	Statistical bool

	// ReportUnconstrained, when set, seeds a zero arrival at unclocked,
	// undelayed roots that are not top-level inputs (spec.md §4.7) and
	// counts register clock pins as endpoints (spec.md §4.10).
	// Default: false.
	ReportUnconstrained bool
}

// DefaultConfig returns the configuration a new Engine uses unless
// overridden.
func DefaultConfig() Config {
	return Config{
		TagIndexMax:       1 << 20,
		TagGroupIndexMax:  1 << 18,
		FuzzyTolerance:    1e-10,
		Workers:           0,
		ParallelThreshold: 32,
	}
}
