// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package sdc provides an in-memory constraint store implementing
// stacore.ConstraintStore, playing the same role for this module that a
// parsed Synopsys Design Constraints file plays for the original tool
// (SPEC_FULL.md §2/§3.4): clocks, input delays, path-delay exceptions,
// derating and uncertainty, all held as plain Go values rather than
// parsed from SDC syntax (constraint-file parsing is out of scope, per
// spec.md's Non-goals).
package sdc

import (
	"github.com/db47h/stacore"
)

// Clock is one create_clock/create_generated_clock record.
type Clock struct {
	Def        stacore.ClockDef
	Latency    stacore.Delay
	Propagated bool
}

// Uncertainty is a per-clock, per-analysis-point uncertainty margin.
type Uncertainty struct {
	ClockID  int
	APIndex  int
	Setup    stacore.Delay
	Hold     stacore.Delay
}
