// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sdc

import (
	"github.com/db47h/stacore/internal/except"
)

// ExceptionKind mirrors except.Kind with SDC-command-shaped names, so
// callers building a Store don't need to import the internal package
// directly.
type ExceptionKind uint8

const (
	FalsePath ExceptionKind = iota
	MultiCycle
	MaxDelay
	MinDelay
	PathDelay
	Filter
	LoopBreak
)

func (k ExceptionKind) toInternal() except.Kind {
	switch k {
	case FalsePath:
		return except.KindFalsePath
	case MultiCycle:
		return except.KindMultiCycle
	case MaxDelay:
		return except.KindMaxDelay
	case MinDelay:
		return except.KindMinDelay
	case PathDelay:
		return except.KindPathDelay
	case Filter:
		return except.KindFilter
	case LoopBreak:
		return except.KindLoop
	default:
		return except.KindFalsePath
	}
}

// Exception is the SDC-facing shape of a path exception: set_false_path,
// set_multicycle_path, set_max_delay/-from/-through/-to, set_min_delay,
// or a filter/loop-break marker (spec.md §4.11).
type Exception struct {
	ID       int
	Kind     ExceptionKind
	From     []string
	Thrus    [][]string
	To       []string
	IsFilter bool
}

func (e Exception) toInternal() except.Exception {
	from := make([]except.PinID, len(e.From))
	for i, p := range e.From {
		from[i] = except.PinID(p)
	}
	thrus := make([][]except.PinID, len(e.Thrus))
	for i, seg := range e.Thrus {
		s := make([]except.PinID, len(seg))
		for j, p := range seg {
			s[j] = except.PinID(p)
		}
		thrus[i] = s
	}
	to := make([]except.PinID, len(e.To))
	for i, p := range e.To {
		to[i] = except.PinID(p)
	}
	return except.Exception{
		ID:       e.ID,
		Kind:     e.Kind.toInternal(),
		From:     from,
		Thrus:    thrus,
		To:       to,
		IsFilter: e.IsFilter,
	}
}
