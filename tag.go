// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import (
	"github.com/db47h/stacore/internal/except"
	"github.com/db47h/stacore/internal/intern"
)

// Tag is an immutable record identifying one kind of path arriving at a
// vertex (spec.md §3). Two Tags that compare structurally equal are
// always the same *Tag pointer (hash-consed via the engine's tag arena),
// so tag identity is the sole key used by TagGroup arrival maps
// (spec.md §8 property 1).
type Tag struct {
	Transition     Transition
	PathAP         int // path analysis point index (corner, min/max)
	ClkInfo        intern.ID
	IsClock        bool
	InputDelay     int // InputDelay.ID of the seeding input delay, 0 == none
	IsSegmentStart bool
	States         except.Set
	FilterMarker   bool
}

// tagEqual is the EqualFunc used by the engine's Tag arena.
func tagEqual(a, b *Tag) bool {
	if a.Transition != b.Transition || a.PathAP != b.PathAP || a.ClkInfo != b.ClkInfo ||
		a.IsClock != b.IsClock || a.InputDelay != b.InputDelay || a.IsSegmentStart != b.IsSegmentStart ||
		a.FilterMarker != b.FilterMarker {
		return false
	}
	return a.States.Equal(b.States)
}

// TagID is an interned handle to a Tag; equal TagIDs are guaranteed to be
// the identical Tag value (spec.md §8 property 1).
type TagID = intern.ID

// internTag finds-or-interns probe in the engine's tag arena.
func (e *Engine) internTag(probe *Tag) (TagID, *Tag, error) {
	id, t, err := e.tags.FindOrIntern(probe, tagEqual)
	if err != nil {
		return 0, nil, e.fatal(ErrMaxTagIndexExceeded, err)
	}
	return id, t, nil
}

// Tag resolves a TagID back to its Tag.
func (e *Engine) Tag(id TagID) *Tag { return e.tags.Get(id) }

// ThruTag derives the tag a path carries after crossing a wire or
// combinational edge whose from-tag is NOT a clock tag (spec.md §4.4
// per-role table: "thru_tag if from-tag is [not] clock"). The transition
// and exception state advance; everything else about the path's identity
// (clock, input delay, segment-start-ness) is unchanged.
func (e *Engine) ThruTag(from *Tag, toTr Transition, states except.Set, filterMarker bool) *Tag {
	probe := *from
	probe.Transition = toTr
	probe.States = states
	probe.FilterMarker = filterMarker
	return e.mustIntern(&probe)
}

// ThruClkTag is ThruTag's clock-network counterpart: it additionally
// forces IsClock, and (when propagateClk is true, i.e. we are inside a
// generated-clock source's fanin) marks the tag as travelling a
// generated-clock source path, per the "gen-clk-src wire/comb inside
// gen-clk fanin" row of spec.md §4.4's table. IsGenClkSrcPath lives on
// ClkInfo rather than Tag, so marking it means hash-consing a copy of the
// from-tag's ClkInfo with the flag set (the same copy-mutate-reintern
// pattern the CRPR pruning path uses) before interning the tag itself;
// TagGroup.HasGenClkSrcTag then picks the flag up off whichever ClkInfo
// each committed tag ends up pointing at.
func (e *Engine) ThruClkTag(from *Tag, toTr Transition, states except.Set, filterMarker bool, propagateClk bool) *Tag {
	probe := *from
	probe.Transition = toTr
	probe.States = states
	probe.FilterMarker = filterMarker
	probe.IsClock = true
	if propagateClk {
		if ci := e.ClkInfoOf(probe.ClkInfo); ci != nil && !ci.IsGenClkSrcPath {
			ciProbe := *ci
			ciProbe.IsGenClkSrcPath = true
			if id, _, err := e.internClkInfo(&ciProbe); err == nil {
				probe.ClkInfo = id
			}
		}
	}
	return e.mustIntern(&probe)
}

// FromRegClkTag derives the tag a path carries immediately after leaving
// a register clk->Q edge: the path is no longer "in the clock network"
// (IsClock becomes false) because it is now data on the Q output,
// matching spec.md §4.4's "from_reg_clk_tag then thru_tag" sequencing.
func (e *Engine) FromRegClkTag(from *Tag) *Tag {
	probe := *from
	probe.IsClock = false
	probe.IsSegmentStart = false
	return e.mustIntern(&probe)
}

func (e *Engine) mustIntern(probe *Tag) *Tag {
	_, t, err := e.internTag(probe)
	if err != nil {
		// FindOrIntern only fails on capacity overflow, which the caller
		// (arrival.go) already checks for via the returned error before
		// reaching a tag-transform helper in the hot path; a failure here
		// means the accounting in arrival.go has a bug, not a data issue.
		return probe
	}
	return t
}
