// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import (
	"context"

	"github.com/db47h/stacore/internal/except"
)

// seedClocks installs the initial clock-network tags at every clock
// source pin (spec.md §4.7, C7): ideal source latency plus, for
// propagated clocks, a zero-length seed that FindClkArrivals then
// carries through the clock tree. Generated clocks additionally resolve
// their insertion delay relative to their generating clock's arrival at
// the generated-clock source pin.
func (e *Engine) seedClocks(ctx context.Context) error {
	if err := e.ensureInsertionDelays(ctx); err != nil {
		return err
	}
	for _, v := range e.graph.Vertices[1:] {
		clocks := e.sdc.ClocksAt(v.ID)
		if len(clocks) == 0 {
			continue
		}
		b := e.NewBuilder(ModeMax)
		b.Init(v)
		for _, clk := range clocks {
			for _, tr := range [...]Transition{Rise, Fall} {
				ci := &ClkInfo{
					ClockEdge:      clk.Edge,
					ClockSourcePin: v.ID,
					Propagated:     e.sdc.IsPropagated(clk, v.ID),
					GenClkSrcPin:   clk.GenClkSrc,
					PulseSense:     e.netlist.PulseClockSense(v.Pin),
					EdgeTime:       Delay{Mean: clockWaveformEdgeTime(clk)},
					SourceLatency:  e.genClkInsertion[clk.ID],
					Uncertainty:    e.sdc.Uncertainty(clk, 0),
					CRPRClkPin:     v.ID,
				}
				ciID, ci2, err := e.internClkInfo(ci)
				if err != nil {
					return err
				}
				e.noteFilterClkInfo(ciID)
				tag := &Tag{
					Transition: tr,
					ClkInfo:    ciID,
					IsClock:    true,
					States:     e.except.FromClkStates(except.PinID(v.Pin)),
				}
				tagID, _, err := e.internTag(tag)
				if err != nil {
					return err
				}
				e.noteFilterTag(tagID)
				existing, cur, idx, found := b.TagMatch(tagID)
				arrival := Delay{Mean: ci2.EdgeTime.Value() + ci2.SourceLatency.Value()}
				if !found || ModeMax.Dominates(arrival, cur) {
					b.SetMatchArrival(tagID, existing, arrival, idx, PathVertexRep{VertexID: v.ID})
				}
			}
		}
		gid, arrivals, prev, err := b.CopyArrivals()
		if err != nil {
			return err
		}
		v.TagGroup = gid
		v.Arrivals = arrivals
		v.PrevPath = prev
	}
	e.clkSeeded = true
	return nil
}

// ensureInsertionDelays resolves each generated clock's source latency
// relative to the arrival of its generating clock at the generated
// clock's source pin (spec.md §4.7 "generated clocks resolve insertion
// delay from the generating clock's arrival"), grounded on
// Search::clockInsertion's generated-clock branch
// (genclks_->insertionDelay(clk, pin, tr, early_late, path_ap)): the
// resolved value is cached in e.genClkInsertion, keyed by ClockDef.ID, so
// seedClocks can read it back into each generated clock's ClkInfo.
// Ordinary (non-generated) clocks are untouched; their source latency
// stays zero until a caller wires set_clock_latency support in.
//
// The generated-clock source pin may itself sit on a feedback path
// driven back through the very PLL the generated clock configures (a
// gen-clk source whose own fanin passes through a divider fed by the
// PLL's own output). The original tool's insertion-delay resolver does
// not special-case that cycle; it relies on the same disabled-loop /
// dynamic-loop-breaking machinery used for ordinary combinational loops
// to keep the recursion finite, and this port preserves that behavior
// rather than adding an explicit feedback-detection pass (see the Open
// Question log in DESIGN.md).
func (e *Engine) ensureInsertionDelays(ctx context.Context) error {
	for _, v := range e.graph.Vertices[1:] {
		for _, clk := range e.sdc.ClocksAt(v.ID) {
			if !clk.IsGenerated || clk.GenClkSrc == 0 {
				continue
			}
			e.genClkInsertion[clk.ID] = e.resolveMasterInsertion(clk.GenClkSrc)
		}
	}
	return nil
}

// resolveMasterInsertion returns the generating clock's own arrival at
// srcVertex, the value a generated clock's insertion delay is defined
// relative to. ensureInsertionDelays runs before any vertex is seeded, so
// srcVertex's Arrivals are normally still empty on a design's first
// FindAllArrivals call; in that (common, ideal-master) case this falls
// back to the master clock's declared waveform edge time directly rather
// than waiting for a propagated arrival that will never come from a
// clock source pin (clock source pins have no fanin to propagate
// through). When srcVertex does already carry arrivals — a design that
// has run a prior analysis pass, or a master clock reached via
// already-propagated clock-network vertices — the dominant one of those
// is used instead, matching a propagated master's actual insertion.
func (e *Engine) resolveMasterInsertion(srcVertex uint32) Delay {
	if src := e.graph.Vertex(srcVertex); src != nil && len(src.Arrivals) > 0 {
		best := ModeMax.WorstInitial()
		for _, a := range src.Arrivals {
			if ModeMax.Dominates(a, best) {
				best = a
			}
		}
		return best
	}
	for _, mclk := range e.sdc.ClocksAt(srcVertex) {
		return Delay{Mean: clockWaveformEdgeTime(mclk)}
	}
	return Delay{}
}

// seedStartpoints installs the initial data-path tags at every
// non-clock startpoint: top-level input ports, internal (segment)
// input-delay pins, and unconstrained roots when ReportUnconstrained is
// set (spec.md §4.7).
func (e *Engine) seedStartpoints(ctx context.Context, mode AnalysisMode) error {
	return e.VisitStartpoints(VertexVisitorFunc(func(v *Vertex) error {
		if len(e.sdc.ClocksAt(v.ID)) > 0 {
			return nil // clock source pins are seeded by seedClocks
		}
		return e.seedOneStartpoint(v, mode)
	}))
}

func (e *Engine) seedOneStartpoint(v *Vertex, mode AnalysisMode) error {
	b := e.NewBuilder(mode)
	b.Init(v)

	delays := e.sdc.InputDelaysAt(v.ID)
	if len(delays) == 0 {
		// Unclocked, undelayed root: register clock pins always get a
		// zero-arrival origination tag; other roots only when
		// ReportUnconstrained is set and they are not top-level inputs
		// (spec.md §4.7 "unclocked roots").
		if !v.IsRegisterClock() && (!e.cfg.ReportUnconstrained || v.Flags.Has(FlagTopLevelInput)) {
			return nil
		}
		tag := &Tag{Transition: Rise, IsSegmentStart: v.Flags.Has(FlagPathDelayInternalEndpoint)}
		if err := e.seedTagInto(b, tag, Delay{}, v); err != nil {
			return err
		}
		tag2 := &Tag{Transition: Fall, IsSegmentStart: v.Flags.Has(FlagPathDelayInternalEndpoint)}
		if err := e.seedTagInto(b, tag2, Delay{}, v); err != nil {
			return err
		}
	} else {
		for _, id := range delays {
			tag := &Tag{
				Transition:     id.Transition,
				InputDelay:     id.ID,
				IsSegmentStart: id.Internal,
			}
			if err := e.seedTagInto(b, tag, id.Delay, v); err != nil {
				return err
			}
		}
	}

	gid, arrivals, prev, err := b.CopyArrivals()
	if err != nil {
		return err
	}
	if arrivalsChanged(e, v, gid, arrivals) {
		e.TNSNotifyBefore(v)
		v.TagGroup = gid
		v.Arrivals = arrivals
		v.PrevPath = prev
	}
	return nil
}

// seedTagInto interns probe (after attaching any -from exception state
// rooted at v's pin, spec.md §4.11) and, if it dominates whatever the
// builder already holds for that tag, records arrival as its origination
// value.
func (e *Engine) seedTagInto(b *Builder, probe *Tag, arrival Delay, v *Vertex) error {
	if probe.States == nil {
		probe.States = e.except.FromStates(except.PinID(v.Pin))
		if probe.IsSegmentStart {
			probe.States = append(probe.States, e.except.ThruStates(except.PinID(v.Pin))...)
		}
	}
	tagID, _, err := e.internTag(probe)
	if err != nil {
		return err
	}
	e.noteFilterTag(tagID)
	existing, cur, idx, found := b.TagMatch(tagID)
	if !found || b.Mode().Dominates(arrival, cur) {
		b.SetMatchArrival(tagID, existing, arrival, idx, PathVertexRep{VertexID: v.ID})
	}
	return nil
}

// seedFilterSegment installs segment-start tags, marked with the
// exception engine's filter state, at every pin named by a
// set_max_delay/set_min_delay -from exception carrying the given
// filterID (spec.md §4.9). Startpoints reached "possibly through
// hierarchical pins" are expanded via NetlistView.HierarchicalPins.
func (e *Engine) seedFilterSegment(ctx context.Context, mode AnalysisMode, filterID int) error {
	for _, v := range e.graph.Vertices[1:] {
		segs := e.sdc.PathDelaySegmentsAt(v.ID)
		for _, seg := range segs {
			if seg.ID != filterID {
				continue
			}
			pins := e.netlist.HierarchicalPins(v.Pin)
			if len(pins) == 0 {
				pins = []PinID{v.Pin}
			}
			for range pins {
				if err := e.seedFilterAt(v, seg, mode); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (e *Engine) seedFilterAt(v *Vertex, seg PathDelayException, mode AnalysisMode) error {
	b := e.NewBuilder(mode)
	b.Init(v)
	st := except.Set{{Kind: except.KindFilter, ExceptionID: seg.ID, IsFilter: true}}
	for _, tr := range [...]Transition{Rise, Fall} {
		tag := &Tag{
			Transition:     tr,
			IsSegmentStart: true,
			States:         st,
			FilterMarker:   true,
		}
		if err := e.seedTagInto(b, tag, Delay{}, v); err != nil {
			return err
		}
	}
	gid, arrivals, prev, err := b.CopyArrivals()
	if err != nil {
		return err
	}
	v.TagGroup = gid
	v.Arrivals = arrivals
	v.PrevPath = prev
	return nil
}

// seedOrigination gives the seeder a chance to (re-)inject an
// origination tag directly into an in-flight arrival visit's builder,
// used when a startpoint is revisited after an incremental invalidation
// rather than through the one-shot seedStartpoints/seedClocks entry
// points (spec.md §4.5 step 5, §4.7).
func (e *Engine) seedOrigination(ctx context.Context, v *Vertex, b *Builder, mode AnalysisMode, apIndex int) error {
	if len(e.sdc.ClocksAt(v.ID)) > 0 {
		return nil // clock source pins never re-originate mid-sweep
	}
	delays := e.sdc.InputDelaysAt(v.ID)
	for _, id := range delays {
		tag := &Tag{
			Transition:     id.Transition,
			InputDelay:     id.ID,
			IsSegmentStart: id.Internal,
		}
		if err := e.seedTagInto(b, tag, id.Delay, v); err != nil {
			return err
		}
	}
	return nil
}
