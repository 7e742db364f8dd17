// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import (
	"context"
	"sort"

	"github.com/db47h/stacore/internal/except"
)

// Action is a FromToPathVisitor's decision after inspecting one
// (from-path, arc, to-path) triple (spec.md §4.4, C4).
type Action uint8

const (
	Continue Action = iota
	Stop
)

// VisitContext carries every field spec.md §4.4 lists for
// visit_from_to_path, plus a Required field used only by the backward
// (required) traversal.
type VisitContext struct {
	FromPin     PinID
	FromVertex  *Vertex
	FromTr      Transition
	FromTag     *Tag
	FromTagID   TagID
	FromPath    PathVertexRep
	Edge        *Edge
	Arc         TimingArc
	ArcDelay    Delay
	ToVertex    *Vertex
	ToTr        Transition
	ToTag       *Tag
	ToTagID     TagID
	ToArrival   Delay // forward traversal: from_arrival + arc_delay
	Mode        AnalysisMode
	PathAP      int
	FromArrival Delay

	// Required-only:
	ToRequired Delay
}

// FromToPathVisitor is implemented by whatever drives one sweep step
// (the arrival propagator's per-vertex visit, the required propagator's
// per-vertex visit, or a seeding helper walking fanins for a filter).
type FromToPathVisitor interface {
	VisitFromToPath(ctx *VisitContext) Action
}

// FromToPathVisitorFunc adapts a plain function.
type FromToPathVisitorFunc func(ctx *VisitContext) Action

func (f FromToPathVisitorFunc) VisitFromToPath(ctx *VisitContext) Action { return f(ctx) }

// LoopPendingFunc reports whether vertex v carries a pending
// loop-tagged arrival that permits crossing a disabled-loop edge
// (spec.md §4.2 Eval predicate).
type LoopPendingFunc func(v *Vertex, tag *Tag) bool

// VisitFaninPaths is the forward half of the path visitor framework
// (spec.md §4.4, C4): for vertex v, iterate its fanin edges in
// deterministic (edge-id) order, then over every from-path present at
// each fanin's from-vertex tag-group, then over each arc applicable to
// that from-path's transition, calling visitor once per resulting
// triple.
func (e *Engine) VisitFaninPaths(ctx context.Context, pred SearchPred, v *Vertex, mode AnalysisMode, apIndex int, loopPending LoopPendingFunc, visitor FromToPathVisitor) error {
	fanin := append([]uint32(nil), v.Fanin...)
	sort.Slice(fanin, func(i, j int) bool { return fanin[i] < fanin[j] })

	for _, eid := range fanin {
		edge := e.graph.Edge(eid)
		fromVertex := e.graph.Vertex(edge.From)
		tg := e.TagGroupOf(fromVertex.TagGroup)
		if tg == nil {
			continue
		}
		for i, fromTagID := range tg.Tags {
			fromTag := e.Tag(fromTagID)
			pending := false
			if loopPending != nil {
				pending = loopPending(fromVertex, fromTag)
			}
			if !pred.SearchThru(e.graph, edge, fromTag.Transition, pending) {
				continue
			}
			// segment-start filtering (spec.md §4.4): a path that is not
			// itself a segment-start tag may not leave a segment-start pin.
			if fromVertex.Flags.Has(FlagPathDelayInternalEndpoint) && !fromTag.IsSegmentStart {
				continue
			}
			fromArrival := fromVertex.Arrivals[i]
			var fromPath PathVertexRep
			if i < len(fromVertex.PrevPath) {
				fromPath = fromVertex.PrevPath[i]
			}

			for _, arc := range edge.ArcsFrom(fromTag.Transition) {
				if action, ok := e.visitOneArc(ctx, pred, edge, arc, fromVertex, fromTag, fromTagID, fromArrival, fromPath, v, mode, apIndex, visitor); !ok {
					continue
				} else if action == Stop {
					return nil
				}
			}
		}
	}
	return nil
}

// visitOneArc computes the per-role delay/tag transformation
// (spec.md §4.4's table) for one arc and, unless the exception engine
// kills the path, invokes visitor. The second return value is false
// when the candidate was silently dropped (no_tag), which is not an
// error (spec.md §7 "silent dominance").
func (e *Engine) visitOneArc(ctx context.Context, pred SearchPred, edge *Edge, arc TimingArc, fromVertex *Vertex, fromTag *Tag, fromTagID TagID, fromArrival Delay, fromPath PathVertexRep, toVertex *Vertex, mode AnalysisMode, apIndex int, visitor FromToPathVisitor) (Action, bool) {
	if !pred.SearchTo(e.graph, toVertex) {
		return Continue, false
	}

	toTr := arc.ToTr
	newStates, ok := e.except.MatchNextThru(fromTag.States, except.PinID(fromVertex.Pin), except.PinID(toVertex.Pin), uint8(toTr), toVertex.IsRegisterClock())
	if !ok {
		return Continue, false // false path / completed loop into a register: silently dropped
	}
	filterMarker := newStates.HasFilterMarker()

	toTag, arcDelay, toArrival, err := e.roleContribution(ctx, edge, arc, fromVertex, fromTag, fromArrival, fromPath, toVertex, toTr, apIndex, mode, newStates, filterMarker)
	if err != nil {
		e.warn(toVertex.ID, "arc delay computation failed: %v", err)
		return Continue, false
	}
	if toTag == nil {
		return Continue, false
	}

	toTagID, _, ierr := e.internTag(toTag)
	if ierr != nil {
		return Stop, true // fatal: propagate by stopping this visit; caller checks e.lastErr
	}

	vctx := &VisitContext{
		FromPin:     fromVertex.Pin,
		FromVertex:  fromVertex,
		FromTr:      fromTag.Transition,
		FromTag:     fromTag,
		FromTagID:   fromTagID,
		FromPath:    fromPath,
		FromArrival: fromArrival,
		Edge:        edge,
		Arc:         arc,
		ArcDelay:    arcDelay,
		ToVertex:    toVertex,
		ToTr:        toTr,
		ToTag:       toTag,
		ToTagID:     toTagID,
		ToArrival:   toArrival,
		Mode:        mode,
		PathAP:      apIndex,
	}
	return visitor.VisitFromToPath(vctx), true
}

// roleContribution implements spec.md §4.4's per-role table.
func (e *Engine) roleContribution(ctx context.Context, edge *Edge, arc TimingArc, fromVertex *Vertex, fromTag *Tag, fromArrival Delay, fromPath PathVertexRep, toVertex *Vertex, toTr Transition, apIndex int, mode AnalysisMode, states except.Set, filterMarker bool) (*Tag, Delay, Delay, error) {
	switch edge.Role {
	case RoleWire, RoleCombinational:
		derate := e.sdc.Derate(edge.Role, fromTag.IsClock, apIndex)
		raw, err := e.delays.ArcDelay(ctx, edge, arc, apIndex)
		if err != nil {
			return nil, Delay{}, Delay{}, err
		}
		d := scale(raw, derate)
		var toTag *Tag
		if fromTag.IsClock {
			isGenClkFanin := toVertex.Flags.Has(FlagHasDownstreamClkPins) && fromVertex.Flags.Has(FlagHasDownstreamClkPins)
			toTag = e.ThruClkTag(fromTag, toTr, states, filterMarker, isGenClkFanin)
		} else {
			toTag = e.ThruTag(fromTag, toTr, states, filterMarker)
		}
		return toTag, d, fromArrival.Add(d), nil

	case RoleRegClkToQ:
		derate := e.sdc.Derate(edge.Role, false, apIndex)
		raw, err := e.delays.ArcDelay(ctx, edge, arc, apIndex)
		if err != nil {
			return nil, Delay{}, Delay{}, err
		}
		d := scale(raw, derate)
		regClkTag := e.FromRegClkTag(fromTag)
		toTag := e.ThruTag(regClkTag, toTr, states, filterMarker)
		// clk_path_arrival: when the driving clock is not propagated,
		// inject ideal-clock latency instead of trusting the accumulated
		// network arrival (spec.md §4.4 "to_arrival = ... except register
		// clk->Q uses a recomputed clk_path_arrival").
		base := e.clkPathArrival(fromVertex, fromTag, fromArrival)
		return toTag, d, base.Add(d), nil

	case RoleLatchDToQ:
		if e.latches == nil {
			return nil, Delay{}, Delay{}, errNoLatchAnalyzer
		}
		toTag, arcDelay, toArrival, err := e.latches.LatchOutArrival(ctx, fromTag, fromArrival, arc, edge, apIndex)
		if err != nil {
			return nil, Delay{}, Delay{}, err
		}
		if toTag != nil {
			probe := *toTag
			probe.States = states
			probe.FilterMarker = filterMarker
			toTag = e.mustIntern(&probe)
		}
		return toTag, arcDelay, toArrival, nil

	case RoleTristateEnable, RoleTristateDisable:
		if fromTag.IsClock && !e.sdc.ClockThruTristateAllowed() {
			return nil, Delay{}, Delay{}, nil
		}
		derate := e.sdc.Derate(edge.Role, fromTag.IsClock, apIndex)
		raw, err := e.delays.ArcDelay(ctx, edge, arc, apIndex)
		if err != nil {
			return nil, Delay{}, Delay{}, err
		}
		d := scale(raw, derate)
		var toTag *Tag
		if fromTag.IsClock {
			toTag = e.ThruClkTag(fromTag, toTr, states, filterMarker, false)
		} else {
			toTag = e.ThruTag(fromTag, toTr, states, filterMarker)
		}
		return toTag, d, fromArrival.Add(d), nil

	default:
		return nil, Delay{}, Delay{}, nil
	}
}

func scale(d Delay, factor float64) Delay {
	return Delay{Mean: d.Mean * factor, Sigma: d.Sigma * factor}
}

// clkPathArrival implements spec.md §6's clk_path_arrival query: for an
// ideal (non-propagated) clock, the arrival at a register clock pin is
// the clock edge time plus source+network latency taken directly from
// ClkInfo rather than accumulated hop-by-hop, which is what makes ideal
// clocks immune to combinational derating along the clock tree.
func (e *Engine) clkPathArrival(v *Vertex, tag *Tag, accumulated Delay) Delay {
	ci := e.ClkInfoOf(tag.ClkInfo)
	if ci == nil || ci.Propagated {
		return accumulated
	}
	return Delay{Mean: clockEdgeTimeOf(ci) + ci.SourceLatency.Value() + ci.NetworkLatency.Value()}
}

// clockEdgeTimeOf returns the waveform edge time the seeder resolved into
// ci.EdgeTime (spec.md §4.7/§6).
func clockEdgeTimeOf(ci *ClkInfo) float64 {
	return ci.EdgeTime.Value()
}

// VisitFanoutPaths is the backward half of the path visitor framework
// (spec.md §4.4/§4.6, C4): for vertex v, iterate its fanout edges, and
// for each of v's own tags that still has a corresponding to-tag alive
// in the downstream vertex's tag-group, invoke visitor with the arc
// contribution needed to propose from_required = to_required - arc_delay.
//
// Latch D->Q edges never propagate required times (spec.md §4.6: "Latch
// D->Q edges do not propagate required times").
func (e *Engine) VisitFanoutPaths(ctx context.Context, pred SearchPred, v *Vertex, mode AnalysisMode, apIndex int, visitor FromToPathVisitor) error {
	tg := e.TagGroupOf(v.TagGroup)
	if tg == nil {
		return nil
	}
	fanout := append([]uint32(nil), v.Fanout...)
	sort.Slice(fanout, func(i, j int) bool { return fanout[i] < fanout[j] })

	for _, eid := range fanout {
		edge := e.graph.Edge(eid)
		if edge.Role == RoleLatchDToQ {
			continue
		}
		toVertex := e.graph.Vertex(edge.To)
		if toVertex.Required == nil {
			continue // downstream not yet visited on the backward sweep
		}
		toTG := e.TagGroupOf(toVertex.TagGroup)
		if toTG == nil {
			continue
		}
		for i, fromTagID := range tg.Tags {
			fromTag := e.Tag(fromTagID)
			if !pred.SearchThru(e.graph, edge, fromTag.Transition, false) {
				continue
			}
			for _, arc := range edge.ArcsFrom(fromTag.Transition) {
				toTr := arc.ToTr
				states, ok := e.except.MatchNextThru(fromTag.States, except.PinID(v.Pin), except.PinID(toVertex.Pin), uint8(toTr), toVertex.IsRegisterClock())
				if !ok {
					continue
				}
				filterMarker := states.HasFilterMarker()
				candidateTag, arcDelay, _, err := e.roleContribution(ctx, edge, arc, v, fromTag, v.Arrivals[i], v.PrevPath0(i), toVertex, toTr, apIndex, mode, states, filterMarker)
				if err != nil || candidateTag == nil {
					continue
				}
				toIdx := toTG.IndexOf(mustTagIDFor(e, candidateTag))
				if toIdx < 0 {
					// The exact to-tag is no longer present, likely because
					// CRPR pruned it; substitute a tag matching on
					// everything except the CRPR clock pin (spec.md §4.6
					// step 3).
					toIdx = e.findCRPRSubstitute(toTG, candidateTag)
					if toIdx < 0 {
						continue
					}
				}
				vctx := &VisitContext{
					FromVertex: v,
					FromTag:    fromTag,
					FromTagID:  fromTagID,
					Edge:       edge,
					Arc:        arc,
					ArcDelay:   arcDelay,
					ToVertex:   toVertex,
					ToTr:       toTr,
					ToTag:      e.Tag(toTG.Tags[toIdx]),
					ToTagID:    toTG.Tags[toIdx],
					ToRequired: toVertex.Required[toIdx],
					Mode:       mode,
					PathAP:     apIndex,
				}
				if visitor.VisitFromToPath(vctx) == Stop {
					return nil
				}
			}
		}
	}
	return nil
}

// PrevPath0 returns v's prev-path entry at index i, or the zero value if
// v does not carry a prev-path array (only clock/gen-clock source-path
// vertices do).
func (v *Vertex) PrevPath0(i int) PathVertexRep {
	if i < len(v.PrevPath) {
		return v.PrevPath[i]
	}
	return PathVertexRep{}
}

// mustTagIDFor interns candidateTag if needed and returns its id; used
// only to compare identity against an already-interned downstream
// tag-group, so a fresh intern here is safe (it will hit the existing
// entry if one exists).
func mustTagIDFor(e *Engine, t *Tag) TagID {
	id, _, err := e.internTag(t)
	if err != nil {
		return 0
	}
	return id
}

// findCRPRSubstitute implements spec.md §4.6 step 3's fallback: locate a
// tag in toTG matching candidate on everything except ClkInfo's CRPR
// clock pin (the field CRPR pruning is allowed to differ on).
func (e *Engine) findCRPRSubstitute(toTG *TagGroup, candidate *Tag) int {
	for i, tid := range toTG.Tags {
		t := e.Tag(tid)
		if t == nil {
			continue
		}
		if !(t.Transition == candidate.Transition && t.PathAP == candidate.PathAP &&
			t.IsClock == candidate.IsClock && t.InputDelay == candidate.InputDelay &&
			t.IsSegmentStart == candidate.IsSegmentStart && t.States.Equal(candidate.States)) {
			continue
		}
		tci, cci := e.ClkInfoOf(t.ClkInfo), e.ClkInfoOf(candidate.ClkInfo)
		if tci == nil || cci == nil {
			if tci == cci {
				return i
			}
			continue
		}
		a, c := *tci, *cci
		a.CRPRClkPin, c.CRPRClkPin = 0, 0
		if a == c {
			return i
		}
	}
	return -1
}
