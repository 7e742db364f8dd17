// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

// SearchPred is the interface every layered search predicate implements
// (spec.md §4.2, C2; spec.md §9 redesign note: "re-architect as small
// trait/interface objects ... prefer function-object structs over class
// hierarchies"). It is deliberately tiny so predicates compose by
// embedding rather than by inheritance.
type SearchPred interface {
	// SearchThru reports whether edge e may be traversed while carrying
	// a path currently at from-transition fromTr.
	SearchThru(g *Graph, e *Edge, fromTr Transition, pendingLoopTags bool) bool
	// SearchFrom reports whether fromVertex may originate a traversal.
	SearchFrom(g *Graph, v *Vertex) bool
	// SearchTo reports whether toVertex may receive a traversal.
	SearchTo(g *Graph, v *Vertex) bool
}

// BasePred implements the base layer of spec.md §4.2: skip disabled
// edges, skip timing-check edges during arrival propagation, and (via
// the arrival/required split below) honor role-based filtering.
type BasePred struct {
	// SkipTimingChecks is true during arrival propagation (timing-check
	// edges are terminal, consumed only by the external path-end
	// collaborator) and false during required propagation, which must
	// still see them to seed endpoint required times upstream.
	SkipTimingChecks bool
}

func (p BasePred) SearchThru(g *Graph, e *Edge, fromTr Transition, pendingLoopTags bool) bool {
	if e.DisabledLoop {
		return false
	}
	if p.SkipTimingChecks && e.Role == RoleTimingCheck {
		return false
	}
	return true
}

func (BasePred) SearchFrom(g *Graph, v *Vertex) bool { return true }
func (BasePred) SearchTo(g *Graph, v *Vertex) bool   { return true }

// EvalPred is BasePred plus dynamic-loop-breaking and latch-D->Q gating
// (spec.md §4.2 "Eval"). It is used by the arrival propagator.
type EvalPred struct {
	Base                BasePred
	DynamicLoopBreaking bool
	Latches             LatchAnalyzer
}

func (p EvalPred) SearchThru(g *Graph, e *Edge, fromTr Transition, pendingLoopTags bool) bool {
	if e.DisabledLoop {
		// A disabled-loop edge may still be crossed exactly once per
		// loop-tagged arrival when dynamic loop breaking is enabled and
		// there is a pending loop-tagged arrival at the from-vertex
		// (spec.md §4.2, §8 scenario 6, §9 "no cycle in the path graph
		// ever forms because an arrival matching an existing tag is
		// dominance-checked, not re-enqueued").
		return p.DynamicLoopBreaking && pendingLoopTags
	}
	if p.Base.SkipTimingChecks && e.Role == RoleTimingCheck {
		return false
	}
	if e.Role == RoleLatchDToQ {
		if p.Latches == nil {
			return false
		}
		return p.Latches.LatchDToQState(e) == LatchOpen
	}
	return true
}

func (p EvalPred) SearchFrom(g *Graph, v *Vertex) bool { return p.Base.SearchFrom(g, v) }

// SearchTo rejects a clock pin as a traversal target unless it is also a
// path-delay internal endpoint (spec.md §4.2 search_to).
func (p EvalPred) SearchTo(g *Graph, v *Vertex) bool {
	if v.IsRegisterClock() && !v.Flags.Has(FlagPathDelayInternalEndpoint) {
		return false
	}
	return true
}

// ClkArrivalPred restricts traversal to wire and combinational edges
// only (spec.md §4.2 "Clock-arrival"), used while computing clock
// network latency ahead of data-path seeding.
type ClkArrivalPred struct{}

func (ClkArrivalPred) SearchThru(g *Graph, e *Edge, fromTr Transition, pendingLoopTags bool) bool {
	return e.Role.IsWireOrComb()
}

func (ClkArrivalPred) SearchFrom(g *Graph, v *Vertex) bool { return true }

func (ClkArrivalPred) SearchTo(g *Graph, v *Vertex) bool {
	if v.IsRegisterClock() && !v.Flags.Has(FlagPathDelayInternalEndpoint) {
		return false
	}
	return true
}
