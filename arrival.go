// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/db47h/stacore/internal/levelsweep"
)

// FindAllArrivals runs the full forward (arrival) sweep to a latch
// fixpoint (spec.md §4.5, §4.8; the Open Question log in DESIGN.md
// records that the original tool's findAllArrivals loop keeps iterating
// as long as any latch output changed at all, i.e. a minimum of one
// full pass).
func (e *Engine) FindAllArrivals(ctx context.Context, mode AnalysisMode) error {
	ctx, span := e.tracer.Start(ctx, "stacore.FindAllArrivals", trace.WithAttributes(
		attribute.String("mode", mode.String()),
	))
	defer span.End()

	if !e.clkSeeded {
		if err := e.seedClocks(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}
	if err := e.seedStartpoints(ctx, mode); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := e.runToFixpoint(ctx, mode, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// FindFilteredArrivals runs the forward sweep restricted to a path-delay
// filter's segment. The original tool's findFilteredArrivals loop always
// runs at least two full passes before checking for a latch fixpoint
// (verified in original_source/search/Search.cc; preserved verbatim here
// rather than unified with FindAllArrivals's single-pass minimum,
// because the two entry points are not proven equivalent and unifying
// them would be a silent behavior change).
func (e *Engine) FindFilteredArrivals(ctx context.Context, mode AnalysisMode, filterID int) error {
	ctx, span := e.tracer.Start(ctx, "stacore.FindFilteredArrivals", trace.WithAttributes(
		attribute.String("mode", mode.String()),
		attribute.Int("filter_id", filterID),
	))
	defer span.End()

	e.InstallFilter(filterID)
	defer e.RemoveFilter()
	if err := e.seedFilterSegment(ctx, mode, filterID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := e.runToFixpoint(ctx, mode, 2); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// FindClkArrivals runs a clock-network-only pre-pass (spec.md §4.2
// "Clock-arrival" predicate), used ahead of data-path seeding to resolve
// clock network latency and CRPR clock-pin back-links before any data
// arrival is computed.
func (e *Engine) FindClkArrivals(ctx context.Context, mode AnalysisMode) error {
	pred := ClkArrivalPred{}
	return levelsweep.Forward(ctx, e.graph.Levels, e.sweepOptions(), func(ctx context.Context, id uint32) error {
		v := e.graph.Vertex(id)
		if v == nil || !v.Flags.Has(FlagHasDownstreamClkPins) {
			return nil
		}
		_, err := e.visitVertexArrival(ctx, v, mode, 0, pred)
		return err
	})
}

// FindArrivals visits exactly one level's vertices under the standard
// Eval predicate; exposed for callers (tests, incremental drivers) that
// want to drive the sweep level-by-level rather than to a fixpoint.
func (e *Engine) FindArrivals(ctx context.Context, level int, mode AnalysisMode, apIndex int) error {
	if level < 0 || level >= len(e.graph.Levels) {
		return nil
	}
	pred := e.evalPred()
	return levelsweep.Forward(ctx, e.graph.Levels[level:level+1], e.sweepOptions(), func(ctx context.Context, id uint32) error {
		v := e.graph.Vertex(id)
		if v == nil {
			return nil
		}
		_, err := e.visitVertexArrival(ctx, v, mode, apIndex, pred)
		return err
	})
}

func (e *Engine) evalPred() SearchPred {
	return EvalPred{
		Base:                BasePred{SkipTimingChecks: true},
		DynamicLoopBreaking: e.sdc.DynamicLoopBreakingActive(),
		Latches:             e.latches,
	}
}

func (e *Engine) sweepOptions() levelsweep.Options {
	return levelsweep.Options{Workers: e.cfg.Workers, ParallelThreshold: e.cfg.ParallelThreshold}
}

// visitVertexArrival implements spec.md §4.5's nine-step per-vertex
// visit: skip clock-source pins seeded directly by the seeder, pull
// candidate arrivals from every fanin path, prune CRPR-dominated
// duplicates, let the seeder contribute any origination tags, and commit
// the result only if it changed under the configured fuzzy tolerance.
func (e *Engine) visitVertexArrival(ctx context.Context, v *Vertex, mode AnalysisMode, apIndex int, pred SearchPred) (bool, error) {
	if len(e.sdc.ClocksAt(v.ID)) > 0 && !v.Flags.Has(FlagPathDelayInternalEndpoint) {
		// Clock source pins are seeded directly (seeder.go); they never
		// pull arrivals through their own (nonexistent, by construction)
		// fanin.
		return false, nil
	}

	b := e.NewBuilder(mode)
	b.Init(v)

	// spec.md §4.5 step 2: when CRPR is active and the vertex has more
	// than one fanin, run a parallel no-CRPR accumulation alongside b so
	// step 4 can bound how much of b's CRPR-credited arrivals is
	// attributable to CRPR versus what a no-CRPR analysis would already
	// have produced.
	trackNoCRPR := e.sdc.CRPRActive() && len(v.Fanin) > 1
	var noCRPR map[TagID]Delay
	if trackNoCRPR {
		noCRPR = map[TagID]Delay{}
	}

	loopPending := func(fv *Vertex, tag *Tag) bool {
		return tag != nil && hasLoopState(tag.States)
	}

	var fatalErr error
	visitor := FromToPathVisitorFunc(func(vctx *VisitContext) Action {
		existing, curArrival, idx, found := b.TagMatch(vctx.ToTagID)
		if found && !mode.Dominates(vctx.ToArrival, curArrival) {
			return Continue
		}
		b.SetMatchArrival(vctx.ToTagID, existing, vctx.ToArrival, idx, PathVertexRep{
			VertexID:      vctx.FromVertex.ID,
			TagGroupIndex: uint32(vctx.FromVertex.TagGroup),
			ArrivalIndex:  indexOfTagInGroup(e, vctx.FromVertex, vctx.FromTagID),
		})
		if trackNoCRPR {
			e.noteNoCRPRArrival(noCRPR, mode, vctx.ToTagID, vctx.ToArrival)
		}
		return Continue
	})

	if err := e.VisitFaninPaths(ctx, pred, v, mode, apIndex, loopPending, visitor); err != nil {
		fatalErr = err
	}
	if fatalErr != nil {
		return false, fatalErr
	}

	if trackNoCRPR {
		e.pruneCRPRArrivals(b, noCRPR, mode)
	}

	if err := e.seedOrigination(ctx, v, b, mode, apIndex); err != nil {
		return false, err
	}

	newGroupID, newArrivals, newPrev, err := b.CopyArrivals()
	if err != nil {
		return false, err
	}
	e.noteFilterTagGroup(newGroupID)

	changed := arrivalsChanged(e, v, newGroupID, newArrivals)
	if !changed {
		if v.IsLatchData() {
			e.clearLatchOutputPending(v)
		}
		return false, nil
	}

	e.TNSNotifyBefore(v)
	v.TagGroup = newGroupID
	v.Arrivals = newArrivals
	v.PrevPath = newPrev

	if v.IsLatchData() {
		e.markLatchOutputPending(v)
	}
	e.propagateInvalidation(v)
	return true, nil
}

func indexOfTagInGroup(e *Engine, v *Vertex, tagID TagID) int {
	tg := e.TagGroupOf(v.TagGroup)
	if tg == nil {
		return 0
	}
	return tg.IndexOf(tagID)
}

// arrivalsChanged compares the newly built tag group/arrivals against
// v's current ones within the engine's fuzzy tolerance (spec.md §4.5
// step 6).
func arrivalsChanged(e *Engine, v *Vertex, newGroupID TagGroupID, newArrivals []Delay) bool {
	if v.TagGroup != newGroupID {
		return true
	}
	if len(newArrivals) != len(v.Arrivals) {
		return true
	}
	for i := range newArrivals {
		if !FuzzyEqual(newArrivals[i], v.Arrivals[i], e.cfg.FuzzyTolerance) {
			return true
		}
	}
	return false
}

// noteNoCRPRArrival feeds the parallel no-CRPR accumulation used by
// pruneCRPRArrivals (spec.md §4.5 step 2). Only non-clock tags whose
// ClkInfo carries a CRPR clock pin participate; everything else is
// irrelevant to CRPR credit. The tracking key is the tag's own identity
// with its CRPR clock pin stripped, so candidates that differ only in
// which register-clock path they credit collapse into the same slot,
// exactly as if CRPR played no role in tag identity.
func (e *Engine) noteNoCRPRArrival(noCRPR map[TagID]Delay, mode AnalysisMode, tagID TagID, arrival Delay) {
	t := e.Tag(tagID)
	if t == nil || t.IsClock {
		return
	}
	ci := e.ClkInfoOf(t.ClkInfo)
	if !ci.HasCRPRClkPin() {
		return
	}
	key := e.noCRPRTagKey(t, ci)
	if key == 0 {
		return
	}
	if cur, ok := noCRPR[key]; !ok || mode.Dominates(arrival, cur) {
		noCRPR[key] = arrival
	}
}

// noCRPRTagKey interns a copy of t whose ClkInfo has its CRPR clock pin
// zeroed, giving a canonical TagID shared by every tag that differs from
// t only in which register-clock path it credits for CRPR.
func (e *Engine) noCRPRTagKey(t *Tag, ci *ClkInfo) TagID {
	ciProbe := *ci
	ciProbe.CRPRClkPin = 0
	ciID, _, err := e.internClkInfo(&ciProbe)
	if err != nil {
		return 0
	}
	tagProbe := *t
	tagProbe.ClkInfo = ciID
	tagID, _, err := e.internTag(&tagProbe)
	if err != nil {
		return 0
	}
	return tagID
}

// maxCrpr bounds the pessimism CRPR could remove for ci's clock network
// (spec.md §4.5 step 4). Network latency is exactly the portion of a
// clock's insertion delay that a shared launch/capture clock-tree prefix
// can cancel, so it is used here as the credit ceiling.
func (e *Engine) maxCrpr(ci *ClkInfo) Delay {
	return ci.NetworkLatency
}

// pruneCRPRArrivals implements spec.md §4.5 step 4: for every non-clock
// tag in b whose ClkInfo carries a CRPR clock pin, look up the dominant
// arrival tracked for its no-CRPR counterpart in noCRPR, compute
// max_arrival ± max_crpr (− for max-delay, + for min-delay), and delete
// the CRPR-credited arrival when that bound already dominates it — i.e.
// the CRPR credit cannot possibly make this path preferred over what a
// no-CRPR analysis already achieves.
func (e *Engine) pruneCRPRArrivals(b *Builder, noCRPR map[TagID]Delay, mode AnalysisMode) {
	if len(noCRPR) == 0 {
		return
	}
	// Walk backwards: DeleteArrival moves the last slot into the deleted
	// one, and that slot has then already been checked.
	for i := b.Len() - 1; i >= 0; i-- {
		tid, arrival := b.TagAt(i)
		t := e.Tag(tid)
		if t == nil || t.IsClock {
			continue
		}
		ci := e.ClkInfoOf(t.ClkInfo)
		if !ci.HasCRPRClkPin() {
			continue
		}
		key := e.noCRPRTagKey(t, ci)
		maxArrival, ok := noCRPR[key]
		if !ok {
			continue
		}
		maxCrpr := e.maxCrpr(ci)
		var bound Delay
		if mode == ModeMax {
			bound = maxArrival.Sub(maxCrpr)
		} else {
			bound = maxArrival.Add(maxCrpr)
		}
		if mode.Dominates(bound, arrival) {
			b.DeleteArrival(tid)
		}
	}
}

// propagateInvalidation marks every direct fanout vertex dirty so an
// incremental re-run (rather than a fresh full sweep) knows which
// downstream vertices must be revisited (spec.md §4.5's incremental
// note, grounded on Search::arrivalInvalid's transitive-dirty marking).
func (e *Engine) propagateInvalidation(v *Vertex) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, eid := range v.Fanout {
		edge := e.graph.Edge(eid)
		if edge == nil {
			continue
		}
		e.invalidArrivals[edge.To] = true
	}
}
