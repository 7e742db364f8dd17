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

// FindAllRequired runs the backward (required-time) sweep to
// completion: endpoints are seeded from the external PathEndVisitor,
// then required times propagate level-by-level from the highest level
// down to zero (spec.md §4.6, C6).
func (e *Engine) FindAllRequired(ctx context.Context, mode AnalysisMode) error {
	ctx, span := e.tracer.Start(ctx, "stacore.FindAllRequired", trace.WithAttributes(
		attribute.String("mode", mode.String()),
	))
	defer span.End()

	if e.pathEnds == nil {
		err := e.fatal(ErrCorruptState, errNoPathEndVisitor)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if err := e.seedEndpointsRequired(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	pred := e.evalPred()
	if err := levelsweep.Backward(ctx, e.graph.Levels, e.sweepOptions(), func(ctx context.Context, id uint32) error {
		v := e.graph.Vertex(id)
		if v == nil {
			return nil
		}
		_, err := e.visitVertexRequired(ctx, v, mode, 0, pred)
		return err
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// seedEndpointsRequired asks the PathEndVisitor for every endpoint
// constraint's required time and installs it directly on the endpoint
// vertex's Required array, in the same tag order as its Arrivals
// (spec.md §4.6 step 1).
func (e *Engine) seedEndpointsRequired(ctx context.Context) error {
	return e.VisitEndpoints(VertexVisitorFunc(func(v *Vertex) error {
		tg := e.TagGroupOf(v.TagGroup)
		if tg == nil {
			return nil
		}
		ends, err := e.pathEnds.VisitEndpoint(ctx, v, tg)
		if err != nil {
			return err
		}
		if len(ends) == 0 {
			return nil
		}
		e.TNSNotifyBefore(v)
		required := make([]Delay, len(tg.Tags))
		seen := make([]bool, len(tg.Tags))
		for _, end := range ends {
			idx := tg.IndexOf(end.Tag)
			if idx < 0 {
				continue
			}
			if !seen[idx] {
				// Each tag's PathAP already encodes which analysis mode it
				// belongs to (spec.md §3), so every PathEnd naming this idx
				// agrees on mode; seed the sentinel from the first one seen
				// rather than assuming every tag in the group shares
				// ends[0]'s mode. A mixed setup/hold endpoint hands back both
				// Max and Min PathEnds for different tags in one call.
				required[idx] = end.Mode.WorstInitial()
				seen[idx] = true
			}
			if end.Mode.Dominates(negateForRequired(end.Mode, end.Required), negateForRequired(end.Mode, required[idx])) {
				required[idx] = end.Required
			} else if !hasRequiredValue(required[idx], end.Mode) {
				required[idx] = end.Required
			}
		}
		for i := range required {
			if !seen[i] {
				required[i] = ModeMax.WorstInitial()
			}
		}
		v.Required = required
		return nil
	}))
}

// negateForRequired reorders a required-time comparison so that, for
// both modes, "more constraining" sorts as "dominates" under the same
// mode's Dominates: a smaller required time is more constraining under
// max-delay, a larger one under min-delay, matching spec.md §4.6's "the
// tightest applicable check wins" tie-break across multiple timing
// checks landing on the same tag. Negating both operands before calling
// mode.Dominates flips its natural "greater wins for max, less wins for
// min" ordering into the required-time ordering for BOTH modes — mode
// itself never needs consulting here, only mode.Dominates does.
func negateForRequired(_ AnalysisMode, d Delay) Delay {
	return Delay{Mean: -d.Value()}
}

func hasRequiredValue(d Delay, mode AnalysisMode) bool {
	return d != mode.WorstInitial()
}

// FindRequired visits exactly one level's vertices on the backward
// sweep; exposed for callers that want to drive the sweep level-by-level
// (mirrors FindArrivals).
func (e *Engine) FindRequired(ctx context.Context, level int, mode AnalysisMode, apIndex int) error {
	if level < 0 || level >= len(e.graph.Levels) {
		return nil
	}
	pred := e.evalPred()
	return levelsweep.Backward(ctx, e.graph.Levels[level:level+1], e.sweepOptions(), func(ctx context.Context, id uint32) error {
		v := e.graph.Vertex(id)
		if v == nil {
			return nil
		}
		_, err := e.visitVertexRequired(ctx, v, mode, apIndex, pred)
		return err
	})
}

// visitVertexRequired implements spec.md §4.6's per-vertex backward
// visit: for every one of v's own tags, pull the best (tightest)
// required time proposed by each fanout edge via VisitFanoutPaths, and
// commit it if it differs from the vertex's current Required entry.
func (e *Engine) visitVertexRequired(ctx context.Context, v *Vertex, mode AnalysisMode, apIndex int, pred SearchPred) (bool, error) {
	tg := e.TagGroupOf(v.TagGroup)
	if tg == nil {
		return false, nil
	}

	proposed := make([]Delay, len(tg.Tags))
	touched := make([]bool, len(tg.Tags))
	for i := range proposed {
		proposed[i] = mode.WorstInitial()
	}

	var visitErr error
	visitor := FromToPathVisitorFunc(func(vctx *VisitContext) Action {
		fromRequired := vctx.ToRequired.Sub(vctx.ArcDelay)
		idx := tg.IndexOf(vctx.FromTagID)
		if idx < 0 {
			return Continue
		}
		if !touched[idx] || mode.Dominates(negateForRequired(mode, fromRequired), negateForRequired(mode, proposed[idx])) {
			proposed[idx] = fromRequired
			touched[idx] = true
		}
		return Continue
	})

	if err := e.VisitFanoutPaths(ctx, pred, v, mode, apIndex, visitor); err != nil {
		visitErr = err
	}
	if visitErr != nil {
		return false, visitErr
	}

	changed := false
	if v.Required == nil {
		v.Required = make([]Delay, len(tg.Tags))
		for i := range v.Required {
			v.Required[i] = mode.WorstInitial()
		}
	}
	for i, ok := range touched {
		if !ok {
			continue
		}
		if !FuzzyEqual(proposed[i], v.Required[i], e.cfg.FuzzyTolerance) {
			v.Required[i] = proposed[i]
			changed = true
		}
	}
	if changed {
		e.TNSIncr(v, mode)
		e.mu.Lock()
		for _, eid := range v.Fanin {
			edge := e.graph.Edge(eid)
			if edge != nil {
				e.invalidRequired[edge.From] = true
			}
		}
		e.mu.Unlock()
	}
	return changed, nil
}
