// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import "sort"

// slackAggregator tracks total negative slack (TNS) and worst negative
// slack (WNS) per analysis mode, and the lazily-discovered endpoint set
// (spec.md §4.10, C10). It is grounded on the same "recompute lazily,
// invalidate incrementally" shape as the arrival/required propagators:
// a change to one endpoint's required or arrival time only touches that
// endpoint's contribution rather than re-summing every endpoint.
type slackAggregator struct {
	e *Engine

	endpointsKnown bool
	endpoints      []uint32 // vertex ids, sorted

	// perEndpoint holds the last-known worst slack contributed by each
	// endpoint under each mode, so tns_incr/tns_decr can adjust the
	// running total without rescanning every endpoint.
	perEndpoint map[uint32][2]float64 // index by AnalysisMode

	tns   [2]float64 // index by AnalysisMode; sum of negative slacks
	worst [2]float64 // index by AnalysisMode; most negative single slack
}

func newSlackAggregator(e *Engine) *slackAggregator {
	return &slackAggregator{
		e:           e,
		perEndpoint: map[uint32][2]float64{},
		worst:       [2]float64{0, 0},
	}
}

// isEndpoint reports whether v is a valid slack-reporting endpoint
// (spec.md §4.10 is_endpoint): a vertex that has a timing-check fanin
// edge, is itself a path-delay internal endpoint, has no fanout of its
// own, or (ReportUnconstrained) is a register clock pin. This is
// deliberately structural rather than keying off v.Required, which is
// only populated once seedEndpointsRequired has already walked the
// endpoint set once.
func (e *Engine) isEndpoint(v *Vertex) bool {
	if v == nil {
		return false
	}
	if v.Flags.Has(FlagPathDelayInternalEndpoint) {
		return true
	}
	if e.hasTimingCheckFanin(v) {
		return true
	}
	if len(v.Fanout) == 0 {
		return true
	}
	return e.cfg.ReportUnconstrained && v.IsRegisterClock()
}

func (e *Engine) hasTimingCheckFanin(v *Vertex) bool {
	for _, eid := range v.Fanin {
		if edge := e.graph.Edge(eid); edge != nil && edge.Role == RoleTimingCheck {
			return true
		}
	}
	return false
}

// Endpoints returns the graph's endpoint vertices (spec.md §4.10,
// grounded on Search::visitEndpoints), computing and caching the set on
// first use.
func (e *Engine) Endpoints() []*Vertex {
	e.slack.ensureEndpoints(e)
	out := make([]*Vertex, 0, len(e.slack.endpoints))
	for _, id := range e.slack.endpoints {
		out = append(out, e.graph.Vertex(id))
	}
	return out
}

func (s *slackAggregator) ensureEndpoints(e *Engine) {
	if s.endpointsKnown {
		return
	}
	s.endpoints = s.endpoints[:0]
	for _, v := range e.graph.Vertices[1:] {
		if e.isEndpoint(v) {
			s.endpoints = append(s.endpoints, v.ID)
		}
	}
	sort.Slice(s.endpoints, func(i, j int) bool { return s.endpoints[i] < s.endpoints[j] })
	s.endpointsKnown = true
}

// invalidateEndpoints forces Endpoints() to recompute on next use; called
// whenever the graph's connectivity or required-time seeding changes
// (spec.md §4.9's filter install/remove, and vertex deletion).
func (s *slackAggregator) invalidateEndpoints() { s.endpointsKnown = false }

// Slack returns endpoint v's worst-case slack under mode: required minus
// arrival for max-delay, arrival minus required for min-delay (spec.md
// §4.10 "slack = required - arrival, sign-adjusted per mode").
func (e *Engine) Slack(v *Vertex, mode AnalysisMode) (Delay, bool) {
	if v == nil || len(v.Required) == 0 || len(v.Arrivals) == 0 {
		return Delay{}, false
	}
	worst := mode.WorstInitial()
	found := false
	for i := range v.Required {
		if i >= len(v.Arrivals) {
			break
		}
		s := slackValue(mode, v.Arrivals[i], v.Required[i])
		if !found || slackWorse(mode, s, worst) {
			worst = s
			found = true
		}
	}
	return worst, found
}

func slackValue(mode AnalysisMode, arrival, required Delay) Delay {
	if mode == ModeMax {
		return required.Sub(arrival)
	}
	return arrival.Sub(required)
}

// slackWorse reports whether candidate is worse (more negative) than
// incumbent, irrespective of mode (slack itself is already sign-adjusted
// by slackValue).
func slackWorse(mode AnalysisMode, candidate, incumbent Delay) bool {
	return candidate.Value() < incumbent.Value()
}

// TNSIncr folds endpoint v's current worst slack under mode into the
// running total negative slack, first removing whatever contribution it
// made last time (spec.md §4.10 tns_incr/tns_decr, grounded on
// AleutianLocal's incremental-aggregate style of updating a running sum
// rather than resumming on every query).
func (e *Engine) TNSIncr(v *Vertex, mode AnalysisMode) {
	s := e.slack
	prev, hadPrev := s.perEndpoint[v.ID]
	if hadPrev {
		s.tns[mode] -= negativePart(prev[mode])
	}
	worst, ok := e.Slack(v, mode)
	val := 0.0
	if ok {
		val = worst.Value()
	}
	cur := prev
	if !hadPrev {
		cur = [2]float64{}
	}
	cur[mode] = val
	s.perEndpoint[v.ID] = cur
	s.tns[mode] += negativePart(val)
	if val < s.worst[mode] {
		s.worst[mode] = val
	}
}

func negativePart(v float64) float64 {
	if v < 0 {
		return v
	}
	return 0
}

// TNS returns the current total negative slack for mode.
func (e *Engine) TNS(mode AnalysisMode) Delay { return Delay{Mean: e.slack.tns[mode]} }

// WNS returns the current worst (most negative) single-endpoint slack
// for mode.
func (e *Engine) WNS(mode AnalysisMode) Delay { return Delay{Mean: e.slack.worst[mode]} }

// TNSNotifyBefore must be called before an endpoint's required or
// arrival times are about to change, so the aggregator can retract the
// endpoint's stale contribution ahead of the update rather than after
// (spec.md §4.10 tns_notify_before, grounded on the same
// notify-before-mutate ordering used by Search::levelChangedBefore).
func (e *Engine) TNSNotifyBefore(v *Vertex) {
	prev, ok := e.slack.perEndpoint[v.ID]
	if !ok {
		return
	}
	for m := 0; m < 2; m++ {
		e.slack.tns[AnalysisMode(m)] -= negativePart(prev[m])
	}
	delete(e.slack.perEndpoint, v.ID)
}

// WorstSlacks returns, for every known endpoint, its worst slack under
// mode, sorted from most negative to least (spec.md §4.10 worst_slacks,
// the "top offenders" report query).
func (e *Engine) WorstSlacks(mode AnalysisMode) []EndpointSlack {
	eps := e.Endpoints()
	out := make([]EndpointSlack, 0, len(eps))
	for _, v := range eps {
		s, ok := e.Slack(v, mode)
		if !ok {
			continue
		}
		out = append(out, EndpointSlack{Vertex: v.ID, Slack: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slack.Value() < out[j].Slack.Value() })
	return out
}

// EndpointSlack pairs an endpoint vertex id with its worst-case slack.
type EndpointSlack struct {
	Vertex uint32
	Slack  Delay
}
