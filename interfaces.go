// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import "context"

// NetlistView is the read-only netlist collaborator (spec.md §6). The
// core never mutates a netlist and never parses one; it only queries
// pin/instance properties while propagating.
type NetlistView interface {
	// PinDirection reports whether pin is an input, output, or bidirect.
	PinDirection(pin PinID) PinDirection
	// IsTopLevelPort reports whether pin is a top-level port of the design.
	IsTopLevelPort(pin PinID) bool
	// PulseClockSense returns the liberty-declared pulse sense for pin,
	// or PulseNone if pin does not generate a pulse clock.
	PulseClockSense(pin PinID) PulseSense
	// HierarchicalPins expands pin through hierarchy (spec.md §4.9,
	// filter seeding "possibly through hierarchical pins").
	HierarchicalPins(pin PinID) []PinID
	// IsLatchData reports whether pin is a latch's data input.
	IsLatchData(pin PinID) bool
	// IsCheckClock reports whether pin is the clock pin of a timing check.
	IsCheckClock(pin PinID) bool
	// IsLoad reports whether pin is a load (has no further fanout of
	// interest to timing, e.g. a register's D input has fanout only via
	// the timing-check edge).
	IsLoad(pin PinID) bool
}

// PinDirection enumerates netlist pin directions.
type PinDirection uint8

const (
	DirInput PinDirection = iota
	DirOutput
	DirBidirect
)

// InputDelay describes a set_input_delay-equivalent record (spec.md §4.7).
type InputDelay struct {
	ID          int
	Pin         uint32 // vertex id the delay is seeded at
	RefPin      uint32 // vertex id of the reference clock pin, 0 == none
	RefIsRise   bool
	Delay       Delay
	Transition  Transition
	Internal    bool // true for an internal (segment) input delay
}

// PathDelayException describes a set_max_delay/set_min_delay -from
// record with an internal start point (spec.md §3 "segment start").
type PathDelayException struct {
	ID       int
	FromPin  uint32
	Mode     AnalysisMode
	Delay    Delay
}

// ConstraintStore is the read-only SDC-equivalent collaborator
// (spec.md §6). It supplies clocks, exceptions, derating, and the
// CRPR/dynamic-loop-breaking switches; the core never parses SDC
// syntax, it only queries an already-built model.
type ConstraintStore interface {
	// ClocksAt returns the clocks that have vertex as a source pin.
	ClocksAt(vertex uint32) []ClockDef
	// InputDelaysAt returns the input-delay records seeded at vertex.
	InputDelaysAt(vertex uint32) []InputDelay
	// PathDelaySegmentsAt returns segment-start exceptions rooted at vertex.
	PathDelaySegmentsAt(vertex uint32) []PathDelayException
	// Uncertainty returns the clock uncertainty to apply for clk.
	Uncertainty(clk ClockDef, apIndex int) Delay
	// Derate returns the derating factor to apply to a raw delay
	// (spec.md §4.4 "derated by net/cell-delay derate").
	Derate(role EdgeRole, isClk bool, apIndex int) float64
	// IsPropagated reports whether clk uses propagated (vs. ideal)
	// latency at vertex.
	IsPropagated(clk ClockDef, vertex uint32) bool
	// CRPRActive reports whether CRPR is enabled for this analysis.
	CRPRActive() bool
	// DynamicLoopBreakingActive reports whether disabled-loop edges may
	// be traversed when loop-tagged arrivals are pending.
	DynamicLoopBreakingActive() bool
	// ClockThruTristateAllowed reports whether clocks may propagate
	// through tristate enable/disable edges (spec.md §4.4 table).
	ClockThruTristateAllowed() bool
}

// ClockDef is the minimal clock description the core needs (spec.md §3
// ClkInfo, §4.7 Seeder).
type ClockDef struct {
	ID          int
	SourcePin   uint32
	Edge        Transition
	Period      float64
	GenClkSrc   uint32 // 0 == not a generated clock
	IsGenerated bool
}

// DelayCalculator computes the arc delay for one (edge, arc, analysis
// point) triple (spec.md §6). Gate-level delay calculation is entirely
// external; the core treats the result as an opaque, already-derated-or-
// not Delay (derating is applied by the core via ConstraintStore.Derate,
// per spec.md §4.4).
type DelayCalculator interface {
	ArcDelay(ctx context.Context, edge *Edge, arc TimingArc, apIndex int) (Delay, error)
}

// LatchState is the transparency state of a latch D->Q edge at the
// current analysis point (spec.md §6).
type LatchState uint8

const (
	LatchUnknown LatchState = iota
	LatchOpen
	LatchClosed
)

// LatchAnalyzer supplies latch-specific timing behavior (spec.md §6);
// gate-level latch modeling (borrow time, enable timing) is external.
type LatchAnalyzer interface {
	LatchDToQState(edge *Edge) LatchState
	// LatchOutArrival computes the tag/delay/arrival triple for a
	// latch's D->Q edge given the arriving from-path (spec.md §4.4
	// "latch_out_arrival").
	LatchOutArrival(ctx context.Context, fromTag *Tag, fromArrival Delay, arc TimingArc, edge *Edge, apIndex int) (toTag *Tag, arcDelay, toArrival Delay, err error)
	IsLatchDToQ(edge *Edge) bool
}

// PathEnd is one endpoint constraint's evaluated required time
// (spec.md §6, produced by the external path-end collaborator).
type PathEnd struct {
	Vertex      uint32
	Tag         TagID
	Required    Delay
	Mode        AnalysisMode
	CheckEdgeID uint32 // the timing-check edge id this PathEnd came from
}

// PathEndVisitor walks a vertex's endpoint constraints, producing
// PathEnd records whose Required time is already known from the check
// constraints (spec.md §6, §4.6 step 1). Delay-calculator access for
// setup/hold/recovery/removal arithmetic lives entirely in this external
// collaborator; the core only consumes the result.
type PathEndVisitor interface {
	VisitEndpoint(ctx context.Context, v *Vertex, tagGroup *TagGroup) ([]PathEnd, error)
}

// VertexVisitor is a generic per-vertex callback used by
// Engine.VisitStartpoints / Engine.VisitEndpoints (SPEC_FULL.md §4,
// grounded on Search::visitStartpoints/visitEndpoints).
type VertexVisitor interface {
	Visit(v *Vertex) error
}

// VertexVisitorFunc adapts a plain function to VertexVisitor.
type VertexVisitorFunc func(v *Vertex) error

func (f VertexVisitorFunc) Visit(v *Vertex) error { return f(v) }
