// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import (
	"math"

	"github.com/db47h/stacore/internal/intern"
)

// Transition is a signal edge direction.
type Transition uint8

const (
	Rise Transition = iota
	Fall
)

func (t Transition) String() string {
	if t == Rise {
		return "rise"
	}
	return "fall"
}

// Other returns the opposite transition.
func (t Transition) Other() Transition {
	if t == Rise {
		return Fall
	}
	return Rise
}

// AnalysisMode selects worst-case-max (setup) or worst-case-min (hold)
// dominance semantics. It is carried alongside a PathAP corner index
// because every corner is analyzed under both modes.
type AnalysisMode uint8

const (
	ModeMax AnalysisMode = iota
	ModeMin
)

func (m AnalysisMode) String() string {
	if m == ModeMax {
		return "max"
	}
	return "min"
}

// Dominates reports whether candidate d1 should replace incumbent d0 under
// this analysis mode: strictly greater for max-delay, strictly less for
// min-delay. Ties never dominate (spec.md §5: "tie-breaks in tag dominance
// are strict >, not >=, ensuring deterministic results across thread
// counts").
func (m AnalysisMode) Dominates(candidate, incumbent Delay) bool {
	if m == ModeMax {
		return candidate.Value() > incumbent.Value()
	}
	return candidate.Value() < incumbent.Value()
}

// WorstInitial returns the value a RequiredCmp/TNS accumulator should start
// from before any candidate has been proposed: -Inf for max-delay (so any
// real required time replaces it), +Inf for min-delay.
func (m AnalysisMode) WorstInitial() Delay {
	if m == ModeMax {
		return Delay{Mean: negInf}
	}
	return Delay{Mean: posInf}
}

const (
	posInf = 1e308
	negInf = -1e308
)

// Delay is a comparable timing value. When statistical analysis is
// disabled (the common case) only Mean is meaningful and Sigma is zero;
// Value() always returns the scalar used for dominance comparisons, so
// callers never need to branch on whether statistical mode is active.
type Delay struct {
	Mean  float64
	Sigma float64
}

// Value returns the scalar delay used for min/max comparisons.
func (d Delay) Value() float64 { return d.Mean }

// Add returns d + other, propagating sigma in quadrature when statistical
// analysis is in use (Sigma is zero in mean-only mode, so this degenerates
// to plain addition).
func (d Delay) Add(other Delay) Delay {
	return Delay{Mean: d.Mean + other.Mean, Sigma: quadratureSum(d.Sigma, other.Sigma)}
}

// Sub returns d - other.
func (d Delay) Sub(other Delay) Delay {
	return Delay{Mean: d.Mean - other.Mean, Sigma: quadratureSum(d.Sigma, other.Sigma)}
}

func quadratureSum(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	return math.Sqrt(a*a + b*b)
}

// FuzzyEqual reports whether two delays are equal within tol (spec.md
// §4.5 step 6).
func FuzzyEqual(a, b Delay, tol float64) bool {
	diff := a.Value() - b.Value()
	if diff < 0 {
		diff = -diff
	}
	return diff <= tol
}

// PinID identifies a pin in the external netlist. The core never
// interprets it; it is opaque outside of map keys and log output.
type PinID string

// VertexFlags is a bitmask of per-vertex boolean properties (spec.md §3).
type VertexFlags uint16

const (
	FlagRegClk VertexFlags = 1 << iota
	FlagLatchData
	FlagConst
	FlagBidirectDriver
	FlagHasDownstreamClkPins
	FlagTopLevelInput
	FlagPathDelayInternalEndpoint
	FlagInternalInputDelay
)

func (f VertexFlags) Has(bit VertexFlags) bool { return f&bit != 0 }

// PathVertexRep is a compact back-link used to reconstruct the chain of
// vertices a clock (or generated-clock source) path travelled through,
// needed by CRPR to find the common launch/capture clock sub-path.
type PathVertexRep struct {
	VertexID      uint32
	TagGroupIndex uint32 // index into the TagGroup owned by VertexID at capture time
	ArrivalIndex  int    // index into that vertex's Arrivals/PrevPath slices
}

// Valid reports whether the back-link actually points somewhere (the zero
// value means "no previous path", e.g. at a clock source vertex).
func (p PathVertexRep) Valid() bool { return p.VertexID != 0 || p.ArrivalIndex != 0 }

// EdgeRole is the timing role of an Edge (spec.md §3).
type EdgeRole uint8

const (
	RoleWire EdgeRole = iota
	RoleCombinational
	RoleRegClkToQ
	RoleLatchDToQ
	RoleLatchEnToQ
	RoleTimingCheck
	RoleTristateEnable
	RoleTristateDisable
)

func (r EdgeRole) IsWireOrComb() bool { return r == RoleWire || r == RoleCombinational }

// TimingArc is one (from-transition -> to-transition) delay arc on an
// edge's arc set.
type TimingArc struct {
	ID        int
	FromTr    Transition
	ToTr      Transition
	DelayCell int // opaque handle passed to DelayCalculator
}

// Edge is a directed connection between two vertices (spec.md §3).
type Edge struct {
	ID           uint32
	From, To     uint32
	Role         EdgeRole
	Arcs         []TimingArc
	DisabledLoop bool
	HierCookie   int
}

// ArcsFrom returns the arcs active for the given from-transition.
func (e *Edge) ArcsFrom(tr Transition) []TimingArc {
	out := make([]TimingArc, 0, len(e.Arcs))
	for _, a := range e.Arcs {
		if a.FromTr == tr {
			out = append(out, a)
		}
	}
	return out
}

// Vertex is a node in the levelized timing graph (spec.md §3), uniquely
// associated with one netlist pin.
type Vertex struct {
	ID    uint32
	Pin   PinID
	Level int
	Flags VertexFlags

	TagGroup intern.ID // 0 == none yet

	Arrivals []Delay
	PrevPath []PathVertexRep // nil unless this vertex sits on a clock/gen-clk source path

	Required []Delay // lazily allocated after required propagation

	Fanin  []uint32 // edge ids
	Fanout []uint32 // edge ids

	state vertexState
}

// vertexState is the per-vertex lifecycle state machine (spec.md §4.5):
// unseeded -> seeded -> visitedFresh <-> dirty -> stable.
type vertexState uint8

const (
	stateUnseeded vertexState = iota
	stateSeeded
	stateVisitedFresh
	stateDirty
	stateStable
)

// IsRegisterClock reports whether this vertex is a register clock pin.
func (v *Vertex) IsRegisterClock() bool { return v.Flags.Has(FlagRegClk) }

// IsLatchData reports whether this vertex is a latch data pin.
func (v *Vertex) IsLatchData() bool { return v.Flags.Has(FlagLatchData) }

// Graph is a levelized timing graph: the core's principal input. Vertex
// and Edge ids are dense indices into Vertices/Edges; id 0 is reserved
// (unused) so that the zero value of a uint32 id field means "none".
type Graph struct {
	Vertices []*Vertex // Vertices[0] is a sentinel, real vertices start at 1
	Edges    []*Edge   // Edges[0] is a sentinel
	Levels   [][]uint32
	MaxLevel int
}

// NewGraph returns an empty graph with the id-0 sentinels installed.
func NewGraph() *Graph {
	return &Graph{
		Vertices: []*Vertex{{}},
		Edges:    []*Edge{{}},
	}
}

// AddVertex appends a vertex, assigning it a dense id.
func (g *Graph) AddVertex(v *Vertex) uint32 {
	v.ID = uint32(len(g.Vertices))
	g.Vertices = append(g.Vertices, v)
	return v.ID
}

// AddEdge appends an edge, assigning it a dense id, and wires it into
// the endpoints' fanin/fanout lists.
func (g *Graph) AddEdge(e *Edge) uint32 {
	e.ID = uint32(len(g.Edges))
	g.Edges = append(g.Edges, e)
	g.Vertices[e.From].Fanout = append(g.Vertices[e.From].Fanout, e.ID)
	g.Vertices[e.To].Fanin = append(g.Vertices[e.To].Fanin, e.ID)
	return e.ID
}

// Vertex returns the vertex for id, or nil if out of range.
func (g *Graph) Vertex(id uint32) *Vertex {
	if id == 0 || int(id) >= len(g.Vertices) {
		return nil
	}
	return g.Vertices[id]
}

// Edge returns the edge for id, or nil if out of range.
func (g *Graph) Edge(id uint32) *Edge {
	if id == 0 || int(id) >= len(g.Edges) {
		return nil
	}
	return g.Edges[id]
}

// Levelize (re)computes Levels from Fanin edges via Kahn's algorithm,
// assigning roots (no fanin other than disabled-loop edges) to level 0.
// Vertices reachable only through disabled-loop edges are still counted
// through their non-loop fanins; a residual, unlevelized vertex (pure loop
// member) is placed one level past its highest-level fanin.
func (g *Graph) Levelize() {
	n := len(g.Vertices)
	indeg := make([]int, n)
	for _, e := range g.Edges[1:] {
		if e.DisabledLoop {
			continue
		}
		indeg[e.To]++
	}
	level := make([]int, n)
	queue := make([]uint32, 0, n)
	for id := 1; id < n; id++ {
		if indeg[id] == 0 {
			queue = append(queue, uint32(id))
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		v := g.Vertices[id]
		v.Level = level[id]
		if level[id] > g.MaxLevel {
			g.MaxLevel = level[id]
		}
		for _, eid := range v.Fanout {
			e := g.Edges[eid]
			if e.DisabledLoop {
				continue
			}
			if level[e.To] < level[id]+1 {
				level[e.To] = level[id] + 1
			}
			indeg[e.To]--
			if indeg[e.To] == 0 {
				queue = append(queue, e.To)
			}
		}
	}
	// Any vertex not reached (pure loop-only fanin) still needs a level;
	// fall back to one past its highest already-leveled fanin, or 0.
	for id := 1; id < n; id++ {
		v := g.Vertices[id]
		if v.state == stateUnseeded && level[id] == 0 && len(v.Fanin) > 0 {
			max := -1
			for _, eid := range v.Fanin {
				e := g.Edges[eid]
				if fromLvl := g.Vertices[e.From].Level; fromLvl > max {
					max = fromLvl
				}
			}
			if max >= 0 {
				v.Level = max + 1
				if v.Level > g.MaxLevel {
					g.MaxLevel = v.Level
				}
			}
		}
	}
	byLevel := make([][]uint32, g.MaxLevel+1)
	for id := 1; id < n; id++ {
		l := g.Vertices[id].Level
		byLevel[l] = append(byLevel[l], uint32(id))
	}
	g.Levels = byLevel
}
