// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/db47h/stacore/internal/except"
	"github.com/db47h/stacore/internal/intern"
)

// Engine is the explicit, passed-by-reference analysis state that
// replaces the original tool's global-static STA singleton (spec.md §9
// redesign note). Every subsystem (seeder, propagators, aggregator)
// takes an *Engine rather than reaching for ambient state, and nothing
// in this package uses a package-level or thread-local singleton.
type Engine struct {
	// AnalysisID identifies one analysis: NewEngine and Reset each assign
	// a fresh one. The engine does not add it to log lines or spans.
	AnalysisID uuid.UUID

	cfg      Config
	graph    *Graph
	netlist  NetlistView
	sdc      ConstraintStore
	delays   DelayCalculator
	latches  LatchAnalyzer
	pathEnds PathEndVisitor

	tags      *intern.Arena[Tag]
	clkInfos  *intern.Arena[ClkInfo]
	tagGroups *intern.Arena[TagGroup]
	except    *except.Engine

	log    *slog.Logger
	tracer trace.Tracer

	warnings []Warning

	// Incremental/filter state (C9); guarded by mu, contention is rare.
	mu               sync.Mutex
	invalidArrivals  map[uint32]bool
	invalidRequired  map[uint32]bool
	pendingLatchOuts map[uint32]bool

	slack *slackAggregator

	seeded    bool
	clkSeeded bool

	activeFilter *filterState

	// genClkInsertion caches each generated ClockDef's resolved insertion
	// delay (spec.md §4.7), keyed by ClockDef.ID, so seedClocks can read it
	// back when building that clock's ClkInfo.
	genClkInsertion map[int]Delay
}

// Deps bundles the external collaborators an Engine needs (spec.md §6).
// Netlist, ConstraintStore and DelayCalculator are required; Latches and
// PathEnds may be nil if the design has no latches / the caller does not
// need required-time propagation.
type Deps struct {
	Netlist  NetlistView
	SDC      ConstraintStore
	Delays   DelayCalculator
	Latches  LatchAnalyzer
	PathEnds PathEndVisitor
	Logger   *slog.Logger

	// TracerProvider overrides where e.tracer's spans are sent; tests use
	// this to install an SDK TracerProvider backed by an in-memory span
	// recorder instead of the global no-op one. Nil uses otel's global
	// provider.
	TracerProvider trace.TracerProvider
}

// NewEngine builds an Engine bound to graph and deps, using cfg's limits
// (spec.md §9: "an explicit Engine value passed by reference to every
// subsystem").
func NewEngine(graph *Graph, deps Deps, cfg Config) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracerProvider := deps.TracerProvider
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	exceptions := exceptionsFromSDC(deps.SDC)
	e := &Engine{
		AnalysisID: uuid.New(),
		cfg:        cfg,
		graph:      graph,
		netlist:    deps.Netlist,
		sdc:        deps.SDC,
		delays:     deps.Delays,
		latches:    deps.Latches,
		pathEnds:   deps.PathEnds,
		tags:       intern.New[Tag]("tags", cfg.TagIndexMax),
		clkInfos:   intern.New[ClkInfo]("clk-infos", cfg.TagIndexMax),
		tagGroups:  intern.New[TagGroup]("tag-groups", cfg.TagGroupIndexMax),
		except:     except.NewEngine(exceptions),
		log:        logger,
		tracer:     tracerProvider.Tracer("stacore"),

		invalidArrivals:  map[uint32]bool{},
		invalidRequired:  map[uint32]bool{},
		pendingLatchOuts: map[uint32]bool{},
		genClkInsertion:  map[int]Delay{},
	}
	e.slack = newSlackAggregator(e)
	return e
}

// exceptionsFromSDC adapts a ConstraintStore's exceptions into the
// except.Engine's input shape. A ConstraintStore that does not implement
// ExceptionProvider simply yields no exceptions (an engine with no path
// exceptions installed is a valid, if unusual, configuration).
func exceptionsFromSDC(store ConstraintStore) []except.Exception {
	if p, ok := store.(ExceptionProvider); ok {
		return p.Exceptions()
	}
	return nil
}

// ExceptionProvider is an optional ConstraintStore extension exposing
// the installed path exceptions (spec.md §6 "exceptions
// (false/multi-cycle/max/min/path-delay/filter)"). Split out from
// ConstraintStore itself so a minimal constraint store (no exceptions)
// need not implement it.
type ExceptionProvider interface {
	Exceptions() []except.Exception
}

// Graph returns the graph this engine analyzes.
func (e *Engine) Graph() *Graph { return e.graph }

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Warnings returns every recoverable condition recorded so far
// (spec.md §7).
func (e *Engine) Warnings() []Warning { return e.warnings }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.log }

// Reset rebinds the engine to a fresh graph/constraint-store pair,
// discarding all intern-table and incremental state (SPEC_FULL.md §4,
// grounded on Search::copyState/Search::clear). Used when the caller
// wants to reuse worker pools/config across independent analyses rather
// than constructing a new Engine each time.
func (e *Engine) Reset(graph *Graph, sdc ConstraintStore) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.graph = graph
	e.sdc = sdc
	e.tags.Reset()
	e.clkInfos.Reset()
	e.tagGroups.Reset()
	e.except = except.NewEngine(exceptionsFromSDC(sdc))
	e.invalidArrivals = map[uint32]bool{}
	e.invalidRequired = map[uint32]bool{}
	e.pendingLatchOuts = map[uint32]bool{}
	e.warnings = nil
	e.seeded = false
	e.clkSeeded = false
	e.activeFilter = nil
	e.genClkInsertion = map[int]Delay{}
	e.slack = newSlackAggregator(e)
	e.AnalysisID = uuid.New()
}

// VisitStartpoints walks every vertex the seeder treats as a startpoint
// (SPEC_FULL.md §4, grounded on Search::visitStartpoints): clock source
// pins, top-level input ports, internal input-delay pins, and unclocked
// roots.
func (e *Engine) VisitStartpoints(v VertexVisitor) error {
	for _, vv := range e.graph.Vertices[1:] {
		if e.isStartpoint(vv) {
			if err := v.Visit(vv); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) isStartpoint(v *Vertex) bool {
	if len(e.sdc.ClocksAt(v.ID)) > 0 {
		return true
	}
	if len(e.sdc.InputDelaysAt(v.ID)) > 0 {
		return true
	}
	if v.Flags.Has(FlagTopLevelInput) {
		return true
	}
	return len(v.Fanin) == 0
}

// VisitEndpoints walks every vertex the slack aggregator treats as an
// endpoint (SPEC_FULL.md §4, grounded on Search::visitEndpoints).
func (e *Engine) VisitEndpoints(v VertexVisitor) error {
	for _, vv := range e.Endpoints() {
		if err := v.Visit(vv); err != nil {
			return err
		}
	}
	return nil
}

// LevelChangedBefore must be called by an external incremental levelizer
// before lowering vertex v's level, so arrivals computed at v's old,
// higher level (which may have seen fanins that will no longer have
// finished before v is now visited) are invalidated (SPEC_FULL.md §4,
// grounded on Search::levelChangedBefore).
func (e *Engine) LevelChangedBefore(v *Vertex) {
	e.ArrivalInvalid(v)
}
