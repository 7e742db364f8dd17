// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package sdc

import (
	"sync"

	"github.com/db47h/stacore"
	"github.com/db47h/stacore/internal/except"
)

// Store is a plain in-memory stacore.ConstraintStore/ExceptionProvider.
// It is intentionally simple: a handful of maps keyed by vertex id, with
// no query optimization beyond what a map lookup gives for free. Larger
// designs would want an index built once after all constraints are
// loaded (mirroring how the original tool resolves SDC references at
// "link" time rather than per-query), but that optimization has no
// SPEC_FULL.md component demanding it yet.
type Store struct {
	mu sync.RWMutex

	clocksByVertex       map[uint32][]stacore.ClockDef
	inputDelaysByVertex  map[uint32][]stacore.InputDelay
	pathDelaysByVertex   map[uint32][]stacore.PathDelayException
	uncertainty          map[int]stacore.Delay
	derate               map[derateKey]float64
	propagated           map[int]bool
	crprActive           bool
	dynamicLoopBreaking  bool
	clockThruTristate    bool
	exceptions           []Exception
}

type derateKey struct {
	role  stacore.EdgeRole
	isClk bool
	ap    int
}

// NewStore returns an empty Store with CRPR active and dynamic loop
// breaking disabled (stacore.Config has no switch for either).
func NewStore() *Store {
	return &Store{
		clocksByVertex:      map[uint32][]stacore.ClockDef{},
		inputDelaysByVertex: map[uint32][]stacore.InputDelay{},
		pathDelaysByVertex:  map[uint32][]stacore.PathDelayException{},
		uncertainty:         map[int]stacore.Delay{},
		derate:              map[derateKey]float64{},
		propagated:          map[int]bool{},
		crprActive:          true,
	}
}

// AddClock registers clk as a clock rooted at vertex.
func (s *Store) AddClock(vertex uint32, clk stacore.ClockDef, propagated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clocksByVertex[vertex] = append(s.clocksByVertex[vertex], clk)
	s.propagated[clk.ID] = propagated
}

// AddInputDelay registers an input-delay record at vertex.
func (s *Store) AddInputDelay(vertex uint32, id stacore.InputDelay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id.Pin = vertex
	s.inputDelaysByVertex[vertex] = append(s.inputDelaysByVertex[vertex], id)
}

// AddPathDelaySegment registers a segment-start exception at vertex.
func (s *Store) AddPathDelaySegment(vertex uint32, seg stacore.PathDelayException) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg.FromPin = vertex
	s.pathDelaysByVertex[vertex] = append(s.pathDelaysByVertex[vertex], seg)
}

// AddException registers a false-path/multicycle/min-max-delay/filter
// exception.
func (s *Store) AddException(e Exception) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions = append(s.exceptions, e)
}

// SetUncertainty sets the uncertainty margin for a clock id.
func (s *Store) SetUncertainty(clockID int, d stacore.Delay) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uncertainty[clockID] = d
}

// SetDerate sets the derating factor for a (role, isClk, apIndex) triple.
func (s *Store) SetDerate(role stacore.EdgeRole, isClk bool, apIndex int, factor float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derate[derateKey{role, isClk, apIndex}] = factor
}

// SetCRPRActive toggles clock-reconvergence pessimism removal.
func (s *Store) SetCRPRActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crprActive = active
}

// SetDynamicLoopBreaking toggles disabled-loop crossing for pending
// loop-tagged arrivals.
func (s *Store) SetDynamicLoopBreaking(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dynamicLoopBreaking = active
}

// SetClockThruTristateAllowed toggles whether clocks may propagate
// through tristate enable/disable edges.
func (s *Store) SetClockThruTristateAllowed(allowed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clockThruTristate = allowed
}

func (s *Store) ClocksAt(vertex uint32) []stacore.ClockDef {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]stacore.ClockDef(nil), s.clocksByVertex[vertex]...)
}

func (s *Store) InputDelaysAt(vertex uint32) []stacore.InputDelay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]stacore.InputDelay(nil), s.inputDelaysByVertex[vertex]...)
}

func (s *Store) PathDelaySegmentsAt(vertex uint32) []stacore.PathDelayException {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]stacore.PathDelayException(nil), s.pathDelaysByVertex[vertex]...)
}

func (s *Store) Uncertainty(clk stacore.ClockDef, apIndex int) stacore.Delay {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uncertainty[clk.ID]
}

func (s *Store) Derate(role stacore.EdgeRole, isClk bool, apIndex int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.derate[derateKey{role, isClk, apIndex}]; ok {
		return f
	}
	return 1.0
}

func (s *Store) IsPropagated(clk stacore.ClockDef, vertex uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.propagated[clk.ID]
}

func (s *Store) CRPRActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crprActive
}

func (s *Store) DynamicLoopBreakingActive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dynamicLoopBreaking
}

func (s *Store) ClockThruTristateAllowed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clockThruTristate
}

// Exceptions implements stacore.ExceptionProvider.
func (s *Store) Exceptions() []except.Exception {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]except.Exception, len(s.exceptions))
	for i, e := range s.exceptions {
		out[i] = e.toInternal()
	}
	return out
}

var (
	_ stacore.ConstraintStore   = (*Store)(nil)
	_ stacore.ExceptionProvider = (*Store)(nil)
)
