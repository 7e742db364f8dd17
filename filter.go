// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

// filterState describes the currently-installed path-delay filter, if
// any (SPEC_FULL.md §4, grounded on Search.cc's filter installation,
// which stamps a FilterMarker onto every tag on the filtered segment).
type filterState struct {
	id int

	// internedTags/internedClkInfos/internedTagGroups record every arena
	// entry interned or looked up while this filter was active. Nothing
	// reads them back: RemoveFilter wipes filter-tagged vertex state and
	// the arena entries stay interned.
	internedTags      map[TagID]bool
	internedClkInfos  map[ClkInfoID]bool
	internedTagGroups map[TagGroupID]bool
}

// ArrivalInvalid records vertex v in the invalid-arrivals set and
// retracts its TNS contribution (spec.md §4.5's incremental re-entry
// point, grounded on Search::arrivalInvalid). The arrival sweeps do not
// consult that set; they revisit every vertex.
func (e *Engine) ArrivalInvalid(v *Vertex) {
	if v == nil {
		return
	}
	e.mu.Lock()
	e.invalidArrivals[v.ID] = true
	e.mu.Unlock()
	e.TNSNotifyBefore(v)
}

// RequiredInvalid marks vertex v's required time as needing
// recomputation on the next backward sweep (grounded on
// Search::requiredInvalid).
func (e *Engine) RequiredInvalid(v *Vertex) {
	if v == nil {
		return
	}
	e.mu.Lock()
	e.invalidRequired[v.ID] = true
	e.mu.Unlock()
	e.TNSNotifyBefore(v)
}

// DeleteVertexBefore must be called before a vertex is removed from the
// graph (by the caller's incremental netlist editor) so any accounting
// keyed on it — invalidation sets, pending-latch-output set, endpoint
// cache — is retracted first (SPEC_FULL.md §4, grounded on
// Search::deleteVertexBefore).
func (e *Engine) DeleteVertexBefore(v *Vertex) {
	if v == nil {
		return
	}
	e.mu.Lock()
	delete(e.invalidArrivals, v.ID)
	delete(e.invalidRequired, v.ID)
	delete(e.pendingLatchOuts, v.ID)
	e.mu.Unlock()
	e.TNSNotifyBefore(v)
	e.slack.invalidateEndpoints()
}

// ArrivalsInvalid wipes every intern arena and marks the entire graph as
// unseeded, forcing a full from-scratch analysis on the next
// FindAllArrivals call (spec.md §4.1/§9, grounded on Search::clear: a
// wholesale wipe is cheaper and simpler than tracking per-entry
// reference counts across an SDC-wide change).
func (e *Engine) ArrivalsInvalid() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tags.Reset()
	e.clkInfos.Reset()
	e.tagGroups.Reset()
	e.invalidArrivals = map[uint32]bool{}
	e.invalidRequired = map[uint32]bool{}
	e.pendingLatchOuts = map[uint32]bool{}
	e.seeded = false
	e.clkSeeded = false
	e.activeFilter = nil
	e.genClkInsertion = map[int]Delay{}
	for _, v := range e.graph.Vertices[1:] {
		v.TagGroup = 0
		v.Arrivals = nil
		v.PrevPath = nil
		v.Required = nil
	}
	e.slack.invalidateEndpoints()
}

// InstallFilter marks the analysis as being under a path-delay filter
// with the given id (spec.md §4.9's filter seeding); subsequent tag
// interning that happens while this filter is active is recorded in the
// filterState (grounded on Search.cc's filter tag-group bookkeeping).
// RemoveFilter does not reclaim those entries.
func (e *Engine) InstallFilter(id int) {
	e.activeFilter = &filterState{
		id:                id,
		internedTags:      map[TagID]bool{},
		internedClkInfos:  map[ClkInfoID]bool{},
		internedTagGroups: map[TagGroupID]bool{},
	}
}

// noteFilterTag records that tag was interned (or already existed) while
// a filter is active; called by the filter-seeding path in seeder.go.
func (e *Engine) noteFilterTag(id TagID) {
	if e.activeFilter != nil {
		e.activeFilter.internedTags[id] = true
	}
}

func (e *Engine) noteFilterTagGroup(id TagGroupID) {
	if e.activeFilter != nil {
		e.activeFilter.internedTagGroups[id] = true
	}
}

func (e *Engine) noteFilterClkInfo(id ClkInfoID) {
	if e.activeFilter != nil {
		e.activeFilter.internedClkInfos[id] = true
	}
}

// RemoveFilter deletes the active filter (spec.md §4.9, grounded on
// Search::deleteFilteredArrivals). It sweeps every live vertex's
// committed tag-group for the filter marker: a vertex whose tag-group
// carries filter-tagged state had its arrivals seeded or propagated only
// because the filter was installed, so that state is wiped outright
// (TagGroup/Arrivals/PrevPath/Required all reset to zero) and the vertex
// is marked invalid on both sweeps, exactly as Search::deletePaths plus
// arrivalInvalid/requiredInvalid do per filtered vertex. Vertices whose
// tag-group has no filter marker are untouched — their tags were
// unaffected by the filter and keep their committed arrivals.
//
// The intern arenas themselves are append-only (spec.md §4.1:
// publish-after-full-copy, no per-entry deletion, the same tradeoff
// ArrivalsInvalid documents), so the arena-level teardown
// deleteFilterTagGroups/deleteFilterTags/deleteFilterClkInfos perform in
// the original tool has no counterpart here: a filter-tagged Tag or
// ClkInfo that no vertex references any more is simply left interned,
// harmless dead weight rather than observable state.
func (e *Engine) RemoveFilter() {
	f := e.activeFilter
	if f == nil {
		return
	}
	e.activeFilter = nil

	for _, v := range e.graph.Vertices[1:] {
		if v.TagGroup == 0 {
			continue
		}
		tg := e.TagGroupOf(v.TagGroup)
		if tg == nil || !tg.HasFilterTag {
			continue
		}
		v.TagGroup = 0
		v.Arrivals = nil
		v.PrevPath = nil
		v.Required = nil
		e.ArrivalInvalid(v)
		e.RequiredInvalid(v)
	}
	e.slack.invalidateEndpoints()
}
