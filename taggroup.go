// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import (
	"sort"

	"github.com/db47h/stacore/internal/except"
	"github.com/db47h/stacore/internal/intern"
)

// TagGroup is the interned description of one vertex's tag multiset
// (spec.md §3/§4.1): a dense ordering of TagIDs plus summary flags. Two
// vertices whose live tag set is identical share the same TagGroup.
type TagGroup struct {
	Tags []TagID // ordering defines Vertex.Arrivals/PrevPath layout

	HasClkTag       bool
	HasGenClkSrcTag bool
	HasLoopTag      bool
	HasFilterTag    bool
}

// IndexOf returns the position of tag within the group, or -1.
func (tg *TagGroup) IndexOf(tag TagID) int {
	for i, t := range tg.Tags {
		if t == tag {
			return i
		}
	}
	return -1
}

func tagGroupEqual(a, b *TagGroup) bool {
	if len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	return true
}

// TagGroupID is an interned handle to a TagGroup.
type TagGroupID = intern.ID

func (e *Engine) internTagGroup(probe *TagGroup) (TagGroupID, *TagGroup, error) {
	id, tg, err := e.tagGroups.FindOrIntern(probe, tagGroupEqual)
	if err != nil {
		return 0, nil, e.fatal(ErrMaxTagGroupIndexExceeded, err)
	}
	return id, tg, nil
}

// TagGroupOf resolves a TagGroupID back to its TagGroup.
func (e *Engine) TagGroupOf(id TagGroupID) *TagGroup { return e.tagGroups.Get(id) }

// slot is one (tag, arrival, prev-path) triple held in a Builder while a
// vertex visit is in progress.
type slot struct {
	tag      TagID
	arrival  Delay
	prevPath PathVertexRep
	touched  bool // true once something wrote to this slot during the
	// current visit. Nothing reads it back: CopyArrivals keeps every live
	// slot, touched or not, which is how pre-existing slots from Init
	// survive a visit (spec.md §4.3 init).
}

// Builder is the per-vertex scratch structure that accumulates the best
// arrival per tag during one visit (spec.md §4.3, C3). A Builder is not
// safe for concurrent use; the engine allocates one per vertex per visit
// and the visiting goroutine owns it exclusively.
type Builder struct {
	e      *Engine
	byTag  map[TagID]int
	slots  []slot
	mode   AnalysisMode

	HasClkTag       bool
	HasGenClkSrcTag bool
	HasLoopTag      bool
	HasFilterTag    bool
}

// NewBuilder allocates an empty Builder bound to engine e's arenas.
func (e *Engine) NewBuilder(mode AnalysisMode) *Builder {
	return &Builder{e: e, byTag: make(map[TagID]int, 4), mode: mode}
}

// Init seeds the builder with vertex's current tag/arrival pairs
// (spec.md §4.3 init) so that tags not touched by this visit's fanin
// keep their previous value rather than disappearing.
func (b *Builder) Init(v *Vertex) {
	b.byTag = make(map[TagID]int, len(v.Arrivals)+2)
	b.slots = b.slots[:0]
	b.HasClkTag, b.HasGenClkSrcTag, b.HasLoopTag, b.HasFilterTag = false, false, false, false

	tg := b.e.TagGroupOf(v.TagGroup)
	if tg == nil {
		return
	}
	for i, tid := range tg.Tags {
		s := slot{tag: tid, arrival: v.Arrivals[i]}
		if i < len(v.PrevPath) {
			s.prevPath = v.PrevPath[i]
		}
		b.slots = append(b.slots, s)
		b.byTag[tid] = len(b.slots) - 1
		b.updateSummaryFlags(tid)
	}
}

// TagMatch locates the arrival already recorded for toTag's identity, if
// any (spec.md §4.3 tag_match).
func (b *Builder) TagMatch(toTag TagID) (existing TagID, arrival Delay, index int, found bool) {
	i, ok := b.byTag[toTag]
	if !ok {
		return 0, Delay{}, -1, false
	}
	return b.slots[i].tag, b.slots[i].arrival, i, true
}

// SetMatchArrival either updates the existing slot at index (when
// existingOrNone is a valid TagID) or appends a new slot for toTag,
// keeping the dominant value under the builder's analysis mode
// (spec.md §4.3 set_match_arrival, §8 property 2). It returns true if
// the stored value actually changed.
func (b *Builder) SetMatchArrival(toTag TagID, existingOrNone TagID, newArrival Delay, index int, prevPath PathVertexRep) bool {
	if existingOrNone != 0 && index >= 0 {
		cur := b.slots[index]
		if !b.mode.Dominates(newArrival, cur.arrival) {
			return false
		}
		b.slots[index].arrival = newArrival
		b.slots[index].prevPath = prevPath
		b.slots[index].touched = true
		return true
	}
	b.slots = append(b.slots, slot{tag: toTag, arrival: newArrival, prevPath: prevPath, touched: true})
	b.byTag[toTag] = len(b.slots) - 1
	b.updateSummaryFlags(toTag)
	return true
}

// DeleteArrival removes a slot entirely (used by CRPR pruning,
// spec.md §4.5 step 4).
func (b *Builder) DeleteArrival(tag TagID) {
	i, ok := b.byTag[tag]
	if !ok {
		return
	}
	last := len(b.slots) - 1
	moved := b.slots[last]
	b.slots[i] = moved
	b.slots = b.slots[:last]
	delete(b.byTag, tag)
	if i < len(b.slots) {
		b.byTag[moved.tag] = i
	}
}

func (b *Builder) updateSummaryFlags(tid TagID) {
	t := b.e.Tag(tid)
	if t == nil {
		return
	}
	if t.IsClock {
		b.HasClkTag = true
	}
	ci := b.e.ClkInfoOf(t.ClkInfo)
	if ci != nil && ci.IsGenClkSrcPath {
		b.HasGenClkSrcTag = true
	}
	if t.States.HasCompleteLoop() || hasLoopState(t.States) {
		b.HasLoopTag = true
	}
	if t.FilterMarker {
		b.HasFilterTag = true
	}
}

func hasLoopState(s except.Set) bool {
	for _, st := range s {
		if st.Kind == except.KindLoop {
			return true
		}
	}
	return false
}

// Len returns the number of live slots.
func (b *Builder) Len() int { return len(b.slots) }

// Mode returns the builder's analysis mode.
func (b *Builder) Mode() AnalysisMode { return b.mode }

// TagAt returns the tag and arrival held in slot i, for callers (CRPR
// pruning) that need to scan the builder's current content without
// going through CopyArrivals.
func (b *Builder) TagAt(i int) (TagID, Delay) { return b.slots[i].tag, b.slots[i].arrival }

// CopyArrivals materializes the final arrival (and prev-path) array in
// the ordering defined by the interned TagGroup for the builder's
// current content, finding-or-interning that TagGroup along the way
// (spec.md §4.3 copy_arrivals).
func (b *Builder) CopyArrivals() (TagGroupID, []Delay, []PathVertexRep, error) {
	tags := make([]TagID, len(b.slots))
	for i, s := range b.slots {
		tags[i] = s.tag
	}
	// Canonical order, so the same tag set interns to the same TagGroup
	// whatever order the slots were filled in.
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	probe := &TagGroup{
		Tags:            tags,
		HasClkTag:       b.HasClkTag,
		HasGenClkSrcTag: b.HasGenClkSrcTag,
		HasLoopTag:      b.HasLoopTag,
		HasFilterTag:    b.HasFilterTag,
	}
	id, tg, err := b.e.internTagGroup(probe)
	if err != nil {
		return 0, nil, nil, err
	}
	arrivals := make([]Delay, len(tg.Tags))
	prevs := make([]PathVertexRep, len(tg.Tags))
	for i, tid := range tg.Tags {
		si := b.byTag[tid]
		arrivals[i] = b.slots[si].arrival
		prevs[i] = b.slots[si].prevPath
	}
	return id, arrivals, prevs, nil
}
