// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Package intern implements the hash-consed storage used for Tag, ClkInfo
// and TagGroup records (spec.md §4.1, C1): find-or-intern by structural
// hash and equality, dense monotonically increasing indices, and a
// double-checked-lock resize that publishes a fully-built snapshot before
// any reader can observe it (spec.md §5).
package intern

import (
	"sync"
	"sync/atomic"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/pkg/errors"
)

// ID is a dense, stable, monotonically increasing handle into an Arena.
// The zero value is reserved to mean "no handle".
type ID uint32

// ErrIndexOverflow is returned by FindOrIntern when interning a new item
// would exceed the arena's configured capacity (spec.md §4.1: hitting
// tag_index_max/tag_group_index_max is fatal).
var ErrIndexOverflow = errors.New("intern: index capacity exceeded")

// EqualFunc reports whether two probes of type T are the same logical
// value. It is supplied by the caller rather than derived from
// hashstructure because some fields (e.g. references to other interned
// IDs) already compare correctly by value, while occasional fields
// (funcs, non-comparable slices used only for display) must be ignored.
type EqualFunc[T any] func(a, b *T) bool

type snapshot[T any] struct {
	items []*T
	index map[uint64][]ID
}

// Arena is a generic hash-consing table. All exported methods are safe
// for concurrent use by multiple goroutines (spec.md §5: "read-mostly
// under a lock per table").
type Arena[T any] struct {
	mu   sync.Mutex // serializes writers only; readers never block on it
	snap atomic.Pointer[snapshot[T]]
	max  ID
	name string
}

// New returns an empty arena that refuses to hand out an id >= max, so it
// holds at most max-1 entries (id 0 is reserved).
// name is used only in error messages.
func New[T any](name string, max ID) *Arena[T] {
	a := &Arena[T]{max: max, name: name}
	a.snap.Store(&snapshot[T]{items: []*T{nil}, index: map[uint64][]ID{}}) // id 0 reserved
	return a
}

// Len returns the number of interned entries, excluding the reserved id 0.
func (a *Arena[T]) Len() int {
	s := a.snap.Load()
	return len(s.items) - 1
}

// Get returns the item for id, or nil if id is out of range.
func (a *Arena[T]) Get(id ID) *T {
	s := a.snap.Load()
	if int(id) <= 0 || int(id) >= len(s.items) {
		return nil
	}
	return s.items[id]
}

// structHash computes the structural hash used to bucket probes. Hash
// collisions are resolved by eq, so a poor-quality hash only costs
// throughput, never correctness.
func structHash[T any](probe *T) uint64 {
	h, err := hashstructure.Hash(probe, hashstructure.FormatV2, &hashstructure.HashOptions{
		ZeroNil:      true,
		SlicesAsSets: false,
	})
	if err != nil {
		// hashstructure only fails on unsupported field kinds (channels,
		// funcs) at the top level; Tag/ClkInfo/TagGroup probes never
		// carry those, so this path is unreachable in practice. Fall
		// back to a constant bucket rather than panicking: correctness
		// is preserved (eq resolves the bucket), only throughput drops.
		return 0
	}
	return h
}

// FindOrIntern looks up probe by structural hash and eq; on a miss it
// allocates a new dense id, stores probe itself as the canonical
// instance, and publishes an updated snapshot. The fast path (hit) never
// takes the writer lock.
func (a *Arena[T]) FindOrIntern(probe *T, eq EqualFunc[T]) (ID, *T, error) {
	h := structHash(probe)

	if id, item, ok := a.lookup(a.snap.Load(), h, probe, eq); ok {
		return id, item, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Re-check under the lock: another writer may have interned the same
	// value between our lock-free lookup and acquiring the lock.
	cur := a.snap.Load()
	if id, item, ok := a.lookup(cur, h, probe, eq); ok {
		return id, item, nil
	}

	id := ID(len(cur.items))
	if a.max != 0 && id >= a.max {
		return 0, nil, errors.Wrapf(ErrIndexOverflow, "%s: max=%d", a.name, a.max)
	}

	// Build the new backing array and index map fully before publishing
	// the pointer, so concurrent readers never observe a torn array
	// (spec.md §5).
	newItems := make([]*T, len(cur.items), len(cur.items)+1)
	copy(newItems, cur.items)
	newItems = append(newItems, probe)

	newIndex := make(map[uint64][]ID, len(cur.index)+1)
	for k, v := range cur.index {
		bucket := make([]ID, len(v))
		copy(bucket, v)
		newIndex[k] = bucket
	}
	newIndex[h] = append(newIndex[h], id)

	a.snap.Store(&snapshot[T]{items: newItems, index: newIndex})

	return id, probe, nil
}

func (a *Arena[T]) lookup(s *snapshot[T], h uint64, probe *T, eq EqualFunc[T]) (ID, *T, bool) {
	for _, id := range s.index[h] {
		item := s.items[id]
		if eq(item, probe) {
			return id, item, true
		}
	}
	return 0, nil, false
}

// Reset discards all interned entries, keeping the arena usable
// (spec.md §4.9: arrivals_invalid() destroys tags/clk-infos/tag-groups
// en masse).
func (a *Arena[T]) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snap.Store(&snapshot[T]{items: []*T{nil}, index: map[uint64][]ID{}})
}

// All calls fn for every interned item, in id order starting at 1. fn
// must not call back into the arena's write path.
func (a *Arena[T]) All(fn func(ID, *T)) {
	s := a.snap.Load()
	for id := 1; id < len(s.items); id++ {
		fn(ID(id), s.items[id])
	}
}
