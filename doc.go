// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

/*
Package stacore implements the arrival/required-time propagation core of a
static timing analysis engine.

Given a levelized timing graph (Graph, Vertex, Edge) and a read-only
constraint store (ConstraintStore) describing clocks, exceptions and
input delays, the engine computes, for every vertex, the set of
distinct timing paths (Tag) that reach it, their worst-case Arrival
times, and — after a backward sweep — their Required times and Slacks.

The hard part is that a vertex does not carry a single arrival: it
carries one arrival per Tag, where a Tag distinguishes paths by clock
edge, transition, analysis corner, and path-exception state. Tags,
ClkInfo records and TagGroups are hash-consed (internal/intern) so
that equality is pointer/index identity, which lets the forward and
backward sweeps run as parallel level-synchronous breadth-first
searches (internal/levelsweep) without per-comparison locking.

Liberty/SDC parsing, netlist construction, gate delay calculation and
path reporting are external collaborators, not part of this package;
see the interfaces in interfaces.go.
*/
package stacore
