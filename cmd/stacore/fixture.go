// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/db47h/stacore"
	"github.com/db47h/stacore/sdc"
)

// fixtureVertex is one vertex entry in a YAML timing-graph fixture.
type fixtureVertex struct {
	ID    uint32   `yaml:"id"`
	Pin   string   `yaml:"pin"`
	Flags []string `yaml:"flags"`
}

// fixtureArc is one timing arc within a fixture edge.
type fixtureArc struct {
	From  string  `yaml:"from"`
	To    string  `yaml:"to"`
	Delay float64 `yaml:"delay"`
}

// fixtureEdge is one edge entry.
type fixtureEdge struct {
	From uint32       `yaml:"from"`
	To   uint32       `yaml:"to"`
	Role string       `yaml:"role"`
	Arcs []fixtureArc `yaml:"arcs"`
}

type fixtureClock struct {
	ID         int     `yaml:"id"`
	Vertex     uint32  `yaml:"vertex"`
	Edge       string  `yaml:"edge"`
	Period     float64 `yaml:"period"`
	Propagated bool    `yaml:"propagated"`
}

type fixtureInputDelay struct {
	ID         int     `yaml:"id"`
	Vertex     uint32  `yaml:"vertex"`
	Transition string  `yaml:"transition"`
	Delay      float64 `yaml:"delay"`
}

type fixtureCheck struct {
	Vertex   uint32  `yaml:"vertex"`
	Required float64 `yaml:"required"`
	Mode     string  `yaml:"mode"`
}

// fixture is the top-level YAML document a `stacore run` invocation
// consumes: a small self-contained timing graph plus its constraints,
// standing in for the netlist+SDC pair the original tool would read
// from a design database (SPEC_FULL.md §0, cmd/stacore).
type fixture struct {
	Vertices    []fixtureVertex     `yaml:"vertices"`
	Edges       []fixtureEdge       `yaml:"edges"`
	Clocks      []fixtureClock      `yaml:"clocks"`
	InputDelays []fixtureInputDelay `yaml:"input_delays"`
	Checks      []fixtureCheck      `yaml:"checks"`
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading fixture %s", path)
	}
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing fixture %s", path)
	}
	return &f, nil
}

func parseTransition(s string) stacore.Transition {
	if s == "fall" {
		return stacore.Fall
	}
	return stacore.Rise
}

func parseFlags(names []string) stacore.VertexFlags {
	var f stacore.VertexFlags
	for _, n := range names {
		switch n {
		case "reg_clk":
			f |= stacore.FlagRegClk
		case "latch_data":
			f |= stacore.FlagLatchData
		case "const":
			f |= stacore.FlagConst
		case "bidirect_driver":
			f |= stacore.FlagBidirectDriver
		case "has_downstream_clk_pins":
			f |= stacore.FlagHasDownstreamClkPins
		case "top_level_input":
			f |= stacore.FlagTopLevelInput
		case "path_delay_internal_endpoint":
			f |= stacore.FlagPathDelayInternalEndpoint
		case "internal_input_delay":
			f |= stacore.FlagInternalInputDelay
		}
	}
	return f
}

func parseRole(s string) stacore.EdgeRole {
	switch s {
	case "comb":
		return stacore.RoleCombinational
	case "reg_clk_to_q":
		return stacore.RoleRegClkToQ
	case "latch_d_to_q":
		return stacore.RoleLatchDToQ
	case "latch_en_to_q":
		return stacore.RoleLatchEnToQ
	case "timing_check":
		return stacore.RoleTimingCheck
	case "tristate_enable":
		return stacore.RoleTristateEnable
	case "tristate_disable":
		return stacore.RoleTristateDisable
	default:
		return stacore.RoleWire
	}
}

// buildGraph materializes f into a levelized *stacore.Graph plus the
// *sdc.Store carrying its clocks and input delays.
func buildGraph(f *fixture) (*stacore.Graph, *sdc.Store, error) {
	g := stacore.NewGraph()
	byFixtureID := map[uint32]uint32{}

	for _, fv := range f.Vertices {
		id := g.AddVertex(&stacore.Vertex{
			Pin:   stacore.PinID(fv.Pin),
			Flags: parseFlags(fv.Flags),
		})
		byFixtureID[fv.ID] = id
	}

	arcCounter := 0
	for _, fe := range f.Edges {
		from, ok1 := byFixtureID[fe.From]
		to, ok2 := byFixtureID[fe.To]
		if !ok1 || !ok2 {
			return nil, nil, fmt.Errorf("edge references unknown vertex %d->%d", fe.From, fe.To)
		}
		arcs := make([]stacore.TimingArc, len(fe.Arcs))
		for i, a := range fe.Arcs {
			arcs[i] = stacore.TimingArc{
				ID:        i,
				FromTr:    parseTransition(a.From),
				ToTr:      parseTransition(a.To),
				DelayCell: arcCounter,
			}
			arcCounter++
		}
		g.AddEdge(&stacore.Edge{
			From: from,
			To:   to,
			Role: parseRole(fe.Role),
			Arcs: arcs,
		})
	}
	g.Levelize()

	store := sdc.NewStore()
	for _, c := range f.Clocks {
		vid, ok := byFixtureID[c.Vertex]
		if !ok {
			return nil, nil, fmt.Errorf("clock references unknown vertex %d", c.Vertex)
		}
		store.AddClock(vid, stacore.ClockDef{
			ID:        c.ID,
			SourcePin: vid,
			Edge:      parseTransition(c.Edge),
			Period:    c.Period,
		}, c.Propagated)
	}
	for _, d := range f.InputDelays {
		vid, ok := byFixtureID[d.Vertex]
		if !ok {
			return nil, nil, fmt.Errorf("input delay references unknown vertex %d", d.Vertex)
		}
		store.AddInputDelay(vid, stacore.InputDelay{
			ID:         d.ID,
			Transition: parseTransition(d.Transition),
			Delay:      stacore.Delay{Mean: d.Delay},
		})
	}

	return g, store, nil
}

// unitDelay is a trivial DelayCalculator that returns each arc's fixed
// fixture-supplied delay verbatim (real gate-level delay calculation is
// external, per spec.md §6); it exists so `stacore run` can exercise the
// engine end-to-end against a plain YAML fixture without a liberty
// timing library.
type unitDelay struct {
	byArc map[int]float64
}

func newUnitDelay(f *fixture) *unitDelay {
	d := &unitDelay{byArc: map[int]float64{}}
	n := 0
	for _, fe := range f.Edges {
		for _, a := range fe.Arcs {
			d.byArc[n] = a.Delay
			n++
		}
	}
	return d
}

func (d *unitDelay) ArcDelay(ctx context.Context, edge *stacore.Edge, arc stacore.TimingArc, apIndex int) (stacore.Delay, error) {
	return stacore.Delay{Mean: d.byArc[arc.DelayCell]}, nil
}

// noNetlist is a NetlistView that answers every query with the
// conservative default (no pulses, no hierarchy, nothing is a load),
// suitable for fixtures that don't exercise those features.
type noNetlist struct{}

func (noNetlist) PinDirection(pin stacore.PinID) stacore.PinDirection { return stacore.DirInput }
func (noNetlist) IsTopLevelPort(pin stacore.PinID) bool               { return false }
func (noNetlist) PulseClockSense(pin stacore.PinID) stacore.PulseSense {
	return stacore.PulseNone
}
func (noNetlist) HierarchicalPins(pin stacore.PinID) []stacore.PinID { return nil }
func (noNetlist) IsLatchData(pin stacore.PinID) bool                 { return false }
func (noNetlist) IsCheckClock(pin stacore.PinID) bool                { return false }
func (noNetlist) IsLoad(pin stacore.PinID) bool                      { return false }
