package stacore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/db47h/stacore"
)

// buildCombinationalChain wires in -> RoleCombinational -> out, with a
// rise->rise and fall->fall arc on cell 0, and an input delay of 1ns on
// both transitions at in.
func buildCombinationalChain(t *testing.T) (*stacore.Graph, uint32, uint32) {
	t.Helper()
	g := stacore.NewGraph()
	in := g.AddVertex(&stacore.Vertex{Pin: "in", Flags: stacore.FlagTopLevelInput})
	out := g.AddVertex(&stacore.Vertex{Pin: "out"})
	g.AddEdge(&stacore.Edge{
		From: in,
		To:   out,
		Role: stacore.RoleCombinational,
		Arcs: []stacore.TimingArc{
			{ID: 1, FromTr: stacore.Rise, ToTr: stacore.Rise, DelayCell: 0},
			{ID: 2, FromTr: stacore.Fall, ToTr: stacore.Fall, DelayCell: 0},
		},
	})
	g.Levelize()
	return g, in, out
}

func TestFindAllArrivalsPropagatesThroughCombinationalEdge(t *testing.T) {
	g, in, out := buildCombinationalChain(t)

	sdc := newFakeConstraints()
	sdc.inputDelays[in] = []stacore.InputDelay{
		{ID: 1, Transition: stacore.Rise, Delay: stacore.Delay{Mean: 1}},
		{ID: 2, Transition: stacore.Fall, Delay: stacore.Delay{Mean: 1}},
	}
	delays := &fakeDelays{byCell: map[int]float64{0: 2}}
	e := newEngine(g, sdc, delays)

	require.NoError(t, e.FindAllArrivals(context.Background(), stacore.ModeMax))

	inV := e.Graph().Vertex(in)
	require.Len(t, inV.Arrivals, 2)
	for _, a := range inV.Arrivals {
		require.Equal(t, 1.0, a.Value())
	}

	outV := e.Graph().Vertex(out)
	require.Len(t, outV.Arrivals, 2)
	for _, a := range outV.Arrivals {
		require.Equal(t, 3.0, a.Value()) // 1 (input delay) + 2 (arc delay)
	}
}

func TestFindAllArrivalsDerateScalesArcDelay(t *testing.T) {
	g, in, out := buildCombinationalChain(t)

	sdc := newFakeConstraints()
	sdc.inputDelays[in] = []stacore.InputDelay{
		{ID: 1, Transition: stacore.Rise, Delay: stacore.Delay{Mean: 0}},
		{ID: 2, Transition: stacore.Fall, Delay: stacore.Delay{Mean: 0}},
	}
	sdc.derate = 1.5
	delays := &fakeDelays{byCell: map[int]float64{0: 4}}
	e := newEngine(g, sdc, delays)

	require.NoError(t, e.FindAllArrivals(context.Background(), stacore.ModeMax))

	outV := e.Graph().Vertex(out)
	for _, a := range outV.Arrivals {
		require.Equal(t, 6.0, a.Value()) // 4 * 1.5 derate
	}
}

func TestFindAllArrivalsUnconstrainedRootSeedsZeroArrival(t *testing.T) {
	g := stacore.NewGraph()
	in := g.AddVertex(&stacore.Vertex{Pin: "in"})
	g.Levelize()

	cfg := stacore.DefaultConfig()
	cfg.ReportUnconstrained = true
	e := stacore.NewEngine(g, stacore.Deps{Netlist: fakeNetlist{}, SDC: newFakeConstraints(), Delays: &fakeDelays{}}, cfg)
	require.NoError(t, e.FindAllArrivals(context.Background(), stacore.ModeMax))

	inV := e.Graph().Vertex(in)
	require.Len(t, inV.Arrivals, 2)
	for _, a := range inV.Arrivals {
		require.Equal(t, 0.0, a.Value())
	}
}
