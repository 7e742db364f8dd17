package stacore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/db47h/stacore"
)

func TestNewEngineAssignsDistinctAnalysisIDs(t *testing.T) {
	g1 := stacore.NewGraph()
	g2 := stacore.NewGraph()
	e1 := newEngine(g1, newFakeConstraints(), &fakeDelays{})
	e2 := newEngine(g2, newFakeConstraints(), &fakeDelays{})
	require.NotEqual(t, e1.AnalysisID, e2.AnalysisID)
}

func TestVisitStartpointsFindsUnclockedRootAndTopLevelInput(t *testing.T) {
	g := stacore.NewGraph()
	root := g.AddVertex(&stacore.Vertex{Pin: "root"})
	topIn := g.AddVertex(&stacore.Vertex{Pin: "top", Flags: stacore.FlagTopLevelInput})
	downstream := g.AddVertex(&stacore.Vertex{Pin: "downstream"})
	g.AddEdge(&stacore.Edge{From: root, To: downstream, Role: stacore.RoleWire})
	g.Levelize()

	e := newEngine(g, newFakeConstraints(), &fakeDelays{})

	var seen []uint32
	require.NoError(t, e.VisitStartpoints(stacore.VertexVisitorFunc(func(v *stacore.Vertex) error {
		seen = append(seen, v.ID)
		return nil
	})))

	require.Contains(t, seen, root)
	require.Contains(t, seen, topIn)
	require.NotContains(t, seen, downstream)
}

func TestVisitEndpointsFindsFanoutFreeVertex(t *testing.T) {
	g, _, out := buildCombinationalChain(t)
	e := newEngine(g, newFakeConstraints(), &fakeDelays{})

	var seen []uint32
	require.NoError(t, e.VisitEndpoints(stacore.VertexVisitorFunc(func(v *stacore.Vertex) error {
		seen = append(seen, v.ID)
		return nil
	})))

	require.Equal(t, []uint32{out}, seen)
}

func TestResetRebindsGraphAndClearsInternState(t *testing.T) {
	g, in, out := buildCombinationalChain(t)
	sdc := newFakeConstraints()
	sdc.inputDelays[in] = []stacore.InputDelay{{ID: 1, Transition: stacore.Rise, Delay: stacore.Delay{Mean: 1}}}
	e := newEngine(g, sdc, &fakeDelays{byCell: map[int]float64{0: 2}})
	require.NoError(t, e.FindAllArrivals(context.Background(), stacore.ModeMax))
	require.NotEmpty(t, e.Graph().Vertex(out).Arrivals)
	firstID := e.AnalysisID

	g2, in2, _ := buildCombinationalChain(t)
	sdc2 := newFakeConstraints()
	e.Reset(g2, sdc2)

	require.NotEqual(t, firstID, e.AnalysisID)
	require.Same(t, g2, e.Graph())
	require.Empty(t, e.Graph().Vertex(in2).Arrivals)
	require.Empty(t, e.Warnings())
}
