package stacore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/db47h/stacore"
)

func newTestEngine() *stacore.Engine {
	g := stacore.NewGraph()
	g.AddVertex(&stacore.Vertex{Pin: "v"})
	return newEngine(g, newFakeConstraints(), &fakeDelays{})
}

func TestBuilderSetMatchArrivalKeepsDominant(t *testing.T) {
	e := newTestEngine()
	v := e.Graph().Vertex(1)
	b := e.NewBuilder(stacore.ModeMax)
	b.Init(v)

	changed := b.SetMatchArrival(1, 0, stacore.Delay{Mean: 5}, -1, stacore.PathVertexRep{VertexID: 1})
	require.True(t, changed)

	existing, arrival, idx, found := b.TagMatch(1)
	require.True(t, found)
	require.Equal(t, 5.0, arrival.Value())

	// A worse arrival under ModeMax must not replace the existing one.
	changed = b.SetMatchArrival(1, existing, stacore.Delay{Mean: 3}, idx, stacore.PathVertexRep{})
	require.False(t, changed)
	_, arrival, _, _ = b.TagMatch(1)
	require.Equal(t, 5.0, arrival.Value())

	// A better arrival replaces it.
	changed = b.SetMatchArrival(1, existing, stacore.Delay{Mean: 9}, idx, stacore.PathVertexRep{})
	require.True(t, changed)
	_, arrival, _, _ = b.TagMatch(1)
	require.Equal(t, 9.0, arrival.Value())
}

func TestBuilderCopyArrivalsRoundTrips(t *testing.T) {
	e := newTestEngine()
	v := e.Graph().Vertex(1)
	b := e.NewBuilder(stacore.ModeMax)
	b.Init(v)
	b.SetMatchArrival(1, 0, stacore.Delay{Mean: 1}, -1, stacore.PathVertexRep{VertexID: 1})
	b.SetMatchArrival(2, 0, stacore.Delay{Mean: 2}, -1, stacore.PathVertexRep{VertexID: 1})

	gid, arrivals, prev, err := b.CopyArrivals()
	require.NoError(t, err)
	require.NotZero(t, gid)
	require.Len(t, arrivals, 2)
	require.Len(t, prev, 2)

	tg := e.TagGroupOf(gid)
	require.NotNil(t, tg)
	require.Len(t, tg.Tags, 2)
}

func TestBuilderDeleteArrival(t *testing.T) {
	e := newTestEngine()
	v := e.Graph().Vertex(1)
	b := e.NewBuilder(stacore.ModeMax)
	b.Init(v)
	b.SetMatchArrival(1, 0, stacore.Delay{Mean: 1}, -1, stacore.PathVertexRep{})
	b.SetMatchArrival(2, 0, stacore.Delay{Mean: 2}, -1, stacore.PathVertexRep{})
	require.Equal(t, 2, b.Len())

	b.DeleteArrival(1)
	require.Equal(t, 1, b.Len())
	_, _, _, found := b.TagMatch(1)
	require.False(t, found)
	_, _, _, found = b.TagMatch(2)
	require.True(t, found)
}
