package stacore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/db47h/stacore"
)

func TestArrivalsInvalidResetsGraphAndArenas(t *testing.T) {
	g, in, out := buildCombinationalChain(t)
	sdc := newFakeConstraints()
	sdc.inputDelays[in] = []stacore.InputDelay{{ID: 1, Transition: stacore.Rise, Delay: stacore.Delay{Mean: 1}}}
	e := newEngine(g, sdc, &fakeDelays{byCell: map[int]float64{0: 2}})

	require.NoError(t, e.FindAllArrivals(context.Background(), stacore.ModeMax))
	require.NotEmpty(t, e.Graph().Vertex(out).Arrivals)

	e.ArrivalsInvalid()

	require.Empty(t, e.Graph().Vertex(in).Arrivals)
	require.Empty(t, e.Graph().Vertex(out).Arrivals)
	require.Zero(t, e.Graph().Vertex(out).TagGroup)
}

func TestDeleteVertexBeforeRetractsAccounting(t *testing.T) {
	g, in, _ := buildCombinationalChain(t)
	e := newEngine(g, newFakeConstraints(), &fakeDelays{})

	v := e.Graph().Vertex(in)
	e.ArrivalInvalid(v)
	e.DeleteVertexBefore(v)
	// DeleteVertexBefore must not panic on a nil vertex either.
	e.DeleteVertexBefore(nil)
}

func TestInstallFilterTracksAndReleasesInternedTags(t *testing.T) {
	g, in, _ := buildCombinationalChain(t)
	sdc := newFakeConstraints()
	sdc.pathDelays[in] = []stacore.PathDelayException{{ID: 7}}
	e := newEngine(g, sdc, &fakeDelays{byCell: map[int]float64{0: 1}})

	require.NoError(t, e.FindFilteredArrivals(context.Background(), stacore.ModeMax, 7))

	// FindFilteredArrivals removes its own filter on return (spec.md
	// §4.9), which sweeps every vertex whose tag-group carries the filter
	// marker and wipes its path state; the segment-start vertex here is
	// entirely filter-tagged, so its arrivals are gone rather than left
	// dangling on a detached filterState (the pre-fix no-op bug).
	inV := e.Graph().Vertex(in)
	require.Zero(t, inV.TagGroup)
	require.Empty(t, inV.Arrivals)
}
