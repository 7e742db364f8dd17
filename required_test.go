package stacore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/db47h/stacore"
)

// fakePathEnds proposes a single fixed required time for every tag at a
// named vertex.
type fakePathEnds struct {
	required map[uint32]stacore.Delay
	mode     stacore.AnalysisMode
}

func (p *fakePathEnds) VisitEndpoint(ctx context.Context, v *stacore.Vertex, tg *stacore.TagGroup) ([]stacore.PathEnd, error) {
	req, ok := p.required[v.ID]
	if !ok {
		return nil, nil
	}
	out := make([]stacore.PathEnd, 0, len(tg.Tags))
	for _, tagID := range tg.Tags {
		out = append(out, stacore.PathEnd{Vertex: v.ID, Tag: tagID, Required: req, Mode: p.mode})
	}
	return out, nil
}

// TestSeedEndpointsRequiredKeepsPerTagMode models a synchronous endpoint
// with both a setup (max) and a hold (min) check landing on the same tag
// group in one VisitEndpoint call.
func TestSeedEndpointsRequiredKeepsPerTagMode(t *testing.T) {
	g, in, out := buildCombinationalChain(t)

	sdc := newFakeConstraints()
	sdc.inputDelays[in] = []stacore.InputDelay{
		{ID: 1, Transition: stacore.Rise, Delay: stacore.Delay{Mean: 1}},
		{ID: 2, Transition: stacore.Fall, Delay: stacore.Delay{Mean: 1}},
	}
	delays := &fakeDelays{byCell: map[int]float64{0: 2}}
	e := stacore.NewEngine(g, stacore.Deps{
		Netlist: fakeNetlist{},
		SDC:     sdc,
		Delays:  delays,
	}, stacore.DefaultConfig())
	require.NoError(t, e.FindAllArrivals(context.Background(), stacore.ModeMax))

	outV := e.Graph().Vertex(out)
	tg := e.TagGroupOf(outV.TagGroup)
	require.Len(t, tg.Tags, 2)

	// Build PathEnds by hand: the Rise-transition tag gets a Max (setup)
	// check, the Fall-transition tag gets a Min (hold) check, mirroring a
	// register endpoint with both checks enabled simultaneously.
	var ends []stacore.PathEnd
	for _, tagID := range tg.Tags {
		tag := e.Tag(tagID)
		if tag.Transition == stacore.Rise {
			ends = append(ends, stacore.PathEnd{Vertex: out, Tag: tagID, Required: stacore.Delay{Mean: 10}, Mode: stacore.ModeMax})
		} else {
			ends = append(ends, stacore.PathEnd{Vertex: out, Tag: tagID, Required: stacore.Delay{Mean: 2}, Mode: stacore.ModeMin})
		}
	}

	e2 := stacore.NewEngine(g, stacore.Deps{
		Netlist:  fakeNetlist{},
		SDC:      sdc,
		Delays:   delays,
		PathEnds: fixedPathEnds{ends: ends, vertex: out},
	}, stacore.DefaultConfig())
	require.NoError(t, e2.FindAllArrivals(context.Background(), stacore.ModeMax))
	require.NoError(t, e2.FindAllRequired(context.Background(), stacore.ModeMax))

	outV2 := e2.Graph().Vertex(out)
	tg2 := e2.TagGroupOf(outV2.TagGroup)
	for i, tagID := range tg2.Tags {
		tag := e2.Tag(tagID)
		if tag.Transition == stacore.Rise {
			require.Equal(t, 10.0, outV2.Required[i].Value(), "rise (max/setup) tag must keep its own Max sentinel")
		} else {
			require.Equal(t, 2.0, outV2.Required[i].Value(), "fall (min/hold) tag must keep its own Min sentinel, not Rise's Max -Inf")
		}
	}
}

// TestSeedEndpointsRequiredPicksMostConstrainingPerTag models two hold
// (min-delay) checks landing on the same tag index in one VisitEndpoint
// call — e.g. two distinct timing checks both keyed to the endpoint's
// rise tag. The larger (more constraining) required time must survive,
// not the smaller one.
func TestSeedEndpointsRequiredPicksMostConstrainingPerTag(t *testing.T) {
	g, in, out := buildCombinationalChain(t)

	sdc := newFakeConstraints()
	sdc.inputDelays[in] = []stacore.InputDelay{
		{ID: 1, Transition: stacore.Rise, Delay: stacore.Delay{Mean: 1}},
	}
	delays := &fakeDelays{byCell: map[int]float64{0: 2}}
	e := stacore.NewEngine(g, stacore.Deps{
		Netlist: fakeNetlist{},
		SDC:     sdc,
		Delays:  delays,
	}, stacore.DefaultConfig())
	require.NoError(t, e.FindAllArrivals(context.Background(), stacore.ModeMax))

	outV := e.Graph().Vertex(out)
	tg := e.TagGroupOf(outV.TagGroup)
	require.Len(t, tg.Tags, 1, "only a Rise input delay was seeded")
	riseTagID := tg.Tags[0]

	ends := []stacore.PathEnd{
		{Vertex: out, Tag: riseTagID, Required: stacore.Delay{Mean: 1}, Mode: stacore.ModeMin},
		{Vertex: out, Tag: riseTagID, Required: stacore.Delay{Mean: 3}, Mode: stacore.ModeMin},
	}

	e2 := stacore.NewEngine(g, stacore.Deps{
		Netlist:  fakeNetlist{},
		SDC:      sdc,
		Delays:   delays,
		PathEnds: fixedPathEnds{ends: ends, vertex: out},
	}, stacore.DefaultConfig())
	require.NoError(t, e2.FindAllArrivals(context.Background(), stacore.ModeMax))
	require.NoError(t, e2.FindAllRequired(context.Background(), stacore.ModeMax))

	outV2 := e2.Graph().Vertex(out)
	tg2 := e2.TagGroupOf(outV2.TagGroup)
	idx := tg2.IndexOf(riseTagID)
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, 3.0, outV2.Required[idx].Value(), "the more constraining (larger) hold required time must win")
}

// fixedPathEnds hands back a pre-built PathEnd list verbatim for one
// vertex, letting tests control exactly which tag gets which mode.
type fixedPathEnds struct {
	ends   []stacore.PathEnd
	vertex uint32
}

func (p fixedPathEnds) VisitEndpoint(ctx context.Context, v *stacore.Vertex, tg *stacore.TagGroup) ([]stacore.PathEnd, error) {
	if v.ID != p.vertex {
		return nil, nil
	}
	return p.ends, nil
}

func TestFindAllRequiredPropagatesBackward(t *testing.T) {
	g, in, out := buildCombinationalChain(t)

	sdc := newFakeConstraints()
	sdc.inputDelays[in] = []stacore.InputDelay{
		{ID: 1, Transition: stacore.Rise, Delay: stacore.Delay{Mean: 1}},
		{ID: 2, Transition: stacore.Fall, Delay: stacore.Delay{Mean: 1}},
	}
	delays := &fakeDelays{byCell: map[int]float64{0: 2}}
	e := stacore.NewEngine(g, stacore.Deps{
		Netlist:  fakeNetlist{},
		SDC:      sdc,
		Delays:   delays,
		PathEnds: &fakePathEnds{required: map[uint32]stacore.Delay{out: {Mean: 10}}, mode: stacore.ModeMax},
	}, stacore.DefaultConfig())

	require.NoError(t, e.FindAllArrivals(context.Background(), stacore.ModeMax))
	require.NoError(t, e.FindAllRequired(context.Background(), stacore.ModeMax))

	outV := e.Graph().Vertex(out)
	require.Len(t, outV.Required, 2)
	for _, r := range outV.Required {
		require.Equal(t, 10.0, r.Value())
	}

	inV := e.Graph().Vertex(in)
	require.Len(t, inV.Required, 2)
	for _, r := range inV.Required {
		require.Equal(t, 8.0, r.Value()) // 10 (endpoint required) - 2 (arc delay)
	}

	v := e.Graph().Vertex(out)
	s, ok := e.Slack(v, stacore.ModeMax)
	require.True(t, ok)
	require.Equal(t, 7.0, s.Value()) // required(10) - arrival(3)
}
