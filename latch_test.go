package stacore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/db47h/stacore"
)

// fakeLatches always reports a latch open and adds a fixed delay on
// D->Q, regardless of the from-tag's transition.
type fakeLatches struct {
	delay stacore.Delay
}

func (fakeLatches) LatchDToQState(edge *stacore.Edge) stacore.LatchState { return stacore.LatchOpen }

func (l fakeLatches) LatchOutArrival(ctx context.Context, fromTag *stacore.Tag, fromArrival stacore.Delay, arc stacore.TimingArc, edge *stacore.Edge, apIndex int) (*stacore.Tag, stacore.Delay, stacore.Delay, error) {
	toTag := *fromTag
	toTag.Transition = arc.ToTr
	return &toTag, l.delay, fromArrival.Add(l.delay), nil
}

func (fakeLatches) IsLatchDToQ(edge *stacore.Edge) bool { return edge.Role == stacore.RoleLatchDToQ }

func TestFindAllArrivalsPropagatesThroughOpenLatch(t *testing.T) {
	g := stacore.NewGraph()
	in := g.AddVertex(&stacore.Vertex{Pin: "d", Flags: stacore.FlagTopLevelInput})
	q := g.AddVertex(&stacore.Vertex{Pin: "q", Flags: stacore.FlagLatchData})
	g.AddEdge(&stacore.Edge{
		From: in,
		To:   q,
		Role: stacore.RoleLatchDToQ,
		Arcs: []stacore.TimingArc{
			{ID: 1, FromTr: stacore.Rise, ToTr: stacore.Rise, DelayCell: 0},
			{ID: 2, FromTr: stacore.Fall, ToTr: stacore.Fall, DelayCell: 0},
		},
	})
	g.Levelize()

	sdc := newFakeConstraints()
	sdc.inputDelays[in] = []stacore.InputDelay{
		{ID: 1, Transition: stacore.Rise, Delay: stacore.Delay{Mean: 2}},
		{ID: 2, Transition: stacore.Fall, Delay: stacore.Delay{Mean: 2}},
	}

	e := stacore.NewEngine(g, stacore.Deps{
		Netlist: fakeNetlist{},
		SDC:     sdc,
		Delays:  &fakeDelays{},
		Latches: fakeLatches{delay: stacore.Delay{Mean: 3}},
	}, stacore.DefaultConfig())

	require.NoError(t, e.FindAllArrivals(context.Background(), stacore.ModeMax))

	qV := e.Graph().Vertex(q)
	require.Len(t, qV.Arrivals, 2)
	for _, a := range qV.Arrivals {
		require.Equal(t, 5.0, a.Value()) // 2 (input delay) + 3 (latch D->Q)
	}
}

func TestFindAllArrivalsSkipsClosedLatch(t *testing.T) {
	g := stacore.NewGraph()
	in := g.AddVertex(&stacore.Vertex{Pin: "d", Flags: stacore.FlagTopLevelInput})
	q := g.AddVertex(&stacore.Vertex{Pin: "q", Flags: stacore.FlagLatchData})
	g.AddEdge(&stacore.Edge{
		From: in,
		To:   q,
		Role: stacore.RoleLatchDToQ,
		Arcs: []stacore.TimingArc{{ID: 1, FromTr: stacore.Rise, ToTr: stacore.Rise, DelayCell: 0}},
	})
	g.Levelize()

	sdc := newFakeConstraints()
	sdc.inputDelays[in] = []stacore.InputDelay{{ID: 1, Transition: stacore.Rise, Delay: stacore.Delay{Mean: 2}}}

	e := stacore.NewEngine(g, stacore.Deps{
		Netlist: fakeNetlist{},
		SDC:     sdc,
		Delays:  &fakeDelays{},
		Latches: closedLatches{},
	}, stacore.DefaultConfig())

	require.NoError(t, e.FindAllArrivals(context.Background(), stacore.ModeMax))

	qV := e.Graph().Vertex(q)
	require.Empty(t, qV.Arrivals)
}

type closedLatches struct{}

func (closedLatches) LatchDToQState(edge *stacore.Edge) stacore.LatchState { return stacore.LatchClosed }
func (closedLatches) LatchOutArrival(ctx context.Context, fromTag *stacore.Tag, fromArrival stacore.Delay, arc stacore.TimingArc, edge *stacore.Edge, apIndex int) (*stacore.Tag, stacore.Delay, stacore.Delay, error) {
	return nil, stacore.Delay{}, stacore.Delay{}, nil
}
func (closedLatches) IsLatchDToQ(edge *stacore.Edge) bool { return edge.Role == stacore.RoleLatchDToQ }
