package stacore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// crprCiFor builds a data-path ClkInfo credited to crprClkPin, with the
// given network latency contributing to maxCrpr.
func crprCiFor(crprClkPin uint32, networkLatency float64) *ClkInfo {
	return &ClkInfo{
		ClockSourcePin: 1,
		NetworkLatency: Delay{Mean: networkLatency},
		CRPRClkPin:     crprClkPin,
	}
}

func TestNoCRPRTagKeyIgnoresOnlyCRPRClkPin(t *testing.T) {
	e := testInternEngine(t)
	ci1ID, _, err := e.internClkInfo(crprCiFor(10, 2))
	require.NoError(t, err)
	ci2ID, _, err := e.internClkInfo(crprCiFor(20, 2))
	require.NoError(t, err)
	ci3ID, _, err := e.internClkInfo(crprCiFor(10, 3))
	require.NoError(t, err)

	t1 := &Tag{Transition: Rise, ClkInfo: ci1ID}
	t2 := &Tag{Transition: Rise, ClkInfo: ci2ID}
	t3 := &Tag{Transition: Rise, ClkInfo: ci3ID}

	k1 := e.noCRPRTagKey(t1, e.ClkInfoOf(ci1ID))
	k2 := e.noCRPRTagKey(t2, e.ClkInfoOf(ci2ID))
	k3 := e.noCRPRTagKey(t3, e.ClkInfoOf(ci3ID))

	require.NotZero(t, k1)
	require.Equal(t, k1, k2, "differing only by CRPR clock pin must collapse to the same key")
	require.NotEqual(t, k1, k3, "differing network latency must NOT collapse")
}

func TestPruneCRPRArrivalsDropsDominatedCredit(t *testing.T) {
	e := testInternEngine(t)
	ciA, _, err := e.internClkInfo(crprCiFor(10, 4))
	require.NoError(t, err)
	ciB, _, err := e.internClkInfo(crprCiFor(20, 4))
	require.NoError(t, err)

	tagA, _, err := e.internTag(&Tag{Transition: Rise, ClkInfo: ciA})
	require.NoError(t, err)
	tagB, _, err := e.internTag(&Tag{Transition: Rise, ClkInfo: ciB})
	require.NoError(t, err)

	b := e.NewBuilder(ModeMax)
	b.Init(&Vertex{})
	b.SetMatchArrival(tagA, 0, Delay{Mean: 9}, -1, PathVertexRep{})
	b.SetMatchArrival(tagB, 0, Delay{Mean: 20}, -1, PathVertexRep{})

	// no-CRPR bound for both (same collapsed key) is 20; max_crpr is the
	// network latency, 4. bound = 20 - 4 = 16, which dominates (is
	// greater than, for max mode) tagA's 9 but not tagB's 20.
	noCRPR := map[TagID]Delay{e.noCRPRTagKey(&Tag{Transition: Rise, ClkInfo: ciA}, e.ClkInfoOf(ciA)): {Mean: 20}}

	e.pruneCRPRArrivals(b, noCRPR, ModeMax)

	_, _, _, foundA := b.TagMatch(tagA)
	_, arrivalB, _, foundB := b.TagMatch(tagB)
	require.False(t, foundA, "tagA's CRPR-credited arrival should be pruned as dominated")
	require.True(t, foundB)
	require.Equal(t, 20.0, arrivalB.Value())
}

func TestPruneCRPRArrivalsKeepsUndominatedCredit(t *testing.T) {
	e := testInternEngine(t)
	ci, _, err := e.internClkInfo(crprCiFor(10, 1))
	require.NoError(t, err)
	tag, _, err := e.internTag(&Tag{Transition: Rise, ClkInfo: ci})
	require.NoError(t, err)

	b := e.NewBuilder(ModeMax)
	b.Init(&Vertex{})
	b.SetMatchArrival(tag, 0, Delay{Mean: 19}, -1, PathVertexRep{})

	// bound = 20 - 1 = 19, not strictly greater than 19, so it survives
	// (dominance is strict, per Dominates's doc comment).
	noCRPR := map[TagID]Delay{e.noCRPRTagKey(&Tag{Transition: Rise, ClkInfo: ci}, e.ClkInfoOf(ci)): {Mean: 20}}

	e.pruneCRPRArrivals(b, noCRPR, ModeMax)

	_, arrival, _, found := b.TagMatch(tag)
	require.True(t, found)
	require.Equal(t, 19.0, arrival.Value())
}
