package stacore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRemoveFilterWipesOnlyFilterTaggedVertices exercises RemoveFilter
// directly (spec.md §4.9), bypassing the seeder so the filter-tagged and
// non-filter-tagged cases can be constructed precisely: v1's tag-group
// carries a filter-marked tag, v2's does not.
func TestRemoveFilterWipesOnlyFilterTaggedVertices(t *testing.T) {
	e := testInternEngine(t)
	g := e.graph
	v1 := g.AddVertex(&Vertex{Pin: "filtered"})
	v2 := g.AddVertex(&Vertex{Pin: "plain"})
	g.Levelize()

	filterTagID, _, err := e.internTag(&Tag{Transition: Rise, FilterMarker: true})
	require.NoError(t, err)
	filterGroupID, _, err := e.internTagGroup(&TagGroup{Tags: []TagID{filterTagID}, HasFilterTag: true})
	require.NoError(t, err)

	plainTagID, _, err := e.internTag(&Tag{Transition: Rise})
	require.NoError(t, err)
	plainGroupID, _, err := e.internTagGroup(&TagGroup{Tags: []TagID{plainTagID}})
	require.NoError(t, err)

	v1V := g.Vertex(v1)
	v1V.TagGroup = filterGroupID
	v1V.Arrivals = []Delay{{Mean: 5}}
	v1V.Required = []Delay{{Mean: 9}}

	v2V := g.Vertex(v2)
	v2V.TagGroup = plainGroupID
	v2V.Arrivals = []Delay{{Mean: 3}}
	v2V.Required = []Delay{{Mean: 7}}

	e.InstallFilter(1)
	e.RemoveFilter()

	require.Zero(t, v1V.TagGroup)
	require.Empty(t, v1V.Arrivals)
	require.Empty(t, v1V.Required)
	require.True(t, e.invalidArrivals[v1], "filter-tagged vertex must be marked for arrival recompute")
	require.True(t, e.invalidRequired[v1], "filter-tagged vertex must be marked for required recompute")

	require.Equal(t, plainGroupID, v2V.TagGroup)
	require.Equal(t, []Delay{{Mean: 3}}, v2V.Arrivals)
	require.Equal(t, []Delay{{Mean: 7}}, v2V.Required)
	require.False(t, e.invalidArrivals[v2], "non-filter vertex must be left untouched")
	require.False(t, e.invalidRequired[v2])

	require.Nil(t, e.activeFilter)
}

// TestRemoveFilterNoopWithoutActiveFilter guards against RemoveFilter
// panicking or mutating state when no filter was installed.
func TestRemoveFilterNoopWithoutActiveFilter(t *testing.T) {
	e := testInternEngine(t)
	require.NotPanics(t, e.RemoveFilter)
}
