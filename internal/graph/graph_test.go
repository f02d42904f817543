package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cycleGraph is A-B-C-D-A: every unit touches two neighbors, A and C
// share no edge, B and D share no edge.
func cycleGraph(t *testing.T) *Graph {
	t.Helper()
	g, err := Parse([]byte(`{
		"layer": "vtds",
		"nodes": ["A", "B", "C", "D"],
		"edges": [["A","B"], ["B","C"], ["C","D"], ["D","A"]],
		"bboxes": {
			"A": [0, 0, 1, 1],
			"B": [1, 0, 2, 1],
			"C": [1, 1, 2, 2],
			"D": [0, 1, 1, 2]
		}
	}`))
	require.NoError(t, err)
	return g
}

func TestComponents_FullCycleIsConnected(t *testing.T) {
	g := cycleGraph(t)

	components := g.Components([]string{"A", "B", "C", "D"})
	assert.Len(t, components, 1)
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, components[0])
}

func TestComponents_DiagonalSplit(t *testing.T) {
	g := cycleGraph(t)

	// opposite corners share no edge, so each pair splits in two
	assert.Len(t, g.Components([]string{"A", "C"}), 2)
	assert.Len(t, g.Components([]string{"B", "D"}), 2)
}

func TestComponents_MissingNodeIsSingleton(t *testing.T) {
	g := cycleGraph(t)

	components := g.Components([]string{"A", "B", "ghost"})
	assert.Len(t, components, 2)
}

func TestComponentBBoxes_UnionsMemberBoxes(t *testing.T) {
	g := cycleGraph(t)

	boxes := g.ComponentBBoxes([]string{"A", "B", "C", "D"})
	require.Len(t, boxes, 1)
	assert.Equal(t, BBox{0, 0, 2, 2}, boxes[0])

	boxes = g.ComponentBBoxes([]string{"A", "C"})
	require.Len(t, boxes, 2)
}

func TestParse_RejectsEdgeWithUnknownNode(t *testing.T) {
	_, err := Parse([]byte(`{"layer":"x","nodes":["A"],"edges":[["A","B"]]}`))
	assert.Error(t, err)
}

func TestMarshal_RoundTripsNodesAndEdges(t *testing.T) {
	g := cycleGraph(t)

	raw, err := g.Marshal()
	require.NoError(t, err)

	again, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, 4, again.NumNodes())
	assert.Len(t, again.Components([]string{"A", "B", "C", "D"}), 1)
	assert.Len(t, again.Components([]string{"A", "C"}), 2)
}
