package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venturehq/venture/pkg/models"
)

// diamond builds a → {b, c} → d plus a detached root e.
func diamond(t *testing.T) *Graph {
	t.Helper()

	builder := NewBuilder()

	_, err := builder.AddJob(&fetchOrders{}, WithID("a"))
	require.NoError(t, err)

	_, err = builder.AddJob(&fetchOrders{}, WithID("b"), WithDependencies("a"))
	require.NoError(t, err)

	_, err = builder.AddJob(&fetchOrders{}, WithID("c"), WithDependencies("a"))
	require.NoError(t, err)

	_, err = builder.AddJob(&sendReport{}, WithID("d"), WithDependencies("b", "c"))
	require.NoError(t, err)

	_, err = builder.AddJob(&sendReport{}, WithID("e"))
	require.NoError(t, err)

	g, err := builder.Build()
	require.NoError(t, err)

	return g
}

func ids(nodes []*models.JobNode) []string {
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, node.ID)
	}

	return out
}

func TestGraphNodeLookup(t *testing.T) {
	g := diamond(t)

	require.NotNil(t, g.Node("a"))
	assert.True(t, g.Has("a"))

	assert.Nil(t, g.Node("zz"))
	assert.False(t, g.Has("zz"))
}

func TestGraphRoots(t *testing.T) {
	g := diamond(t)

	assert.Equal(t, []string{"a", "e"}, ids(g.Roots()))
}

func TestGraphTerminals(t *testing.T) {
	g := diamond(t)

	assert.Equal(t, []string{"d", "e"}, ids(g.Terminals()))
}

func TestGraphDirectDependents(t *testing.T) {
	g := diamond(t)

	assert.Equal(t, []string{"b", "c"}, ids(g.DirectDependents("a")))
	assert.Equal(t, []string{"d"}, ids(g.DirectDependents("b")))
	assert.Empty(t, g.DirectDependents("d"))
}

func TestGraphDescendants(t *testing.T) {
	g := diamond(t)

	assert.ElementsMatch(t, []string{"b", "c", "d"}, ids(g.Descendants("a")))
	assert.Equal(t, []string{"d"}, ids(g.Descendants("b")))
	assert.Empty(t, g.Descendants("e"))
}

func TestGraphSealedAfterBuild(t *testing.T) {
	g := diamond(t)

	assert.True(t, g.IsSealed())
	assert.Equal(t, 5, g.Len())
}

func TestGraphJobsPreservesInsertionOrder(t *testing.T) {
	g := diamond(t)

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(g.Jobs()))

	for i, job := range g.Jobs() {
		assert.Equal(t, i, job.Position)
	}
}

func TestFromJobsRebuildsGraph(t *testing.T) {
	original := diamond(t)

	rebuilt := FromJobs(original.Jobs())

	assert.True(t, rebuilt.IsSealed())
	assert.Equal(t, original.Len(), rebuilt.Len())
	assert.Equal(t, ids(original.Roots()), ids(rebuilt.Roots()))
	assert.Equal(t, ids(original.Terminals()), ids(rebuilt.Terminals()))
}
