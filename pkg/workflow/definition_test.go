package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefinition(t *testing.T) {
	data := []byte(`{
		"name": "nightly etl",
		"schedule": "0 2 * * *",
		"jobs": [
			{"id": "extract", "type": "http_request", "params": {"url": "https://example.com"}},
			{"id": "load", "type": "log", "depends_on": ["extract"], "queue": "etl"}
		]
	}`)

	def, err := ParseDefinition(data)
	require.NoError(t, err)

	assert.Equal(t, "nightly etl", def.Name)
	assert.Equal(t, "0 2 * * *", def.Schedule)
	require.Len(t, def.Jobs, 2)
	assert.Equal(t, []string{"extract"}, def.Jobs[1].DependsOn)
	assert.Equal(t, "etl", def.Jobs[1].Queue)
}

func TestParseDefinitionInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{
			name: "not json",
			data: `{{`,
		},
		{
			name: "missing name",
			data: `{"jobs": [{"id": "a", "type": "log"}]}`,
		},
		{
			name: "name too short",
			data: `{"name": "x", "jobs": [{"id": "a", "type": "log"}]}`,
		},
		{
			name: "no jobs",
			data: `{"name": "empty run", "jobs": []}`,
		},
		{
			name: "job without type",
			data: `{"name": "bad job", "jobs": [{"id": "a"}]}`,
		},
		{
			name: "negative delay",
			data: `{"name": "bad delay", "jobs": [{"id": "a", "type": "log", "delay_seconds": -5}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDefinition([]byte(tt.data))
			require.Error(t, err)
		})
	}
}

func TestDefinitionBuildGraph(t *testing.T) {
	data := []byte(`{
		"name": "build graph",
		"jobs": [
			{"id": "a", "type": "log", "gated": true},
			{"id": "b", "type": "log", "depends_on": ["a"], "delay_seconds": 60},
			{"id": "c", "type": "log", "depends_on_any": [{"primary": "missing", "fallback": ["a"]}]}
		]
	}`)

	def, err := ParseDefinition(data)
	require.NoError(t, err)

	g, err := def.BuildGraph()
	require.NoError(t, err)

	assert.Equal(t, 3, g.Len())
	assert.True(t, g.IsSealed())

	assert.True(t, g.Node("a").Gated)
	assert.Equal(t, "log", g.Node("a").Type)

	require.NotNil(t, g.Node("b").Delay)
	assert.Equal(t, []string{"a"}, g.Node("b").Dependencies)

	// The conditional dependency fell back to "a".
	assert.Equal(t, []string{"a"}, g.Node("c").Dependencies)
}

func TestDefinitionBuildGraphUnknownDependency(t *testing.T) {
	data := []byte(`{
		"name": "broken graph",
		"jobs": [
			{"id": "a", "type": "log", "depends_on": ["ghost"]}
		]
	}`)

	def, err := ParseDefinition(data)
	require.NoError(t, err)

	_, err = def.BuildGraph()
	require.Error(t, err)
}
