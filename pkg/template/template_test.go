package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCoercesTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		data     any
		expected any
	}{
		{
			name:     "plain string",
			input:    "hello",
			data:     nil,
			expected: "hello",
		},
		{
			name:     "field access",
			input:    "{{.name}}",
			data:     map[string]any{"name": "venture"},
			expected: "venture",
		},
		{
			name:     "number coercion",
			input:    "{{.count}}",
			data:     map[string]any{"count": 42},
			expected: float64(42),
		},
		{
			name:     "boolean coercion",
			input:    "{{.enabled}}",
			data:     map[string]any{"enabled": true},
			expected: true,
		},
		{
			name:     "json coercion",
			input:    `{"a": 1}`,
			data:     nil,
			expected: map[string]any{"a": float64(1)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.input, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestRenderInvalidTemplate(t *testing.T) {
	_, err := Render("{{.broken", nil)
	require.Error(t, err)
}

func TestRenderParams(t *testing.T) {
	params := map[string]any{
		"message": "run {{.workflow.id}} job {{.job.id}}",
		"count":   3,
		"nested": map[string]any{
			"url": "https://example.com/{{.job.id}}",
		},
		"list": []any{"{{.workflow.id}}", 7},
	}

	rendered, err := RenderParams(params, "wf-1", "extract")
	require.NoError(t, err)

	assert.Equal(t, "run wf-1 job extract", rendered["message"])
	assert.Equal(t, 3, rendered["count"])
	assert.Equal(t, "https://example.com/extract", rendered["nested"].(map[string]any)["url"])
	assert.Equal(t, "wf-1", rendered["list"].([]any)[0])
	assert.Equal(t, 7, rendered["list"].([]any)[1])
}

func TestRenderParamsWithoutTemplatesPassesThrough(t *testing.T) {
	params := map[string]any{"plain": "value"}

	rendered, err := RenderParams(params, "wf-1", "a")
	require.NoError(t, err)
	assert.Equal(t, params, rendered)
}
