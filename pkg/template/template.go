// Package template provides templating for dynamic job parameters. String
// parameters may reference the run context ({{.workflow.id}}, {{.job.id}},
// {{.env.HOME}}) and are rendered on the worker just before execution.
package template

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Render executes input as a text template over data and coerces the result
// back into a typed value: JSON documents, numbers and booleans are decoded,
// everything else is returned as a string.
func Render(input string, data any) (any, error) {
	tmpl, err := template.
		New("params").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"rand": func(max int) int {
				if max <= 0 {
					return 0
				}

				num := make([]byte, 1)
				if _, err := rand.Read(num); err != nil {
					return 0
				}

				return int(num[0]) % max
			},
		}).Parse(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", input, err)
	}

	var buf strings.Builder

	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", input, err)
	}

	result := strings.TrimSpace(buf.String())

	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any
		if err := json.Unmarshal([]byte(result), &jsonResult); err == nil {
			return jsonResult, nil
		}
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}

// RenderParams renders every string value of a parameter map, recursing
// into nested maps and slices. Non-string values pass through untouched.
func RenderParams(params map[string]any, workflowID, jobID string) (map[string]any, error) {
	data := map[string]any{
		"workflow": map[string]any{"id": workflowID},
		"job":      map[string]any{"id": jobID},
		"env":      envVars(),
	}

	rendered, err := renderValue(params, data)
	if err != nil {
		return nil, err
	}

	return rendered.(map[string]any), nil
}

func renderValue(value any, data map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		if !strings.Contains(v, "{{") {
			return v, nil
		}

		return Render(v, data)
	case map[string]any:
		out := make(map[string]any, len(v))

		for key, val := range v {
			rendered, err := renderValue(val, data)
			if err != nil {
				return nil, err
			}

			out[key] = rendered
		}

		return out, nil
	case []any:
		out := make([]any, len(v))

		for i, val := range v {
			rendered, err := renderValue(val, data)
			if err != nil {
				return nil, err
			}

			out[i] = rendered
		}

		return out, nil
	default:
		return value, nil
	}
}

func envVars() map[string]any {
	envMap := make(map[string]any)

	for _, env := range os.Environ() {
		if key, value, found := strings.Cut(env, "="); found {
			envMap[key] = value
		}
	}

	return envMap
}
