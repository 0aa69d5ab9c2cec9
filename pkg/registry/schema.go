package registry

import (
	"errors"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// paramSchema wraps a compiled JSON schema for job parameters.
type paramSchema struct {
	schema *gojsonschema.Schema
}

func compileParamSchema(raw []byte) (*paramSchema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, err
	}

	return &paramSchema{schema: schema}, nil
}

func (s *paramSchema) validate(params map[string]any) error {
	if params == nil {
		params = map[string]any{}
	}

	result, err := s.schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, resultError := range result.Errors() {
		messages = append(messages, resultError.String())
	}

	return errors.New(strings.Join(messages, "; "))
}
