package tool

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compileSchema compiles a JSON-Schema map into a reusable validator.
// A nil or empty schema compiles to nil, which skips validation.
func compileSchema(name string, schema map[string]any) (*jsonschema.Schema, error) {
	if len(schema) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %q: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	resource := fmt.Sprintf("%s.schema.json", name)
	if err := compiler.AddResource(resource, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", name, err)
	}

	compiled, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", name, err)
	}

	return compiled, nil
}

// validationMessage flattens a schema validation error into a single line
// naming the violated constraints, e.g. the allowed enum values for an enum
// violation. The message is fed back to the model, so it must be actionable.
func validationMessage(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}

	var parts []string
	collectLeafCauses(ve, &parts)
	if len(parts) == 0 {
		return ve.Error()
	}

	return strings.Join(parts, "; ")
}

func collectLeafCauses(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) == 0 {
		loc := strings.TrimPrefix(ve.InstanceLocation, "/")
		if loc == "" {
			*out = append(*out, ve.Message)
		} else {
			*out = append(*out, fmt.Sprintf("%s: %s", loc, ve.Message))
		}
		return
	}
	for _, cause := range ve.Causes {
		collectLeafCauses(cause, out)
	}
}
