package tool

import (
	"fmt"
	"strings"

	"github.com/threadloop/threadloop/core"
)

// Profile fields collected during an onboarding conversation. Each field has
// its own value constraints, enforced on write so bad values never reach the
// checkpoint.
var profileFieldNames = []string{
	"employee_name",
	"employee_id",
	"starter_kit",
	"dietary_restrictions",
	"meeting_scheduled",
	"conversation_summary",
}

var starterKitOptions = []string{"mouse", "keyboard", "backpack"}

func isProfileField(name string) bool {
	for _, f := range profileFieldNames {
		if f == name {
			return true
		}
	}
	return false
}

// validateProfileValue checks a field value and returns the normalized value
// to store. The error payload mirrors what the model needs to repair the
// call, including the full set of valid values for enums.
func validateProfileValue(field string, value any) (any, map[string]any) {
	switch field {
	case "employee_name":
		s, ok := value.(string)
		if !ok || len(s) < 1 || len(s) > 255 {
			return nil, map[string]any{
				"status":  "error",
				"message": "employee_name must be a string between 1 and 255 characters.",
			}
		}
		return s, nil

	case "employee_id":
		s, ok := value.(string)
		if !ok || len(s) < 1 || len(s) > 50 {
			return nil, map[string]any{
				"status":  "error",
				"message": "employee_id must be a string between 1 and 50 characters.",
			}
		}
		return s, nil

	case "starter_kit":
		s, ok := value.(string)
		if ok {
			s = strings.ToLower(strings.TrimSpace(s))
			for _, opt := range starterKitOptions {
				if s == opt {
					return s, nil
				}
			}
		}
		return nil, map[string]any{
			"status":       "error",
			"message":      fmt.Sprintf("'%v' is not a valid starter_kit choice.", value),
			"valid_values": starterKitOptions,
		}

	case "dietary_restrictions":
		s, ok := value.(string)
		if !ok || len(s) > 500 {
			return nil, map[string]any{
				"status":  "error",
				"message": "dietary_restrictions must be a string of at most 500 characters.",
			}
		}
		return s, nil

	case "meeting_scheduled":
		b, ok := value.(bool)
		if !ok {
			return nil, map[string]any{
				"status":  "error",
				"message": "meeting_scheduled must be a boolean.",
			}
		}
		return b, nil

	case "conversation_summary":
		s, ok := value.(string)
		if !ok {
			return nil, map[string]any{
				"status":  "error",
				"message": "conversation_summary must be a string.",
			}
		}
		return s, nil
	}

	return nil, map[string]any{
		"status":       "error",
		"message":      fmt.Sprintf("'%s' is not a known field.", field),
		"valid_fields": profileFieldNames,
	}
}

// NewWriteFieldTool returns a tool that records one profile field in the
// conversation state. Writes are staged on the ToolContext and become
// durable together with the tool result.
func NewWriteFieldTool() Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field_name": map[string]any{
				"type":        "string",
				"description": "Name of the profile field to record.",
			},
			"value": map[string]any{
				"description": "Value to record for the field.",
			},
			"comments": map[string]any{
				"type":        "string",
				"description": "Optional note about why the value was recorded.",
			},
		},
		"required": []string{"field_name", "value"},
	}

	return NewFunctionTool(
		"write_field",
		"Record a single onboarding profile field, such as the employee name or starter kit choice.",
		schema,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			field, _ := args["field_name"].(string)
			if !isProfileField(field) {
				return map[string]any{
					"status":       "error",
					"message":      fmt.Sprintf("'%s' is not a known field.", field),
					"valid_fields": profileFieldNames,
				}, nil
			}

			normalized, errPayload := validateProfileValue(field, args["value"])
			if errPayload != nil {
				return errPayload, nil
			}

			tc.SetField(field, normalized)

			return map[string]any{
				"status":     "success",
				"message":    "Data recorded.",
				"field_name": field,
				"value":      normalized,
			}, nil
		},
	)
}

// NewReadFieldTool returns a tool that reads profile fields back from the
// conversation state. With no arguments it returns all fields; unset fields
// read as null.
func NewReadFieldTool() Tool {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"field_names": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Fields to read. Omit to read all fields.",
			},
		},
	}

	return NewFunctionTool(
		"read_field",
		"Read previously recorded onboarding profile fields.",
		schema,
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			requested := profileFieldNames
			if raw, ok := args["field_names"].([]any); ok && len(raw) > 0 {
				requested = make([]string, 0, len(raw))
				for _, r := range raw {
					name, _ := r.(string)
					if !isProfileField(name) {
						return map[string]any{
							"status":       "error",
							"message":      fmt.Sprintf("'%s' is not a known field.", name),
							"valid_fields": profileFieldNames,
						}, nil
					}
					requested = append(requested, name)
				}
			}

			fields := make(map[string]any, len(requested))
			for _, name := range requested {
				if v, ok := tc.GetField(name); ok {
					fields[name] = v
				} else {
					fields[name] = nil
				}
			}

			return map[string]any{
				"status": "success",
				"fields": fields,
			}, nil
		},
	)
}
