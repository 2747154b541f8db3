package tools

import "fmt"

// validateAgainstSchema performs a best-effort structural check against
// a JSON-Schema-shaped map: required properties present, and declared
// types matching for top-level properties only. It intentionally does
// not implement full JSON Schema. Builtin tools re-check their own
// arguments in Go anyway; for js/py payloads this is a first line of
// defense before the interpreter ever starts.
func validateAgainstSchema(schema map[string]interface{}, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	if required, ok := schema["required"].([]interface{}); ok {
		for _, r := range required {
			name, ok := r.(string)
			if !ok {
				continue
			}
			if _, present := args[name]; !present {
				return fmt.Errorf("missing required argument %q", name)
			}
		}
	}

	props, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil
	}
	for name, value := range args {
		propSchema, ok := props[name].(map[string]interface{})
		if !ok {
			continue
		}
		wantType, ok := propSchema["type"].(string)
		if !ok {
			continue
		}
		if !matchesJSONType(value, wantType) {
			return fmt.Errorf("argument %q: expected type %s", name, wantType)
		}
	}
	return nil
}

func matchesJSONType(value interface{}, want string) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	default:
		return true
	}
}
