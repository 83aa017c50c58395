package application

import (
	"jira-mcp-server/internal/domain"
)

// Argument extraction helpers. Tool arguments arrive as an untyped JSON
// object; these convert them to Go values and reject wrong types before any
// remote call happens. Unknown extra arguments are simply never read.

// getStringParam extracts a string argument. Missing required arguments and
// wrong types fail with InvalidArguments naming the argument.
func getStringParam(args map[string]interface{}, name string, required bool) (string, error) {
	value, exists := args[name]
	if !exists || value == nil {
		if required {
			return "", domain.InvalidArgument(name, "missing required argument")
		}
		return "", nil
	}

	strValue, ok := value.(string)
	if !ok {
		return "", domain.InvalidArgument(name, "must be a string")
	}
	if required && strValue == "" {
		return "", domain.InvalidArgument(name, "must not be empty")
	}
	return strValue, nil
}

// getIntParam extracts an integer argument. JSON numbers arrive as float64;
// fractional values are rejected rather than truncated.
func getIntParam(args map[string]interface{}, name string, required bool) (int, bool, error) {
	value, exists := args[name]
	if !exists || value == nil {
		if required {
			return 0, false, domain.InvalidArgument(name, "missing required argument")
		}
		return 0, false, nil
	}

	switch v := value.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, false, domain.InvalidArgument(name, "must be an integer")
		}
		return int(v), true, nil
	case int:
		return v, true, nil
	default:
		return 0, false, domain.InvalidArgument(name, "must be an integer")
	}
}

// getStringSliceParam extracts an array-of-strings argument.
func getStringSliceParam(args map[string]interface{}, name string, required bool) ([]string, error) {
	value, exists := args[name]
	if !exists || value == nil {
		if required {
			return nil, domain.InvalidArgument(name, "missing required argument")
		}
		return nil, nil
	}

	rawSlice, ok := value.([]interface{})
	if !ok {
		return nil, domain.InvalidArgument(name, "must be an array of strings")
	}

	result := make([]string, 0, len(rawSlice))
	for _, item := range rawSlice {
		str, ok := item.(string)
		if !ok {
			return nil, domain.InvalidArgument(name, "must be an array of strings")
		}
		result = append(result, str)
	}
	if required && len(result) == 0 {
		return nil, domain.InvalidArgument(name, "must not be empty")
	}
	return result, nil
}
