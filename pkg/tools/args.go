package tools

import (
	"encoding/json"
	"fmt"
)

// Argument decoding for tool calls. Arguments arrive as map[string]any
// decoded from model JSON, so numbers are float64 unless a caller built
// the map by hand.

func floatArg(args map[string]any, key string) (float64, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, true, nil
	case int:
		return float64(v), true, nil
	case int64:
		return float64(v), true, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false, fmt.Errorf("argument %q must be a number", key)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("argument %q must be a number", key)
	}
}

func intArg(args map[string]any, key string) (int64, bool, error) {
	f, ok, err := floatArg(args, key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n := int64(f)
	if float64(n) != f {
		return 0, false, fmt.Errorf("argument %q must be an integer", key)
	}
	return n, true, nil
}

func stringArg(args map[string]any, key string) (string, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", false, fmt.Errorf("argument %q must be a string", key)
	}
	return s, true, nil
}

func boolArg(args map[string]any, key string) (bool, bool, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return false, false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, false, fmt.Errorf("argument %q must be a boolean", key)
	}
	return b, true, nil
}

func requireFloat(args map[string]any, key string) (float64, error) {
	v, ok, err := floatArg(args, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("missing required argument %q", key)
	}
	return v, nil
}

func requireInt(args map[string]any, key string) (int64, error) {
	v, ok, err := intArg(args, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("missing required argument %q", key)
	}
	return v, nil
}

func requireString(args map[string]any, key string) (string, error) {
	v, ok, err := stringArg(args, key)
	if err != nil {
		return "", err
	}
	if !ok || v == "" {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	return v, nil
}

// encode renders a handler result as compact JSON for the model.
func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool result: %w", err)
	}
	return string(data), nil
}
