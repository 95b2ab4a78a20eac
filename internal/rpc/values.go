package rpc

import "fmt"

// Helpers for picking apart loosely decoded msgpack values. Integers arrive
// as int64 or uint64, strings as string, arrays as []any and maps as
// map[string]any.

// ToInt converts an integer-like value to int.
func ToInt(v any) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case uint32:
		return int(n), nil
	case int8:
		return int(n), nil
	case uint8:
		return int(n), nil
	case int16:
		return int(n), nil
	case uint16:
		return int(n), nil
	case float64:
		return int(n), nil
	case Buffer:
		return int(n), nil
	case Window:
		return int(n), nil
	case Tabpage:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

// ToFloat converts a numeric value to float64.
func ToFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		i, err := ToInt(v)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %T", v)
		}
		return float64(i), nil
	}
}

// ToString converts a string or byte slice value to string.
func ToString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

// ToBool converts a boolean value. Integers are treated as C-style booleans,
// which is how Vimscript reports them.
func ToBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case nil:
		return false, nil
	default:
		n, err := ToInt(v)
		if err != nil {
			return false, fmt.Errorf("expected boolean, got %T", v)
		}
		return n != 0, nil
	}
}

// ToSlice converts an array value.
func ToSlice(v any) ([]any, error) {
	switch s := v.(type) {
	case []any:
		return s, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected array, got %T", v)
	}
}

// ToMap converts a map value.
func ToMap(v any) (map[string]any, error) {
	switch m := v.(type) {
	case map[string]any:
		return m, nil
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, err := ToString(k)
			if err != nil {
				return nil, fmt.Errorf("map key: %w", err)
			}
			out[ks] = val
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected map, got %T", v)
	}
}
