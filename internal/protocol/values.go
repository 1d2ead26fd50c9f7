package protocol

// Float converts any decoded msgpack number to float64.
func Float(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Int converts any decoded msgpack number to int, truncating floats.
func Int(v any) (int, bool) {
	f, ok := Float(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Floats converts a decoded numeric sequence to []float32. Generic arrays
// and packed typed arrays are both accepted.
func Floats(v any) ([]float32, bool) {
	switch a := v.(type) {
	case []float32:
		return a, true
	case Float32Array:
		return a, true
	case *Float32Array:
		if a == nil {
			return nil, false
		}
		return *a, true
	case []float64:
		out := make([]float32, len(a))
		for i, f := range a {
			out[i] = float32(f)
		}
		return out, true
	case []any:
		out := make([]float32, len(a))
		for i, e := range a {
			f, ok := Float(e)
			if !ok {
				return nil, false
			}
			out[i] = float32(f)
		}
		return out, true
	case []uint32:
		return widen(a), true
	case []uint8:
		return widen(a), true
	case []int:
		return widen(a), true
	case Int32Array:
		return widen(a), true
	case *Int32Array:
		return widen(*a), true
	case Uint32Array:
		return widen(a), true
	case *Uint32Array:
		return widen(*a), true
	case Uint8Array:
		return widen(a), true
	case *Uint8Array:
		return widen(*a), true
	}
	return nil, false
}

func widen[T int | int32 | uint32 | uint8](in []T) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// String returns v as a string when it is one.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// Bool returns v as a bool when it is one.
func Bool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// Map returns v as a string-keyed map, converting any-keyed maps.
func Map(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, e := range m {
			s, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[s] = e
		}
		return out, true
	}
	return nil, false
}
