// Package domain defines the section record model, the persistence backend
// contract, field naming conventions, per-section schemas and the derived-field
// rules used by vsmecore.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidValue is returned when a field value is not a number, string, bool or nil.
var ErrInvalidValue = errors.New("invalid field value")

// Fields is a flat mapping from field name to value. Values are nil, float64,
// string or bool once normalized.
type Fields map[string]any

// Clone returns a copy of the mapping. Values are scalars so a shallow copy is
// a copy by value.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Equal reports whether both mappings hold the same values. An absent key and
// an explicit nil are treated as equal.
func (f Fields) Equal(other Fields) bool {
	for k, v := range f {
		if !valuesEqual(v, other[k]) {
			return false
		}
	}
	for k, v := range other {
		if _, ok := f[k]; ok {
			continue
		}
		if v != nil {
			return false
		}
	}
	return true
}

// Merge copies every entry of partial into f.
func (f Fields) Merge(partial Fields) {
	for k, v := range partial {
		f[k] = v
	}
}

// Keys returns the field names in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Number returns the numeric value stored under name.
func (f Fields) Number(name string) (float64, bool) {
	v, ok := f[name].(float64)
	return v, ok
}

func valuesEqual(a, b any) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

// Normalize converts v into one of the canonical field value types.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return finite(n)
	case string, bool:
		return x, nil
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalidValue, v)
	}
}

func finite(n float64) (any, error) {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, n)
	}
	return n, nil
}
