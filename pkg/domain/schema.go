package domain

import (
	"errors"
	"fmt"
)

// Schema violations reported by Check and Conform.
var (
	ErrUnknownField = errors.New("unknown field")
	ErrDerivedField = errors.New("derived field is computed")
	ErrFieldKind    = errors.New("field kind mismatch")
)

// Kind is the value type a field accepts.
type Kind string

// Supported field kinds.
const (
	KindNumber Kind = "number"
	KindText   Kind = "text"
	KindBool   Kind = "bool"
)

// FieldSpec declares one named, typed, optional field.
type FieldSpec struct {
	Name    string `json:"name" yaml:"name"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	Derived bool   `json:"derived,omitempty" yaml:"derived,omitempty"`
}

// Schema is the finite set of fields a section accepts, in display order.
type Schema []FieldSpec

// Number declares a numeric field.
func Number(name string) FieldSpec { return FieldSpec{Name: name, Kind: KindNumber} }

// Text declares a text field.
func Text(name string) FieldSpec { return FieldSpec{Name: name, Kind: KindText} }

// Bool declares a boolean field.
func Bool(name string) FieldSpec { return FieldSpec{Name: name, Kind: KindBool} }

// Computed declares a numeric field maintained by a rule.
func Computed(name string) FieldSpec { return FieldSpec{Name: name, Kind: KindNumber, Derived: true} }

// Lookup returns the spec for name.
func (s Schema) Lookup(name string) (FieldSpec, bool) {
	for _, spec := range s {
		if spec.Name == name {
			return spec, true
		}
	}
	return FieldSpec{}, false
}

// Names returns the field names in declaration order.
func (s Schema) Names() []string {
	out := make([]string, len(s))
	for i, spec := range s {
		out[i] = spec.Name
	}
	return out
}

// Check validates a caller assignment and returns the normalized value.
func (s Schema) Check(name string, value any) (any, error) {
	spec, ok := s.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if spec.Derived {
		return nil, fmt.Errorf("%w: %s", ErrDerivedField, name)
	}
	return spec.coerce(value)
}

// Conform validates a loaded mapping. Unknown keys are dropped and returned;
// a value of the wrong kind fails the whole mapping.
func (s Schema) Conform(fields Fields) (Fields, []string, error) {
	out := make(Fields, len(fields))
	var dropped []string
	for _, name := range fields.Keys() {
		spec, ok := s.Lookup(name)
		if !ok {
			dropped = append(dropped, name)
			continue
		}
		v, err := spec.coerce(fields[name])
		if err != nil {
			return nil, dropped, err
		}
		out[name] = v
	}
	return out, dropped, nil
}

func (spec FieldSpec) coerce(value any) (any, error) {
	v, err := Normalize(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Name, err)
	}
	if v == nil {
		return nil, nil
	}
	var ok bool
	switch spec.Kind {
	case KindNumber:
		_, ok = v.(float64)
	case KindText:
		_, ok = v.(string)
	case KindBool:
		_, ok = v.(bool)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s wants %s, got %T", ErrFieldKind, spec.Name, spec.Kind, v)
	}
	return v, nil
}
