package domain

import "strings"

// Reserved administrative keys. Backends own them and they never appear in a
// store's current fields.
const (
	FieldID        = "id"
	FieldReportID  = "report_id"
	FieldCreatedAt = "created_at"
	FieldUpdatedAt = "updated_at"
)

var reservedFields = map[string]struct{}{
	FieldID:        {},
	FieldReportID:  {},
	FieldCreatedAt: {},
	FieldUpdatedAt: {},
}

// IsReserved reports whether the external field name is administrative.
func IsReserved(external string) bool {
	_, ok := reservedFields[external]
	return ok
}

// Naming translates field names between the store (internal) and backend
// (external) conventions. Both directions must be lossless.
type Naming interface {
	ToExternal(name string) string
	ToInternal(name string) string
}

// SnakeCase maps camelCase internal names to snake_case external names.
// Digits stay attached to the preceding segment: scope1Emissions <-> scope1_emissions.
//
// External names outside that shape are escaped with '$' on the internal side
// so the mapping stays injective: an ASCII capital becomes "$X", an underscore
// not followed by a lowercase letter becomes "$_" and '$' becomes "$$".
// "emissions_2023" maps to "emissions$_2023" and back.
type SnakeCase struct{}

const namingEscape = '$'

// ToExternal converts camelCase to snake_case, undoing escapes written by
// ToInternal.
func (SnakeCase) ToExternal(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == namingEscape && i+1 < len(name) && escapable(name[i+1]):
			i++
			b.WriteByte(name[i])
		case isUpperASCII(c):
			b.WriteByte('_')
			b.WriteByte(c + 'a' - 'A')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// ToInternal converts snake_case to camelCase.
func (SnakeCase) ToInternal(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_' && i+1 < len(name) && isLowerASCII(name[i+1]):
			i++
			b.WriteByte(name[i] - 'a' + 'A')
		case escapable(c):
			b.WriteByte(namingEscape)
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func escapable(c byte) bool {
	return c == '_' || c == namingEscape || isUpperASCII(c)
}

func isUpperASCII(c byte) bool { return c >= 'A' && c <= 'Z' }

func isLowerASCII(c byte) bool { return c >= 'a' && c <= 'z' }

// Identity leaves field names untouched.
type Identity struct{}

// ToExternal returns name.
func (Identity) ToExternal(name string) string { return name }

// ToInternal returns name.
func (Identity) ToInternal(name string) string { return name }

// FieldsToExternal renames every key of f using n.
func FieldsToExternal(n Naming, f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[n.ToExternal(k)] = v
	}
	return out
}

// FieldsToInternal renames every key of f using n, dropping reserved keys.
func FieldsToInternal(n Naming, f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if IsReserved(k) {
			continue
		}
		out[n.ToInternal(k)] = v
	}
	return out
}
