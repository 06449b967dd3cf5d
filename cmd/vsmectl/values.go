package main

import (
	"fmt"
	"strconv"
	"strings"

	"vsmecore/pkg/domain"
)

// parseAssignments turns name=value arguments into typed field values using
// the schema kinds. An empty value or "null" clears the field.
func parseAssignments(schema domain.Schema, args []string) (domain.Fields, error) {
	out := make(domain.Fields, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q: want field=value", arg)
		}
		spec, ok := schema.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownField, name)
		}
		v, err := parseValue(spec.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

func parseValue(kind domain.Kind, raw string) (any, error) {
	if raw == "" || raw == "null" {
		return nil, nil
	}
	switch kind {
	case domain.KindNumber:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", domain.ErrFieldKind, raw)
		}
		return n, nil
	case domain.KindBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a boolean", domain.ErrFieldKind, raw)
		}
		return b, nil
	}
	return raw, nil
}
