package domain

import (
	"fmt"
)

// Section describes one independently loadable and savable sub-form of a report.
type Section struct {
	Collection string
	Title      string
	Schema     Schema
	// Initial is the shape exposed before any record is loaded.
	Initial Fields
	Rules   []Rule
	// Naming translates field names for the backend. Nil means SnakeCase.
	Naming Naming
}

// InitialFields returns a copy of the initial shape.
func (s Section) InitialFields() Fields {
	if s.Initial == nil {
		return Fields{}
	}
	return s.Initial.Clone()
}

// FieldNaming returns the configured naming convention.
func (s Section) FieldNaming() Naming {
	if s.Naming == nil {
		return SnakeCase{}
	}
	return s.Naming
}

// Engine returns a rules engine over the section's derived-field rules.
func (s Section) Engine() *RulesEngine {
	return NewRulesEngine(s.Rules...)
}

// Validate checks the definition is internally consistent.
func (s Section) Validate() error {
	if err := ValidateKey(s.Collection, "-"); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(s.Schema))
	for _, spec := range s.Schema {
		if spec.Name == "" {
			return fmt.Errorf("section %s: empty field name", s.Collection)
		}
		if _, dup := seen[spec.Name]; dup {
			return fmt.Errorf("section %s: duplicate field %s", s.Collection, spec.Name)
		}
		seen[spec.Name] = struct{}{}
		if IsReserved(s.FieldNaming().ToExternal(spec.Name)) {
			return fmt.Errorf("section %s: field %s collides with a reserved key", s.Collection, spec.Name)
		}
	}
	for name, v := range s.Initial {
		spec, ok := s.Schema.Lookup(name)
		if !ok {
			return fmt.Errorf("section %s: initial value for %w %s", s.Collection, ErrUnknownField, name)
		}
		if _, err := spec.coerce(v); err != nil {
			return fmt.Errorf("section %s: %w", s.Collection, err)
		}
	}
	engine := NewRulesEngine()
	for _, rule := range s.Rules {
		if err := engine.Register(rule); err != nil {
			return fmt.Errorf("section %s: %w", s.Collection, err)
		}
	}
	for _, rule := range engine.Rules() {
		spec, ok := s.Schema.Lookup(rule.Name())
		if !ok || !spec.Derived {
			return fmt.Errorf("section %s: rule %s must target a computed field", s.Collection, rule.Name())
		}
	}
	return nil
}
