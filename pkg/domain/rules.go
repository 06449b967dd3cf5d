package domain

import (
	"errors"
	"fmt"
	"math"
)

// ErrDuplicateRule reports a second rule for a field that already has one.
var ErrDuplicateRule = errors.New("duplicate rule")

// Rule recomputes derived fields from sibling fields. Apply must be pure and
// cheap: it runs after every edit.
type Rule interface {
	Name() string
	Apply(fields Fields) Fields
}

type ruleFunc struct {
	name string
	fn   func(Fields) Fields
}

func (r ruleFunc) Name() string               { return r.name }
func (r ruleFunc) Apply(fields Fields) Fields { return r.fn(fields) }

// NewRule wraps fn as a named rule.
func NewRule(name string, fn func(Fields) Fields) Rule {
	return ruleFunc{name: name, fn: fn}
}

// RulesEngine applies derived-field rules in registration order.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine with the supplied rules.
func NewRulesEngine(rules ...Rule) *RulesEngine {
	return &RulesEngine{rules: append([]Rule(nil), rules...)}
}

// Register appends a rule to the engine. Each computed field has at most one
// rule.
func (e *RulesEngine) Register(rule Rule) error {
	if rule == nil {
		return errors.New("nil rule")
	}
	for _, existing := range e.rules {
		if existing.Name() == rule.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, rule.Name())
		}
	}
	e.rules = append(e.rules, rule)
	return nil
}

// Rules returns the registered rules.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Apply returns a copy of fields with every rule's update merged in. Later
// rules observe the output of earlier ones.
func (e *RulesEngine) Apply(fields Fields) Fields {
	out := fields.Clone()
	if e == nil {
		return out
	}
	for _, rule := range e.rules {
		out.Merge(rule.Apply(out))
	}
	return out
}

// PercentOfTotal sets target to part*100/sum(parts). Missing inputs count as
// zero and a zero total yields 0.
func PercentOfTotal(target, part string, parts ...string) Rule {
	return NewRule(target, func(f Fields) Fields {
		total := 0.0
		for _, p := range parts {
			total += numberOrZero(f, p)
		}
		if total == 0 {
			return Fields{target: 0.0}
		}
		return Fields{target: round2(numberOrZero(f, part) * 100 / total)}
	})
}

// Ratio sets target to numerator*scale/denominator. A missing numerator or a
// missing or zero denominator leaves target undefined (nil).
func Ratio(target, numerator, denominator string, scale float64) Rule {
	return NewRule(target, func(f Fields) Fields {
		num, okNum := f.Number(numerator)
		den, okDen := f.Number(denominator)
		if !okNum || !okDen || den == 0 {
			return Fields{target: nil}
		}
		return Fields{target: round2(num * scale / den)}
	})
}

// Sum sets target to the sum of parts. Target is nil when every part is unset.
func Sum(target string, parts ...string) Rule {
	return NewRule(target, func(f Fields) Fields {
		total, seen := 0.0, false
		for _, p := range parts {
			if v, ok := f.Number(p); ok {
				total += v
				seen = true
			}
		}
		if !seen {
			return Fields{target: nil}
		}
		return Fields{target: round2(total)}
	})
}

// PercentGap sets target to (base-other)*100/base. A missing or zero base
// leaves target undefined.
func PercentGap(target, base, other string) Rule {
	return NewRule(target, func(f Fields) Fields {
		b, okBase := f.Number(base)
		o, okOther := f.Number(other)
		if !okBase || !okOther || b == 0 {
			return Fields{target: nil}
		}
		return Fields{target: round2((b - o) * 100 / b)}
	})
}

func numberOrZero(f Fields, name string) float64 {
	v, _ := f.Number(name)
	return v
}

func round2(v float64) any {
	r := math.Round(v*100) / 100
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	return r
}
