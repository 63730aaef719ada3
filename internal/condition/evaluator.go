// Package condition evaluates boolean rule trees against a contact
// record snapshot. Evaluation is pure: no I/O, no side effects, and a
// malformed rule degrades to false instead of failing the pipeline.
package condition

import (
	"log"
	"strings"
)

const (
	LogicAnd = "AND"
	LogicOr  = "OR"
)

// Rule compares one record field against a configured value.
type Rule struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value,omitempty"`
}

// Group is a flat rule list joined by AND or OR.
type Group struct {
	Rules []Rule `json:"rules"`
	Logic string `json:"logic"`
}

// Evaluate returns whether the record satisfies the group. An empty
// rule list is vacuously true ("always proceed"). Unknown logic values
// fall back to AND.
func Evaluate(g Group, record map[string]any) bool {
	if len(g.Rules) == 0 {
		return true
	}

	if strings.EqualFold(g.Logic, LogicOr) {
		for _, r := range g.Rules {
			if evalRule(r, record) {
				return true
			}
		}
		return false
	}

	for _, r := range g.Rules {
		if !evalRule(r, record) {
			return false
		}
	}
	return true
}

func evalRule(r Rule, record map[string]any) bool {
	actual, present := record[r.Field]

	switch r.Operator {
	case "equals":
		return present && looseEqual(actual, r.Value)
	case "not_equals":
		return !present || !looseEqual(actual, r.Value)
	case "greater_than":
		a, aok := toNumber(actual)
		b, bok := toNumber(r.Value)
		return aok && bok && a > b
	case "less_than":
		a, aok := toNumber(actual)
		b, bok := toNumber(r.Value)
		return aok && bok && a < b
	case "contains":
		a, aok := actual.(string)
		b, bok := r.Value.(string)
		return aok && bok && strings.Contains(strings.ToLower(a), strings.ToLower(b))
	case "not_contains":
		a, aok := actual.(string)
		b, bok := r.Value.(string)
		return aok && bok && !strings.Contains(strings.ToLower(a), strings.ToLower(b))
	case "is_null":
		return !present || actual == nil
	case "is_not_null":
		return present && actual != nil
	default:
		log.Printf("[Condition] unknown operator %q on field %q, evaluating false", r.Operator, r.Field)
		return false
	}
}

// looseEqual compares across JSON decode shapes: numbers compare as
// numbers, everything else compares by interface equality.
func looseEqual(a, b any) bool {
	if an, aok := toNumber(a); aok {
		if bn, bok := toNumber(b); bok {
			return an == bn
		}
	}
	return a == b
}

// toNumber accepts Go numeric kinds only. Numeric strings stay
// strings; comparison operators do not coerce.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
