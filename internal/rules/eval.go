package rules

import "strings"

// Condition is one node of a rule predicate tree. Exactly one of the
// group forms (all, any, not) or the leaf form (field + op) is set.
type Condition struct {
	All []Condition `yaml:"all,omitempty"`
	Any []Condition `yaml:"any,omitempty"`
	Not *Condition  `yaml:"not,omitempty"`

	Field string      `yaml:"field,omitempty"`
	Op    string      `yaml:"op,omitempty"`
	Value interface{} `yaml:"value,omitempty"`
}

// Supported leaf operators.
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpGt       = "gt"
	OpGte      = "gte"
	OpLt       = "lt"
	OpLte      = "lte"
	OpIn       = "in"
	OpContains = "contains"
	OpPrefix   = "prefix"
	OpPresent  = "present"
	OpAbsent   = "absent"
)

func validOp(op string) bool {
	switch op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte, OpIn, OpContains, OpPrefix, OpPresent, OpAbsent:
		return true
	default:
		return false
	}
}

// Eval resolves the condition against the flattened field map. A leaf
// whose field is missing never matches (absent context is unknown, not
// zero), except through the explicit absent operator.
func (c *Condition) Eval(fields map[string]interface{}) bool {
	switch {
	case len(c.All) > 0:
		for i := range c.All {
			if !c.All[i].Eval(fields) {
				return false
			}
		}
		return true
	case len(c.Any) > 0:
		for i := range c.Any {
			if c.Any[i].Eval(fields) {
				return true
			}
		}
		return false
	case c.Not != nil:
		return !c.Not.Eval(fields)
	}

	val, ok := fields[c.Field]
	switch c.Op {
	case OpAbsent:
		return !ok
	case OpPresent:
		return ok
	}
	if !ok {
		return false
	}

	switch c.Op {
	case OpEq:
		return looseEqual(val, c.Value)
	case OpNe:
		return !looseEqual(val, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		return compareNumeric(c.Op, val, c.Value)
	case OpIn:
		for _, candidate := range toList(c.Value) {
			if looseEqual(val, candidate) {
				return true
			}
		}
		return false
	case OpContains:
		if items := toList(val); items != nil {
			for _, item := range items {
				if looseEqual(item, c.Value) {
					return true
				}
			}
			return false
		}
		vs, vok := toString(val)
		cs, cok := toString(c.Value)
		return vok && cok && strings.Contains(strings.ToLower(vs), strings.ToLower(cs))
	case OpPrefix:
		vs, vok := toString(val)
		cs, cok := toString(c.Value)
		return vok && cok && strings.HasPrefix(strings.ToLower(vs), strings.ToLower(cs))
	default:
		return false
	}
}

// looseEqual compares across the value kinds YAML rules and JSON
// payloads produce. Numbers compare numerically, strings ignore case.
func looseEqual(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}
	if ab, aok := a.(bool); aok {
		bb, bok := b.(bool)
		return bok && ab == bb
	}
	as, aok := toString(a)
	bs, bok := toString(b)
	return aok && bok && strings.EqualFold(as, bs)
}

func compareNumeric(op string, a, b interface{}) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	switch op {
	case OpGt:
		return af > bf
	case OpGte:
		return af >= bf
	case OpLt:
		return af < bf
	case OpLte:
		return af <= bf
	default:
		return false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func toString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func toList(v interface{}) []interface{} {
	switch items := v.(type) {
	case []interface{}:
		return items
	case []string:
		out := make([]interface{}, len(items))
		for i, s := range items {
			out[i] = s
		}
		return out
	default:
		return nil
	}
}
