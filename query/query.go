package query

import (
	"math"
	"reflect"
	"strings"
)

// Operators understood inside an operator object, e.g. {"age": {"$gte": 18}}
const (
	OpEq  = "$eq"
	OpNe  = "$ne"
	OpGt  = "$gt"
	OpGte = "$gte"
	OpLt  = "$lt"
	OpLte = "$lte"
	OpIn  = "$in"
	OpNin = "$nin"
)

var knownOperators = map[string]bool{
	OpEq:  true,
	OpNe:  true,
	OpGt:  true,
	OpGte: true,
	OpLt:  true,
	OpLte: true,
	OpIn:  true,
	OpNin: true,
}

func IsKnownOperator(op string) bool {
	return knownOperators[op]
}

// Match reports whether document satisfies every field condition in filter.
// It never fails: malformed conditions simply do not match.
func Match(filter map[string]any, document map[string]any) bool {
	for field, condition := range filter {
		if !MatchField(document[field], condition) {
			return false
		}
	}
	return true
}

// MatchField evaluates a single field condition against the field value.
// Missing fields are passed as nil.
func MatchField(value any, condition any) bool {
	operators, ok := AsOperators(condition)
	if !ok {
		return Equal(value, condition)
	}

	for op, operand := range operators {
		if !matchOperator(op, value, operand) {
			return false
		}
	}

	return true
}

func matchOperator(op string, value, operand any) bool {
	switch op {
	case OpEq:
		return Equal(value, operand)
	case OpNe:
		return !Equal(value, operand)
	case OpGt:
		c, ok := Compare(value, operand)
		return ok && c > 0
	case OpGte:
		c, ok := Compare(value, operand)
		return ok && c >= 0
	case OpLt:
		c, ok := Compare(value, operand)
		return ok && c < 0
	case OpLte:
		c, ok := Compare(value, operand)
		return ok && c <= 0
	case OpIn:
		items, ok := AsSequence(operand)
		if !ok {
			return false
		}
		for _, item := range items {
			if Equal(value, item) {
				return true
			}
		}
		return false
	case OpNin:
		items, ok := AsSequence(operand)
		if !ok {
			return false
		}
		for _, item := range items {
			if Equal(value, item) {
				return false
			}
		}
		return true
	}

	// unknown operator
	return false
}

// AsOperators returns condition as an operator object. A map is an operator
// object as soon as one of its keys starts with '$'.
func AsOperators(condition any) (map[string]any, bool) {
	m, ok := condition.(map[string]any)
	if !ok {
		return nil, false
	}
	for key := range m {
		if strings.HasPrefix(key, "$") {
			return m, true
		}
	}
	return nil, false
}

// LiteralFields returns the filter entries that are plain equality literals.
func LiteralFields(filter map[string]any) map[string]any {
	result := map[string]any{}
	for field, condition := range filter {
		if _, isOperator := AsOperators(condition); isOperator {
			continue
		}
		result[field] = condition
	}
	return result
}

// AsSequence accepts []any and any other slice or array kind.
func AsSequence(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case nil, string, []byte:
		return nil, false
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// Number converts any Go numeric kind to float64.
func Number(v any) (float64, bool) {
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

// IsPrimitive reports whether v is null, bool, number or string.
func IsPrimitive(v any) bool {
	return rank(v) >= 0
}

// Equal is strict identity over primitives. Containers are never equal to
// anything, not even to themselves.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if x, ok := Number(a); ok {
		y, ok := Number(b)
		return ok && x == y
	}

	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	}

	return false
}

// Compare orders two numbers or two strings. Any other pair is not comparable.
func Compare(a, b any) (int, bool) {
	if x, ok := Number(a); ok {
		y, ok := Number(b)
		if !ok || math.IsNaN(x) || math.IsNaN(y) {
			return 0, false
		}
		return compareFloat(x, y), true
	}

	if x, ok := a.(string); ok {
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	}

	return 0, false
}

// Less is a total order over primitives: null < bool < number < string.
func Less(a, b any) bool {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra < rb
	}

	switch ra {
	case rankBool:
		return !a.(bool) && b.(bool)
	case rankNumber:
		x, _ := Number(a)
		y, _ := Number(b)
		return x < y
	case rankString:
		return a.(string) < b.(string)
	}

	return false
}

const (
	rankNull = iota
	rankBool
	rankNumber
	rankString
)

func rank(v any) int {
	if v == nil {
		return rankNull
	}
	if _, ok := Number(v); ok {
		return rankNumber
	}
	switch v.(type) {
	case bool:
		return rankBool
	case string:
		return rankString
	}
	return -1
}

// SameKind reports whether both primitives share the same rank.
func SameKind(a, b any) bool {
	return rank(a) == rank(b)
}

func compareFloat(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}
