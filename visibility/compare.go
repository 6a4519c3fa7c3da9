package visibility

import (
	"math"
	"strings"

	"github.com/mbolis/quick-forms/model"
	"github.com/shopspring/decimal"
)

/*
 * Operator semantics.
 *
 * Answers and comparands are JSON literals: strings, numbers, booleans, or
 * lists of strings (checkbox answers). Comparison rules:
 *
 *   - equals: decimal comparison when both sides parse as numbers, string
 *     comparison otherwise. A list equals a scalar when it holds exactly that
 *     one element, and equals a list when element-wise equal.
 *   - notEquals: negation of equals, for every input pair.
 *   - greaterThan/lessThan: decimal comparison only. Anything that is not a
 *     number yields false.
 *   - contains: substring test on scalars, membership test on lists.
 *
 * Numbers go through shopspring/decimal so that "1.10" equals 1.1 and large
 * integers do not lose precision. Comparing decimals rescales both sides to
 * the smaller exponent, so operands with more than maxNumericLen characters
 * or an exponent beyond maxExponent are not numbers.
 */

const (
	maxNumericLen = 100
	maxExponent   = 350 // covers every finite float64, subnormals included
)

// Compare applies op to an answer and the rule's comparand.
// Unknown operators yield false.
func Compare(op model.Operator, answer, comparand any) bool {
	switch op {
	case model.OpEquals:
		return equal(answer, comparand)
	case model.OpNotEquals:
		return !equal(answer, comparand)
	case model.OpGreaterThan:
		return compareNumeric(answer, comparand) > 0
	case model.OpLessThan:
		return compareNumeric(answer, comparand) < 0
	case model.OpContains:
		return contains(answer, comparand)
	default:
		return false
	}
}

func equal(a, b any) bool {
	la, aList := asList(a)
	lb, bList := asList(b)
	switch {
	case aList && bList:
		if len(la) != len(lb) {
			return false
		}
		for i := range la {
			if !equalScalar(la[i], lb[i]) {
				return false
			}
		}
		return true
	case aList:
		return len(la) == 1 && equalScalar(la[0], b)
	case bList:
		return len(lb) == 1 && equalScalar(a, lb[0])
	default:
		return equalScalar(a, b)
	}
}

func equalScalar(a, b any) bool {
	if da, db, ok := asDecimals(a, b); ok {
		return da.Equal(db)
	}
	sa, okA := model.ScalarString(a)
	sb, okB := model.ScalarString(b)
	return okA && okB && sa == sb
}

// compareNumeric returns -1, 0 or 1, and 0 when either side is not a number.
func compareNumeric(a, b any) int {
	da, db, ok := asDecimals(a, b)
	if !ok {
		return 0
	}
	return da.Cmp(db)
}

func contains(a, b any) bool {
	if la, ok := asList(a); ok {
		if lb, ok := asList(b); ok {
			for _, want := range lb {
				if !member(la, want) {
					return false
				}
			}
			return true
		}
		return member(la, b)
	}

	sa, okA := model.ScalarString(a)
	sb, okB := model.ScalarString(b)
	return okA && okB && strings.Contains(sa, sb)
}

func member(list []any, v any) bool {
	for _, e := range list {
		if equalScalar(e, v) {
			return true
		}
	}
	return false
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	case []any:
		return l, true
	default:
		return nil, false
	}
}

func asDecimals(a, b any) (decimal.Decimal, decimal.Decimal, bool) {
	da, okA := toDecimal(a)
	if !okA {
		return decimal.Decimal{}, decimal.Decimal{}, false
	}
	db, okB := toDecimal(b)
	return da, db, okB
}

func toDecimal(v any) (decimal.Decimal, bool) {
	d, ok := parseDecimal(v)
	if !ok {
		return decimal.Decimal{}, false
	}
	if exp := d.Exponent(); exp > maxExponent || exp < -maxExponent {
		return decimal.Decimal{}, false
	}
	return d, true
}

func parseDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(n), true
	case float32:
		return parseDecimal(float64(n))
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" || len(s) > maxNumericLen {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	default:
		return decimal.Decimal{}, false
	}
}
