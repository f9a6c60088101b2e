package memory

import (
	"fmt"
	"strings"
)

// condition is one parsed conjunct of an expression.
type condition struct {
	op    string // "=", ">=", "<=", "between", "begins_with", "exists", "not_exists"
	path  string // name placeholder path, e.g. "#meta.#version"
	value string // value placeholder
	upper string // second value placeholder for between
}

// parseExpression splits a conjunction into conditions. Only the grammar
// the engine emits is supported: =, >=, <=, BETWEEN, begins_with,
// attribute_exists, attribute_not_exists, joined with AND.
func parseExpression(expr string) ([]condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	parts := strings.Split(expr, " AND ")
	// Re-join BETWEEN bounds split apart by the conjunction split.
	var conjuncts []string
	for i := 0; i < len(parts); i++ {
		part := parts[i]
		if strings.Contains(part, " BETWEEN ") {
			if i+1 >= len(parts) {
				return nil, fmt.Errorf("malformed BETWEEN in %q", expr)
			}
			part = part + " AND " + parts[i+1]
			i++
		}
		conjuncts = append(conjuncts, strings.TrimSpace(part))
	}

	conds := make([]condition, 0, len(conjuncts))
	for _, c := range conjuncts {
		cond, err := parseCondition(c)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func parseCondition(c string) (condition, error) {
	switch {
	case strings.HasPrefix(c, "begins_with(") && strings.HasSuffix(c, ")"):
		inner := strings.TrimSuffix(strings.TrimPrefix(c, "begins_with("), ")")
		fields := strings.Split(inner, ",")
		if len(fields) != 2 {
			return condition{}, fmt.Errorf("malformed begins_with: %q", c)
		}
		return condition{
			op:    "begins_with",
			path:  strings.TrimSpace(fields[0]),
			value: strings.TrimSpace(fields[1]),
		}, nil
	case strings.HasPrefix(c, "attribute_exists(") && strings.HasSuffix(c, ")"):
		return condition{
			op:   "exists",
			path: strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(c, "attribute_exists("), ")")),
		}, nil
	case strings.HasPrefix(c, "attribute_not_exists(") && strings.HasSuffix(c, ")"):
		return condition{
			op:   "not_exists",
			path: strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(c, "attribute_not_exists("), ")")),
		}, nil
	case strings.Contains(c, " BETWEEN "):
		lhs, rest, _ := strings.Cut(c, " BETWEEN ")
		lo, hi, ok := strings.Cut(rest, " AND ")
		if !ok {
			return condition{}, fmt.Errorf("malformed BETWEEN: %q", c)
		}
		return condition{
			op:    "between",
			path:  strings.TrimSpace(lhs),
			value: strings.TrimSpace(lo),
			upper: strings.TrimSpace(hi),
		}, nil
	case strings.Contains(c, " >= "):
		lhs, rhs, _ := strings.Cut(c, " >= ")
		return condition{op: ">=", path: strings.TrimSpace(lhs), value: strings.TrimSpace(rhs)}, nil
	case strings.Contains(c, " <= "):
		lhs, rhs, _ := strings.Cut(c, " <= ")
		return condition{op: "<=", path: strings.TrimSpace(lhs), value: strings.TrimSpace(rhs)}, nil
	case strings.Contains(c, " = "):
		lhs, rhs, _ := strings.Cut(c, " = ")
		return condition{op: "=", path: strings.TrimSpace(lhs), value: strings.TrimSpace(rhs)}, nil
	}
	return condition{}, fmt.Errorf("unsupported condition: %q", c)
}

// resolvePath walks a possibly nested attribute path ("#meta.#version")
// through the item. The second return reports whether the attribute exists.
func resolvePath(item map[string]any, path string, names map[string]string) (any, bool) {
	var cur any = item
	for _, seg := range strings.Split(path, ".") {
		attr := seg
		if strings.HasPrefix(seg, "#") {
			resolved, ok := names[seg]
			if !ok {
				return nil, false
			}
			attr = resolved
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[attr]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// evalConditions evaluates a parsed conjunction against one item.
func evalConditions(item map[string]any, conds []condition,
	names map[string]string, values map[string]any) (bool, error) {

	for _, c := range conds {
		got, present := resolvePath(item, c.path, names)
		switch c.op {
		case "exists":
			if !present {
				return false, nil
			}
			continue
		case "not_exists":
			if present {
				return false, nil
			}
			continue
		}
		want, ok := values[c.value]
		if !ok {
			return false, fmt.Errorf("unbound expression value %q", c.value)
		}
		if !present {
			return false, nil
		}
		switch c.op {
		case "=":
			if !valuesEqual(got, want) {
				return false, nil
			}
		case ">=":
			cmp, err := compareValues(got, want)
			if err != nil || cmp < 0 {
				return false, err
			}
		case "<=":
			cmp, err := compareValues(got, want)
			if err != nil || cmp > 0 {
				return false, err
			}
		case "between":
			hi, ok := values[c.upper]
			if !ok {
				return false, fmt.Errorf("unbound expression value %q", c.upper)
			}
			lo, err := compareValues(got, want)
			if err != nil {
				return false, err
			}
			up, err := compareValues(got, hi)
			if err != nil {
				return false, err
			}
			if lo < 0 || up > 0 {
				return false, nil
			}
		case "begins_with":
			s, sok := got.(string)
			prefix, pok := want.(string)
			if !sok || !pok || !strings.HasPrefix(s, prefix) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported operator %q", c.op)
		}
	}
	return true, nil
}

func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

// compareValues orders two values with storage semantics: numbers
// numerically, strings byte-wise.
func compareValues(a, b any) (int, error) {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		if !bok {
			return 0, fmt.Errorf("cannot compare number with %T", b)
		}
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		}
		return 0, nil
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if !aok || !bok {
		return 0, fmt.Errorf("cannot compare %T with %T", a, b)
	}
	return strings.Compare(as, bs), nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
