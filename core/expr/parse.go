package expr

import (
	"fmt"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Parse converts a generic wire tree, as decoded from YAML or extended JSON,
// into an expression. Strings starting with the marker become field
// references and single key documents keyed by an operator become
// operations, or accumulators when the operator is a group reducer.
func Parse(v any) (Expression, error) {
	switch v := v.(type) {
	case nil:
		return Literal(nil), nil
	case Expression:
		return v, nil
	case string:
		if strings.HasPrefix(v, Marker) && len(v) > 1 {
			return Field(v), nil
		}
		return Literal(v), nil
	case bson.D:
		if len(v) != 1 {
			return nil, fmt.Errorf("%w: expression document must have exactly one key, got %d", ErrInvalidArgument, len(v))
		}
		return parseOp(v[0].Key, v[0].Value)
	case bson.M:
		return parseMap(v)
	case map[string]any:
		return parseMap(v)
	case bson.A, []any:
		return nil, fmt.Errorf("%w: array is not an expression", ErrInvalidArgument)
	default:
		return Literal(v), nil
	}
}

func parseMap(m map[string]any) (Expression, error) {
	if len(m) != 1 {
		keys := mapKeys(m)
		sort.Strings(keys)
		return nil, fmt.Errorf("%w: expression document must have exactly one key, got %v", ErrInvalidArgument, keys)
	}
	for k, v := range m {
		return parseOp(k, v)
	}
	return nil, nil
}

func parseOp(op string, arg any) (Expression, error) {
	if !strings.HasPrefix(op, Marker) {
		return nil, fmt.Errorf("%w: %q is not an operator", ErrInvalidArgument, op)
	}

	var operands []Expression
	switch a := arg.(type) {
	case bson.A:
		ops, err := parseList(op, a)
		if err != nil {
			return nil, err
		}
		operands = ops
	case []any:
		ops, err := parseList(op, a)
		if err != nil {
			return nil, err
		}
		operands = ops
	default:
		e, err := parseOperand(a)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		operands = []Expression{e}
	}

	if IsAccumulator(op) {
		return NewAccumulator(op, operands...)
	}
	return NewOperation(op, operands...)
}

func parseList(op string, list []any) ([]Expression, error) {
	operands := make([]Expression, 0, len(list))
	for i, item := range list {
		var e Expression
		switch item.(type) {
		case bson.A, []any:
			// nested arrays are literal operands, e.g. the set of $in
			e = Literal(item)
		default:
			var err error
			if e, err = parseOperand(item); err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
			}
		}
		operands = append(operands, e)
	}
	return operands, nil
}

// parseOperand parses an operator argument. A document with no operator keys
// is a literal argument, eg. the {if, then, else} form of $cond.
func parseOperand(v any) (Expression, error) {
	var keys []string
	switch d := v.(type) {
	case bson.D:
		for _, e := range d {
			keys = append(keys, e.Key)
		}
	case bson.M:
		keys = mapKeys(d)
	case map[string]any:
		keys = mapKeys(d)
	default:
		return Parse(v)
	}

	if len(keys) == 0 {
		return Parse(v)
	}
	for _, k := range keys {
		if strings.HasPrefix(k, Marker) {
			return Parse(v)
		}
	}
	return Literal(v), nil
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
