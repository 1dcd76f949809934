package core

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dosco/mongopipe/internal/util"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Filterer is anything that renders to a match filter document.
type Filterer interface {
	Document() (bson.D, error)
}

// FilterDoc uses a ready made filter document as is.
type FilterDoc bson.D

func (f FilterDoc) Document() (bson.D, error) {
	if f == nil {
		return bson.D{}, nil
	}
	return bson.D(f), nil
}

var filterOps = map[string]string{
	"=":      "",
	"==":     "",
	"!=":     "$ne",
	"<>":     "$ne",
	">":      "$gt",
	">=":     "$gte",
	"<":      "$lt",
	"<=":     "$lte",
	"in":     "$in",
	"nin":    "$nin",
	"exists": "$exists",
	"size":   "$size",
	"all":    "$all",
	"elem":   "$elemMatch",
}

// Query builds a match filter from simple conditions. Operator conditions on
// the same field are merged into one sub document, an equality condition
// replaces whatever the field held.
type Query struct {
	doc bson.D
	ops map[string]bool // fields holding an operator sub document
	err error
}

func NewQuery() *Query {
	return &Query{}
}

// Filter adds a condition written as "field op", eg. Filter("price >", 10).
// A condition with no operator tests equality.
func (q *Query) Filter(condition string, value any) *Query {
	if q.err != nil {
		return q
	}

	parts := strings.Fields(condition)
	var field, op string
	switch len(parts) {
	case 1:
		field, op = parts[0], "="
	case 2:
		field, op = parts[0], strings.ToLower(parts[1])
	default:
		q.err = fmt.Errorf("%w: bad filter condition %q", ErrInvalidArgument, condition)
		return q
	}

	mop, ok := filterOps[op]
	if !ok {
		q.err = fmt.Errorf("%w: unknown filter operator %q", ErrInvalidArgument, op)
		return q
	}
	if err := checkFilterValue(mop, value); err != nil {
		q.err = fmt.Errorf("%w: %s: %w", ErrInvalidArgument, condition, err)
		return q
	}

	if mop == "" {
		q.doc = util.Put(q.doc, field, value)
		delete(q.ops, field)
		return q
	}

	var cond bson.D
	if q.ops[field] {
		for _, e := range q.doc {
			if e.Key == field {
				cond, _ = e.Value.(bson.D)
				break
			}
		}
	}
	if q.ops == nil {
		q.ops = make(map[string]bool)
	}
	q.ops[field] = true
	q.doc = util.Put(q.doc, field, util.Put(cond, mop, value))
	return q
}

// Equal is Filter(field, v).
func (q *Query) Equal(field string, v any) *Query {
	return q.Filter(field, v)
}

// Document returns the filter, or the first error recorded while building it.
func (q *Query) Document() (bson.D, error) {
	if q == nil {
		return bson.D{}, nil
	}
	if q.err != nil {
		return nil, q.err
	}
	if q.doc == nil {
		return bson.D{}, nil
	}
	return q.doc, nil
}

func checkFilterValue(op string, v any) error {
	switch op {
	case "$in", "$nin", "$all":
		if v == nil {
			return fmt.Errorf("%s needs a list", op)
		}
		k := reflect.TypeOf(v).Kind()
		if k != reflect.Slice && k != reflect.Array {
			return fmt.Errorf("%s needs a list, got %T", op, v)
		}
	case "$exists":
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%s needs a bool, got %T", op, v)
		}
	case "$size":
		switch v.(type) {
		case int, int32, int64:
		default:
			return fmt.Errorf("%s needs an integer, got %T", op, v)
		}
	}
	return nil
}
