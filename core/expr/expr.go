// Package expr holds the building blocks of an aggregation pipeline: expressions,
// accumulators, projections, groups and sorts. Every node is immutable once built
// and knows how to render itself as a wire value (bson.D, bson.A or a scalar).
package expr

import (
	"errors"
	"fmt"
	"strings"
)

// Marker is the leading character that tells a field reference apart from a
// plain string literal on the wire.
const Marker = "$"

// ErrInvalidArgument is returned when an expression, projection or group is
// built from arguments that can never produce a valid wire document.
var ErrInvalidArgument = errors.New("invalid argument")

// Expression is a node of the expression language. The set of implementations
// is closed: FieldExpr, LiteralExpr, *Operation and *Accumulator.
type Expression interface {
	// Value returns the wire representation of the expression.
	Value() any

	expression()
}

// FieldExpr references a document field.
type FieldExpr struct {
	name string
}

// Field returns a reference to the named field. The marker is prepended when
// missing, so Field("a") and Field("$a") are the same reference.
func Field(name string) FieldExpr {
	return FieldExpr{name: withMarker(name)}
}

// Fields returns one field reference per name.
func Fields(names ...string) []Expression {
	exps := make([]Expression, 0, len(names))
	for _, n := range names {
		exps = append(exps, Field(n))
	}
	return exps
}

// Name returns the field name without the marker.
func (f FieldExpr) Name() string {
	return strings.TrimPrefix(f.name, Marker)
}

func (f FieldExpr) Value() any { return f.name }
func (FieldExpr) expression()  {}

// LiteralExpr wraps a value that is already wire compatible.
type LiteralExpr struct {
	value any
}

// Literal returns an expression that renders v as is.
func Literal(v any) LiteralExpr {
	return LiteralExpr{value: v}
}

func (l LiteralExpr) Value() any { return l.value }
func (LiteralExpr) expression()  {}

func withMarker(name string) string {
	if strings.HasPrefix(name, Marker) {
		return name
	}
	return Marker + name
}

// Validate walks the expression tree and fails on nil nodes, which the
// shorthand constructors cannot reject up front.
func Validate(e Expression) error {
	if e == nil {
		return fmt.Errorf("%w: nil expression", ErrInvalidArgument)
	}
	var ops []Expression
	switch v := e.(type) {
	case *Operation:
		if v == nil {
			return fmt.Errorf("%w: nil operation", ErrInvalidArgument)
		}
		ops = v.operands
	case *Accumulator:
		if v == nil {
			return fmt.Errorf("%w: nil accumulator", ErrInvalidArgument)
		}
		ops = v.operands
	}
	for _, o := range ops {
		if err := Validate(o); err != nil {
			return err
		}
	}
	return nil
}
