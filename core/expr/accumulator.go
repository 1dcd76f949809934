package expr

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// accumulators lists the reducers accepted inside a group stage.
var accumulators = map[string]struct{}{
	"$sum":          {},
	"$avg":          {},
	"$first":        {},
	"$last":         {},
	"$max":          {},
	"$min":          {},
	"$push":         {},
	"$addToSet":     {},
	"$stdDevPop":    {},
	"$stdDevSamp":   {},
	"$mergeObjects": {},
}

// IsAccumulator reports whether op names a group reducer. The marker is optional.
func IsAccumulator(op string) bool {
	_, ok := accumulators[withMarker(op)]
	return ok
}

// Accumulator reduces the values of a group to one. It has the same wire shape
// as an Operation but only group stages accept it as a grouping.
type Accumulator struct {
	op       string
	operands []Expression
}

// NewAccumulator validates and builds an accumulator.
func NewAccumulator(op string, operands ...Expression) (*Accumulator, error) {
	op, ops, err := checkOperands(op, operands)
	if err != nil {
		return nil, err
	}
	if !IsAccumulator(op) {
		return nil, fmt.Errorf("%w: %s is not an accumulator", ErrInvalidArgument, op)
	}
	return &Accumulator{op: op, operands: ops}, nil
}

// AccumulatorOf is shorthand for NewAccumulator(op, Field(field)).
func AccumulatorOf(op, field string) (*Accumulator, error) {
	return NewAccumulator(op, Field(field))
}

// Operator returns the operator name including the marker.
func (a *Accumulator) Operator() string { return a.op }

// Operands returns a copy of the operand list.
func (a *Accumulator) Operands() []Expression {
	return append([]Expression(nil), a.operands...)
}

func (a *Accumulator) Value() any {
	return bson.D{{Key: a.op, Value: operandsValue(a.operands)}}
}

func (*Accumulator) expression() {}

func accumulator(op string, e Expression) *Accumulator {
	return &Accumulator{op: op, operands: []Expression{e}}
}

func Sum(e Expression) *Accumulator        { return accumulator("$sum", e) }
func Avg(e Expression) *Accumulator        { return accumulator("$avg", e) }
func First(e Expression) *Accumulator      { return accumulator("$first", e) }
func Last(e Expression) *Accumulator       { return accumulator("$last", e) }
func Max(e Expression) *Accumulator        { return accumulator("$max", e) }
func Min(e Expression) *Accumulator        { return accumulator("$min", e) }
func Push(e Expression) *Accumulator       { return accumulator("$push", e) }
func AddToSet(e Expression) *Accumulator   { return accumulator("$addToSet", e) }
func StdDevPop(e Expression) *Accumulator  { return accumulator("$stdDevPop", e) }
func StdDevSamp(e Expression) *Accumulator { return accumulator("$stdDevSamp", e) }

// SumOf sums a constant per document, SumOf(1) counts the group.
func SumOf(n any) *Accumulator {
	return accumulator("$sum", Literal(n))
}
