package expr

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Operation is an operator applied to one or more operands, for example
// {$multiply: ["$price", "$quantity"]}.
type Operation struct {
	op       string
	operands []Expression
}

// NewOperation validates and builds an operation. The operator gets the
// marker prefix when missing and at least one non nil operand is required.
func NewOperation(op string, operands ...Expression) (*Operation, error) {
	op, ops, err := checkOperands(op, operands)
	if err != nil {
		return nil, err
	}
	return &Operation{op: op, operands: ops}, nil
}

// Operator returns the operator name including the marker.
func (o *Operation) Operator() string { return o.op }

// Operands returns a copy of the operand list.
func (o *Operation) Operands() []Expression {
	return append([]Expression(nil), o.operands...)
}

func (o *Operation) Value() any {
	return bson.D{{Key: o.op, Value: operandsValue(o.operands)}}
}

func (*Operation) expression() {}

func (o *Operation) String() string {
	return fmt.Sprintf("%s%v", o.op, o.operands)
}

func operation(op string, first Expression, more ...Expression) *Operation {
	ops := make([]Expression, 0, len(more)+1)
	ops = append(ops, first)
	ops = append(ops, more...)
	return &Operation{op: withMarker(op), operands: ops}
}

// Add sums numbers or adds milliseconds to a date.
func Add(a, b Expression, more ...Expression) *Operation {
	return operation("$add", a, append([]Expression{b}, more...)...)
}

// Subtract returns a minus b.
func Subtract(a, b Expression) *Operation {
	return operation("$subtract", a, b)
}

// Multiply returns the product of its operands.
func Multiply(a, b Expression, more ...Expression) *Operation {
	return operation("$multiply", a, append([]Expression{b}, more...)...)
}

// Divide returns a divided by b.
func Divide(a, b Expression) *Operation {
	return operation("$divide", a, b)
}

// Mod returns the remainder of a divided by b.
func Mod(a, b Expression) *Operation {
	return operation("$mod", a, b)
}

// Concat joins strings.
func Concat(a Expression, more ...Expression) *Operation {
	return operation("$concat", a, more...)
}

func Year(field string) *Operation       { return operation("$year", Field(field)) }
func Month(field string) *Operation      { return operation("$month", Field(field)) }
func DayOfYear(field string) *Operation  { return operation("$dayOfYear", Field(field)) }
func DayOfMonth(field string) *Operation { return operation("$dayOfMonth", Field(field)) }
func DayOfWeek(field string) *Operation  { return operation("$dayOfWeek", Field(field)) }
func Hour(field string) *Operation       { return operation("$hour", Field(field)) }
func Minute(field string) *Operation     { return operation("$minute", Field(field)) }
func Second(field string) *Operation     { return operation("$second", Field(field)) }

func checkOperands(op string, operands []Expression) (string, []Expression, error) {
	if op == "" || op == Marker {
		return "", nil, fmt.Errorf("%w: operator name is empty", ErrInvalidArgument)
	}
	if len(operands) == 0 {
		return "", nil, fmt.Errorf("%w: %s needs at least one operand", ErrInvalidArgument, op)
	}
	for i, e := range operands {
		if e == nil {
			return "", nil, fmt.Errorf("%w: %s operand %d is nil", ErrInvalidArgument, op, i)
		}
	}
	return withMarker(op), append([]Expression(nil), operands...), nil
}

// operandsValue collapses a single operand to its bare value. Unary operators
// take a value, n-ary operators an array.
func operandsValue(operands []Expression) any {
	if len(operands) == 1 {
		return operands[0].Value()
	}
	a := make(bson.A, 0, len(operands))
	for _, e := range operands {
		a = append(a, e.Value())
	}
	return a
}
