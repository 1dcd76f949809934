package expr

import (
	"fmt"

	"github.com/dosco/mongopipe/internal/util"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type projKind int

const (
	projPlain projKind = iota
	projRename
	projNested
	projArgs
	projComputed
	projIncludes
	projExcludes
)

// Projection describes how one field, or a set of fields, appears in the
// output of a project stage. Projections are immutable; Suppress returns a copy.
type Projection struct {
	kind       projKind
	target     string
	source     string
	children   []*Projection
	args       []any
	expr       Expression
	fields     []string
	suppressed bool
}

// Plain includes a single field as is: {field: 1}.
func Plain(field string) *Projection {
	return &Projection{kind: projPlain, target: field}
}

// Rename projects the source field under a new name: {field: "$source"}.
func Rename(field, source string) *Projection {
	return &Projection{kind: projRename, target: field, source: withMarker(source)}
}

// Compute sets field to the result of an expression.
func Compute(field string, e Expression) *Projection {
	return &Projection{kind: projComputed, target: field, expr: e}
}

// Nested groups projections under a sub document.
func Nested(field string, p *Projection, more ...*Projection) *Projection {
	children := make([]*Projection, 0, len(more)+1)
	children = append(children, p)
	children = append(children, more...)
	return &Projection{kind: projNested, target: field, children: children}
}

// Operator builds the variadic expression form {op: args}. Arguments may be
// projections, expressions or literal values.
func Operator(op string, args ...any) *Projection {
	return &Projection{kind: projArgs, target: withMarker(op), args: append([]any(nil), args...)}
}

// List is an argument list without a target. It renders as a bare array, or
// as the single argument when there is only one.
func List(args ...any) *Projection {
	return &Projection{kind: projArgs, args: append([]any(nil), args...)}
}

func ProjectAdd(args ...any) *Projection      { return Operator("$add", args...) }
func ProjectSubtract(args ...any) *Projection { return Operator("$subtract", args...) }
func ProjectMultiply(args ...any) *Projection { return Operator("$multiply", args...) }
func ProjectDivide(args ...any) *Projection   { return Operator("$divide", args...) }
func ProjectMod(args ...any) *Projection      { return Operator("$mod", args...) }

// NewIncludes returns a projection that keeps every named field.
func NewIncludes(fields ...string) (*Projection, error) {
	return fieldSet(projIncludes, fields)
}

// NewExcludes returns a projection that drops every named field.
func NewExcludes(fields ...string) (*Projection, error) {
	return fieldSet(projExcludes, fields)
}

// Include is NewIncludes with at least one field guaranteed by the signature.
func Include(field string, fields ...string) *Projection {
	return &Projection{kind: projIncludes, fields: append([]string{field}, fields...)}
}

// Exclude is NewExcludes with at least one field guaranteed by the signature.
func Exclude(field string, fields ...string) *Projection {
	return &Projection{kind: projExcludes, fields: append([]string{field}, fields...)}
}

func fieldSet(kind projKind, fields []string) (*Projection, error) {
	p := &Projection{kind: kind, fields: append([]string(nil), fields...)}
	if err := p.checkFields(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Projection) checkFields() error {
	if len(p.fields) == 0 {
		return fmt.Errorf("%w: empty field set", ErrInvalidArgument)
	}
	for _, f := range p.fields {
		if f == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidArgument)
		}
	}
	return nil
}

// Suppress returns a copy of a plain projection that excludes the field.
func (p *Projection) Suppress() *Projection {
	c := *p
	c.suppressed = true
	return &c
}

// Target returns the output field name, empty for target-less argument lists
// and field sets.
func (p *Projection) Target() string { return p.target }

// Suppressed reports whether the projection excludes its field.
func (p *Projection) Suppressed() bool { return p.suppressed }

func (p *Projection) isBare() bool {
	return p.kind == projPlain
}

// Document renders the projection as a document that can be merged into a
// project stage. Target-less argument lists have no document form.
func (p *Projection) Document() (bson.D, error) {
	v, err := p.Value()
	if err != nil {
		return nil, err
	}
	d, ok := v.(bson.D)
	if !ok {
		return nil, fmt.Errorf("%w: projection without target is not a document", ErrInvalidArgument)
	}
	return d, nil
}

// Value renders the projection to its wire form.
func (p *Projection) Value() (any, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil projection", ErrInvalidArgument)
	}
	if p.kind != projArgs && p.kind != projIncludes && p.kind != projExcludes && p.target == "" {
		return nil, fmt.Errorf("%w: projection target is empty", ErrInvalidArgument)
	}

	switch p.kind {
	case projNested:
		var merged bson.D
		for _, c := range p.children {
			d, err := c.Document()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.target, err)
			}
			merged = util.PutAll(merged, d)
		}
		if merged == nil {
			merged = bson.D{}
		}
		return bson.D{{Key: p.target, Value: merged}}, nil

	case projRename:
		if p.source == Marker {
			return nil, fmt.Errorf("%w: %s: rename source is empty", ErrInvalidArgument, p.target)
		}
		return bson.D{{Key: p.target, Value: p.source}}, nil

	case projComputed:
		if err := Validate(p.expr); err != nil {
			return nil, fmt.Errorf("%s: %w", p.target, err)
		}
		return bson.D{{Key: p.target, Value: p.expr.Value()}}, nil

	case projArgs:
		args, err := argsValue(p.args)
		if err != nil {
			return nil, err
		}
		if p.target == "" {
			return args, nil
		}
		return bson.D{{Key: p.target, Value: args}}, nil

	case projIncludes, projExcludes:
		if err := p.checkFields(); err != nil {
			return nil, err
		}
		flag := 1
		if p.kind == projExcludes {
			flag = 0
		}
		var d bson.D
		for _, f := range p.fields {
			d = util.Put(d, f, flag)
		}
		return d, nil

	default:
		if p.suppressed {
			return bson.D{{Key: p.target, Value: 0}}, nil
		}
		return bson.D{{Key: p.target, Value: 1}}, nil
	}
}

// argsValue renders an argument list. Plain projections stand for field
// references, a single argument collapses to its bare value.
func argsValue(args []any) (any, error) {
	out := make(bson.A, 0, len(args))
	for _, a := range args {
		switch v := a.(type) {
		case *Projection:
			if v == nil {
				return nil, fmt.Errorf("%w: nil projection argument", ErrInvalidArgument)
			}
			if v.isBare() {
				if v.target == "" {
					return nil, fmt.Errorf("%w: projection target is empty", ErrInvalidArgument)
				}
				out = append(out, withMarker(v.target))
				continue
			}
			val, err := v.Value()
			if err != nil {
				return nil, err
			}
			out = append(out, val)
		case Expression:
			if err := Validate(v); err != nil {
				return nil, err
			}
			out = append(out, v.Value())
		default:
			out = append(out, v)
		}
	}
	if len(out) == 1 {
		return out[0], nil
	}
	return out, nil
}
