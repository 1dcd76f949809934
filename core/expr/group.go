package expr

import (
	"fmt"

	"github.com/dosco/mongopipe/internal/util"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// IDField is the key every group document is identified by.
const IDField = "_id"

// Accumulation names the output of one accumulator in a group.
type Accumulation struct {
	Name string
	Acc  *Accumulator
}

// Grouping pairs an output name with an accumulator.
func Grouping(name string, acc *Accumulator) Accumulation {
	return Accumulation{Name: name, Acc: acc}
}

// IDKey is one named part of a composite group id.
type IDKey struct {
	Name string
	Expr Expression
}

// KeyGrouping names an expression inside a composite group id.
func KeyGrouping(name string, e Expression) IDKey {
	return IDKey{Name: name, Expr: e}
}

// ID is the group key: a single field, a composite of named expressions or
// null, which folds every document into one group.
type ID struct {
	field string
	keys  []IDKey
	null  bool
}

// ByField groups on one field.
func ByField(name string) ID {
	return ID{field: name}
}

// GroupID groups on a composite key.
func GroupID(k IDKey, more ...IDKey) ID {
	keys := make([]IDKey, 0, len(more)+1)
	keys = append(keys, k)
	keys = append(keys, more...)
	return ID{keys: keys}
}

// NullID puts every input document into the same group.
func NullID() ID {
	return ID{null: true}
}

func (id ID) value() (any, error) {
	switch {
	case id.null:
		return nil, nil

	case len(id.keys) != 0:
		var d bson.D
		for _, k := range id.keys {
			if k.Name == "" {
				return nil, fmt.Errorf("%w: group id key name is empty", ErrInvalidArgument)
			}
			if err := Validate(k.Expr); err != nil {
				return nil, fmt.Errorf("group id %s: %w", k.Name, err)
			}
			d = util.Put(d, k.Name, k.Expr.Value())
		}
		return d, nil

	case id.field != "" && id.field != Marker:
		return withMarker(id.field), nil

	default:
		return nil, fmt.Errorf("%w: group id is empty", ErrInvalidArgument)
	}
}

// Group is the payload of a group stage.
type Group struct {
	id        ID
	groupings []Accumulation
}

// NewGroup builds a group. Groupings sharing an output name overwrite each
// other, the last one wins.
func NewGroup(id ID, groupings ...Accumulation) Group {
	return Group{id: id, groupings: append([]Accumulation(nil), groupings...)}
}

// Document renders {_id: ..., name: {$acc: ...}, ...}.
func (g Group) Document() (bson.D, error) {
	id, err := g.id.value()
	if err != nil {
		return nil, err
	}
	d := bson.D{{Key: IDField, Value: id}}

	for _, a := range g.groupings {
		if a.Name == "" {
			return nil, fmt.Errorf("%w: grouping name is empty", ErrInvalidArgument)
		}
		if a.Acc == nil {
			return nil, fmt.Errorf("%w: grouping %s has no accumulator", ErrInvalidArgument, a.Name)
		}
		if err := Validate(a.Acc); err != nil {
			return nil, fmt.Errorf("grouping %s: %w", a.Name, err)
		}
		d = util.Put(d, a.Name, a.Acc.Value())
	}
	return d, nil
}
