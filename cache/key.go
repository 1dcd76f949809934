package cache

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/dosco/mongopipe/internal/util"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// IDField is the document field holding the entity identity.
const IDField = "_id"

// ErrNoID is returned by KeyOf for documents without an identity field.
var ErrNoID = errors.New("document has no _id")

// NewKey builds the key of the entity of type t with the given id. Numeric
// ids are normalised, so 1, int64(1) and 1.0 produce the same key.
func NewKey(t reflect.Type, id any) Key {
	return Key{Type: t, ID: idString(util.NormalizeID(id))}
}

// KeyOf reads the identity field of a raw document.
func KeyOf(t reflect.Type, raw bson.Raw) (Key, error) {
	rv, err := raw.LookupErr(IDField)
	if err != nil {
		return Key{}, ErrNoID
	}

	var id any
	switch rv.Type {
	case bson.TypeInt32:
		id = rv.Int32()
	case bson.TypeInt64:
		id = rv.Int64()
	case bson.TypeDouble:
		id = rv.Double()
	case bson.TypeString:
		id = rv.StringValue()
	case bson.TypeObjectID:
		id = rv.ObjectID()
	case bson.TypeNull:
		id = nil
	default:
		// composite ids, e.g. group keys, are keyed by their canonical form
		return Key{Type: t, ID: "raw:" + rv.String()}, nil
	}
	return NewKey(t, id), nil
}

func idString(id any) string {
	switch v := id.(type) {
	case nil:
		return "null"
	case string:
		return "string:" + v
	case bson.ObjectID:
		return "oid:" + v.Hex()
	default:
		return fmt.Sprintf("%T:%v", v, v)
	}
}
