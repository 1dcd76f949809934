package mongodriver

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

const defaultSampleSize = 100

// Field describes a top level field found in a collection, either declared
// by its $jsonSchema validator or seen in sampled documents.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Array    bool   `json:"array"`

	// Seen counts the sampled documents holding the field.
	Seen int `json:"seen"`
}

// Collections lists the collections of the database, system ones excluded.
func (d *Driver) Collections(ctx context.Context) ([]string, error) {
	names, err := d.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("mongodriver: list collections: %w", err)
	}
	names = slices.DeleteFunc(names, func(n string) bool {
		return strings.HasPrefix(n, "system.")
	})
	slices.Sort(names)
	return names, nil
}

// Describe discovers the fields of a collection. Validator declarations win
// over sampled types. Fields are sorted by name.
func (d *Driver) Describe(ctx context.Context, collection string, sampleSize int) ([]Field, error) {
	if sampleSize <= 0 {
		sampleSize = defaultSampleSize
	}

	declared, err := d.validatorFields(ctx, collection)
	if err != nil {
		return nil, err
	}
	sampled, err := d.sampleFields(ctx, collection, sampleSize)
	if err != nil {
		return nil, err
	}

	fields := make([]Field, 0, len(declared)+len(sampled))
	for name, f := range declared {
		if s, ok := sampled[name]; ok {
			f.Seen = s.Seen
		}
		fields = append(fields, f)
	}
	for name, f := range sampled {
		if _, ok := declared[name]; !ok {
			fields = append(fields, f)
		}
	}
	slices.SortFunc(fields, func(a, b Field) int { return strings.Compare(a.Name, b.Name) })
	return fields, nil
}

func (d *Driver) validatorFields(ctx context.Context, collection string) (map[string]Field, error) {
	fields := make(map[string]Field)

	cur, err := d.db.ListCollections(ctx, bson.D{{Key: "name", Value: collection}})
	if err != nil {
		return nil, fmt.Errorf("mongodriver: list collections: %w", err)
	}
	defer cur.Close(ctx) //nolint:errcheck

	if !cur.Next(ctx) {
		return fields, cur.Err()
	}

	var info struct {
		Options struct {
			Validator struct {
				JSONSchema struct {
					Properties map[string]struct {
						BSONType any `bson:"bsonType"`
					} `bson:"properties"`
					Required []string `bson:"required"`
				} `bson:"$jsonSchema"`
			} `bson:"validator"`
		} `bson:"options"`
	}
	if err := cur.Decode(&info); err != nil {
		return nil, fmt.Errorf("mongodriver: collection info: %w", err)
	}

	schema := info.Options.Validator.JSONSchema
	for name, prop := range schema.Properties {
		t := declaredType(prop.BSONType)
		fields[name] = Field{
			Name:     name,
			Type:     t,
			Required: slices.Contains(schema.Required, name),
			Array:    t == "array",
		}
	}
	return fields, nil
}

func (d *Driver) sampleFields(ctx context.Context, collection string, size int) (map[string]Field, error) {
	fields := make(map[string]Field)

	stages := bson.A{bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: size}}}}}
	cur, err := d.db.Collection(collection).Aggregate(ctx, stages)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: sample: %w", err)
	}
	defer cur.Close(ctx) //nolint:errcheck

	for cur.Next(ctx) {
		elems, err := cur.Current.Elements()
		if err != nil {
			return nil, fmt.Errorf("mongodriver: sample: %w", err)
		}
		for _, e := range elems {
			name := e.Key()
			f, ok := fields[name]
			if !ok {
				t := valueType(e.Value())
				f = Field{Name: name, Type: t, Required: name == "_id", Array: t == "array"}
			}
			f.Seen++
			fields[name] = f
		}
	}
	return fields, cur.Err()
}

// declaredType reads a bsonType declaration, a name or a list of names.
func declaredType(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bson.A:
		if len(t) != 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return "mixed"
}

// valueType names the type of a raw value the way $jsonSchema does. GeoJSON
// sub documents are reported as geojson.
func valueType(v bson.RawValue) string {
	switch v.Type {
	case bson.TypeObjectID:
		return "objectId"
	case bson.TypeString:
		return "string"
	case bson.TypeInt32:
		return "int"
	case bson.TypeInt64:
		return "long"
	case bson.TypeDouble:
		return "double"
	case bson.TypeDecimal128:
		return "decimal"
	case bson.TypeBoolean:
		return "bool"
	case bson.TypeDateTime:
		return "date"
	case bson.TypeTimestamp:
		return "timestamp"
	case bson.TypeArray:
		return "array"
	case bson.TypeBinary:
		return "binData"
	case bson.TypeNull:
		return "null"
	case bson.TypeEmbeddedDocument:
		if isGeoJSON(v.Document()) {
			return "geojson"
		}
		return "object"
	default:
		return v.Type.String()
	}
}

func isGeoJSON(doc bson.Raw) bool {
	t, ok := doc.Lookup("type").StringValueOK()
	if !ok {
		return false
	}
	if _, err := doc.LookupErr("coordinates"); err != nil {
		return false
	}
	switch t {
	case "Point", "LineString", "Polygon", "MultiPoint", "MultiLineString", "MultiPolygon":
		return true
	}
	return false
}
