package core

import (
	"fmt"

	"github.com/dosco/mongopipe/internal/util"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type StageKind int

const (
	StageMatch StageKind = iota
	StageGroup
	StageProject
	StageLimit
	StageSkip
	StageSort
	StageUnwind
	StageLookup
	StageGeoNear
	StageOut
)

var stageOperators = [...]string{
	StageMatch:   "$match",
	StageGroup:   "$group",
	StageProject: "$project",
	StageLimit:   "$limit",
	StageSkip:    "$skip",
	StageSort:    "$sort",
	StageUnwind:  "$unwind",
	StageLookup:  "$lookup",
	StageGeoNear: "$geoNear",
	StageOut:     "$out",
}

// Operator returns the key the stage document is stored under.
func (k StageKind) Operator() string {
	if int(k) < 0 || int(k) >= len(stageOperators) {
		return fmt.Sprintf("StageKind(%d)", int(k))
	}
	return stageOperators[k]
}

func (k StageKind) String() string { return k.Operator() }

// Stage is one compiled pipeline step.
type Stage struct {
	Kind StageKind
	Body any
}

// Document returns the single entry stage document, eg. {$limit: 10}.
func (s Stage) Document() bson.D {
	return bson.D{{Key: s.Kind.Operator(), Value: s.Body}}
}

// GeoNear describes a $geoNear stage. Only Near is required; every other
// field is left out of the stage unless set.
type GeoNear struct {
	// Near is a GeoJSON point or a legacy [lng, lat] pair.
	Near any

	DistanceField string

	// Limit and Num both cap the number of documents returned. Num is the
	// legacy spelling.
	Limit *int64
	Num   *int64

	MaxDistance *float64

	// Query restricts the candidate documents.
	Query Filterer

	Spherical          *bool
	DistanceMultiplier *float64
	IncludeLocs        string
	UniqueDocs         *bool
}

// Point returns a GeoJSON point.
func Point(lng, lat float64) bson.D {
	return bson.D{
		{Key: "type", Value: "Point"},
		{Key: "coordinates", Value: bson.A{lng, lat}},
	}
}

// Ptr returns a pointer to v, for the optional GeoNear fields.
func Ptr[T any](v T) *T {
	return &v
}

func (g GeoNear) document() (bson.D, error) {
	if util.IsNil(g.Near) {
		return nil, fmt.Errorf("%w: $geoNear needs a near point", ErrInvalidArgument)
	}

	d := bson.D{{Key: "near", Value: g.Near}}
	if g.DistanceField != "" {
		d = append(d, bson.E{Key: "distanceField", Value: g.DistanceField})
	}
	d = putOpt(d, "limit", g.Limit)
	d = putOpt(d, "num", g.Num)
	d = putOpt(d, "maxDistance", g.MaxDistance)

	if g.Query != nil {
		q, err := g.Query.Document()
		if err != nil {
			return nil, fmt.Errorf("$geoNear query: %w", err)
		}
		d = append(d, bson.E{Key: "query", Value: q})
	}

	d = putOpt(d, "spherical", g.Spherical)
	d = putOpt(d, "distanceMultiplier", g.DistanceMultiplier)
	if g.IncludeLocs != "" {
		d = append(d, bson.E{Key: "includeLocs", Value: g.IncludeLocs})
	}
	d = putOpt(d, "uniqueDocs", g.UniqueDocs)
	return d, nil
}

func putOpt[T any](d bson.D, key string, v *T) bson.D {
	if v == nil {
		return d
	}
	return append(d, bson.E{Key: key, Value: *v})
}

// Lookup joins documents of another collection of the same database.
type Lookup struct {
	From         string
	LocalField   string
	ForeignField string
	As           string
}

func (l Lookup) document() (bson.D, error) {
	if l.From == "" || l.LocalField == "" || l.ForeignField == "" || l.As == "" {
		return nil, fmt.Errorf("%w: $lookup needs from, localField, foreignField and as", ErrInvalidArgument)
	}
	return bson.D{
		{Key: "from", Value: l.From},
		{Key: "localField", Value: l.LocalField},
		{Key: "foreignField", Value: l.ForeignField},
		{Key: "as", Value: l.As},
	}, nil
}
