package conf

import (
	"fmt"
	"strings"

	"github.com/dosco/mongopipe/core"
	"github.com/dosco/mongopipe/core/expr"
	"go.mongodb.org/mongo-driver/v2/bson"
	"gopkg.in/yaml.v3"
)

// Build compiles the definition into a pipeline over its source collection.
// The out stage is not added; pass Out to core.Out when running it.
func (d *Definition) Build(ds *core.Datastore) (*core.Pipeline, error) {
	p := ds.CreateAggregation(d.Source)

	for i, s := range d.Stages {
		if err := s.apply(p); err != nil {
			return nil, fmt.Errorf("%w: %s: stage %d: %w", ErrBadDefinition, d.Name, i, err)
		}
		if err := p.Err(); err != nil {
			return nil, fmt.Errorf("%s: stage %d: %w", d.Name, i, err)
		}
	}
	return p, nil
}

func (s Stage) apply(p *core.Pipeline) error {
	switch {
	case s.Match != nil:
		doc, err := s.Match.document()
		if err != nil {
			return err
		}
		p.Match(core.FilterDoc(doc))

	case s.Group != nil:
		doc, err := s.Group.document()
		if err != nil {
			return err
		}
		id, groupings, err := groupOf(doc)
		if err != nil {
			return err
		}
		p.GroupBy(id, groupings...)

	case s.Project != nil:
		doc, err := s.Project.document()
		if err != nil {
			return err
		}
		projections, err := projectionsOf(doc)
		if err != nil {
			return err
		}
		p.Project(projections...)

	case s.Sort != nil:
		doc, err := s.Sort.document()
		if err != nil {
			return err
		}
		sorts, err := sortsOf(doc)
		if err != nil {
			return err
		}
		p.Sort(sorts...)

	case s.Skip != nil:
		p.Skip(*s.Skip)

	case s.Limit != nil:
		p.Limit(*s.Limit)

	case s.Unwind != "":
		p.Unwind(s.Unwind)

	case s.Lookup != nil:
		p.Lookup(core.Lookup{
			From:         s.Lookup.From,
			LocalField:   s.Lookup.LocalField,
			ForeignField: s.Lookup.ForeignField,
			As:           s.Lookup.As,
		})

	case s.GeoNear != nil:
		g, err := s.GeoNear.stage()
		if err != nil {
			return err
		}
		p.GeoNear(g)
	}
	return nil
}

func (g *GeoNear) stage() (core.GeoNear, error) {
	gn := core.GeoNear{
		Near:               core.Point(g.Near[0], g.Near[1]),
		DistanceField:      g.DistanceField,
		Limit:              g.Limit,
		Num:                g.Num,
		MaxDistance:        g.MaxDistance,
		Spherical:          g.Spherical,
		DistanceMultiplier: g.DistanceMultiplier,
		IncludeLocs:        g.IncludeLocs,
		UniqueDocs:         g.UniqueDocs,
	}
	if g.Query != nil {
		q, err := g.Query.document()
		if err != nil {
			return gn, err
		}
		gn.Query = core.FilterDoc(q)
	}
	return gn, nil
}

// groupOf splits a group document into its id and accumulator fields.
func groupOf(doc bson.D) (expr.ID, []expr.Accumulation, error) {
	id := expr.NullID()
	var groupings []expr.Accumulation

	for _, e := range doc {
		if e.Key == expr.IDField {
			v, err := groupID(e.Value)
			if err != nil {
				return id, nil, err
			}
			id = v
			continue
		}

		x, err := expr.Parse(e.Value)
		if err != nil {
			return id, nil, fmt.Errorf("%s: %w", e.Key, err)
		}
		acc, ok := x.(*expr.Accumulator)
		if !ok {
			return id, nil, fmt.Errorf("%s: %w: not an accumulator", e.Key, expr.ErrInvalidArgument)
		}
		groupings = append(groupings, expr.Grouping(e.Key, acc))
	}
	return id, groupings, nil
}

func groupID(v any) (expr.ID, error) {
	switch v := v.(type) {
	case nil:
		return expr.NullID(), nil
	case string:
		if !strings.HasPrefix(v, expr.Marker) {
			return expr.ID{}, fmt.Errorf("%w: group _id %q is not a field reference", expr.ErrInvalidArgument, v)
		}
		return expr.ByField(v), nil
	case bson.D:
		if len(v) == 0 {
			return expr.ID{}, fmt.Errorf("%w: empty group _id", expr.ErrInvalidArgument)
		}
		keys := make([]expr.IDKey, 0, len(v))
		for _, e := range v {
			x, err := expr.Parse(e.Value)
			if err != nil {
				return expr.ID{}, fmt.Errorf("_id.%s: %w", e.Key, err)
			}
			keys = append(keys, expr.KeyGrouping(e.Key, x))
		}
		return expr.GroupID(keys[0], keys[1:]...), nil
	default:
		return expr.ID{}, fmt.Errorf("%w: group _id of type %T", expr.ErrInvalidArgument, v)
	}
}

// projectionsOf reads a project document. 1 or true keeps a field, 0 or
// false drops it, "$source" renames, an operator document computes a value
// and any other document nests projections.
func projectionsOf(doc bson.D) ([]*expr.Projection, error) {
	out := make([]*expr.Projection, 0, len(doc))
	for _, e := range doc {
		p, err := projectionOf(e.Key, e.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Key, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func projectionOf(field string, v any) (*expr.Projection, error) {
	switch v := v.(type) {
	case bool:
		if v {
			return expr.Plain(field), nil
		}
		return expr.Plain(field).Suppress(), nil

	case int:
		if v == 0 {
			return expr.Plain(field).Suppress(), nil
		}
		return expr.Plain(field), nil

	case string:
		if !strings.HasPrefix(v, expr.Marker) {
			return nil, fmt.Errorf("%w: %q is not a field reference", expr.ErrInvalidArgument, v)
		}
		return expr.Rename(field, v), nil

	case bson.D:
		if len(v) == 1 && strings.HasPrefix(v[0].Key, expr.Marker) {
			x, err := expr.Parse(v)
			if err != nil {
				return nil, err
			}
			return expr.Compute(field, x), nil
		}
		children, err := projectionsOf(v)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, fmt.Errorf("%w: empty nested projection", expr.ErrInvalidArgument)
		}
		return expr.Nested(field, children[0], children[1:]...), nil

	default:
		return nil, fmt.Errorf("%w: projection value of type %T", expr.ErrInvalidArgument, v)
	}
}

func sortsOf(doc bson.D) ([]expr.Sort, error) {
	sorts := make([]expr.Sort, 0, len(doc))
	for _, e := range doc {
		switch v := e.Value.(type) {
		case int:
			sorts = append(sorts, expr.Sort{Field: e.Key, Direction: v})
		case string:
			switch strings.ToLower(v) {
			case "asc":
				sorts = append(sorts, expr.Ascending(e.Key))
			case "desc":
				sorts = append(sorts, expr.Descending(e.Key))
			default:
				return nil, fmt.Errorf("%s: %w: sort direction %q", e.Key, expr.ErrInvalidArgument, v)
			}
		default:
			return nil, fmt.Errorf("%s: %w: sort direction of type %T", e.Key, expr.ErrInvalidArgument, v)
		}
	}
	return sorts, nil
}

func (d *Doc) document() (bson.D, error) {
	v, err := nodeValue(d.node)
	if err != nil {
		return nil, err
	}
	doc, ok := v.(bson.D)
	if !ok {
		return nil, fmt.Errorf("%w: expected a mapping", expr.ErrInvalidArgument)
	}
	return doc, nil
}

// nodeValue converts a YAML node into wire values: mappings become bson.D
// in file order, sequences bson.A, scalars their natural Go type.
func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return nodeValue(n.Content[0])

	case yaml.AliasNode:
		return nodeValue(n.Alias)

	case yaml.MappingNode:
		d := make(bson.D, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			d = append(d, bson.E{Key: n.Content[i].Value, Value: v})
		}
		return d, nil

	case yaml.SequenceNode:
		a := make(bson.A, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			a = append(a, v)
		}
		return a, nil

	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}
