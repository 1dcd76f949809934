package core

import (
	"fmt"
	"strings"

	"github.com/dosco/mongopipe/core/expr"
	"github.com/dosco/mongopipe/internal/util"
	"github.com/mitchellh/hashstructure/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// Pipeline builds an aggregation over one source collection. Stages are
// only ever appended. Builder methods return the pipeline for chaining; the
// first invalid argument is recorded, turns later calls into no-ops and is
// returned by Err, Aggregate and Out.
//
// A Pipeline is not safe for concurrent use. Executing it does not change
// it, so it can be executed again.
type Pipeline struct {
	ds         *Datastore
	collection string
	stages     []Stage
	firstStage bool
	closed     bool
	err        error
	log        *zap.Logger
}

// Collection returns the source collection.
func (p *Pipeline) Collection() string { return p.collection }

// Err returns the first error recorded while building the pipeline.
func (p *Pipeline) Err() error { return p.err }

// FirstStage reports whether the most recent project stage was the first
// stage of the pipeline.
func (p *Pipeline) FirstStage() bool { return p.firstStage }

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// Stages returns the compiled stage documents in order.
func (p *Pipeline) Stages() []bson.D {
	docs := make([]bson.D, 0, len(p.stages))
	for _, s := range p.stages {
		docs = append(docs, s.Document())
	}
	return docs
}

// String returns the stages as relaxed extended JSON.
func (p *Pipeline) String() string {
	return StagesJSON(p.Stages())
}

// Fingerprint returns a stable hash of the compiled stages, identical for
// pipelines that send the same request.
func (p *Pipeline) Fingerprint() (uint64, error) {
	return hashstructure.Hash(p.Stages(), hashstructure.FormatV2, nil)
}

func (p *Pipeline) add(kind StageKind, body any, err error) *Pipeline {
	switch {
	case p.err != nil:
		return p
	case p.closed:
		p.err = fmt.Errorf("core: %s: %w", kind, ErrPipelineClosed)
		return p
	case err != nil:
		p.err = fmt.Errorf("core: %s: %w", kind, err)
		return p
	}
	p.stages = append(p.stages, Stage{Kind: kind, Body: body})
	return p
}

// Match filters the documents, eg. Match(NewQuery().Filter("price >", 10)).
func (p *Pipeline) Match(f Filterer) *Pipeline {
	if f == nil {
		return p.add(StageMatch, nil, fmt.Errorf("%w: nil filter", ErrInvalidArgument))
	}
	doc, err := f.Document()
	return p.add(StageMatch, doc, err)
}

// Group groups on a single field: {$group: {_id: "$field", ...}}.
func (p *Pipeline) Group(field string, groupings ...expr.Accumulation) *Pipeline {
	return p.GroupBy(expr.ByField(field), groupings...)
}

// GroupBy groups on any group id, see expr.GroupID and expr.NullID.
func (p *Pipeline) GroupBy(id expr.ID, groupings ...expr.Accumulation) *Pipeline {
	doc, err := expr.NewGroup(id, groupings...).Document()
	return p.add(StageGroup, doc, err)
}

// Project reshapes the documents. Projections naming the same field
// overwrite each other, the last one wins.
func (p *Pipeline) Project(projections ...*expr.Projection) *Pipeline {
	if p.err != nil || p.closed {
		return p.add(StageProject, nil, nil)
	}
	if len(projections) == 0 {
		return p.add(StageProject, nil, fmt.Errorf("%w: no projections", ErrInvalidArgument))
	}

	var doc bson.D
	for _, pr := range projections {
		d, err := pr.Document()
		if err != nil {
			return p.add(StageProject, nil, err)
		}
		doc = util.PutAll(doc, d)
	}

	p.firstStage = len(p.stages) == 0
	return p.add(StageProject, doc, nil)
}

// Sort orders the documents by the given keys in turn.
func (p *Pipeline) Sort(sorts ...expr.Sort) *Pipeline {
	doc, err := expr.SortDocument(sorts...)
	return p.add(StageSort, doc, err)
}

// Limit passes at most n documents on.
func (p *Pipeline) Limit(n int64) *Pipeline {
	if n < 0 {
		return p.add(StageLimit, nil, fmt.Errorf("%w: negative limit %d", ErrInvalidArgument, n))
	}
	return p.add(StageLimit, n, nil)
}

// Skip drops the first n documents.
func (p *Pipeline) Skip(n int64) *Pipeline {
	if n < 0 {
		return p.add(StageSkip, nil, fmt.Errorf("%w: negative skip %d", ErrInvalidArgument, n))
	}
	return p.add(StageSkip, n, nil)
}

// Unwind outputs one document per element of the array field.
func (p *Pipeline) Unwind(field string) *Pipeline {
	if field == "" || field == expr.Marker {
		return p.add(StageUnwind, nil, fmt.Errorf("%w: empty unwind field", ErrInvalidArgument))
	}
	return p.add(StageUnwind, expr.Field(field).Value(), nil)
}

// Lookup performs a left outer join with another collection.
func (p *Pipeline) Lookup(l Lookup) *Pipeline {
	doc, err := l.document()
	return p.add(StageLookup, doc, err)
}

// GeoNear orders documents by distance from a point. It has to be the first
// stage of a pipeline; the server enforces that.
func (p *Pipeline) GeoNear(g GeoNear) *Pipeline {
	doc, err := g.document()
	return p.add(StageGeoNear, doc, err)
}

// out appends the terminal $out stage and closes the pipeline.
func (p *Pipeline) out(collection string) error {
	if collection == "" {
		p.add(StageOut, nil, fmt.Errorf("%w: empty $out collection", ErrInvalidArgument))
		return p.err
	}
	p.add(StageOut, collection, nil)
	if p.err != nil {
		return p.err
	}
	p.closed = true
	return nil
}

// StagesJSON renders stage documents as a relaxed extended JSON array.
func StagesJSON(stages []bson.D) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, s := range stages {
		if i != 0 {
			b.WriteByte(',')
		}
		js, err := bson.MarshalExtJSON(s, false, false)
		if err != nil {
			fmt.Fprintf(&b, "%q", err.Error())
			continue
		}
		b.Write(js)
	}
	b.WriteByte(']')
	return b.String()
}
