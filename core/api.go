// Package core provides an API to build MongoDB aggregation pipelines from
// composable expressions, run them and read the results back as Go values.
//
//	ds, _ := core.NewDatastore(conf, driver, mapper.New())
//	p := ds.CreateAggregation("sales").
//		Group("item", expr.Grouping("total", expr.Sum(expr.Multiply(expr.Field("price"), expr.Field("quantity")))))
//	it, _ := core.Aggregate[ItemTotal](ctx, p)
//	defer it.Stop()
package core

import (
	"context"
	"fmt"
	"reflect"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Datastore ties the driver, the mapper and the configuration together and
// hands out pipelines. It is safe for concurrent use; the pipelines and
// iterators it returns are not.
type Datastore struct {
	conf   *Config
	driver Driver
	mapper Mapper
	log    *zap.Logger
	tracer trace.Tracer
}

type Option func(*Datastore) error

// OptionSetLogger sets the logger handed to every pipeline and iterator
func OptionSetLogger(log *zap.Logger) Option {
	return func(ds *Datastore) error {
		if log == nil {
			return fmt.Errorf("%w: nil logger", ErrInvalidArgument)
		}
		ds.log = log
		return nil
	}
}

// OptionSetTracer sets the tracer used for execution spans
func OptionSetTracer(tracer trace.Tracer) Option {
	return func(ds *Datastore) error {
		if tracer == nil {
			return fmt.Errorf("%w: nil tracer", ErrInvalidArgument)
		}
		ds.tracer = tracer
		return nil
	}
}

// NewDatastore creates a Datastore. A nil config uses the defaults.
func NewDatastore(conf *Config, driver Driver, mapper Mapper, options ...Option) (*Datastore, error) {
	if driver == nil || mapper == nil {
		return nil, fmt.Errorf("%w: driver and mapper are required", ErrInvalidArgument)
	}
	if conf == nil {
		conf = &Config{}
	}

	ds := &Datastore{
		conf:   conf,
		driver: driver,
		mapper: mapper,
		log:    zap.NewNop(),
		tracer: otel.Tracer("github.com/dosco/mongopipe/core"),
	}
	for _, op := range options {
		if err := op(ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// Mapper returns the mapper used to encode and decode entities.
func (ds *Datastore) Mapper() Mapper { return ds.mapper }

// CreateAggregation starts an empty pipeline over the named collection.
func (ds *Datastore) CreateAggregation(collection string) *Pipeline {
	p := &Pipeline{ds: ds, collection: collection, log: ds.log}
	if collection == "" {
		p.err = fmt.Errorf("core: %w: empty source collection", ErrInvalidArgument)
	}
	return p
}

// CreateAggregationFor starts an empty pipeline over the collection storing
// v's type. v may be a value, a pointer or a reflect.Type.
func (ds *Datastore) CreateAggregationFor(v any) *Pipeline {
	coll, err := ds.mapper.Collection(v)
	if err != nil {
		return &Pipeline{ds: ds, log: ds.log, err: fmt.Errorf("core: %w", err)}
	}
	return ds.CreateAggregation(coll)
}

// Save encodes the entities and inserts them, one batch per collection.
func (ds *Datastore) Save(ctx context.Context, entities ...any) error {
	var order []string
	batches := make(map[string][]bson.Raw)

	for _, e := range entities {
		raw, coll, err := ds.mapper.Encode(e)
		if err != nil {
			return fmt.Errorf("core: save: %w", err)
		}
		if _, ok := batches[coll]; !ok {
			order = append(order, coll)
		}
		batches[coll] = append(batches[coll], raw)
	}

	for _, coll := range order {
		if err := ds.driver.Insert(ctx, coll, batches[coll]); err != nil {
			return fmt.Errorf("core: save %s: %w", coll, err)
		}
		ds.log.Debug("saved", zap.String("collection", coll), zap.Int("count", len(batches[coll])))
	}
	return nil
}

// Aggregate runs the pipeline and returns an iterator decoding the results
// into T. Each call sends the same stages and gets a fresh entity cache.
func Aggregate[T any](ctx context.Context, p *Pipeline, opts ...ExecOption) (*Iterator[T], error) {
	if p.err != nil {
		return nil, p.err
	}
	o := p.ds.execOptions(opts)
	if o.collection == "" {
		o.collection = resultCollection[T](p.ds, p.collection)
	}
	return aggregate[T](ctx, p, "aggregate", o)
}

// Out appends a $out stage writing the results to collection, runs the
// pipeline and returns an iterator over the written collection. An empty
// collection name uses the collection of T. No stage can be added after Out.
func Out[T any](ctx context.Context, p *Pipeline, collection string, opts ...ExecOption) (*Iterator[T], error) {
	if p.err != nil {
		return nil, p.err
	}
	if collection == "" {
		coll, err := p.ds.mapper.Collection(reflect.TypeFor[T]())
		if err != nil {
			return nil, fmt.Errorf("core: out: %w", err)
		}
		collection = coll
	}
	if err := p.out(collection); err != nil {
		return nil, err
	}

	o := p.ds.execOptions(opts)
	o.collection = collection

	it, err := aggregate[T](ctx, p, "out", o)
	if err != nil {
		return nil, err
	}
	// $out yields no documents of its own
	it.Stop()

	return find[T](ctx, p.ds, collection, bson.D{}, o)
}

// Find returns an iterator over the documents of T's collection matching
// the filter. WithCollection reads another collection.
func Find[T any](ctx context.Context, ds *Datastore, f Filterer, opts ...ExecOption) (*Iterator[T], error) {
	filter := bson.D{}
	if f != nil {
		d, err := f.Document()
		if err != nil {
			return nil, fmt.Errorf("core: find: %w", err)
		}
		filter = d
	}

	o := ds.execOptions(opts)
	if o.collection == "" {
		coll, err := ds.mapper.Collection(reflect.TypeFor[T]())
		if err != nil {
			return nil, fmt.Errorf("core: find: %w", err)
		}
		o.collection = coll
	}
	return find[T](ctx, ds, o.collection, filter, o)
}

// resultCollection names the collection results are reported under: the
// collection of T when it has one, the source collection otherwise.
func resultCollection[T any](ds *Datastore, source string) string {
	if coll, err := ds.mapper.Collection(reflect.TypeFor[T]()); err == nil {
		return coll
	}
	return source
}
