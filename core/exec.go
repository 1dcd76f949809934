package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func aggregate[T any](ctx context.Context, p *Pipeline, op string, o execOptions) (*Iterator[T], error) {
	ds := p.ds
	stages := p.Stages()
	id := xid.New().String()

	ctx, span := ds.tracer.Start(ctx, "mongopipe."+op, trace.WithAttributes(
		attribute.String("mongopipe.exec_id", id),
		attribute.String("db.collection.name", p.collection),
		attribute.Int("mongopipe.stages", len(stages)),
	))
	defer span.End()

	log := p.log.With(zap.String("exec_id", id), zap.String("collection", p.collection))
	if ce := log.Check(zap.DebugLevel, op); ce != nil {
		fields := []zap.Field{zap.String("stages", StagesJSON(stages))}
		if fp, err := p.Fingerprint(); err == nil {
			fields = append(fields, zap.Uint64("fingerprint", fp))
			span.SetAttributes(attribute.String("mongopipe.fingerprint", fmt.Sprintf("%016x", fp)))
		}
		ce.Write(fields...)
	}

	start := time.Now()
	cur, err := ds.driver.Aggregate(ctx, p.collection, stages, o.AggregateOptions)
	executeDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	pipelinesExecuted.WithLabelValues(op).Inc()

	if err != nil {
		executionErrors.WithLabelValues(op).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(op+" failed", zap.Error(err))
		return nil, fmt.Errorf("core: %s %s: %w", op, p.collection, err)
	}
	return newIterator[T](cur, ds.mapper, o.collection, log), nil
}

func find[T any](ctx context.Context, ds *Datastore, collection string, filter bson.D, o execOptions) (*Iterator[T], error) {
	id := xid.New().String()

	ctx, span := ds.tracer.Start(ctx, "mongopipe.find", trace.WithAttributes(
		attribute.String("mongopipe.exec_id", id),
		attribute.String("db.collection.name", collection),
	))
	defer span.End()

	log := ds.log.With(zap.String("exec_id", id), zap.String("collection", collection))
	if ce := log.Check(zap.DebugLevel, "find"); ce != nil {
		ce.Write(zap.String("filter", StagesJSON([]bson.D{filter})))
	}

	start := time.Now()
	cur, err := ds.driver.Find(ctx, collection, filter, o.findOptions())
	executeDuration.WithLabelValues("find").Observe(time.Since(start).Seconds())
	pipelinesExecuted.WithLabelValues("find").Inc()

	if err != nil {
		executionErrors.WithLabelValues("find").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("find failed", zap.Error(err))
		return nil, fmt.Errorf("core: find %s: %w", collection, err)
	}
	return newIterator[T](cur, ds.mapper, collection, log), nil
}
