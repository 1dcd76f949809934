// Package mongodriver runs compiled pipelines against a MongoDB database
// using the official Go driver.
package mongodriver

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/dosco/mongopipe/core"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"
)

const defaultConnectRetries = 3

// Driver implements core.Driver for MongoDB.
type Driver struct {
	db     *mongo.Database
	client *mongo.Client
	log    *zap.Logger
}

var _ core.Driver = (*Driver)(nil)

// New wraps an already connected database. The caller keeps ownership of
// the client.
func New(db *mongo.Database, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{db: db, log: log}
}

// Connect opens a client for the configured connection string and pings it
// until the server answers or the retries run out. The registry should be
// the mapper's so that filters and inserts use the same codecs as results.
func Connect(ctx context.Context, conf *core.Config, reg *bson.Registry, log *zap.Logger) (*Driver, error) {
	if log == nil {
		log = zap.NewNop()
	}

	opts := options.Client().ApplyURI(conf.ConnString)
	if reg != nil {
		opts.SetRegistry(reg)
	}
	if conf.ReadPreference != "" {
		rp, err := readPreference(conf.ReadPreference)
		if err != nil {
			return nil, err
		}
		opts.SetReadPreference(rp)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: connect: %w", err)
	}

	attempts := conf.ConnectRetries
	if attempts == 0 {
		attempts = defaultConnectRetries
	}

	err = retry.Do(
		func() error { return client.Ping(ctx, nil) },
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("mongodb not reachable, retrying", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodriver: ping: %w", err)
	}

	log.Info("connected to mongodb", zap.String("database", conf.Database))
	return &Driver{db: client.Database(conf.Database), client: client, log: log}, nil
}

// Database returns the underlying database handle.
func (d *Driver) Database() *mongo.Database { return d.db }

// Close disconnects the client opened by Connect. It does nothing for
// drivers created with New.
func (d *Driver) Close(ctx context.Context) error {
	if d.client == nil {
		return nil
	}
	return d.client.Disconnect(ctx)
}

// Aggregate runs the stages over the collection.
func (d *Driver) Aggregate(ctx context.Context, collection string, stages []bson.D, o core.AggregateOptions) (core.Cursor, error) {
	coll, err := d.collection(collection, o.ReadPreference)
	if err != nil {
		return nil, err
	}

	opts := options.Aggregate().SetAllowDiskUse(o.AllowDiskUse)
	if o.BatchSize > 0 {
		opts.SetBatchSize(o.BatchSize)
	}
	if o.MaxAwaitTime > 0 {
		opts.SetMaxAwaitTime(o.MaxAwaitTime)
	}
	if o.Comment != "" {
		opts.SetComment(o.Comment)
	}
	if o.BypassDocumentValidation {
		opts.SetBypassDocumentValidation(true)
	}

	cur, err := coll.Aggregate(ctx, mongo.Pipeline(stages), opts)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: aggregate: %w", err)
	}
	return &cursor{cur: cur}, nil
}

// Find returns the documents of the collection matching the filter.
func (d *Driver) Find(ctx context.Context, collection string, filter bson.D, o core.FindOptions) (core.Cursor, error) {
	coll, err := d.collection(collection, o.ReadPreference)
	if err != nil {
		return nil, err
	}
	if filter == nil {
		filter = bson.D{}
	}

	opts := options.Find()
	if o.BatchSize > 0 {
		opts.SetBatchSize(o.BatchSize)
	}
	if o.Comment != "" {
		opts.SetComment(o.Comment)
	}

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodriver: find: %w", err)
	}
	return &cursor{cur: cur}, nil
}

// Insert writes the documents in one ordered batch.
func (d *Driver) Insert(ctx context.Context, collection string, docs []bson.Raw) error {
	if len(docs) == 0 {
		return nil
	}

	batch := make([]any, len(docs))
	for i, doc := range docs {
		batch[i] = doc
	}

	res, err := d.db.Collection(collection).InsertMany(ctx, batch)
	if err != nil {
		return fmt.Errorf("mongodriver: insertMany: %w", err)
	}
	d.log.Debug("inserted", zap.String("collection", collection), zap.Int("count", len(res.InsertedIDs)))
	return nil
}

// Drop removes the collection and its documents.
func (d *Driver) Drop(ctx context.Context, collection string) error {
	if err := d.db.Collection(collection).Drop(ctx); err != nil {
		return fmt.Errorf("mongodriver: drop: %w", err)
	}
	return nil
}

func (d *Driver) collection(name, mode string) (*mongo.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("mongodriver: %w: empty collection name", core.ErrInvalidArgument)
	}
	if mode == "" {
		return d.db.Collection(name), nil
	}
	rp, err := readPreference(mode)
	if err != nil {
		return nil, err
	}
	return d.db.Collection(name, options.Collection().SetReadPreference(rp)), nil
}

func readPreference(mode string) (*readpref.ReadPref, error) {
	switch mode {
	case core.ReadPrimary:
		return readpref.Primary(), nil
	case core.ReadPrimaryPreferred:
		return readpref.PrimaryPreferred(), nil
	case core.ReadSecondary:
		return readpref.Secondary(), nil
	case core.ReadSecondaryPreferred:
		return readpref.SecondaryPreferred(), nil
	case core.ReadNearest:
		return readpref.Nearest(), nil
	default:
		return nil, fmt.Errorf("mongodriver: %w: unknown read preference %q", core.ErrInvalidArgument, mode)
	}
}

// cursor adapts *mongo.Cursor to core.Cursor.
type cursor struct {
	cur *mongo.Cursor
}

func (c *cursor) Next(ctx context.Context) bool   { return c.cur.Next(ctx) }
func (c *cursor) Current() bson.Raw               { return c.cur.Current }
func (c *cursor) Err() error                      { return c.cur.Err() }
func (c *cursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }
