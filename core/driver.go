package core

import (
	"context"
	"time"

	"github.com/dosco/mongopipe/cache"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Driver executes requests against the document store. Connection handling,
// retries and timeouts are its concern; errors are passed through unchanged.
type Driver interface {
	Aggregate(ctx context.Context, collection string, stages []bson.D, opts AggregateOptions) (Cursor, error)
	Find(ctx context.Context, collection string, filter bson.D, opts FindOptions) (Cursor, error)
	Insert(ctx context.Context, collection string, docs []bson.Raw) error
}

// Cursor is a forward only sequence of raw documents. Next may block on
// network I/O while a batch is fetched.
type Cursor interface {
	Next(ctx context.Context) bool
	Current() bson.Raw
	Err() error
	Close(ctx context.Context) error
}

// Mapper converts entities to wire documents and back.
type Mapper interface {
	// Collection returns the collection storing v's type.
	Collection(v any) (string, error)
	Encode(v any) (bson.Raw, string, error)
	Decode(raw bson.Raw, dst any) error
	CreateCache() cache.EntityCache
}

type AggregateOptions struct {
	AllowDiskUse             bool
	BatchSize                int32
	MaxAwaitTime             time.Duration
	Comment                  string
	BypassDocumentValidation bool
	ReadPreference           string
}

type FindOptions struct {
	BatchSize      int32
	Comment        string
	ReadPreference string
}
