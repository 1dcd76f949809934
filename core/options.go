package core

import (
	"time"
)

type execOptions struct {
	AggregateOptions
	collection string
}

// ExecOption tunes a single Aggregate, Out or Find call. Unset values fall
// back to the Datastore configuration.
type ExecOption func(*execOptions)

// WithAllowDiskUse lets stages spill to temporary files.
func WithAllowDiskUse(v bool) ExecOption {
	return func(o *execOptions) { o.AllowDiskUse = v }
}

// WithBatchSize sets the number of documents per cursor batch.
func WithBatchSize(n int32) ExecOption {
	return func(o *execOptions) { o.BatchSize = n }
}

// WithMaxAwaitTime bounds how long the server waits for new documents on a
// tailable cursor.
func WithMaxAwaitTime(d time.Duration) ExecOption {
	return func(o *execOptions) { o.MaxAwaitTime = d }
}

// WithComment tags the request in the server logs and profiler.
func WithComment(c string) ExecOption {
	return func(o *execOptions) { o.Comment = c }
}

// WithBypassDocumentValidation lets $out write documents that fail the
// target collection validator.
func WithBypassDocumentValidation(v bool) ExecOption {
	return func(o *execOptions) { o.BypassDocumentValidation = v }
}

// WithReadPreference selects the members a request may read from, eg.
// ReadSecondaryPreferred.
func WithReadPreference(mode string) ExecOption {
	return func(o *execOptions) { o.ReadPreference = mode }
}

// WithCollection names the collection the results belong to. It is the
// collection Find reads and the name reported with decoded results; it
// defaults to the collection of the result type.
func WithCollection(name string) ExecOption {
	return func(o *execOptions) { o.collection = name }
}

func (ds *Datastore) execOptions(opts []ExecOption) execOptions {
	o := execOptions{AggregateOptions: AggregateOptions{
		AllowDiskUse:   ds.conf.AllowDiskUse,
		BatchSize:      ds.conf.BatchSize,
		ReadPreference: ds.conf.ReadPreference,
	}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o execOptions) findOptions() FindOptions {
	return FindOptions{
		BatchSize:      o.BatchSize,
		Comment:        o.Comment,
		ReadPreference: o.ReadPreference,
	}
}
