package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/goleak"
)

var errCursor = errors.New("cursor failed")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type aggregateCall struct {
	collection string
	stages     []bson.D
	opts       AggregateOptions
}

type findCall struct {
	collection string
	filter     bson.D
	opts       FindOptions
}

// fakeDriver replays canned documents and records what it was asked to run.
type fakeDriver struct {
	docs    []bson.Raw
	err     error
	cursors []*fakeCursor

	aggregates []aggregateCall
	finds      []findCall
	inserts    map[string][]bson.Raw
}

func (d *fakeDriver) Aggregate(_ context.Context, collection string, stages []bson.D, opts AggregateOptions) (Cursor, error) {
	d.aggregates = append(d.aggregates, aggregateCall{collection, stages, opts})
	return d.cursor()
}

func (d *fakeDriver) Find(_ context.Context, collection string, filter bson.D, opts FindOptions) (Cursor, error) {
	d.finds = append(d.finds, findCall{collection, filter, opts})
	return d.cursor()
}

func (d *fakeDriver) Insert(_ context.Context, collection string, docs []bson.Raw) error {
	if d.err != nil {
		return d.err
	}
	if d.inserts == nil {
		d.inserts = make(map[string][]bson.Raw)
	}
	d.inserts[collection] = append(d.inserts[collection], docs...)
	return nil
}

func (d *fakeDriver) cursor() (Cursor, error) {
	if d.err != nil {
		return nil, d.err
	}
	c := &fakeCursor{docs: d.docs, pos: -1}
	d.cursors = append(d.cursors, c)
	return c, nil
}

type fakeCursor struct {
	docs   []bson.Raw
	pos    int
	err    error
	failAt int
	closed int
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.err != nil {
		return false
	}
	if c.failAt > 0 && c.pos+1 == c.failAt {
		c.err = errCursor
		return false
	}
	c.pos++
	return c.pos < len(c.docs)
}

func (c *fakeCursor) Current() bson.Raw { return c.docs[c.pos] }
func (c *fakeCursor) Err() error        { return c.err }

func (c *fakeCursor) Close(context.Context) error {
	c.closed++
	return nil
}

func rawDocs(t *testing.T, docs ...bson.D) []bson.Raw {
	t.Helper()
	out := make([]bson.Raw, 0, len(docs))
	for _, d := range docs {
		b, err := bson.Marshal(d)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}
