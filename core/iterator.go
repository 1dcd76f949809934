package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/dosco/mongopipe/cache"
	"go.uber.org/zap"
)

// Iterator is a lazy, single pass sequence of decoded results. Documents
// sharing an _id within one pass decode to the same *T.
//
// Next only blocks while the cursor fetches a batch. An Iterator closes its
// cursor when the results are exhausted; callers that stop early must call
// Stop. After Next fails with anything but ErrIteratorDone the iterator is
// unusable and keeps returning that error.
type Iterator[T any] struct {
	cursor     Cursor
	mapper     Mapper
	cache      cache.EntityCache
	typ        reflect.Type
	collection string
	log        *zap.Logger
	stopped    bool
	err        error
}

func newIterator[T any](cur Cursor, m Mapper, collection string, log *zap.Logger) *Iterator[T] {
	return &Iterator[T]{
		cursor:     cur,
		mapper:     m,
		cache:      m.CreateCache(),
		typ:        reflect.TypeFor[T](),
		collection: collection,
		log:        log,
	}
}

// Collection returns the collection the results are reported under.
func (it *Iterator[T]) Collection() string { return it.collection }

// Cache returns the entity cache scoped to this iterator.
func (it *Iterator[T]) Cache() cache.EntityCache { return it.cache }

// Next returns the next result or ErrIteratorDone once there are no more.
func (it *Iterator[T]) Next(ctx context.Context) (*T, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.stopped {
		return nil, ErrIteratorDone
	}

	if !it.cursor.Next(ctx) {
		err := it.cursor.Err()
		it.Stop()
		if err != nil {
			it.err = fmt.Errorf("core: next: %w", err)
			return nil, it.err
		}
		it.log.Debug("results done", zap.Stringer("cache", it.cache.Stats()))
		return nil, ErrIteratorDone
	}

	raw := it.cursor.Current()
	key, err := cache.KeyOf(it.typ, raw)
	if err != nil {
		it.err = fmt.Errorf("core: %w: %s: %w", ErrInvalidArgument, it.collection, err)
		return nil, it.err
	}

	if v, ok := it.cache.GetEntity(key); ok {
		if e, ok := v.(*T); ok {
			entityCacheHits.Inc()
			return e, nil
		}
	}

	e := new(T)
	if err := it.mapper.Decode(raw, e); err != nil {
		it.err = fmt.Errorf("core: %w: %w", ErrInvalidArgument, err)
		return nil, it.err
	}
	documentsDecoded.Inc()
	it.cache.PutEntity(key, e)
	return e, nil
}

// All drains the iterator and stops it.
func (it *Iterator[T]) All(ctx context.Context) ([]*T, error) {
	defer it.Stop()

	var res []*T
	for {
		e, err := it.Next(ctx)
		if errors.Is(err, ErrIteratorDone) {
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res = append(res, e)
	}
}

// Stop closes the cursor. It is safe to call more than once.
func (it *Iterator[T]) Stop() {
	if it.stopped {
		return
	}
	it.stopped = true
	if err := it.cursor.Close(context.Background()); err != nil {
		it.log.Debug("closing cursor", zap.Error(err))
	}
}
