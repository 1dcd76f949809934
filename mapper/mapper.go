// Package mapper converts Go entities to wire documents and back, and knows
// which collection stores each entity type.
package mapper

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/dosco/mongopipe/cache"
	"github.com/dosco/mongopipe/codec"
	"github.com/gobuffalo/flect"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrNoCollection is returned when no collection name can be derived for a type.
var ErrNoCollection = errors.New("mapper: no collection for type")

// CollectionNamer lets an entity type choose its collection.
type CollectionNamer interface {
	CollectionName() string
}

// Mapper is safe for concurrent use once built.
type Mapper struct {
	reg          *bson.Registry
	codecOpts    codec.Options
	cacheSize    int
	disableCache bool

	mu    sync.RWMutex
	names map[reflect.Type]string
}

type Option func(*Mapper)

// WithCollection stores entities of v's type in the named collection.
func WithCollection(v any, name string) Option {
	return func(m *Mapper) {
		if t := typeOf(v); t != nil {
			m.names[t] = name
		}
	}
}

// WithCollections registers several overrides keyed by Go type name, as
// found in configuration files. Type names match case insensitively since
// config loaders lower case map keys.
func WithCollections(byTypeName map[string]string, types ...any) Option {
	return func(m *Mapper) {
		for _, v := range types {
			t := typeOf(v)
			if t == nil {
				continue
			}
			for k, name := range byTypeName {
				if strings.EqualFold(k, t.Name()) {
					m.names[t] = name
					break
				}
			}
		}
	}
}

// WithCodec selects the temporal encodings.
func WithCodec(opts codec.Options) Option {
	return func(m *Mapper) { m.codecOpts = opts }
}

// WithCacheSize bounds the entity caches handed out by CreateCache. Zero or
// less means unbounded.
func WithCacheSize(n int) Option {
	return func(m *Mapper) { m.cacheSize = n }
}

// WithoutCache makes CreateCache return caches that never hold anything.
func WithoutCache() Option {
	return func(m *Mapper) { m.disableCache = true }
}

// New returns a mapper backed by a bson registry with the temporal codecs
// installed.
func New(opts ...Option) *Mapper {
	m := &Mapper{names: make(map[reflect.Type]string)}
	for _, opt := range opts {
		opt(m)
	}
	m.reg = bson.NewRegistry()
	codec.Register(m.reg, m.codecOpts)
	return m
}

// Registry returns the bson registry used for encoding and decoding. Pass it
// to the client options so that filters and inserts encode the same way.
func (m *Mapper) Registry() *bson.Registry {
	return m.reg
}

// Collection resolves the collection of v, which may be a value, a pointer
// or a reflect.Type. Registered overrides win, then a CollectionName method,
// then the pluralised snake case type name: SaleRecord becomes sale_records.
func (m *Mapper) Collection(v any) (string, error) {
	t := typeOf(v)
	if t == nil {
		return "", fmt.Errorf("%w: %T", ErrNoCollection, v)
	}

	m.mu.RLock()
	name, ok := m.names[t]
	m.mu.RUnlock()
	if ok {
		return name, nil
	}

	if cn, ok := reflect.New(t).Interface().(CollectionNamer); ok {
		if name := cn.CollectionName(); name != "" {
			return name, nil
		}
	}

	if t.Name() == "" || t.Kind() != reflect.Struct {
		return "", fmt.Errorf("%w: %s", ErrNoCollection, t)
	}
	name = flect.Pluralize(flect.Underscore(t.Name()))

	m.mu.Lock()
	m.names[t] = name
	m.mu.Unlock()
	return name, nil
}

// Encode returns the wire document of v and the collection storing it.
func (m *Mapper) Encode(v any) (bson.Raw, string, error) {
	coll, err := m.Collection(v)
	if err != nil {
		return nil, "", err
	}

	buf := new(bytes.Buffer)
	enc := bson.NewEncoder(bson.NewDocumentWriter(buf))
	enc.SetRegistry(m.reg)
	if err := enc.Encode(v); err != nil {
		return nil, "", fmt.Errorf("mapper: encode %T: %w", v, err)
	}
	return bson.Raw(buf.Bytes()), coll, nil
}

// Decode fills dst, which must be a non nil pointer, from raw.
func (m *Mapper) Decode(raw bson.Raw, dst any) error {
	dec := bson.NewDecoder(bson.NewDocumentReader(bytes.NewReader(raw)))
	dec.SetRegistry(m.reg)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("mapper: decode %T: %w", dst, err)
	}
	return nil
}

// CreateCache returns a fresh entity cache for one result pass.
func (m *Mapper) CreateCache() cache.EntityCache {
	if m.disableCache {
		return cache.NoOp()
	}
	c, err := cache.New(m.cacheSize)
	if err != nil {
		// only reachable with a broken size, fall back to unbounded
		c, _ = cache.New(0)
	}
	return c
}

func typeOf(v any) reflect.Type {
	var t reflect.Type
	switch v := v.(type) {
	case nil:
		return nil
	case reflect.Type:
		t = v
	default:
		t = reflect.TypeOf(v)
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}
