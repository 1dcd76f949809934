package mapper

import (
	"reflect"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/dosco/mongopipe/cache"
	"github.com/dosco/mongopipe/codec"
	"github.com/golang-sql/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type SaleRecord struct {
	ID       int64      `bson:"_id" fake:"{number:1,1000}"`
	Item     string     `bson:"item" fake:"{word}"`
	Price    float64    `bson:"price" fake:"{price:1,100}"`
	Quantity int        `bson:"quantity" fake:"{number:1,20}"`
	Day      civil.Date `bson:"day" fake:"skip"`
	Tags     []string   `bson:"tags" fakesize:"3"`
}

type Student struct {
	ID int `bson:"_id"`
}

func (Student) CollectionName() string { return "pupils" }

type Inventory struct{}

func TestCollection(t *testing.T) {
	m := New(WithCollection(Inventory{}, "stock"))

	tests := []struct {
		in   any
		want string
	}{
		{SaleRecord{}, "sale_records"},
		{&SaleRecord{}, "sale_records"},
		{reflect.TypeOf(SaleRecord{}), "sale_records"},
		{Student{}, "pupils"},
		{&Inventory{}, "stock"},
	}
	for _, tt := range tests {
		got, err := m.Collection(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%T", tt.in)
	}

	for _, bad := range []any{nil, bson.D{}, 42} {
		_, err := m.Collection(bad)
		assert.ErrorIs(t, err, ErrNoCollection, "%T", bad)
	}
}

func TestWithCollections(t *testing.T) {
	m := New(WithCollections(map[string]string{"Student": "learners"}, Student{}, SaleRecord{}))

	got, err := m.Collection(Student{})
	require.NoError(t, err)
	assert.Equal(t, "learners", got)

	got, err = m.Collection(SaleRecord{})
	require.NoError(t, err)
	assert.Equal(t, "sale_records", got)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := New()
	faker := gofakeit.New(7)

	for i := 0; i < 25; i++ {
		var in SaleRecord
		require.NoError(t, faker.Struct(&in))
		in.Day = civil.DateOf(faker.DateRange(
			time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))

		raw, coll, err := m.Encode(&in)
		require.NoError(t, err)
		assert.Equal(t, "sale_records", coll)
		assert.Equal(t, codec.EncodeDate(in.Day), raw.Lookup("day").Int64())

		var out SaleRecord
		require.NoError(t, m.Decode(raw, &out))
		assert.Equal(t, in, out)
	}
}

func TestDecodeError(t *testing.T) {
	m := New()
	raw, err := bson.Marshal(bson.D{{Key: "day", Value: "not a date"}})
	require.NoError(t, err)

	var out SaleRecord
	assert.Error(t, m.Decode(raw, &out))
}

func TestCreateCache(t *testing.T) {
	k := cache.NewKey(reflect.TypeOf(SaleRecord{}), 1)

	c := New().CreateCache()
	c.PutEntity(k, &SaleRecord{ID: 1})
	_, ok := c.GetEntity(k)
	assert.True(t, ok)

	assert.NotSame(t, c, New().CreateCache())

	c = New(WithoutCache()).CreateCache()
	c.PutEntity(k, &SaleRecord{ID: 1})
	_, ok = c.GetEntity(k)
	assert.False(t, ok)

	c = New(WithCacheSize(1)).CreateCache()
	c.PutEntity(k, 1)
	c.PutEntity(cache.NewKey(reflect.TypeOf(SaleRecord{}), 2), 2)
	assert.Equal(t, 2, c.Stats().Entities)
}
