package expr

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestGroupDocument(t *testing.T) {
	tests := []struct {
		name string
		g    Group
		want bson.D
	}{
		{
			name: "single field id",
			g: NewGroup(ByField("item"),
				Grouping("total", Sum(Multiply(Field("price"), Field("quantity")))),
			),
			want: bson.D{
				{Key: "_id", Value: "$item"},
				{Key: "total", Value: bson.D{{Key: "$sum", Value: bson.D{
					{Key: "$multiply", Value: bson.A{"$price", "$quantity"}},
				}}}},
			},
		},
		{
			name: "composite id",
			g: NewGroup(
				GroupID(KeyGrouping("day", DayOfYear("date")), KeyGrouping("year", Year("date"))),
				Grouping("count", SumOf(1)),
			),
			want: bson.D{
				{Key: "_id", Value: bson.D{
					{Key: "day", Value: bson.D{{Key: "$dayOfYear", Value: "$date"}}},
					{Key: "year", Value: bson.D{{Key: "$year", Value: "$date"}}},
				}},
				{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			},
		},
		{
			name: "null id",
			g:    NewGroup(NullID(), Grouping("n", SumOf(1))),
			want: bson.D{
				{Key: "_id", Value: nil},
				{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
			},
		},
		{
			name: "duplicate names overwrite in place",
			g: NewGroup(ByField("$item"),
				Grouping("x", Min(Field("a"))),
				Grouping("y", Max(Field("a"))),
				Grouping("x", First(Field("b"))),
			),
			want: bson.D{
				{Key: "_id", Value: "$item"},
				{Key: "x", Value: bson.D{{Key: "$first", Value: "$b"}}},
				{Key: "y", Value: bson.D{{Key: "$max", Value: "$a"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.g.Document()
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("group mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGroupErrors(t *testing.T) {
	_, err := NewGroup(ByField("")).Document()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewGroup(ByField("a"), Grouping("x", nil)).Document()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewGroup(ByField("a"), Grouping("", Sum(Field("b")))).Document()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewGroup(GroupID(KeyGrouping("k", nil))).Document()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSortDocument(t *testing.T) {
	d, err := SortDocument(Descending("total"), Ascending("_id"))
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "total", Value: -1}, {Key: "_id", Value: 1}}, d)

	_, err = SortDocument()
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = SortDocument(Sort{Field: "a", Direction: 2})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
