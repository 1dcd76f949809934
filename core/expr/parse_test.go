package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Expression
	}{
		{"field", "$price", Field("price")},
		{"string literal", "price", Literal("price")},
		{"number", 2.5, Literal(2.5)},
		{"unary op", bson.D{{Key: "$year", Value: "$date"}}, Year("date")},
		{"n-ary op", map[string]any{"$multiply": []any{"$price", "$quantity"}},
			Multiply(Field("price"), Field("quantity"))},
		{"accumulator", bson.M{"$sum": bson.D{{Key: "$multiply", Value: bson.A{"$p", 2}}}},
			Sum(Multiply(Field("p"), Literal(2)))},
		{"nested array operand", bson.D{{Key: "$in", Value: bson.A{"$tag", bson.A{"a", "b"}}}},
			&Operation{op: "$in", operands: []Expression{Field("tag"), Literal(bson.A{"a", "b"})}}},
		{"document operand", bson.D{{Key: "$eq", Value: bson.A{"$size", bson.D{{Key: "h", Value: 14}}}}},
			&Operation{op: "$eq", operands: []Expression{Field("size"), Literal(bson.D{{Key: "h", Value: 14}})}}},
		{"object form argument", bson.D{{Key: "$cond", Value: bson.D{
			{Key: "if", Value: bson.D{{Key: "$gte", Value: bson.A{"$qty", 250}}}},
			{Key: "then", Value: 30},
			{Key: "else", Value: 20},
		}}}, &Operation{op: "$cond", operands: []Expression{Literal(bson.D{
			{Key: "if", Value: bson.D{{Key: "$gte", Value: bson.A{"$qty", 250}}}},
			{Key: "then", Value: 30},
			{Key: "else", Value: 20},
		})}}},
		{"map argument", bson.M{"$dateToString": map[string]any{"format": "%Y-%m-%d", "date": "$date"}},
			&Operation{op: "$dateToString", operands: []Expression{
				Literal(map[string]any{"format": "%Y-%m-%d", "date": "$date"}),
			}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Value(), got.Value())
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []any{
		bson.A{1, 2},
		bson.D{},
		bson.D{{Key: "a", Value: 1}},
		map[string]any{"$a": 1, "$b": 2},
		bson.D{{Key: "$add", Value: bson.A{}}},
		bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "x", Value: 1}, {Key: "$y", Value: 2}}}}},
		bson.D{{Key: "$cond", Value: bson.D{}}},
	} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalidArgument, "%v", in)
	}
}
