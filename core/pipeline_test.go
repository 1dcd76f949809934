package core

import (
	"testing"

	"github.com/dosco/mongopipe/core/expr"
	"github.com/dosco/mongopipe/mapper"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func newTestDatastore(t *testing.T, drv *fakeDriver, opts ...mapper.Option) *Datastore {
	t.Helper()
	ds, err := NewDatastore(&Config{Database: "test"}, drv, mapper.New(opts...))
	require.NoError(t, err)
	return ds
}

func TestPipelineStageOrder(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	p := ds.CreateAggregation("sales").
		Match(NewQuery().Filter("item", "abc")).
		Sort(expr.Descending("date")).
		Limit(0)
	require.NoError(t, p.Err())

	want := []bson.D{
		{{Key: "$match", Value: bson.D{{Key: "item", Value: "abc"}}}},
		{{Key: "$sort", Value: bson.D{{Key: "date", Value: -1}}}},
		{{Key: "$limit", Value: int64(0)}},
	}
	if diff := cmp.Diff(want, p.Stages()); diff != "" {
		t.Fatalf("stages mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineGroupStage(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	amount := expr.Multiply(expr.Field("price"), expr.Field("quantity"))
	p := ds.CreateAggregation("sales").
		Group("item",
			expr.Grouping("totalAmount", expr.Sum(amount)),
			expr.Grouping("count", expr.SumOf(1)))
	require.NoError(t, p.Err())

	want := bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: "$item"},
		{Key: "totalAmount", Value: bson.D{{Key: "$sum", Value: bson.D{
			{Key: "$multiply", Value: bson.A{"$price", "$quantity"}},
		}}}},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}}
	assert.Equal(t, 1, p.Len())
	if diff := cmp.Diff(want, p.Stages()[0]); diff != "" {
		t.Fatalf("group mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineCompositeGroup(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	p := ds.CreateAggregation("sales").GroupBy(
		expr.GroupID(
			expr.KeyGrouping("day", expr.DayOfYear("date")),
			expr.KeyGrouping("year", expr.Year("date"))),
		expr.Grouping("count", expr.SumOf(1)))
	require.NoError(t, p.Err())

	want := bson.D{{Key: "$group", Value: bson.D{
		{Key: "_id", Value: bson.D{
			{Key: "day", Value: bson.D{{Key: "$dayOfYear", Value: "$date"}}},
			{Key: "year", Value: bson.D{{Key: "$year", Value: "$date"}}},
		}},
		{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
	}}}
	if diff := cmp.Diff(want, p.Stages()[0]); diff != "" {
		t.Fatalf("group mismatch (-want +got):\n%s", diff)
	}
}

func TestPipelineProjectFirstStage(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	p := ds.CreateAggregation("students").
		Project(
			expr.Compute("quizAvg", expr.Avg(expr.Field("quizzes"))),
			expr.Compute("labAvg", expr.Avg(expr.Field("labs"))),
			expr.Nested("examAvg", expr.Operator("$avg", expr.Plain("final"), expr.Plain("midterm"))))
	require.NoError(t, p.Err())
	assert.True(t, p.FirstStage())

	p.Unwind("labs").Project(expr.Plain("labs"))
	require.NoError(t, p.Err())
	assert.False(t, p.FirstStage())
	assert.Equal(t, bson.D{{Key: "$unwind", Value: "$labs"}}, p.Stages()[1])
}

func TestPipelineProjectLastWins(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	p := ds.CreateAggregation("sales").
		Project(expr.Plain("item"), expr.Plain("price"), expr.Plain("item").Suppress())
	require.NoError(t, p.Err())

	want := bson.D{{Key: "$project", Value: bson.D{
		{Key: "item", Value: 0},
		{Key: "price", Value: 1},
	}}}
	assert.Equal(t, want, p.Stages()[0])
}

func TestPipelineGeoNear(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	t.Run("unset fields are left out", func(t *testing.T) {
		p := ds.CreateAggregation("places").GeoNear(GeoNear{
			Near:          Point(-73.99, 40.73),
			DistanceField: "dist.calculated",
			MaxDistance:   Ptr(2.0),
			Spherical:     Ptr(true),
		})
		require.NoError(t, p.Err())

		want := bson.D{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: Point(-73.99, 40.73)},
			{Key: "distanceField", Value: "dist.calculated"},
			{Key: "maxDistance", Value: 2.0},
			{Key: "spherical", Value: true},
		}}}
		if diff := cmp.Diff(want, p.Stages()[0]); diff != "" {
			t.Fatalf("geoNear mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("all fields in order", func(t *testing.T) {
		p := ds.CreateAggregation("places").GeoNear(GeoNear{
			Near:               bson.A{1.0, 2.0},
			DistanceField:      "d",
			Limit:              Ptr(int64(5)),
			Num:                Ptr(int64(6)),
			MaxDistance:        Ptr(3.5),
			Query:              NewQuery().Filter("type", "cafe"),
			Spherical:          Ptr(false),
			DistanceMultiplier: Ptr(6371.0),
			IncludeLocs:        "loc",
			UniqueDocs:         Ptr(true),
		})
		require.NoError(t, p.Err())

		body := p.Stages()[0][0].Value.(bson.D)
		var keys []string
		for _, e := range body {
			keys = append(keys, e.Key)
		}
		assert.Equal(t, []string{
			"near", "distanceField", "limit", "num", "maxDistance", "query",
			"spherical", "distanceMultiplier", "includeLocs", "uniqueDocs",
		}, keys)
	})

	t.Run("near is required", func(t *testing.T) {
		p := ds.CreateAggregation("places").GeoNear(GeoNear{DistanceField: "d"})
		assert.ErrorIs(t, p.Err(), ErrInvalidArgument)
		assert.Zero(t, p.Len())
	})
}

func TestPipelineGeoNearOptionalKeys(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})
	near := Point(-73.99, 40.73)

	tests := []struct {
		name string
		opt  func(g *GeoNear)
		key  string
	}{
		{"near only", func(*GeoNear) {}, ""},
		{"distance field", func(g *GeoNear) { g.DistanceField = "dist" }, "distanceField"},
		{"limit", func(g *GeoNear) { g.Limit = Ptr(int64(10)) }, "limit"},
		{"num", func(g *GeoNear) { g.Num = Ptr(int64(10)) }, "num"},
		{"max distance", func(g *GeoNear) { g.MaxDistance = Ptr(0.5) }, "maxDistance"},
		{"query", func(g *GeoNear) { g.Query = NewQuery().Filter("category", "parks") }, "query"},
		{"spherical", func(g *GeoNear) { g.Spherical = Ptr(false) }, "spherical"},
		{"distance multiplier", func(g *GeoNear) { g.DistanceMultiplier = Ptr(6371.0) }, "distanceMultiplier"},
		{"include locs", func(g *GeoNear) { g.IncludeLocs = "loc" }, "includeLocs"},
		{"unique docs", func(g *GeoNear) { g.UniqueDocs = Ptr(false) }, "uniqueDocs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := GeoNear{Near: near}
			tt.opt(&g)

			p := ds.CreateAggregation("places").GeoNear(g)
			require.NoError(t, p.Err())

			body, ok := p.Stages()[0][0].Value.(bson.D)
			require.True(t, ok)

			want := []string{"near"}
			if tt.key != "" {
				want = append(want, tt.key)
			}
			var keys []string
			for _, e := range body {
				keys = append(keys, e.Key)
			}
			assert.Equal(t, want, keys)
			assert.Equal(t, near, body[0].Value)
		})
	}
}

func TestPipelineLookup(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	p := ds.CreateAggregation("orders").Lookup(Lookup{
		From: "inventory", LocalField: "item", ForeignField: "sku", As: "docs",
	})
	require.NoError(t, p.Err())
	assert.Equal(t, bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: "inventory"},
		{Key: "localField", Value: "item"},
		{Key: "foreignField", Value: "sku"},
		{Key: "as", Value: "docs"},
	}}}, p.Stages()[0])

	p = ds.CreateAggregation("orders").Lookup(Lookup{From: "inventory"})
	assert.ErrorIs(t, p.Err(), ErrInvalidArgument)
}

func TestPipelineFirstErrorWins(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	p := ds.CreateAggregation("sales").
		Match(NewQuery().Filter("item", "abc")).
		Limit(-1).
		Skip(-2).
		Unwind("")
	require.Error(t, p.Err())
	assert.ErrorIs(t, p.Err(), ErrInvalidArgument)
	assert.Contains(t, p.Err().Error(), "negative limit")
	assert.Equal(t, 1, p.Len())
}

func TestPipelineInvalidArguments(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	tests := []struct {
		name  string
		build func(p *Pipeline) *Pipeline
	}{
		{"nil filter", func(p *Pipeline) *Pipeline { return p.Match(nil) }},
		{"bad filter", func(p *Pipeline) *Pipeline { return p.Match(NewQuery().Filter("qty in", 3)) }},
		{"empty group field", func(p *Pipeline) *Pipeline { return p.Group("") }},
		{"nil accumulator", func(p *Pipeline) *Pipeline { return p.Group("item", expr.Grouping("x", nil)) }},
		{"no projections", func(p *Pipeline) *Pipeline { return p.Project() }},
		{"empty projection target", func(p *Pipeline) *Pipeline { return p.Project(expr.Plain("")) }},
		{"empty sort", func(p *Pipeline) *Pipeline { return p.Sort() }},
		{"negative skip", func(p *Pipeline) *Pipeline { return p.Skip(-1) }},
		{"empty unwind", func(p *Pipeline) *Pipeline { return p.Unwind("$") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.build(ds.CreateAggregation("sales"))
			assert.ErrorIs(t, p.Err(), ErrInvalidArgument)
			assert.Zero(t, p.Len())
		})
	}
}

func TestPipelineEmptyCollection(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	p := ds.CreateAggregation("").Limit(1)
	assert.ErrorIs(t, p.Err(), ErrInvalidArgument)

	p = ds.CreateAggregationFor(42)
	assert.ErrorIs(t, p.Err(), mapper.ErrNoCollection)
}

func TestPipelineCreateAggregationFor(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	p := ds.CreateAggregationFor(&saleTotal{})
	require.NoError(t, p.Err())
	assert.Equal(t, "sale_totals", p.Collection())
}

func TestPipelineOutCloses(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	p := ds.CreateAggregation("sales").Limit(10)
	require.NoError(t, p.out("totals"))
	assert.Equal(t, bson.D{{Key: "$out", Value: "totals"}}, p.Stages()[1])

	p.Limit(5)
	assert.ErrorIs(t, p.Err(), ErrPipelineClosed)
	assert.Equal(t, 2, p.Len())

	p = ds.CreateAggregation("sales")
	assert.ErrorIs(t, p.out(""), ErrInvalidArgument)
}

func TestPipelineFingerprint(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	build := func(limit int64) *Pipeline {
		return ds.CreateAggregation("sales").
			Match(NewQuery().Filter("price >", 5)).
			Limit(limit)
	}

	a, err := build(3).Fingerprint()
	require.NoError(t, err)
	b, err := build(3).Fingerprint()
	require.NoError(t, err)
	c, err := build(4).Fingerprint()
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestStagesJSON(t *testing.T) {
	ds := newTestDatastore(t, &fakeDriver{})

	p := ds.CreateAggregation("sales").Unwind("tags").Limit(2)
	assert.Equal(t, `[{"$unwind":"$tags"},{"$limit":2}]`, p.String())
	assert.Equal(t, "[]", StagesJSON(nil))
}

func TestStageKindOperator(t *testing.T) {
	assert.Equal(t, "$geoNear", StageGeoNear.Operator())
	assert.Equal(t, "$out", StageOut.String())
	assert.Equal(t, "StageKind(42)", StageKind(42).Operator())
}
