package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/spf13/cobra"
)

// seedSale is the document written by db seed
type seedSale struct {
	ID       int       `bson:"_id"`
	Item     string    `bson:"item"`
	Price    float64   `bson:"price"`
	Quantity int       `bson:"quantity"`
	Date     time.Time `bson:"date"`
	Tags     []string  `bson:"tags"`
}

func (seedSale) CollectionName() string { return "sales" }

// dbCmd creates the db command
func dbCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "db",
		Short: "Database inspection and seeding commands",
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert generated sales documents",
		Long: `Insert generated sales documents to try pipelines against. The same
seed always generates the same documents.`,
		RunE: cmdDBSeed,
	}
	seedCmd.Flags().Int("count", 100, "Number of documents to insert")
	seedCmd.Flags().Int64("seed", 1, "Random seed")
	c.AddCommand(seedCmd)

	describeCmd := &cobra.Command{
		Use:   "describe <collection>",
		Short: "Show the fields of a collection",
		Long: `Show the fields of a collection, read from its $jsonSchema validator
and from a sample of its documents.`,
		Args: cobra.ExactArgs(1),
		RunE: cmdDBDescribe,
	}
	describeCmd.Flags().Int("sample", 100, "Number of documents to sample")
	c.AddCommand(describeCmd)

	collectionsCmd := &cobra.Command{
		Use:   "collections",
		Short: "List the collections of the database",
		RunE:  cmdDBCollections,
	}
	c.AddCommand(collectionsCmd)

	return c
}

func cmdDBSeed(c *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}
	count, _ := c.Flags().GetInt("count")
	seed, _ := c.Flags().GetInt64("seed")

	ctx := c.Context()
	drv, ds, err := initDatastore(ctx, seedSale{})
	if err != nil {
		return err
	}
	defer drv.Close(ctx) //nolint:errcheck

	sales := seedSales(seed, count)
	entities := make([]any, len(sales))
	for i := range sales {
		entities[i] = &sales[i]
	}
	if err := ds.Save(ctx, entities...); err != nil {
		return err
	}

	coll, _ := ds.Mapper().Collection(seedSale{})
	log.Infow("seeded", "collection", coll, "count", len(sales))
	return nil
}

func seedSales(seed int64, count int) []seedSale {
	faker := gofakeit.New(seed)
	items := []string{"abc", "jkl", "xyz"}
	start := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)

	sales := make([]seedSale, count)
	for i := range sales {
		sales[i] = seedSale{
			ID:       i + 1,
			Item:     faker.RandomString(items),
			Price:    faker.Price(1, 50),
			Quantity: faker.Number(1, 20),
			Date:     faker.DateRange(start, start.AddDate(1, 0, 0)).Truncate(time.Millisecond),
			Tags:     []string{faker.Color(), faker.Color()},
		}
	}
	return sales
}

func cmdDBDescribe(c *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}
	sample, _ := c.Flags().GetInt("sample")

	ctx := c.Context()
	drv, _, err := initDatastore(ctx)
	if err != nil {
		return err
	}
	defer drv.Close(ctx) //nolint:errcheck

	fields, err := drv.Describe(ctx, args[0], sample)
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.OutOrStdout(), string(b))
	return nil
}

func cmdDBCollections(c *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}

	ctx := c.Context()
	drv, _, err := initDatastore(ctx)
	if err != nil {
		return err
	}
	defer drv.Close(ctx) //nolint:errcheck

	names, err := drv.Collections(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(c.OutOrStdout(), n)
	}
	return nil
}
