package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dosco/mongopipe/conf"
	"github.com/dosco/mongopipe/core"
	"github.com/dosco/mongopipe/mapper"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var errOffline = errors.New("explain does not connect to a database")

// offline lets pipelines compile without a database
type offline struct{}

func (offline) Aggregate(context.Context, string, []bson.D, core.AggregateOptions) (core.Cursor, error) {
	return nil, errOffline
}

func (offline) Find(context.Context, string, bson.D, core.FindOptions) (core.Cursor, error) {
	return nil, errOffline
}

func (offline) Insert(context.Context, string, []bson.Raw) error {
	return errOffline
}

func explainCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "explain <pipeline.yml>...",
		Short: "Print the stages compiled from pipeline files",
		Long: `Compile pipeline definition files and print the stage documents
that would be sent to the server, one pipeline per block.

No database connection is made.`,
		Args: cobra.MinimumNArgs(1),
		RunE: cmdExplain,
	}
	c.Flags().Bool("fingerprint", false, "Also print the fingerprint of each pipeline")
	return c
}

func cmdExplain(c *cobra.Command, args []string) error {
	fingerprint, _ := c.Flags().GetBool("fingerprint")

	defs, err := conf.LoadPipelines(c.Context(), afero.NewOsFs(), args...)
	if err != nil {
		return err
	}

	ds, err := core.NewDatastore(nil, offline{}, mapper.New())
	if err != nil {
		return err
	}

	w := c.OutOrStdout()
	for _, d := range defs {
		p, err := d.Build(ds)
		if err != nil {
			return err
		}
		if err := explain(w, d, p, fingerprint); err != nil {
			return err
		}
	}
	return nil
}

func explain(w io.Writer, d *conf.Definition, p *core.Pipeline, fingerprint bool) error {
	header := fmt.Sprintf("# %s: %s", d.Name, d.Source)
	if d.Out != "" {
		header += " -> " + d.Out
	}
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, p.String())

	if fingerprint {
		h, err := p.Fingerprint()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "fingerprint: %016x\n", h)
	}
	return nil
}

func runCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "run <pipeline.yml>",
		Short: "Run a pipeline file and print the results",
		Long: `Run a pipeline definition against the configured database and print
each result as extended JSON. When the definition names an out collection
the results are written there first and then read back.`,
		Args: cobra.ExactArgs(1),
		RunE: cmdRun,
	}
	c.Flags().String("out", "", "Write the results to this collection, overrides the file")
	c.Flags().Int("limit", 0, "Print at most this many results")
	return c
}

func cmdRun(c *cobra.Command, args []string) error {
	if err := setup(cpath); err != nil {
		return err
	}
	out, _ := c.Flags().GetString("out")
	limit, _ := c.Flags().GetInt("limit")

	ctx := c.Context()
	d, err := conf.LoadPipeline(afero.NewOsFs(), args[0])
	if err != nil {
		return err
	}
	if out == "" {
		out = d.Out
	}

	drv, ds, err := initDatastore(ctx)
	if err != nil {
		return err
	}
	defer drv.Close(ctx) //nolint:errcheck

	p, err := d.Build(ds)
	if err != nil {
		return err
	}

	var it *core.Iterator[bson.M]
	if out != "" {
		it, err = core.Out[bson.M](ctx, p, out, d.ExecOptions()...)
	} else {
		it, err = core.Aggregate[bson.M](ctx, p, d.ExecOptions()...)
	}
	if err != nil {
		return err
	}
	defer it.Stop()

	n, err := printResults[bson.M](ctx, c.OutOrStdout(), it, limit)
	if err != nil {
		return err
	}
	log.Infow("pipeline done", "name", d.Name, "results", n, "cache", it.Cache().Stats().String())
	return nil
}

type nexter[T any] interface {
	Next(ctx context.Context) (*T, error)
}

// printResults writes one relaxed extended JSON line per result
func printResults[T any](ctx context.Context, w io.Writer, it nexter[T], limit int) (int, error) {
	n := 0
	for limit <= 0 || n < limit {
		v, err := it.Next(ctx)
		if errors.Is(err, core.ErrIteratorDone) {
			break
		}
		if err != nil {
			return n, err
		}

		js, err := bson.MarshalExtJSON(v, false, false)
		if err != nil {
			return n, err
		}
		fmt.Fprintln(w, string(js))
		n++
	}
	return n, nil
}
