package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/dosco/mongopipe/codec"
	"github.com/dosco/mongopipe/conf"
	"github.com/dosco/mongopipe/core"
	"github.com/dosco/mongopipe/internal/util"
	"github.com/dosco/mongopipe/mapper"
	"github.com/dosco/mongopipe/mongodriver"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// These variables are set using -ldflags
	version string
	commit  string
	date    string
)

var (
	log    *zap.SugaredLogger
	config *core.Config
	cpath  string
)

// Cmd is the entry point for the CLI
func Cmd() {
	log = util.NewLogger(false, "info").Sugar()

	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%s", err)
	}
}

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false
	rootCmd := &cobra.Command{
		Use:           "mongopipe",
		Short:         BuildDetails(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cpath,
		"path", "./config", "path to config files")

	rootCmd.AddCommand(explainCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(dbCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

// setup is a helper function to read the config file
func setup(cpath string) error {
	if config != nil {
		return nil
	}

	cp, err := filepath.Abs(cpath)
	if err != nil {
		return err
	}

	if config, err = conf.ReadInConfig(filepath.Join(cp, conf.GetConfigName())); err != nil {
		return err
	}
	log = util.NewLogger(config.LogFormat == "json", config.LogLevel).Sugar()
	return nil
}

// newMapper builds the mapper the config asks for
func newMapper(c *core.Config, types ...any) *mapper.Mapper {
	opts := []mapper.Option{
		mapper.WithCodec(codec.Options{
			DateTimeAsString: c.DateTimeAsString,
			InstantAsNanos:   c.InstantAsNanos,
		}),
		mapper.WithCacheSize(c.EntityCacheSize),
		mapper.WithCollections(c.Collections, types...),
	}
	if c.DisableEntityCache {
		opts = append(opts, mapper.WithoutCache())
	}
	return mapper.New(opts...)
}

// initDatastore connects to the database named in the config
func initDatastore(ctx context.Context, types ...any) (*mongodriver.Driver, *core.Datastore, error) {
	m := newMapper(config, types...)

	drv, err := mongodriver.Connect(ctx, config, m.Registry(), log.Desugar())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ds, err := core.NewDatastore(config, drv, m, core.OptionSetLogger(log.Desugar()))
	if err != nil {
		_ = drv.Close(ctx)
		return nil, nil, err
	}
	return drv, ds, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Version information",
		Run: func(c *cobra.Command, args []string) {
			fmt.Fprintln(c.OutOrStdout(), BuildDetails())
		},
	}
}

// BuildDetails returns the version, commit and build date set at link time
func BuildDetails() string {
	if version == "" {
		return "mongopipe (unknown version)"
	}
	return fmt.Sprintf(`mongopipe %v
Commit SHA-1 : %v
Commit timestamp : %v`, version, commit, date)
}
