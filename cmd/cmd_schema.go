package main

import (
	"fmt"

	"github.com/dosco/mongopipe/conf"
	"github.com/spf13/cobra"
)

func schemaCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of pipeline files",
		Long: `Print the JSON schema of pipeline definition files, for editor
completion and validation. Use --config for the schema of the config file.`,
		Args: cobra.NoArgs,
		RunE: cmdSchema,
	}
	c.Flags().Bool("config", false, "Print the config file schema instead")
	return c
}

func cmdSchema(c *cobra.Command, args []string) error {
	forConfig, _ := c.Flags().GetBool("config")

	schema := conf.Schema
	if forConfig {
		schema = conf.ConfigSchema
	}

	b, err := schema()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.OutOrStdout(), string(b))
	return nil
}
