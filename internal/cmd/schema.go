package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/oarkflow/releaseit/internal/schema"
)

func newSchemaCmd() *cobra.Command {
	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "JSON Schema utilities",
		Long: `Generate and validate JSON Schema for release-it configuration.

Point the "$schema" key of .release-it.json at the generated file to get
completion and validation in editors.`,
	}

	schemaCmd.AddCommand(&cobra.Command{
		Use:   "generate [output]",
		Short: "Generate JSON Schema",
		Long: `Generate the JSON Schema for release-it configuration.

If no output file is specified, the schema is written to stdout.

Examples:
  release-it schema generate
  release-it schema generate release-it.schema.json
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := schema.Marshal()
			if err != nil {
				return err
			}

			if len(args) > 0 {
				if err := os.WriteFile(args[0], data, 0o644); err != nil {
					return fmt.Errorf("failed to write schema: %w", err)
				}
				log.Info("Schema written", "path", args[0])
				return nil
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	schemaCmd.AddCommand(&cobra.Command{
		Use:   "validate <config>",
		Short: "Validate configuration against schema",
		Long: `Validate a release-it configuration file against the JSON Schema.

Examples:
  release-it schema validate .release-it.json
  release-it schema validate path/to/config.yaml
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := schema.ValidateConfig(args[0])
			if !result.Valid {
				errs := make([]error, 0, len(result.Errors))
				for _, e := range result.Errors {
					errs = append(errs, e)
				}
				return fmt.Errorf("configuration is invalid: %w", errors.Join(errs...))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s matches the schema\n", args[0])
			return nil
		},
	})

	return schemaCmd
}
