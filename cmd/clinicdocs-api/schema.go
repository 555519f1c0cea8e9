package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"clinicdocs/internal/layout"
	"clinicdocs/internal/legacy"
	"clinicdocs/internal/model"
	"clinicdocs/internal/validator"

	"github.com/spf13/cobra"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Work with template schema files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a V2 schema and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read schema: %w", err)
			}
			var s model.Schema
			if err := json.Unmarshal(raw, &s); err != nil {
				return fmt.Errorf("failed to parse schema: %w", err)
			}

			report := validator.Validate(s)
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Valid {
				return fmt.Errorf("schema has %d error(s)", len(report.Errors))
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate <file>",
		Short: "Convert a V1 template definition to a V2 schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read definition: %w", err)
			}
			result, err := legacy.Migrate(raw)
			if err != nil {
				return err
			}
			result.Schema = layout.Reindex(result.Schema)

			for _, w := range result.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	})

	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
