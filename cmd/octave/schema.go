package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/octave-lang/octave/parser"
	"github.com/octave-lang/octave/schema"
)

var schemaOutput string

func init() {
	schemaCmd.Flags().StringVar(&schemaOutput, "output", "", "Write the JSON Schema to this path instead of stdout")
}

var schemaCmd = &cobra.Command{
	Use:   "schema <file>",
	Short: "Extract a FIELDS/POLICY schema from an OCTAVE document and export it as JSON Schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		doc, diagnostics, err := parser.Parse(string(text), args[0], false)
		if err != nil {
			return fmt.Errorf("parse failed: %w", err)
		}
		if diagnostics.HasErrors() {
			printDiagnosticsTerminal(diagnostics)
			return fmt.Errorf("parse completed with %d error(s), refusing to extract a schema", len(diagnostics.Errors()))
		}

		def, err := schema.Extract(doc)
		if err != nil {
			return fmt.Errorf("extracting schema: %w", err)
		}

		out, err := def.MarshalJSONSchema()
		if err != nil {
			return fmt.Errorf("marshaling JSON Schema: %w", err)
		}

		if schemaOutput == "" {
			fmt.Println(string(out))
			return nil
		}
		return os.WriteFile(schemaOutput, out, 0o644)
	},
}
