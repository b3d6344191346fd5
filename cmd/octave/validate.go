package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/octave-lang/octave/octaveerr"
	"github.com/octave-lang/octave/parser"
	"github.com/octave-lang/octave/schema"
	"github.com/octave-lang/octave/validator"
)

var (
	validateJSON       bool
	validateStrict     bool
	validateSchemaArgs []string
)

func init() {
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Output the validation result as JSON")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Parse in strict mode before validating")
	validateCmd.Flags().StringArrayVar(&validateSchemaArgs, "schema", nil,
		"Section schema binding in SECTION_ID=path form; repeatable")
}

var validateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate an OCTAVE document's sections against bound schemas",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		doc, parseDiag, err := parser.Parse(string(text), args[0], validateStrict)
		if err != nil {
			return fmt.Errorf("parse failed: %w", err)
		}
		if parseDiag.HasErrors() {
			printDiagnosticsTerminal(parseDiag)
			return fmt.Errorf("parse completed with %d error(s), refusing to validate", len(parseDiag.Errors()))
		}

		schemas, err := loadSectionSchemas(validateSchemaArgs)
		if err != nil {
			return fmt.Errorf("loading schemas: %w", err)
		}

		result := validator.Validate(doc, validateStrict, schemas)

		if validateJSON {
			printValidationJSON(result)
		} else {
			printValidationTerminal(result)
		}
		if result.Errors().HasErrors() {
			return fmt.Errorf("validation failed with %d error(s)", len(result.Errors().Errors()))
		}
		return nil
	},
}

// loadSectionSchemas parses each SECTION_ID=path binding, extracts a
// SchemaDefinition from the referenced document, and keys it by
// SECTION_ID so validator.Validate can look it up per section.
func loadSectionSchemas(bindings []string) (validator.SectionSchemas, error) {
	schemas := validator.SectionSchemas{}
	for _, binding := range bindings {
		sectionID, path, ok := strings.Cut(binding, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --schema binding %q, want SECTION_ID=path", binding)
		}
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading schema %s: %w", path, err)
		}
		schemaDoc, _, err := parser.Parse(string(text), path, false)
		if err != nil {
			return nil, fmt.Errorf("parsing schema %s: %w", path, err)
		}
		def, err := schema.Extract(schemaDoc)
		if err != nil {
			return nil, fmt.Errorf("extracting schema %s: %w", path, err)
		}
		schemas[sectionID] = def
	}
	return schemas, nil
}

func printValidationJSON(result validator.Result) {
	output := struct {
		Sections []validator.SectionResult `json:"sections"`
		Routing  validator.RoutingLog      `json:"routing"`
		Errors   []octaveerr.CompilerError `json:"errors"`
	}{Sections: result.Sections, Routing: result.Routing, Errors: result.Errors()}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.Encode(output)
}

func printValidationTerminal(result validator.Result) {
	for _, sec := range result.Sections {
		fmt.Printf("%-24s %s\n", sec.Key, sec.Status)
		for _, e := range sec.Errors {
			fmt.Printf("  [%s] %s: %s\n", e.Code, e.FieldPath, e.Message)
		}
	}
	if len(result.Routing) > 0 {
		fmt.Println("routing:")
		for target, refs := range result.Routing {
			fmt.Printf("  %s <- %s\n", target, strings.Join(refs, ", "))
		}
	}
}
