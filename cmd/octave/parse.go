package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/octave-lang/octave/octaveerr"
	"github.com/octave-lang/octave/parser"
)

var (
	parseJSON   bool
	parseStrict bool
)

func init() {
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Output diagnostics as JSON")
	parseCmd.Flags().BoolVar(&parseStrict, "strict", false, "Parse in strict mode (no lenient repairs)")
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse an OCTAVE document and report diagnostics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		log.Debug("parsing document", zap.String("file", args[0]), zap.Bool("strict", parseStrict))

		doc, diagnostics, err := parser.Parse(string(text), args[0], parseStrict)
		if err != nil {
			if parseJSON {
				printDiagnosticsJSON(false, octaveerr.List{asCompilerError(err)})
			} else {
				printDiagnosticsTerminal(octaveerr.List{asCompilerError(err)})
			}
			return fmt.Errorf("parse failed with %d error(s)", 1)
		}

		if parseJSON {
			printDiagnosticsJSON(true, diagnostics)
		} else {
			printDiagnosticsTerminal(diagnostics)
			fmt.Printf("parsed %q: %d top-level node(s), %d warning(s)\n", doc.Name, len(doc.Body), len(diagnostics.Warnings()))
		}
		if diagnostics.HasErrors() {
			return fmt.Errorf("parse completed with %d error(s)", len(diagnostics.Errors()))
		}
		return nil
	},
}

func asCompilerError(err error) octaveerr.CompilerError {
	if ce, ok := err.(octaveerr.CompilerError); ok {
		return ce
	}
	return octaveerr.New(octaveerr.PhaseParser, octaveerr.EParse, err.Error(), octaveerr.Location{}, octaveerr.Fatal)
}

func printDiagnosticsJSON(success bool, diagnostics octaveerr.List) {
	output := struct {
		Success bool                    `json:"success"`
		Errors  []octaveerr.CompilerError `json:"errors"`
	}{Success: success, Errors: diagnostics}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.Encode(output)
}

func printDiagnosticsTerminal(diagnostics octaveerr.List) {
	if len(diagnostics) == 0 {
		return
	}
	for i, d := range diagnostics {
		fmt.Fprintf(os.Stderr, "%d. [%s] %s:%d:%d: %s: %s\n",
			i+1, d.Phase, d.Location.File, d.Location.Line, d.Location.Column, d.Code, d.Message)
		if i < len(diagnostics)-1 {
			fmt.Fprintln(os.Stderr, strings.Repeat("-", 60))
		}
	}
}
