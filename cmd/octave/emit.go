package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/octave-lang/octave/emitter"
	"github.com/octave-lang/octave/parser"
)

var (
	emitConfigPath    string
	emitStripComments bool
	emitKeySorting    bool
	emitOutput        string
)

func init() {
	emitCmd.Flags().StringVar(&emitConfigPath, "config", "", "Path to an emitter config YAML file")
	emitCmd.Flags().BoolVar(&emitStripComments, "strip-comments", false, "Strip comments on emission")
	emitCmd.Flags().BoolVar(&emitKeySorting, "sort-keys", false, "Sort assignment keys within each block")
	emitCmd.Flags().StringVar(&emitOutput, "output", "", "Write emitted text to this path instead of stdout")
}

var emitCmd = &cobra.Command{
	Use:   "emit <file>",
	Short: "Parse an OCTAVE document and re-emit it in canonical form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}

		doc, _, err := parser.Parse(string(text), args[0], false)
		if err != nil {
			return fmt.Errorf("parse failed: %w", err)
		}

		config := emitter.DefaultConfig()
		if emitConfigPath != "" {
			config, err = emitter.LoadConfig(emitConfigPath)
			if err != nil {
				return fmt.Errorf("loading emitter config: %w", err)
			}
		}
		if emitStripComments {
			config.StripComments = true
		}
		if emitKeySorting {
			config.KeySorting = true
		}

		out, err := emitter.Emit(doc, config)
		if err != nil {
			return fmt.Errorf("emit failed: %w", err)
		}

		if emitOutput == "" {
			fmt.Print(out)
			return nil
		}
		return os.WriteFile(emitOutput, []byte(out), 0o644)
	},
}
