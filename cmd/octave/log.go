package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	verbose bool
	log     = zap.NewNop()
)

func init() {
	cobra.OnInitialize(func() {
		if !verbose {
			return
		}
		cfg := zap.NewDevelopmentConfig()
		built, err := cfg.Build()
		if err != nil {
			return
		}
		log = built
	})
}
