// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

// Command stacore drives the arrival/required propagation engine
// against a self-contained YAML timing-graph fixture, for local
// experimentation and for exercising the engine end-to-end without a
// full netlist/SDC toolchain (SPEC_FULL.md §0).
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var logger *slog.Logger

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := rootCmd.Execute(); err != nil {
		logger.Error("stacore failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

var (
	fixturePath string

	rootCmd = &cobra.Command{
		Use:   "stacore",
		Short: "Run static-timing arrival/required propagation over a fixture graph",
		Long: `stacore loads a self-contained YAML timing-graph fixture and runs the
arrival and required-time propagation core over it, reporting worst and
total negative slack per analysis mode.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&fixturePath, "fixture", "f", "", "path to a YAML timing-graph fixture (required)")
	rootCmd.AddCommand(runCmd, reportCmd)
}
