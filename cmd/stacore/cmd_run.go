// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/db47h/stacore"
)

var runMode string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run arrival propagation over a fixture and print per-vertex arrivals",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "max", "analysis mode: max or min")
}

func runRun(cmd *cobra.Command, args []string) error {
	if fixturePath == "" {
		return fmt.Errorf("--fixture is required")
	}
	f, err := loadFixture(fixturePath)
	if err != nil {
		return err
	}
	graph, store, err := buildGraph(f)
	if err != nil {
		return err
	}

	mode := stacore.ModeMax
	if runMode == "min" {
		mode = stacore.ModeMin
	}

	engine := stacore.NewEngine(graph, stacore.Deps{
		Netlist: noNetlist{},
		SDC:     store,
		Delays:  newUnitDelay(f),
		Logger:  logger,
	}, stacore.DefaultConfig())

	ctx := context.Background()
	if err := engine.FindAllArrivals(ctx, mode); err != nil {
		return err
	}

	for _, v := range graph.Vertices[1:] {
		if len(v.Arrivals) == 0 {
			continue
		}
		worst := mode.WorstInitial()
		for _, a := range v.Arrivals {
			if mode.Dominates(a, worst) {
				worst = a
			}
		}
		fmt.Printf("%-24s level=%-3d arrival=%.4f\n", v.Pin, v.Level, worst.Value())
	}

	for _, w := range engine.Warnings() {
		logger.Warn(w.Message, slog.Uint64("vertex", uint64(w.Vertex)))
	}
	return nil
}
