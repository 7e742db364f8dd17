// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/db47h/stacore"
)

var reportMode string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run arrival and required propagation and print worst/total negative slack",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportMode, "mode", "max", "analysis mode: max or min")
}

// fixtureChecks is a PathEndVisitor backed directly by a fixture's
// checks list, standing in for the external timing-check evaluator
// spec.md §6 assumes (setup/hold/recovery/removal arithmetic is out of
// scope here; the fixture simply names the required time each endpoint
// should be checked against).
type fixtureChecks struct {
	byVertex map[uint32][]stacore.PathEnd
}

func newFixtureChecks(f *fixture, byFixtureID map[uint32]uint32) *fixtureChecks {
	fc := &fixtureChecks{byVertex: map[uint32][]stacore.PathEnd{}}
	for _, c := range f.Checks {
		vid, ok := byFixtureID[c.Vertex]
		if !ok {
			continue
		}
		mode := stacore.ModeMax
		if c.Mode == "min" {
			mode = stacore.ModeMin
		}
		fc.byVertex[vid] = append(fc.byVertex[vid], stacore.PathEnd{
			Vertex:   vid,
			Required: stacore.Delay{Mean: c.Required},
			Mode:     mode,
		})
	}
	return fc
}

func (fc *fixtureChecks) VisitEndpoint(ctx context.Context, v *stacore.Vertex, tagGroup *stacore.TagGroup) ([]stacore.PathEnd, error) {
	ends := fc.byVertex[v.ID]
	if len(ends) == 0 || len(tagGroup.Tags) == 0 {
		return nil, nil
	}
	out := make([]stacore.PathEnd, 0, len(ends))
	for _, e := range ends {
		e.Tag = tagGroup.Tags[0]
		out = append(out, e)
	}
	return out, nil
}

func runReport(cmd *cobra.Command, args []string) error {
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
	byFixtureID := map[uint32]uint32{}
	for i, fv := range f.Vertices {
		byFixtureID[fv.ID] = graph.Vertices[i+1].ID
	}

	mode := stacore.ModeMax
	if reportMode == "min" {
		mode = stacore.ModeMin
	}

	engine := stacore.NewEngine(graph, stacore.Deps{
		Netlist:  noNetlist{},
		SDC:      store,
		Delays:   newUnitDelay(f),
		PathEnds: newFixtureChecks(f, byFixtureID),
		Logger:   logger,
	}, stacore.DefaultConfig())

	ctx := context.Background()
	if err := engine.FindAllArrivals(ctx, mode); err != nil {
		return err
	}
	if err := engine.FindAllRequired(ctx, mode); err != nil {
		return err
	}

	fmt.Printf("WNS(%s) = %.4f\n", mode, engine.WNS(mode).Value())
	fmt.Printf("TNS(%s) = %.4f\n", mode, engine.TNS(mode).Value())
	for _, es := range engine.WorstSlacks(mode) {
		v := graph.Vertex(es.Vertex)
		fmt.Printf("  %-24s slack=%.4f\n", v.Pin, es.Slack.Value())
	}
	return nil
}
