package stacore_test

import (
	"context"

	"github.com/db47h/stacore"
)

// fakeNetlist answers every query with the conservative zero-value default,
// enough to build an Engine for tests that don't exercise netlist-driven
// behavior.
type fakeNetlist struct{}

func (fakeNetlist) PinDirection(pin stacore.PinID) stacore.PinDirection { return stacore.DirInput }
func (fakeNetlist) IsTopLevelPort(pin stacore.PinID) bool               { return false }
func (fakeNetlist) PulseClockSense(pin stacore.PinID) stacore.PulseSense {
	return stacore.PulseNone
}
func (fakeNetlist) HierarchicalPins(pin stacore.PinID) []stacore.PinID { return nil }
func (fakeNetlist) IsLatchData(pin stacore.PinID) bool                 { return false }
func (fakeNetlist) IsCheckClock(pin stacore.PinID) bool                { return false }
func (fakeNetlist) IsLoad(pin stacore.PinID) bool                      { return false }

// fakeConstraints is a minimal in-memory stacore.ConstraintStore for tests
// that need to drive specific clocks/input-delays without pulling in the
// full sdc.Store.
type fakeConstraints struct {
	clocks      map[uint32][]stacore.ClockDef
	inputDelays map[uint32][]stacore.InputDelay
	pathDelays  map[uint32][]stacore.PathDelayException
	crprActive  bool
	derate      float64
}

func newFakeConstraints() *fakeConstraints {
	return &fakeConstraints{
		clocks:      map[uint32][]stacore.ClockDef{},
		inputDelays: map[uint32][]stacore.InputDelay{},
		pathDelays:  map[uint32][]stacore.PathDelayException{},
		crprActive:  true,
		derate:      1,
	}
}

func (c *fakeConstraints) ClocksAt(v uint32) []stacore.ClockDef             { return c.clocks[v] }
func (c *fakeConstraints) InputDelaysAt(v uint32) []stacore.InputDelay      { return c.inputDelays[v] }
func (c *fakeConstraints) PathDelaySegmentsAt(v uint32) []stacore.PathDelayException {
	return c.pathDelays[v]
}
func (c *fakeConstraints) Uncertainty(clk stacore.ClockDef, apIndex int) stacore.Delay {
	return stacore.Delay{}
}
func (c *fakeConstraints) Derate(role stacore.EdgeRole, isClk bool, apIndex int) float64 {
	return c.derate
}
func (c *fakeConstraints) IsPropagated(clk stacore.ClockDef, v uint32) bool              { return false }
func (c *fakeConstraints) CRPRActive() bool                                             { return c.crprActive }
func (c *fakeConstraints) DynamicLoopBreakingActive() bool                              { return false }
func (c *fakeConstraints) ClockThruTristateAllowed() bool                               { return false }

// fakeDelays returns a fixed delay for every arc, keyed by TimingArc.DelayCell.
type fakeDelays struct {
	byCell map[int]float64
}

func (d *fakeDelays) ArcDelay(ctx context.Context, edge *stacore.Edge, arc stacore.TimingArc, apIndex int) (stacore.Delay, error) {
	return stacore.Delay{Mean: d.byCell[arc.DelayCell]}, nil
}

func newEngine(g *stacore.Graph, sdc stacore.ConstraintStore, delays stacore.DelayCalculator) *stacore.Engine {
	return stacore.NewEngine(g, stacore.Deps{
		Netlist: fakeNetlist{},
		SDC:     sdc,
		Delays:  delays,
	}, stacore.DefaultConfig())
}
