// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package stacore

import "github.com/db47h/stacore/internal/intern"

// ClkInfo is an immutable bundle describing a clock's state at one point
// in the graph (spec.md §3). Like Tag, ClkInfo is hash-consed: equal
// ClkInfos are the same pointer.
type ClkInfo struct {
	ClockEdge      Transition
	ClockSourcePin uint32 // vertex id of the clock source pin
	Propagated     bool   // false == ideal clock
	GenClkSrcPin   uint32 // vertex id, 0 == not a generated clock
	IsGenClkSrcPath bool
	PulseSense     PulseSense
	EdgeTime       Delay // waveform time of ClockEdge within one period, relative to the rise edge at t=0
	SourceLatency  Delay
	NetworkLatency Delay
	Uncertainty    Delay
	PathAP         int
	CRPRClkPin     uint32 // vertex id of the register-clock driving path, 0 == none
}

// PulseSense describes an optional pulse-clock generator's sense.
type PulseSense uint8

const (
	PulseNone PulseSense = iota
	PulseHigh
	PulseLow
)

func clkInfoEqual(a, b *ClkInfo) bool { return *a == *b }

// ClkInfoID is an interned handle to a ClkInfo.
type ClkInfoID = intern.ID

func (e *Engine) internClkInfo(probe *ClkInfo) (ClkInfoID, *ClkInfo, error) {
	id, ci, err := e.clkInfos.FindOrIntern(probe, clkInfoEqual)
	if err != nil {
		return 0, nil, e.fatal(ErrMaxTagIndexExceeded, err)
	}
	return id, ci, nil
}

// ClkInfo resolves a ClkInfoID back to its ClkInfo.
func (e *Engine) ClkInfoOf(id ClkInfoID) *ClkInfo { return e.clkInfos.Get(id) }

// HasCRPRClkPin reports whether this clock-info carries a register-clock
// driving path usable for CRPR credit (spec.md §4.5 step 4).
func (ci *ClkInfo) HasCRPRClkPin() bool { return ci != nil && ci.CRPRClkPin != 0 }

// clockWaveformEdgeTime resolves the waveform time of clk's declared edge
// within one period (spec.md §4.7 "set arrival = clock_edge_time +
// insertion"). ClockDef carries only a period and a declared edge rather
// than an explicit waveform edge list, so this assumes the standard
// symmetric (50% duty cycle) waveform: the rise edge sits at t=0 and the
// fall edge at half the period.
func clockWaveformEdgeTime(clk ClockDef) float64 {
	if clk.Edge == Fall {
		return clk.Period / 2
	}
	return 0
}
