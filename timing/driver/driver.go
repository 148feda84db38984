// Package driver runs a core on the Akita event-driven simulation engine.
// The core is wrapped in a ticking component that keeps scheduling itself
// until the program finishes or a cycle limit is reached.
package driver

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rvsim/timing/core"
)

// Driver is a ticking component that advances a core by one cycle per tick.
type Driver struct {
	*sim.TickingComponent

	core         *core.Core
	maxCycles    uint64
	cycles       uint64
	limitReached bool
}

// Builder can build drivers.
type Builder struct {
	engine    sim.Engine
	freq      sim.Freq
	maxCycles uint64
}

// MakeBuilder returns a builder with a 1 GHz clock and no cycle limit.
func MakeBuilder() Builder {
	return Builder{freq: 1 * sim.GHz}
}

// WithEngine sets the engine the driver schedules its ticks on.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the core clock.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithMaxCycles bounds the number of cycles; 0 means no limit.
func (b Builder) WithMaxCycles(n uint64) Builder {
	b.maxCycles = n
	return b
}

// Build creates a driver for the given core.
func (b Builder) Build(name string, c *core.Core) *Driver {
	d := &Driver{
		core:      c,
		maxCycles: b.maxCycles,
	}
	d.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, d)

	return d
}

// Tick advances the core by one cycle. It reports no progress once the core
// has finished or the cycle limit is reached, which stops the ticking.
func (d *Driver) Tick() bool {
	if d.maxCycles > 0 && d.cycles >= d.maxCycles && !d.core.IsFinished() {
		d.limitReached = true
		return false
	}

	if !d.core.Tick() {
		return false
	}

	d.cycles++
	return true
}

// Cycles returns the number of cycles the driver has ticked.
func (d *Driver) Cycles() uint64 {
	return d.cycles
}

// LimitReached reports whether ticking stopped at the cycle limit.
func (d *Driver) LimitReached() bool {
	return d.limitReached
}

// Result is the outcome of Run.
type Result struct {
	Stats   core.Stats
	SimTime sim.VTimeInSec
}

// Run ticks the core on a fresh serial engine until the program finishes.
// It returns core.ErrMaxCycles if the limit stops it first.
func Run(c *core.Core, freq sim.Freq, maxCycles uint64) (Result, error) {
	engine := sim.NewSerialEngine()
	d := MakeBuilder().
		WithEngine(engine).
		WithFreq(freq).
		WithMaxCycles(maxCycles).
		Build("Core", c)

	d.TickLater()

	if err := engine.Run(); err != nil {
		return Result{}, fmt.Errorf("engine: %w", err)
	}

	result := Result{
		Stats:   c.Stats(),
		SimTime: engine.CurrentTime(),
	}

	if d.LimitReached() {
		return result, fmt.Errorf("%w: %d cycles, pc 0x%08x",
			core.ErrMaxCycles, maxCycles, c.PC())
	}

	return result, nil
}
