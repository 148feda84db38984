// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline implementation to provide the inspection and control
// surface used by the CLI, the monitor and the tests.
package core

import (
	"errors"
	"fmt"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

// ErrMaxCycles is returned by Run when the cycle limit is reached before the
// program finishes.
var ErrMaxCycles = errors.New("cycle limit reached")

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of stall cycles.
	Stalls uint64
	// Flushes is the number of pipeline flushes.
	Flushes uint64
	// Cache holds the access counters of the cache.
	Cache cache.Statistics
	// Branches holds the branch profiler counters.
	Branches pipeline.BranchPredictorStats
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// HitRate returns the fraction of cache accesses that hit.
func (s Stats) HitRate() float64 {
	total := s.Cache.Hits + s.Cache.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Cache.Hits) / float64(total)
}

// Core represents a cycle-accurate CPU core model.
// It wraps a 5-stage pipeline and provides a simple interface for simulation.
type Core struct {
	// Pipeline is the underlying 5-stage pipeline.
	Pipeline *pipeline.Pipeline

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory
}

// NewCore creates a new Core with the given register file and memory.
func NewCore(
	regFile *emu.RegFile,
	memory *emu.Memory,
	opts ...pipeline.PipelineOption,
) (*Core, error) {
	p, err := pipeline.NewPipeline(regFile, memory, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	return &Core{
		Pipeline: p,
		regFile:  regFile,
		memory:   memory,
	}, nil
}

// Memory returns main memory.
func (c *Core) Memory() *emu.Memory {
	return c.memory
}

// Registers returns a snapshot of the register file.
func (c *Core) Registers() [emu.NumRegs]uint32 {
	return c.regFile.Snapshot()
}

// PC returns the program counter.
func (c *Core) PC() uint32 {
	return c.Pipeline.PC()
}

// MemoryByte returns the memory byte at addr, or 0 past the end of memory.
func (c *Core) MemoryByte(addr uint32) uint8 {
	return c.memory.Read8(addr)
}

// CacheLines returns a snapshot of every cache line.
func (c *Core) CacheLines() []cache.LineSnapshot {
	return c.Pipeline.Cache().Lines()
}

// PipelineState returns a snapshot of the inter-stage registers and the PC.
func (c *Core) PipelineState() pipeline.State {
	return c.Pipeline.State()
}

// SetRegister writes a register directly, bypassing the pipeline. Writing
// x0 is reported with emu.ErrZeroRegister and an index outside [0, 31] with
// emu.ErrInvalidRegister; neither changes state.
func (c *Core) SetRegister(index int, value uint32) error {
	return c.regFile.Set(index, value)
}

// LoadProgram writes the program words into memory from address 0. The PC
// and registers are not touched.
func (c *Core) LoadProgram(words []uint32) {
	c.Pipeline.LoadProgram(words)
}

// Tick executes one pipeline cycle. It returns false without doing anything
// once the program has finished, which lets the core serve as a sim.Ticker.
func (c *Core) Tick() bool {
	if c.IsFinished() {
		return false
	}

	c.Pipeline.Tick()
	return true
}

// IsFinished reports whether the PC has reached the end of memory.
func (c *Core) IsFinished() bool {
	return c.Pipeline.IsFinished()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Instructions: pipeStats.Instructions,
		Stalls:       pipeStats.Stalls,
		Flushes:      pipeStats.Flushes,
		Cache:        c.Pipeline.Cache().Stats(),
		Branches:     c.Pipeline.BranchStats(),
	}
}

// Run ticks the core until it finishes. A non-zero maxCycles bounds the
// number of ticks; hitting it returns ErrMaxCycles.
func (c *Core) Run(maxCycles uint64) (Stats, error) {
	for n := uint64(0); !c.IsFinished(); n++ {
		if maxCycles > 0 && n >= maxCycles {
			return c.Stats(), fmt.Errorf("%w: %d cycles, pc 0x%08x",
				ErrMaxCycles, maxCycles, c.PC())
		}
		c.Pipeline.Tick()
	}

	return c.Stats(), nil
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if finished.
func (c *Core) RunCycles(cycles uint64) bool {
	return c.Pipeline.RunCycles(cycles)
}

// Reset clears the PC, registers, cache and pipeline registers. Memory is
// kept.
func (c *Core) Reset() {
	c.Pipeline.Reset()
}
