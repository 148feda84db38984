package pipeline

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/rvsim/insts"
)

// Hook positions of the pipeline.
var (
	// HookPosRetire triggers when an instruction writes back.
	HookPosRetire = &sim.HookPos{Name: "Retire"}
	// HookPosStall triggers when Decode holds an instruction on a load-use
	// hazard.
	HookPosStall = &sim.HookPos{Name: "Stall"}
	// HookPosFlush triggers when Execute redirects the program counter.
	HookPosFlush = &sim.HookPos{Name: "Flush"}
	// HookPosHalt triggers when the termination sentinel reaches Writeback.
	HookPosHalt = &sim.HookPos{Name: "Halt"}
)

// Event is the item passed to pipeline hooks.
type Event struct {
	Cycle uint64
	PC    uint32
	Op    insts.Op
}

func (p *Pipeline) invokeHook(pos *sim.HookPos, pc uint32, op insts.Op) {
	if p.NumHooks() == 0 {
		return
	}

	p.InvokeHook(sim.HookCtx{
		Domain: p,
		Pos:    pos,
		Item: Event{
			Cycle: p.stats.Cycles,
			PC:    pc,
			Op:    op,
		},
	})
}
