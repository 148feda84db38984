package pipeline

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/timing/cache"
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions completed (retired).
	Instructions uint64
	// Stalls is the number of load-use stall cycles.
	Stalls uint64
	// Flushes is the number of pipeline flushes (jumps and taken branches).
	Flushes uint64
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// State is the complete pipeline state: the program counter, the four
// inter-stage registers and the signals pending between stages.
type State struct {
	PC uint32

	IFID  IFIDRegister
	IDEX  IDEXRegister
	EXMEM EXMEMRegister
	MEMWB MEMWBRegister

	// Flush is raised by Execute and consumed by Decode and Fetch in the
	// same tick.
	Flush       bool
	FlushTarget uint32

	// Stall is raised by Decode and consumed by Fetch in the same tick.
	Stall bool

	// Halting is set once the termination sentinel has been decoded; Fetch
	// stops until the sentinel retires.
	Halting bool
}

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithCacheConfig sets the geometry of the cache in front of memory.
func WithCacheConfig(config cache.Config) PipelineOption {
	return func(p *Pipeline) {
		p.cacheConfig = config
	}
}

// WithBranchPredictorConfig sets the geometry of the branch profiler.
func WithBranchPredictorConfig(config BranchPredictorConfig) PipelineOption {
	return func(p *Pipeline) {
		p.branchConfig = config
	}
}

// WithLogger sets the logger used for pipeline diagnostics.
func WithLogger(logger logrus.FieldLogger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// Pipeline implements a 5-stage pipelined CPU model.
// Stages: Fetch (IF) -> Decode (ID) -> Execute (EX) -> Memory (MEM) -> Writeback (WB)
// A single cache serves both instruction fetch and data accesses.
type Pipeline struct {
	*sim.HookableBase

	state State

	// Pipeline stages
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	// Hazard detection
	hazardUnit *HazardUnit

	// Shared resources
	regFile     *emu.RegFile
	memory      *emu.Memory
	cache       *cache.Cache
	cacheConfig cache.Config

	branchPredictor *BranchPredictor
	branchConfig    BranchPredictorConfig

	logger logrus.FieldLogger

	// Statistics
	stats Statistics
}

// NewPipeline creates a new 5-stage pipeline over the given register file
// and memory.
func NewPipeline(
	regFile *emu.RegFile,
	memory *emu.Memory,
	opts ...PipelineOption,
) (*Pipeline, error) {
	p := &Pipeline{
		HookableBase: sim.NewHookableBase(),
		hazardUnit:   NewHazardUnit(),
		regFile:      regFile,
		memory:       memory,
		cacheConfig:  cache.DefaultConfig(),
		branchConfig: DefaultBranchPredictorConfig(),
		logger:       logrus.StandardLogger(),
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	c, err := cache.New(p.cacheConfig, cache.NewMemoryBacking(memory))
	if err != nil {
		return nil, err
	}
	p.cache = c
	p.branchPredictor = NewBranchPredictor(p.branchConfig)

	p.fetchStage = NewFetchStage(c, p.logger)
	p.decodeStage = NewDecodeStage(regFile, p.hazardUnit, p.logger)
	p.executeStage = NewExecuteStage(regFile, p.hazardUnit)
	p.memoryStage = NewMemoryStage(c, p.logger)
	p.writebackStage = NewWritebackStage(regFile)

	return p, nil
}

// PC returns the current program counter.
func (p *Pipeline) PC() uint32 {
	return p.state.PC
}

// State returns a copy of the pipeline state.
func (p *Pipeline) State() State {
	return p.state
}

// Cache returns the cache in front of memory.
func (p *Pipeline) Cache() *cache.Cache {
	return p.cache
}

// Stats returns pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.stats
}

// BranchStats returns the branch profiler statistics.
func (p *Pipeline) BranchStats() BranchPredictorStats {
	return p.branchPredictor.Stats()
}

// IsFinished reports whether the program counter has reached the end of
// memory.
func (p *Pipeline) IsFinished() bool {
	return p.state.PC >= p.memory.Size()
}

// Tick executes one pipeline cycle.
//
// Stages are evaluated in reverse order (WB→MEM→EX→ID→IF). Each later call
// observes what the earlier ones already changed in this tick:
//   - Execute reads registers after Writeback has committed, and forwards
//     from the MEM/WB register Memory has just rewritten.
//   - Decode checks for load-use hazards against the ID/EX register that
//     Execute consumed, and squashes its instruction if Execute raised a
//     flush.
//   - Fetch consumes the flush and stall signals raised this tick.
//
// Register x0 is forced back to zero once all stages have run.
func (p *Pipeline) Tick() {
	p.stats.Cycles++

	p.writeback()
	p.memoryAccess()
	p.execute()
	p.decode()
	p.fetch()

	p.regFile.ClearZero()
}

func (p *Pipeline) writeback() {
	memwb := &p.state.MEMWB
	if !memwb.Valid {
		return
	}

	if memwb.Halt {
		p.state.PC = p.memory.Size()
		p.invokeHook(HookPosHalt, memwb.PC, memwb.Op)
		return
	}

	if p.writebackStage.Writeback(memwb) {
		p.stats.Instructions++
		p.invokeHook(HookPosRetire, memwb.PC, memwb.Op)
	}
}

func (p *Pipeline) memoryAccess() {
	p.state.MEMWB = p.memoryStage.Access(&p.state.EXMEM)
}

func (p *Pipeline) execute() {
	result := p.executeStage.Execute(&p.state.IDEX, &p.state.MEMWB)
	p.state.EXMEM = result.EXMEM

	idex := &p.state.IDEX
	if idex.Valid && idex.IsBranch {
		p.branchPredictor.Observe(idex.PC, result.Redirect, result.Target)
	}

	if result.Redirect {
		p.state.Flush = true
		p.state.FlushTarget = result.Target
		p.stats.Flushes++
		p.invokeHook(HookPosFlush, p.state.IDEX.PC, p.state.IDEX.Op)
	}
}

func (p *Pipeline) decode() {
	result := p.decodeStage.Decode(&p.state.IFID, &p.state.IDEX, p.state.Flush)
	p.state.IDEX = result.IDEX

	if result.Stall {
		p.state.Stall = true
		p.stats.Stalls++
		p.invokeHook(HookPosStall, p.state.IFID.PC, 0)
	}

	if result.Halt {
		p.state.Halting = true
	}
}

func (p *Pipeline) fetch() {
	s := &p.state

	switch {
	case s.Flush && s.FlushTarget >= p.memory.Size():
		// PC stays in range so the instructions ahead of the jump still
		// drain; the fault becomes a halt marker that retires after them.
		s.Flush = false
		s.IFID = IFIDRegister{
			Valid:           true,
			PC:              s.FlushTarget,
			InstructionWord: p.fetchStage.Fetch(s.FlushTarget),
		}
	case s.Flush:
		s.Flush = false
		s.PC = s.FlushTarget
		s.IFID.Clear()
	case s.Stall:
		s.Stall = false
	case s.Halting || p.IsFinished():
		s.IFID.Clear()
	default:
		s.IFID = IFIDRegister{
			Valid:           true,
			PC:              s.PC,
			InstructionWord: p.fetchStage.Fetch(s.PC),
		}
		s.PC += 4
	}
}

// Reset zeroes the program counter and registers, invalidates the cache
// and clears every pipeline register and pending signal. Memory is kept.
func (p *Pipeline) Reset() {
	p.state = State{}
	p.regFile.Reset()
	p.cache.Reset()
	p.branchPredictor.Reset()
	p.stats = Statistics{}
}

// LoadProgram writes words into memory from address 0. PC and registers
// are left alone.
func (p *Pipeline) LoadProgram(words []uint32) {
	p.memory.LoadWords(words)
}

// RunCycles executes the pipeline for at most the given number of cycles.
// Returns true if still running, false if finished.
func (p *Pipeline) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !p.IsFinished(); i++ {
		p.Tick()
	}
	return !p.IsFinished()
}
