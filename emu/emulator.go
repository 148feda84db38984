package emu

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/insts"
)

// ErrUnknownInstruction is reported when the emulator steps over an
// instruction it cannot execute.
var ErrUnknownInstruction = errors.New("unknown instruction")

// ErrMaxInstructions is returned once the instruction limit is reached.
var ErrMaxInstructions = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Halted is true once PC has reached the end of memory.
	Halted bool

	// Err is set if the instruction could not be executed. Unknown
	// instructions are skipped, so execution may continue after an error.
	Err error
}

// Emulator executes RV32 instructions functionally, one instruction per
// step, without modeling the pipeline. It is the reference model the
// pipeline is checked against.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder
	alu     *ALU
	logger  logrus.FieldLogger

	pc               uint32
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithLogger sets the logger used for execution diagnostics.
func WithLogger(logger logrus.FieldLogger) EmulatorOption {
	return func(e *Emulator) {
		e.logger = logger
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates an emulator with memorySize bytes of main memory.
func NewEmulator(memorySize uint32, opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		memory:  NewMemory(memorySize),
		decoder: insts.NewDecoder(),
		alu:     NewALU(),
		logger:  logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// PC returns the program counter.
func (e *Emulator) PC() uint32 {
	return e.pc
}

// InstructionCount returns the number of instructions executed.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// LoadProgram writes the program words into memory starting at address 0.
func (e *Emulator) LoadProgram(words []uint32) {
	e.memory.LoadWords(words)
}

// Reset zeroes the registers, the program counter and the instruction
// count. Memory is left untouched.
func (e *Emulator) Reset() {
	e.regFile.Reset()
	e.pc = 0
	e.instructionCount = 0
}

// IsFinished reports whether PC has reached the end of memory.
func (e *Emulator) IsFinished() bool {
	return e.pc >= e.memory.Size()
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.IsFinished() {
		return StepResult{Halted: true}
	}

	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrMaxInstructions}
	}

	if e.pc%4 != 0 {
		e.logger.WithField("pc", fmt.Sprintf("0x%08x", e.pc)).
			Warn("misaligned fetch, halting")
		e.halt()
		return StepResult{Halted: true}
	}

	word := e.memory.Read32(e.pc)
	inst := e.decoder.Decode(word)

	e.logger.WithFields(logrus.Fields{
		"pc":   fmt.Sprintf("0x%08x", e.pc),
		"word": fmt.Sprintf("0x%08x", word),
		"op":   inst.Op,
	}).Debug("Emulator step")

	result := e.execute(inst)
	e.regFile.ClearZero()
	e.instructionCount++

	return result
}

// Run steps until the program halts or the instruction limit is hit.
// Unknown instructions are skipped.
func (e *Emulator) Run() StepResult {
	for {
		result := e.Step()
		if result.Halted {
			return result
		}
		if result.Err != nil && !errors.Is(result.Err, ErrUnknownInstruction) {
			return result
		}
	}
}

func (e *Emulator) halt() {
	e.pc = e.memory.Size()
}

// execute dispatches and executes a decoded instruction.
func (e *Emulator) execute(inst *insts.Instruction) StepResult {
	pc := e.pc
	rs1 := e.regFile.ReadReg(inst.Rs1)
	rs2 := e.regFile.ReadReg(inst.Rs2)

	switch inst.Op {
	case insts.OpHalt:
		e.halt()
		return StepResult{Halted: true}

	case insts.OpUnknown:
		e.logger.Errorf("Non-existent instruction 0x%08x at pc 0x%08x",
			inst.Word, pc)
		e.pc += 4
		return StepResult{
			Err: fmt.Errorf("%w: 0x%08x at pc 0x%08x",
				ErrUnknownInstruction, inst.Word, pc),
		}

	case insts.OpBEQ, insts.OpBNE, insts.OpBLT,
		insts.OpBGE, insts.OpBLTU, insts.OpBGEU:
		if BranchTaken(inst.Op, rs1, rs2) {
			e.pc = JumpTarget(inst.Op, pc, rs1, inst.Imm)
		} else {
			e.pc += 4
		}
		return StepResult{}

	case insts.OpSW:
		e.store(rs1+uint32(inst.Imm), rs2)
		e.pc += 4
		return StepResult{}
	}

	aluOp, _ := ALUOpFor(inst.Op)
	a, b := SelectOperands(inst.Op, pc, rs1, rs2, inst.Imm)
	result := e.alu.Apply(aluOp, a, b)

	switch inst.Op {
	case insts.OpLW:
		result = e.load(result)
		e.pc += 4
	case insts.OpJAL, insts.OpJALR:
		e.pc = JumpTarget(inst.Op, pc, rs1, inst.Imm)
	default:
		e.pc += 4
	}

	e.regFile.WriteReg(inst.Rd, result)

	return StepResult{}
}

func (e *Emulator) load(addr uint32) uint32 {
	if addr%4 != 0 || !e.memory.Contains(addr, 4) {
		e.logger.WithField("addr", fmt.Sprintf("0x%08x", addr)).
			Warn("rejected load")
		return 0
	}
	return e.memory.Read32(addr)
}

func (e *Emulator) store(addr, value uint32) {
	if addr%4 != 0 || !e.memory.Contains(addr, 4) {
		e.logger.WithField("addr", fmt.Sprintf("0x%08x", addr)).
			Warn("rejected store")
		return
	}
	e.memory.Write32(addr, value)
}
