// Package pipeline provides the 5-stage pipeline implementation for timing simulation.
package pipeline

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// IFIDRegister holds state between Fetch and Decode stages.
type IFIDRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the fetched instruction.
	PC uint32

	// InstructionWord is the raw 32-bit instruction word.
	InstructionWord uint32
}

// Clear resets the IF/ID register to empty state.
func (r *IFIDRegister) Clear() {
	*r = IFIDRegister{}
}

// IDEXRegister holds state between Decode and Execute stages.
type IDEXRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// Op is the decoded operation.
	Op     insts.Op
	Opcode uint32

	// Register numbers for hazard detection.
	Rd  uint8
	Rs1 uint8
	Rs2 uint8

	// Register values read from the register file at decode time.
	Rs1Value uint32
	Rs2Value uint32

	Imm int32

	// Control signals.
	UseALU       bool
	ALUOp        emu.ALUOp
	MemRead      bool   // True for load instructions
	MemWrite     bool   // True for store instructions
	RegWrite     bool   // True if instruction writes to register
	MemToReg     bool   // True if result comes from memory (load)
	IsBranch     bool   // True for conditional branches
	BranchFunct3 uint32 // Branch condition code
	IsJump       bool   // True for JAL and JALR

	// Halt marks the termination sentinel travelling to Writeback.
	Halt bool
}

// Clear resets the ID/EX register to empty state.
func (r *IDEXRegister) Clear() {
	*r = IDEXRegister{}
}

// EXMEMRegister holds state between Execute and Memory stages.
type EXMEMRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	PC uint32
	Op insts.Op

	// ALUResult doubles as the memory address of loads and stores.
	ALUResult uint32

	// StoreValue is the forwarded rs2 value for stores.
	StoreValue uint32

	Rd uint8

	// Control signals.
	MemRead  bool
	MemWrite bool
	RegWrite bool
	MemToReg bool

	Halt bool
}

// Clear resets the EX/MEM register to empty state.
func (r *EXMEMRegister) Clear() {
	*r = EXMEMRegister{}
}

// MEMWBRegister holds state between Memory and Writeback stages.
type MEMWBRegister struct {
	// Valid indicates if this pipeline register contains valid data.
	Valid bool

	PC uint32
	Op insts.Op

	ALUResult uint32
	ReadData  uint32

	Rd uint8

	// Control signals.
	RegWrite bool
	MemToReg bool

	Halt bool
}

// Clear resets the MEM/WB register to empty state.
func (r *MEMWBRegister) Clear() {
	*r = MEMWBRegister{}
}

// Result returns the value Writeback commits: the loaded data for loads,
// the ALU result otherwise.
func (r *MEMWBRegister) Result() uint32 {
	if r.MemToReg {
		return r.ReadData
	}
	return r.ALUResult
}
