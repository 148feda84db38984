package emu

import (
	"math"

	"github.com/sarchlab/rvsim/insts"
)

// ALUOp selects an ALU operation.
type ALUOp uint8

// ALU operations.
const (
	ALUNop ALUOp = iota
	ALUAdd
	ALUSub
	ALUXor
	ALUOr
	ALUAnd
	ALUSll
	ALUSrl
	ALUSra
	ALUSlt
	ALUSltu
	ALUMul
	ALUMulh
	ALUMulhsu
	ALUMulhu
	ALUDiv
	ALUDivu
	ALURem
	ALURemu
	ALULui
)

var aluOpNames = [...]string{
	ALUNop:    "NOP",
	ALUAdd:    "ADD",
	ALUSub:    "SUB",
	ALUXor:    "XOR",
	ALUOr:     "OR",
	ALUAnd:    "AND",
	ALUSll:    "SLL",
	ALUSrl:    "SRL",
	ALUSra:    "SRA",
	ALUSlt:    "SLT",
	ALUSltu:   "SLTU",
	ALUMul:    "MUL",
	ALUMulh:   "MULH",
	ALUMulhsu: "MULHSU",
	ALUMulhu:  "MULHU",
	ALUDiv:    "DIV",
	ALUDivu:   "DIVU",
	ALURem:    "REM",
	ALURemu:   "REMU",
	ALULui:    "LUI",
}

func (op ALUOp) String() string {
	if int(op) < len(aluOpNames) {
		return aluOpNames[op]
	}
	return "ALUOp(?)"
}

// ALU implements RV32I/M integer arithmetic. It has no state.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Apply computes op over the two signed operands. Every input produces a
// defined result; division by zero and signed overflow follow the RISC-V
// M extension.
func (a *ALU) Apply(op ALUOp, x, y int32) uint32 {
	ux, uy := uint32(x), uint32(y)
	shamt := uy & 0x1F

	switch op {
	case ALUNop:
		return 0
	case ALUAdd:
		return ux + uy
	case ALUSub:
		return ux - uy
	case ALUXor:
		return ux ^ uy
	case ALUOr:
		return ux | uy
	case ALUAnd:
		return ux & uy
	case ALUSll:
		return ux << shamt
	case ALUSrl:
		return ux >> shamt
	case ALUSra:
		return uint32(x >> shamt)
	case ALUSlt:
		return boolToWord(x < y)
	case ALUSltu:
		return boolToWord(ux < uy)
	case ALUMul:
		return ux * uy
	case ALUMulh:
		return uint32((int64(x) * int64(y)) >> 32)
	case ALUMulhsu:
		return uint32((int64(x) * int64(uy)) >> 32)
	case ALUMulhu:
		return uint32((uint64(ux) * uint64(uy)) >> 32)
	case ALUDiv:
		return div(x, y)
	case ALUDivu:
		if uy == 0 {
			return math.MaxUint32
		}
		return ux / uy
	case ALURem:
		return rem(x, y)
	case ALURemu:
		if uy == 0 {
			return ux
		}
		return ux % uy
	case ALULui:
		return uy
	}

	return 0
}

func div(x, y int32) uint32 {
	switch {
	case y == 0:
		return math.MaxUint32
	case x == math.MinInt32 && y == -1:
		return uint32(x)
	}
	return uint32(x / y)
}

func rem(x, y int32) uint32 {
	switch {
	case y == 0:
		return uint32(x)
	case x == math.MinInt32 && y == -1:
		return 0
	}
	return uint32(x % y)
}

func boolToWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

var aluOpByInst = map[insts.Op]ALUOp{
	insts.OpADD:    ALUAdd,
	insts.OpADDI:   ALUAdd,
	insts.OpSUB:    ALUSub,
	insts.OpXOR:    ALUXor,
	insts.OpXORI:   ALUXor,
	insts.OpOR:     ALUOr,
	insts.OpORI:    ALUOr,
	insts.OpAND:    ALUAnd,
	insts.OpANDI:   ALUAnd,
	insts.OpSLL:    ALUSll,
	insts.OpSLLI:   ALUSll,
	insts.OpSRL:    ALUSrl,
	insts.OpSRLI:   ALUSrl,
	insts.OpSRA:    ALUSra,
	insts.OpSRAI:   ALUSra,
	insts.OpSLT:    ALUSlt,
	insts.OpSLTI:   ALUSlt,
	insts.OpSLTU:   ALUSltu,
	insts.OpSLTIU:  ALUSltu,
	insts.OpMUL:    ALUMul,
	insts.OpMULH:   ALUMulh,
	insts.OpMULHSU: ALUMulhsu,
	insts.OpMULHU:  ALUMulhu,
	insts.OpDIV:    ALUDiv,
	insts.OpDIVU:   ALUDivu,
	insts.OpREM:    ALURem,
	insts.OpREMU:   ALURemu,
	insts.OpLUI:    ALULui,
	insts.OpAUIPC:  ALUAdd,
	insts.OpLW:     ALUAdd,
	insts.OpSW:     ALUAdd,
	insts.OpJAL:    ALUAdd,
	insts.OpJALR:   ALUAdd,
}

// ALUOpFor returns the ALU operation an instruction drives. Branches,
// halt and unknown instructions do not use the ALU.
func ALUOpFor(op insts.Op) (ALUOp, bool) {
	aluOp, ok := aluOpByInst[op]
	return aluOp, ok
}

// BranchTaken evaluates the condition of a branch operation.
func BranchTaken(op insts.Op, x, y uint32) bool {
	switch op {
	case insts.OpBEQ:
		return x == y
	case insts.OpBNE:
		return x != y
	case insts.OpBLT:
		return int32(x) < int32(y)
	case insts.OpBGE:
		return int32(x) >= int32(y)
	case insts.OpBLTU:
		return x < y
	case insts.OpBGEU:
		return x >= y
	}
	return false
}
