package emu

import "github.com/sarchlab/rvsim/insts"

// SelectOperands picks the two ALU operands of an instruction. Jumps link
// through PC + 4, AUIPC adds the upper immediate to PC, register-register
// operations use both registers and everything else pairs rs1 with the
// immediate.
func SelectOperands(op insts.Op, pc, rs1, rs2 uint32, imm int32) (int32, int32) {
	switch op {
	case insts.OpJAL, insts.OpJALR:
		return int32(pc), 4
	case insts.OpAUIPC:
		return int32(pc), imm
	case insts.OpLUI:
		return 0, imm
	}

	if insts.FormatOf(op) == insts.FormatR {
		return int32(rs1), int32(rs2)
	}
	return int32(rs1), imm
}

// JumpTarget computes the redirect address of a jump or taken branch.
func JumpTarget(op insts.Op, pc, rs1 uint32, imm int32) uint32 {
	if op == insts.OpJALR {
		return (rs1 + uint32(imm)) &^ 1
	}
	return pc + uint32(imm)
}
