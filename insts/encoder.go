package insts

import (
	"errors"
	"fmt"
)

// ErrUnknownOp is returned when asked to encode an operation that has no
// encoding.
var ErrUnknownOp = errors.New("unknown operation")

// ErrImmediateRange is returned when an immediate does not fit its field.
var ErrImmediateRange = errors.New("immediate out of range")

// ErrRegisterRange is returned when a register index is not in [0, 31].
var ErrRegisterRange = errors.New("register out of range")

type encoding struct {
	format Format
	opcode uint32
	funct3 uint32
	funct7 uint32
}

var encodings = map[Op]encoding{
	OpLUI:   {FormatU, OpcodeLUI, 0, 0},
	OpAUIPC: {FormatU, OpcodeAUIPC, 0, 0},
	OpJAL:   {FormatJ, OpcodeJAL, 0, 0},
	OpJALR:  {FormatI, OpcodeJALR, 0, 0},

	OpBEQ:  {FormatB, OpcodeBranch, 0, 0},
	OpBNE:  {FormatB, OpcodeBranch, 1, 0},
	OpBLT:  {FormatB, OpcodeBranch, 4, 0},
	OpBGE:  {FormatB, OpcodeBranch, 5, 0},
	OpBLTU: {FormatB, OpcodeBranch, 6, 0},
	OpBGEU: {FormatB, OpcodeBranch, 7, 0},

	OpLW: {FormatI, OpcodeLoad, 2, 0},
	OpSW: {FormatS, OpcodeStore, 2, 0},

	OpADDI:  {FormatI, OpcodeOpImm, 0, 0},
	OpSLTI:  {FormatI, OpcodeOpImm, 2, 0},
	OpSLTIU: {FormatI, OpcodeOpImm, 3, 0},
	OpXORI:  {FormatI, OpcodeOpImm, 4, 0},
	OpORI:   {FormatI, OpcodeOpImm, 6, 0},
	OpANDI:  {FormatI, OpcodeOpImm, 7, 0},
	OpSLLI:  {FormatI, OpcodeOpImm, 1, Funct7Base},
	OpSRLI:  {FormatI, OpcodeOpImm, 5, Funct7Base},
	OpSRAI:  {FormatI, OpcodeOpImm, 5, Funct7Alt},

	OpADD:  {FormatR, OpcodeOp, 0, Funct7Base},
	OpSUB:  {FormatR, OpcodeOp, 0, Funct7Alt},
	OpSLL:  {FormatR, OpcodeOp, 1, Funct7Base},
	OpSLT:  {FormatR, OpcodeOp, 2, Funct7Base},
	OpSLTU: {FormatR, OpcodeOp, 3, Funct7Base},
	OpXOR:  {FormatR, OpcodeOp, 4, Funct7Base},
	OpSRL:  {FormatR, OpcodeOp, 5, Funct7Base},
	OpSRA:  {FormatR, OpcodeOp, 5, Funct7Alt},
	OpOR:   {FormatR, OpcodeOp, 6, Funct7Base},
	OpAND:  {FormatR, OpcodeOp, 7, Funct7Base},

	OpMUL:    {FormatR, OpcodeOp, 0, Funct7MulDiv},
	OpMULH:   {FormatR, OpcodeOp, 1, Funct7MulDiv},
	OpMULHSU: {FormatR, OpcodeOp, 2, Funct7MulDiv},
	OpMULHU:  {FormatR, OpcodeOp, 3, Funct7MulDiv},
	OpDIV:    {FormatR, OpcodeOp, 4, Funct7MulDiv},
	OpDIVU:   {FormatR, OpcodeOp, 5, Funct7MulDiv},
	OpREM:    {FormatR, OpcodeOp, 6, Funct7MulDiv},
	OpREMU:   {FormatR, OpcodeOp, 7, Funct7MulDiv},
}

// FormatOf returns the encoding format of op.
func FormatOf(op Op) Format {
	return encodings[op].format
}

// Assemble encodes an operation into a 32-bit instruction word. Operands
// that the format does not carry are ignored. For U-type operations imm is
// the 20-bit upper immediate; for B-type and J-type it is the byte offset.
func Assemble(op Op, rd, rs1, rs2 uint8, imm int32) (uint32, error) {
	if op == OpHalt {
		return HaltWord, nil
	}

	enc, ok := encodings[op]
	if !ok {
		return 0, fmt.Errorf("%w: %v", ErrUnknownOp, op)
	}

	if rd > 31 || rs1 > 31 || rs2 > 31 {
		return 0, fmt.Errorf("%w: rd=%d rs1=%d rs2=%d",
			ErrRegisterRange, rd, rs1, rs2)
	}

	word := enc.opcode | enc.funct3<<12

	switch enc.format {
	case FormatR:
		word |= enc.funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | uint32(rd)<<7
	case FormatI:
		if op == OpSLLI || op == OpSRLI || op == OpSRAI {
			if imm < 0 || imm > 31 {
				return 0, fmt.Errorf("%w: shift amount %d", ErrImmediateRange, imm)
			}
			imm |= int32(enc.funct7 << 5)
		} else if !fits(imm, 12) {
			return 0, fmt.Errorf("%w: %d does not fit 12 bits", ErrImmediateRange, imm)
		}
		word |= uint32(imm)<<20 | uint32(rs1)<<15 | uint32(rd)<<7
	case FormatS:
		if !fits(imm, 12) {
			return 0, fmt.Errorf("%w: %d does not fit 12 bits", ErrImmediateRange, imm)
		}
		u := uint32(imm)
		word |= (u>>5&0x7F)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | (u&0x1F)<<7
	case FormatB:
		if !fits(imm, 13) || imm&1 != 0 {
			return 0, fmt.Errorf("%w: branch offset %d", ErrImmediateRange, imm)
		}
		u := uint32(imm)
		word |= (u>>12&0x1)<<31 | (u>>5&0x3F)<<25 | uint32(rs2)<<20 |
			uint32(rs1)<<15 | (u>>1&0xF)<<8 | (u>>11&0x1)<<7
	case FormatU:
		if imm < -(1<<19) || imm >= 1<<20 {
			return 0, fmt.Errorf("%w: upper immediate 0x%x", ErrImmediateRange, imm)
		}
		word |= (uint32(imm)&0xFFFFF)<<12 | uint32(rd)<<7
	case FormatJ:
		if !fits(imm, 21) || imm&1 != 0 {
			return 0, fmt.Errorf("%w: jump offset %d", ErrImmediateRange, imm)
		}
		u := uint32(imm)
		word |= (u>>20&0x1)<<31 | (u>>1&0x3FF)<<21 | (u>>11&0x1)<<20 |
			(u>>12&0xFF)<<12 | uint32(rd)<<7
	}

	return word, nil
}

// MustAssemble is like Assemble but panics on error. It is meant for
// building fixed programs.
func MustAssemble(op Op, rd, rs1, rs2 uint8, imm int32) uint32 {
	word, err := Assemble(op, rd, rs1, rs2, imm)
	if err != nil {
		panic(err)
	}
	return word
}

func fits(imm int32, bits uint) bool {
	limit := int32(1) << (bits - 1)
	return imm >= -limit && imm < limit
}
