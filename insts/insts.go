// Package insts provides RV32I/M instruction definitions, decoding and
// encoding.
//
// This package implements decoding of RISC-V machine code into structured
// instruction representations. It supports:
//   - Register-register: ADD, SUB, SLL, SLT, SLTU, XOR, SRL, SRA, OR, AND
//   - Multiply/divide: MUL, MULH, MULHSU, MULHU, DIV, DIVU, REM, REMU
//   - Register-immediate: ADDI, SLTI, SLTIU, XORI, ORI, ANDI, SLLI, SRLI, SRAI
//   - Memory: LW, SW
//   - Control flow: BEQ, BNE, BLT, BGE, BLTU, BGEU, JAL, JALR
//   - Upper immediates: LUI, AUIPC
//
// The all-zero word decodes to OpHalt, the program termination sentinel.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x00A00293) // addi x5, x0, 10
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts
