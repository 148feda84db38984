package insts

import "fmt"

// Op represents a RISC-V operation.
type Op uint16

// RV32I/M operations.
const (
	OpUnknown Op = iota
	OpHalt

	OpLUI
	OpAUIPC
	OpJAL
	OpJALR

	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU

	OpLW
	OpSW

	OpADDI
	OpSLTI
	OpSLTIU
	OpXORI
	OpORI
	OpANDI
	OpSLLI
	OpSRLI
	OpSRAI

	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND

	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	numOps
)

var opNames = [numOps]string{
	OpUnknown: "unknown",
	OpHalt:    "halt",
	OpLUI:     "lui",
	OpAUIPC:   "auipc",
	OpJAL:     "jal",
	OpJALR:    "jalr",
	OpBEQ:     "beq",
	OpBNE:     "bne",
	OpBLT:     "blt",
	OpBGE:     "bge",
	OpBLTU:    "bltu",
	OpBGEU:    "bgeu",
	OpLW:      "lw",
	OpSW:      "sw",
	OpADDI:    "addi",
	OpSLTI:    "slti",
	OpSLTIU:   "sltiu",
	OpXORI:    "xori",
	OpORI:     "ori",
	OpANDI:    "andi",
	OpSLLI:    "slli",
	OpSRLI:    "srli",
	OpSRAI:    "srai",
	OpADD:     "add",
	OpSUB:     "sub",
	OpSLL:     "sll",
	OpSLT:     "slt",
	OpSLTU:    "sltu",
	OpXOR:     "xor",
	OpSRL:     "srl",
	OpSRA:     "sra",
	OpOR:      "or",
	OpAND:     "and",
	OpMUL:     "mul",
	OpMULH:    "mulh",
	OpMULHSU:  "mulhsu",
	OpMULHU:   "mulhu",
	OpDIV:     "div",
	OpDIVU:    "divu",
	OpREM:     "rem",
	OpREMU:    "remu",
}

// String returns the assembler mnemonic of the operation.
func (op Op) String() string {
	if op >= numOps {
		return fmt.Sprintf("Op(%d)", uint16(op))
	}
	return opNames[op]
}

// ParseOp looks up an operation by its assembler mnemonic.
func ParseOp(mnemonic string) (Op, bool) {
	for op := OpLUI; op < numOps; op++ {
		if opNames[op] == mnemonic {
			return op, true
		}
	}
	return OpUnknown, false
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
)

// Major opcodes (bits [6:0]).
const (
	OpcodeLoad   uint32 = 0x03
	OpcodeOpImm  uint32 = 0x13
	OpcodeAUIPC  uint32 = 0x17
	OpcodeStore  uint32 = 0x23
	OpcodeOp     uint32 = 0x33
	OpcodeLUI    uint32 = 0x37
	OpcodeBranch uint32 = 0x63
	OpcodeJALR   uint32 = 0x67
	OpcodeJAL    uint32 = 0x6F
)

// funct7 values of the register-register group.
const (
	Funct7Base   uint32 = 0x00
	Funct7MulDiv uint32 = 0x01
	Funct7Alt    uint32 = 0x20
)

// HaltWord is the program termination sentinel.
const HaltWord uint32 = 0

// Instruction represents a decoded RISC-V instruction.
type Instruction struct {
	Op     Op
	Format Format

	Word   uint32
	Opcode uint32
	Funct3 uint32
	Funct7 uint32

	Rd  uint8
	Rs1 uint8
	Rs2 uint8

	// Imm is the sign-extended immediate of the instruction's format.
	Imm int32
}

// ReadsRs1 reports whether the instruction consumes register rs1.
func (i *Instruction) ReadsRs1() bool {
	switch i.Format {
	case FormatR, FormatI, FormatS, FormatB:
		return true
	}
	return false
}

// ReadsRs2 reports whether the instruction consumes register rs2.
func (i *Instruction) ReadsRs2() bool {
	switch i.Format {
	case FormatR, FormatS, FormatB:
		return true
	}
	return false
}

// WritesRd reports whether the instruction produces a register result.
func (i *Instruction) WritesRd() bool {
	switch i.Format {
	case FormatR, FormatI, FormatU, FormatJ:
		return true
	}
	return false
}

// String disassembles the instruction.
func (i *Instruction) String() string {
	switch i.Format {
	case FormatR:
		return fmt.Sprintf("%s x%d, x%d, x%d", i.Op, i.Rd, i.Rs1, i.Rs2)
	case FormatI:
		if i.Op == OpLW || i.Op == OpJALR {
			return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rd, i.Imm, i.Rs1)
		}
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rd, i.Rs1, i.Imm)
	case FormatS:
		return fmt.Sprintf("%s x%d, %d(x%d)", i.Op, i.Rs2, i.Imm, i.Rs1)
	case FormatB:
		return fmt.Sprintf("%s x%d, x%d, %d", i.Op, i.Rs1, i.Rs2, i.Imm)
	case FormatU:
		return fmt.Sprintf("%s x%d, 0x%x", i.Op, i.Rd, uint32(i.Imm)>>12)
	case FormatJ:
		return fmt.Sprintf("%s x%d, %d", i.Op, i.Rd, i.Imm)
	}
	if i.Op == OpHalt {
		return "halt"
	}
	return fmt.Sprintf("unknown 0x%08x", i.Word)
}

// Decoder decodes RISC-V machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RISC-V instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit RISC-V instruction word. Any bit pattern decodes
// to some instruction; unsupported encodings come back as OpUnknown.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Word:   word,
		Opcode: Opcode(word),
		Funct3: Funct3(word),
		Funct7: Funct7(word),
		Rd:     Rd(word),
		Rs1:    Rs1(word),
		Rs2:    Rs2(word),
	}

	if word == HaltWord {
		inst.Op = OpHalt
		return inst
	}

	switch inst.Opcode {
	case OpcodeOpImm:
		d.decodeOpImm(inst)
	case OpcodeOp:
		d.decodeOp(inst)
	case OpcodeLoad:
		d.decodeLoad(inst)
	case OpcodeStore:
		d.decodeStore(inst)
	case OpcodeBranch:
		d.decodeBranch(inst)
	case OpcodeLUI:
		inst.Op = OpLUI
		inst.Format = FormatU
		inst.Imm = ImmU(word)
	case OpcodeAUIPC:
		inst.Op = OpAUIPC
		inst.Format = FormatU
		inst.Imm = ImmU(word)
	case OpcodeJAL:
		inst.Op = OpJAL
		inst.Format = FormatJ
		inst.Imm = ImmJ(word)
	case OpcodeJALR:
		if inst.Funct3 == 0 {
			inst.Op = OpJALR
			inst.Format = FormatI
			inst.Imm = ImmI(word)
		}
	}

	return inst
}

var opImmByFunct3 = [8]Op{
	0: OpADDI,
	1: OpSLLI,
	2: OpSLTI,
	3: OpSLTIU,
	4: OpXORI,
	5: OpSRLI,
	6: OpORI,
	7: OpANDI,
}

// decodeOpImm decodes register-immediate arithmetic.
// Format: imm[11:0] | rs1 | funct3 | rd | 0010011
func (d *Decoder) decodeOpImm(inst *Instruction) {
	op := opImmByFunct3[inst.Funct3]
	imm := ImmI(inst.Word)

	switch op {
	case OpSLLI:
		if inst.Funct7 != Funct7Base {
			return
		}
		imm &= 0x1F
	case OpSRLI:
		switch inst.Funct7 {
		case Funct7Base:
		case Funct7Alt:
			op = OpSRAI
		default:
			return
		}
		imm &= 0x1F
	}

	inst.Op = op
	inst.Format = FormatI
	inst.Imm = imm
}

var (
	opBaseByFunct3 = [8]Op{OpADD, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpOR, OpAND}
	opMulByFunct3  = [8]Op{OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU}
)

// decodeOp decodes register-register arithmetic, including the M group.
// Format: funct7 | rs2 | rs1 | funct3 | rd | 0110011
func (d *Decoder) decodeOp(inst *Instruction) {
	switch inst.Funct7 {
	case Funct7Base:
		inst.Op = opBaseByFunct3[inst.Funct3]
	case Funct7MulDiv:
		inst.Op = opMulByFunct3[inst.Funct3]
	case Funct7Alt:
		switch inst.Funct3 {
		case 0:
			inst.Op = OpSUB
		case 5:
			inst.Op = OpSRA
		default:
			return
		}
	default:
		return
	}

	inst.Format = FormatR
}

// decodeLoad decodes loads. Only word loads are supported.
func (d *Decoder) decodeLoad(inst *Instruction) {
	if inst.Funct3 != 2 {
		return
	}
	inst.Op = OpLW
	inst.Format = FormatI
	inst.Imm = ImmI(inst.Word)
}

// decodeStore decodes stores. Only word stores are supported.
func (d *Decoder) decodeStore(inst *Instruction) {
	if inst.Funct3 != 2 {
		return
	}
	inst.Op = OpSW
	inst.Format = FormatS
	inst.Imm = ImmS(inst.Word)
}

var branchByFunct3 = [8]Op{OpBEQ, OpBNE, OpUnknown, OpUnknown, OpBLT, OpBGE, OpBLTU, OpBGEU}

// decodeBranch decodes conditional branches.
// Format: imm[12|10:5] | rs2 | rs1 | funct3 | imm[4:1|11] | 1100011
func (d *Decoder) decodeBranch(inst *Instruction) {
	op := branchByFunct3[inst.Funct3]
	if op == OpUnknown {
		return
	}
	inst.Op = op
	inst.Format = FormatB
	inst.Imm = ImmB(inst.Word)
}
