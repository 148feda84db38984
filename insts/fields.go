package insts

// Opcode extracts bits [6:0].
func Opcode(word uint32) uint32 { return word & 0x7F }

// Rd extracts bits [11:7].
func Rd(word uint32) uint8 { return uint8((word >> 7) & 0x1F) }

// Funct3 extracts bits [14:12].
func Funct3(word uint32) uint32 { return (word >> 12) & 0x7 }

// Rs1 extracts bits [19:15].
func Rs1(word uint32) uint8 { return uint8((word >> 15) & 0x1F) }

// Rs2 extracts bits [24:20].
func Rs2(word uint32) uint8 { return uint8((word >> 20) & 0x1F) }

// Funct7 extracts bits [31:25].
func Funct7(word uint32) uint32 { return word >> 25 }

// signExtend sign-extends the low bits of value.
func signExtend(value uint32, bits uint) int32 {
	shift := 32 - bits
	return int32(value<<shift) >> shift
}

// ImmI reconstructs the I-type immediate: imm[11:0] = word[31:20].
func ImmI(word uint32) int32 {
	return int32(word) >> 20
}

// ImmS reconstructs the S-type immediate: imm[11:5] = word[31:25],
// imm[4:0] = word[11:7].
func ImmS(word uint32) int32 {
	imm := (word>>25)<<5 | (word>>7)&0x1F
	return signExtend(imm, 12)
}

// ImmB reconstructs the B-type immediate: imm[12] = word[31],
// imm[11] = word[7], imm[10:5] = word[30:25], imm[4:1] = word[11:8].
func ImmB(word uint32) int32 {
	imm := (word>>31)<<12 |
		((word>>7)&0x1)<<11 |
		((word>>25)&0x3F)<<5 |
		((word>>8)&0xF)<<1
	return signExtend(imm, 13)
}

// ImmU reconstructs the U-type immediate: imm[31:12] = word[31:12].
func ImmU(word uint32) int32 {
	return int32(word & 0xFFFFF000)
}

// ImmJ reconstructs the J-type immediate: imm[20] = word[31],
// imm[19:12] = word[19:12], imm[11] = word[20], imm[10:1] = word[30:21].
func ImmJ(word uint32) int32 {
	imm := (word>>31)<<20 |
		((word>>12)&0xFF)<<12 |
		((word>>20)&0x1)<<11 |
		((word>>21)&0x3FF)<<1
	return signExtend(imm, 21)
}
