package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/insts"
)

var _ = Describe("Field extraction", func() {
	// and x7, x5, x6 -> 0x0062F3B3
	It("should split an R-type word into its fields", func() {
		word := uint32(0x0062F3B3)

		Expect(insts.Opcode(word)).To(Equal(uint32(0x33)))
		Expect(insts.Rd(word)).To(Equal(uint8(7)))
		Expect(insts.Funct3(word)).To(Equal(uint32(7)))
		Expect(insts.Rs1(word)).To(Equal(uint8(5)))
		Expect(insts.Rs2(word)).To(Equal(uint8(6)))
		Expect(insts.Funct7(word)).To(Equal(uint32(0)))
	})

	It("should read funct7 of sub", func() {
		// sub x7, x5, x6 -> 0x406283B3
		Expect(insts.Funct7(0x406283B3)).To(Equal(uint32(0x20)))
	})
})

var _ = Describe("Immediates", func() {
	Context("I-type", func() {
		It("should extract a positive immediate", func() {
			// addi x5, x0, 10
			Expect(insts.ImmI(0x00A00293)).To(Equal(int32(10)))
		})

		It("should sign-extend from bit 11", func() {
			// addi x11, x10, -1
			Expect(insts.ImmI(0xFFF50593)).To(Equal(int32(-1)))
		})

		It("should extract the most negative immediate", func() {
			// addi x1, x0, -2048
			Expect(insts.ImmI(0x80000093)).To(Equal(int32(-2048)))
		})
	})

	Context("S-type", func() {
		It("should gather the split fields", func() {
			// sw x5, 8(x1) -> 0x0050A423
			Expect(insts.ImmS(0x0050A423)).To(Equal(int32(8)))
		})

		It("should sign-extend", func() {
			// sw x5, -4(x1)
			Expect(insts.ImmS(0xFE50AE23)).To(Equal(int32(-4)))
		})
	})

	Context("B-type", func() {
		It("should reconstruct a forward offset", func() {
			// beq x0, x0, 12
			Expect(insts.ImmB(0x00000663)).To(Equal(int32(12)))
		})

		It("should reconstruct a backward offset", func() {
			// beq x0, x0, -4
			Expect(insts.ImmB(0xFE000EE3)).To(Equal(int32(-4)))
		})

		It("should place bit 11 from word bit 7", func() {
			// beq x0, x0, 2048 -> only imm[11] set
			Expect(insts.ImmB(0x00000063 | 1<<7)).To(Equal(int32(2048)))
		})
	})

	Context("U-type", func() {
		It("should keep the upper 20 bits", func() {
			// lui x5, 0x12345
			Expect(insts.ImmU(0x123452B7)).To(Equal(int32(0x12345000)))
		})

		It("should carry the sign bit", func() {
			Expect(uint32(insts.ImmU(0xFFFFF2B7))).To(Equal(uint32(0xFFFFF000)))
		})
	})

	Context("J-type", func() {
		It("should reconstruct a forward offset", func() {
			// jal x1, 8
			Expect(insts.ImmJ(0x008000EF)).To(Equal(int32(8)))
		})

		It("should reconstruct a backward offset", func() {
			// jal x0, -8
			Expect(insts.ImmJ(0xFF9FF06F)).To(Equal(int32(-8)))
		})

		It("should place bit 11 from word bit 20", func() {
			Expect(insts.ImmJ(0x0000006F | 1<<20)).To(Equal(int32(2048)))
		})
	})
})
