package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/rvsim/emu"
)

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory(64)
	})

	It("should store words little-endian", func() {
		memory.Write32(8, 0x11223344)

		Expect(memory.Read8(8)).To(Equal(uint8(0x44)))
		Expect(memory.Read8(9)).To(Equal(uint8(0x33)))
		Expect(memory.Read8(10)).To(Equal(uint8(0x22)))
		Expect(memory.Read8(11)).To(Equal(uint8(0x11)))
		Expect(memory.Read32(8)).To(Equal(uint32(0x11223344)))
	})

	It("should read 0 outside the memory", func() {
		Expect(memory.Read8(64)).To(Equal(uint8(0)))
		Expect(memory.Read8(0xFFFFFFFF)).To(Equal(uint8(0)))
		Expect(memory.Read32(62)).To(Equal(uint32(0)))
	})

	It("should drop writes outside the memory", func() {
		memory.Write32(62, 0xFFFFFFFF)
		memory.Write8(64, 1)

		Expect(memory.Read8(62)).To(Equal(uint8(0)))
		Expect(memory.Read8(63)).To(Equal(uint8(0)))
	})

	It("should load program words from address 0", func() {
		memory.Write32(0, 0xFFFFFFFF)
		memory.LoadWords([]uint32{0x00A00293, 0x00C00313})

		Expect(memory.Read32(0)).To(Equal(uint32(0x00A00293)))
		Expect(memory.Read32(4)).To(Equal(uint32(0x00C00313)))
	})

	It("should copy blocks", func() {
		memory.WriteBlock(16, []byte{1, 2, 3, 4})

		Expect(memory.ReadBlock(16, 4)).To(Equal([]byte{1, 2, 3, 4}))
		Expect(memory.ReadBlock(62, 4)).To(Equal([]byte{0, 0, 0, 0}))
	})

	It("should tell whether a range is inside", func() {
		Expect(memory.Contains(60, 4)).To(BeTrue())
		Expect(memory.Contains(61, 4)).To(BeFalse())
		Expect(memory.Contains(0xFFFFFFFE, 4)).To(BeFalse())
	})
})
