package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

func asm(op insts.Op, rd, rs1, rs2 uint8, imm int32) uint32 {
	return insts.MustAssemble(op, rd, rs1, rs2, imm)
}

var _ sim.Ticker = (*core.Core)(nil)

var _ = Describe("Core", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		c       *core.Core
	)

	BeforeEach(func() {
		var err error

		logger, _ := logtest.NewNullLogger()
		regFile = &emu.RegFile{}
		memory = emu.NewMemory(4096)
		c, err = core.NewCore(regFile, memory,
			pipeline.WithCacheConfig(cache.Config{Size: 256, BlockSize: 16}),
			pipeline.WithLogger(logger),
		)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should create a core with pipeline", func() {
		Expect(c.Pipeline).NotTo(BeNil())
		Expect(c.Memory()).To(BeIdenticalTo(memory))
		Expect(c.PC()).To(BeZero())
		Expect(c.IsFinished()).To(BeFalse())
	})

	It("should fail on an invalid cache geometry", func() {
		_, err := core.NewCore(regFile, memory,
			pipeline.WithCacheConfig(cache.Config{Size: 256, BlockSize: 3}))

		Expect(err).To(MatchError(cache.ErrInvalidConfig))
	})

	Describe("SetRegister", func() {
		It("should write a register", func() {
			Expect(c.SetRegister(7, 0xDEADBEEF)).To(Succeed())

			Expect(c.Registers()[7]).To(Equal(uint32(0xDEADBEEF)))
		})

		It("should report a write to x0 without changing it", func() {
			err := c.SetRegister(0, 5)

			Expect(err).To(MatchError(emu.ErrZeroRegister))
			Expect(c.Registers()[0]).To(BeZero())
		})

		It("should reject an index out of range", func() {
			before := c.Registers()

			Expect(c.SetRegister(32, 5)).To(MatchError(emu.ErrInvalidRegister))
			Expect(c.SetRegister(-1, 5)).To(MatchError(emu.ErrInvalidRegister))
			Expect(c.Registers()).To(Equal(before))
		})
	})

	Describe("LoadProgram", func() {
		It("should store words little-endian from address 0", func() {
			c.LoadProgram([]uint32{0x11223344, 0xAABBCCDD})

			Expect(c.MemoryByte(0)).To(Equal(uint8(0x44)))
			Expect(c.MemoryByte(3)).To(Equal(uint8(0x11)))
			Expect(c.MemoryByte(4)).To(Equal(uint8(0xDD)))
		})

		It("should overwrite what was there", func() {
			c.LoadProgram([]uint32{0x11223344, 0xAABBCCDD})
			c.LoadProgram([]uint32{0x55})

			Expect(c.MemoryByte(0)).To(Equal(uint8(0x55)))
			Expect(c.MemoryByte(1)).To(BeZero())
			Expect(c.MemoryByte(4)).To(Equal(uint8(0xDD)))
		})
	})

	It("should read zero past the end of memory", func() {
		Expect(c.MemoryByte(4096)).To(BeZero())
		Expect(c.MemoryByte(0xFFFFFFFF)).To(BeZero())
	})

	It("should execute instructions through tick", func() {
		c.LoadProgram([]uint32{asm(insts.OpADDI, 1, 0, 0, 42), insts.HaltWord})

		for i := 0; i < 5; i++ {
			Expect(c.Tick()).To(BeTrue())
		}

		Expect(c.Registers()[1]).To(Equal(uint32(42)))
	})

	It("should stop ticking once finished", func() {
		c.LoadProgram([]uint32{insts.HaltWord})

		for i := 0; i < 5; i++ {
			c.Tick()
		}

		Expect(c.IsFinished()).To(BeTrue())
		Expect(c.PC()).To(Equal(uint32(4096)))
		Expect(c.Tick()).To(BeFalse())
		Expect(c.Stats().Cycles).To(Equal(uint64(5)))
	})

	It("should expose the pipeline state", func() {
		c.LoadProgram([]uint32{asm(insts.OpADDI, 1, 0, 0, 42), insts.HaltWord})

		c.Tick()
		c.Tick()

		state := c.PipelineState()
		Expect(state.PC).To(Equal(uint32(8)))
		Expect(state.IFID.Valid).To(BeTrue())
		Expect(state.IFID.InstructionWord).To(Equal(insts.HaltWord))
		Expect(state.IDEX.Op).To(Equal(insts.OpADDI))
	})

	It("should expose the cache lines", func() {
		c.LoadProgram([]uint32{asm(insts.OpADDI, 1, 0, 0, 42), insts.HaltWord})

		c.Tick()

		lines := c.CacheLines()
		Expect(lines).To(HaveLen(16))
		Expect(lines[0].Valid).To(BeTrue())
		Expect(lines[0].Tag).To(BeZero())
		Expect(lines[1].Valid).To(BeFalse())
	})

	Describe("Run", func() {
		It("should run to completion", func() {
			c.LoadProgram([]uint32{
				asm(insts.OpADDI, 5, 0, 0, 10),
				asm(insts.OpADDI, 6, 0, 0, 12),
				asm(insts.OpAND, 7, 5, 6, 0),
				insts.HaltWord,
			})

			stats, err := c.Run(0)

			Expect(err).NotTo(HaveOccurred())
			Expect(c.Registers()[7]).To(Equal(uint32(8)))
			Expect(stats.Cycles).To(Equal(uint64(8)))
			Expect(stats.Instructions).To(Equal(uint64(3)))
			Expect(stats.CPI()).To(BeNumerically("~", 8.0/3.0))
			Expect(stats.Cache.Reads).To(Equal(uint64(4)))
			Expect(stats.Cache.Misses).To(Equal(uint64(1)))
			Expect(stats.HitRate()).To(Equal(0.75))
		})

		It("should stop at the cycle limit", func() {
			c.LoadProgram([]uint32{asm(insts.OpJAL, 0, 0, 0, 0)})

			stats, err := c.Run(100)

			Expect(err).To(MatchError(core.ErrMaxCycles))
			Expect(stats.Cycles).To(Equal(uint64(100)))
			Expect(c.IsFinished()).To(BeFalse())
		})
	})

	It("should run for specified cycles and return running status", func() {
		c.LoadProgram([]uint32{asm(insts.OpJAL, 0, 0, 0, 0)})

		Expect(c.RunCycles(5)).To(BeTrue())
		Expect(c.Stats().Cycles).To(Equal(uint64(5)))
	})

	It("should report the branch profile", func() {
		c.LoadProgram([]uint32{
			asm(insts.OpBEQ, 0, 0, 0, 8),
			asm(insts.OpADDI, 1, 0, 0, 1),
			asm(insts.OpBNE, 0, 0, 0, 8),
			insts.HaltWord,
		})
		stats, err := c.Run(0)
		Expect(err).NotTo(HaveOccurred())

		Expect(stats.Branches.Predictions).To(Equal(uint64(2)))
		Expect(stats.Branches.Taken).To(Equal(uint64(1)))
		Expect(stats.Branches.StaticAccuracy()).To(BeNumerically("~", 50.0, 0.1))
	})

	It("should reset core state", func() {
		c.LoadProgram([]uint32{asm(insts.OpADDI, 1, 0, 0, 42), insts.HaltWord})
		_, err := c.Run(0)
		Expect(err).NotTo(HaveOccurred())

		c.Reset()

		Expect(c.PC()).To(BeZero())
		Expect(c.Registers()).To(Equal([emu.NumRegs]uint32{}))
		Expect(c.Stats()).To(Equal(core.Stats{}))
		Expect(c.PipelineState()).To(Equal(pipeline.State{}))
		for _, line := range c.CacheLines() {
			Expect(line.Valid).To(BeFalse())
		}
		Expect(c.MemoryByte(0)).NotTo(BeZero())
	})

	Describe("against the functional emulator", func() {
		programs := map[string][]uint32{
			"fibonacci": {
				asm(insts.OpADDI, 5, 0, 0, 0),
				asm(insts.OpADDI, 6, 0, 0, 1),
				asm(insts.OpADDI, 7, 0, 0, 20),
				asm(insts.OpADD, 8, 5, 6, 0), // loop
				asm(insts.OpADD, 5, 6, 0, 0),
				asm(insts.OpADD, 6, 8, 0, 0),
				asm(insts.OpADDI, 7, 7, 0, -1),
				asm(insts.OpBNE, 0, 7, 0, -16),
				insts.HaltWord,
			},
			"memcpy": {
				asm(insts.OpADDI, 1, 0, 0, 0x400),
				asm(insts.OpADDI, 2, 0, 0, 0x600),
				asm(insts.OpADDI, 3, 0, 0, 16),
				asm(insts.OpADDI, 9, 0, 0, 7),
				asm(insts.OpSW, 0, 1, 3, 0), // fill
				asm(insts.OpMUL, 9, 9, 3, 0),
				asm(insts.OpADD, 3, 3, 9, 0),
				asm(insts.OpADDI, 1, 1, 0, 4),
				asm(insts.OpBLTU, 0, 1, 2, -16),
				asm(insts.OpADDI, 1, 0, 0, 0x400),
				asm(insts.OpLW, 4, 1, 0, 0), // copy
				asm(insts.OpSW, 0, 1, 4, 0x200),
				asm(insts.OpXOR, 10, 10, 4, 0),
				asm(insts.OpADDI, 1, 1, 0, 4),
				asm(insts.OpBNE, 0, 1, 2, -16),
				insts.HaltWord,
			},
			"shifts and compares": {
				asm(insts.OpLUI, 5, 0, 0, 0xF0000),
				asm(insts.OpSRAI, 6, 5, 0, 4),
				asm(insts.OpSRLI, 7, 5, 0, 4),
				asm(insts.OpSLT, 8, 5, 7, 0),
				asm(insts.OpSLTU, 9, 5, 7, 0),
				asm(insts.OpMULH, 10, 5, 5, 0),
				asm(insts.OpMULHU, 11, 5, 5, 0),
				asm(insts.OpMULHSU, 12, 5, 5, 0),
				asm(insts.OpDIVU, 13, 5, 7, 0),
				asm(insts.OpREM, 14, 5, 7, 0),
				asm(insts.OpORI, 15, 14, 0, -256),
				asm(insts.OpANDI, 16, 15, 0, 0x7F0),
				asm(insts.OpXORI, 17, 16, 0, -1),
				asm(insts.OpSLTI, 18, 17, 0, 0),
				asm(insts.OpSLTIU, 19, 17, 0, 1),
				asm(insts.OpSLL, 20, 6, 19, 0),
				insts.HaltWord,
			},
		}

		for name, program := range programs {
			It("should agree on "+name, func() {
				e := emu.NewEmulator(4096)
				e.LoadProgram(program)
				Expect(e.Run().Err).NotTo(HaveOccurred())

				c.LoadProgram(program)
				_, err := c.Run(100000)
				Expect(err).NotTo(HaveOccurred())

				Expect(c.Registers()).To(Equal(e.RegFile().Snapshot()))
				for addr := uint32(0x400); addr < 0x800; addr += 4 {
					Expect(memory.Read32(addr)).To(Equal(e.Memory().Read32(addr)),
						"memory at 0x%x", addr)
				}
			})
		}
	})
})
