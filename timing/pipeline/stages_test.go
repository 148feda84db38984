package pipeline_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

var _ = Describe("Pipeline Stages", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		c       *cache.Cache
		logger  *logrus.Logger
		logHook *logtest.Hook
	)

	BeforeEach(func() {
		var err error

		regFile = &emu.RegFile{}
		memory = emu.NewMemory(1024)
		c, err = cache.New(
			cache.Config{Size: 64, BlockSize: 16},
			cache.NewMemoryBacking(memory),
		)
		Expect(err).NotTo(HaveOccurred())

		logger, logHook = logtest.NewNullLogger()
	})

	Describe("FetchStage", func() {
		var fetchStage *pipeline.FetchStage

		BeforeEach(func() {
			fetchStage = pipeline.NewFetchStage(c, logger)
		})

		It("should fetch instruction from memory", func() {
			memory.Write32(0x100, 0x00A00293)

			Expect(fetchStage.Fetch(0x100)).To(Equal(uint32(0x00A00293)))
		})

		It("should fetch sequential instructions", func() {
			memory.Write32(0x100, 0x00A00293)
			memory.Write32(0x104, 0x00C00313)

			Expect(fetchStage.Fetch(0x100)).To(Equal(uint32(0x00A00293)))
			Expect(fetchStage.Fetch(0x104)).To(Equal(uint32(0x00C00313)))
			Expect(c.Stats().Hits).To(Equal(uint64(1)))
		})

		It("should return the halt word on a misaligned fetch", func() {
			memory.Write32(0x100, 0x00A00293)

			Expect(fetchStage.Fetch(0x102)).To(Equal(insts.HaltWord))
			Expect(logHook.LastEntry().Level).To(Equal(logrus.WarnLevel))
		})

		It("should return the halt word past the end of memory", func() {
			Expect(fetchStage.Fetch(2048)).To(Equal(insts.HaltWord))
		})
	})

	Describe("DecodeStage", func() {
		var (
			decodeStage *pipeline.DecodeStage
			prev        *pipeline.IDEXRegister
		)

		BeforeEach(func() {
			decodeStage = pipeline.NewDecodeStage(
				regFile, pipeline.NewHazardUnit(), logger)
			prev = &pipeline.IDEXRegister{}
		})

		ifid := func(word uint32) *pipeline.IFIDRegister {
			return &pipeline.IFIDRegister{
				Valid:           true,
				PC:              0x40,
				InstructionWord: word,
			}
		}

		It("should decode an immediate ALU instruction", func() {
			regFile.WriteReg(1, 100)

			result := decodeStage.Decode(
				ifid(insts.MustAssemble(insts.OpADDI, 5, 1, 0, -3)), prev, false)

			Expect(result.Stall).To(BeFalse())
			Expect(result.Halt).To(BeFalse())
			Expect(result.IDEX.Valid).To(BeTrue())
			Expect(result.IDEX.PC).To(Equal(uint32(0x40)))
			Expect(result.IDEX.Op).To(Equal(insts.OpADDI))
			Expect(result.IDEX.Rd).To(Equal(uint8(5)))
			Expect(result.IDEX.Rs1).To(Equal(uint8(1)))
			Expect(result.IDEX.Rs1Value).To(Equal(uint32(100)))
			Expect(result.IDEX.Imm).To(Equal(int32(-3)))
			Expect(result.IDEX.UseALU).To(BeTrue())
			Expect(result.IDEX.ALUOp).To(Equal(emu.ALUAdd))
			Expect(result.IDEX.RegWrite).To(BeTrue())
			Expect(result.IDEX.MemRead).To(BeFalse())
		})

		It("should set load control signals", func() {
			result := decodeStage.Decode(
				ifid(insts.MustAssemble(insts.OpLW, 5, 1, 0, 8)), prev, false)

			Expect(result.IDEX.MemRead).To(BeTrue())
			Expect(result.IDEX.MemToReg).To(BeTrue())
			Expect(result.IDEX.RegWrite).To(BeTrue())
			Expect(result.IDEX.MemWrite).To(BeFalse())
		})

		It("should set store control signals", func() {
			result := decodeStage.Decode(
				ifid(insts.MustAssemble(insts.OpSW, 0, 1, 5, 8)), prev, false)

			Expect(result.IDEX.MemWrite).To(BeTrue())
			Expect(result.IDEX.RegWrite).To(BeFalse())
		})

		It("should set branch control signals", func() {
			result := decodeStage.Decode(
				ifid(insts.MustAssemble(insts.OpBNE, 0, 1, 2, -8)), prev, false)

			Expect(result.IDEX.IsBranch).To(BeTrue())
			Expect(result.IDEX.RegWrite).To(BeFalse())
			Expect(result.IDEX.Imm).To(Equal(int32(-8)))
		})

		It("should set jump control signals", func() {
			result := decodeStage.Decode(
				ifid(insts.MustAssemble(insts.OpJAL, 1, 0, 0, 16)), prev, false)

			Expect(result.IDEX.IsJump).To(BeTrue())
			Expect(result.IDEX.RegWrite).To(BeTrue())
		})

		It("should squash the instruction on a flush", func() {
			result := decodeStage.Decode(
				ifid(insts.MustAssemble(insts.OpADDI, 5, 0, 0, 1)), prev, true)

			Expect(result.IDEX.Valid).To(BeFalse())
			Expect(result.Stall).To(BeFalse())
		})

		It("should pass through an empty IF/ID register", func() {
			result := decodeStage.Decode(&pipeline.IFIDRegister{}, prev, false)

			Expect(result.IDEX.Valid).To(BeFalse())
		})

		It("should stall on a load-use hazard", func() {
			prev = &pipeline.IDEXRegister{
				Valid:    true,
				MemRead:  true,
				RegWrite: true,
				Rd:       5,
			}

			result := decodeStage.Decode(
				ifid(insts.MustAssemble(insts.OpADD, 6, 5, 5, 0)), prev, false)

			Expect(result.Stall).To(BeTrue())
			Expect(result.IDEX.Valid).To(BeFalse())
		})

		It("should let a flush win over a load-use hazard", func() {
			prev = &pipeline.IDEXRegister{
				Valid:    true,
				MemRead:  true,
				RegWrite: true,
				Rd:       5,
			}

			result := decodeStage.Decode(
				ifid(insts.MustAssemble(insts.OpADD, 6, 5, 5, 0)), prev, true)

			Expect(result.Stall).To(BeFalse())
		})

		It("should mark the termination sentinel", func() {
			result := decodeStage.Decode(ifid(insts.HaltWord), prev, false)

			Expect(result.Halt).To(BeTrue())
			Expect(result.IDEX.Valid).To(BeTrue())
			Expect(result.IDEX.Halt).To(BeTrue())
			Expect(result.IDEX.RegWrite).To(BeFalse())
		})

		It("should turn an unknown instruction into a bubble", func() {
			result := decodeStage.Decode(ifid(0x0000007F), prev, false)

			Expect(result.IDEX.Valid).To(BeFalse())
			Expect(result.Halt).To(BeFalse())
			Expect(result.Stall).To(BeFalse())
		})
	})

	Describe("ExecuteStage", func() {
		var (
			executeStage *pipeline.ExecuteStage
			memwb        *pipeline.MEMWBRegister
		)

		BeforeEach(func() {
			executeStage = pipeline.NewExecuteStage(regFile, pipeline.NewHazardUnit())
			memwb = &pipeline.MEMWBRegister{}
		})

		It("should compute a register-register result", func() {
			regFile.WriteReg(5, 10)
			regFile.WriteReg(6, 32)
			idex := &pipeline.IDEXRegister{
				Valid: true, Op: insts.OpSUB, Rd: 7, Rs1: 6, Rs2: 5,
				UseALU: true, ALUOp: emu.ALUSub, RegWrite: true,
			}

			result := executeStage.Execute(idex, memwb)

			Expect(result.EXMEM.Valid).To(BeTrue())
			Expect(result.EXMEM.ALUResult).To(Equal(uint32(22)))
			Expect(result.EXMEM.Rd).To(Equal(uint8(7)))
			Expect(result.EXMEM.RegWrite).To(BeTrue())
			Expect(result.Redirect).To(BeFalse())
		})

		It("should read registers at execute time", func() {
			regFile.WriteReg(5, 10)
			idex := &pipeline.IDEXRegister{
				Valid: true, Op: insts.OpADDI, Rd: 7, Rs1: 5, Rs1Value: 1,
				Imm: 1, UseALU: true, ALUOp: emu.ALUAdd, RegWrite: true,
			}

			result := executeStage.Execute(idex, memwb)

			Expect(result.EXMEM.ALUResult).To(Equal(uint32(11)))
		})

		It("should forward from MEM/WB", func() {
			regFile.WriteReg(5, 1)
			regFile.WriteReg(6, 2)
			memwb = &pipeline.MEMWBRegister{
				Valid: true, RegWrite: true, Rd: 5, ALUResult: 10,
			}
			idex := &pipeline.IDEXRegister{
				Valid: true, Op: insts.OpADD, Rd: 7, Rs1: 5, Rs2: 6,
				UseALU: true, ALUOp: emu.ALUAdd, RegWrite: true,
			}

			result := executeStage.Execute(idex, memwb)

			Expect(result.EXMEM.ALUResult).To(Equal(uint32(12)))
		})

		It("should forward loaded data from MEM/WB", func() {
			memwb = &pipeline.MEMWBRegister{
				Valid: true, RegWrite: true, MemToReg: true, Rd: 5,
				ALUResult: 0x100, ReadData: 40,
			}
			idex := &pipeline.IDEXRegister{
				Valid: true, Op: insts.OpADD, Rd: 7, Rs1: 5, Rs2: 5,
				UseALU: true, ALUOp: emu.ALUAdd, RegWrite: true,
			}

			result := executeStage.Execute(idex, memwb)

			Expect(result.EXMEM.ALUResult).To(Equal(uint32(80)))
		})

		It("should forward the store value", func() {
			regFile.WriteReg(1, 0x80)
			memwb = &pipeline.MEMWBRegister{
				Valid: true, RegWrite: true, Rd: 5, ALUResult: 77,
			}
			idex := &pipeline.IDEXRegister{
				Valid: true, Op: insts.OpSW, Rs1: 1, Rs2: 5, Imm: 4,
				UseALU: true, ALUOp: emu.ALUAdd, MemWrite: true,
			}

			result := executeStage.Execute(idex, memwb)

			Expect(result.EXMEM.ALUResult).To(Equal(uint32(0x84)))
			Expect(result.EXMEM.StoreValue).To(Equal(uint32(77)))
			Expect(result.EXMEM.MemWrite).To(BeTrue())
		})

		It("should redirect on a taken branch", func() {
			regFile.WriteReg(1, 3)
			regFile.WriteReg(2, 3)
			idex := &pipeline.IDEXRegister{
				Valid: true, PC: 0x20, Op: insts.OpBEQ, Rs1: 1, Rs2: 2,
				Imm: -16, IsBranch: true,
			}

			result := executeStage.Execute(idex, memwb)

			Expect(result.Redirect).To(BeTrue())
			Expect(result.Target).To(Equal(uint32(0x10)))
			Expect(result.EXMEM.RegWrite).To(BeFalse())
		})

		It("should not redirect on a branch that is not taken", func() {
			regFile.WriteReg(1, 3)
			idex := &pipeline.IDEXRegister{
				Valid: true, PC: 0x20, Op: insts.OpBEQ, Rs1: 1, Rs2: 2,
				Imm: -16, IsBranch: true,
			}

			result := executeStage.Execute(idex, memwb)

			Expect(result.Redirect).To(BeFalse())
		})

		It("should link and redirect on jal", func() {
			idex := &pipeline.IDEXRegister{
				Valid: true, PC: 0x20, Op: insts.OpJAL, Rd: 1, Imm: 0x40,
				UseALU: true, ALUOp: emu.ALUAdd, RegWrite: true, IsJump: true,
			}

			result := executeStage.Execute(idex, memwb)

			Expect(result.EXMEM.ALUResult).To(Equal(uint32(0x24)))
			Expect(result.Redirect).To(BeTrue())
			Expect(result.Target).To(Equal(uint32(0x60)))
		})

		It("should clear the low bit of a jalr target", func() {
			regFile.WriteReg(5, 0x101)
			idex := &pipeline.IDEXRegister{
				Valid: true, PC: 0x20, Op: insts.OpJALR, Rd: 1, Rs1: 5, Imm: 2,
				UseALU: true, ALUOp: emu.ALUAdd, RegWrite: true, IsJump: true,
			}

			result := executeStage.Execute(idex, memwb)

			Expect(result.EXMEM.ALUResult).To(Equal(uint32(0x24)))
			Expect(result.Target).To(Equal(uint32(0x102)))
		})

		It("should pass the termination marker along", func() {
			idex := &pipeline.IDEXRegister{
				Valid: true, PC: 0x30, Op: insts.OpHalt, Halt: true,
			}

			result := executeStage.Execute(idex, memwb)

			Expect(result.EXMEM.Valid).To(BeTrue())
			Expect(result.EXMEM.Halt).To(BeTrue())
			Expect(result.Redirect).To(BeFalse())
		})

		It("should produce a bubble from a bubble", func() {
			result := executeStage.Execute(&pipeline.IDEXRegister{}, memwb)

			Expect(result.EXMEM.Valid).To(BeFalse())
		})
	})

	Describe("MemoryStage", func() {
		var memoryStage *pipeline.MemoryStage

		BeforeEach(func() {
			memoryStage = pipeline.NewMemoryStage(c, logger)
		})

		It("should load a word through the cache", func() {
			memory.Write32(0x80, 1234)
			exmem := &pipeline.EXMEMRegister{
				Valid: true, ALUResult: 0x80, Rd: 5,
				MemRead: true, RegWrite: true, MemToReg: true,
			}

			memwb := memoryStage.Access(exmem)

			Expect(memwb.Valid).To(BeTrue())
			Expect(memwb.ReadData).To(Equal(uint32(1234)))
			Expect(memwb.Result()).To(Equal(uint32(1234)))
			Expect(c.Stats().Misses).To(Equal(uint64(1)))
		})

		It("should store a word through the cache", func() {
			exmem := &pipeline.EXMEMRegister{
				Valid: true, ALUResult: 0x80, StoreValue: 55, MemWrite: true,
			}

			memwb := memoryStage.Access(exmem)

			Expect(memwb.Valid).To(BeTrue())
			Expect(memory.Read32(0x80)).To(Equal(uint32(55)))
		})

		It("should pass ALU results through", func() {
			exmem := &pipeline.EXMEMRegister{
				Valid: true, ALUResult: 9, Rd: 3, RegWrite: true,
			}

			memwb := memoryStage.Access(exmem)

			Expect(memwb.Result()).To(Equal(uint32(9)))
			Expect(memwb.Rd).To(Equal(uint8(3)))
			Expect(c.Stats().Reads).To(BeZero())
		})

		It("should yield zero for a misaligned load", func() {
			memory.Write32(0x80, 1234)
			exmem := &pipeline.EXMEMRegister{
				Valid: true, ALUResult: 0x82, Rd: 5,
				MemRead: true, RegWrite: true, MemToReg: true,
			}

			memwb := memoryStage.Access(exmem)

			Expect(memwb.Valid).To(BeTrue())
			Expect(memwb.ReadData).To(BeZero())
			Expect(logHook.LastEntry().Message).To(Equal("load rejected"))
		})

		It("should drop an out-of-range store", func() {
			exmem := &pipeline.EXMEMRegister{
				Valid: true, ALUResult: 4096, StoreValue: 1, MemWrite: true,
			}

			memwb := memoryStage.Access(exmem)

			Expect(memwb.Valid).To(BeTrue())
			Expect(logHook.LastEntry().Message).To(Equal("store dropped"))
		})

		It("should carry the termination marker", func() {
			memwb := memoryStage.Access(&pipeline.EXMEMRegister{Valid: true, Halt: true})

			Expect(memwb.Halt).To(BeTrue())
		})

		It("should produce a bubble from a bubble", func() {
			memwb := memoryStage.Access(&pipeline.EXMEMRegister{})

			Expect(memwb.Valid).To(BeFalse())
		})
	})

	Describe("WritebackStage", func() {
		var writebackStage *pipeline.WritebackStage

		BeforeEach(func() {
			writebackStage = pipeline.NewWritebackStage(regFile)
		})

		It("should write the ALU result", func() {
			retired := writebackStage.Writeback(&pipeline.MEMWBRegister{
				Valid: true, Rd: 5, RegWrite: true, ALUResult: 42,
			})

			Expect(retired).To(BeTrue())
			Expect(regFile.ReadReg(5)).To(Equal(uint32(42)))
		})

		It("should write loaded data", func() {
			writebackStage.Writeback(&pipeline.MEMWBRegister{
				Valid: true, Rd: 5, RegWrite: true, MemToReg: true,
				ALUResult: 0x80, ReadData: 7,
			})

			Expect(regFile.ReadReg(5)).To(Equal(uint32(7)))
		})

		It("should not write x0", func() {
			retired := writebackStage.Writeback(&pipeline.MEMWBRegister{
				Valid: true, Rd: 0, RegWrite: true, ALUResult: 42,
			})

			Expect(retired).To(BeTrue())
			Expect(regFile.ReadReg(0)).To(BeZero())
		})

		It("should retire stores without writing", func() {
			retired := writebackStage.Writeback(&pipeline.MEMWBRegister{
				Valid: true, Rd: 5, ALUResult: 42,
			})

			Expect(retired).To(BeTrue())
			Expect(regFile.ReadReg(5)).To(BeZero())
		})

		It("should not retire bubbles or the termination marker", func() {
			Expect(writebackStage.Writeback(&pipeline.MEMWBRegister{})).To(BeFalse())
			Expect(writebackStage.Writeback(
				&pipeline.MEMWBRegister{Valid: true, Halt: true})).To(BeFalse())
		})
	})
})
