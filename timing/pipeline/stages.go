package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/cache"
)

// FetchStage reads instruction words through the cache.
type FetchStage struct {
	cache  *cache.Cache
	logger logrus.FieldLogger
}

// NewFetchStage creates a new fetch stage.
func NewFetchStage(c *cache.Cache, logger logrus.FieldLogger) *FetchStage {
	return &FetchStage{cache: c, logger: logger}
}

// Fetch reads the instruction word at pc. A fault yields the termination
// sentinel so that a wild jump ends the program.
func (s *FetchStage) Fetch(pc uint32) uint32 {
	result, err := s.cache.Read(pc)
	if err != nil {
		s.logger.WithError(err).
			WithField("pc", fmt.Sprintf("0x%08x", pc)).
			Warn("fetch fault, halting")
		return insts.HaltWord
	}
	return result.Data
}

// DecodeResult contains the output of the decode stage.
type DecodeResult struct {
	// IDEX is the register handed to Execute next cycle.
	IDEX IDEXRegister
	// Stall is set when a load-use hazard holds IF/ID for one cycle.
	Stall bool
	// Halt is set when the termination sentinel was decoded.
	Halt bool
}

// DecodeStage decodes instructions, reads registers and detects load-use
// hazards.
type DecodeStage struct {
	regFile    *emu.RegFile
	decoder    *insts.Decoder
	hazardUnit *HazardUnit
	logger     logrus.FieldLogger
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage(
	regFile *emu.RegFile,
	hazardUnit *HazardUnit,
	logger logrus.FieldLogger,
) *DecodeStage {
	return &DecodeStage{
		regFile:    regFile,
		decoder:    insts.NewDecoder(),
		hazardUnit: hazardUnit,
		logger:     logger,
	}
}

// Decode turns the IF/ID register into the next ID/EX register. prev is the
// ID/EX register Execute consumed this cycle; flush squashes the
// instruction in IF/ID.
func (s *DecodeStage) Decode(
	ifid *IFIDRegister,
	prev *IDEXRegister,
	flush bool,
) DecodeResult {
	if flush || !ifid.Valid {
		return DecodeResult{}
	}

	inst := s.decoder.Decode(ifid.InstructionWord)

	if s.hazardUnit.DetectLoadUseHazard(prev, inst) {
		return DecodeResult{Stall: true}
	}

	if inst.Op == insts.OpHalt {
		return DecodeResult{
			IDEX: IDEXRegister{Valid: true, PC: ifid.PC, Op: insts.OpHalt, Halt: true},
			Halt: true,
		}
	}

	ctrl, ok := controlFor(inst)
	if !ok {
		s.logger.WithFields(logrus.Fields{
			"pc":   fmt.Sprintf("0x%08x", ifid.PC),
			"word": fmt.Sprintf("0x%08x", ifid.InstructionWord),
		}).Debug("unknown instruction, inserting bubble")
		return DecodeResult{}
	}

	s.logger.WithFields(logrus.Fields{
		"pc":   fmt.Sprintf("0x%08x", ifid.PC),
		"inst": inst.String(),
	}).Debug("Decode")

	aluOp, _ := emu.ALUOpFor(inst.Op)

	return DecodeResult{
		IDEX: IDEXRegister{
			Valid:        true,
			PC:           ifid.PC,
			Op:           inst.Op,
			Opcode:       inst.Opcode,
			Rd:           inst.Rd,
			Rs1:          inst.Rs1,
			Rs2:          inst.Rs2,
			Rs1Value:     s.regFile.ReadReg(inst.Rs1),
			Rs2Value:     s.regFile.ReadReg(inst.Rs2),
			Imm:          inst.Imm,
			UseALU:       ctrl.useALU,
			ALUOp:        aluOp,
			MemRead:      ctrl.memRead,
			MemWrite:     ctrl.memWrite,
			RegWrite:     ctrl.regWrite,
			MemToReg:     ctrl.memToReg,
			IsBranch:     ctrl.isBranch,
			BranchFunct3: inst.Funct3,
			IsJump:       ctrl.isJump,
		},
	}
}

// ExecuteResult contains the output of the execute stage.
type ExecuteResult struct {
	// EXMEM is the register handed to Memory next cycle.
	EXMEM EXMEMRegister
	// Redirect is set for jumps and taken branches.
	Redirect bool
	// Target is the redirect address.
	Target uint32
}

// ExecuteStage runs the ALU and resolves branches.
type ExecuteStage struct {
	regFile    *emu.RegFile
	alu        *emu.ALU
	hazardUnit *HazardUnit
}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage(regFile *emu.RegFile, hazardUnit *HazardUnit) *ExecuteStage {
	return &ExecuteStage{
		regFile:    regFile,
		alu:        emu.NewALU(),
		hazardUnit: hazardUnit,
	}
}

// Execute consumes the ID/EX register. Operands are read from the register
// file and then overridden from memwb, which must already hold this
// cycle's Memory output.
func (s *ExecuteStage) Execute(
	idex *IDEXRegister,
	memwb *MEMWBRegister,
) ExecuteResult {
	if !idex.Valid {
		return ExecuteResult{}
	}

	if idex.Halt {
		return ExecuteResult{
			EXMEM: EXMEMRegister{Valid: true, PC: idex.PC, Op: idex.Op, Halt: true},
		}
	}

	fwd := s.hazardUnit.DetectForwarding(idex, memwb)
	rs1 := s.hazardUnit.GetForwardedValue(
		fwd.ForwardRs1, s.regFile.ReadReg(idex.Rs1), memwb)
	rs2 := s.hazardUnit.GetForwardedValue(
		fwd.ForwardRs2, s.regFile.ReadReg(idex.Rs2), memwb)

	var aluResult uint32
	if idex.UseALU {
		a, b := emu.SelectOperands(idex.Op, idex.PC, rs1, rs2, idex.Imm)
		aluResult = s.alu.Apply(idex.ALUOp, a, b)
	}

	result := ExecuteResult{
		EXMEM: EXMEMRegister{
			Valid:      true,
			PC:         idex.PC,
			Op:         idex.Op,
			ALUResult:  aluResult,
			StoreValue: rs2,
			Rd:         idex.Rd,
			MemRead:    idex.MemRead,
			MemWrite:   idex.MemWrite,
			RegWrite:   idex.RegWrite,
			MemToReg:   idex.MemToReg,
		},
	}

	if idex.IsJump || (idex.IsBranch && emu.BranchTaken(idex.Op, rs1, rs2)) {
		result.Redirect = true
		result.Target = emu.JumpTarget(idex.Op, idex.PC, rs1, idex.Imm)
	}

	return result
}

// MemoryStage performs loads and stores through the cache.
type MemoryStage struct {
	cache  *cache.Cache
	logger logrus.FieldLogger
}

// NewMemoryStage creates a new memory stage.
func NewMemoryStage(c *cache.Cache, logger logrus.FieldLogger) *MemoryStage {
	return &MemoryStage{cache: c, logger: logger}
}

// Access consumes the EX/MEM register. A rejected load yields 0 and a
// rejected store is dropped.
func (s *MemoryStage) Access(exmem *EXMEMRegister) MEMWBRegister {
	if !exmem.Valid {
		return MEMWBRegister{}
	}

	result := MEMWBRegister{
		Valid:     true,
		PC:        exmem.PC,
		Op:        exmem.Op,
		ALUResult: exmem.ALUResult,
		Rd:        exmem.Rd,
		RegWrite:  exmem.RegWrite,
		MemToReg:  exmem.MemToReg,
		Halt:      exmem.Halt,
	}

	if exmem.MemRead {
		access, err := s.cache.Read(exmem.ALUResult)
		if err != nil {
			s.logger.WithError(err).
				WithField("pc", fmt.Sprintf("0x%08x", exmem.PC)).
				Warn("load rejected")
		}
		result.ReadData = access.Data
	}

	if exmem.MemWrite {
		_, err := s.cache.Write(exmem.ALUResult, exmem.StoreValue)
		if err != nil {
			s.logger.WithError(err).
				WithField("pc", fmt.Sprintf("0x%08x", exmem.PC)).
				Warn("store dropped")
		}
	}

	return result
}

// WritebackStage commits results to the register file.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{regFile: regFile}
}

// Writeback consumes the MEM/WB register and reports whether an
// instruction retired.
func (s *WritebackStage) Writeback(memwb *MEMWBRegister) bool {
	if !memwb.Valid || memwb.Halt {
		return false
	}

	if memwb.RegWrite && memwb.Rd != 0 {
		s.regFile.WriteReg(memwb.Rd, memwb.Result())
	}

	return true
}
