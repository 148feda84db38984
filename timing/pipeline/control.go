package pipeline

import "github.com/sarchlab/rvsim/insts"

// controlSignals are the per-opcode control lines set by Decode.
type controlSignals struct {
	useALU   bool
	memRead  bool
	memWrite bool
	regWrite bool
	memToReg bool
	isBranch bool
	isJump   bool
}

var controlByOpcode = map[uint32]controlSignals{
	insts.OpcodeOpImm:  {useALU: true, regWrite: true},
	insts.OpcodeOp:     {useALU: true, regWrite: true},
	insts.OpcodeLoad:   {useALU: true, memRead: true, regWrite: true, memToReg: true},
	insts.OpcodeStore:  {useALU: true, memWrite: true},
	insts.OpcodeLUI:    {useALU: true, regWrite: true},
	insts.OpcodeAUIPC:  {useALU: true, regWrite: true},
	insts.OpcodeJAL:    {useALU: true, regWrite: true, isJump: true},
	insts.OpcodeJALR:   {useALU: true, regWrite: true, isJump: true},
	insts.OpcodeBranch: {isBranch: true},
}

// controlFor returns the control signals of a decoded instruction. It
// reports false for instructions the pipeline does not execute.
func controlFor(inst *insts.Instruction) (controlSignals, bool) {
	if inst.Op == insts.OpUnknown || inst.Op == insts.OpHalt {
		return controlSignals{}, false
	}

	ctrl, ok := controlByOpcode[inst.Opcode]
	return ctrl, ok
}
