package pipeline

import "github.com/sarchlab/rvsim/insts"

// ForwardSource indicates where an Execute operand comes from.
type ForwardSource int

const (
	// ForwardNone means no forwarding needed - use register file value.
	ForwardNone ForwardSource = iota
	// ForwardFromMEMWB means forward from the MEM/WB pipeline register.
	ForwardFromMEMWB
)

// ForwardingResult contains forwarding decisions for both source operands.
type ForwardingResult struct {
	ForwardRs1 ForwardSource
	ForwardRs2 ForwardSource
}

// HazardUnit detects data hazards and determines forwarding/stall signals.
//
// Forwarding only needs the MEM/WB register. Memory runs before Execute in
// a tick, so by the time Execute looks at MEM/WB it already holds the
// result of the instruction one slot ahead. Instructions further ahead
// have been written back earlier in the same tick.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// DetectForwarding determines if forwarding is needed for the ID/EX stage.
func (h *HazardUnit) DetectForwarding(
	idex *IDEXRegister,
	memwb *MEMWBRegister,
) ForwardingResult {
	result := ForwardingResult{
		ForwardRs1: ForwardNone,
		ForwardRs2: ForwardNone,
	}

	if !idex.Valid {
		return result
	}

	result.ForwardRs1 = h.detectForwardForReg(idex.Rs1, memwb)
	result.ForwardRs2 = h.detectForwardForReg(idex.Rs2, memwb)

	return result
}

func (h *HazardUnit) detectForwardForReg(
	reg uint8,
	memwb *MEMWBRegister,
) ForwardSource {
	// x0 always reads as 0, no need to forward
	if reg == 0 {
		return ForwardNone
	}

	if memwb.Valid && memwb.RegWrite && memwb.Rd == reg {
		return ForwardFromMEMWB
	}

	return ForwardNone
}

// GetForwardedValue returns the operand value for a forwarding decision.
func (h *HazardUnit) GetForwardedValue(
	source ForwardSource,
	regValue uint32,
	memwb *MEMWBRegister,
) uint32 {
	if source == ForwardFromMEMWB {
		return memwb.Result()
	}
	return regValue
}

// DetectLoadUseHazard detects load-use hazards where a load instruction
// is immediately followed by an instruction reading the loaded register.
// idex holds the older instruction; next is the one waiting in IF/ID.
func (h *HazardUnit) DetectLoadUseHazard(
	idex *IDEXRegister,
	next *insts.Instruction,
) bool {
	// Only load instructions cause load-use hazards
	if !idex.Valid || !idex.MemRead {
		return false
	}

	// x0 doesn't cause hazards
	if idex.Rd == 0 {
		return false
	}

	if next.ReadsRs1() && next.Rs1 == idex.Rd {
		return true
	}

	return next.ReadsRs2() && next.Rs2 == idex.Rd
}
