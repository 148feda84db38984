// Package emu provides the RV32 architectural state and functional
// emulation: register file, main memory, ALU and a non-pipelined reference
// emulator.
package emu

import (
	"errors"
	"fmt"
)

// NumRegs is the number of general-purpose registers.
const NumRegs = 32

// ErrZeroRegister is reported when a caller tries to write x0. It is
// advisory; no state changes.
var ErrZeroRegister = errors.New("register x0 is hardwired to zero")

// ErrInvalidRegister is reported for register indices outside [0, 31].
var ErrInvalidRegister = errors.New("invalid register index")

// RegFile represents the RV32 integer register file.
// X[0] is the zero register, which always reads as 0.
type RegFile struct {
	X [NumRegs]uint32
}

// ReadReg reads a register value. Register 0 and out-of-range indices
// return 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= NumRegs {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a register value. Writes to register 0 are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= NumRegs {
		return
	}
	r.X[reg] = value
}

// Set writes a register on behalf of an external caller. It reports
// ErrZeroRegister for index 0 and ErrInvalidRegister for indices outside
// [0, 31]; neither changes any state.
func (r *RegFile) Set(index int, value uint32) error {
	switch {
	case index < 0 || index >= NumRegs:
		return fmt.Errorf("%w: %d", ErrInvalidRegister, index)
	case index == 0:
		return ErrZeroRegister
	}

	r.X[index] = value
	return nil
}

// ClearZero forces register 0 back to 0.
func (r *RegFile) ClearZero() {
	r.X[0] = 0
}

// Reset zeroes every register.
func (r *RegFile) Reset() {
	r.X = [NumRegs]uint32{}
}

// Snapshot returns a copy of the register values.
func (r *RegFile) Snapshot() [NumRegs]uint32 {
	return r.X
}
