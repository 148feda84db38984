package benchmarks

import (
	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets a specific pipeline or cache characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		functionCalls(),
		branchTaken(),
		mixedOperations(),
		matrixMultiply2x2(),
		loopSimulation(),
		cacheConflict(),
	}
}

// GetCoreBenchmarks returns a minimal set of 3 core benchmarks for quick
// validation: a loop, a matrix multiply and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSimulation(),
		matrixMultiply2x2(),
		branchTaken(),
	}
}

// 1. Arithmetic Sequential - Tests ALU throughput with independent operations
func arithmeticSequential() Benchmark {
	instrs := make([]uint32, 0, 20)
	for i := 0; i < 4; i++ {
		for rd := uint8(10); rd < 15; rd++ {
			instrs = append(instrs, asm(insts.OpADDI, rd, rd, 0, 1))
		}
	}

	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 independent ADDIs over a0-a4 - measures ALU throughput",
		Program:     program(instrs...),
		Expected:    4,
	}
}

// 2. Dependency Chain - Tests forwarding with back-to-back RAW hazards
func dependencyChain() Benchmark {
	return Benchmark{
		Name:        "dependency_chain",
		Description: "20 dependent ADDIs (a0 = a0 + 1) - measures forwarding",
		Program:     buildDependencyChain(20),
		Expected:    20,
	}
}

func buildDependencyChain(n int) []uint32 {
	instrs := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		instrs = append(instrs, asm(insts.OpADDI, 10, 10, 0, 1))
	}
	return program(instrs...)
}

// 3. Memory Sequential - Tests load-use stalls and write-through stores
func memorySequential() Benchmark {
	instrs := make([]uint32, 0, 20)
	for i := int32(0); i < 10; i++ {
		// The next SW reads a0 right after the LW writes it.
		instrs = append(instrs,
			asm(insts.OpSW, 0, 1, 10, 4*i),
			asm(insts.OpLW, 10, 1, 0, 4*i),
		)
	}

	return Benchmark{
		Name:        "memory_sequential",
		Description: "10 store/load pairs to sequential words - measures load-use stalls",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			regFile.WriteReg(1, 0x800) // base address
			regFile.WriteReg(10, 42)   // value to store/load
		},
		Program:  program(instrs...),
		Expected: 42,
	}
}

// 4. Function Calls - Tests JAL/JALR flush cost
func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "3 calls to a leaf function - measures jump flush overhead",
		Program: program(
			asm(insts.OpJAL, 1, 0, 0, 16), // 0x00: call inc
			asm(insts.OpJAL, 1, 0, 0, 12), // 0x04: call inc
			asm(insts.OpJAL, 1, 0, 0, 8),  // 0x08: call inc
			asm(insts.OpJAL, 0, 0, 0, 12), // 0x0C: jump to exit
			// inc:
			asm(insts.OpADDI, 10, 10, 0, 1), // 0x10
			asm(insts.OpJALR, 0, 1, 0, 0),   // 0x14: return
		),
		Expected: 3,
	}
}

// 5. Branch Taken - Tests taken conditional branch cost
func branchTaken() Benchmark {
	instrs := make([]uint32, 0, 15)
	for i := 0; i < 5; i++ {
		instrs = append(instrs,
			asm(insts.OpBEQ, 0, 0, 0, 8),
			asm(insts.OpADDI, 10, 10, 0, 100), // skipped
			asm(insts.OpADDI, 10, 10, 0, 1),
		)
	}

	return Benchmark{
		Name:        "branch_taken",
		Description: "5 always-taken BEQs over a skipped ADDI - measures branch flushes",
		Program:     program(instrs...),
		Expected:    5,
	}
}

// 6. Mixed Operations - Tests the M extension and shifts in a dependent mix
func mixedOperations() Benchmark {
	return Benchmark{
		Name:        "mixed_operations",
		Description: "MUL, DIV, REM, SUB and SLL in a dependent chain",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			regFile.WriteReg(5, 6)
			regFile.WriteReg(6, 7)
		},
		Program: program(
			asm(insts.OpMUL, 7, 5, 6, 0),    // t2 = 42
			asm(insts.OpADDI, 8, 7, 0, 8),   // s0 = 50
			asm(insts.OpDIV, 9, 8, 5, 0),    // s1 = 8
			asm(insts.OpREM, 11, 8, 6, 0),   // a1 = 1
			asm(insts.OpSUB, 10, 9, 11, 0),  // a0 = 7
			asm(insts.OpSLL, 10, 10, 11, 0), // a0 = 14
		),
		Expected: 14,
	}
}

// Matrix layout used by matrixMultiply2x2, row-major words.
const (
	matrixBase = 0x400
	matrixA    = matrixBase
	matrixB    = matrixBase + 16
	matrixC    = matrixBase + 32
)

// 7. Matrix Multiply 2x2 - Tests loads, multiplies and stores together
func matrixMultiply2x2() Benchmark {
	return Benchmark{
		Name:        "matrix_multiply_2x2",
		Description: "C = A x B for 2x2 word matrices; a0 = sum of C",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			regFile.WriteReg(1, matrixBase)
			for i, v := range []uint32{1, 2, 3, 4} {
				memory.Write32(matrixA+uint32(4*i), v)
			}
			for i, v := range []uint32{5, 6, 7, 8} {
				memory.Write32(matrixB+uint32(4*i), v)
			}
		},
		Program: program(
			asm(insts.OpLW, 5, 1, 0, 0),
			asm(insts.OpLW, 6, 1, 0, 4),
			asm(insts.OpLW, 7, 1, 0, 8),
			asm(insts.OpLW, 8, 1, 0, 12),
			asm(insts.OpLW, 12, 1, 0, 16),
			asm(insts.OpLW, 13, 1, 0, 20),
			asm(insts.OpLW, 14, 1, 0, 24),
			asm(insts.OpLW, 15, 1, 0, 28),

			asm(insts.OpMUL, 16, 5, 12, 0),
			asm(insts.OpMUL, 17, 6, 14, 0),
			asm(insts.OpADD, 18, 16, 17, 0),
			asm(insts.OpSW, 0, 1, 18, 32),

			asm(insts.OpMUL, 16, 5, 13, 0),
			asm(insts.OpMUL, 17, 6, 15, 0),
			asm(insts.OpADD, 19, 16, 17, 0),
			asm(insts.OpSW, 0, 1, 19, 36),

			asm(insts.OpMUL, 16, 7, 12, 0),
			asm(insts.OpMUL, 17, 8, 14, 0),
			asm(insts.OpADD, 20, 16, 17, 0),
			asm(insts.OpSW, 0, 1, 20, 40),

			asm(insts.OpMUL, 16, 7, 13, 0),
			asm(insts.OpMUL, 17, 8, 15, 0),
			asm(insts.OpADD, 21, 16, 17, 0),
			asm(insts.OpSW, 0, 1, 21, 44),

			asm(insts.OpADD, 10, 18, 19, 0),
			asm(insts.OpADD, 10, 10, 20, 0),
			asm(insts.OpADD, 10, 10, 21, 0),
		),
		Expected: 19 + 22 + 43 + 50,
	}
}

// 8. Loop Simulation - Tests a backward branch loop
func loopSimulation() Benchmark {
	return Benchmark{
		Name:        "loop_simulation",
		Description: "sum 10..1 with a BNE loop - measures loop-carried flushes",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			regFile.WriteReg(5, 10) // counter
		},
		Program: program(
			asm(insts.OpADD, 10, 10, 5, 0), // loop: a0 += t0
			asm(insts.OpADDI, 5, 5, 0, -1), // t0--
			asm(insts.OpBNE, 0, 5, 0, -8),  // if t0 != 0 goto loop
		),
		Expected: 55,
	}
}

// Conflict addresses for cacheConflict. They are 4096 bytes apart so they
// share a line in the default cache.
const (
	conflictA = 0x2000
	conflictB = 0x3000
)

// 9. Cache Conflict - Tests direct-mapped conflict misses
func cacheConflict() Benchmark {
	instrs := make([]uint32, 0, 9)
	for i := 0; i < 4; i++ {
		instrs = append(instrs,
			asm(insts.OpLW, 5, 1, 0, 0),
			asm(insts.OpLW, 6, 2, 0, 0),
		)
	}
	instrs = append(instrs, asm(insts.OpADD, 10, 5, 6, 0))

	return Benchmark{
		Name:        "cache_conflict",
		Description: "alternating loads to two addresses that map to one line",
		Setup: func(regFile *emu.RegFile, memory *emu.Memory) {
			regFile.WriteReg(1, conflictA)
			regFile.WriteReg(2, conflictB)
			memory.Write32(conflictA, 3)
			memory.Write32(conflictB, 4)
		},
		Program:  program(instrs...),
		Expected: 7,
	}
}
