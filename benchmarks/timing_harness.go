// Package benchmarks provides the RV32 microbenchmarks and the timing harness
// that runs them on the pipeline and reports cycle and cache statistics.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/cache"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

// ResultReg is the register a benchmark leaves its result in (a0).
const ResultReg uint8 = 10

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the timing simulator
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of completed instructions
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// StallCycles is the number of load-use stall cycles
	StallCycles uint64 `json:"stall_cycles"`

	// PipelineFlushes is the number of taken branches and jumps
	PipelineFlushes uint64 `json:"pipeline_flushes"`

	CacheReads   uint64  `json:"cache_reads"`
	CacheWrites  uint64  `json:"cache_writes"`
	CacheHits    uint64  `json:"cache_hits"`
	CacheMisses  uint64  `json:"cache_misses"`
	CacheHitRate float64 `json:"cache_hit_rate"`

	// Branch profiler: how a bimodal predictor would have done on the
	// conditional branches the pipeline resolved.
	BranchPredictions     uint64  `json:"branch_predictions"`
	BranchCorrect         uint64  `json:"branch_correct"`
	BranchMispredictions  uint64  `json:"branch_mispredictions"`
	BranchAccuracyPercent float64 `json:"branch_accuracy_percent"`

	// Result is the value of a0 when the pipeline finished
	Result uint32 `json:"result"`

	// ReferenceResult is the value of a0 produced by the functional emulator
	ReferenceResult uint32 `json:"reference_result"`

	// Passed is true if both models produced the expected result
	Passed bool `json:"passed"`

	// Error is set if the run did not finish
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares registers and data memory after the program is loaded
	Setup func(regFile *emu.RegFile, memory *emu.Memory)

	// Program is the RV32 machine code, loaded at address 0
	Program []uint32

	// Expected is the value a0 must hold when the program finishes
	Expected uint32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// MemorySize is the size of main memory in bytes
	MemorySize uint32

	// Cache is the geometry of the unified cache
	Cache cache.Config

	// MaxCycles bounds each run; 0 means no limit
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Logger receives pipeline diagnostics
	Logger logrus.FieldLogger

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		MemorySize: 64 * 1024,
		Cache:      cache.DefaultConfig(),
		MaxCycles:  1_000_000,
		Output:     os.Stdout,
		Logger:     logrus.StandardLogger(),
		Verbose:    false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(bench)
		if h.config.Verbose {
			h.config.Logger.WithFields(logrus.Fields{
				"benchmark": result.Name,
				"cycles":    result.SimulatedCycles,
				"cpi":       fmt.Sprintf("%.3f", result.CPI),
				"passed":    result.Passed,
			}).Info("benchmark finished")
		}
		results = append(results, result)
	}

	return results
}

// runBenchmark executes a single benchmark on the pipeline and on the
// reference emulator.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	regFile := &emu.RegFile{}
	memory := emu.NewMemory(h.config.MemorySize)
	memory.LoadWords(bench.Program)
	if bench.Setup != nil {
		bench.Setup(regFile, memory)
	}

	c, err := core.NewCore(regFile, memory,
		pipeline.WithCacheConfig(h.config.Cache),
		pipeline.WithLogger(h.config.Logger),
	)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	stats, err := c.Run(h.config.MaxCycles)
	result.WallTime = time.Since(start)

	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.StallCycles = stats.Stalls
	result.PipelineFlushes = stats.Flushes
	result.CacheReads = stats.Cache.Reads
	result.CacheWrites = stats.Cache.Writes
	result.CacheHits = stats.Cache.Hits
	result.CacheMisses = stats.Cache.Misses
	result.CacheHitRate = stats.HitRate()
	result.BranchPredictions = stats.Branches.Predictions
	result.BranchCorrect = stats.Branches.Correct
	result.BranchMispredictions = stats.Branches.Mispredictions
	result.BranchAccuracyPercent = stats.Branches.Accuracy()
	result.Result = regFile.ReadReg(ResultReg)

	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.ReferenceResult, err = h.runReference(bench)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Passed = result.Result == bench.Expected &&
		result.ReferenceResult == bench.Expected

	return result
}

func (h *Harness) runReference(bench Benchmark) (uint32, error) {
	opts := []emu.EmulatorOption{emu.WithLogger(h.config.Logger)}
	if h.config.MaxCycles > 0 {
		opts = append(opts, emu.WithMaxInstructions(h.config.MaxCycles))
	}

	e := emu.NewEmulator(h.config.MemorySize, opts...)
	e.LoadProgram(bench.Program)
	if bench.Setup != nil {
		bench.Setup(e.RegFile(), e.Memory())
	}

	res := e.Run()
	if !res.Halted {
		return 0, fmt.Errorf("reference run: %w", res.Err)
	}

	return e.RegFile().ReadReg(ResultReg), nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== rvsim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(h.config.Output, "  Result: %d (reference %d, passed %t)\n",
			r.Result, r.ReferenceResult, r.Passed)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Pipeline Flushes:     %d\n", r.PipelineFlushes)

		_, _ = fmt.Fprintln(h.config.Output, "  --- Cache ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Reads:    %d\n", r.CacheReads)
		_, _ = fmt.Fprintf(h.config.Output, "  Writes:   %d\n", r.CacheWrites)
		_, _ = fmt.Fprintf(h.config.Output, "  Hits:     %d\n", r.CacheHits)
		_, _ = fmt.Fprintf(h.config.Output, "  Misses:   %d\n", r.CacheMisses)
		_, _ = fmt.Fprintf(h.config.Output, "  Hit Rate: %.1f%%\n", r.CacheHitRate*100)

		if r.BranchPredictions > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Branch Prediction ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Predictions:    %d\n", r.BranchPredictions)
			_, _ = fmt.Fprintf(h.config.Output, "  Correct:        %d\n", r.BranchCorrect)
			_, _ = fmt.Fprintf(h.config.Output, "  Mispredictions: %d\n", r.BranchMispredictions)
			_, _ = fmt.Fprintf(h.config.Output, "  Accuracy:       %.1f%%\n", r.BranchAccuracyPercent)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,stalls,flushes,cache_reads,cache_writes,cache_hits,cache_misses,result,passed")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%t\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.PipelineFlushes,
			r.CacheReads,
			r.CacheWrites,
			r.CacheHits,
			r.CacheMisses,
			r.Result,
			r.Passed,
		)
	}
}

// program assembles a benchmark body and appends the termination sentinel.
func program(words ...uint32) []uint32 {
	return append(words, insts.HaltWord)
}

// asm encodes one instruction; benchmark programs are static, so an
// encoding error is a bug in the benchmark.
func asm(op insts.Op, rd, rs1, rs2 uint8, imm int32) uint32 {
	return insts.MustAssemble(op, rd, rs1, rs2, imm)
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Version of the simulator
	Version string `json:"version"`

	// Config describes the benchmark configuration
	Config BenchmarkConfig `json:"config"`
}

// BenchmarkConfig describes the harness configuration used.
type BenchmarkConfig struct {
	MemorySize     uint32 `json:"memory_size"`
	CacheSize      int    `json:"cache_size"`
	CacheBlockSize int    `json:"cache_block_size"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Passed is the number of benchmarks whose result matched
	Passed int `json:"passed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Version is reported in the JSON metadata.
const Version = "0.1.0"

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	var totalCycles, totalInstructions uint64
	var totalWallTime time.Duration
	passed := 0
	for _, r := range results {
		totalCycles += r.SimulatedCycles
		totalInstructions += r.InstructionsRetired
		totalWallTime += r.WallTime
		if r.Passed {
			passed++
		}
	}

	avgCPI := float64(0)
	if totalInstructions > 0 {
		avgCPI = float64(totalCycles) / float64(totalInstructions)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   Version,
			Config: BenchmarkConfig{
				MemorySize:     h.config.MemorySize,
				CacheSize:      h.config.Cache.Size,
				CacheBlockSize: h.config.Cache.BlockSize,
			},
		},
		Results: results,
		Summary: ReportSummary{
			TotalBenchmarks:   len(results),
			Passed:            passed,
			TotalCycles:       totalCycles,
			TotalInstructions: totalInstructions,
			AverageCPI:        avgCPI,
			TotalWallTime:     totalWallTime,
		},
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
