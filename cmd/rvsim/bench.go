package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/benchmarks"
)

var (
	benchFormat   string
	benchCoreOnly bool
	benchVerbose  bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the built-in microbenchmarks.",
	Long: `Bench runs the RV32 microbenchmarks on the pipeline with the ` +
		`configured cache geometry, checks every result against the ` +
		`reference emulator and reports cycles, CPI, stalls, flushes and ` +
		`cache statistics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		config := benchmarks.DefaultConfig()
		config.MemorySize = cfg.MemorySize
		config.Cache = cfg.CacheConfig()
		config.MaxCycles = cfg.MaxCycles
		config.Output = cmd.OutOrStdout()
		config.Logger = logrus.StandardLogger()
		config.Verbose = benchVerbose

		harness := benchmarks.NewHarness(config)
		if benchCoreOnly {
			harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
		} else {
			harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
		}

		results := harness.RunAll()

		switch benchFormat {
		case "text":
			harness.PrintResults(results)
		case "csv":
			harness.PrintCSV(results)
		case "json":
			if err := harness.PrintJSON(results); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown format %q, want text, csv or json",
				benchFormat)
		}

		failed := 0
		for _, r := range results {
			if !r.Passed {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d benchmarks failed", failed, len(results))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(benchCmd)
	benchCmd.Flags().StringVar(&benchFormat, "format", "text",
		"output format: text, csv or json")
	benchCmd.Flags().BoolVar(&benchCoreOnly, "core", false,
		"run only the loop, matrix and branch benchmarks")
	benchCmd.Flags().Uint64("max-cycles", 0,
		"cycle limit per benchmark, 0 for none (defaults to the configured limit)")
	benchCmd.Flags().BoolVar(&benchVerbose, "verbose", false,
		"log each benchmark as it finishes")
}
