package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/timing/driver"
	"github.com/sarchlab/rvsim/trace"
)

var (
	runTrace     bool
	runTraceFile string
	runShowRegs  bool
)

var runCmd = &cobra.Command{
	Use:   "run <program>",
	Short: "Run a program on the cycle-accurate pipeline.",
	Long: `Run loads a hex or ELF program at address 0 and ticks the pipeline ` +
		`on an event-driven engine until the program finishes or the cycle ` +
		`limit is reached. Timing and cache statistics are printed at the end.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		words, err := loadWords(args[0], cfg.MemorySize)
		if err != nil {
			return fmt.Errorf("loading program: %w", err)
		}

		c, err := newCore()
		if err != nil {
			return err
		}
		c.LoadProgram(words)

		if runTrace || runTraceFile != "" {
			recorder := trace.NewSQLiteRecorder(runTraceFile)
			if err := recorder.Init(); err != nil {
				return err
			}
			defer recorder.Close()

			c.Pipeline.AcceptHook(recorder)
			fmt.Fprintf(cmd.ErrOrStderr(), "Tracing to %s\n", recorder.Path())
		}

		result, runErr := driver.Run(c, cfg.Freq(), cfg.MaxCycles)

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Program: %s\n", args[0])
		fmt.Fprintf(out, "Simulated Time: %.9fs at %.0f MHz\n",
			float64(result.SimTime), cfg.ClockMHz)
		printStats(out, result.Stats)

		if runShowRegs {
			fmt.Fprintln(out)
			printRegisters(out, c.Registers(), c.PC(), -1)
		}

		return runErr
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().Uint64("max-cycles", 0,
		"cycle limit, 0 for none (defaults to the configured limit)")
	runCmd.Flags().BoolVar(&runTrace, "trace", false,
		"record pipeline events into a SQLite database")
	runCmd.Flags().StringVar(&runTraceFile, "trace-file", "",
		"trace database name without extension (implies --trace)")
	runCmd.Flags().BoolVar(&runShowRegs, "regs", false,
		"print the register file after the run")
}
