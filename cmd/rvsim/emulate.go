package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/emu"
)

var emulateShowRegs bool

var emulateCmd = &cobra.Command{
	Use:   "emulate <program>",
	Short: "Run a program on the functional reference emulator.",
	Long: `Emulate executes one instruction per step without modeling the ` +
		`pipeline or the cache. Its results are the reference the pipeline ` +
		`is checked against.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		words, err := loadWords(args[0], cfg.MemorySize)
		if err != nil {
			return fmt.Errorf("loading program: %w", err)
		}

		e := emu.NewEmulator(cfg.MemorySize,
			emu.WithLogger(logrus.StandardLogger()),
			emu.WithMaxInstructions(cfg.MaxCycles),
		)
		e.LoadProgram(words)

		result := e.Run()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Program: %s\n", args[0])
		fmt.Fprintf(out, "Instructions executed: %d\n", e.InstructionCount())

		if emulateShowRegs {
			fmt.Fprintln(out)
			printRegisters(out, e.RegFile().Snapshot(), e.PC(), -1)
		}

		if result.Err != nil && !errors.Is(result.Err, emu.ErrUnknownInstruction) {
			return result.Err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(emulateCmd)
	emulateCmd.Flags().Uint64("max-cycles", 0,
		"instruction limit, 0 for none (defaults to the configured limit)")
	emulateCmd.Flags().BoolVar(&emulateShowRegs, "regs", true,
		"print the register file after the run")
}
