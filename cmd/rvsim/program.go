package main

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/loader"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// loadWords reads a program as a flat word image. ELF executables are
// recognised by their magic; everything else is parsed as a hex word file
// and terminated with the sentinel.
func loadWords(path string, memSize uint32) ([]uint32, error) {
	isELF, err := hasELFMagic(path)
	if err != nil {
		return nil, err
	}

	if !isELF {
		return loader.LoadHexFile(path, loader.WithSentinel())
	}

	prog, err := loader.LoadELF(path)
	if err != nil {
		return nil, err
	}

	if prog.EntryPoint != 0 {
		logrus.WithField("entry", fmt.Sprintf("0x%08x", prog.EntryPoint)).
			Warn("execution starts at address 0, not at the ELF entry point")
	}

	return prog.Image(memSize)
}

func hasELFMagic(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	magic := make([]byte, len(elfMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		// Shorter than the magic, so not an ELF file.
		return false, nil
	}

	return bytes.Equal(magic, elfMagic), nil
}

// newCore builds a core from the current configuration.
func newCore() (*core.Core, error) {
	return core.NewCore(&emu.RegFile{}, emu.NewMemory(cfg.MemorySize),
		pipeline.WithCacheConfig(cfg.CacheConfig()),
		pipeline.WithLogger(logrus.StandardLogger()),
	)
}

// printRegisters writes the register file as a table. The row of the
// highlighted register is marked; pass -1 for none.
func printRegisters(
	w io.Writer,
	regs [emu.NumRegs]uint32,
	pc uint32,
	highlight int,
) {
	fmt.Fprintln(w, "Reg        Hex          Dec")
	for i, v := range regs {
		mark := " "
		if i == highlight && i != 0 {
			mark = "*"
		}
		fmt.Fprintf(w, "%s x%-3d  0x%08x  %11d\n", mark, i, v, int32(v))
	}
	fmt.Fprintf(w, "  pc    0x%08x  %11d\n", pc, pc)
}

func printStats(w io.Writer, stats core.Stats) {
	fmt.Fprintf(w, "Total Instructions: %d\n", stats.Instructions)
	fmt.Fprintf(w, "Total Cycles: %d\n", stats.Cycles)
	fmt.Fprintf(w, "CPI: %.2f\n", stats.CPI())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Pipeline Events:")
	fmt.Fprintf(w, "  Stalls:  %d\n", stats.Stalls)
	fmt.Fprintf(w, "  Flushes: %d\n", stats.Flushes)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Cache:")
	fmt.Fprintf(w, "  Reads:     %d\n", stats.Cache.Reads)
	fmt.Fprintf(w, "  Writes:    %d\n", stats.Cache.Writes)
	fmt.Fprintf(w, "  Hits:      %d\n", stats.Cache.Hits)
	fmt.Fprintf(w, "  Misses:    %d\n", stats.Cache.Misses)
	fmt.Fprintf(w, "  Evictions: %d\n", stats.Cache.Evictions)
	fmt.Fprintf(w, "  Hit Rate:  %.1f%%\n", 100*stats.HitRate())

	if stats.Branches.Predictions > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Branch Profile:")
		fmt.Fprintf(w, "  Branches:         %d\n", stats.Branches.Predictions)
		fmt.Fprintf(w, "  Taken:            %d\n", stats.Branches.Taken)
		fmt.Fprintf(w, "  Bimodal Accuracy: %.1f%%\n", stats.Branches.Accuracy())
		fmt.Fprintf(w, "  Static Accuracy:  %.1f%%\n", stats.Branches.StaticAccuracy())
	}
}
