package driver_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/sarchlab/rvsim/emu"
	"github.com/sarchlab/rvsim/insts"
	"github.com/sarchlab/rvsim/timing/core"
	"github.com/sarchlab/rvsim/timing/driver"
	"github.com/sarchlab/rvsim/timing/pipeline"
)

var _ = Describe("Driver", func() {
	var c *core.Core

	BeforeEach(func() {
		var err error

		logger, _ := logtest.NewNullLogger()
		c, err = core.NewCore(&emu.RegFile{}, emu.NewMemory(1024),
			pipeline.WithLogger(logger))
		Expect(err).NotTo(HaveOccurred())
	})

	It("should run a program to completion", func() {
		c.LoadProgram([]uint32{
			insts.MustAssemble(insts.OpADDI, 5, 0, 0, 10),
			insts.MustAssemble(insts.OpADDI, 6, 0, 0, 12),
			insts.MustAssemble(insts.OpAND, 7, 5, 6, 0),
			insts.HaltWord,
		})

		result, err := driver.Run(c, 1*sim.GHz, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(c.IsFinished()).To(BeTrue())
		Expect(c.Registers()[7]).To(Equal(uint32(8)))
		Expect(result.Stats.Cycles).To(Equal(uint64(8)))
		Expect(float64(result.SimTime)).To(BeNumerically("~", 9e-9, 1e-12))
	})

	It("should scale simulated time with the clock", func() {
		c.LoadProgram([]uint32{insts.HaltWord})

		result, err := driver.Run(c, 100*sim.MHz, 0)

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Stats.Cycles).To(Equal(uint64(5)))
		Expect(float64(result.SimTime)).To(BeNumerically("~", 60e-9, 1e-12))
	})

	It("should stop at the cycle limit", func() {
		c.LoadProgram([]uint32{insts.MustAssemble(insts.OpJAL, 0, 0, 0, 0)})

		result, err := driver.Run(c, 1*sim.GHz, 50)

		Expect(err).To(MatchError(core.ErrMaxCycles))
		Expect(result.Stats.Cycles).To(Equal(uint64(50)))
		Expect(c.IsFinished()).To(BeFalse())
	})

	It("should not report the limit when the program finishes on it", func() {
		c.LoadProgram([]uint32{insts.HaltWord})

		_, err := driver.Run(c, 1*sim.GHz, 5)

		Expect(err).NotTo(HaveOccurred())
	})

	It("should tick on an engine it is given", func() {
		c.LoadProgram([]uint32{insts.HaltWord})
		engine := sim.NewSerialEngine()
		d := driver.MakeBuilder().
			WithEngine(engine).
			WithFreq(1 * sim.GHz).
			Build("Core", c)

		d.TickLater()
		Expect(engine.Run()).To(Succeed())

		Expect(d.Name()).To(Equal("Core"))
		Expect(d.Cycles()).To(Equal(uint64(5)))
		Expect(d.LimitReached()).To(BeFalse())
	})
})
