package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/rvsim/timing/config"
)

var (
	configPath string
	envFiles   []string
	logLevel   string

	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rvsim",
	Short: "rvsim simulates a five-stage RV32IM pipeline with a unified cache.",
	Long: `rvsim runs RISC-V programs on a cycle-accurate model of a classic ` +
		`five-stage pipeline with forwarding, load-use stalls, branch ` +
		`flushes and a direct-mapped write-through cache. Programs are ` +
		`read from hex word files or RV32 ELF executables.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "",
		"path to a JSON simulator configuration")
	flags.StringSliceVar(&envFiles, "env", []string{".env"},
		"dotenv files with RVSIM_* overrides; missing files are skipped")
	flags.StringVar(&logLevel, "log-level", "",
		"log level (panic, fatal, error, warn, info, debug, trace)")
}

// loadConfig builds the configuration from defaults, the config file, the
// environment and finally the command line.
func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error

	cfg = config.Default()
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}

	if err := cfg.ApplyEnv(envFiles...); err != nil {
		return err
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if cmd.Flags().Changed("max-cycles") {
		cfg.MaxCycles, _ = cmd.Flags().GetUint64("max-cycles")
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logrus.SetLevel(cfg.Level())

	return nil
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}
