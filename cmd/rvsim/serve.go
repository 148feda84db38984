package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/rvsim/monitor"
)

var (
	servePort int
	serveOpen bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [program]",
	Short: "Serve the core over HTTP for interactive inspection.",
	Long: `Serve loads an optional program and exposes the registers, memory, ` +
		`cache lines and pipeline registers over an HTTP API. The core is ` +
		`stepped with POST /api/tick. The server runs until interrupted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newCore()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			words, err := loadWords(args[0], cfg.MemorySize)
			if err != nil {
				return fmt.Errorf("loading program: %w", err)
			}
			c.LoadProgram(words)
		}

		m := monitor.NewMonitor(c).WithPortNumber(servePort)

		url, err := m.StartServer()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s\n", url)

		if serveOpen {
			if err := monitor.OpenBrowser(url); err != nil {
				logrus.WithError(err).Warn("could not open a browser")
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			5*time.Second)
		defer cancel()

		return m.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"port to listen on; a random port is used if below 1000")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false,
		"open the API root in the default browser")
}
