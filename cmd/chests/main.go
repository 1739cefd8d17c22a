package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chests",
		Short: "chests simulates OpenTheChests: boxes that open only after their hidden event pattern has played out.",
	}
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log simulator internals to stderr")

	for _, envFile := range []string{
		".env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(runCmd(), timelineCmd(), playCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext is cancelled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func newLogger(cmd *cobra.Command, verbose bool) *log.Logger {
	if v, _ := cmd.Flags().GetBool("verbose"); v || verbose {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// defaultSeed reads CHESTS_SEED, falling back to 0.
func defaultSeed() uint64 {
	if s := os.Getenv("CHESTS_SEED"); s != "" {
		if seed, err := strconv.ParseUint(s, 10, 64); err == nil {
			return seed
		}
		fmt.Fprintf(os.Stderr, "ignoring CHESTS_SEED=%q\n", s)
	}
	return 0
}
