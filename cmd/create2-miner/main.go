package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/screa/create2-salt-miner/internal/config"
	logpkg "github.com/screa/create2-salt-miner/internal/logger"
	minerpkg "github.com/screa/create2-salt-miner/pkg/miner"
	"github.com/screa/create2-salt-miner/pkg/types"
)

var (
	cfg    = config.NewConfig()
	logger *logpkg.Logger
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "create2-miner",
		Short: "Brute-force CREATE2 salt miner for vanity contract addresses",
		Long: `A command line utility that searches for a CREATE2 salt whose derived
contract address matches a hex prefix and/or suffix, or maximizes the
count of leading and trailing '1' nibbles. The salt is built from a
64-bit nonce so interrupted searches never revisit tested candidates.`,
		Run: runMiner,
	}

	rootCmd.Flags().StringVarP(&cfg.Deployer, "deployer", "d", cfg.Deployer, "Deployer/factory address performing CREATE2 (required)")
	rootCmd.Flags().StringVarP(&cfg.InitCodeHash, "init-code-hash", "H", cfg.InitCodeHash, "Keccak-256 hash of the init code (hex)")
	rootCmd.Flags().StringVarP(&cfg.Bytecode, "bytecode", "B", "", "Contract init code (hex); its hash is computed")
	rootCmd.Flags().StringVarP(&cfg.BytecodeFile, "bytecode-file", "F", "", "File containing contract init code (hex)")
	rootCmd.Flags().StringVarP(&cfg.Prefix, "prefix", "p", "", "Address prefix to match (hex, case-insensitive)")
	rootCmd.Flags().StringVarP(&cfg.Suffix, "suffix", "s", "", "Address suffix to match (hex, case-insensitive)")
	rootCmd.Flags().Uint8Var(&cfg.MinLeading, "min-leading-ones", 0, "Minimum count of leading '1' nibbles")
	rootCmd.Flags().Uint8Var(&cfg.MinTrailing, "min-trailing-ones", 0, "Minimum count of trailing '1' nibbles")
	rootCmd.Flags().IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU(), "Number of worker goroutines per dispatch")
	rootCmd.Flags().Uint32Var(&cfg.Lanes, "lanes", cfg.Lanes, "Nonces evaluated per dispatch")
	rootCmd.Flags().Uint64Var(&cfg.MaxDispatches, "max-dispatches", 0, "Stop after this many dispatches (0 = unbounded)")
	rootCmd.Flags().Uint32Var(&cfg.NonceStart, "nonce-start", 0, "First dispatch counter (nonce high word)")
	rootCmd.Flags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Verbose output")
	rootCmd.Flags().StringVarP(&cfg.LogFile, "log-file", "l", "", "Log file for progress tracking (default: stdout)")
	rootCmd.Flags().IntVarP(&cfg.LogInterval, "log-interval", "i", 5, "Logging interval in seconds")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMiner(cmd *cobra.Command, args []string) {
	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	setupLogging()
	logger.Printf("Starting CREATE2 salt miner with %d workers...", cfg.Workers)
	logger.Printf("Target: %s", cfg.GetTargetDescription())
	logger.Printf("Deployer: %s", cfg.Deployer)

	miner, err := minerpkg.NewMiner(cfg, logger)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	// Set up signal handling for Ctrl+C
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start mining in a goroutine
	resultChan := make(chan *types.Result, 1)
	go func() {
		resultChan <- miner.Mine()
	}()

	select {
	case result := <-resultChan:
		reportResult(result)
	case <-sigChan:
		logger.Println("\nReceived interrupt signal. Stopping after the current dispatch...")
		miner.Stop()
		reportResult(<-resultChan)
	}
}

func reportResult(result *types.Result) {
	if result == nil {
		logger.Println("No match found.")
		return
	}

	logger.Printf("🎉 Found match!")
	logger.Printf("Salt: 0x%s", result.Salt)
	logger.Printf("Address: %s", result.Address)
	if result.TotalScore() > 0 {
		logger.Printf("Score: %d leading + %d trailing '1' nibbles", result.LeadingOnes, result.TrailingOnes)
	}
	logger.Printf("Attempts: %d", result.Attempts)
	logger.Printf("Duration: %v", result.Duration)

	// Calculate rate safely
	rate := 0.0
	if result.Duration.Seconds() > 0 {
		rate = float64(result.Attempts) / result.Duration.Seconds()
	}
	logger.Printf("Rate: %.2f hashes/sec", rate)
}

func setupLogging() {
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		logger = logpkg.NewWriter(file)
		logger.SetFlags(log.LstdFlags | log.Lmicroseconds)
	} else {
		logger = logpkg.New()
		logger.SetFlags(log.LstdFlags)
	}
	logger.SetVerbose(cfg.Verbose)
}
