package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/overlord/pkg/config"
	"github.com/cuemby/overlord/pkg/log"
	"github.com/cuemby/overlord/pkg/metrics"
	"github.com/cuemby/overlord/pkg/overlord"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "overlord",
	Short: "Overlord - autonomous GitHub issue orchestrator",
	Long: `Overlord watches GitHub repositories for ready-to-work issues,
dispatches containerized coding agents against them, and reports progress
to chat. It runs as a single process with no external cluster dependency.`,
	Version: Version,
	RunE:    runOverlord,
}

var configPath string

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Overlord version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to an overlord.yaml override file")

	cobra.OnInitialize(initLogging)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func runOverlord(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := log.InitFromConfig(cfg); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	metrics.SetVersion(Version)

	o, err := overlord.New(cfg)
	if err != nil {
		return fmt.Errorf("building overlord: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := o.Run(ctx); err != nil {
		return fmt.Errorf("overlord exited with error: %w", err)
	}

	fmt.Println("✓ Shutdown complete")
	return nil
}
