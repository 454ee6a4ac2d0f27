package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yousourceinc/specify-setup/internal/cmd"
	"github.com/yousourceinc/specify-setup/internal/config"
	"github.com/yousourceinc/specify-setup/internal/logging"
	"github.com/yousourceinc/specify-setup/internal/ui"
)

var version = "dev"

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return err
	}

	ui.InitColors(cfg.Logging.Color)

	// Initialize logger
	log := logging.NewLogger(logging.Config{
		Level:        cfg.Logging.Level,
		ConsoleLevel: cfg.Logging.ConsoleLevel,
		LogFile:      cfg.Paths.LogFile,
		NoColor:      !ui.AreColorsEnabled(),
	})

	// Execute root command
	rootCmd := cmd.NewRootCmd(cfg, log, version)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Debug().Err(err).Msg("command failed")
		return err
	}

	return nil
}
