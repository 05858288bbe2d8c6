/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mindsight/journal/config"
	"github.com/mindsight/journal/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mindsight",
	Short: "Mindsight smart journal",
	Long: `Mindsight is a journaling web application that annotates each entry
with a mood and a short reflection.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and runs it. Commands
// see a context that is cancelled on SIGINT or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func loadRuntime() (config.Config, zerolog.Logger) {
	cfg := config.LoadConfig()
	return cfg, logging.New(cfg.LogLevel, cfg.Env)
}
