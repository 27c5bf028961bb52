// Package main is the entry point for the chess puzzle bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"chess-puzzle-bot/internal/config"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		cfg        *config.Config
	)

	cmd := &cobra.Command{
		Use:           "puzzlebot",
		Short:         "Telegram bot that posts chess puzzles and keeps score",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			setLogLevel(loaded.Log.Level)
			log.Debug().Str("driver", loaded.Storage.Driver).Msg("Configuration loaded")
			cfg = loaded
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "config", "directory holding config.yaml")
	cmd.AddCommand(newServeCmd(&cfg))
	cmd.AddCommand(newMigrateCmd(&cfg))
	cmd.AddCommand(newReindexCmd(&cfg))
	return cmd
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		log.Warn().Str("level", level).Msg("Unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
