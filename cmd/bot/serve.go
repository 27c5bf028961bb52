package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chess-puzzle-bot/internal/analysis"
	"chess-puzzle-bot/internal/bot"
	"chess-puzzle-bot/internal/config"
	"chess-puzzle-bot/internal/game/battle"
	"chess-puzzle-bot/internal/httpapi"
	"chess-puzzle-bot/internal/repository"
	"chess-puzzle-bot/internal/service"
	"chess-puzzle-bot/internal/store"
)

func newServeCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the status API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	st, closeStore, err := store.Open(ctx, &cfg.Storage)
	if err != nil {
		return err
	}
	defer closeStore()

	repo, err := repository.New(ctx, st)
	if err != nil {
		return err
	}

	telegramBot, err := bot.New(cfg)
	if err != nil {
		return err
	}
	sender := telegramBot.Messenger()

	catalog := service.NewCatalogService(repo)
	identity := service.NewIdentityService(repo, cfg.Titles)
	rotation := service.NewRotationService(repo)
	posting := service.NewPostingService(repo, sender)
	scoring := service.NewScoringService(repo, cfg.Scoring, cfg.Titles)
	battles := battle.NewOrchestrator(rotation, posting, sender, cfg.Battle.Size, cfg.Admin.IDs)
	analyzer := analysis.NewClient(cfg.Analysis)

	telegramBot.Register(&bot.Dependencies{
		Catalog:  catalog,
		Identity: identity,
		Rotation: rotation,
		Posting:  posting,
		Scoring:  scoring,
		Battles:  battles,
		Analysis: analyzer,
	})

	total, valid := catalog.Count()
	log.Info().
		Int("puzzles", total).
		Int("valid", valid).
		Int("admins", len(cfg.Admin.IDs)).
		Bool("analysis", analyzer.Enabled()).
		Msg("Services initialized")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return telegramBot.Run(gctx)
	})
	if cfg.HTTP.Addr != "" {
		srv := httpapi.New(cfg.HTTP.Addr, catalog, identity)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	err = g.Wait()
	log.Info().Msg("Bot stopped gracefully")
	return err
}
