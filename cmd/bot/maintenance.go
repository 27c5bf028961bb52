package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"chess-puzzle-bot/internal/config"
	"chess-puzzle-bot/internal/repository"
	"chess-puzzle-bot/internal/service"
	"chess-puzzle-bot/internal/store"
)

// newMigrateCmd loads the document, repairs it to the current schema and
// writes it back when anything changed.
func newMigrateCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Repair the stored document and upgrade it to the current schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, closeStore, err := store.Open(ctx, &(*cfg).Storage)
			if err != nil {
				return err
			}
			defer closeStore()

			repo, err := repository.New(ctx, st)
			if err != nil {
				return err
			}
			total, valid := service.NewCatalogService(repo).Count()
			log.Info().Int("puzzles", total).Int("valid", valid).Msg("Document is up to date")
			return nil
		},
	}
}

func newReindexCmd(cfg **config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Renumber puzzles by creation time and reset every group's rotation",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, closeStore, err := store.Open(ctx, &(*cfg).Storage)
			if err != nil {
				return err
			}
			defer closeStore()

			repo, err := repository.New(ctx, st)
			if err != nil {
				return err
			}
			n, err := service.NewCatalogService(repo).Reindex(ctx)
			if err != nil {
				return err
			}
			log.Info().Int("puzzles", n).Str("operation", "reindex").Msg("Reindex finished")
			return nil
		},
	}
}
