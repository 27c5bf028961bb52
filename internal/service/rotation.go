package service

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "chess-puzzle-bot/internal/errors"
	"chess-puzzle-bot/internal/model"
	"chess-puzzle-bot/internal/repository"
)

// RotationService walks each group through the valid puzzles in number order.
// Standard posting and battles keep separate cursors.
type RotationService struct {
	repo *repository.DocumentRepository
}

// NewRotationService creates a new RotationService instance.
func NewRotationService(repo *repository.DocumentRepository) *RotationService {
	return &RotationService{repo: repo}
}

// NextForGroup returns the puzzle at the group's cursor and advances it.
// A cursor past the end wraps to the first puzzle without any signal.
func (s *RotationService) NextForGroup(ctx context.Context, chatID int64, title string) (model.Puzzle, error) {
	var out model.Puzzle
	err := s.repo.Update(ctx, func(doc *model.Document) error {
		valid := doc.ValidPuzzles()
		if len(valid) == 0 {
			return apperrors.NotFound("there are no puzzles yet")
		}
		g := ensureGroup(doc, chatID, title, s.repo.Now)

		idx := g.NextPuzzleIndex
		if idx >= len(valid) {
			idx = 0
		}
		out = valid[idx].Clone()
		g.NextPuzzleIndex = (idx + 1) % len(valid)
		return nil
	})
	if err != nil {
		return model.Puzzle{}, err
	}
	log.Debug().Int64("chat_id", chatID).Int("number", out.Number).Msg("Rotation advanced")
	return out, nil
}

// NextBattleBatch draws size puzzles from the battle cursor, wrapping
// mid-batch if needed, and advances the cursor by size. Fewer than size
// valid puzzles is rejected before anything changes.
func (s *RotationService) NextBattleBatch(ctx context.Context, chatID int64, title string, size int) ([]model.Puzzle, error) {
	if size <= 0 {
		return nil, apperrors.Validation("battle size must be positive")
	}

	var out []model.Puzzle
	err := s.repo.Update(ctx, func(doc *model.Document) error {
		valid := doc.ValidPuzzles()
		if len(valid) < size {
			return apperrors.Validationf("a battle needs at least %d puzzles, only %d available", size, len(valid))
		}
		g := ensureGroup(doc, chatID, title, s.repo.Now)

		start := g.BattleNextPuzzleIndex
		if start >= len(valid) {
			start = 0
		}
		out = make([]model.Puzzle, size)
		for i := 0; i < size; i++ {
			out[i] = valid[(start+i)%len(valid)].Clone()
		}
		g.BattleNextPuzzleIndex = (start + size) % len(valid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
