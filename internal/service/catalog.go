// Package service provides business logic implementations.
package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	apperrors "chess-puzzle-bot/internal/errors"
	"chess-puzzle-bot/internal/model"
	"chess-puzzle-bot/internal/repository"
)

// NewPuzzle is an authored puzzle before it gets an id and a number.
type NewPuzzle struct {
	Title         string
	ImageRef      string
	Options       []model.Option
	Hint          string
	CreatedBy     int64
	CreatedByName string
}

// RemoveResult reports what Remove deleted.
type RemoveResult struct {
	Puzzle        model.Puzzle
	PurgedAnswers int
}

// CatalogService owns the puzzle collection.
type CatalogService struct {
	repo *repository.DocumentRepository
}

// NewCatalogService creates a new CatalogService instance.
func NewCatalogService(repo *repository.DocumentRepository) *CatalogService {
	return &CatalogService{repo: repo}
}

// ValidPuzzles returns copies of all postable puzzles ordered by number.
func (s *CatalogService) ValidPuzzles() []model.Puzzle {
	var out []model.Puzzle
	_ = s.repo.View(func(doc *model.Document) error {
		valid := doc.ValidPuzzles()
		out = make([]model.Puzzle, len(valid))
		for i, p := range valid {
			out[i] = p.Clone()
		}
		return nil
	})
	return out
}

// Count returns the number of stored puzzles and how many of them are valid.
func (s *CatalogService) Count() (total, valid int) {
	_ = s.repo.View(func(doc *model.Document) error {
		total = len(doc.Puzzles)
		valid = len(doc.ValidPuzzles())
		return nil
	})
	return total, valid
}

// FindByNumber looks a puzzle up by its sequential number.
// A number outside 1..max is a validation error; a number inside the range
// that has no puzzle (a gap left by Remove) is not found.
func (s *CatalogService) FindByNumber(number int) (model.Puzzle, error) {
	var out model.Puzzle
	err := s.repo.View(func(doc *model.Document) error {
		p, err := findByNumber(doc, number)
		if err != nil {
			return err
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func findByNumber(doc *model.Document, number int) (*model.Puzzle, error) {
	for _, p := range doc.Puzzles {
		if p.Number != number {
			continue
		}
		if !p.IsValid() {
			return nil, apperrors.Corruptionf("puzzle #%d cannot be posted", number)
		}
		return p, nil
	}
	max := doc.MaxNumber()
	if number < 1 || number > max {
		if max == 0 {
			return nil, apperrors.Validation("there are no puzzles yet")
		}
		return nil, apperrors.Validationf("puzzle number must be between 1 and %d", max)
	}
	return nil, apperrors.NotFoundf("puzzle #%d does not exist", number)
}

// FindByID returns the puzzle with the given id.
func (s *CatalogService) FindByID(id string) (model.Puzzle, error) {
	var out model.Puzzle
	err := s.repo.View(func(doc *model.Document) error {
		p, ok := doc.PuzzleByID(id)
		if !ok {
			return apperrors.NotFoundf("puzzle %s does not exist", id)
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

// FindByIDPrefix resolves an id or a unique id prefix.
func (s *CatalogService) FindByIDPrefix(prefix string) (model.Puzzle, error) {
	var out model.Puzzle
	err := s.repo.View(func(doc *model.Document) error {
		p, err := findByIDPrefix(doc, prefix)
		if err != nil {
			return err
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func findByIDPrefix(doc *model.Document, prefix string) (*model.Puzzle, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, apperrors.Validation("puzzle id is required")
	}
	if p, ok := doc.PuzzleByID(prefix); ok {
		return p, nil
	}
	var matches []*model.Puzzle
	for _, p := range doc.Puzzles {
		if strings.HasPrefix(p.ID, prefix) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return nil, apperrors.NotFoundf("no puzzle id starts with %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return nil, apperrors.Validationf("%q matches %d puzzles, use a longer prefix", prefix, len(matches))
	}
}

// Create stores a new puzzle with a fresh id and the next free number.
func (s *CatalogService) Create(ctx context.Context, np NewPuzzle) (model.Puzzle, error) {
	p := &model.Puzzle{
		ID:            uuid.NewString(),
		Title:         strings.TrimSpace(np.Title),
		ImageRef:      np.ImageRef,
		Options:       append([]model.Option(nil), np.Options...),
		Hint:          strings.TrimSpace(np.Hint),
		CreatedBy:     np.CreatedBy,
		CreatedByName: np.CreatedByName,
		Postings:      make([]model.Posting, 0),
	}
	if p.Title == "" {
		return model.Puzzle{}, apperrors.Validation("title is required")
	}
	if !p.IsValid() {
		return model.Puzzle{}, apperrors.Validationf("a puzzle needs an image, 1 to %d options and a correct option", model.MaxOptions)
	}

	var out model.Puzzle
	err := s.repo.Update(ctx, func(doc *model.Document) error {
		p.Number = doc.MaxNumber() + 1
		p.CreatedAt = s.repo.Now()
		doc.Puzzles = append(doc.Puzzles, p)
		out = p.Clone()
		return nil
	})
	if err != nil {
		return model.Puzzle{}, err
	}

	log.Info().
		Str("puzzle_id", out.ID).
		Int("number", out.Number).
		Int64("admin_id", np.CreatedBy).
		Msg("Puzzle created")
	return out, nil
}

// Reindex renumbers every puzzle 1..N by creation time and resets both
// rotation cursors of every group.
func (s *CatalogService) Reindex(ctx context.Context) (int, error) {
	var count int
	err := s.repo.Update(ctx, func(doc *model.Document) error {
		sort.SliceStable(doc.Puzzles, func(i, j int) bool {
			return doc.Puzzles[i].CreatedAt.Before(doc.Puzzles[j].CreatedAt)
		})
		for i, p := range doc.Puzzles {
			p.Number = i + 1
		}
		for _, g := range doc.Groups {
			g.NextPuzzleIndex = 0
			g.BattleNextPuzzleIndex = 0
		}
		now := s.repo.Now()
		doc.Settings.LastReindexAt = &now
		count = len(doc.Puzzles)
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int("puzzles", count).Msg("Puzzles reindexed")
	return count, nil
}

// Remove deletes the puzzle matching an id prefix and purges it from every
// user's answers. Numbers are not compacted until the next Reindex.
func (s *CatalogService) Remove(ctx context.Context, prefix string) (RemoveResult, error) {
	var result RemoveResult
	err := s.repo.Update(ctx, func(doc *model.Document) error {
		p, err := findByIDPrefix(doc, prefix)
		if err != nil {
			return err
		}
		result.Puzzle = p.Clone()

		kept := doc.Puzzles[:0]
		for _, q := range doc.Puzzles {
			if q.ID != p.ID {
				kept = append(kept, q)
			}
		}
		for i := len(kept); i < len(doc.Puzzles); i++ {
			doc.Puzzles[i] = nil
		}
		doc.Puzzles = kept

		for _, u := range doc.Users {
			if _, ok := u.Answers[p.ID]; ok {
				delete(u.Answers, p.ID)
				result.PurgedAnswers++
			}
			if u.LastPuzzleID == p.ID {
				u.LastPuzzleID = ""
			}
		}
		return nil
	})
	if err != nil {
		return RemoveResult{}, err
	}
	log.Info().
		Str("puzzle_id", result.Puzzle.ID).
		Int("number", result.Puzzle.Number).
		Int("purged_answers", result.PurgedAnswers).
		Msg("Puzzle removed")
	return result, nil
}

// NextUnsolvedForUser returns the lowest-numbered valid puzzle the user has
// not answered, or the first valid puzzle once every one is answered.
func (s *CatalogService) NextUnsolvedForUser(userID int64) (model.Puzzle, error) {
	var out model.Puzzle
	err := s.repo.View(func(doc *model.Document) error {
		valid := doc.ValidPuzzles()
		if len(valid) == 0 {
			return apperrors.NotFound("there are no puzzles yet")
		}
		u := doc.Users[userID]
		for _, p := range valid {
			if u == nil || !u.HasAnswered(p.ID) {
				out = p.Clone()
				return nil
			}
		}
		out = valid[0].Clone()
		return nil
	})
	return out, err
}

// LastReindexAt returns when the catalog was last reindexed.
func (s *CatalogService) LastReindexAt() (time.Time, bool) {
	var at *time.Time
	_ = s.repo.View(func(doc *model.Document) error {
		at = doc.Settings.LastReindexAt
		return nil
	})
	if at == nil {
		return time.Time{}, false
	}
	return *at, true
}
