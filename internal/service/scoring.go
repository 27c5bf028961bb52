package service

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"chess-puzzle-bot/internal/config"
	apperrors "chess-puzzle-bot/internal/errors"
	"chess-puzzle-bot/internal/model"
	"chess-puzzle-bot/internal/repository"
)

// Submission is one answer button press in standard mode.
type Submission struct {
	ChatID      int64
	ChatTitle   string
	IsGroup     bool
	MessageID   int
	UserID      int64
	DisplayName string
	Letter      string
}

// Outcome reports the result of a submission.
type Outcome struct {
	PuzzleID    string
	Number      int
	PuzzleTitle string

	// Practice is set when the user had already used their scored attempt.
	Practice   bool
	HasCorrect bool
	Correct    bool
	ChosenText string
	// CorrectText is empty when the puzzle has no correct option.
	CorrectText string

	Delta         int
	Score         int
	CurrentStreak int
	MaxStreak     int
	Title         string
	GroupScore    int
}

// ScoringService scores standard-mode answers.
type ScoringService struct {
	repo    *repository.DocumentRepository
	scoring config.ScoringConfig
	titles  TitleTable
}

// NewScoringService creates a new ScoringService instance.
func NewScoringService(repo *repository.DocumentRepository, scoring config.ScoringConfig, titles []config.TitleConfig) *ScoringService {
	return &ScoringService{repo: repo, scoring: scoring, titles: NewTitleTable(titles)}
}

// CorrectDelta returns the score change of a correct first attempt made
// with the given streak. The bonus rounds half away from zero.
func (s *ScoringService) CorrectDelta(streak int) int {
	return s.scoring.Correct + int(math.Round(float64(streak)*s.scoring.StreakBonusMultiplier))
}

// Submit resolves the pressed letter through the posting's mapping and
// applies the scoring rules. Only the first attempt per user and puzzle
// changes score, counters and streak; later ones are practice.
func (s *ScoringService) Submit(ctx context.Context, sub Submission) (Outcome, error) {
	letter := strings.ToUpper(strings.TrimSpace(sub.Letter))

	var out Outcome
	err := s.repo.Update(ctx, func(doc *model.Document) error {
		p, posting, ok := doc.PuzzleByPosting(sub.ChatID, sub.MessageID)
		if !ok {
			return apperrors.NotFound("this puzzle is no longer active")
		}
		if posting.Battle {
			return apperrors.Conflictf("this puzzle belongs to a battle")
		}
		chosen, ok := posting.Mapping[letter]
		if !ok {
			return apperrors.Validationf("option %s does not exist", letter)
		}

		out = Outcome{
			PuzzleID:    p.ID,
			Number:      p.Number,
			PuzzleTitle: p.Title,
			ChosenText:  chosen,
		}
		if correct, ok := p.CorrectOption(); ok {
			out.HasCorrect = true
			out.CorrectText = correct.Text
			out.Correct = correct.Text == chosen
		}

		u := ensureUser(doc, sub.UserID, sub.DisplayName, s.repo.Now)
		u.LastPuzzleID = p.ID

		if u.HasAnswered(p.ID) {
			out.Practice = true
			if out.Correct {
				u.Answers[p.ID] = chosen
			}
		} else {
			s.scoreFirstAttempt(u, p.ID, &out)
			if sub.IsGroup {
				g := ensureGroup(doc, sub.ChatID, sub.ChatTitle, s.repo.Now)
				if out.Delta != 0 {
					g.Score += out.Delta
					g.AttemptCount++
				}
				out.GroupScore = g.Score
			}
		}

		out.Score = u.Score
		out.CurrentStreak = u.CurrentStreak
		out.MaxStreak = u.MaxStreak
		out.Title = s.titles.For(u.Score)
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}

	log.Info().
		Int64("user_id", sub.UserID).
		Int64("chat_id", sub.ChatID).
		Str("puzzle_id", out.PuzzleID).
		Bool("correct", out.Correct).
		Bool("practice", out.Practice).
		Int("delta", out.Delta).
		Msg("Answer scored")
	return out, nil
}

func (s *ScoringService) scoreFirstAttempt(u *model.User, puzzleID string, out *Outcome) {
	u.AttemptCount++
	u.Answers[puzzleID] = out.ChosenText
	if !out.HasCorrect {
		return
	}

	if out.Correct {
		out.Delta = s.CorrectDelta(u.CurrentStreak)
		u.CorrectCount++
		u.CurrentStreak++
		if u.CurrentStreak > u.MaxStreak {
			u.MaxStreak = u.CurrentStreak
		}
	} else {
		out.Delta = s.scoring.Wrong
		u.CurrentStreak = 0
	}
	u.Score += out.Delta
}
