package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chess-puzzle-bot/internal/config"
	apperrors "chess-puzzle-bot/internal/errors"
	"chess-puzzle-bot/internal/messenger"
	"chess-puzzle-bot/internal/model"
)

func post(t tb, s *services, chatID int64, puzzleID string) PostedPuzzle {
	t.Helper()
	posted, err := s.posting.Post(context.Background(), PostRequest{ChatID: chatID, PuzzleID: puzzleID})
	require.NoError(t, err)
	return posted
}

func submit(s *services, chatID int64, posted PostedPuzzle, userID int64, letter string) (Outcome, error) {
	return s.scoring.Submit(context.Background(), Submission{
		ChatID:      chatID,
		ChatTitle:   "Club",
		IsGroup:     chatID < 0,
		MessageID:   posted.Posting.MessageID,
		UserID:      userID,
		DisplayName: "alice",
		Letter:      letter,
	})
}

func TestScoring_StreakBonusExample(t *testing.T) {
	s := newServices(t, 1)
	s.setUser(t, model.User{ID: 1, Score: 100, CurrentStreak: 3, MaxStreak: 3})
	posted := post(t, s, 5, "puzzle-01")
	good := letterFor(t, posted.Posting, "puzzle-01-good")

	out, err := submit(s, 5, posted, 1, good)
	require.NoError(t, err)
	assert.True(t, out.Correct)
	assert.False(t, out.Practice)
	assert.Equal(t, 9, out.Delta)
	assert.Equal(t, 109, out.Score)
	assert.Equal(t, 4, out.CurrentStreak)
	assert.Equal(t, 4, out.MaxStreak)
	assert.Equal(t, "Club Player", out.Title)

	bad := letterFor(t, posted.Posting, "puzzle-01-bad")
	out, err = submit(s, 5, posted, 1, bad)
	require.NoError(t, err)
	assert.True(t, out.Practice)
	assert.False(t, out.Correct)
	assert.Equal(t, 0, out.Delta)
	assert.Equal(t, 109, out.Score)

	u := s.user(t, 1)
	assert.Equal(t, 109, u.Score)
	assert.Equal(t, 1, u.AttemptCount)
	assert.Equal(t, 1, u.CorrectCount)
	assert.Equal(t, 4, u.CurrentStreak)
	assert.Equal(t, "puzzle-01-good", u.Answers["puzzle-01"])
}

func TestScoring_WrongResetsStreakAndChargesGroup(t *testing.T) {
	s := newServices(t, 1)
	s.setUser(t, model.User{ID: 1, Score: 20, CurrentStreak: 5, MaxStreak: 7})
	posted := post(t, s, -100, "puzzle-01")

	out, err := submit(s, -100, posted, 1, letterFor(t, posted.Posting, "puzzle-01-meh"))
	require.NoError(t, err)
	assert.False(t, out.Correct)
	assert.Equal(t, -16, out.Delta)
	assert.Equal(t, 4, out.Score)
	assert.Equal(t, 0, out.CurrentStreak)
	assert.Equal(t, 7, out.MaxStreak)
	assert.Equal(t, "puzzle-01-good", out.CorrectText)
	assert.Equal(t, -16, out.GroupScore)

	g := s.group(t, -100)
	assert.Equal(t, -16, g.Score)
	assert.Equal(t, 1, g.AttemptCount)
	assert.Equal(t, "Club", g.Title)
}

func TestScoring_PracticeRefreshesOnlyCorrectAnswer(t *testing.T) {
	s := newServices(t, 1)
	posted := post(t, s, 5, "puzzle-01")

	_, err := submit(s, 5, posted, 1, letterFor(t, posted.Posting, "puzzle-01-bad"))
	require.NoError(t, err)
	assert.Equal(t, "puzzle-01-bad", s.user(t, 1).Answers["puzzle-01"])

	_, err = submit(s, 5, posted, 1, letterFor(t, posted.Posting, "puzzle-01-meh"))
	require.NoError(t, err)
	assert.Equal(t, "puzzle-01-bad", s.user(t, 1).Answers["puzzle-01"])

	out, err := submit(s, 5, posted, 1, letterFor(t, posted.Posting, "puzzle-01-good"))
	require.NoError(t, err)
	assert.True(t, out.Practice)
	assert.True(t, out.Correct)

	u := s.user(t, 1)
	assert.Equal(t, "puzzle-01-good", u.Answers["puzzle-01"])
	assert.Equal(t, -16, u.Score)
	assert.Equal(t, 1, u.AttemptCount)
	assert.Equal(t, 0, u.CorrectCount)
}

func TestScoring_AnswerFromAnotherPostingIsPractice(t *testing.T) {
	s := newServices(t, 1)
	first := post(t, s, -100, "puzzle-01")
	second := post(t, s, -200, "puzzle-01")

	_, err := submit(s, -100, first, 1, letterFor(t, first.Posting, "puzzle-01-good"))
	require.NoError(t, err)

	out, err := submit(s, -200, second, 1, letterFor(t, second.Posting, "puzzle-01-good"))
	require.NoError(t, err)
	assert.True(t, out.Practice)
	assert.Equal(t, 8, s.user(t, 1).Score)
}

func TestScoring_NoCorrectOptionStillBlocksScoring(t *testing.T) {
	ctx := context.Background()
	s := newServices(t, 1)
	posted := post(t, s, 5, "puzzle-01")
	require.NoError(t, s.repo.Update(ctx, func(doc *model.Document) error {
		doc.Puzzles[0].Options[1].IsCorrect = false
		return nil
	}))

	out, err := submit(s, 5, posted, 1, "a")
	require.NoError(t, err)
	assert.False(t, out.HasCorrect)
	assert.Equal(t, 0, out.Delta)

	u := s.user(t, 1)
	assert.Equal(t, 1, u.AttemptCount)
	assert.True(t, u.HasAnswered("puzzle-01"))
}

func TestScoring_Rejections(t *testing.T) {
	ctx := context.Background()
	s := newServices(t, 1)
	posted := post(t, s, 5, "puzzle-01")

	_, err := submit(s, 5, posted, 1, "Z")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	_, err = s.scoring.Submit(ctx, Submission{ChatID: 5, MessageID: 999, UserID: 1, Letter: "A"})
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	battle, err := s.posting.Post(ctx, PostRequest{ChatID: -1, PuzzleID: "puzzle-01", Mode: messenger.ModeBattle})
	require.NoError(t, err)
	_, err = submit(s, -1, battle, 1, "A")
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))

	var exists bool
	require.NoError(t, s.repo.View(func(doc *model.Document) error {
		_, exists = doc.Users[1]
		return nil
	}))
	assert.False(t, exists, "rejected submissions must not create users")
}

func TestScoring_SaveFailureIsInternal(t *testing.T) {
	s := newServices(t, 1)
	posted := post(t, s, 5, "puzzle-01")
	s.store.FailSaves(assert.AnError)

	_, err := submit(s, 5, posted, 1, "A")
	assert.True(t, apperrors.Is(err, apperrors.ErrInternal))
}

func TestScoring_CustomConstants(t *testing.T) {
	s := newServices(t, 1)
	s.scoring = NewScoringService(s.repo, config.ScoringConfig{Correct: 10, Wrong: -5, StreakBonusMultiplier: 0.5}, config.DefaultTitles())
	s.setUser(t, model.User{ID: 1, CurrentStreak: 1, MaxStreak: 1})
	posted := post(t, s, 5, "puzzle-01")

	out, err := submit(s, 5, posted, 1, letterFor(t, posted.Posting, "puzzle-01-good"))
	require.NoError(t, err)
	// 0.5 rounds half away from zero.
	assert.Equal(t, 11, out.Delta)
}

func TestCorrectDelta(t *testing.T) {
	s := NewScoringService(nil, config.DefaultScoring(), nil)

	cases := map[int]int{0: 8, 1: 8, 2: 8, 3: 9, 5: 9, 7: 9, 8: 10, 10: 10, 12: 10, 13: 11}
	for streak, want := range cases {
		assert.Equal(t, want, s.CorrectDelta(streak), "streak %d", streak)
	}
}
