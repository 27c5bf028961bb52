package battle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "chess-puzzle-bot/internal/errors"
	"chess-puzzle-bot/internal/messenger"
	"chess-puzzle-bot/internal/model"
	"chess-puzzle-bot/internal/repository"
	"chess-puzzle-bot/internal/service"
	"chess-puzzle-bot/internal/store"
)

const chatID int64 = -100

type fixture struct {
	repo    *repository.DocumentRepository
	fake    *messenger.Fake
	posting *service.PostingService
	battle  *Orchestrator
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	ctx := context.Background()

	doc := model.NewDocument()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("p%d", i)
		doc.Puzzles = append(doc.Puzzles, &model.Puzzle{
			ID: id, Number: i, Title: "Puzzle " + id, ImageRef: "img-" + id,
			Options:   []model.Option{{Text: id + "-right", IsCorrect: true}, {Text: id + "-wrong"}},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			Postings:  []model.Posting{},
		})
	}
	st := store.NewMemoryStore()
	require.NoError(t, st.Save(ctx, doc))
	repo, err := repository.New(ctx, st)
	require.NoError(t, err)

	fake := messenger.NewFake()
	posting := service.NewPostingService(repo, fake)
	posting.SetShuffler(func(int, func(i, j int)) {})

	return &fixture{
		repo:    repo,
		fake:    fake,
		posting: posting,
		battle:  NewOrchestrator(service.NewRotationService(repo), posting, fake, 5, []int64{999}),
	}
}

// current returns the message id and the letters of the right and wrong
// option of the round being played.
func (f *fixture) current(t *testing.T) (int, string, string) {
	t.Helper()
	s, ok := f.battle.Snapshot(chatID)
	require.True(t, ok)
	r := s.Rounds[s.Current]
	var right, wrong string
	for letter, text := range r.Mapping {
		if text == r.CorrectText {
			right = letter
		} else {
			wrong = letter
		}
	}
	return r.MessageID, right, wrong
}

func (f *fixture) answer(userID int64, messageID int, letter string) (AnswerResult, error) {
	return f.battle.Answer(context.Background(), Answer{
		ChatID: chatID, MessageID: messageID, UserID: userID,
		DisplayName: fmt.Sprintf("player%d", userID), Letter: letter,
	})
}

func TestStart_DrawsBatchFromBattleCursor(t *testing.T) {
	f := newFixture(t, 5)
	require.NoError(t, f.repo.Update(context.Background(), func(doc *model.Document) error {
		doc.Groups[chatID] = &model.Group{ChatID: chatID, BattleNextPuzzleIndex: 3}
		return nil
	}))

	require.NoError(t, f.battle.Start(context.Background(), chatID, "Club", 1))

	s, ok := f.battle.Snapshot(chatID)
	require.True(t, ok)
	numbers := make([]int, len(s.Rounds))
	for i, r := range s.Rounds {
		numbers[i] = r.Number
	}
	assert.Equal(t, []int{4, 5, 1, 2, 3}, numbers)
	assert.Equal(t, 0, s.Current)

	sent := f.fake.Puzzles()
	require.Len(t, sent, 1)
	assert.Equal(t, "p4", sent[0].PuzzleID)
	assert.Equal(t, messenger.ModeBattle, sent[0].Mode)
	assert.Contains(t, sent[0].Caption, "Puzzle 1 of 5")

	require.NoError(t, f.repo.View(func(doc *model.Document) error {
		assert.Equal(t, 3, doc.Groups[chatID].BattleNextPuzzleIndex)
		return nil
	}))
}

func TestStart_Rejections(t *testing.T) {
	ctx := context.Background()

	small := newFixture(t, 4)
	err := small.battle.Start(ctx, chatID, "", 1)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
	assert.False(t, small.battle.IsActive(chatID))
	assert.Empty(t, small.fake.Puzzles())

	f := newFixture(t, 5)
	require.NoError(t, f.battle.Start(ctx, chatID, "", 1))
	assert.ErrorIs(t, f.battle.Start(ctx, chatID, "", 2), ErrSessionExists)
}

func TestStart_WhileChatBusy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)

	f.battle.chatLock.Lock(chatID)
	assert.ErrorIs(t, f.battle.Start(ctx, chatID, "", 1), ErrSessionExists)
	f.battle.chatLock.Unlock(chatID)

	require.NoError(t, f.battle.Start(ctx, chatID, "", 1))
}

// Snapshots taken while rounds are played see whole events only. Run with
// -race to catch unsynchronised session reads.
func TestSnapshot_DuringAnswers(t *testing.T) {
	f := newFixture(t, 5)
	require.NoError(t, f.battle.Start(context.Background(), chatID, "", 1))

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if s, ok := f.battle.Snapshot(chatID); ok {
				assert.Len(t, s.Rounds, 5)
				assert.GreaterOrEqual(t, s.Current, 0)
				assert.Less(t, s.Current, 5)
			}
		}
	}()

	for round := 0; round < 5; round++ {
		msgID, right, _ := f.current(t)
		_, err := f.answer(1, msgID, right)
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()

	_, ok := f.battle.Snapshot(chatID)
	assert.False(t, ok)
}

func TestBattle_FullSession(t *testing.T) {
	f := newFixture(t, 5)
	require.NoError(t, f.battle.Start(context.Background(), chatID, "", 1))

	var messages []int
	for round := 0; round < 5; round++ {
		msgID, right, wrong := f.current(t)
		messages = append(messages, msgID)

		user, letter := int64(1), right
		switch round {
		case 1:
			user = 2
		case 3:
			letter = wrong
		}
		res, err := f.answer(user, msgID, letter)
		require.NoError(t, err)
		assert.Equal(t, round+1, res.Round)
		assert.Equal(t, letter == right, res.Correct)
		assert.Equal(t, round == 4, res.Finished)
	}

	assert.False(t, f.battle.IsActive(chatID))

	texts := f.fake.Texts(chatID)
	board := texts[len(texts)-1]
	assert.Contains(t, board, "🥇 player1: 3/5")
	assert.Contains(t, board, "🥈 player2: 1/5")
	assert.Contains(t, board, "Winner: player1")

	for _, msgID := range messages {
		_, err := f.posting.Resolve(chatID, msgID)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound), "battle posting %d not pruned", msgID)
	}

	// Battle scoring never touches persistent user stats.
	require.NoError(t, f.repo.View(func(doc *model.Document) error {
		assert.Empty(t, doc.Users)
		return nil
	}))
}

func TestBattle_SingleWinner(t *testing.T) {
	f := newFixture(t, 5)
	require.NoError(t, f.battle.Start(context.Background(), chatID, "", 1))
	msgID, right, _ := f.current(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.answer(int64(i+1), msgID, right)
		}(i)
	}
	wg.Wait()

	var won, late int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrTooLate):
			late++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, late)

	s, ok := f.battle.Snapshot(chatID)
	require.True(t, ok)
	assert.Equal(t, 1, s.Current)
	assert.Len(t, s.Rounds[0].AnsweredBy, 1)
	assert.Len(t, f.fake.Puzzles(), 2)
}

func TestBattle_AnswerRejections(t *testing.T) {
	f := newFixture(t, 5)

	_, err := f.answer(1, 1, "A")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	require.NoError(t, f.battle.Start(context.Background(), chatID, "", 1))
	msgID, _, _ := f.current(t)

	_, err = f.answer(1, msgID+1000, "A")
	assert.ErrorIs(t, err, ErrNotInBattle)

	_, err = f.answer(1, msgID, "Q")
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))

	s, _ := f.battle.Snapshot(chatID)
	assert.Equal(t, 0, s.Current, "invalid letters do not take the round")
}

func TestBattle_AbortOnCorruptPuzzle(t *testing.T) {
	f := newFixture(t, 5)
	require.NoError(t, f.battle.Start(context.Background(), chatID, "", 1))
	msgID, right, _ := f.current(t)

	require.NoError(t, f.repo.Update(context.Background(), func(doc *model.Document) error {
		p, _ := doc.PuzzleByID("p2")
		p.ImageRef = ""
		return nil
	}))

	res, err := f.answer(1, msgID, right)
	require.NoError(t, err)
	assert.True(t, res.Finished)
	assert.False(t, f.battle.IsActive(chatID))

	assert.True(t, f.fake.Contains(chatID, "Battle aborted"))
	assert.True(t, f.fake.Contains(chatID, "player1: 1/5"))
	assert.True(t, f.fake.Contains(999, "puzzle #2"))

	_, err = f.posting.Resolve(chatID, msgID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	// The damaged puzzle is left in place for inspection.
	require.NoError(t, f.repo.View(func(doc *model.Document) error {
		_, ok := doc.PuzzleByID("p2")
		assert.True(t, ok)
		return nil
	}))
}

func TestBattle_AbortOnSendFailure(t *testing.T) {
	f := newFixture(t, 5)
	f.fake.FailPuzzleAfter = 0
	f.fake.Err = errors.New("telegram down")

	require.NoError(t, f.battle.Start(context.Background(), chatID, "", 1))
	assert.False(t, f.battle.IsActive(chatID))
	assert.True(t, f.fake.Contains(chatID, "could not be posted"))
	assert.True(t, f.fake.Contains(chatID, "Nobody answered"))
	assert.False(t, f.fake.Contains(999, "aborted"), "send failures are not reported to admins")
}

func TestBattle_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 5)

	assert.ErrorIs(t, f.battle.Cancel(ctx, chatID, 999), ErrNoActiveSession)

	require.NoError(t, f.battle.Start(ctx, chatID, "", 1))
	msgID, _, _ := f.current(t)
	require.NoError(t, f.battle.Cancel(ctx, chatID, 999))

	assert.False(t, f.battle.IsActive(chatID))
	assert.True(t, f.fake.Contains(chatID, "cancelled"))
	_, err := f.posting.Resolve(chatID, msgID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	// A new battle can start right away.
	require.NoError(t, f.battle.Start(ctx, chatID, "", 1))
}

func TestRank_TiesSharePlace(t *testing.T) {
	standings := Rank(
		map[int64]int{1: 2, 2: 3, 3: 3, 4: 0},
		map[int64]string{1: "a", 2: "b", 3: "c"},
	)

	places := make([]int, len(standings))
	for i, st := range standings {
		places[i] = st.Place
	}
	assert.Equal(t, []int{1, 1, 3, 4}, places)
	assert.Equal(t, int64(2), standings[0].UserID)

	board := Scoreboard(standings, 5)
	assert.Contains(t, board, "Shared first place: b, c")
	assert.Contains(t, board, "4. user 4: 0/5")
	assert.False(t, strings.Contains(board, "Winner:"))
}
