package service

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/require"

	"chess-puzzle-bot/internal/config"
	"chess-puzzle-bot/internal/messenger"
	"chess-puzzle-bot/internal/model"
	"chess-puzzle-bot/internal/repository"
	"chess-puzzle-bot/internal/store"
)

// tb is satisfied by both *testing.T and *rapid.T.
type tb interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
	FailNow()
}

var baseTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// testPuzzle builds a valid puzzle whose correct option is "<id>-good".
func testPuzzle(number int) *model.Puzzle {
	id := fmt.Sprintf("puzzle-%02d", number)
	return &model.Puzzle{
		ID:        id,
		Number:    number,
		Title:     fmt.Sprintf("Position %d", number),
		ImageRef:  "file-" + id,
		Options:   []model.Option{{Text: id + "-bad"}, {Text: id + "-good", IsCorrect: true}, {Text: id + "-meh"}},
		Hint:      "look at the king",
		CreatedAt: baseTime.Add(time.Duration(number) * time.Hour),
		Postings:  []model.Posting{},
	}
}

// newTestRepo returns a repository over a memory store seeded with n
// valid puzzles numbered 1..n.
func newTestRepo(t tb, n int) (*repository.DocumentRepository, *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	doc := model.NewDocument()
	for i := 1; i <= n; i++ {
		doc.Puzzles = append(doc.Puzzles, testPuzzle(i))
	}
	st := store.NewMemoryStore()
	require.NoError(t, st.Save(ctx, doc))

	repo, err := repository.New(ctx, st)
	require.NoError(t, err)
	repo.SetClock(func() time.Time { return baseTime })
	return repo, st
}

type services struct {
	repo     *repository.DocumentRepository
	store    *store.MemoryStore
	fake     *messenger.Fake
	catalog  *CatalogService
	identity *IdentityService
	rotation *RotationService
	posting  *PostingService
	scoring  *ScoringService
}

func newServices(t tb, n int) *services {
	t.Helper()
	repo, st := newTestRepo(t, n)
	fake := messenger.NewFake()
	posting := NewPostingService(repo, fake)
	// Identity shuffle keeps canonical order; tests that care set their own.
	posting.SetShuffler(func(int, func(i, j int)) {})
	return &services{
		repo:     repo,
		store:    st,
		fake:     fake,
		catalog:  NewCatalogService(repo),
		identity: NewIdentityService(repo, config.DefaultTitles()),
		rotation: NewRotationService(repo),
		posting:  posting,
		scoring:  NewScoringService(repo, config.DefaultScoring(), config.DefaultTitles()),
	}
}

// letterFor returns the letter bound to text in a posting.
func letterFor(t tb, posting model.Posting, text string) string {
	t.Helper()
	for letter, v := range posting.Mapping {
		if v == text {
			return letter
		}
	}
	t.Fatalf("text %q not in mapping %v", text, posting.Mapping)
	return ""
}

func (s *services) user(t tb, id int64) model.User {
	t.Helper()
	var out model.User
	require.NoError(t, s.repo.View(func(doc *model.Document) error {
		u, ok := doc.Users[id]
		require.True(t, ok, "user %d missing", id)
		out = u.Clone()
		return nil
	}))
	return out
}

func (s *services) group(t tb, chatID int64) model.Group {
	t.Helper()
	var out model.Group
	require.NoError(t, s.repo.View(func(doc *model.Document) error {
		g, ok := doc.Groups[chatID]
		require.True(t, ok, "group %d missing", chatID)
		out = *g
		return nil
	}))
	return out
}

func (s *services) setUser(t tb, u model.User) {
	t.Helper()
	require.NoError(t, s.repo.Update(context.Background(), func(doc *model.Document) error {
		if u.Answers == nil {
			u.Answers = map[string]string{}
		}
		doc.Users[u.ID] = &u
		return nil
	}))
}

func (s *services) setGroup(t tb, g model.Group) {
	t.Helper()
	require.NoError(t, s.repo.Update(context.Background(), func(doc *model.Document) error {
		doc.Groups[g.ChatID] = &g
		return nil
	}))
}
