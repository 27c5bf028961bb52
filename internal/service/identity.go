package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"chess-puzzle-bot/internal/config"
	apperrors "chess-puzzle-bot/internal/errors"
	"chess-puzzle-bot/internal/model"
	"chess-puzzle-bot/internal/repository"
)

// Unranked is the title of a score below every threshold.
const Unranked = "Unranked"

// TitleTable maps scores to rank titles.
type TitleTable []config.TitleConfig

// NewTitleTable sorts the rows by threshold, highest first.
func NewTitleTable(rows []config.TitleConfig) TitleTable {
	t := append(TitleTable(nil), rows...)
	sort.SliceStable(t, func(i, j int) bool { return t[i].Threshold > t[j].Threshold })
	return t
}

// For returns the title of the highest threshold not above score.
func (t TitleTable) For(score int) string {
	for _, row := range t {
		if score >= row.Threshold {
			return row.Name
		}
	}
	return Unranked
}

// Profile is a user's standing as shown by /me.
type Profile struct {
	User     model.User
	Title    string
	Accuracy float64
	Rank     int
}

// GroupStanding is one row of the group leaderboard.
type GroupStanding struct {
	ChatID       int64
	Title        string
	Score        int
	AttemptCount int
}

// IdentityService manages user and group records and rank titles.
type IdentityService struct {
	repo   *repository.DocumentRepository
	titles TitleTable
}

// NewIdentityService creates a new IdentityService instance.
func NewIdentityService(repo *repository.DocumentRepository, titles []config.TitleConfig) *IdentityService {
	return &IdentityService{repo: repo, titles: NewTitleTable(titles)}
}

// TitleFor returns the rank title for a score.
func (s *IdentityService) TitleFor(score int) string {
	return s.titles.For(score)
}

// ensureUser returns the user record, creating it if necessary. A changed
// display name is refreshed.
func ensureUser(doc *model.Document, id int64, displayName string, now func() time.Time) *model.User {
	displayName = strings.TrimSpace(displayName)
	u, ok := doc.Users[id]
	if !ok {
		u = &model.User{
			ID:          id,
			DisplayName: displayName,
			Answers:     make(map[string]string),
			CreatedAt:   now(),
		}
		doc.Users[id] = u
		return u
	}
	if displayName != "" && u.DisplayName != displayName {
		u.DisplayName = displayName
	}
	return u
}

// ensureGroup returns the group record, registering it if necessary.
func ensureGroup(doc *model.Document, chatID int64, title string, now func() time.Time) *model.Group {
	g, ok := doc.Groups[chatID]
	if !ok {
		g = &model.Group{ChatID: chatID, Title: title, RegisteredAt: now()}
		doc.Groups[chatID] = g
		return g
	}
	if title != "" && g.Title != title {
		g.Title = title
	}
	return g
}

// EnsureUser creates the user if needed and refreshes the display name.
func (s *IdentityService) EnsureUser(ctx context.Context, id int64, displayName string) (model.User, error) {
	var out model.User
	err := s.repo.Update(ctx, func(doc *model.Document) error {
		out = ensureUser(doc, id, displayName, s.repo.Now).Clone()
		return nil
	})
	return out, err
}

// EnsureGroup registers the group chat if needed.
func (s *IdentityService) EnsureGroup(ctx context.Context, chatID int64, title string) (model.Group, error) {
	var out model.Group
	err := s.repo.Update(ctx, func(doc *model.Document) error {
		out = *ensureGroup(doc, chatID, title, s.repo.Now)
		return nil
	})
	return out, err
}

// AdjustScore adds delta to a user's score without touching any other stat.
func (s *IdentityService) AdjustScore(ctx context.Context, adminID, userID int64, delta int) (model.User, string, error) {
	var out model.User
	err := s.repo.Update(ctx, func(doc *model.Document) error {
		u, ok := doc.Users[userID]
		if !ok {
			return apperrors.NotFoundf("user %d is not registered", userID)
		}
		u.Score += delta
		out = u.Clone()
		return nil
	})
	if err != nil {
		return model.User{}, "", err
	}
	log.Info().
		Int64("admin_id", adminID).
		Int64("user_id", userID).
		Int("delta", delta).
		Int("score", out.Score).
		Str("operation", "adjust").
		Msg("Score adjusted")
	return out, s.TitleFor(out.Score), nil
}

// Profile returns a user's stats, title, accuracy and leaderboard rank.
func (s *IdentityService) Profile(userID int64) (Profile, error) {
	var out Profile
	err := s.repo.View(func(doc *model.Document) error {
		u, ok := doc.Users[userID]
		if !ok {
			return apperrors.NotFound("you have not answered any puzzle yet")
		}
		out.User = u.Clone()
		out.Title = s.TitleFor(u.Score)
		if u.AttemptCount > 0 {
			out.Accuracy = float64(u.CorrectCount) / float64(u.AttemptCount) * 100
		}
		out.Rank = 1
		for _, other := range doc.Users {
			if other.Score > u.Score {
				out.Rank++
			}
		}
		return nil
	})
	return out, err
}

// TopUsers returns the best users by score, ties broken by correct answers
// and then by id.
func (s *IdentityService) TopUsers(limit int) []model.User {
	var out []model.User
	_ = s.repo.View(func(doc *model.Document) error {
		out = make([]model.User, 0, len(doc.Users))
		for _, u := range doc.Users {
			if u.AttemptCount == 0 && u.Score == 0 {
				continue
			}
			out = append(out, u.Clone())
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].CorrectCount != out[j].CorrectCount {
			return out[i].CorrectCount > out[j].CorrectCount
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TopGroups returns the best groups by accumulated score.
func (s *IdentityService) TopGroups(limit int) []GroupStanding {
	var out []GroupStanding
	_ = s.repo.View(func(doc *model.Document) error {
		out = make([]GroupStanding, 0, len(doc.Groups))
		for _, g := range doc.Groups {
			out = append(out, GroupStanding{
				ChatID:       g.ChatID,
				Title:        g.Title,
				Score:        g.Score,
				AttemptCount: g.AttemptCount,
			})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChatID < out[j].ChatID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Groups returns every registered group chat id.
func (s *IdentityService) Groups() []int64 {
	var out []int64
	_ = s.repo.View(func(doc *model.Document) error {
		for id := range doc.Groups {
			out = append(out, id)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
