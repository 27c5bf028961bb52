package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chess-puzzle-bot/internal/service"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

func addRoutes(r chi.Router, catalog *service.CatalogService, identity *service.IdentityService) {
	r.Get("/healthz", handleHealth(catalog))
	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard/users", handleUserLeaderboard(identity))
		r.Get("/leaderboard/groups", handleGroupLeaderboard(identity))
		r.Get("/puzzles", handlePuzzles(catalog))
	})
}

func handleHealth(catalog *service.CatalogService) http.HandlerFunc {
	type response struct {
		Status  string `json:"status"`
		Puzzles int    `json:"puzzles"`
		Valid   int    `json:"valid"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		total, valid := catalog.Count()
		writeJSON(w, http.StatusOK, response{Status: "ok", Puzzles: total, Valid: valid})
	}
}

func handleUserLeaderboard(identity *service.IdentityService) http.HandlerFunc {
	type row struct {
		Rank          int    `json:"rank"`
		UserID        int64  `json:"user_id"`
		Name          string `json:"name"`
		Score         int    `json:"score"`
		Title         string `json:"title"`
		CorrectCount  int    `json:"correct_count"`
		AttemptCount  int    `json:"attempt_count"`
		CurrentStreak int    `json:"current_streak"`
		MaxStreak     int    `json:"max_streak"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(w, r)
		if !ok {
			return
		}
		users := identity.TopUsers(limit)
		rows := make([]row, len(users))
		for i, u := range users {
			rows[i] = row{
				Rank:          i + 1,
				UserID:        u.ID,
				Name:          u.DisplayName,
				Score:         u.Score,
				Title:         identity.TitleFor(u.Score),
				CorrectCount:  u.CorrectCount,
				AttemptCount:  u.AttemptCount,
				CurrentStreak: u.CurrentStreak,
				MaxStreak:     u.MaxStreak,
			}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func handleGroupLeaderboard(identity *service.IdentityService) http.HandlerFunc {
	type row struct {
		Rank         int    `json:"rank"`
		ChatID       int64  `json:"chat_id"`
		Title        string `json:"title"`
		Score        int    `json:"score"`
		AttemptCount int    `json:"attempt_count"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := parseLimit(w, r)
		if !ok {
			return
		}
		groups := identity.TopGroups(limit)
		rows := make([]row, len(groups))
		for i, g := range groups {
			rows[i] = row{Rank: i + 1, ChatID: g.ChatID, Title: g.Title, Score: g.Score, AttemptCount: g.AttemptCount}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

// handlePuzzles lists postable puzzles without their answers.
func handlePuzzles(catalog *service.CatalogService) http.HandlerFunc {
	type summary struct {
		Number    int       `json:"number"`
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Options   int       `json:"options"`
		HasHint   bool      `json:"has_hint"`
		Postings  int       `json:"postings"`
		CreatedAt time.Time `json:"created_at"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		puzzles := catalog.ValidPuzzles()
		out := make([]summary, len(puzzles))
		for i, p := range puzzles {
			out[i] = summary{
				Number:    p.Number,
				ID:        p.ID,
				Title:     p.Title,
				Options:   len(p.Options),
				HasHint:   p.Hint != "",
				Postings:  len(p.Postings),
				CreatedAt: p.CreatedAt,
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > maxLimit {
		writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
		return 0, false
	}
	return limit, true
}
