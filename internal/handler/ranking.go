package handler

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"chess-puzzle-bot/internal/service"
)

// LeaderboardSize is the number of rows shown by /top and /group_top.
const LeaderboardSize = 10

// RankingHandler handles the leaderboards.
type RankingHandler struct {
	identity *service.IdentityService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(identity *service.IdentityService) *RankingHandler {
	return &RankingHandler{identity: identity}
}

// HandleTop handles the /top command.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	users := h.identity.TopUsers(LeaderboardSize)

	var sb strings.Builder
	sb.WriteString("🏆 Top players\n")
	sb.WriteString("━━━━━━━━━━━━━━━\n")
	if len(users) == 0 {
		sb.WriteString("Nobody has answered yet.")
		return c.Reply(sb.String())
	}
	for i, u := range users {
		name := u.DisplayName
		if name == "" {
			name = fmt.Sprintf("user %d", u.ID)
		}
		sb.WriteString(fmt.Sprintf("%s %s: %d (%s)\n", rankMark(i), name, u.Score, h.identity.TitleFor(u.Score)))
	}
	return c.Reply(strings.TrimRight(sb.String(), "\n"))
}

// HandleGroupTop handles the /group_top command.
func (h *RankingHandler) HandleGroupTop(c tele.Context) error {
	groups := h.identity.TopGroups(LeaderboardSize)

	var sb strings.Builder
	sb.WriteString("🏆 Top groups\n")
	sb.WriteString("━━━━━━━━━━━━━━━\n")
	if len(groups) == 0 {
		sb.WriteString("No group has played yet.")
		return c.Reply(sb.String())
	}
	for i, g := range groups {
		title := g.Title
		if title == "" {
			title = fmt.Sprintf("chat %d", g.ChatID)
		}
		sb.WriteString(fmt.Sprintf("%s %s: %d (%d answers)\n", rankMark(i), title, g.Score, g.AttemptCount))
	}
	return c.Reply(strings.TrimRight(sb.String(), "\n"))
}
