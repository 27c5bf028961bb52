package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"chess-puzzle-bot/internal/service"
)

const helpText = "♟ Chess puzzle commands:\n\n" +
	"/puzzle - next puzzle\n" +
	"/puzzle <n> - puzzle number n\n" +
	"/me - your score and title\n" +
	"/top - best players\n" +
	"/group_top - best groups\n" +
	"/battle - race for 5 puzzles (groups)\n" +
	"/analyze <pgn> - review a game\n\n" +
	"Only your first answer to a puzzle counts. A correct answer scores more on a streak."

// AccountHandler handles registration and personal stats.
type AccountHandler struct {
	identity *service.IdentityService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(identity *service.IdentityService) *AccountHandler {
	return &AccountHandler{identity: identity}
}

// HandleStart handles the /start command.
// Registers the user, and the group when sent in one.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	user, err := h.identity.EnsureUser(ctx, sender.ID, displayName(sender))
	if err != nil {
		return c.Reply(errorText(err))
	}
	if chat := c.Chat(); isGroup(chat) {
		if _, err := h.identity.EnsureGroup(ctx, chat.ID, chat.Title); err != nil {
			return c.Reply(errorText(err))
		}
	}

	return c.Reply(fmt.Sprintf("👋 Welcome %s! Score: %d (%s)\n\n%s",
		displayName(sender), user.Score, h.identity.TitleFor(user.Score), helpText))
}

// HandleHelp handles the /help command.
func (h *AccountHandler) HandleHelp(c tele.Context) error {
	return c.Reply(helpText)
}

// HandleMe handles the /me command.
func (h *AccountHandler) HandleMe(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	p, err := h.identity.Profile(sender.ID)
	if err != nil {
		return c.Reply(errorText(err))
	}

	return c.Reply(fmt.Sprintf(
		"👤 %s\n"+
			"🏅 Title: %s\n"+
			"⭐ Score: %d (rank #%d)\n"+
			"🎯 Correct: %d/%d (%.1f%%)\n"+
			"🔥 Streak: %d (best %d)",
		displayName(sender), p.Title, p.User.Score, p.Rank,
		p.User.CorrectCount, p.User.AttemptCount, p.Accuracy,
		p.User.CurrentStreak, p.User.MaxStreak,
	))
}
