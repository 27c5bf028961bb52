// Package handler provides Telegram bot command handlers.
package handler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	apperrors "chess-puzzle-bot/internal/errors"
)

const genericFailure = "❌ Something went wrong, please try again later."

// displayName prefers the @username, then the full name, then the id.
func displayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	return fmt.Sprintf("user %d", u.ID)
}

func isGroup(chat *tele.Chat) bool {
	return chat != nil && (chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup)
}

// errorText turns a service error into the reply shown in chat. Internal
// failures are logged and replaced by a generic message.
func errorText(err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.ErrInternal:
		log.Error().Err(err).Msg("Request failed")
		return genericFailure
	case apperrors.ErrCorruption:
		return "⚠️ " + apperrors.Message(err, "this puzzle is damaged")
	case apperrors.ErrExternal:
		log.Warn().Err(err).Msg("External call failed")
	}
	return "❌ " + capitalize(apperrors.Message(err, "request failed"))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var medals = []string{"🥇", "🥈", "🥉"}

func rankMark(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return fmt.Sprintf("%d.", i+1)
}
