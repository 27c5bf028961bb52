package bot

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"chess-puzzle-bot/internal/keyboard"
	"chess-puzzle-bot/internal/messenger"
)

// TeleMessenger delivers postings through the Telegram Bot API.
type TeleMessenger struct {
	bot *tele.Bot
}

// NewTeleMessenger creates a TeleMessenger on top of a telebot instance.
func NewTeleMessenger(b *tele.Bot) *TeleMessenger {
	return &TeleMessenger{bot: b}
}

// SendPuzzle sends the puzzle image with its answer keyboard. ImageRef is
// either an http(s) URL or a Telegram file id.
func (m *TeleMessenger) SendPuzzle(ctx context.Context, p messenger.Puzzle) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	photo := &tele.Photo{File: photoFile(p.ImageRef), Caption: p.Caption}
	msg, err := m.bot.Send(tele.ChatID(p.ChatID), photo, keyboard.Build(p))
	if err != nil {
		return 0, fmt.Errorf("failed to send puzzle %s to chat %d: %w", p.PuzzleID, p.ChatID, err)
	}
	return msg.ID, nil
}

// SendText sends a plain text message.
func (m *TeleMessenger) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := m.bot.Send(tele.ChatID(chatID), text); err != nil {
		return fmt.Errorf("failed to send message to chat %d: %w", chatID, err)
	}
	return nil
}

func photoFile(ref string) tele.File {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tele.FromURL(ref)
	}
	return tele.File{FileID: ref}
}
