// Package messenger describes the outbound side of the messaging platform
// as seen by the core services.
package messenger

import (
	"context"

	"chess-puzzle-bot/internal/model"
)

// Mode selects how a puzzle's answer buttons are routed back.
type Mode int

const (
	// ModeStandard postings are scored by the scoring engine.
	ModeStandard Mode = iota
	// ModeBattle postings are scored by the battle session of the chat.
	ModeBattle
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeBattle {
		return "battle"
	}
	return "standard"
}

// Puzzle is everything needed to display one posting.
type Puzzle struct {
	ChatID   int64
	PuzzleID string
	Number   int
	Title    string
	ImageRef string
	Caption  string
	Choices  []model.Choice
	HasHint  bool
	Mode     Mode
}

// Messenger sends messages to chats.
type Messenger interface {
	// SendPuzzle posts the puzzle image with its answer buttons and returns
	// the platform message id.
	SendPuzzle(ctx context.Context, p Puzzle) (int, error)
	// SendText posts a plain text message.
	SendText(ctx context.Context, chatID int64, text string) error
}
