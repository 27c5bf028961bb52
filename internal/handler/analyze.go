package handler

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"chess-puzzle-bot/internal/analysis"
)

// AnalyzeHandler forwards games to the analysis service.
type AnalyzeHandler struct {
	client *analysis.Client
}

// NewAnalyzeHandler creates a new AnalyzeHandler.
func NewAnalyzeHandler(client *analysis.Client) *AnalyzeHandler {
	return &AnalyzeHandler{client: client}
}

// HandleAnalyze handles the /analyze command.
// Format: /analyze <pgn>, or /analyze as a reply to a message holding the PGN.
func (h *AnalyzeHandler) HandleAnalyze(c tele.Context) error {
	msg := c.Message()
	if msg == nil {
		return nil
	}

	pgn := strings.TrimSpace(msg.Payload)
	if pgn == "" && msg.ReplyTo != nil {
		pgn = strings.TrimSpace(msg.ReplyTo.Text)
	}
	if pgn == "" {
		return c.Reply("❌ Usage: /analyze <pgn>\nOr reply /analyze to a message with the game.")
	}

	if err := c.Notify(tele.Typing); err != nil {
		log.Debug().Err(err).Msg("Failed to send chat action")
	}

	report, err := h.client.Analyze(context.Background(), pgn)
	if err != nil {
		return c.Reply(errorText(err))
	}
	return c.Reply(analysis.Format(report))
}
