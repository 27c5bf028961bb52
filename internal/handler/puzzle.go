package handler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"chess-puzzle-bot/internal/game/battle"
	"chess-puzzle-bot/internal/messenger"
	"chess-puzzle-bot/internal/model"
	"chess-puzzle-bot/internal/service"
)

// PuzzleHandler serves puzzles and scores standard-mode answers.
type PuzzleHandler struct {
	catalog  *service.CatalogService
	rotation *service.RotationService
	posting  *service.PostingService
	scoring  *service.ScoringService
	battles  *battle.Orchestrator
}

// NewPuzzleHandler creates a new PuzzleHandler.
func NewPuzzleHandler(
	catalog *service.CatalogService,
	rotation *service.RotationService,
	posting *service.PostingService,
	scoring *service.ScoringService,
	battles *battle.Orchestrator,
) *PuzzleHandler {
	return &PuzzleHandler{
		catalog:  catalog,
		rotation: rotation,
		posting:  posting,
		scoring:  scoring,
		battles:  battles,
	}
}

// HandlePuzzle handles the /puzzle command.
// Format: /puzzle [number]
// Groups follow their rotation cursor; private chats get the first puzzle
// the user has not solved.
func (h *PuzzleHandler) HandlePuzzle(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	if isGroup(chat) && h.battles.IsActive(chat.ID) {
		return c.Reply("⚔️ A battle is running here, finish it first.")
	}

	var (
		puzzle model.Puzzle
		err    error
	)
	switch args := c.Args(); {
	case len(args) > 0:
		n, convErr := strconv.Atoi(args[0])
		if convErr != nil {
			return c.Reply("❌ Usage: /puzzle [number]")
		}
		puzzle, err = h.catalog.FindByNumber(n)
	case isGroup(chat):
		puzzle, err = h.rotation.NextForGroup(ctx, chat.ID, chat.Title)
	default:
		puzzle, err = h.catalog.NextUnsolvedForUser(sender.ID)
	}
	if err != nil {
		return c.Reply(errorText(err))
	}

	if _, err := h.posting.Post(ctx, service.PostRequest{
		ChatID:   chat.ID,
		PuzzleID: puzzle.ID,
		Mode:     messenger.ModeStandard,
	}); err != nil {
		return c.Reply(errorText(err))
	}
	return nil
}

// HandleAnswer handles an answer button press on a standard posting.
// The result is shown privately; a correct first answer in a group is also
// announced without revealing the move.
func (h *PuzzleHandler) HandleAnswer(c tele.Context, letter string) error {
	ctx := context.Background()
	sender := c.Sender()
	msg := c.Message()
	if sender == nil || msg == nil || msg.Chat == nil {
		return c.Respond()
	}

	group := isGroup(msg.Chat)
	out, err := h.scoring.Submit(ctx, service.Submission{
		ChatID:      msg.Chat.ID,
		ChatTitle:   msg.Chat.Title,
		IsGroup:     group,
		MessageID:   msg.ID,
		UserID:      sender.ID,
		DisplayName: displayName(sender),
		Letter:      letter,
	})
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: errorText(err)})
	}

	if err := c.Respond(&tele.CallbackResponse{Text: answerText(out), ShowAlert: !group}); err != nil {
		log.Warn().Err(err).Int64("user_id", sender.ID).Msg("Failed to answer callback")
	}

	if group && out.Correct && !out.Practice {
		return c.Send(fmt.Sprintf("🎉 %s solved puzzle #%d (+%d) and is now %s.",
			displayName(sender), out.Number, out.Delta, out.Title))
	}
	return nil
}

// HandleHint handles the hint button of a standard posting.
func (h *PuzzleHandler) HandleHint(c tele.Context, puzzleID string) error {
	p, err := h.catalog.FindByID(puzzleID)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: errorText(err)})
	}
	if p.Hint == "" {
		return c.Respond(&tele.CallbackResponse{Text: "This puzzle has no hint."})
	}
	return c.Respond(&tele.CallbackResponse{Text: "💡 " + p.Hint, ShowAlert: true})
}

func answerText(out service.Outcome) string {
	switch {
	case out.Practice && out.Correct:
		return "🔁 Practice: correct! Only your first answer is scored."
	case out.Practice && out.HasCorrect:
		return fmt.Sprintf("🔁 Practice: not quite, the answer is %s.", out.CorrectText)
	case out.Practice:
		return "🔁 Practice: this puzzle has no marked answer."
	case !out.HasCorrect:
		return "📝 Answer recorded. This puzzle has no marked answer, so your score is unchanged."
	case out.Correct:
		return fmt.Sprintf("✅ Correct! +%d, score %d, streak %d (%s)", out.Delta, out.Score, out.CurrentStreak, out.Title)
	default:
		return fmt.Sprintf("❌ Wrong, the answer is %s. %d, score %d (%s)", out.CorrectText, out.Delta, out.Score, out.Title)
	}
}
