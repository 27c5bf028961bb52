package handler

import (
	"context"
	"errors"

	tele "gopkg.in/telebot.v3"

	"chess-puzzle-bot/internal/game/battle"
	"chess-puzzle-bot/internal/pkg/lock"
)

// BattleHandler handles battle mode.
type BattleHandler struct {
	battles *battle.Orchestrator
}

// NewBattleHandler creates a new BattleHandler.
func NewBattleHandler(battles *battle.Orchestrator) *BattleHandler {
	return &BattleHandler{battles: battles}
}

// HandleBattle handles the /battle command.
func (h *BattleHandler) HandleBattle(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}
	if !isGroup(chat) {
		return c.Reply("⚔️ Battles run in group chats.")
	}

	err := h.battles.Start(ctx, chat.ID, chat.Title, sender.ID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, battle.ErrSessionExists):
		return c.Reply("⚔️ A battle is already running here.")
	default:
		return c.Reply(errorText(err))
	}
}

// HandleCancel handles the /battle_cancel admin command.
func (h *BattleHandler) HandleCancel(c tele.Context) error {
	sender := c.Sender()
	chat := c.Chat()
	if sender == nil || chat == nil {
		return nil
	}

	if err := h.battles.Cancel(context.Background(), chat.ID, sender.ID); err != nil {
		if errors.Is(err, battle.ErrNoActiveSession) {
			return c.Reply("There is no battle running here.")
		}
		return c.Reply(errorText(err))
	}
	return nil
}

// HandleAnswer handles an answer button press on a battle posting. Only
// the first press of the current round counts.
func (h *BattleHandler) HandleAnswer(c tele.Context, letter string) error {
	sender := c.Sender()
	msg := c.Message()
	if sender == nil || msg == nil || msg.Chat == nil {
		return c.Respond()
	}

	res, err := h.battles.Answer(context.Background(), battle.Answer{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.ID,
		UserID:      sender.ID,
		DisplayName: displayName(sender),
		Letter:      letter,
	})
	switch {
	case err == nil:
	case errors.Is(err, battle.ErrTooLate):
		return c.Respond(&tele.CallbackResponse{Text: "⏱ Too late, this round is already taken."})
	case errors.Is(err, battle.ErrNoActiveSession):
		return c.Respond(&tele.CallbackResponse{Text: "This battle is over."})
	case errors.Is(err, battle.ErrNotInBattle):
		return c.Respond(&tele.CallbackResponse{Text: "This puzzle is not part of the running battle."})
	case errors.Is(err, lock.ErrLockTimeout):
		return c.Respond(&tele.CallbackResponse{Text: "⏳ The next puzzle is on its way, try again."})
	default:
		return c.Respond(&tele.CallbackResponse{Text: errorText(err)})
	}

	if res.Correct {
		return c.Respond(&tele.CallbackResponse{Text: "✅ Point!"})
	}
	return c.Respond(&tele.CallbackResponse{Text: "❌ Wrong move, the round is gone."})
}
