// Package keyboard builds the inline answer keyboards of puzzle postings and
// encodes their callback data.
package keyboard

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"chess-puzzle-bot/internal/messenger"
	"chess-puzzle-bot/internal/model"
)

// Callback actions.
const (
	ActionAnswer = "ans"
	ActionBattle = "bat"
	ActionHint   = "hint"
)

// Callback is decoded callback data.
type Callback struct {
	Action string
	Param  string
}

// EncodeCallback encodes an action and parameter into callback data.
func EncodeCallback(action, param string) string {
	if param == "" {
		return action
	}
	return fmt.Sprintf("%s_%s", action, param)
}

// DecodeCallback decodes callback data. Telebot prefixes unique-less data
// with "\f", which is stripped here. ok is false for unknown actions.
func DecodeCallback(data string) (Callback, bool) {
	data = strings.TrimPrefix(strings.TrimSpace(data), "\f")
	action, param, _ := strings.Cut(data, "_")
	switch action {
	case ActionAnswer, ActionBattle:
		if param == "" {
			return Callback{}, false
		}
		return Callback{Action: action, Param: strings.ToUpper(param)}, true
	case ActionHint:
		if param == "" {
			return Callback{}, false
		}
		return Callback{Action: action, Param: param}, true
	}
	return Callback{}, false
}

// ButtonLabel is the text of one answer button.
func ButtonLabel(c model.Choice) string {
	return fmt.Sprintf("%s) %s", c.Letter, c.Text)
}

// Build returns one button per choice, two per row, and a hint button on its
// own row when the puzzle has a hint.
func Build(p messenger.Puzzle) *tele.ReplyMarkup {
	action := ActionAnswer
	if p.Mode == messenger.ModeBattle {
		action = ActionBattle
	}

	markup := &tele.ReplyMarkup{}
	var row []tele.InlineButton
	for _, c := range p.Choices {
		row = append(row, tele.InlineButton{
			Text: ButtonLabel(c),
			Data: EncodeCallback(action, c.Letter),
		})
		if len(row) == 2 {
			markup.InlineKeyboard = append(markup.InlineKeyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		markup.InlineKeyboard = append(markup.InlineKeyboard, row)
	}

	if p.HasHint && p.Mode != messenger.ModeBattle {
		markup.InlineKeyboard = append(markup.InlineKeyboard, []tele.InlineButton{{
			Text: "💡 Hint",
			Data: EncodeCallback(ActionHint, p.PuzzleID),
		}})
	}
	return markup
}
