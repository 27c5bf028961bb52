// Package authoring parses the captions admins attach to puzzle photos.
//
// A caption looks like
//
//	POST|Back rank weakness|A) Qd8+|B) Rxe8|C) h3|answer=B|hint=Count the defenders
//
// Fields are separated by "|". The title comes first, then the options in
// display order, then key=value fields. hint is optional.
package authoring

import (
	"strings"

	apperrors "chess-puzzle-bot/internal/errors"
	"chess-puzzle-bot/internal/model"
)

// Prefix marks a photo caption as a new puzzle.
const Prefix = "POST|"

// MaxOptions is the number of option letters a posting can show.
const MaxOptions = model.MaxOptions

// Draft is a parsed caption.
type Draft struct {
	Title   string
	Options []model.Option
	Hint    string
}

// IsCaption reports whether the caption asks for a new puzzle.
func IsCaption(caption string) bool {
	caption = strings.TrimSpace(caption)
	return len(caption) >= len(Prefix) && strings.EqualFold(caption[:len(Prefix)], Prefix)
}

// Parse validates a caption and returns the puzzle draft. Every failure is a
// validation error with a message meant for the admin.
func Parse(caption string) (Draft, error) {
	if !IsCaption(caption) {
		return Draft{}, apperrors.Validation("caption must start with POST|")
	}
	fields := strings.Split(strings.TrimSpace(caption)[len(Prefix):], "|")

	var (
		draft   Draft
		answer  string
		letters = make(map[string]int)
		texts   = make(map[string]bool)
	)

	draft.Title = strings.TrimSpace(fields[0])
	if draft.Title == "" {
		return Draft{}, apperrors.Validation("the title is missing: POST|<title>|A) ...")
	}

	for _, raw := range fields[1:] {
		field := strings.TrimSpace(raw)
		if field == "" {
			continue
		}

		if key, value, ok := strings.Cut(field, "="); ok && !strings.Contains(key, ")") {
			switch strings.ToLower(strings.TrimSpace(key)) {
			case "answer":
				answer = strings.ToUpper(strings.TrimSpace(value))
			case "hint":
				draft.Hint = strings.TrimSpace(value)
			default:
				return Draft{}, apperrors.Validationf("unknown field %q", strings.TrimSpace(key))
			}
			continue
		}

		letter, text, ok := strings.Cut(field, ")")
		letter = strings.ToUpper(strings.TrimSpace(letter))
		text = strings.TrimSpace(text)
		if !ok || len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
			return Draft{}, apperrors.Validationf("cannot read option %q, use \"A) move\"", field)
		}
		if text == "" {
			return Draft{}, apperrors.Validationf("option %s has no move", letter)
		}
		if _, dup := letters[letter]; dup {
			return Draft{}, apperrors.Validationf("option %s appears twice", letter)
		}
		if texts[strings.ToLower(text)] {
			return Draft{}, apperrors.Validationf("move %q appears twice", text)
		}
		letters[letter] = len(draft.Options)
		texts[strings.ToLower(text)] = true
		draft.Options = append(draft.Options, model.Option{Text: text})
	}

	switch {
	case len(draft.Options) < 2:
		return Draft{}, apperrors.Validation("a puzzle needs at least two options")
	case len(draft.Options) > MaxOptions:
		return Draft{}, apperrors.Validationf("a puzzle can have at most %d options", MaxOptions)
	case answer == "":
		return Draft{}, apperrors.Validation("the answer is missing: add |answer=<letter>")
	}

	idx, ok := letters[answer]
	if !ok {
		return Draft{}, apperrors.Validationf("answer %s is not one of the options", answer)
	}
	draft.Options[idx].IsCorrect = true
	return draft, nil
}
