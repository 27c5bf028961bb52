package analysis

import (
	"strings"

	nchess "github.com/corentings/chess/v2"

	apperrors "chess-puzzle-bot/internal/errors"
)

// Game is a PGN that replayed cleanly from the initial position.
type Game struct {
	Moves  []string
	Result string
}

// ParsePGN replays the main line of a PGN with the chess library's reader,
// which also handles tags, comments, variations and annotation glyphs. An
// unreadable PGN, an illegal move or an empty game is a validation error.
func ParsePGN(pgn string) (Game, error) {
	opt, err := nchess.PGN(strings.NewReader(pgn))
	if err != nil {
		return Game{}, apperrors.Validationf("the PGN does not replay: %v", err)
	}
	game := nchess.NewGame(opt)

	moves := game.Moves()
	if len(moves) == 0 {
		return Game{}, apperrors.Validation("the PGN has no moves")
	}
	positions := game.Positions()

	out := Game{
		Moves:  make([]string, len(moves)),
		Result: resultOf(game.Outcome()),
	}
	for i, mv := range moves {
		out.Moves[i] = nchess.AlgebraicNotation{}.Encode(positions[i], mv)
	}
	return out, nil
}

func resultOf(o nchess.Outcome) string {
	switch o {
	case nchess.WhiteWon:
		return "1-0"
	case nchess.BlackWon:
		return "0-1"
	case nchess.Draw:
		return "1/2-1/2"
	default:
		return "*"
	}
}
