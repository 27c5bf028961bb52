// Package battle implements race sessions: a batch of puzzles is
// posted one at a time and the first answer to each puzzle takes the round.
package battle

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Errors for battle sessions.
var (
	ErrSessionExists   = errors.New("a battle is already running in this chat")
	ErrNoActiveSession = errors.New("no battle is running in this chat")
	ErrTooLate         = errors.New("too late, this puzzle was already answered")
	ErrNotInBattle     = errors.New("this puzzle is not part of the running battle")
)

// Round is one puzzle of a session.
type Round struct {
	PuzzleID    string
	Number      int
	Title       string
	MessageID   int
	Mapping     map[string]string
	CorrectText string
	// AnsweredBy holds at most one entry: the user who took the round and
	// the letter they chose.
	AnsweredBy map[int64]string
}

// Answered reports whether someone already took the round.
func (r *Round) Answered() bool {
	return len(r.AnsweredBy) > 0
}

// Session is the in-memory state of one running battle. It is never persisted.
type Session struct {
	ChatID    int64
	StartedBy int64
	StartedAt time.Time
	Rounds    []Round
	Current   int
	Scores    map[int64]int
	Names     map[int64]string
}

func newSession(chatID, startedBy int64, rounds []Round) *Session {
	return &Session{
		ChatID:    chatID,
		StartedBy: startedBy,
		StartedAt: time.Now(),
		Rounds:    rounds,
		Scores:    make(map[int64]int),
		Names:     make(map[int64]string),
	}
}

// clone returns a copy that does not share maps with s.
func (s *Session) clone() Session {
	c := *s
	c.Rounds = make([]Round, len(s.Rounds))
	for i, r := range s.Rounds {
		r.Mapping = copyMap(r.Mapping)
		answered := make(map[int64]string, len(r.AnsweredBy))
		for k, v := range r.AnsweredBy {
			answered[k] = v
		}
		r.AnsweredBy = answered
		c.Rounds[i] = r
	}
	c.Scores = make(map[int64]int, len(s.Scores))
	for k, v := range s.Scores {
		c.Scores[k] = v
	}
	c.Names = copyNames(s.Names)
	return c
}

// roundByMessage returns the index of the round posted as messageID.
func (s *Session) roundByMessage(messageID int) (int, bool) {
	for i := range s.Rounds {
		if s.Rounds[i].MessageID != 0 && s.Rounds[i].MessageID == messageID {
			return i, true
		}
	}
	return 0, false
}

// Standing is one row of the final scoreboard.
type Standing struct {
	UserID int64
	Name   string
	Score  int
	Place  int
}

// Rank orders participants by score. Equal scores share a place and the
// next place skips accordingly (1, 1, 3).
func Rank(scores map[int64]int, names map[int64]string) []Standing {
	out := make([]Standing, 0, len(scores))
	for id, score := range scores {
		out = append(out, Standing{UserID: id, Name: names[id], Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Place = out[i-1].Place
		} else {
			out[i].Place = i + 1
		}
	}
	return out
}

// Scoreboard renders the final standings.
func Scoreboard(standings []Standing, rounds int) string {
	var sb strings.Builder
	sb.WriteString("🏁 Battle finished!\n")
	if len(standings) == 0 {
		sb.WriteString("Nobody answered.")
		return sb.String()
	}

	var winners []string
	for _, st := range standings {
		medal := placeMark(st.Place)
		sb.WriteString(fmt.Sprintf("%s %s: %d/%d\n", medal, displayName(st), st.Score, rounds))
		if st.Place == 1 {
			winners = append(winners, displayName(st))
		}
	}
	if len(winners) > 1 {
		sb.WriteString("🤝 Shared first place: " + strings.Join(winners, ", "))
	} else {
		sb.WriteString("🏆 Winner: " + winners[0])
	}
	return sb.String()
}

func placeMark(place int) string {
	switch place {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return fmt.Sprintf("%d.", place)
	}
}

func displayName(st Standing) string {
	if st.Name != "" {
		return st.Name
	}
	return fmt.Sprintf("user %d", st.UserID)
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyNames(m map[int64]string) map[int64]string {
	out := make(map[int64]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
