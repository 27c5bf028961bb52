// Package model defines the data models for the chess puzzle bot.
package model

import (
	"sort"
	"time"
)

// Option is one selectable move of a puzzle.
type Option struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Choice binds a displayed letter to an option text for one posting.
type Choice struct {
	Letter string
	Text   string
}

// Posting correlates a posted message to the letter mapping shown in it.
// The mapping is shuffled per posting, so a letter means nothing outside it.
type Posting struct {
	ChatID    int64             `json:"chat_id"`
	MessageID int               `json:"message_id"`
	PostedAt  time.Time         `json:"posted_at"`
	Mapping   map[string]string `json:"option_mapping"`
	Battle    bool              `json:"battle,omitempty"`

	// ExpiresAt is a stale field from the clock-based expiry era; Repair strips it.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Choices returns the mapping ordered by letter.
func (p Posting) Choices() []Choice {
	choices := make([]Choice, 0, len(p.Mapping))
	for letter, text := range p.Mapping {
		choices = append(choices, Choice{Letter: letter, Text: text})
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].Letter < choices[j].Letter })
	return choices
}

// Puzzle is a single chess position with labelled move options.
type Puzzle struct {
	ID            string    `json:"id"`
	Number        int       `json:"number"`
	Title         string    `json:"title"`
	ImageRef      string    `json:"image"`
	Options       []Option  `json:"options"`
	Hint          string    `json:"hint,omitempty"`
	CreatedBy     int64     `json:"created_by"`
	CreatedByName string    `json:"created_by_name"`
	CreatedAt     time.Time `json:"created_at"`
	Postings      []Posting `json:"postings"`

	// Legacy answer keys and expiry, migrated or stripped by store.Repair.
	LegacyAnswer  string     `json:"answer,omitempty"`
	LegacyCorrect string     `json:"correct,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// CorrectOption returns the designated correct option.
func (p *Puzzle) CorrectOption() (Option, bool) {
	for _, opt := range p.Options {
		if opt.IsCorrect {
			return opt, true
		}
	}
	return Option{}, false
}

// MaxOptions is the number of option letters a posting can show.
const MaxOptions = 10

// IsValid reports whether the puzzle can be posted: it has an image,
// between one and MaxOptions options and a designated correct option.
func (p *Puzzle) IsValid() bool {
	if p.ImageRef == "" || len(p.Options) == 0 || len(p.Options) > MaxOptions {
		return false
	}
	_, ok := p.CorrectOption()
	return ok
}

// FindPosting looks up the posting for a chat message.
func (p *Puzzle) FindPosting(chatID int64, messageID int) (Posting, bool) {
	for _, posting := range p.Postings {
		if posting.ChatID == chatID && posting.MessageID == messageID {
			return posting, true
		}
	}
	return Posting{}, false
}

// Clone returns a deep copy that is safe to hand out of the repository lock.
func (p *Puzzle) Clone() Puzzle {
	c := *p
	c.Options = append([]Option(nil), p.Options...)
	c.Postings = make([]Posting, len(p.Postings))
	for i, posting := range p.Postings {
		posting.Mapping = copyMapping(posting.Mapping)
		c.Postings[i] = posting
	}
	return c
}

func copyMapping(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// User is a player's persisted standing.
// Answers[puzzleID] is set once by the first scored attempt and is the only
// "already attempted" flag.
type User struct {
	ID            int64             `json:"id"`
	DisplayName   string            `json:"display_name"`
	CorrectCount  int               `json:"correct_count"`
	AttemptCount  int               `json:"attempt_count"`
	Score         int               `json:"score"`
	Answers       map[string]string `json:"answers"`
	LastPuzzleID  string            `json:"last_puzzle_id,omitempty"`
	CurrentStreak int               `json:"current_streak"`
	MaxStreak     int               `json:"max_streak"`
	CreatedAt     time.Time         `json:"created_at"`
}

// HasAnswered reports whether the user already used their scored attempt.
func (u *User) HasAnswered(puzzleID string) bool {
	_, ok := u.Answers[puzzleID]
	return ok
}

// Clone returns a deep copy of the user.
func (u *User) Clone() User {
	c := *u
	c.Answers = copyMapping(u.Answers)
	return c
}

// Group is a registered group chat with its two rotation cursors.
type Group struct {
	ChatID                int64     `json:"chat_id"`
	Title                 string    `json:"title"`
	RegisteredAt          time.Time `json:"registered_at"`
	Score                 int       `json:"score"`
	AttemptCount          int       `json:"attempt_count"`
	NextPuzzleIndex       int       `json:"next_puzzle_index"`
	BattleNextPuzzleIndex int       `json:"battle_next_puzzle_index"`
}

// Settings holds global document metadata.
type Settings struct {
	SchemaVersion int        `json:"schema_version"`
	LastReindexAt *time.Time `json:"last_reindex_at,omitempty"`
}

// Document is the whole persisted state, written back on every mutation.
type Document struct {
	Puzzles  []*Puzzle        `json:"puzzles"`
	Users    map[int64]*User  `json:"users"`
	Groups   map[int64]*Group `json:"groups"`
	Settings Settings         `json:"settings"`
}

// CurrentSchemaVersion is stamped on documents after repair.
const CurrentSchemaVersion = 3

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Puzzles:  make([]*Puzzle, 0),
		Users:    make(map[int64]*User),
		Groups:   make(map[int64]*Group),
		Settings: Settings{SchemaVersion: CurrentSchemaVersion},
	}
}

// PuzzleByID returns the puzzle with the given id.
func (d *Document) PuzzleByID(id string) (*Puzzle, bool) {
	for _, p := range d.Puzzles {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// PuzzleByPosting returns the puzzle and posting for a posted message.
func (d *Document) PuzzleByPosting(chatID int64, messageID int) (*Puzzle, Posting, bool) {
	for _, p := range d.Puzzles {
		if posting, ok := p.FindPosting(chatID, messageID); ok {
			return p, posting, true
		}
	}
	return nil, Posting{}, false
}

// ValidPuzzles returns postable puzzles sorted by sequential number.
func (d *Document) ValidPuzzles() []*Puzzle {
	valid := make([]*Puzzle, 0, len(d.Puzzles))
	for _, p := range d.Puzzles {
		if p.IsValid() {
			valid = append(valid, p)
		}
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Number < valid[j].Number })
	return valid
}

// MaxNumber returns the highest sequential number in use.
func (d *Document) MaxNumber() int {
	max := 0
	for _, p := range d.Puzzles {
		if p.Number > max {
			max = p.Number
		}
	}
	return max
}
