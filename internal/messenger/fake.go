package messenger

import (
	"context"
	"strings"
	"sync"
)

// Sent is a message recorded by Fake.
type Sent struct {
	ChatID    int64
	MessageID int
	Text      string
	Puzzle    *Puzzle
}

// Fake is an in-memory Messenger for tests. Message ids
// are assigned sequentially starting at 1.
type Fake struct {
	mu     sync.Mutex
	nextID int
	sent   []Sent

	// FailPuzzleAfter makes every SendPuzzle fail once that many puzzles
	// were sent; negative disables it.
	FailPuzzleAfter int
	// Err is the error returned by failing sends.
	Err error
}

// NewFake creates a Fake that never fails.
func NewFake() *Fake {
	return &Fake{FailPuzzleAfter: -1}
}

// SendPuzzle records the puzzle and returns a fresh message id.
func (f *Fake) SendPuzzle(_ context.Context, p Puzzle) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailPuzzleAfter >= 0 && len(f.puzzlesLocked()) >= f.FailPuzzleAfter {
		return 0, f.Err
	}
	f.nextID++
	p.Choices = append(p.Choices[:0:0], p.Choices...)
	f.sent = append(f.sent, Sent{ChatID: p.ChatID, MessageID: f.nextID, Text: p.Caption, Puzzle: &p})
	return f.nextID, nil
}

// SendText records the text.
func (f *Fake) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, Sent{ChatID: chatID, MessageID: f.nextID, Text: text})
	return nil
}

// Sent returns a copy of everything sent so far.
func (f *Fake) Sent() []Sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sent(nil), f.sent...)
}

// Puzzles returns the puzzles sent so far.
func (f *Fake) Puzzles() []Puzzle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puzzlesLocked()
}

func (f *Fake) puzzlesLocked() []Puzzle {
	var out []Puzzle
	for _, s := range f.sent {
		if s.Puzzle != nil {
			out = append(out, *s.Puzzle)
		}
	}
	return out
}

// Texts returns the plain texts sent to chatID.
func (f *Fake) Texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, s := range f.sent {
		if s.Puzzle == nil && s.ChatID == chatID {
			out = append(out, s.Text)
		}
	}
	return out
}

// Contains reports whether any text sent to chatID contains substr.
func (f *Fake) Contains(chatID int64, substr string) bool {
	for _, text := range f.Texts(chatID) {
		if strings.Contains(text, substr) {
			return true
		}
	}
	return false
}
