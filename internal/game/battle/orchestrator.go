package battle

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "chess-puzzle-bot/internal/errors"
	"chess-puzzle-bot/internal/messenger"
	"chess-puzzle-bot/internal/pkg/lock"
	"chess-puzzle-bot/internal/service"
)

// DefaultSize is the number of puzzles in a battle.
const DefaultSize = 5

// answerWait bounds how long an answer waits for the chat lock. Telegram
// expects a callback reply within a few seconds.
const answerWait = 10 * time.Second

// Answer is one answer button press on a battle posting.
type Answer struct {
	ChatID      int64
	MessageID   int
	UserID      int64
	DisplayName string
	Letter      string
}

// AnswerResult reports how a winning answer was scored.
type AnswerResult struct {
	Round    int
	Rounds   int
	Correct  bool
	Score    int
	Finished bool
}

// Orchestrator owns the battle session registry. Every event for a chat
// runs under that chat's lock, so a round is never posted while another
// answer for the same chat is being processed.
type Orchestrator struct {
	rotation  *service.RotationService
	posting   *service.PostingService
	messenger messenger.Messenger
	size      int
	admins    []int64
	chatLock  *lock.KeyLock

	sessions map[int64]*Session
	mu       sync.RWMutex
}

// NewOrchestrator creates a new Orchestrator. A non-positive size falls back
// to DefaultSize; admins are notified when a corrupted puzzle aborts a battle.
func NewOrchestrator(
	rotation *service.RotationService,
	posting *service.PostingService,
	m messenger.Messenger,
	size int,
	admins []int64,
) *Orchestrator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Orchestrator{
		rotation:  rotation,
		posting:   posting,
		messenger: m,
		size:      size,
		admins:    admins,
		chatLock:  lock.NewKeyLock(),
		sessions:  make(map[int64]*Session),
	}
}

// IsActive reports whether a battle is running in the chat.
func (o *Orchestrator) IsActive(chatID int64) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.sessions[chatID]
	return ok
}

// Snapshot returns a copy of the chat's running session. It waits for the
// chat's current event to finish, since events mutate the session.
func (o *Orchestrator) Snapshot(chatID int64) (Session, bool) {
	var (
		out Session
		ok  bool
	)
	_ = o.chatLock.WithLock(chatID, func() error {
		if s := o.session(chatID); s != nil {
			out, ok = s.clone(), true
		}
		return nil
	})
	return out, ok
}

func (o *Orchestrator) session(chatID int64) *Session {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.sessions[chatID]
}

// Start draws a batch from the chat's battle cursor and posts the first
// puzzle. A failure while posting aborts the battle and is announced in
// the chat rather than returned.
func (o *Orchestrator) Start(ctx context.Context, chatID int64, chatTitle string, startedBy int64) error {
	// A held chat lock means a battle event is in flight for the chat.
	if !o.chatLock.TryLock(chatID) {
		return ErrSessionExists
	}
	defer o.chatLock.Unlock(chatID)

	if o.IsActive(chatID) {
		return ErrSessionExists
	}

	batch, err := o.rotation.NextBattleBatch(ctx, chatID, chatTitle, o.size)
	if err != nil {
		return err
	}

	rounds := make([]Round, len(batch))
	for i, p := range batch {
		rounds[i] = Round{PuzzleID: p.ID, Number: p.Number, Title: p.Title}
	}
	s := newSession(chatID, startedBy, rounds)

	o.mu.Lock()
	o.sessions[chatID] = s
	o.mu.Unlock()

	log.Info().
		Int64("chat_id", chatID).
		Int64("started_by", startedBy).
		Int("rounds", len(rounds)).
		Msg("Battle started")

	o.send(ctx, chatID, fmt.Sprintf("⚔️ Battle started! %d puzzles, the first answer to each one takes the round.", len(rounds)))
	o.postRound(ctx, s)
	return nil
}

// Answer scores the first answer to the current round and advances the
// battle. Later answers to the same round get ErrTooLate; an answer that
// cannot get the chat lock in time gets lock.ErrLockTimeout.
func (o *Orchestrator) Answer(ctx context.Context, a Answer) (AnswerResult, error) {
	var result AnswerResult
	err := o.chatLock.WithLockContext(ctx, a.ChatID, answerWait, func() error {
		s := o.session(a.ChatID)
		if s == nil {
			return ErrNoActiveSession
		}

		idx, ok := s.roundByMessage(a.MessageID)
		if !ok {
			return ErrNotInBattle
		}
		if idx != s.Current {
			return ErrTooLate
		}
		r := &s.Rounds[idx]
		if r.Answered() {
			return ErrTooLate
		}

		letter := strings.ToUpper(strings.TrimSpace(a.Letter))
		chosen, ok := r.Mapping[letter]
		if !ok {
			return apperrors.Validationf("option %s does not exist", letter)
		}

		r.AnsweredBy = map[int64]string{a.UserID: letter}
		correct := chosen == r.CorrectText
		if _, seen := s.Scores[a.UserID]; !seen {
			s.Scores[a.UserID] = 0
		}
		if correct {
			s.Scores[a.UserID]++
		}
		if a.DisplayName != "" {
			s.Names[a.UserID] = a.DisplayName
		}

		result = AnswerResult{
			Round:   idx + 1,
			Rounds:  len(s.Rounds),
			Correct: correct,
			Score:   s.Scores[a.UserID],
		}

		log.Info().
			Int64("chat_id", a.ChatID).
			Int64("user_id", a.UserID).
			Int("index", idx).
			Bool("correct", correct).
			Msg("Battle round taken")

		name := nameOr(a.DisplayName, a.UserID)
		if correct {
			o.send(ctx, a.ChatID, fmt.Sprintf("✅ %s solved puzzle %d of %d!", name, idx+1, len(s.Rounds)))
		} else {
			o.send(ctx, a.ChatID, fmt.Sprintf("❌ %s missed puzzle %d of %d.", name, idx+1, len(s.Rounds)))
		}

		s.Current++
		if s.Current < len(s.Rounds) {
			o.postRound(ctx, s)
		} else {
			o.conclude(ctx, s)
		}
		result.Finished = !o.IsActive(a.ChatID)
		return nil
	})
	return result, err
}

// Cancel stops the chat's battle early and announces the scores so far.
func (o *Orchestrator) Cancel(ctx context.Context, chatID, adminID int64) error {
	return o.chatLock.WithLock(chatID, func() error {
		s := o.session(chatID)
		if s == nil {
			return ErrNoActiveSession
		}
		log.Info().
			Int64("chat_id", chatID).
			Int64("admin_id", adminID).
			Str("operation", "battle_cancel").
			Msg("Battle cancelled")
		o.send(ctx, chatID, "🛑 The battle was cancelled by an admin.")
		o.conclude(ctx, s)
		return nil
	})
}

// postRound posts the current round. The puzzle is re-validated by the
// posting service; any failure aborts the battle.
func (o *Orchestrator) postRound(ctx context.Context, s *Session) {
	r := &s.Rounds[s.Current]
	caption := fmt.Sprintf("⚔️ Puzzle %d of %d: %s\nFirst answer takes the round.", s.Current+1, len(s.Rounds), r.Title)

	posted, err := o.posting.Post(ctx, service.PostRequest{
		ChatID:   s.ChatID,
		PuzzleID: r.PuzzleID,
		Mode:     messenger.ModeBattle,
		Caption:  caption,
	})
	if err != nil {
		o.abort(ctx, s, err)
		return
	}

	r.MessageID = posted.Posting.MessageID
	r.Mapping = posted.Posting.Mapping
	if correct, ok := posted.Puzzle.CorrectOption(); ok {
		r.CorrectText = correct.Text
	}
	log.Debug().
		Int64("chat_id", s.ChatID).
		Int("index", s.Current).
		Str("puzzle_id", r.PuzzleID).
		Msg("Battle round posted")
}

// abort announces why the battle stopped and concludes it with the scores
// collected so far.
func (o *Orchestrator) abort(ctx context.Context, s *Session, cause error) {
	r := s.Rounds[s.Current]
	log.Error().
		Err(cause).
		Int64("chat_id", s.ChatID).
		Int("index", s.Current).
		Str("puzzle_id", r.PuzzleID).
		Msg("Battle aborted")

	reason := "the puzzle could not be posted"
	switch apperrors.KindOf(cause) {
	case apperrors.ErrCorruption:
		reason = fmt.Sprintf("puzzle #%d is damaged", r.Number)
		o.notifyAdmins(ctx, fmt.Sprintf("⚠️ Battle in chat %d aborted: puzzle #%d (%s) cannot be posted.", s.ChatID, r.Number, r.PuzzleID))
	case apperrors.ErrNotFound:
		reason = fmt.Sprintf("puzzle #%d was removed", r.Number)
	}
	o.send(ctx, s.ChatID, "⚠️ Battle aborted: "+reason+".")
	o.conclude(ctx, s)
}

// conclude prunes the session's postings, announces the scoreboard and
// discards the session.
func (o *Orchestrator) conclude(ctx context.Context, s *Session) {
	refs := make([]service.PostingRef, 0, len(s.Rounds))
	for _, r := range s.Rounds {
		if r.MessageID != 0 {
			refs = append(refs, service.PostingRef{PuzzleID: r.PuzzleID, ChatID: s.ChatID, MessageID: r.MessageID})
		}
	}
	if _, err := o.posting.Prune(ctx, refs); err != nil {
		log.Error().Err(err).Int64("chat_id", s.ChatID).Msg("Failed to prune battle postings")
	}

	o.mu.Lock()
	delete(o.sessions, s.ChatID)
	o.mu.Unlock()

	o.send(ctx, s.ChatID, Scoreboard(Rank(s.Scores, s.Names), len(s.Rounds)))
	log.Info().Int64("chat_id", s.ChatID).Int("participants", len(s.Scores)).Msg("Battle concluded")
}

func (o *Orchestrator) notifyAdmins(ctx context.Context, text string) {
	for _, id := range o.admins {
		o.send(ctx, id, text)
	}
}

func (o *Orchestrator) send(ctx context.Context, chatID int64, text string) {
	if err := o.messenger.SendText(ctx, chatID, text); err != nil {
		log.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send battle message")
	}
}

func nameOr(name string, userID int64) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("user %d", userID)
}
