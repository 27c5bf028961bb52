package service

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/rs/zerolog/log"

	apperrors "chess-puzzle-bot/internal/errors"
	"chess-puzzle-bot/internal/messenger"
	"chess-puzzle-bot/internal/model"
	"chess-puzzle-bot/internal/repository"
)

// Letters labels the options of a posting in display order.
const Letters = "ABCDEFGHIJ"

// Shuffler permutes n elements through swap.
type Shuffler func(n int, swap func(i, j int))

// PostRequest asks for one puzzle to be displayed in a chat.
type PostRequest struct {
	ChatID   int64
	PuzzleID string
	Mode     messenger.Mode
	// Caption overrides the default "#N title" caption.
	Caption string
}

// PostedPuzzle is the result of a successful post.
type PostedPuzzle struct {
	Puzzle  model.Puzzle
	Posting model.Posting
}

// PostingRef identifies one posting of one puzzle.
type PostingRef struct {
	PuzzleID  string
	ChatID    int64
	MessageID int
}

// PostingService shuffles, sends and records puzzle postings.
type PostingService struct {
	repo      *repository.DocumentRepository
	messenger messenger.Messenger
	shuffle   Shuffler
}

// NewPostingService creates a new PostingService instance.
func NewPostingService(repo *repository.DocumentRepository, m messenger.Messenger) *PostingService {
	return &PostingService{repo: repo, messenger: m, shuffle: rand.Shuffle}
}

// SetShuffler replaces the option shuffler.
func (s *PostingService) SetShuffler(fn Shuffler) {
	s.shuffle = fn
}

// Post shuffles the options, sends the puzzle and records the letter mapping.
// A puzzle that is no longer valid is reported as corrupted.
func (s *PostingService) Post(ctx context.Context, req PostRequest) (PostedPuzzle, error) {
	puzzle, err := s.lookupValid(req.PuzzleID)
	if err != nil {
		return PostedPuzzle{}, err
	}

	choices := s.shuffled(puzzle.Options)
	caption := req.Caption
	if caption == "" {
		caption = DefaultCaption(puzzle)
	}

	messageID, err := s.messenger.SendPuzzle(ctx, messenger.Puzzle{
		ChatID:   req.ChatID,
		PuzzleID: puzzle.ID,
		Number:   puzzle.Number,
		Title:    puzzle.Title,
		ImageRef: puzzle.ImageRef,
		Caption:  caption,
		Choices:  choices,
		HasHint:  puzzle.Hint != "",
		Mode:     req.Mode,
	})
	if err != nil {
		return PostedPuzzle{}, apperrors.External(err, "failed to send the puzzle")
	}

	posting := model.Posting{
		ChatID:    req.ChatID,
		MessageID: messageID,
		PostedAt:  s.repo.Now(),
		Mapping:   make(map[string]string, len(choices)),
		Battle:    req.Mode == messenger.ModeBattle,
	}
	for _, c := range choices {
		posting.Mapping[c.Letter] = c.Text
	}

	err = s.repo.Update(ctx, func(doc *model.Document) error {
		p, ok := doc.PuzzleByID(puzzle.ID)
		if !ok {
			return apperrors.NotFoundf("puzzle #%d was removed while posting", puzzle.Number)
		}
		p.Postings = append(p.Postings, posting)
		puzzle = p.Clone()
		return nil
	})
	if err != nil {
		return PostedPuzzle{}, err
	}

	log.Debug().
		Int64("chat_id", req.ChatID).
		Int("message_id", messageID).
		Str("puzzle_id", puzzle.ID).
		Str("mode", req.Mode.String()).
		Msg("Puzzle posted")
	return PostedPuzzle{Puzzle: puzzle, Posting: posting}, nil
}

func (s *PostingService) lookupValid(puzzleID string) (model.Puzzle, error) {
	var out model.Puzzle
	err := s.repo.View(func(doc *model.Document) error {
		p, ok := doc.PuzzleByID(puzzleID)
		if !ok {
			return apperrors.NotFoundf("puzzle %s does not exist", puzzleID)
		}
		if !p.IsValid() {
			return apperrors.Corruptionf("puzzle #%d cannot be posted", p.Number)
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func (s *PostingService) shuffled(options []model.Option) []model.Choice {
	texts := make([]string, len(options))
	for i, opt := range options {
		texts[i] = opt.Text
	}
	s.shuffle(len(texts), func(i, j int) { texts[i], texts[j] = texts[j], texts[i] })

	choices := make([]model.Choice, len(texts))
	for i, text := range texts {
		choices[i] = model.Choice{Letter: string(Letters[i]), Text: text}
	}
	return choices
}

// Resolve maps a posted message back to its puzzle and letter mapping.
func (s *PostingService) Resolve(chatID int64, messageID int) (PostedPuzzle, error) {
	var out PostedPuzzle
	err := s.repo.View(func(doc *model.Document) error {
		p, posting, ok := doc.PuzzleByPosting(chatID, messageID)
		if !ok {
			return apperrors.NotFound("this puzzle is no longer active")
		}
		out.Puzzle = p.Clone()
		out.Posting = posting
		out.Posting.Mapping = copyMap(posting.Mapping)
		return nil
	})
	return out, err
}

// Prune removes the given postings. Unknown references are ignored.
func (s *PostingService) Prune(ctx context.Context, refs []PostingRef) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	removed := 0
	err := s.repo.Update(ctx, func(doc *model.Document) error {
		for _, ref := range refs {
			p, ok := doc.PuzzleByID(ref.PuzzleID)
			if !ok {
				continue
			}
			kept := p.Postings[:0]
			for _, posting := range p.Postings {
				if posting.ChatID == ref.ChatID && posting.MessageID == ref.MessageID {
					removed++
					continue
				}
				kept = append(kept, posting)
			}
			p.Postings = kept
		}
		return nil
	})
	return removed, err
}

// DefaultCaption is the caption of a standard posting.
func DefaultCaption(p model.Puzzle) string {
	return fmt.Sprintf("♟ Puzzle #%d: %s\nChoose the best move.", p.Number, p.Title)
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
