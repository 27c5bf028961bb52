// Package repository provides the in-memory authority over the state document.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "chess-puzzle-bot/internal/errors"
	"chess-puzzle-bot/internal/model"
	"chess-puzzle-bot/internal/store"
)

// DocumentRepository holds the loaded document and writes it back through
// the store after every mutation. Readers never observe a half-applied
// update: Update holds the write lock until the save returns.
type DocumentRepository struct {
	mu    sync.RWMutex
	doc   *model.Document
	store store.Store
	now   func() time.Time
}

// New loads the document from st, repairs it and writes it back if the
// repair changed anything. A store without a document starts empty.
func New(ctx context.Context, st store.Store) (*DocumentRepository, error) {
	doc, err := st.Load(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("failed to load document: %w", err)
		}
		log.Info().Msg("No saved document, starting empty")
		doc = model.NewDocument()
	}

	report := store.Repair(doc, time.Now())
	if report.Changed() {
		log.Info().
			Int("dropped_puzzles", report.DroppedPuzzles).
			Int("migrated_answers", report.MigratedAnswers).
			Int("stripped_expiry", report.StrippedExpiry).
			Int("filled_defaults", report.FilledDefaults).
			Msg("Repaired document")
		if err := st.Save(ctx, doc); err != nil {
			return nil, fmt.Errorf("failed to save repaired document: %w", err)
		}
	}

	return &DocumentRepository{doc: doc, store: st, now: time.Now}, nil
}

// View runs fn with read access to the document. fn must not keep
// references to the document after it returns.
func (r *DocumentRepository) View(fn func(doc *model.Document) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return fn(r.doc)
}

// Update runs fn with write access and then saves the whole document.
// If fn returns an error nothing is saved, so fn must check its
// preconditions before mutating. A failed save is not rolled back: the
// in-memory document keeps the change and the next successful save
// persists it.
func (r *DocumentRepository) Update(ctx context.Context, fn func(doc *model.Document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := fn(r.doc); err != nil {
		return err
	}
	if err := r.store.Save(ctx, r.doc); err != nil {
		log.Error().Err(err).Msg("Failed to save document")
		return apperrors.Internal(err)
	}
	return nil
}

// Now returns the repository clock.
func (r *DocumentRepository) Now() time.Time {
	return r.now()
}

// SetClock replaces the clock used for timestamps.
func (r *DocumentRepository) SetClock(now func() time.Time) {
	r.now = now
}
