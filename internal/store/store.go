// Package store persists the bot's state document.
//
// Every backend stores the whole document as one JSON body and overwrites it
// on each save; there are no partial writes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"chess-puzzle-bot/internal/model"
)

// ErrNotFound is returned by Load when no document was ever saved.
var ErrNotFound = errors.New("document not found")

// Store loads and saves the state document.
type Store interface {
	Load(ctx context.Context) (*model.Document, error)
	Save(ctx context.Context, doc *model.Document) error
}

func encode(doc *model.Document) ([]byte, error) {
	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return body, nil
}

func decode(body []byte) (*model.Document, error) {
	doc := &model.Document{}
	if err := json.Unmarshal(body, doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}
