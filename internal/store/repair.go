package store

import (
	"strings"
	"time"

	"chess-puzzle-bot/internal/model"
)

// RepairReport counts what Repair changed.
type RepairReport struct {
	DroppedPuzzles  int
	DroppedPostings int
	MigratedAnswers int
	StrippedExpiry  int
	FilledDefaults  int
}

// Changed reports whether the document needs to be written back.
func (r RepairReport) Changed() bool {
	return r.DroppedPuzzles+r.DroppedPostings+r.MigratedAnswers+r.StrippedExpiry+r.FilledDefaults > 0
}

// Repair brings a loaded document up to the current schema. It is
// idempotent: running it on its own output reports no changes.
//
//   - missing collections, timestamps, numbers and cursors are default-filled
//   - puzzles without an id, title, image or any option text are dropped
//   - battle postings are dropped, since battle sessions live in memory only
//   - legacy "answer" (letter) and "correct" (text) keys become IsCorrect flags
//   - stale expiry fields on puzzles and postings are removed
func Repair(doc *model.Document, now time.Time) RepairReport {
	var report RepairReport

	if doc.Puzzles == nil {
		doc.Puzzles = make([]*model.Puzzle, 0)
		report.FilledDefaults++
	}
	if doc.Users == nil {
		doc.Users = make(map[int64]*model.User)
		report.FilledDefaults++
	}
	if doc.Groups == nil {
		doc.Groups = make(map[int64]*model.Group)
		report.FilledDefaults++
	}

	dropped := make(map[string]struct{})
	kept := doc.Puzzles[:0]
	for _, p := range doc.Puzzles {
		if p == nil {
			report.DroppedPuzzles++
			continue
		}
		if !repairPuzzle(p, now, &report) {
			report.DroppedPuzzles++
			if p.ID != "" {
				dropped[p.ID] = struct{}{}
			}
			continue
		}
		kept = append(kept, p)
	}
	doc.Puzzles = kept

	renumber(doc, &report)

	for id, u := range doc.Users {
		if u == nil {
			delete(doc.Users, id)
			report.FilledDefaults++
			continue
		}
		repairUser(id, u, now, dropped, &report)
	}

	for chatID, g := range doc.Groups {
		if g == nil {
			delete(doc.Groups, chatID)
			report.FilledDefaults++
			continue
		}
		repairGroup(chatID, g, now, &report)
	}

	if doc.Settings.SchemaVersion < model.CurrentSchemaVersion {
		doc.Settings.SchemaVersion = model.CurrentSchemaVersion
		report.FilledDefaults++
	}

	return report
}

// repairPuzzle fixes p in place and reports whether it should be kept.
func repairPuzzle(p *model.Puzzle, now time.Time, report *RepairReport) bool {
	p.Title = strings.TrimSpace(p.Title)
	if p.ID == "" || p.Title == "" || p.ImageRef == "" {
		return false
	}

	options := p.Options[:0]
	for _, opt := range p.Options {
		opt.Text = strings.TrimSpace(opt.Text)
		if opt.Text == "" {
			report.FilledDefaults++
			continue
		}
		options = append(options, opt)
	}
	p.Options = options
	if len(p.Options) == 0 {
		return false
	}

	if p.LegacyAnswer != "" || p.LegacyCorrect != "" {
		if _, ok := p.CorrectOption(); !ok {
			migrateLegacyAnswer(p)
		}
		p.LegacyAnswer = ""
		p.LegacyCorrect = ""
		report.MigratedAnswers++
	}

	// Keep exactly one correct flag: the first one wins.
	seen := false
	for i := range p.Options {
		if !p.Options[i].IsCorrect {
			continue
		}
		if seen {
			p.Options[i].IsCorrect = false
			report.MigratedAnswers++
		}
		seen = true
	}

	if p.ExpiresAt != nil {
		p.ExpiresAt = nil
		report.StrippedExpiry++
	}
	if p.Postings == nil {
		p.Postings = make([]model.Posting, 0)
		report.FilledDefaults++
	}
	postings := p.Postings[:0]
	for _, posting := range p.Postings {
		if posting.Battle {
			report.DroppedPostings++
			continue
		}
		postings = append(postings, posting)
	}
	p.Postings = postings
	for i := range p.Postings {
		if p.Postings[i].ExpiresAt != nil {
			p.Postings[i].ExpiresAt = nil
			report.StrippedExpiry++
		}
		if p.Postings[i].Mapping == nil {
			p.Postings[i].Mapping = make(map[string]string)
			report.FilledDefaults++
		}
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
		report.FilledDefaults++
	}
	return true
}

// migrateLegacyAnswer flags the option named by the old answer keys.
// "answer" held the option letter in canonical order; "correct" held its text.
func migrateLegacyAnswer(p *model.Puzzle) {
	if letter := strings.ToUpper(strings.TrimSpace(p.LegacyAnswer)); letter != "" {
		idx := int(letter[0]) - 'A'
		if idx >= 0 && idx < len(p.Options) {
			p.Options[idx].IsCorrect = true
			return
		}
	}
	if text := strings.TrimSpace(p.LegacyCorrect); text != "" {
		for i := range p.Options {
			if strings.EqualFold(p.Options[i].Text, text) {
				p.Options[i].IsCorrect = true
				return
			}
		}
	}
}

// renumber gives puzzles without a usable number the next free one,
// keeping existing numbers untouched.
func renumber(doc *model.Document, report *RepairReport) {
	used := make(map[int]bool, len(doc.Puzzles))
	next := doc.MaxNumber()
	for _, p := range doc.Puzzles {
		if p.Number > 0 && !used[p.Number] {
			used[p.Number] = true
			continue
		}
		next++
		p.Number = next
		used[next] = true
		report.FilledDefaults++
	}
}

func repairUser(id int64, u *model.User, now time.Time, dropped map[string]struct{}, report *RepairReport) {
	if u.ID == 0 {
		u.ID = id
		report.FilledDefaults++
	}
	if u.Answers == nil {
		u.Answers = make(map[string]string)
		report.FilledDefaults++
	}
	for puzzleID := range dropped {
		if _, ok := u.Answers[puzzleID]; ok {
			delete(u.Answers, puzzleID)
			report.FilledDefaults++
		}
		if u.LastPuzzleID == puzzleID {
			u.LastPuzzleID = ""
			report.FilledDefaults++
		}
	}
	if u.CurrentStreak < 0 {
		u.CurrentStreak = 0
		report.FilledDefaults++
	}
	if u.MaxStreak < u.CurrentStreak {
		u.MaxStreak = u.CurrentStreak
		report.FilledDefaults++
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
		report.FilledDefaults++
	}
}

func repairGroup(chatID int64, g *model.Group, now time.Time, report *RepairReport) {
	if g.ChatID == 0 {
		g.ChatID = chatID
		report.FilledDefaults++
	}
	if g.NextPuzzleIndex < 0 {
		g.NextPuzzleIndex = 0
		report.FilledDefaults++
	}
	if g.BattleNextPuzzleIndex < 0 {
		g.BattleNextPuzzleIndex = 0
		report.FilledDefaults++
	}
	if g.RegisteredAt.IsZero() {
		g.RegisteredAt = now
		report.FilledDefaults++
	}
}
