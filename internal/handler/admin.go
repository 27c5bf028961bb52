package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"chess-puzzle-bot/internal/authoring"
	"chess-puzzle-bot/internal/config"
	"chess-puzzle-bot/internal/game/battle"
	"chess-puzzle-bot/internal/messenger"
	"chess-puzzle-bot/internal/service"
)

// maxListLength keeps /puzzles under Telegram's 4096 character limit.
const maxListLength = 3800

// AdminHandler handles puzzle authoring and catalog maintenance.
type AdminHandler struct {
	cfg      *config.Config
	catalog  *service.CatalogService
	identity *service.IdentityService
	rotation *service.RotationService
	posting  *service.PostingService
	battles  *battle.Orchestrator
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	cfg *config.Config,
	catalog *service.CatalogService,
	identity *service.IdentityService,
	rotation *service.RotationService,
	posting *service.PostingService,
	battles *battle.Orchestrator,
) *AdminHandler {
	return &AdminHandler{
		cfg:      cfg,
		catalog:  catalog,
		identity: identity,
		rotation: rotation,
		posting:  posting,
		battles:  battles,
	}
}

// HandlePhoto creates a puzzle from a photo whose caption starts with POST|.
// Photos from non-admins and other captions are ignored without a reply.
func (h *AdminHandler) HandlePhoto(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	msg := c.Message()
	if sender == nil || msg == nil || msg.Photo == nil {
		return nil
	}
	if !authoring.IsCaption(msg.Caption) {
		return nil
	}
	if !h.cfg.IsAdmin(sender.ID) {
		log.Debug().Int64("user_id", sender.ID).Msg("Ignored puzzle caption from non-admin")
		return nil
	}

	draft, err := authoring.Parse(msg.Caption)
	if err != nil {
		return c.Reply(errorText(err))
	}

	p, err := h.catalog.Create(ctx, service.NewPuzzle{
		Title:         draft.Title,
		ImageRef:      msg.Photo.FileID,
		Options:       draft.Options,
		Hint:          draft.Hint,
		CreatedBy:     sender.ID,
		CreatedByName: displayName(sender),
	})
	if err != nil {
		return c.Reply(errorText(err))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("puzzle_id", p.ID).
		Str("operation", "create").
		Msg("Admin operation executed")

	hint := "no hint"
	if p.Hint != "" {
		hint = "with hint"
	}
	return c.Reply(fmt.Sprintf("✅ Puzzle #%d saved: %s\n🆔 %s\n%d options, %s",
		p.Number, p.Title, shortID(p.ID), len(p.Options), hint))
}

// HandleReindex handles the /reindex command.
func (h *AdminHandler) HandleReindex(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	n, err := h.catalog.Reindex(context.Background())
	if err != nil {
		return c.Reply(errorText(err))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int("puzzles", n).
		Str("operation", "reindex").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("🔢 Renumbered %d puzzles. Every group starts again from #1.", n))
}

// HandleRemove handles the /remove command.
// Format: /remove <id-prefix>
func (h *AdminHandler) HandleRemove(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	args := c.Args()
	if len(args) != 1 {
		return c.Reply("❌ Usage: /remove <id-prefix>")
	}

	res, err := h.catalog.Remove(context.Background(), args[0])
	if err != nil {
		return c.Reply(errorText(err))
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Str("puzzle_id", res.Puzzle.ID).
		Str("operation", "remove").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf(
		"🗑 Removed puzzle #%d: %s\n"+
			"Purged %d answers. Run /reindex to close the gap in numbers.",
		res.Puzzle.Number, res.Puzzle.Title, res.PurgedAnswers,
	))
}

// HandleAdjust handles the /adjust command.
// Format: /adjust <user_id> <±delta>
func (h *AdminHandler) HandleAdjust(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	userID, delta, err := parseAdjustArgs(c.Args())
	if err != nil {
		return c.Reply(err.Error())
	}

	user, title, err := h.identity.AdjustScore(context.Background(), sender.ID, userID, delta)
	if err != nil {
		return c.Reply(errorText(err))
	}

	name := user.DisplayName
	if name == "" {
		name = fmt.Sprintf("%d", userID)
	}
	return c.Reply(fmt.Sprintf(
		"✅ Score adjusted\n\n"+
			"👤 User: %s (ID: %d)\n"+
			"➕ Change: %+d\n"+
			"⭐ Score: %d (%s)",
		name, userID, delta, user.Score, title,
	))
}

// parseAdjustArgs parses <user_id> <±delta>.
func parseAdjustArgs(args []string) (int64, int, error) {
	if len(args) != 2 {
		return 0, 0, errors.New("❌ Usage: /adjust <user_id> <±delta>")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, 0, errors.New("❌ Invalid user ID")
	}
	delta, err := strconv.Atoi(strings.TrimPrefix(args[1], "+"))
	if err != nil || delta == 0 {
		return 0, 0, errors.New("❌ The change must be a non-zero number")
	}
	return userID, delta, nil
}

// HandleBroadcast handles the /broadcast command: every registered group
// gets the next puzzle of its rotation. Groups in a battle are skipped.
func (h *AdminHandler) HandleBroadcast(c tele.Context) error {
	ctx := context.Background()
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	var posted, skipped, failed int
	for _, chatID := range h.identity.Groups() {
		if h.battles.IsActive(chatID) {
			skipped++
			continue
		}
		p, err := h.rotation.NextForGroup(ctx, chatID, "")
		if err == nil {
			_, err = h.posting.Post(ctx, service.PostRequest{
				ChatID:   chatID,
				PuzzleID: p.ID,
				Mode:     messenger.ModeStandard,
			})
		}
		if err != nil {
			failed++
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("Broadcast to group failed")
			continue
		}
		posted++
	}

	log.Info().
		Int64("admin_id", sender.ID).
		Int("posted", posted).
		Int("skipped", skipped).
		Int("failed", failed).
		Str("operation", "broadcast").
		Msg("Admin operation executed")

	return c.Reply(fmt.Sprintf("📣 Broadcast: %d posted, %d in battle, %d failed.", posted, skipped, failed))
}

// HandlePuzzles handles the /puzzles command.
func (h *AdminHandler) HandlePuzzles(c tele.Context) error {
	total, valid := h.catalog.Count()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📚 %d puzzles, %d postable\n", total, valid))
	if at, ok := h.catalog.LastReindexAt(); ok {
		sb.WriteString(fmt.Sprintf("🔢 Last reindex: %s\n", at.Format("2006-01-02 15:04")))
	}
	sb.WriteString("━━━━━━━━━━━━━━━\n")
	puzzles := h.catalog.ValidPuzzles()
	for i, p := range puzzles {
		if sb.Len() > maxListLength {
			sb.WriteString(fmt.Sprintf("... and %d more\n", len(puzzles)-i))
			break
		}
		sb.WriteString(fmt.Sprintf("#%d %s · %s · %d posts\n", p.Number, p.Title, shortID(p.ID), len(p.Postings)))
	}
	return c.Reply(strings.TrimRight(sb.String(), "\n"))
}
