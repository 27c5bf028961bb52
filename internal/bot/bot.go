// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"chess-puzzle-bot/internal/analysis"
	"chess-puzzle-bot/internal/config"
	"chess-puzzle-bot/internal/game/battle"
	"chess-puzzle-bot/internal/handler"
	"chess-puzzle-bot/internal/keyboard"
	"chess-puzzle-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot       *tele.Bot
	cfg       *config.Config
	messenger *TeleMessenger
	whitelist *Whitelist

	// Handlers
	accountHandler *handler.AccountHandler
	rankingHandler *handler.RankingHandler
	puzzleHandler  *handler.PuzzleHandler
	battleHandler  *handler.BattleHandler
	adminHandler   *handler.AdminHandler
	analyzeHandler *handler.AnalyzeHandler
}

// Dependencies holds the services the handlers need. They are built after
// the bot because the posting service sends through the bot's messenger.
type Dependencies struct {
	Catalog  *service.CatalogService
	Identity *service.IdentityService
	Rotation *service.RotationService
	Posting  *service.PostingService
	Scoring  *service.ScoringService
	Battles  *battle.Orchestrator
	Analysis *analysis.Client
}

// New creates the telebot instance. Call Register before Start.
func New(cfg *config.Config) (*Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: cfg.Bot.PollTimeout},
		// Long polling shares the client, so its timeout covers both.
		Client: &http.Client{Timeout: cfg.Bot.PollTimeout + cfg.Bot.SendTimeout},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Msg("Handler returned an error")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		bot:       teleBot,
		cfg:       cfg,
		messenger: NewTeleMessenger(teleBot),
		whitelist: NewWhitelist(cfg),
	}, nil
}

// Messenger returns the messenger that posts through this bot.
func (b *Bot) Messenger() *TeleMessenger {
	return b.messenger
}

// Register builds the handlers and registers middleware and routes.
func (b *Bot) Register(deps *Dependencies) {
	b.accountHandler = handler.NewAccountHandler(deps.Identity)
	b.rankingHandler = handler.NewRankingHandler(deps.Identity)
	b.puzzleHandler = handler.NewPuzzleHandler(deps.Catalog, deps.Rotation, deps.Posting, deps.Scoring, deps.Battles)
	b.battleHandler = handler.NewBattleHandler(deps.Battles)
	b.adminHandler = handler.NewAdminHandler(b.cfg, deps.Catalog, deps.Identity, deps.Rotation, deps.Posting, deps.Battles)
	b.analyzeHandler = handler.NewAnalyzeHandler(deps.Analysis)

	b.registerMiddleware()
	b.registerHandlers()
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.whitelist))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/help", b.accountHandler.HandleHelp)
	b.bot.Handle("/me", b.accountHandler.HandleMe)

	b.bot.Handle("/top", b.rankingHandler.HandleTop)
	b.bot.Handle("/group_top", b.rankingHandler.HandleGroupTop)

	b.bot.Handle("/puzzle", b.puzzleHandler.HandlePuzzle)
	b.bot.Handle("/battle", b.battleHandler.HandleBattle)
	b.bot.Handle("/analyze", b.analyzeHandler.HandleAnalyze)

	// Authoring checks admin rights itself so that other photos pass silently.
	b.bot.Handle(tele.OnPhoto, b.adminHandler.HandlePhoto)

	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/reindex", b.adminHandler.HandleReindex)
	adminGroup.Handle("/remove", b.adminHandler.HandleRemove)
	adminGroup.Handle("/adjust", b.adminHandler.HandleAdjust)
	adminGroup.Handle("/broadcast", b.adminHandler.HandleBroadcast)
	adminGroup.Handle("/puzzles", b.adminHandler.HandlePuzzles)
	adminGroup.Handle("/battle_cancel", b.battleHandler.HandleCancel)

	b.bot.Handle(tele.OnCallback, b.handleCallback)
}

// handleCallback routes answer and hint buttons.
func (b *Bot) handleCallback(c tele.Context) error {
	callback := c.Callback()
	if callback == nil {
		return nil
	}

	cb, ok := keyboard.DecodeCallback(callback.Data)
	if !ok {
		log.Debug().Str("raw_data", callback.Data).Msg("Unknown callback")
		return c.Respond()
	}

	switch cb.Action {
	case keyboard.ActionAnswer:
		return b.puzzleHandler.HandleAnswer(c, cb.Param)
	case keyboard.ActionBattle:
		return b.battleHandler.HandleAnswer(c, cb.Param)
	default:
		return b.puzzleHandler.HandleHint(c, cb.Param)
	}
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}

// Run polls until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Start()
	}()

	select {
	case <-ctx.Done():
		b.Stop()
		<-done
		return nil
	case <-done:
		return fmt.Errorf("bot stopped polling")
	}
}
