package bot

import (
	"sync"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"chess-puzzle-bot/internal/config"
)

// Whitelist decides which chats the bot answers. Group chats must be listed
// in the configuration; a private chat is served once its user has been
// seen in an allowed group, or always when no whitelist is configured.
type Whitelist struct {
	cfg  *config.Config
	seen map[int64]bool
	mu   sync.RWMutex
}

// NewWhitelist creates a new Whitelist.
func NewWhitelist(cfg *config.Config) *Whitelist {
	return &Whitelist{cfg: cfg, seen: make(map[int64]bool)}
}

// Allows reports whether an update from the user in the chat is served.
// A served group update also unlocks the user's private chat.
func (w *Whitelist) Allows(chat *tele.Chat, userID int64) bool {
	if chat.Type == tele.ChatPrivate {
		if len(w.cfg.Whitelist.Chats) == 0 || w.cfg.IsAdmin(userID) {
			return true
		}
		w.mu.RLock()
		defer w.mu.RUnlock()
		return w.seen[userID]
	}

	if !w.cfg.IsChatAllowed(chat.ID) {
		return false
	}
	w.mu.Lock()
	w.seen[userID] = true
	w.mu.Unlock()
	return true
}

// WhitelistMiddleware drops updates from chats the whitelist does not allow.
func WhitelistMiddleware(w *Whitelist) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			sender := c.Sender()
			if chat == nil || sender == nil {
				return nil
			}

			if !w.Allows(chat, sender.ID) {
				log.Debug().
					Int64("chat_id", chat.ID).
					Int64("user_id", sender.ID).
					Msg("Ignoring update from non-whitelisted chat")
				return nil
			}
			return next(c)
		}
	}
}

// AdminMiddleware rejects admin commands from everyone else.
func AdminMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}

			if !cfg.IsAdmin(sender.ID) {
				log.Warn().
					Int64("user_id", sender.ID).
					Str("command", c.Text()).
					Msg("Non-admin attempted admin command")
				return c.Reply("❌ This command is for admins only.")
			}
			return next(c)
		}
	}
}

// LoggingMiddleware logs every incoming update at debug level.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			chat := c.Chat()

			logEvent := log.Debug()
			if sender != nil {
				logEvent = logEvent.
					Int64("user_id", sender.ID).
					Str("username", sender.Username)
			}
			if chat != nil {
				logEvent = logEvent.
					Int64("chat_id", chat.ID).
					Str("chat_type", string(chat.Type))
			}
			if cb := c.Callback(); cb != nil {
				logEvent = logEvent.Str("callback", cb.Data)
			}
			logEvent.
				Str("text", c.Text()).
				Msg("Received update")

			return next(c)
		}
	}
}

// RecoveryMiddleware turns a panicking handler into a logged error and a
// generic reply.
func RecoveryMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Msg("Recovered from panic in handler")
					if c.Callback() != nil {
						err = c.Respond(&tele.CallbackResponse{Text: "❌ Something went wrong."})
						return
					}
					err = c.Reply("❌ Something went wrong, please try again later.")
				}
			}()
			return next(c)
		}
	}
}
