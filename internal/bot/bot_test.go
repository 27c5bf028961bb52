package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"chess-puzzle-bot/internal/config"
	"chess-puzzle-bot/internal/messenger"
	"chess-puzzle-bot/internal/model"
)

// apiServer fakes the Bot API methods TeleMessenger calls.
type apiServer struct {
	mu       sync.Mutex
	requests map[string]map[string]string
}

func newAPIServer(t *testing.T) (*apiServer, *tele.Bot) {
	t.Helper()
	api := &apiServer{requests: make(map[string]map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		params := make(map[string]string)
		_ = json.NewDecoder(r.Body).Decode(&params)

		api.mu.Lock()
		api.requests[method] = params
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42,"date":0,"chat":{"id":-7,"type":"group"}}}`))
	}))
	t.Cleanup(srv.Close)

	b, err := tele.NewBot(tele.Settings{Token: "test", URL: srv.URL, Offline: true})
	require.NoError(t, err)
	return api, b
}

func (a *apiServer) request(method string) map[string]string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests[method]
}

func TestTeleMessenger_SendPuzzle(t *testing.T) {
	api, b := newAPIServer(t)
	m := NewTeleMessenger(b)

	id, err := m.SendPuzzle(context.Background(), messenger.Puzzle{
		ChatID:   -7,
		PuzzleID: "p1",
		ImageRef: "AgACAgIAAxk",
		Caption:  "♟ Puzzle #1",
		Choices:  []model.Choice{{Letter: "A", Text: "Qh7#"}, {Letter: "B", Text: "Qg6"}},
		HasHint:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	req := api.request("sendPhoto")
	require.NotNil(t, req)
	assert.Equal(t, "AgACAgIAAxk", req["photo"])
	assert.Equal(t, "♟ Puzzle #1", req["caption"])
	assert.Contains(t, req["reply_markup"], "ans_A")
	assert.Contains(t, req["reply_markup"], "hint_p1")
}

func TestTeleMessenger_SendText(t *testing.T) {
	api, b := newAPIServer(t)
	m := NewTeleMessenger(b)

	require.NoError(t, m.SendText(context.Background(), -7, "🏁 Battle finished!"))
	assert.Equal(t, "🏁 Battle finished!", api.request("sendMessage")["text"])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.SendText(ctx, -7, "late"), context.Canceled)
}

func TestPhotoFile(t *testing.T) {
	assert.Equal(t, "https://example.com/p.png", photoFile("https://example.com/p.png").FileURL)
	assert.Equal(t, "AgAC", photoFile("AgAC").FileID)
}

// fakeContext is the minimal tele.Context the middleware reads.
type fakeContext struct {
	tele.Context
	sender   *tele.User
	chat     *tele.Chat
	callback *tele.Callback
	replies  []string
	answers  []string
}

func (f *fakeContext) Sender() *tele.User       { return f.sender }
func (f *fakeContext) Chat() *tele.Chat         { return f.chat }
func (f *fakeContext) Callback() *tele.Callback { return f.callback }
func (f *fakeContext) Text() string             { return "/reindex" }

func (f *fakeContext) Reply(what interface{}, _ ...interface{}) error {
	f.replies = append(f.replies, what.(string))
	return nil
}

func (f *fakeContext) Respond(resp ...*tele.CallbackResponse) error {
	for _, r := range resp {
		f.answers = append(f.answers, r.Text)
	}
	return nil
}

func TestAdminMiddleware(t *testing.T) {
	cfg := &config.Config{Admin: config.AdminConfig{IDs: []int64{1}}}
	called := false
	h := AdminMiddleware(cfg)(func(tele.Context) error {
		called = true
		return nil
	})

	c := &fakeContext{sender: &tele.User{ID: 2}}
	require.NoError(t, h(c))
	assert.False(t, called)
	assert.Equal(t, []string{"❌ This command is for admins only."}, c.replies)

	require.NoError(t, h(&fakeContext{sender: &tele.User{ID: 1}}))
	assert.True(t, called)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware()(func(tele.Context) error { panic("boom") })

	c := &fakeContext{sender: &tele.User{ID: 1}}
	require.NoError(t, h(c))
	assert.Len(t, c.replies, 1)

	c = &fakeContext{sender: &tele.User{ID: 1}, callback: &tele.Callback{}}
	require.NoError(t, h(c))
	assert.Empty(t, c.replies)
	assert.Len(t, c.answers, 1)

	sentinel := errors.New("plain error")
	h = RecoveryMiddleware()(func(tele.Context) error { return sentinel })
	assert.ErrorIs(t, h(&fakeContext{}), sentinel)
}

func TestWhitelistMiddleware(t *testing.T) {
	w := NewWhitelist(&config.Config{Whitelist: config.WhitelistConfig{Chats: []int64{-1}}})
	calls := 0
	h := WhitelistMiddleware(w)(func(tele.Context) error {
		calls++
		return nil
	})

	require.NoError(t, h(&fakeContext{sender: &tele.User{ID: 5}, chat: &tele.Chat{ID: -2, Type: tele.ChatGroup}}))
	require.NoError(t, h(&fakeContext{sender: &tele.User{ID: 5}, chat: &tele.Chat{ID: -1, Type: tele.ChatGroup}}))
	require.NoError(t, h(&fakeContext{sender: &tele.User{ID: 5}, chat: &tele.Chat{ID: 5, Type: tele.ChatPrivate}}))
	require.NoError(t, h(&fakeContext{chat: &tele.Chat{ID: -1, Type: tele.ChatGroup}}))
	assert.Equal(t, 2, calls)
}
