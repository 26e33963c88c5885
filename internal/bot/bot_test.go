package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vzahanych/weather-alert-bot/internal/alert"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/notifier"
	"github.com/vzahanych/weather-alert-bot/internal/subscribers"
	"go.uber.org/zap/zaptest"
)

type fakeAPI struct {
	mu       sync.Mutex
	batches  [][]tgbotapi.Update
	requests []tgbotapi.UpdateConfig
	sent     []tgbotapi.MessageConfig
	onEmpty  func()
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.mu.Lock()
	f.requests = append(f.requests, cfg)
	if len(f.batches) == 0 {
		onEmpty := f.onEmpty
		f.mu.Unlock()
		if onEmpty != nil {
			onEmpty()
		}
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	f.mu.Unlock()
	return batch, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, m := range f.sent {
		out[i] = m.Text
	}
	return out
}

type stubChecker struct {
	alerts []alert.Alert
	err    error
}

func (s stubChecker) Check(context.Context) ([]alert.Alert, error) {
	return s.alerts, s.err
}

func message(updateID int, chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: updateID,
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}
	if len(text) > 0 && text[0] == '/' {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{UpdateID: updateID, Message: msg}
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	lat, lon := 48.85, 2.35
	cfg.Locations = []config.LocationConfig{
		{Name: "Home", City: "London,GB"},
		{Name: "Trip", Lat: &lat, Lon: &lon},
	}
	cfg.Alerts.Wind.On = true
	cfg.Alerts.Storm.On = true
	cfg.Telegram.SendDelay = 0
	return cfg
}

func newTestBot(t *testing.T, api *fakeAPI, checker Checker) (*Bot, subscribers.Store) {
	cfg := testConfig()
	store := subscribers.NewFileStore(filepath.Join(t.TempDir(), "subscribers.json"))
	logger := zaptest.NewLogger(t)
	n := notifier.New(api, cfg.Telegram, clockwork.NewFakeClock(), logger)
	return New(api, store, n, checker, cfg, clockwork.NewFakeClock(), logger), store
}

func TestProcessPending(t *testing.T) {
	api := &fakeAPI{batches: [][]tgbotapi.Update{{
		message(10, 111, "hello"),
		message(11, 222, "/start"),
		message(12, 111, "again"),
		{UpdateID: 13},
	}}}
	b, store := newTestBot(t, api, nil)

	_, err := store.Add(context.Background(), "222")
	require.NoError(t, err)

	added, err := b.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	subs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222"}, subs)

	require.Len(t, api.requests, 2)
	assert.Equal(t, 100, api.requests[0].Limit)
	assert.Equal(t, 14, api.requests[1].Offset, "acknowledge past the last update")
	assert.Equal(t, 1, api.requests[1].Limit)
	assert.Empty(t, api.texts(), "pending processing does not reply")
}

func TestProcessPending_NoUpdates(t *testing.T) {
	api := &fakeAPI{}
	b, _ := newTestBot(t, api, nil)

	added, err := b.ProcessPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Len(t, api.requests, 1, "nothing to acknowledge")
}

func TestHandleUpdate_StartAndAutoSubscribe(t *testing.T) {
	api := &fakeAPI{}
	b, store := newTestBot(t, api, nil)

	b.HandleUpdate(context.Background(), message(1, 42, "/start"))

	ok, err := store.Contains(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, ok)

	texts := api.texts()
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "🌤️ *weather alert bot*")
	assert.Contains(t, texts[0], "your chat id: `42`")
	assert.Equal(t, tgbotapi.ModeMarkdown, api.sent[0].ParseMode)
}

func TestHandleUpdate_Status(t *testing.T) {
	api := &fakeAPI{}
	b, _ := newTestBot(t, api, nil)

	b.HandleUpdate(context.Background(), message(1, 42, "/status"))

	want := "📊 *current configuration*\n\n" +
		"*locations:* 2\n" +
		"  • Home: London,GB\n" +
		"  • Trip: (48.85, 2.35)\n" +
		"\n" +
		"*enabled alerts:* 2\n" +
		"  • wind\n" +
		"  • storm"
	require.Len(t, api.texts(), 1)
	assert.Equal(t, want, api.texts()[0])
}

func TestHandleUpdate_Check(t *testing.T) {
	tests := []struct {
		name    string
		checker Checker
		want    []string
	}{
		{
			name:    "alerts found",
			checker: stubChecker{alerts: []alert.Alert{{Type: alert.TypeWind, Severity: alert.SeverityHigh, Message: "windy"}}},
			want:    []string{"⏳ checking weather conditions...", "⚠️ found 1 alert(s). sending details...", "💨 *WIND ALERT* 🟠"},
		},
		{
			name:    "all clear",
			checker: stubChecker{},
			want:    []string{"⏳ checking weather conditions...", "✅ no weather alerts at this time. all conditions within normal ranges."},
		},
		{
			name:    "error",
			checker: stubChecker{err: errors.New("provider down")},
			want:    []string{"⏳ checking weather conditions...", "❌ error checking weather: provider down"},
		},
		{
			name:    "not configured",
			checker: nil,
			want:    []string{"⏳ checking weather conditions...", "❌ bot not fully configured. weather monitoring components not available."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			b, _ := newTestBot(t, api, tt.checker)

			b.HandleUpdate(context.Background(), message(1, 42, "/check"))

			texts := api.texts()
			require.Len(t, texts, len(tt.want))
			for i, want := range tt.want {
				assert.Contains(t, texts[i], want)
			}
		})
	}
}

func TestHandleUpdate_SubscribeUnsubscribe(t *testing.T) {
	api := &fakeAPI{}
	b, store := newTestBot(t, api, nil)
	b.autoSubscribe = false
	ctx := context.Background()

	b.HandleUpdate(ctx, message(1, 42, "/subscribe"))
	b.HandleUpdate(ctx, message(2, 42, "/subscribe"))
	ok, err := store.Contains(ctx, "42")
	require.NoError(t, err)
	assert.True(t, ok)

	b.HandleUpdate(ctx, message(3, 42, "/unsubscribe"))
	b.HandleUpdate(ctx, message(4, 42, "/unsubscribe"))
	ok, err = store.Contains(ctx, "42")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, []string{
		"✅ subscribed. you will receive weather alerts in this chat.",
		"✅ you are subscribed to weather alerts.",
		"👋 unsubscribed. send /subscribe to receive alerts again.",
		"you are not subscribed.",
	}, api.texts())
}

func TestHandleUpdate_UnsubscribeIsNotAutoSubscribed(t *testing.T) {
	api := &fakeAPI{}
	b, store := newTestBot(t, api, nil)

	b.HandleUpdate(context.Background(), message(1, 42, "/unsubscribe"))

	ok, err := store.Contains(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHandleUpdate_PlainMessageOnlySubscribes(t *testing.T) {
	api := &fakeAPI{}
	b, store := newTestBot(t, api, nil)

	b.HandleUpdate(context.Background(), message(1, 42, "hi there"))
	b.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: 2})

	ok, err := store.Contains(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, api.texts())
}

func TestRun_AdvancesOffsetAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := &fakeAPI{
		batches: [][]tgbotapi.Update{{message(5, 1, "/help"), message(6, 2, "/help")}},
		onEmpty: cancel,
	}
	b, _ := newTestBot(t, api, nil)

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}

	require.GreaterOrEqual(t, len(api.requests), 2)
	assert.Equal(t, 0, api.requests[0].Offset)
	assert.Equal(t, 7, api.requests[1].Offset)
	assert.Equal(t, 30, api.requests[0].Timeout)
	assert.Len(t, api.texts(), 2)
}
