package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/vzahanych/weather-alert-bot/internal/alert"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"github.com/vzahanych/weather-alert-bot/internal/notifier"
	"github.com/vzahanych/weather-alert-bot/internal/subscribers"
	"go.uber.org/zap"
)

const (
	pendingLimit = 100
	retryDelay   = 3 * time.Second
)

// API is the part of the Telegram Bot API the bot uses.
type API interface {
	notifier.Sender
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Checker runs an on-demand evaluation for /check.
type Checker interface {
	Check(ctx context.Context) ([]alert.Alert, error)
}

type Bot struct {
	api           API
	store         subscribers.Store
	notifier      *notifier.Notifier
	checker       Checker
	locations     []config.LocationConfig
	rules         alert.Config
	pollTimeout   int
	autoSubscribe bool
	clock         clockwork.Clock
	logger        *zap.Logger
}

func New(api API, store subscribers.Store, n *notifier.Notifier, checker Checker, cfg *config.Config, clock clockwork.Clock, logger *zap.Logger) *Bot {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Bot{
		api:           api,
		store:         store,
		notifier:      n,
		checker:       checker,
		locations:     cfg.Locations,
		rules:         cfg.Alerts,
		pollTimeout:   cfg.Telegram.PollTimeout,
		autoSubscribe: cfg.Telegram.AutoSubscribe,
		clock:         clock,
		logger:        logger.With(zap.String("component", "bot")),
	}
}

// ProcessPending subscribes every chat that messaged the bot since the last
// acknowledged update and returns how many were new. Telegram keeps these
// updates while the bot is offline.
func (b *Bot) ProcessPending(ctx context.Context) (int, error) {
	u := tgbotapi.NewUpdate(0)
	u.Limit = pendingLimit

	updates, err := b.api.GetUpdates(u)
	if err != nil {
		return 0, fmt.Errorf("get pending updates: %w", err)
	}
	if len(updates) == 0 {
		b.logger.Info("No pending messages")
		return 0, nil
	}

	b.logger.Info("Processing pending messages", zap.Int("updates", len(updates)))

	seen := make(map[int64]bool)
	lastID := 0
	added := 0
	for _, upd := range updates {
		lastID = max(lastID, upd.UpdateID)
		if upd.Message == nil || upd.Message.Chat == nil || seen[upd.Message.Chat.ID] {
			continue
		}
		seen[upd.Message.Chat.ID] = true

		chatID := strconv.FormatInt(upd.Message.Chat.ID, 10)
		ok, err := b.store.Add(ctx, chatID)
		if err != nil {
			return added, fmt.Errorf("subscribe %s: %w", chatID, err)
		}
		if ok {
			b.logger.Info("Auto-subscribed new user", zap.String("chat_id", chatID))
			added++
		} else {
			b.logger.Debug("Chat already subscribed", zap.String("chat_id", chatID))
		}
	}

	ack := tgbotapi.NewUpdate(lastID + 1)
	ack.Limit = 1
	if _, err := b.api.GetUpdates(ack); err != nil {
		b.logger.Warn("Failed to acknowledge updates", zap.Int("offset", lastID+1), zap.Error(err))
	}

	b.logger.Info("Pending messages processed", zap.Int("new_subscribers", added))
	return added, nil
}

// Run long-polls for updates and handles commands until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting telegram bot", zap.Int("poll_timeout", b.pollTimeout))

	offset := 0
	for {
		if ctx.Err() != nil {
			b.logger.Info("Telegram bot stopped")
			return nil
		}

		u := tgbotapi.NewUpdate(offset)
		u.Limit = pendingLimit
		u.Timeout = b.pollTimeout

		updates, err := b.api.GetUpdates(u)
		if err != nil {
			b.logger.Warn("Failed to get updates, retrying", zap.Error(err), zap.Duration("retry_in", retryDelay))
			select {
			case <-b.clock.After(retryDelay):
			case <-ctx.Done():
			}
			continue
		}

		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// HandleUpdate subscribes the sender's chat and dispatches bot commands.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	command := msg.Command()

	if b.autoSubscribe && command != "unsubscribe" {
		if ok, err := b.store.Add(ctx, chatID); err != nil {
			b.logger.Error("Failed to subscribe chat", zap.String("chat_id", chatID), zap.Error(err))
		} else if ok {
			b.logger.Info("Auto-subscribed new user", zap.String("chat_id", chatID))
		}
	}

	if !msg.IsCommand() {
		return
	}

	logger := b.logger.With(zap.String("chat_id", chatID), zap.String("command", command))
	logger.Info("Command received")

	switch command {
	case "start", "help":
		b.reply(ctx, chatID, helpText(msg.Chat.ID), tgbotapi.ModeMarkdown)
	case "check":
		b.handleCheck(ctx, chatID, logger)
	case "status":
		b.reply(ctx, chatID, b.statusText(), tgbotapi.ModeMarkdown)
	case "subscribe":
		b.handleSubscribe(ctx, chatID, logger)
	case "unsubscribe":
		b.handleUnsubscribe(ctx, chatID, logger)
	default:
		b.reply(ctx, chatID, "unknown command. try /help", "")
	}
}

func (b *Bot) handleCheck(ctx context.Context, chatID string, logger *zap.Logger) {
	b.reply(ctx, chatID, "⏳ checking weather conditions...", "")

	if b.checker == nil {
		b.reply(ctx, chatID, "❌ bot not fully configured. weather monitoring components not available.", "")
		return
	}

	alerts, err := b.checker.Check(ctx)
	if err != nil {
		logger.Error("Check command failed", zap.Error(err))
		b.reply(ctx, chatID, fmt.Sprintf("❌ error checking weather: %v", err), "")
		return
	}

	if len(alerts) == 0 {
		b.reply(ctx, chatID, "✅ no weather alerts at this time. all conditions within normal ranges.", "")
		return
	}

	b.reply(ctx, chatID, fmt.Sprintf("⚠️ found %d alert(s). sending details...", len(alerts)), "")
	if _, err := b.notifier.SendAlerts(ctx, []string{chatID}, alerts); err != nil {
		logger.Warn("Sending alerts interrupted", zap.Error(err))
	}
}

func (b *Bot) handleSubscribe(ctx context.Context, chatID string, logger *zap.Logger) {
	ok, err := b.store.Add(ctx, chatID)
	switch {
	case err != nil:
		logger.Error("Subscribe failed", zap.Error(err))
		b.reply(ctx, chatID, "❌ could not subscribe, please try again later.", "")
	case ok:
		b.reply(ctx, chatID, "✅ subscribed. you will receive weather alerts in this chat.", "")
	default:
		b.reply(ctx, chatID, "✅ you are subscribed to weather alerts.", "")
	}
}

func (b *Bot) handleUnsubscribe(ctx context.Context, chatID string, logger *zap.Logger) {
	ok, err := b.store.Remove(ctx, chatID)
	switch {
	case err != nil:
		logger.Error("Unsubscribe failed", zap.Error(err))
		b.reply(ctx, chatID, "❌ could not unsubscribe, please try again later.", "")
	case ok:
		b.reply(ctx, chatID, "👋 unsubscribed. send /subscribe to receive alerts again.", "")
	default:
		b.reply(ctx, chatID, "you are not subscribed.", "")
	}
}

func (b *Bot) reply(ctx context.Context, chatID, text, parseMode string) {
	b.notifier.SendMessage(ctx, []string{chatID}, text, parseMode, false)
}

func helpText(chatID int64) string {
	return "🌤️ *weather alert bot*\n\n" +
		"i monitor weather conditions and send alerts when configured thresholds are exceeded.\n\n" +
		"*available commands:*\n" +
		"  /check - manually check weather and send alerts\n" +
		"  /status - show current configuration\n" +
		"  /subscribe - receive scheduled alerts in this chat\n" +
		"  /unsubscribe - stop receiving scheduled alerts\n" +
		"  /help - show this help message\n\n" +
		fmt.Sprintf("your chat id: `%d`", chatID)
}

func (b *Bot) statusText() string {
	lines := []string{
		"📊 *current configuration*\n",
		fmt.Sprintf("*locations:* %d", len(b.locations)),
	}
	for _, loc := range b.locations {
		lines = append(lines, fmt.Sprintf("  • %s: %s", loc.Name, loc.Describe()))
	}
	lines = append(lines, "")

	var enabled []string
	for _, r := range b.rules.Rules() {
		if r.Enabled() {
			enabled = append(enabled, string(r.Type()))
		}
	}
	lines = append(lines, fmt.Sprintf("*enabled alerts:* %d", len(enabled)))
	for _, t := range enabled {
		lines = append(lines, "  • "+t)
	}

	return strings.Join(lines, "\n")
}
