package notifier

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jonboulle/clockwork"
	"github.com/vzahanych/weather-alert-bot/internal/alert"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"go.uber.org/zap"
)

// Sender is the part of the Telegram Bot API used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// MessageRecorder receives per-recipient delivery counts.
type MessageRecorder interface {
	RecordMessages(sent, failed int)
}

type Failure struct {
	ChatID string
	Err    error
}

// Results lists the recipients a message reached and the ones it did not.
type Results struct {
	Success []string
	Failed  []Failure
}

func (r *Results) Merge(other Results) {
	r.Success = append(r.Success, other.Success...)
	r.Failed = append(r.Failed, other.Failed...)
}

// NewBotAPI connects to Telegram and verifies the token.
func NewBotAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	client := &http.Client{Timeout: time.Duration(cfg.PollTimeout+10) * time.Second}

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	return bot, nil
}

type Notifier struct {
	sender   Sender
	delay    time.Duration
	useEmoji bool
	clock    clockwork.Clock
	logger   *zap.Logger
	metrics  MessageRecorder
}

func New(sender Sender, cfg config.TelegramConfig, clock clockwork.Clock, logger *zap.Logger) *Notifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Notifier{
		sender:   sender,
		delay:    cfg.SendDelay,
		useEmoji: cfg.MessageFormat.IncludeEmoji,
		clock:    clock,
		logger:   logger.With(zap.String("component", "notifier")),
	}
}

func (n *Notifier) SetMetricsRecorder(m MessageRecorder) {
	n.metrics = m
}

// SendMessage delivers text to every recipient. A failed recipient does not
// stop delivery to the others.
func (n *Notifier) SendMessage(ctx context.Context, recipients []string, text, parseMode string, silent bool) Results {
	var res Results

	for _, chatID := range recipients {
		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, Failure{ChatID: chatID, Err: err})
			continue
		}

		msg, err := NewMessage(chatID, text, parseMode, silent)
		if err == nil {
			_, err = n.sender.Send(msg)
		}
		if err != nil {
			n.logger.Error("Failed to send message", zap.String("chat_id", chatID), zap.Error(err))
			res.Failed = append(res.Failed, Failure{ChatID: chatID, Err: err})
			continue
		}

		n.logger.Info("Message sent", zap.String("chat_id", chatID))
		res.Success = append(res.Success, chatID)
	}

	if n.metrics != nil {
		n.metrics.RecordMessages(len(res.Success), len(res.Failed))
	}
	return res
}

// SendAlert renders a in Markdown. Low and moderate alerts go out silently.
func (n *Notifier) SendAlert(ctx context.Context, recipients []string, a alert.Alert) Results {
	return n.SendMessage(ctx, recipients, FormatAlert(a, n.useEmoji), tgbotapi.ModeMarkdown, a.Silent())
}

// SendAlerts sends each alert in order, pausing send_delay between them.
func (n *Notifier) SendAlerts(ctx context.Context, recipients []string, alerts []alert.Alert) (Results, error) {
	var all Results
	if len(alerts) == 0 {
		n.logger.Info("No alerts to send")
		return all, nil
	}

	n.logger.Info("Sending alerts", zap.Int("alerts", len(alerts)), zap.Int("recipients", len(recipients)))

	for i, a := range alerts {
		if i > 0 {
			if err := n.wait(ctx); err != nil {
				return all, err
			}
		}
		all.Merge(n.SendAlert(ctx, recipients, a))
	}
	return all, nil
}

// SendReport delivers the HTML daily report.
func (n *Notifier) SendReport(ctx context.Context, recipients []string, report string) Results {
	return n.SendMessage(ctx, recipients, report, tgbotapi.ModeHTML, false)
}

func (n *Notifier) UseEmoji() bool {
	return n.useEmoji
}

func (n *Notifier) wait(ctx context.Context) error {
	if n.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-n.clock.After(n.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewMessage builds a send request for a numeric chat id or an @channel name.
func NewMessage(chatID, text, parseMode string, silent bool) (tgbotapi.MessageConfig, error) {
	var msg tgbotapi.MessageConfig

	id := strings.TrimSpace(chatID)
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		msg = tgbotapi.NewMessage(n, text)
	} else if strings.HasPrefix(id, "@") {
		msg = tgbotapi.NewMessageToChannel(id, text)
	} else {
		return msg, fmt.Errorf("invalid chat id %q", chatID)
	}

	msg.ParseMode = parseMode
	msg.DisableNotification = silent
	return msg, nil
}
