package sink

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/STTM-NSU/stocks-alerter/internal/logger"
	"github.com/STTM-NSU/stocks-alerter/internal/model"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramConfig struct {
	ClientChannelId  string
	ServiceChannelId string
	QueueSize        int
}

// Telegram posts alerts to the client channel and status summaries to the
// service channel. Delivery runs on its own goroutine so a slow API never
// stalls a stream worker; when the queue is full the message is dropped.
type Telegram struct {
	sender  Sender
	cfg     TelegramConfig
	queue   chan tgbotapi.MessageConfig
	closeMu sync.RWMutex
	closed  bool

	logger logger.Logger
}

func NewTelegram(sender Sender, cfg TelegramConfig, logger logger.Logger) *Telegram {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}

	return &Telegram{
		sender: sender,
		cfg:    cfg,
		queue:  make(chan tgbotapi.MessageConfig, cfg.QueueSize),
		logger: logger,
	}
}

func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%w: can't create telegram bot", err)
	}
	return bot, nil
}

// newMessage addresses numeric ids as chats and anything else as a channel username.
func newMessage(channel, text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	return tgbotapi.NewMessageToChannel(channel, text)
}

func (t *Telegram) NotifyAlert(_ context.Context, alert model.AlertEvent) {
	if t.cfg.ClientChannelId == "" {
		return
	}

	msg := newMessage(t.cfg.ClientChannelId, FormatAlertMarkdown(alert))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	t.enqueue(msg)
}

func (t *Telegram) NotifyStatus(_ context.Context, text string) {
	if t.cfg.ServiceChannelId == "" {
		return
	}

	t.enqueue(newMessage(t.cfg.ServiceChannelId, text))
}

func (t *Telegram) enqueue(msg tgbotapi.MessageConfig) {
	t.closeMu.RLock()
	defer t.closeMu.RUnlock()

	if t.closed {
		return
	}

	select {
	case t.queue <- msg:
	default:
		t.logger.Warnf("telegram queue is full, drop message: %s", msg.Text)
	}
}

// Run delivers queued messages until ctx is done, then drains what is left.
func (t *Telegram) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			t.close()
			for msg := range t.queue {
				t.send(msg)
			}
			return
		case msg := <-t.queue:
			t.send(msg)
		}
	}
}

func (t *Telegram) close() {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()

	if !t.closed {
		t.closed = true
		close(t.queue)
	}
}

func (t *Telegram) send(msg tgbotapi.MessageConfig) {
	if _, err := t.sender.Send(msg); err != nil {
		t.logger.Errorf("%s: can't send telegram message", err)
	}
}
