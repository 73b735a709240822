package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/BTreeMap/CalCounter/internal/models"
)

const (
	// DefaultPollTimeout is the long-polling timeout for Telegram updates, in seconds.
	DefaultPollTimeout = 30
	// MaxPhotoBytes bounds a downloaded photo.
	MaxPhotoBytes = 20 << 20
)

// telegramBot is the subset of *tgbotapi.BotAPI used by TelegramService.
type telegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramService implements Service on top of the Telegram Bot API with long polling.
// User ids are chat ids.
type TelegramService struct {
	*eventQueue
	bot      telegramBot
	http     *http.Client
	done     chan struct{}
	stopOnce sync.Once
}

// NewTelegramService authorizes the bot token and creates the service.
func NewTelegramService(token string) (*TelegramService, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token must be provided")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to authorize telegram bot: %w", err)
	}
	slog.Info("TelegramService authorized", "username", bot.Self.UserName)
	return newTelegramService(bot, &http.Client{Timeout: time.Minute}), nil
}

func newTelegramService(bot telegramBot, client *http.Client) *TelegramService {
	return &TelegramService{
		eventQueue: newEventQueue("TelegramService"),
		bot:        bot,
		http:       client,
		done:       make(chan struct{}),
	}
}

// Start begins long polling for updates.
func (s *TelegramService) Start(ctx context.Context) error {
	if err := s.running(); err != nil {
		return err
	}
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = DefaultPollTimeout
	updates := s.bot.GetUpdatesChan(cfg)
	slog.Info("TelegramService polling started")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case update, ok := <-updates:
				if !ok {
					slog.Debug("TelegramService updates channel closed")
					return
				}
				if evt, ok := s.toEvent(update); ok {
					s.emit(evt)
				}
			}
		}
	}()
	return nil
}

// Stop stops polling and closes the events channel.
func (s *TelegramService) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		s.bot.StopReceivingUpdates()
		s.stop()
		slog.Info("TelegramService stopped")
	})
	return nil
}

// toEvent maps an update to an inbound event. Updates the bot does not act on are skipped.
func (s *TelegramService) toEvent(update tgbotapi.Update) (models.Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		evt := models.Event{
			Kind:       models.EventButton,
			CallbackID: cq.ID,
			Payload:    cq.Data,
			ReceivedAt: time.Now(),
		}
		if cq.From != nil {
			evt.UserID = strconv.FormatInt(cq.From.ID, 10)
			evt.Username = cq.From.UserName
			evt.FirstName = cq.From.FirstName
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			evt.UserID = strconv.FormatInt(cq.Message.Chat.ID, 10)
		}
		return evt, evt.UserID != ""
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return models.Event{}, false
	}
	evt := models.Event{
		UserID:     strconv.FormatInt(msg.Chat.ID, 10),
		ReceivedAt: msg.Time(),
	}
	if msg.From != nil {
		evt.Username = msg.From.UserName
		evt.FirstName = msg.From.FirstName
	}
	switch {
	case len(msg.Photo) > 0:
		// Sizes are ordered from smallest to largest.
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		evt.Kind = models.EventPhoto
		evt.Caption = msg.Caption
		evt.FetchPhoto = func(ctx context.Context) ([]byte, error) {
			return s.download(ctx, fileID)
		}
	case msg.Text != "":
		evt.Kind = models.EventText
		evt.Text = msg.Text
	default:
		slog.Debug("TelegramService ignoring message without text or photo", "userID", evt.UserID)
		return models.Event{}, false
	}
	return evt, true
}

func (s *TelegramService) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := s.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve telegram file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download telegram file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download telegram file: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxPhotoBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read telegram file: %w", err)
	}
	return data, nil
}

// SendText sends a Markdown message.
func (s *TelegramService) SendText(ctx context.Context, to, text string) error {
	return s.send(to, func(chatID int64, parseMode string) tgbotapi.Chattable {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = parseMode
		return msg
	})
}

// SendMenu sends a Markdown message with an inline keyboard, one keyboard row per menu row.
func (s *TelegramService) SendMenu(ctx context.Context, to, text string, menu models.Menu) error {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(menu))
	for _, row := range menu {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Payload))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return s.send(to, func(chatID int64, parseMode string) tgbotapi.Chattable {
		msg := tgbotapi.NewMessage(chatID, text)
		msg.ParseMode = parseMode
		msg.ReplyMarkup = keyboard
		return msg
	})
}

// SendPhoto uploads a PNG with a Markdown caption.
func (s *TelegramService) SendPhoto(ctx context.Context, to string, image []byte, caption string) error {
	return s.send(to, func(chatID int64, parseMode string) tgbotapi.Chattable {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "chart.png", Bytes: image})
		photo.Caption = caption
		photo.ParseMode = parseMode
		return photo
	})
}

// SendDocument uploads a file with a Markdown caption.
func (s *TelegramService) SendDocument(ctx context.Context, to, filename string, data []byte, caption string) error {
	return s.send(to, func(chatID int64, parseMode string) tgbotapi.Chattable {
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
		doc.Caption = caption
		doc.ParseMode = parseMode
		return doc
	})
}

// AckButton answers the callback query so the client stops its spinner.
func (s *TelegramService) AckButton(ctx context.Context, evt models.Event, text string) error {
	if evt.CallbackID == "" {
		return nil
	}
	if _, err := s.bot.Request(tgbotapi.NewCallback(evt.CallbackID, text)); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// send delivers a Markdown message and retries once as plain text when
// Telegram rejects the entities.
func (s *TelegramService) send(to string, build func(chatID int64, parseMode string) tgbotapi.Chattable) error {
	if err := s.running(); err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(to, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", to, err)
	}
	_, err = s.bot.Send(build(chatID, tgbotapi.ModeMarkdown))
	if err != nil && isEntityParseError(err) {
		slog.Warn("TelegramService markdown rejected, retrying as plain text", "to", to, "error", err)
		_, err = s.bot.Send(build(chatID, ""))
	}
	if err != nil {
		slog.Error("TelegramService send failed", "error", err, "to", to)
		return fmt.Errorf("failed to send telegram message to %s: %w", to, err)
	}
	return nil
}

func isEntityParseError(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "can't parse entities")
}
