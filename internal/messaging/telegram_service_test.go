package messaging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/CalCounter/internal/models"
)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErrs []error
	fileURL  string
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if len(f.sendErrs) > 0 {
		err := f.sendErrs[0]
		f.sendErrs = f.sendErrs[1:]
		return tgbotapi.Message{}, err
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeBot) GetFileDirectURL(fileID string) (string, error) {
	if f.fileURL == "" {
		return "", errors.New("no file")
	}
	return f.fileURL + "/" + fileID, nil
}

func (f *fakeBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeBot) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeBot) sentMessages() []tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.Chattable(nil), f.sent...)
}

func TestTelegramToEvent(t *testing.T) {
	s := newTelegramService(newFakeBot(), http.DefaultClient)
	chat := &tgbotapi.Chat{ID: 42}
	from := &tgbotapi.User{ID: 42, UserName: "ana", FirstName: "Ana"}

	evt, ok := s.toEvent(tgbotapi.Update{Message: &tgbotapi.Message{Chat: chat, From: from, Text: "/start", Date: 1700000000}})
	require.True(t, ok)
	assert.Equal(t, models.EventText, evt.Kind)
	assert.Equal(t, "42", evt.UserID)
	assert.Equal(t, "ana", evt.Username)
	assert.Equal(t, "Ana", evt.FirstName)
	assert.Equal(t, "/start", evt.Text)

	evt, ok = s.toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    chat,
		From:    from,
		Caption: "almuerzo",
		Photo:   []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}})
	require.True(t, ok)
	assert.Equal(t, models.EventPhoto, evt.Kind)
	assert.Equal(t, "almuerzo", evt.Caption)
	assert.NotNil(t, evt.FetchPhoto)

	evt, ok = s.toEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		From:    from,
		Message: &tgbotapi.Message{Chat: chat},
		Data:    "confirm_food",
	}})
	require.True(t, ok)
	assert.Equal(t, models.EventButton, evt.Kind)
	assert.Equal(t, "cb1", evt.CallbackID)
	assert.Equal(t, "confirm_food", evt.Payload)
	assert.Equal(t, "42", evt.UserID)

	_, ok = s.toEvent(tgbotapi.Update{Message: &tgbotapi.Message{Chat: chat, From: from}})
	assert.False(t, ok)
	_, ok = s.toEvent(tgbotapi.Update{})
	assert.False(t, ok)
}

func TestTelegramPhotoDownloadUsesLargestSize(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	bot := newFakeBot()
	bot.fileURL = srv.URL
	s := newTelegramService(bot, srv.Client())

	evt, ok := s.toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:  &tgbotapi.Chat{ID: 1},
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}})
	require.True(t, ok)
	data, err := evt.FetchPhoto(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Equal(t, "/large", gotPath)
}

func TestTelegramPhotoDownloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	bot := newFakeBot()
	bot.fileURL = srv.URL
	s := newTelegramService(bot, srv.Client())
	_, err := s.download(context.Background(), "x")
	assert.Error(t, err)
}

func TestTelegramMarkdownFallback(t *testing.T) {
	bot := newFakeBot()
	bot.sendErrs = []error{&tgbotapi.Error{Code: 400, Message: "Bad Request: can't parse entities: unclosed bold"}}
	s := newTelegramService(bot, http.DefaultClient)

	require.NoError(t, s.SendText(context.Background(), "42", "*roto"))
	sent := bot.sentMessages()
	require.Len(t, sent, 2)
	first := sent[0].(tgbotapi.MessageConfig)
	second := sent[1].(tgbotapi.MessageConfig)
	assert.Equal(t, tgbotapi.ModeMarkdown, first.ParseMode)
	assert.Equal(t, "", second.ParseMode)
	assert.Equal(t, "*roto", second.Text)
	assert.Equal(t, int64(42), second.ChatID)
}

func TestTelegramOtherErrorsAreNotRetried(t *testing.T) {
	bot := newFakeBot()
	bot.sendErrs = []error{&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}
	s := newTelegramService(bot, http.DefaultClient)

	err := s.SendText(context.Background(), "42", "hola")
	require.Error(t, err)
	assert.Len(t, bot.sentMessages(), 1)
}

func TestTelegramSendMenuKeyboard(t *testing.T) {
	bot := newFakeBot()
	s := newTelegramService(bot, http.DefaultClient)
	menu := models.Menu{
		{{Label: "✅ Guardar", Payload: "confirm_food"}, {Label: "❌ Cancelar", Payload: "cancel_food"}},
		{{Label: "Otro", Payload: "other"}},
	}
	require.NoError(t, s.SendMenu(context.Background(), "42", "¿Guardar?", menu))

	msg := bot.sentMessages()[0].(tgbotapi.MessageConfig)
	keyboard, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.InlineKeyboard, 2)
	require.Len(t, keyboard.InlineKeyboard[0], 2)
	assert.Equal(t, "✅ Guardar", keyboard.InlineKeyboard[0][0].Text)
	assert.Equal(t, "cancel_food", *keyboard.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "other", *keyboard.InlineKeyboard[1][0].CallbackData)
}

func TestTelegramSendPhotoAndDocument(t *testing.T) {
	bot := newFakeBot()
	s := newTelegramService(bot, http.DefaultClient)
	ctx := context.Background()

	require.NoError(t, s.SendPhoto(ctx, "42", []byte("png"), "📊 *Semana*"))
	require.NoError(t, s.SendDocument(ctx, "42", "export.csv", []byte("a,b"), "📄 Export"))

	sent := bot.sentMessages()
	require.Len(t, sent, 2)
	photo := sent[0].(tgbotapi.PhotoConfig)
	assert.Equal(t, "📊 *Semana*", photo.Caption)
	doc := sent[1].(tgbotapi.DocumentConfig)
	assert.Equal(t, "export.csv", doc.File.(tgbotapi.FileBytes).Name)
}

func TestTelegramInvalidChatID(t *testing.T) {
	s := newTelegramService(newFakeBot(), http.DefaultClient)
	assert.Error(t, s.SendText(context.Background(), "+5491100000000x", "hola"))
}

func TestTelegramAckButton(t *testing.T) {
	bot := newFakeBot()
	s := newTelegramService(bot, http.DefaultClient)
	ctx := context.Background()

	require.NoError(t, s.AckButton(ctx, models.Event{CallbackID: "cb1"}, "✅ Guardado!"))
	require.NoError(t, s.AckButton(ctx, models.Event{}, "ignored"))

	require.Len(t, bot.requests, 1)
	cb := bot.requests[0].(tgbotapi.CallbackConfig)
	assert.Equal(t, "cb1", cb.CallbackQueryID)
	assert.Equal(t, "✅ Guardado!", cb.Text)
}

func TestTelegramStartAndStop(t *testing.T) {
	bot := newFakeBot()
	s := newTelegramService(bot, http.DefaultClient)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	bot.updates <- tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 7}, Text: "hola"}}

	select {
	case evt := <-s.Events():
		assert.Equal(t, "7", evt.UserID)
		assert.Equal(t, "hola", evt.Text)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())
	assert.True(t, bot.stopped)
	assert.ErrorIs(t, s.SendText(ctx, "7", "hola"), ErrServiceStopped)
	_, open := <-s.Events()
	assert.False(t, open)
}
