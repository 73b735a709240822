package messaging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"

	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/whatsapp"
)

// Ensure every transport implements Service
func TestServicesImplementService(t *testing.T) {
	var _ Service = (*WhatsAppService)(nil)
	var _ Service = (*TwilioService)(nil)
	var _ Service = (*TelegramService)(nil)
}

func incoming(from string, msg *waE2E.Message) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Sender: types.NewJID(from, types.DefaultUserServer)},
			PushName:      "Ana",
			Timestamp:     time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		},
		Message: msg,
	}
}

func TestWhatsAppServiceToEvent(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())

	evt, ok := svc.toEvent(incoming("5491100000000", &waE2E.Message{Conversation: proto.String("hola")}))
	require.True(t, ok)
	assert.Equal(t, models.EventText, evt.Kind)
	assert.Equal(t, "+5491100000000", evt.UserID)
	assert.Equal(t, "Ana", evt.FirstName)
	assert.Equal(t, "hola", evt.Text)

	evt, ok = svc.toEvent(incoming("5491100000000", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("/calorias")}}))
	require.True(t, ok)
	assert.Equal(t, "/calorias", evt.Text)

	evt, ok = svc.toEvent(incoming("5491100000000", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("cena")}}))
	require.True(t, ok)
	assert.Equal(t, models.EventPhoto, evt.Kind)
	assert.Equal(t, "cena", evt.Caption)
	_, err := evt.FetchPhoto(context.Background())
	assert.ErrorIs(t, err, ErrServiceStopped)

	fromMe := incoming("5491100000000", &waE2E.Message{Conversation: proto.String("eco")})
	fromMe.Info.IsFromMe = true
	_, ok = svc.toEvent(fromMe)
	assert.False(t, ok)

	_, ok = svc.toEvent(incoming("5491100000000", &waE2E.Message{}))
	assert.False(t, ok)
}

func TestWhatsAppServiceNumberedMenu(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	ctx := context.Background()

	menu := models.Menu{{{Label: "✅ Guardar", Payload: "confirm_food"}, {Label: "❌ Cancelar", Payload: "cancel_food"}}}
	require.NoError(t, svc.SendMenu(ctx, "+5491100000000", "¿Guardar?", menu))
	body := mock.Sent()[0].Body
	assert.Contains(t, body, "¿Guardar?")
	assert.Contains(t, body, "1. ✅ Guardar")
	assert.Contains(t, body, "2. ❌ Cancelar")

	svc.handleIncomingMessage(incoming("5491100000000", &waE2E.Message{Conversation: proto.String(" 2 ")}))
	evt := <-svc.Events()
	assert.Equal(t, models.EventButton, evt.Kind)
	assert.Equal(t, "cancel_food", evt.Payload)

	// The menu is consumed by the first answer.
	svc.handleIncomingMessage(incoming("5491100000000", &waE2E.Message{Conversation: proto.String("2")}))
	evt = <-svc.Events()
	assert.Equal(t, models.EventText, evt.Kind)
	assert.Equal(t, "2", evt.Text)
}

func TestWhatsAppServiceTextForgetsMenu(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	ctx := context.Background()

	require.NoError(t, svc.SendMenu(ctx, "+1", "Sexo", models.Column(models.Button{Label: "Hombre", Payload: "sexo_m"})))
	require.NoError(t, svc.SendText(ctx, "+1", "¿Cuál es tu peso?"))

	svc.handleIncomingMessage(incoming("1", &waE2E.Message{Conversation: proto.String("1")}))
	evt := <-svc.Events()
	assert.Equal(t, models.EventText, evt.Kind)
}

func TestWhatsAppServiceMedia(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)
	ctx := context.Background()

	require.NoError(t, svc.SendPhoto(ctx, "+1", []byte("png"), "📊"))
	require.NoError(t, svc.SendDocument(ctx, "+1", "a.csv", []byte("x"), "📄"))
	sent := mock.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "📊", sent[0].Body)
	assert.Equal(t, "a.csv", sent[1].Filename)
	assert.NoError(t, svc.AckButton(ctx, models.Event{}, "ok"))
}

func TestWhatsAppServiceStartStop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	require.NoError(t, svc.Start(context.Background()))
	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop())

	_, ok := <-svc.Events()
	assert.False(t, ok)
	assert.ErrorIs(t, svc.SendText(context.Background(), "+1", "hola"), ErrServiceStopped)
}
