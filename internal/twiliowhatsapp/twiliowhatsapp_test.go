package twiliowhatsapp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	require.NoError(t, mock.SendMessage(ctx, "+12345", "Hola"))
	require.NoError(t, mock.SendMedia(ctx, "+12345", "📊", "https://media.example/chart.png"))

	sent := mock.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "Hola", sent[0].Body)
	assert.Empty(t, sent[0].MediaURL)
	assert.Equal(t, "https://media.example/chart.png", sent[1].MediaURL)

	mock.Err = errors.New("rate limited")
	assert.Error(t, mock.SendMessage(ctx, "+12345", "Hola"))
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "whatsapp:+14155238886", Address("+14155238886"))
	assert.Equal(t, "whatsapp:+14155238886", Address("whatsapp:+14155238886"))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	_, err := NewClient(WithFromWhats("+1"))
	assert.Error(t, err)

	_, err = NewClient(WithAccountSID("AC123"), WithAuthToken("tok"))
	assert.Error(t, err)

	c, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromWhats("+14155238886"))
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:+14155238886", c.fromWhats)
}

func TestSignatureValidatorRejectsForgery(t *testing.T) {
	v := NewSignatureValidator("secret")
	params := map[string]string{"From": "whatsapp:+1", "Body": "hola"}
	assert.False(t, v.Valid("https://bot.example/twilio/webhook", params, "forged"))
}
