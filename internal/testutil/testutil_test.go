package testutil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BTreeMap/CalCounter/internal/genai"
	"github.com/BTreeMap/CalCounter/internal/models"
)

func TestFakeMessengerRecords(t *testing.T) {
	ctx := context.Background()
	f := NewFakeMessenger()
	require.NoError(t, f.SendText(ctx, "u1", "hola"))
	require.NoError(t, f.SendMenu(ctx, "u1", "elige", models.Column(models.Button{Label: "A", Payload: "a"})))
	require.NoError(t, f.SendPhoto(ctx, "u1", []byte{1}, "foto"))
	require.NoError(t, f.SendDocument(ctx, "u1", "x.csv", []byte("a,b"), "doc"))
	require.NoError(t, f.AckButton(ctx, models.Event{CallbackID: "cb"}, "ok"))

	sent := f.Sent()
	require.Len(t, sent, 4)
	assert.Equal(t, KindText, sent[0].Kind)
	assert.Equal(t, KindMenu, sent[1].Kind)
	assert.Equal(t, "x.csv", f.Last().Filename)
	assert.True(t, f.Contains("elig"))
	assert.Equal(t, []string{"hola", "elige", "foto", "doc"}, f.Texts())
	require.Len(t, f.Acks(), 1)
	assert.Equal(t, "cb", f.Acks()[0].Event.CallbackID)

	f.Reset()
	assert.Empty(t, f.Sent())
	assert.Equal(t, Sent{}, f.Last())
}

func TestFakeMessengerSendErr(t *testing.T) {
	f := NewFakeMessenger()
	f.SendErr = errors.New("down")
	assert.Error(t, f.SendText(context.Background(), "u1", "x"))
	assert.Empty(t, f.Sent())
}

func TestFakeMessengerEvents(t *testing.T) {
	f := NewFakeMessenger()
	f.Emit(models.Event{Kind: models.EventText, UserID: "u1", Text: "hola"})
	evt := <-f.Events()
	assert.Equal(t, "hola", evt.Text)
}

func TestFakeExtractor(t *testing.T) {
	ctx := context.Background()
	f := &FakeExtractor{Nutrition: models.Nutrition{Name: "pan", Calories: 80}}
	n, err := f.ExtractFromText(ctx, "pan")
	require.NoError(t, err)
	assert.Equal(t, "pan", n.Name)
	_, err = f.ExtractFromImage(ctx, []byte{1}, "foto de pan")
	require.NoError(t, err)
	assert.Equal(t, "foto de pan", f.LastInput())
	assert.Equal(t, 2, f.Calls())

	_, err = f.Suggest(ctx, genai.SuggestRequest{Remaining: 300})
	require.NoError(t, err)
	assert.Equal(t, 300, f.LastSuggestRequest().Remaining)

	f.Err = genai.ErrExtractionFailed
	_, err = f.Consult(ctx, "x")
	assert.ErrorIs(t, err, genai.ErrExtractionFailed)
}

func TestHTTPHelpers(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/x", map[string]string{"a": "b"})
	assert.Equal(t, http.MethodPost, req.Method)

	rr := httptest.NewRecorder()
	rr.WriteString(`{"status":"ok"}`)
	resp := AssertJSONResponse(t, rr, "ok")
	assert.Equal(t, "ok", resp["status"])
	AssertHTTPStatus(t, http.StatusOK, rr.Code, "recorder default")
}
