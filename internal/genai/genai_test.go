package genai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	genai "google.golang.org/genai"

	"github.com/BTreeMap/CalCounter/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func chatReply(content string) openai.ChatCompletion {
	return openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

// mockGenerator implements contentGenerator for testing.
type mockGenerator struct {
	text     string
	err      error
	delay    time.Duration
	contents []*genai.Content
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.contents = contents
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: m.text}}}}},
	}, nil
}

func openAIClient(chat chatService) *Client {
	return &Client{backend: &openAIBackend{chat: chat, model: DefaultOpenAIModel}, timeout: time.Second}
}

func geminiClient(gen contentGenerator) *Client {
	return &Client{backend: &geminiBackend{models: gen, model: DefaultGeminiModel}, timeout: time.Second}
}

func TestExtractFromText_OpenAI(t *testing.T) {
	chat := &mockChatService{resp: chatReply("```json\n{\"nombre\":\"Milanesa con puré\",\"calorias\":650,\"proteinas\":35,\"carbohidratos\":50,\"grasas\":30,\"cantidad\":\"1 plato\"}\n```")}
	n, err := openAIClient(chat).ExtractFromText(context.Background(), "milanesa con puré")
	require.NoError(t, err)
	assert.Equal(t, models.Nutrition{Name: "Milanesa con puré", Calories: 650, Protein: 35, Carbs: 50, Fat: 30, Portion: "1 plato"}, n)
	assert.Len(t, chat.params.Messages, 2)
}

func TestExtractFromText_ServiceError(t *testing.T) {
	chat := &mockChatService{err: errors.New("service failure")}
	_, err := openAIClient(chat).ExtractFromText(context.Background(), "pizza")
	require.ErrorIs(t, err, ErrExtractionFailed)
	assert.True(t, strings.Contains(err.Error(), "service failure"))
}

func TestExtractFromText_NoChoices(t *testing.T) {
	chat := &mockChatService{resp: openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}}
	_, err := openAIClient(chat).ExtractFromText(context.Background(), "pizza")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtractFromText_Malformed(t *testing.T) {
	for _, body := range []string{
		"no sé qué es eso",
		`{"nombre":"","calorias":100}`,
		`{"nombre":"pan","calorias":-5}`,
		`{"nombre":"pan","calorias":"mucho"}`,
	} {
		chat := &mockChatService{resp: chatReply(body)}
		_, err := openAIClient(chat).ExtractFromText(context.Background(), "pan")
		assert.ErrorIs(t, err, ErrExtractionFailed, body)
	}
}

func TestExtractFromImage_Gemini(t *testing.T) {
	gen := &mockGenerator{text: `{"nombre":"Ensalada","calorias":180,"proteinas":4,"carbohidratos":12,"grasas":13,"cantidad":"1 bol"}`}
	png := []byte("\x89PNG\r\n\x1a\n0000")
	n, err := geminiClient(gen).ExtractFromImage(context.Background(), png, "con aceite de oliva")
	require.NoError(t, err)
	assert.Equal(t, "Ensalada", n.Name)
	assert.Equal(t, 180.0, n.Calories)

	require.Len(t, gen.contents, 1)
	parts := gen.contents[0].Parts
	require.Len(t, parts, 2)
	assert.Contains(t, parts[0].Text, "con aceite de oliva")
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/png", parts[1].InlineData.MIMEType)
}

func TestExtractFromImage_Empty(t *testing.T) {
	_, err := geminiClient(&mockGenerator{}).ExtractFromImage(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestExtractTimeout(t *testing.T) {
	c := geminiClient(&mockGenerator{text: `{}`, delay: time.Second})
	c.timeout = 20 * time.Millisecond
	_, err := c.Consult(context.Background(), "asado")
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestSuggest(t *testing.T) {
	chat := &mockChatService{resp: chatReply(`Claro: {"nombre":"Tostadas con palta","tipo":"merienda","calorias":320,"proteinas":9,"carbohidratos":30,"grasas":18,"ingredientes":["pan integral","palta"],"porcion":"2 tostadas","consejo":"Sumá un huevo"}`)}
	s, err := openAIClient(chat).Suggest(context.Background(), SuggestRequest{
		Remaining:  400,
		Favourites: []models.FrequentMeal{{Nutrition: models.Nutrition{Name: "palta", Calories: 160}}},
		LocalTime:  time.Date(2026, 3, 10, 17, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "Tostadas con palta", s.Name)
	assert.Equal(t, []string{"pan integral", "palta"}, s.Ingredients)
	assert.Equal(t, "merienda", s.MealType)
}

func TestSuggest_Malformed(t *testing.T) {
	chat := &mockChatService{resp: chatReply(`{"tipo":"cena"}`)}
	_, err := openAIClient(chat).Suggest(context.Background(), SuggestRequest{Remaining: 500})
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSON("Aquí tienes: {\"a\":1} ¡listo!"))
	assert.Equal(t, "sin json", CleanJSON("sin json"))
}

func TestNewClient_NoKey(t *testing.T) {
	_, err := NewClient(context.Background())
	assert.Error(t, err)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(context.Background(), WithAPIKey("k"), WithProvider("llama"))
	assert.Error(t, err)
}

func TestNewClient_WithKey(t *testing.T) {
	cli, err := NewClient(context.Background(), WithAPIKey("test-key"), WithProvider("OpenAI"))
	require.NoError(t, err)
	require.NotNil(t, cli)
	assert.Equal(t, DefaultTimeout, cli.timeout)
	assert.Equal(t, "openai:"+DefaultOpenAIModel, cli.backend.Name())
}
