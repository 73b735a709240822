package genai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	genai "google.golang.org/genai"
)

// contentGenerator is the subset of genai.Models used by the Gemini backend.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type geminiBackend struct {
	models contentGenerator
	model  string
}

func newGeminiBackend(ctx context.Context, apiKey, model string) (*geminiBackend, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &geminiBackend{models: cli.Models, model: model}, nil
}

func (g *geminiBackend) Name() string { return "gemini:" + g.model }

func (g *geminiBackend) Generate(ctx context.Context, prompt string, image []byte) (string, error) {
	parts := []*genai.Part{{Text: prompt}}
	if len(image) > 0 {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: imageMIME(image), Data: image}})
	}
	resp, err := g.models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Role: "user", Parts: parts}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoChoicesReturned
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrNoChoicesReturned
	}
	return b.String(), nil
}

// imageMIME sniffs the image type, defaulting to JPEG which chat apps use for photos.
func imageMIME(image []byte) string {
	ct := http.DetectContentType(image)
	if strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}
