package genai

import (
	"context"
	"encoding/base64"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK completion service to chatService.
type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

type openAIBackend struct {
	chat  chatService
	model string
}

func newOpenAIBackend(apiKey, model string) *openAIBackend {
	cli := openai.NewClient(option.WithAPIKey(apiKey))
	return &openAIBackend{chat: completionsAdapter{svc: &cli.Chat.Completions}, model: model}
}

func (o *openAIBackend) Name() string { return "openai:" + o.model }

func (o *openAIBackend) Generate(ctx context.Context, prompt string, image []byte) (string, error) {
	var user openai.ChatCompletionMessageParamUnion
	if len(image) > 0 {
		dataURL := "data:" + imageMIME(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
		user = openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
			openai.TextContentPart(prompt),
			openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		})
	} else {
		user = openai.UserMessage(prompt)
	}

	resp, err := o.chat.Create(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("Eres un nutricionista que responde únicamente con JSON válido."),
			user,
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}
