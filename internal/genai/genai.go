// Package genai extracts nutrition facts from food photos and descriptions and
// proposes meals, using Gemini or OpenAI chat models.
package genai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/observability"
)

// Supported providers.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Defaults applied by NewClient.
const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultTimeout     = 60 * time.Second
)

var (
	// ErrExtractionFailed is returned when no usable structured result was produced,
	// including transport errors and timeouts.
	ErrExtractionFailed = errors.New("nutrition extraction failed")
	// ErrNoChoicesReturned is returned when the model responds without content.
	ErrNoChoicesReturned = errors.New("no choices returned")
)

// Extractor turns food photos or descriptions into nutrition facts.
// Multiple foods are summed into a single aggregate.
type Extractor interface {
	ExtractFromImage(ctx context.Context, image []byte, caption string) (models.Nutrition, error)
	ExtractFromText(ctx context.Context, text string) (models.Nutrition, error)
	// Consult looks up a food without any logging intent.
	Consult(ctx context.Context, text string) (models.Nutrition, error)
}

// SuggestRequest describes what a meal suggestion must fit.
type SuggestRequest struct {
	Remaining  int
	Favourites []models.FrequentMeal
	LocalTime  time.Time
}

// Suggester proposes a meal for the remaining calories of the day.
type Suggester interface {
	Suggest(ctx context.Context, req SuggestRequest) (models.Suggestion, error)
}

// backend generates raw text from a prompt and an optional image.
type backend interface {
	Generate(ctx context.Context, prompt string, image []byte) (string, error)
	Name() string
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey   string
	Provider string
	Model    string
	Timeout  time.Duration
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the API key of the selected provider.
func WithAPIKey(key string) Option {
	return func(o *Opts) {
		o.APIKey = key
	}
}

// WithProvider selects gemini or openai.
func WithProvider(provider string) Option {
	return func(o *Opts) {
		o.Provider = strings.ToLower(strings.TrimSpace(provider))
	}
}

// WithModel overrides the default model of the provider.
func WithModel(model string) Option {
	return func(o *Opts) {
		o.Model = model
	}
}

// WithTimeout bounds each extraction call.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) {
		o.Timeout = d
	}
}

// Client implements Extractor and Suggester on top of a chat model.
type Client struct {
	backend backend
	timeout time.Duration
}

// NewClient creates a client for the configured provider. Gemini is the default.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := Opts{Provider: ProviderGemini, Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key not set", cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	var (
		b   backend
		err error
	)
	switch cfg.Provider {
	case ProviderGemini, "":
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
		b, err = newGeminiBackend(ctx, cfg.APIKey, cfg.Model)
	case ProviderOpenAI:
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
		b = newOpenAIBackend(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown genai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	slog.Debug("GenAI client created", "backend", b.Name(), "timeout", cfg.Timeout)
	return &Client{backend: b, timeout: cfg.Timeout}, nil
}

const nutritionFormat = `Responde SOLO con un JSON válido con este formato exacto:
{
  "nombre": "nombre del alimento",
  "calorias": número,
  "proteinas": número en gramos,
  "carbohidratos": número en gramos,
  "grasas": número en gramos,
  "cantidad": "porción estimada"
}`

// ExtractFromImage analyses a food photo. The caption, if any, is passed as context.
func (c *Client) ExtractFromImage(ctx context.Context, image []byte, caption string) (models.Nutrition, error) {
	if len(image) == 0 {
		return models.Nutrition{}, fmt.Errorf("%w: empty image", ErrExtractionFailed)
	}
	prompt := "Analiza esta imagen de comida"
	if caption = strings.TrimSpace(caption); caption != "" {
		prompt += " (contexto adicional: " + caption + ")"
	}
	prompt += ".\n" + nutritionFormat + "\nSi hay varios alimentos, suma los valores totales.\nNo incluyas texto adicional, solo el JSON."
	return c.nutrition(ctx, "image", prompt, image)
}

// ExtractFromText analyses a free-text food description.
func (c *Client) ExtractFromText(ctx context.Context, text string) (models.Nutrition, error) {
	prompt := fmt.Sprintf("Analiza esta descripción de comida: %q.\n%s\nSi hay varios alimentos, suma los valores totales.\nNo incluyas texto adicional, solo el JSON.", text, nutritionFormat)
	return c.nutrition(ctx, "text", prompt, nil)
}

// Consult analyses a description for a lookup that will not be logged.
func (c *Client) Consult(ctx context.Context, text string) (models.Nutrition, error) {
	prompt := fmt.Sprintf("Analiza esta descripción de comida: %q.\n%s\nNo incluyas texto adicional, solo el JSON.", text, nutritionFormat)
	return c.nutrition(ctx, "consult", prompt, nil)
}

func (c *Client) nutrition(ctx context.Context, source, prompt string, image []byte) (models.Nutrition, error) {
	raw, err := c.generate(ctx, source, prompt, image)
	if err != nil {
		return models.Nutrition{}, err
	}
	n, err := ParseNutrition(raw)
	if err != nil {
		slog.Warn("GenAI nutrition parse failed", "source", source, "error", err)
		return models.Nutrition{}, err
	}
	return n, nil
}

// Suggest asks the model for one meal that fits the remaining calories.
func (c *Client) Suggest(ctx context.Context, req SuggestRequest) (models.Suggestion, error) {
	favs := "No tienes comidas frecuentes guardadas."
	if len(req.Favourites) > 0 {
		lines := make([]string, 0, len(req.Favourites))
		for _, f := range req.Favourites {
			lines = append(lines, fmt.Sprintf("- %s: %.0f kcal", f.Name, f.Calories))
		}
		favs = strings.Join(lines, "\n")
	}
	prompt := fmt.Sprintf(`Eres un nutricionista experto. El usuario tiene %d kcal restantes para completar su meta diaria.
Son las %s (hora de Argentina, UTC-3).

Sus comidas frecuentes son:
%s

Proporciona UNA sugerencia de comida (desayuno, almuerzo, merienda o cena según la hora del día).

La sugerencia debe:
1. Caber en las %d kcal restantes
2. Preferiblemente usar ingredientes similares a sus comidas frecuentes
3. Incluir porciones específicas

Responde SOLO con un JSON válido con este formato exacto (sin markdown, solo el JSON):
{"nombre": "nombre del plato", "tipo": "desayuno/almuerzo/merienda/cena", "calorias": 0, "proteinas": 0, "carbohidratos": 0, "grasas": 0, "ingredientes": ["ingrediente 1"], "porcion": "descripción", "consejo": "texto corto"}`,
		req.Remaining, req.LocalTime.Format("15:04"), favs, req.Remaining)

	raw, err := c.generate(ctx, "suggest", prompt, nil)
	if err != nil {
		return models.Suggestion{}, err
	}
	var s models.Suggestion
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &s); err != nil {
		return models.Suggestion{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if strings.TrimSpace(s.Name) == "" {
		return models.Suggestion{}, fmt.Errorf("%w: suggestion without name", ErrExtractionFailed)
	}
	return s, nil
}

func (c *Client) generate(ctx context.Context, source, prompt string, image []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := c.backend.Generate(ctx, prompt, image)
	observability.RecordExtraction(source, err, time.Since(start))
	if err != nil {
		slog.Error("GenAI generate failed", "backend", c.backend.Name(), "source", source, "error", err)
		return "", fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	slog.Debug("GenAI generate succeeded", "backend", c.backend.Name(), "source", source, "bytes", len(raw))
	return raw, nil
}

// CleanJSON strips markdown code fences and any text around the outermost JSON object.
func CleanJSON(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```JSON", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.TrimSpace(s)
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		s = s[start : end+1]
	}
	return s
}

// ParseNutrition decodes a model response into nutrition facts. Any malformed or
// incomplete response yields ErrExtractionFailed rather than a partial value.
func ParseNutrition(raw string) (models.Nutrition, error) {
	var n models.Nutrition
	if err := json.Unmarshal([]byte(CleanJSON(raw)), &n); err != nil {
		return models.Nutrition{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	n.Name = strings.TrimSpace(n.Name)
	if err := n.Validate(); err != nil {
		return models.Nutrition{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	return n, nil
}
