package messaging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/twiliowhatsapp"
)

var phoneNumberRegex = regexp.MustCompile(`[^\d]`)

const msgMediaUnavailable = "(no se pudo adjuntar el archivo)"

// MediaHost publishes a file and returns a URL Twilio can fetch it from.
type MediaHost interface {
	Publish(ctx context.Context, userID, filename, contentType string, data []byte) (string, error)
}

// TwilioOption configures a TwilioService.
type TwilioOption func(*TwilioService)

// WithMediaHost enables photos and documents. Without a host they are sent as
// their caption only.
func WithMediaHost(h MediaHost) TwilioOption {
	return func(s *TwilioService) { s.media = h }
}

// WithMediaAuth sets the credentials used to download inbound media.
func WithMediaAuth(accountSID, authToken string) TwilioOption {
	return func(s *TwilioService) {
		s.accountSID = accountSID
		s.authToken = authToken
	}
}

// WithSignatureValidation rejects webhooks whose signature does not match publicURL.
func WithSignatureValidation(v *twiliowhatsapp.SignatureValidator, publicURL string) TwilioOption {
	return func(s *TwilioService) {
		s.validator = v
		s.publicURL = publicURL
	}
}

// TwilioService implements Service using the Twilio API. Inbound messages
// arrive through TwilioWebhookHandler.
type TwilioService struct {
	*eventQueue
	client     twiliowhatsapp.Sender
	menus      *MenuBook
	media      MediaHost
	http       *http.Client
	accountSID string
	authToken  string
	validator  *twiliowhatsapp.SignatureValidator
	publicURL  string
	stopOnce   sync.Once
}

// NewTwilioService creates a new TwilioService.
func NewTwilioService(client twiliowhatsapp.Sender, opts ...TwilioOption) *TwilioService {
	s := &TwilioService{
		eventQueue: newEventQueue("TwilioService"),
		client:     client,
		menus:      NewMenuBook(DefaultMenuBookSize),
		http:       &http.Client{Timeout: time.Minute},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateAndCanonicalizeRecipient strips everything but digits and requires at least 6 of them.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	recipient = strings.TrimPrefix(recipient, "whatsapp:")
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return "+" + canonical, nil
}

// Start is a no-op: inbound messages come from the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return s.running()
}

// Stop closes the events channel.
func (s *TwilioService) Stop() error {
	s.stopOnce.Do(func() {
		s.stop()
		slog.Info("TwilioService stopped")
	})
	return nil
}

func (s *TwilioService) recipient(to string) (string, error) {
	if err := s.running(); err != nil {
		return "", err
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService recipient validation error", "error", err, "to", to)
		return "", err
	}
	return canonical, nil
}

// SendText sends a text message.
func (s *TwilioService) SendText(ctx context.Context, to, text string) error {
	canonical, err := s.recipient(to)
	if err != nil {
		return err
	}
	s.menus.Forget(canonical)
	return s.client.SendMessage(ctx, canonical, text)
}

// SendMenu sends the text followed by the numbered options.
func (s *TwilioService) SendMenu(ctx context.Context, to, text string, menu models.Menu) error {
	canonical, err := s.recipient(to)
	if err != nil {
		return err
	}
	return s.client.SendMessage(ctx, canonical, s.menus.Render(canonical, text, menu))
}

// SendPhoto publishes the image and sends it by URL.
func (s *TwilioService) SendPhoto(ctx context.Context, to string, image []byte, caption string) error {
	return s.sendMedia(ctx, to, "chart.png", "image/png", image, caption)
}

// SendDocument publishes the file and sends it by URL.
func (s *TwilioService) SendDocument(ctx context.Context, to, filename string, data []byte, caption string) error {
	return s.sendMedia(ctx, to, filename, "text/csv", data, caption)
}

func (s *TwilioService) sendMedia(ctx context.Context, to, filename, contentType string, data []byte, caption string) error {
	canonical, err := s.recipient(to)
	if err != nil {
		return err
	}
	if s.media == nil {
		slog.Warn("TwilioService no media host configured, sending caption only", "to", canonical, "file", filename)
		return s.client.SendMessage(ctx, canonical, caption+"\n\n"+msgMediaUnavailable)
	}
	url, err := s.media.Publish(ctx, canonical, filename, contentType, data)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", filename, err)
	}
	return s.client.SendMedia(ctx, canonical, caption, url)
}

// AckButton is a no-op: WhatsApp has no callback to answer.
func (s *TwilioService) AckButton(ctx context.Context, evt models.Event, text string) error {
	return nil
}

// TwilioWebhookHandler handles inbound Twilio webhook requests and emits them as events.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Error("TwilioService failed to parse webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if s.validator != nil && !s.validSignature(r) {
		slog.Warn("TwilioService webhook signature mismatch", "from", r.PostForm.Get("From"))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	evt, err := s.toEvent(r.PostForm)
	if err != nil {
		slog.Warn("TwilioService webhook rejected", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if evt.Kind != "" {
		s.emit(s.menus.Inbound(evt))
	}
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "<Response></Response>")
}

func (s *TwilioService) validSignature(r *http.Request) bool {
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return s.validator.Valid(s.publicURL, params, r.Header.Get("X-Twilio-Signature"))
}

// toEvent maps webhook form values to an event. A message with neither text
// nor an image yields a zero event.
func (s *TwilioService) toEvent(form map[string][]string) (models.Event, error) {
	get := func(k string) string {
		if v := form[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	from, err := s.ValidateAndCanonicalizeRecipient(get("From"))
	if err != nil {
		return models.Event{}, err
	}
	evt := models.Event{UserID: from, FirstName: get("ProfileName"), ReceivedAt: time.Now()}
	body := get("Body")

	numMedia, _ := strconv.Atoi(get("NumMedia"))
	mediaURL := get("MediaUrl0")
	if numMedia > 0 && mediaURL != "" && strings.HasPrefix(get("MediaContentType0"), "image/") {
		evt.Kind = models.EventPhoto
		evt.Caption = body
		evt.FetchPhoto = func(ctx context.Context) ([]byte, error) {
			return s.download(ctx, mediaURL)
		}
		return evt, nil
	}
	if strings.TrimSpace(body) == "" {
		slog.Debug("TwilioService ignoring message without text or image", "from", from)
		return models.Event{}, nil
	}
	evt.Kind = models.EventText
	evt.Text = body
	return evt, nil
}

func (s *TwilioService) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if s.accountSID != "" {
		req.SetBasicAuth(s.accountSID, s.authToken)
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download twilio media: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download twilio media: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, MaxPhotoBytes))
}
