package messaging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/whatsapp"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
// Menus are sent as numbered lists and user ids are E.164 phone numbers.
type WhatsAppService struct {
	*eventQueue
	client   whatsapp.Sender
	waClient *whatsapp.Client // access to the underlying client for event handling
	menus    *MenuBook
	stopOnce sync.Once
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	service := &WhatsAppService{
		eventQueue: newEventQueue("WhatsAppService"),
		client:     client,
		menus:      NewMenuBook(DefaultMenuBookSize),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return service
}

// Start registers the inbound message handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if err := s.running(); err != nil {
		return err
	}
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
		return nil
	}
	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// Stop closes the events channel.
func (s *WhatsAppService) Stop() error {
	s.stopOnce.Do(func() {
		s.stop()
		if s.waClient != nil && s.waClient.GetClient() != nil {
			s.waClient.GetClient().Disconnect()
		}
		slog.Info("WhatsAppService stopped and channels closed")
	})
	return nil
}

// handleIncomingMessage forwards private text and image messages.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if e, ok := s.toEvent(evt); ok {
		s.emit(s.menus.Inbound(e))
	}
}

func (s *WhatsAppService) toEvent(evt *events.Message) (models.Event, bool) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return models.Event{}, false
	}
	out := models.Event{
		UserID:     "+" + strings.TrimPrefix(evt.Info.Sender.User, "+"),
		FirstName:  evt.Info.PushName,
		ReceivedAt: evt.Info.Timestamp,
	}
	if out.ReceivedAt.IsZero() {
		out.ReceivedAt = time.Now()
	}

	switch {
	case evt.Message.GetImageMessage() != nil:
		img := evt.Message.GetImageMessage()
		out.Kind = models.EventPhoto
		out.Caption = img.GetCaption()
		out.FetchPhoto = func(ctx context.Context) ([]byte, error) {
			if s.waClient == nil {
				return nil, ErrServiceStopped
			}
			return s.waClient.Download(ctx, img)
		}
	case evt.Message.GetConversation() != "":
		out.Kind = models.EventText
		out.Text = evt.Message.GetConversation()
	case evt.Message.GetExtendedTextMessage().GetText() != "":
		out.Kind = models.EventText
		out.Text = evt.Message.GetExtendedTextMessage().GetText()
	default:
		slog.Debug("WhatsAppService ignoring unsupported message", "from", out.UserID)
		return models.Event{}, false
	}
	return out, true
}

// SendText sends a text message.
func (s *WhatsAppService) SendText(ctx context.Context, to, text string) error {
	if err := s.running(); err != nil {
		return err
	}
	s.menus.Forget(to)
	return s.client.SendMessage(ctx, to, text)
}

// SendMenu sends the text followed by the numbered options.
func (s *WhatsAppService) SendMenu(ctx context.Context, to, text string, menu models.Menu) error {
	if err := s.running(); err != nil {
		return err
	}
	return s.client.SendMessage(ctx, to, s.menus.Render(to, text, menu))
}

// SendPhoto sends an image with a caption.
func (s *WhatsAppService) SendPhoto(ctx context.Context, to string, image []byte, caption string) error {
	if err := s.running(); err != nil {
		return err
	}
	return s.client.SendImage(ctx, to, image, caption)
}

// SendDocument sends a file with a caption.
func (s *WhatsAppService) SendDocument(ctx context.Context, to, filename string, data []byte, caption string) error {
	if err := s.running(); err != nil {
		return err
	}
	return s.client.SendDocument(ctx, to, filename, data, caption)
}

// AckButton is a no-op: WhatsApp has no callback to answer.
func (s *WhatsAppService) AckButton(ctx context.Context, evt models.Event, text string) error {
	return nil
}
