package messaging

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/CalCounter/internal/models"
)

// ErrServiceStopped is returned when sending through a transport that has been stopped.
var ErrServiceStopped = errors.New("messaging service stopped")

// Sender delivers outbound messages to a user identified by the transport's user id.
// Text is formatted with Telegram-style Markdown; transports without rich text
// send it as-is.
type Sender interface {
	// SendText sends a plain or Markdown message.
	SendText(ctx context.Context, to, text string) error

	// SendMenu sends a message with a set of buttons. Each button carries a payload
	// that comes back as a button event when chosen.
	SendMenu(ctx context.Context, to, text string, menu models.Menu) error

	// SendPhoto sends a PNG image with a caption.
	SendPhoto(ctx context.Context, to string, image []byte, caption string) error

	// SendDocument sends a file with a caption.
	SendDocument(ctx context.Context, to, filename string, data []byte, caption string) error
}

// Service defines a pluggable chat transport.
type Service interface {
	Sender

	// AckButton acknowledges a button tap so the client stops waiting. Transports
	// without native callbacks treat it as a no-op.
	AckButton(ctx context.Context, evt models.Event, text string) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Events returns a channel of inbound events.
	Events() <-chan models.Event
}

const (
	// DefaultChannelBufferSize is the buffer of the inbound events channel.
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout bounds how long an inbound event waits for room in the channel.
	DefaultChannelTimeout = 1 * time.Second
)

// eventQueue is the inbound side shared by every transport. Emits after stop
// are dropped and the channel is closed exactly once.
type eventQueue struct {
	name    string
	events  chan models.Event
	mu      sync.RWMutex
	stopped bool
}

func newEventQueue(name string) *eventQueue {
	return &eventQueue{name: name, events: make(chan models.Event, DefaultChannelBufferSize)}
}

// Events returns the channel of inbound events.
func (q *eventQueue) Events() <-chan models.Event {
	return q.events
}

func (q *eventQueue) emit(evt models.Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		slog.Warn(q.name+" dropping inbound event (service stopped)", "userID", evt.UserID, "kind", evt.Kind)
		return
	}
	if evt.ReceivedAt.IsZero() {
		evt.ReceivedAt = time.Now()
	}
	select {
	case q.events <- evt:
		slog.Debug(q.name+" inbound event emitted", "userID", evt.UserID, "kind", evt.Kind)
	case <-time.After(DefaultChannelTimeout):
		slog.Warn(q.name+" events channel blocked, dropping event", "userID", evt.UserID, "kind", evt.Kind)
	}
}

func (q *eventQueue) running() error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.stopped {
		return ErrServiceStopped
	}
	return nil
}

// stop closes the channel. It reports false when the queue was already stopped.
func (q *eventQueue) stop() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return false
	}
	q.stopped = true
	close(q.events)
	return true
}
