// Package bot routes inbound chat events to commands, conversation flows and the
// pending-food confirmation.
//
// Events of one user are processed one at a time in arrival order; different
// users are processed concurrently.
package bot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BTreeMap/CalCounter/internal/flow"
	"github.com/BTreeMap/CalCounter/internal/messaging"
	"github.com/BTreeMap/CalCounter/internal/models"
	"github.com/BTreeMap/CalCounter/internal/observability"
	"github.com/BTreeMap/CalCounter/internal/report"
)

const (
	msgGenericError   = "❌ Ocurrió un error. Intenta de nuevo."
	msgUnknownCommand = "🤷 No conozco ese comando. Usa /ayuda para ver los comandos disponibles."
)

// Router dispatches events from a chat transport.
type Router struct {
	msg      messaging.Service
	engine   *flow.Engine
	reports  *report.Reporter
	commands map[string]commandFunc

	mu      sync.Mutex
	pending map[string][]models.Event // queued events per user with a live worker
	wg      sync.WaitGroup
}

// NewRouter creates a Router.
func NewRouter(msg messaging.Service, engine *flow.Engine, reports *report.Reporter) *Router {
	r := &Router{
		msg:     msg,
		engine:  engine,
		reports: reports,
		pending: make(map[string][]models.Event),
	}
	r.commands = r.commandTable()
	return r
}

// Start consumes the transport events until ctx is cancelled or the channel closes.
func (r *Router) Start(ctx context.Context) {
	events := r.msg.Events()
	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Debug("Router stopped", "reason", ctx.Err())
				return
			case evt, ok := <-events:
				if !ok {
					slog.Debug("Router events channel closed")
					return
				}
				r.Dispatch(ctx, evt)
			}
		}
	}()
}

// Dispatch queues an event behind the earlier events of the same user.
func (r *Router) Dispatch(ctx context.Context, evt models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	queue, running := r.pending[evt.UserID]
	r.pending[evt.UserID] = append(queue, evt)
	if running {
		return
	}
	observability.SetActiveUserQueues(len(r.pending))
	r.wg.Add(1)
	go r.work(context.WithoutCancel(ctx), evt.UserID)
}

// work drains the queue of one user and exits when it is empty.
func (r *Router) work(ctx context.Context, userID string) {
	defer r.wg.Done()
	for {
		r.mu.Lock()
		queue := r.pending[userID]
		if len(queue) == 0 {
			delete(r.pending, userID)
			observability.SetActiveUserQueues(len(r.pending))
			r.mu.Unlock()
			return
		}
		evt := queue[0]
		r.pending[userID] = queue[1:]
		r.mu.Unlock()

		r.Handle(ctx, evt)
	}
}

// ActiveQueues returns the number of users with a live worker.
func (r *Router) ActiveQueues() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Wait blocks until every queued event has been processed.
func (r *Router) Wait() {
	r.wg.Wait()
}

// Handle processes a single event synchronously. Failures are reported to the
// user with a generic message.
func (r *Router) Handle(ctx context.Context, evt models.Event) {
	observability.RecordInbound(string(evt.Kind))
	var err error
	switch evt.Kind {
	case models.EventText:
		err = r.handleText(ctx, evt)
	case models.EventPhoto:
		err = r.engine.HandlePhoto(ctx, evt.UserID, evt.FetchPhoto, evt.Caption)
	case models.EventButton:
		err = r.handleButton(ctx, evt)
	default:
		slog.Warn("Router unknown event kind", "kind", evt.Kind, "userID", evt.UserID)
		return
	}
	if err != nil {
		slog.Error("Router event failed", "error", err, "kind", evt.Kind, "userID", evt.UserID)
		if sendErr := r.msg.SendText(ctx, evt.UserID, msgGenericError); sendErr != nil {
			slog.Error("Router failed to send error message", "error", sendErr, "userID", evt.UserID)
		}
	}
}

func (r *Router) handleText(ctx context.Context, evt models.Event) error {
	if name, arg, ok := ParseCommand(evt.Text); ok {
		return r.runCommand(ctx, evt, name, arg)
	}
	return r.engine.HandleText(ctx, evt.UserID, evt.Text)
}

// handleButton resolves a tap and acknowledges it exactly once, whatever the outcome.
func (r *Router) handleButton(ctx context.Context, evt models.Event) error {
	var (
		ack string
		err error
	)
	switch {
	case flow.HandlesPayload(evt.Payload):
		ack, err = r.engine.HandleButton(ctx, evt.UserID, evt.Payload)
	case report.HandlesPayload(evt.Payload):
		ack, err = r.reports.HandleButton(ctx, evt.UserID, evt.Payload)
	default:
		observability.RecordStaleTap()
		slog.Debug("Router unknown button payload", "userID", evt.UserID, "payload", evt.Payload)
	}
	if ackErr := r.msg.AckButton(ctx, evt, ack); ackErr != nil {
		slog.Warn("Router button ack failed", "error", ackErr, "userID", evt.UserID)
	}
	return err
}
