package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BTreeMap/CalCounter/internal/messaging"
)

const (
	// DefaultAddr is the listen address of the operations server.
	DefaultAddr = ":8080"
	// TwilioWebhookPath receives inbound Twilio messages.
	TwilioWebhookPath = "/twilio/webhook"
	// DefaultShutdownTimeout bounds the graceful HTTP shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// queueCounter reports how many users have events in flight.
type queueCounter interface {
	ActiveQueues() int
}

// Server exposes health, metrics and, for the Twilio transport, the inbound webhook.
type Server struct {
	transport string
	queues    queueCounter
	twilio    *messaging.TwilioService
	started   time.Time
	mux       *http.ServeMux
	http      *http.Server
}

// NewServer creates a Server. twilio may be nil when another transport is used.
func NewServer(addr, transport string, queues queueCounter, twilio *messaging.TwilioService) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	s := &Server{
		transport: transport,
		queues:    queues,
		twilio:    twilio,
		started:   time.Now(),
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("/healthz", s.healthHandler)
	s.mux.Handle("/metrics", promhttp.Handler())
	if twilio != nil {
		s.mux.HandleFunc(TwilioWebhookPath, twilio.TwilioWebhookHandler)
	}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe binds the address and serves in the background. Serve errors
// after a successful bind are delivered on the returned channel.
func (s *Server) ListenAndServe() (<-chan error, error) {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return nil, err
	}
	slog.Info("Server listening", "addr", ln.Addr().String(), "transport", s.transport, "twilio_webhook", s.twilio != nil)
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh, nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// healthHandler reports liveness and the number of users being served.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	health := map[string]interface{}{
		"transport":      s.transport,
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}
	if s.queues != nil {
		health["active_queues"] = s.queues.ActiveQueues()
	}
	writeJSONResponse(w, http.StatusOK, Response{Status: StatusOK, Result: health})
}
