// Package api bootstraps CalCounter: it opens the state, builds the chat
// transport and the bot, and serves the operations HTTP endpoints until the
// context is cancelled.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CalCounter/internal/bot"
	"github.com/BTreeMap/CalCounter/internal/diary"
	"github.com/BTreeMap/CalCounter/internal/events"
	"github.com/BTreeMap/CalCounter/internal/flow"
	"github.com/BTreeMap/CalCounter/internal/genai"
	"github.com/BTreeMap/CalCounter/internal/lockfile"
	"github.com/BTreeMap/CalCounter/internal/mediastore"
	"github.com/BTreeMap/CalCounter/internal/messaging"
	"github.com/BTreeMap/CalCounter/internal/report"
	"github.com/BTreeMap/CalCounter/internal/session"
	"github.com/BTreeMap/CalCounter/internal/store"
	"github.com/BTreeMap/CalCounter/internal/twiliowhatsapp"
	"github.com/BTreeMap/CalCounter/internal/whatsapp"
)

// Chat transports.
const (
	TransportTelegram = "telegram"
	TransportWhatsApp = "whatsapp"
	TransportTwilio   = "twilio"
)

// Opts holds the configuration of the bot process.
type Opts struct {
	Addr             string
	StateDir         string
	Transport        string
	TelegramToken    string
	WhatsAppOpts     []whatsapp.Option
	TwilioOpts       []twiliowhatsapp.Option
	TwilioWebhookURL string // public URL used to validate webhook signatures
	Media            *mediastore.Config
	KafkaBrokers     []string
	KafkaTopicPrefix string
}

// Option configures Run.
type Option func(*Opts)

// WithAddr sets the operations server address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithStateDir sets the directory holding the process lock.
func WithStateDir(dir string) Option {
	return func(o *Opts) { o.StateDir = dir }
}

// WithTransport selects the chat transport. Telegram is the default.
func WithTransport(name string) Option {
	return func(o *Opts) { o.Transport = strings.ToLower(strings.TrimSpace(name)) }
}

// WithTelegramToken sets the Telegram bot token.
func WithTelegramToken(token string) Option {
	return func(o *Opts) { o.TelegramToken = token }
}

// WithWhatsAppOptions configures the whatsmeow transport.
func WithWhatsAppOptions(opts ...whatsapp.Option) Option {
	return func(o *Opts) { o.WhatsAppOpts = append(o.WhatsAppOpts, opts...) }
}

// WithTwilioOptions configures the Twilio transport.
func WithTwilioOptions(opts ...twiliowhatsapp.Option) Option {
	return func(o *Opts) { o.TwilioOpts = append(o.TwilioOpts, opts...) }
}

// WithTwilioWebhookURL enables signature validation of Twilio webhooks.
func WithTwilioWebhookURL(url string) Option {
	return func(o *Opts) { o.TwilioWebhookURL = url }
}

// WithMediaStore enables outbound media for the Twilio transport.
func WithMediaStore(cfg mediastore.Config) Option {
	return func(o *Opts) { o.Media = &cfg }
}

// WithKafka publishes domain events to the given brokers.
func WithKafka(brokers []string, topicPrefix string) Option {
	return func(o *Opts) {
		o.KafkaBrokers = brokers
		o.KafkaTopicPrefix = topicPrefix
	}
}

// Run starts the bot and blocks until ctx is cancelled or the server fails.
func Run(ctx context.Context, storeOpts []store.Option, genaiOpts []genai.Option, sessionOpts []session.Option, opts ...Option) error {
	cfg := Opts{Transport: TransportTelegram}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportTelegram
	}
	slog.Debug("Run options", "transport", cfg.Transport, "state_dir", cfg.StateDir, "addr", cfg.Addr,
		"kafka", len(cfg.KafkaBrokers) > 0, "media_store", cfg.Media != nil)

	if cfg.StateDir != "" {
		lock, err := lockfile.AcquireLock(cfg.StateDir, cfg.Transport)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	st, err := store.Open(ctx, storeOpts...)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			slog.Error("Run store close failed", "error", err)
		}
	}()

	publisher := newPublisher(cfg)
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Error("Run event publisher close failed", "error", err)
		}
	}()

	extractor, err := genai.NewClient(ctx, genaiOpts...)
	if err != nil {
		return fmt.Errorf("failed to create genai client: %w", err)
	}

	msg, twilio, err := newTransport(ctx, cfg)
	if err != nil {
		return err
	}

	d := diary.NewService(st, diary.WithPublisher(publisher))
	engine := flow.NewEngine(session.NewMemoryStore(sessionOpts...), d, extractor, msg)
	reports := report.NewReporter(d, extractor, msg)
	router := bot.NewRouter(msg, engine, reports)

	return serve(ctx, msg, router, NewServer(cfg.Addr, cfg.Transport, router, twilio))
}

// serve runs the transport, the router and the HTTP server, then shuts them
// down in order: no new inbound events, drain the per-user queues.
func serve(ctx context.Context, msg messaging.Service, router *bot.Router, srv *Server) error {
	if err := msg.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	router.Start(ctx)

	serveErr, err := srv.ListenAndServe()
	if err != nil {
		msg.Stop()
		return fmt.Errorf("failed to start API server: %w", err)
	}
	slog.Info("CalCounter running")

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("CalCounter shutting down", "reason", ctx.Err())
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("API server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if err := msg.Stop(); err != nil {
		slog.Error("Messaging service stop failed", "error", err)
	}
	router.Wait()
	return runErr
}

// newPublisher returns a Kafka publisher when brokers are configured.
func newPublisher(cfg Opts) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NopPublisher{}
	}
	slog.Info("Publishing domain events to Kafka", "brokers", cfg.KafkaBrokers, "topic_prefix", cfg.KafkaTopicPrefix)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix)
}

// ErrUnknownTransport is returned for an unsupported CHAT_TRANSPORT value.
var ErrUnknownTransport = errors.New("unknown chat transport")

// newTransport builds the selected chat transport. The Twilio service is also
// returned on its own since its webhook is mounted on the API server.
func newTransport(ctx context.Context, cfg Opts) (messaging.Service, *messaging.TwilioService, error) {
	switch cfg.Transport {
	case TransportTelegram:
		if cfg.TelegramToken == "" {
			return nil, nil, fmt.Errorf("telegram transport requires a bot token")
		}
		svc, err := messaging.NewTelegramService(cfg.TelegramToken)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create telegram service: %w", err)
		}
		return svc, nil, nil

	case TransportWhatsApp:
		client, err := whatsapp.NewClient(ctx, cfg.WhatsAppOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create whatsapp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), nil, nil

	case TransportTwilio:
		var twCfg twiliowhatsapp.Opts
		for _, opt := range cfg.TwilioOpts {
			opt(&twCfg)
		}
		client, err := twiliowhatsapp.NewClient(cfg.TwilioOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create twilio client: %w", err)
		}
		twOpts := []messaging.TwilioOption{messaging.WithMediaAuth(twCfg.AccountSID, twCfg.AuthToken)}
		if cfg.TwilioWebhookURL != "" {
			twOpts = append(twOpts, messaging.WithSignatureValidation(
				twiliowhatsapp.NewSignatureValidator(twCfg.AuthToken), cfg.TwilioWebhookURL))
		}
		if cfg.Media != nil {
			media, err := mediastore.New(*cfg.Media)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to create media store: %w", err)
			}
			twOpts = append(twOpts, messaging.WithMediaHost(media))
		}
		svc := messaging.NewTwilioService(client, twOpts...)
		return svc, svc, nil

	default:
		return nil, nil, fmt.Errorf("%w %q (expected %s, %s or %s)", ErrUnknownTransport,
			cfg.Transport, TransportTelegram, TransportWhatsApp, TransportTwilio)
	}
}
