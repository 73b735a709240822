package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/CalCounter/internal/api"
	"github.com/BTreeMap/CalCounter/internal/genai"
	"github.com/BTreeMap/CalCounter/internal/mediastore"
	"github.com/BTreeMap/CalCounter/internal/session"
	"github.com/BTreeMap/CalCounter/internal/store"
	"github.com/BTreeMap/CalCounter/internal/twiliowhatsapp"
	"github.com/BTreeMap/CalCounter/internal/util"
	"github.com/BTreeMap/CalCounter/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CalCounter state data
	DefaultStateDir = "/var/lib/calcounter"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "calcounter.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow device database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultKafkaTopicPrefix prefixes every domain event topic
	DefaultKafkaTopicPrefix = "calcounter"
)

func main() {
	// .env is loaded first so LOG_LEVEL can come from it
	loadDotEnv()
	initializeLogger(os.Getenv("LOG_LEVEL"))

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)
	applyFlags(&config, flags)

	if err := ensureDirectoriesExist(config); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	storeOpts := buildStoreOptions(config)
	genaiOpts := buildGenAIOptions(config)
	sessionOpts := buildSessionOptions(config)
	apiOpts := buildAPIOptions(config, flags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping CalCounter with configured modules", "transport", config.Transport)
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "session", len(sessionOpts), "api", len(apiOpts))
	if err := api.Run(ctx, storeOpts, genaiOpts, sessionOpts, apiOpts...); err != nil {
		slog.Error("CalCounter failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CalCounter exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir  string
	Transport string
	APIAddr   string

	DatabaseDSN string
	WhatsAppDSN string

	TelegramToken    string
	TwilioSID        string
	TwilioToken      string
	TwilioFrom       string
	TwilioWebhookURL string

	GenAIProvider string
	GeminiKey     string
	OpenAIKey     string
	GenAIModel    string
	GenAITimeout  time.Duration

	SessionTTL time.Duration

	KafkaBrokers     []string
	KafkaTopicPrefix string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	transport     *string
	dbDSN         *string
	apiAddr       *string
	genaiProvider *string
	genaiModel    *string
}

// initializeLogger sets up structured logging; debug unless LOG_LEVEL says otherwise
func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
	slog.SetDefault(logger)
}

func parseLogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return slog.LevelDebug
	}
	return l
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}
}

// loadEnvironmentConfig loads configuration from environment variables
func loadEnvironmentConfig() Config {
	config := Config{
		StateDir:  util.GetEnv("CALCOUNTER_STATE_DIR", DefaultStateDir),
		Transport: util.GetEnv("CHAT_TRANSPORT", api.TransportTelegram),
		APIAddr:   util.GetEnv("API_ADDR", api.DefaultAddr),

		DatabaseDSN: os.Getenv("DATABASE_URL"),
		WhatsAppDSN: os.Getenv("WHATSAPP_DB_DSN"),

		TelegramToken:    os.Getenv("TELEGRAM_BOT_TOKEN"),
		TwilioSID:        os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:      os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),
		TwilioWebhookURL: os.Getenv("TWILIO_WEBHOOK_URL"),

		GenAIProvider: util.GetEnv("GENAI_PROVIDER", genai.ProviderGemini),
		GeminiKey:     os.Getenv("GEMINI_API_KEY"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		GenAIModel:    os.Getenv("GENAI_MODEL"),
		GenAITimeout:  util.ParseDurationEnv("GENAI_TIMEOUT", genai.DefaultTimeout),

		SessionTTL: util.ParseDurationEnv("SESSION_TTL", session.DefaultTTL),

		KafkaBrokers:     util.ParseListEnv("KAFKA_BROKERS"),
		KafkaTopicPrefix: util.GetEnv("KAFKA_TOPIC_PREFIX", DefaultKafkaTopicPrefix),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    util.GetEnv("MINIO_BUCKET", "calcounter-media"),
		MinioUseSSL:    util.ParseBoolEnv("MINIO_USE_SSL", false),
	}

	// MongoDB is selected by its own variable when DATABASE_URL is unset
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("MONGODB_URI")
	}
	config.defaultDSNs()

	slog.Debug("environment variables loaded",
		"CALCOUNTER_STATE_DIR", config.StateDir,
		"CHAT_TRANSPORT", config.Transport,
		"API_ADDR", config.APIAddr,
		"DATABASE_TYPE", store.DetectDSNType(config.DatabaseDSN),
		"TELEGRAM_BOT_TOKEN_SET", config.TelegramToken != "",
		"TWILIO_ACCOUNT_SID_SET", config.TwilioSID != "",
		"GENAI_PROVIDER", config.GenAIProvider,
		"GEMINI_API_KEY_SET", config.GeminiKey != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"SESSION_TTL", config.SessionTTL,
		"KAFKA_BROKERS", len(config.KafkaBrokers),
		"MINIO_ENDPOINT_SET", config.MinioEndpoint != "")

	return config
}

// defaultDSNs places the SQLite databases in the state directory when no DSN is given.
func (c *Config) defaultDSNs() {
	if c.DatabaseDSN == "" {
		c.DatabaseDSN = filepath.Join(c.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", c.DatabaseDSN)
	}
	if c.WhatsAppDSN == "" {
		c.WhatsAppDSN = "file:" + filepath.Join(c.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	}
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write the WhatsApp login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric WhatsApp login code instead of QR code"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for CalCounter data (overrides $CALCOUNTER_STATE_DIR)"),
		transport:     flag.String("transport", config.Transport, "chat transport: telegram, whatsapp or twilio (overrides $CHAT_TRANSPORT)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseDSN, "database DSN (overrides $DATABASE_URL or $MONGODB_URI)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "operations server address (overrides $API_ADDR)"),
		genaiProvider: flag.String("genai-provider", config.GenAIProvider, "nutrition model provider: gemini or openai (overrides $GENAI_PROVIDER)"),
		genaiModel:    flag.String("genai-model", config.GenAIModel, "model name (overrides $GENAI_MODEL)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"qrOutput", *flags.qrOutput,
		"numeric", *flags.numeric,
		"stateDir", *flags.stateDir,
		"transport", *flags.transport,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"genaiProvider", *flags.genaiProvider)

	return flags
}

// applyFlags copies flag values over the environment configuration. Default
// database paths follow an overridden state directory.
func applyFlags(config *Config, flags Flags) {
	defaultDB := filepath.Join(config.StateDir, DefaultDBFileName)
	defaultWA := "file:" + filepath.Join(config.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
	if *flags.stateDir != config.StateDir {
		config.StateDir = *flags.stateDir
		if config.WhatsAppDSN == defaultWA {
			config.WhatsAppDSN = ""
		}
		if *flags.dbDSN == defaultDB {
			*flags.dbDSN = ""
		}
	}
	config.DatabaseDSN = *flags.dbDSN
	config.Transport = *flags.transport
	config.APIAddr = *flags.apiAddr
	config.GenAIProvider = *flags.genaiProvider
	config.GenAIModel = *flags.genaiModel
	config.defaultDSNs()
}

// ensureDirectoriesExist creates the state directory and the directory of a file-based DSN
func ensureDirectoriesExist(config Config) error {
	dirs := []string{config.StateDir}
	if store.DetectDSNType(config.DatabaseDSN) == store.DSNTypeSQLite {
		dirs = append(dirs, filepath.Dir(strings.TrimPrefix(config.DatabaseDSN, "file:")))
	}
	for _, dir := range dirs {
		slog.Debug("Creating state directory", "state_dir", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", dir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(config Config) []store.Option {
	switch store.DetectDSNType(config.DatabaseDSN) {
	case store.DSNTypePostgres:
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_set", true)
		return []store.Option{store.WithPostgresDSN(config.DatabaseDSN)}
	case store.DSNTypeMongo:
		slog.Debug("Detected MongoDB URI, configuring MongoDB store", "dsn_set", true)
		return []store.Option{store.WithMongoURI(config.DatabaseDSN)}
	default:
		slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", config.DatabaseDSN)
		return []store.Option{store.WithSQLiteDSN(config.DatabaseDSN)}
	}
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(config Config) []genai.Option {
	key := config.GeminiKey
	if strings.EqualFold(config.GenAIProvider, genai.ProviderOpenAI) {
		key = config.OpenAIKey
	}
	opts := []genai.Option{
		genai.WithProvider(config.GenAIProvider),
		genai.WithTimeout(config.GenAITimeout),
	}
	if key != "" {
		opts = append(opts, genai.WithAPIKey(key))
	}
	if config.GenAIModel != "" {
		opts = append(opts, genai.WithModel(config.GenAIModel))
	}
	return opts
}

// buildSessionOptions constructs conversation session options
func buildSessionOptions(config Config) []session.Option {
	return []session.Option{session.WithTTL(config.SessionTTL)}
}

// buildAPIOptions constructs the bootstrap options, including the transport ones
func buildAPIOptions(config Config, flags Flags) []api.Option {
	opts := []api.Option{
		api.WithAddr(config.APIAddr),
		api.WithStateDir(config.StateDir),
		api.WithTransport(config.Transport),
		api.WithTelegramToken(config.TelegramToken),
	}

	waOpts := []whatsapp.Option{whatsapp.WithDBDSN(config.WhatsAppDSN)}
	if *flags.qrOutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
	}
	if *flags.numeric {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	opts = append(opts, api.WithWhatsAppOptions(waOpts...))

	opts = append(opts, api.WithTwilioOptions(
		twiliowhatsapp.WithAccountSID(config.TwilioSID),
		twiliowhatsapp.WithAuthToken(config.TwilioToken),
		twiliowhatsapp.WithFromWhats(config.TwilioFrom),
	))
	if config.TwilioWebhookURL != "" {
		opts = append(opts, api.WithTwilioWebhookURL(config.TwilioWebhookURL))
	}

	if config.MinioEndpoint != "" {
		opts = append(opts, api.WithMediaStore(mediastore.Config{
			Endpoint:  config.MinioEndpoint,
			AccessKey: config.MinioAccessKey,
			SecretKey: config.MinioSecretKey,
			Bucket:    config.MinioBucket,
			UseSSL:    config.MinioUseSSL,
		}))
	}
	if len(config.KafkaBrokers) > 0 {
		opts = append(opts, api.WithKafka(config.KafkaBrokers, config.KafkaTopicPrefix))
	}
	return opts
}
