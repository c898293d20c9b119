package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every runtime setting of the service.
type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty   bool   `envconfig:"LOG_PRETTY" default:"false"`

	// Storage
	UseMemoryStore         bool   `envconfig:"USE_MEMORY_STORE" default:"false"`
	DatabaseURL            string `envconfig:"DATABASE_URL"`
	DBHost                 string `envconfig:"DB_HOST" default:"localhost"`
	DBPort                 int    `envconfig:"DB_PORT" default:"5432"`
	DBUser                 string `envconfig:"DB_USER" default:"postgres"`
	DBPass                 string `envconfig:"DB_PASS"`
	DBName                 string `envconfig:"DB_NAME" default:"chatbot"`
	InstanceConnectionName string `envconfig:"INSTANCE_CONNECTION_NAME"`
	SeedFile               string `envconfig:"SEED_FILE"`

	// Dialogue
	Timezone                string        `envconfig:"TIMEZONE" default:"America/Santiago"`
	StaffSecret             string        `envconfig:"STAFF_SECRET"`
	AdminKey                string        `envconfig:"ADMIN_KEY"`
	ConversationIdleTimeout time.Duration `envconfig:"CONVERSATION_IDLE_TIMEOUT" default:"12h"`
	SweepInterval           time.Duration `envconfig:"SWEEP_INTERVAL" default:"5m"`

	// WhatsApp transport
	WhatsAppProvider         string `envconfig:"WHATSAPP_PROVIDER" default:"log"`
	TwilioAccountSID         string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken          string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioWhatsAppFrom       string `envconfig:"TWILIO_WHATSAPP_FROM"`
	DisableWebhookValidation bool   `envconfig:"DISABLE_WEBHOOK_VALIDATION" default:"false"`
	PublicURL                string `envconfig:"PUBLIC_URL"`
	MetaAccessToken          string `envconfig:"META_ACCESS_TOKEN"`
	MetaPhoneNumberID        string `envconfig:"META_PHONE_NUMBER_ID"`
	MetaVerifyToken          string `envconfig:"META_VERIFY_TOKEN"`
	MetaAppSecret            string `envconfig:"META_APP_SECRET"`
	MetaGraphVersion         string `envconfig:"META_GRAPH_VERSION" default:"v21.0"`

	// Rephrasing
	GeminiAPIKey    string        `envconfig:"GEMINI_API_KEY"`
	GeminiModels    []string      `envconfig:"GEMINI_MODELS" default:"gemini-2.0-flash,gemini-1.5-flash,gemini-1.5-pro"`
	OpenAIAPIKey    string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `envconfig:"OPENAI_BASE_URL"`
	OpenAIModel     string        `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	RephraseTimeout time.Duration `envconfig:"REPHRASE_TIMEOUT" default:"8s"`

	// Coordination and events
	RedisURL      string `envconfig:"REDIS_URL"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	AMQPURL       string `envconfig:"AMQP_URL"`
	AMQPExchange  string `envconfig:"AMQP_EXCHANGE" default:"reservations"`
}

// Load reads .env files (when present) and then the process environment.
func Load() (*Config, error) {
	// Missing .env files are fine; the environment may already be populated.
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("environments/.env.development")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	cfg.WhatsAppProvider = strings.ToLower(strings.TrimSpace(cfg.WhatsAppProvider))
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}
	return &cfg, nil
}

// Location returns the hotel timezone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.InstanceConnectionName != "" {
		// Cloud Run with Cloud SQL: connect through the unix socket
		return fmt.Sprintf("host=/cloudsql/%s user=%s password=%s dbname=%s sslmode=disable",
			c.InstanceConnectionName, c.DBUser, c.DBPass, c.DBName)
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPass, c.DBName, c.DBPort)
}

// IsProduction reports whether the service runs in a deployed environment.
func (c *Config) IsProduction() bool {
	return c.InstanceConnectionName != "" || strings.EqualFold(c.Environment, "production")
}
