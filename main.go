package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/database"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/config"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/handlers"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/jobs"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/routes"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/seed"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/services"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogging(cfg)

	ctx := context.Background()

	// Initialize storage
	var store storage.Store
	if cfg.UseMemoryStore {
		log.Warn().Msg("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Info().Msg("📦 Connecting to PostgreSQL database...")
		db, err := database.Connect(cfg.DSN())
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		if err := database.Migrate(db); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
		store = storage.NewDatabaseStore(db)
		log.Info().Msg("✅ Using PostgreSQL database storage")
	}

	var reloadSeed handlers.SeedReloader
	if cfg.SeedFile != "" {
		reloadSeed = func(ctx context.Context) error {
			return seed.LoadAndApply(ctx, store, cfg.SeedFile)
		}
		if err := reloadSeed(ctx); err != nil {
			log.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("Failed to load seed catalog")
		}
	}

	clock := services.SystemClock{Location: cfg.Location()}

	// Per-customer serialization
	var locker services.Locker = services.NewKeyedMutex()
	if cfg.RedisURL != "" {
		redisLocker, err := services.NewRedisLocker(ctx, cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer redisLocker.Close()
		locker = redisLocker
		log.Info().Msg("🔒 Using Redis customer locks")
	}

	// Reservation events
	var events services.EventPublisher = services.NoopPublisher{}
	if cfg.AMQPURL != "" {
		publisher, err := services.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		defer publisher.Close()
		events = publisher
		log.Info().Str("exchange", cfg.AMQPExchange).Msg("📨 Publishing reservation events")
	}

	if cfg.StaffSecret == "" {
		log.Warn().Msg("⚠️  STAFF_SECRET not set, staff console disabled")
	}

	whatsappSender := newWhatsAppSender(cfg)
	rephraser := newRephraser(ctx, cfg)

	availability := services.NewAvailabilityEngine(store)
	orchestrator := services.NewOrchestrator(services.OrchestratorOptions{
		Store:        store,
		Flow:         services.NewReservationFlow(store, availability, clock, events),
		Console:      services.NewOperatorConsole(store, clock, events, cfg.StaffSecret),
		Resolver:     services.NewIntentResolver(store),
		Availability: availability,
		Rephraser:    rephraser,
		Locker:       locker,
		Clock:        clock,
		Senders: map[models.Channel]services.Sender{
			models.ChannelWhatsApp: whatsappSender,
			models.ChannelWeb:      services.ReplySender{},
		},
		IdleTimeout: cfg.ConversationIdleTimeout,
	})

	sweep := jobs.NewReservationSweep(store, clock, events, cfg.SweepInterval)
	sweep.Start()

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName:     "Motel Chatbot Backend v" + version,
		JSONEncoder: sonic.Marshal,
		JSONDecoder: sonic.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Error().Err(err).Str("path", c.Path()).Msg("❌ Request failed")
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Admin-Key",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, routes.Handlers{
		WhatsApp: handlers.NewWhatsAppHandler(orchestrator, cfg.MetaVerifyToken),
		Chat:     handlers.NewChatHandler(orchestrator, store, validator.New()),
		Admin:    handlers.NewAdminHandler(store, orchestrator, reloadSeed),
		Health:   handlers.NewHealthHandler(version, store),
	}, routes.Security{
		ValidateWebhooks: !cfg.DisableWebhookValidation,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		MetaAppSecret:    cfg.MetaAppSecret,
		PublicURL:        cfg.PublicURL,
		AdminKey:         cfg.AdminKey,
	})

	// Handle graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		log.Info().Msg("🛑 Gracefully shutting down...")
		sweep.Stop()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
	}()

	log.Info().
		Str("port", cfg.Port).
		Str("environment", cfg.Environment).
		Bool("memory_store", cfg.UseMemoryStore).
		Str("whatsapp", cfg.WhatsAppProvider).
		Str("timezone", cfg.Timezone).
		Msg("🚀 Motel Chatbot Backend starting")

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("Server stopped")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var base zerolog.Logger
	if cfg.LogPretty {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		base = zerolog.New(os.Stdout)
	}
	log.Logger = base.With().Timestamp().Str("service", "chatbot-ai-backend").Logger()
}

func newWhatsAppSender(cfg *config.Config) services.Sender {
	switch cfg.WhatsAppProvider {
	case "twilio":
		sender, err := services.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize Twilio sender")
		}
		log.Info().Msg("✅ WhatsApp via Twilio")
		return sender
	case "meta", "cloud":
		sender, err := services.NewCloudAPISender(cfg.MetaAccessToken, cfg.MetaPhoneNumberID, cfg.MetaGraphVersion)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize WhatsApp Cloud API sender")
		}
		log.Info().Msg("✅ WhatsApp via Cloud API")
		return sender
	default:
		log.Warn().Str("provider", cfg.WhatsAppProvider).Msg("⚠️  WhatsApp replies are only logged")
		return services.LogSender{}
	}
}

func newRephraser(ctx context.Context, cfg *config.Config) services.Rephraser {
	var chain []services.Rephraser
	if cfg.GeminiAPIKey != "" {
		gemini, err := services.NewGeminiRephraser(ctx, cfg.GeminiAPIKey, cfg.GeminiModels)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️  Gemini rephraser disabled")
		} else {
			chain = append(chain, gemini)
		}
	}
	if cfg.OpenAIAPIKey != "" {
		chain = append(chain, services.NewOpenAIRephraser(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel))
	}
	if len(chain) == 0 {
		log.Info().Msg("ℹ️  No AI provider configured, answers are sent verbatim")
		return services.StaticRephraser{}
	}
	return services.NewFallbackRephraser(cfg.RephraseTimeout, chain...)
}
