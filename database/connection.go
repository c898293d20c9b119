package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

// Connect opens the PostgreSQL connection pool.
func Connect(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("pool handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Info().Msg("✅ Database connected successfully!")
	return db, nil
}

// Migrate creates or updates every table the store needs.
func Migrate(db *gorm.DB) error {
	log.Info().Msg("🔄 Running database migrations...")
	if err := db.AutoMigrate(storage.Migrate()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	log.Info().Msg("✅ Database migrations completed!")
	return nil
}
