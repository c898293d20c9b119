package storage

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

// openTestDatabase connects to TEST_DATABASE_URL and starts from empty tables.
func openTestDatabase(t *testing.T) *DatabaseStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Migrator().DropTable(Migrate()...); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := db.AutoMigrate(Migrate()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewDatabaseStore(db)
}

func TestDatabaseBookingLifecycle(t *testing.T) {
	store := openTestDatabase(t)
	ctx := context.Background()
	start := time.Date(2025, 12, 25, 14, 0, 0, 0, time.UTC)

	room := &models.Room{Number: "101", HourlyPrice: 25000, Active: true, Available: true}
	if err := store.SaveRoom(ctx, room); err != nil {
		t.Fatalf("SaveRoom: %v", err)
	}

	first, created, err := store.StartProcess(ctx, 1, start)
	if err != nil || !created {
		t.Fatalf("StartProcess = %v, %v", created, err)
	}
	if err := store.BookProcess(ctx, first, bookingFor(room.ID, start, 2)); err != nil {
		t.Fatalf("BookProcess: %v", err)
	}

	second, _, _ := store.StartProcess(ctx, 2, start)
	if err := store.BookProcess(ctx, second, bookingFor(room.ID, start.Add(time.Hour), 2)); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("overlap = %v, want ErrSlotTaken", err)
	}

	if _, err := store.CancelActiveProcess(ctx, 2, start); err != nil {
		t.Fatalf("CancelActiveProcess: %v", err)
	}
	second.CurrentStep = models.StepRoom
	if err := store.SaveProcess(ctx, second); !errors.Is(err, ErrProcessClosed) {
		t.Errorf("SaveProcess on cancelled = %v, want ErrProcessClosed", err)
	}
}

func TestDatabaseGreetingIsExclusive(t *testing.T) {
	store := openTestDatabase(t)
	ctx := context.Background()

	a := &models.FaqEntry{Label: "Hello", Answer: "Hi", IsDefaultGreeting: true, Active: true}
	b := &models.FaqEntry{Label: "Welcome", Answer: "Welcome", Active: true}
	for _, f := range []*models.FaqEntry{a, b} {
		if err := store.SaveFaq(ctx, f); err != nil {
			t.Fatalf("SaveFaq: %v", err)
		}
	}
	if err := store.SetGreeting(ctx, b.ID); err != nil {
		t.Fatalf("SetGreeting: %v", err)
	}
	g, err := store.GreetingFaq(ctx)
	if err != nil || g.ID != b.ID {
		t.Fatalf("greeting = %+v, %v", g, err)
	}
}

func TestDatabaseUnknownQuestionLongText(t *testing.T) {
	store := openTestDatabase(t)
	ctx := context.Background()
	long := strings.Repeat("is there parking near the motel? ", 2000)

	created, err := store.RecordUnknownQuestion(ctx, 1, long, testNow)
	if err != nil || !created {
		t.Fatalf("first record = %v, %v", created, err)
	}
	created, err = store.RecordUnknownQuestion(ctx, 1, long, testNow)
	if err != nil || created {
		t.Errorf("duplicate record = %v, %v", created, err)
	}
	all, err := store.ListUnknownQuestions(ctx, true)
	if err != nil || len(all) != 1 || all[0].Text != long {
		t.Fatalf("stored = %d, %v", len(all), err)
	}
}
