package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/services"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

var hotelZone = time.FixedZone("CLT", -3*3600)

type recordingPublisher struct {
	mu     sync.Mutex
	events []services.ReservationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e services.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func book(t *testing.T, store *storage.MemoryStore, customerID, roomID uint, start time.Time, hours int, status string) *models.Reservation {
	t.Helper()
	ctx := context.Background()
	p, _, err := store.StartProcess(ctx, customerID, start)
	if err != nil {
		t.Fatalf("StartProcess: %v", err)
	}
	res := &models.Reservation{
		CustomerID: customerID,
		RoomID:     roomID,
		Date:       time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		StartAt:    start,
		EndAt:      start.Add(time.Duration(hours) * time.Hour),
		Status:     models.ReservationPending,
	}
	if err := store.BookProcess(ctx, p, res); err != nil {
		t.Fatalf("BookProcess: %v", err)
	}
	if status != models.ReservationPending {
		if _, err := store.UpdateReservation(ctx, res.ID, func(r *models.Reservation) error {
			r.Status = status
			return nil
		}); err != nil {
			t.Fatalf("UpdateReservation: %v", err)
		}
	}
	return res
}

func status(t *testing.T, store *storage.MemoryStore, id uint) string {
	t.Helper()
	r, err := store.GetReservation(context.Background(), id)
	if err != nil {
		t.Fatalf("GetReservation: %v", err)
	}
	return r.Status
}

func TestRunOnceCompletesExpiredCheckIns(t *testing.T) {
	store := storage.NewMemoryStore()
	clock := services.NewFixedClock(time.Date(2025, 12, 20, 13, 0, 0, 0, hotelZone))
	events := &recordingPublisher{}
	day := time.Date(2025, 12, 20, 10, 0, 0, 0, hotelZone)

	expired := book(t, store, 1, 1, day, 2, models.ReservationCheckedIn)
	running := book(t, store, 2, 2, day.Add(2*time.Hour), 3, models.ReservationCheckedIn)
	noArrival := book(t, store, 3, 3, day, 2, models.ReservationConfirmed)

	sweep := NewReservationSweep(store, clock, events, time.Minute)
	n, err := sweep.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 {
		t.Errorf("completed = %d, want 1", n)
	}
	if got := status(t, store, expired.ID); got != models.ReservationCompleted {
		t.Errorf("expired status = %q", got)
	}
	if got := status(t, store, running.ID); got != models.ReservationCheckedIn {
		t.Errorf("running status = %q", got)
	}
	if got := status(t, store, noArrival.ID); got != models.ReservationConfirmed {
		t.Errorf("confirmed status = %q", got)
	}
	if events.count() != 1 || events.events[0].Type != services.EventReservationCompleted {
		t.Errorf("events = %+v", events.events)
	}

	n, _ = sweep.RunOnce(context.Background())
	if n != 0 {
		t.Errorf("second run completed %d", n)
	}

	clock.Advance(3 * time.Hour)
	n, _ = sweep.RunOnce(context.Background())
	if n != 1 {
		t.Errorf("later run completed %d, want 1", n)
	}
}

func TestSweepLoop(t *testing.T) {
	store := storage.NewMemoryStore()
	clock := services.NewFixedClock(time.Date(2025, 12, 20, 13, 0, 0, 0, hotelZone))
	res := book(t, store, 1, 1, time.Date(2025, 12, 20, 10, 0, 0, 0, hotelZone), 2, models.ReservationCheckedIn)

	sweep := NewReservationSweep(store, clock, nil, 5*time.Millisecond)
	sweep.Start()
	sweep.Start()

	deadline := time.Now().Add(2 * time.Second)
	for status(t, store, res.ID) != models.ReservationCompleted {
		if time.Now().After(deadline) {
			t.Fatal("sweep loop never completed the reservation")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sweep.Stop()
	sweep.Stop()
}
