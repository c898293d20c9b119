package services

import (
	"context"
	"testing"
	"time"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

func TestConflicts(t *testing.T) {
	start := time.Date(2025, 12, 25, 14, 0, 0, 0, hotelZone)
	existing := []models.Reservation{
		{StartAt: start, EndAt: start.Add(2 * time.Hour), Status: models.ReservationConfirmed},
		{StartAt: start.Add(4 * time.Hour), EndAt: start.Add(6 * time.Hour), Status: models.ReservationCancelled},
	}

	tests := []struct {
		name     string
		from, to time.Duration
		wantBusy bool
	}{
		{"same slot", 0, 2 * time.Hour, true},
		{"back to back", 2 * time.Hour, 3 * time.Hour, false},
		{"ends at start", -time.Hour, 0, false},
		{"overlaps tail", time.Hour, 3 * time.Hour, true},
		{"cancelled slot is free", 4 * time.Hour, 5 * time.Hour, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Conflicts(existing, start.Add(tt.from), start.Add(tt.to)); got != tt.wantBusy {
				t.Errorf("Conflicts = %v, want %v", got, tt.wantBusy)
			}
		})
	}
}

func TestListAvailable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	engine := NewAvailabilityEngine(env.store)
	day := time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC)
	start := time.Date(2025, 12, 25, 14, 0, 0, 0, hotelZone)

	env.seedReservation(t, 50, 1, start, 2)
	other := env.seedReservation(t, 51, 3, start, 2)
	if _, err := env.store.UpdateReservation(ctx, other.ID, func(r *models.Reservation) error {
		r.Status = models.ReservationNoShow
		return nil
	}); err != nil {
		t.Fatalf("UpdateReservation: %v", err)
	}

	free, err := engine.ListAvailable(ctx, day, start.Add(time.Hour), start.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("ListAvailable: %v", err)
	}
	if len(free) != 2 || free[0].Number != "102" || free[1].Number != "201" {
		t.Errorf("free rooms = %+v", free)
	}

	ok, err := engine.IsAvailable(ctx, 1, day, start.Add(2*time.Hour), start.Add(4*time.Hour))
	if err != nil || !ok {
		t.Errorf("back to back = %v, %v", ok, err)
	}

	// another day never conflicts
	next := day.AddDate(0, 0, 1)
	ok, _ = engine.IsAvailable(ctx, 1, next, start.AddDate(0, 0, 1), start.AddDate(0, 0, 1).Add(2*time.Hour))
	if !ok {
		t.Error("room busy on the next day")
	}
}
