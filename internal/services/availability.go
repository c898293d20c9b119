package services

import (
	"context"
	"fmt"
	"time"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

// AvailabilityEngine answers whether rooms are free for an interval.
type AvailabilityEngine struct {
	store storage.Store
}

// NewAvailabilityEngine creates an engine backed by store.
func NewAvailabilityEngine(store storage.Store) *AvailabilityEngine {
	return &AvailabilityEngine{store: store}
}

// Conflicts reports whether any holding reservation overlaps [start, end).
func Conflicts(existing []models.Reservation, start, end time.Time) bool {
	for i := range existing {
		if existing[i].Holds() && existing[i].Overlaps(start, end) {
			return true
		}
	}
	return false
}

// IsAvailable reports whether room has no holding reservation on date
// overlapping [start, end).
func (a *AvailabilityEngine) IsAvailable(ctx context.Context, roomID uint, date, start, end time.Time) (bool, error) {
	existing, err := a.store.ListRoomReservations(ctx, roomID, date)
	if err != nil {
		return false, fmt.Errorf("reservations of room %d: %w", roomID, err)
	}
	return !Conflicts(existing, start, end), nil
}

// ListAvailable returns the bookable rooms free for the interval, in catalog order.
func (a *AvailabilityEngine) ListAvailable(ctx context.Context, date, start, end time.Time) ([]models.Room, error) {
	rooms, err := a.store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	var free []models.Room
	for _, room := range rooms {
		ok, err := a.IsAvailable(ctx, room.ID, date, start, end)
		if err != nil {
			return nil, err
		}
		if ok {
			free = append(free, room)
		}
	}
	return free, nil
}
