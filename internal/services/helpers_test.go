package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

const testSecret = "kabymur"

var (
	hotelZone = time.FixedZone("CLT", -3*3600)
	testNow   = time.Date(2025, 12, 20, 10, 0, 0, 0, hotelZone)
)

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ReservationEvent
}

func (p *recordingPublisher) Publish(_ context.Context, e ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// recordingSender keeps sent payloads and fails when err is set.
type recordingSender struct {
	mu   sync.Mutex
	sent []models.Payload
	err  error
}

func (s *recordingSender) Send(_ context.Context, _ string, p models.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, p)
	return nil
}

type testEnv struct {
	store   *storage.MemoryStore
	clock   *FixedClock
	events  *recordingPublisher
	flow    *ReservationFlow
	console *OperatorConsole
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	clock := NewFixedClock(testNow)
	events := &recordingPublisher{}
	availability := NewAvailabilityEngine(store)
	env := &testEnv{
		store:   store,
		clock:   clock,
		events:  events,
		flow:    NewReservationFlow(store, availability, clock, events),
		console: NewOperatorConsole(store, clock, events, testSecret),
	}
	env.seedRooms(t)
	return env
}

// seedRooms creates rooms 101 and 102 (Standard, 25000/h) and 201 (Suite, 35000/h).
func (e *testEnv) seedRooms(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	standard := &models.RoomType{Name: "Standard", HourlyPrice: 25000, Capacity: 2}
	suite := &models.RoomType{Name: "Suite", HourlyPrice: 35000, Capacity: 2, Keywords: "jacuzzi"}
	for _, rt := range []*models.RoomType{standard, suite} {
		if err := e.store.SaveRoomType(ctx, rt); err != nil {
			t.Fatalf("SaveRoomType: %v", err)
		}
	}
	rooms := []*models.Room{
		{Number: "101", RoomTypeID: standard.ID, Active: true, Available: true},
		{Number: "102", RoomTypeID: standard.ID, Active: true, Available: true},
		{Number: "201", RoomTypeID: suite.ID, Active: true, Available: true},
	}
	for _, r := range rooms {
		if err := e.store.SaveRoom(ctx, r); err != nil {
			t.Fatalf("SaveRoom: %v", err)
		}
	}
}

func (e *testEnv) customer(t *testing.T, identity string) *models.Customer {
	t.Helper()
	c, err := e.store.TouchCustomer(context.Background(), identity, models.ChannelWhatsApp, "", e.clock.Now())
	if err != nil {
		t.Fatalf("TouchCustomer: %v", err)
	}
	return c
}

// step feeds one message to the customer's active booking dialogue.
func (e *testEnv) step(t *testing.T, c *models.Customer, text string) models.Payload {
	t.Helper()
	ctx := context.Background()
	p, err := e.store.ActiveProcess(ctx, c.ID)
	if errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("no active process for %q", text)
	}
	if err != nil {
		t.Fatalf("ActiveProcess: %v", err)
	}
	payload, err := e.flow.Advance(ctx, c, p, text)
	if err != nil {
		t.Fatalf("Advance(%q): %v", text, err)
	}
	return payload
}

func (e *testEnv) currentStep(t *testing.T, c *models.Customer) string {
	t.Helper()
	p, err := e.store.ActiveProcess(context.Background(), c.ID)
	if err != nil {
		return ""
	}
	return p.CurrentStep
}

// walkToConfirmation books 25/12/2025 14:30 for 2 hours in room.
func (e *testEnv) walkToConfirmation(t *testing.T, c *models.Customer, room string) models.Payload {
	t.Helper()
	if _, err := e.flow.Start(context.Background(), c); err != nil {
		t.Fatalf("Start: %v", err)
	}
	e.step(t, c, "25/12/2025")
	e.step(t, c, "14:30")
	e.step(t, c, "duration_2")
	return e.step(t, c, room)
}

// seedReservation stores a booking directly, bypassing the dialogue.
func (e *testEnv) seedReservation(t *testing.T, customerID, roomID uint, start time.Time, hours int) *models.Reservation {
	t.Helper()
	ctx := context.Background()
	p, _, err := e.store.StartProcess(ctx, customerID, e.clock.Now())
	if err != nil {
		t.Fatalf("StartProcess: %v", err)
	}
	res := &models.Reservation{
		CustomerID: customerID,
		RoomID:     roomID,
		Date:       civilDay(start),
		StartAt:    start,
		EndAt:      start.Add(time.Duration(hours) * time.Hour),
		Persons:    models.DefaultPersons,
		TotalPrice: 50000,
		Status:     models.ReservationPending,
	}
	if err := e.store.BookProcess(ctx, p, res); err != nil {
		t.Fatalf("BookProcess: %v", err)
	}
	return res
}

// typedLabels returns the option lines a text-only channel shows, as a
// customer would retype them.
func typedLabels(p models.Payload) []string {
	lines := strings.Split(RenderPlain(p), "\n")
	var out []string
	for _, line := range lines[len(lines)-len(p.Options):] {
		out = append(out, strings.TrimPrefix(line, "• "))
	}
	return out
}

func optionIDs(p models.Payload) []string {
	var ids []string
	for _, o := range p.Options {
		ids = append(ids, o.ID)
	}
	return ids
}

func assertContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("expected %q to contain %q", got, want)
	}
}
