package storage

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

var testNow = time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)

func bookingFor(roomID uint, start time.Time, hours int) *models.Reservation {
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return &models.Reservation{
		RoomID:  roomID,
		Date:    day,
		StartAt: start,
		EndAt:   start.Add(time.Duration(hours) * time.Hour),
		Status:  models.ReservationPending,
	}
}

func TestTouchCustomerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.TouchCustomer(ctx, "+56911111111", models.ChannelWhatsApp, "Ana", testNow)
	if err != nil {
		t.Fatalf("TouchCustomer: %v", err)
	}
	second, err := store.TouchCustomer(ctx, "+56911111111", models.ChannelWhatsApp, "", testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("TouchCustomer: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("got two customers %d and %d", first.ID, second.ID)
	}
	if !second.LastInteractionAt.Equal(testNow.Add(time.Minute)) {
		t.Errorf("last interaction = %v", second.LastInteractionAt)
	}
	if second.Name != "Ana" {
		t.Errorf("name = %q, want Ana kept", second.Name)
	}
}

func TestOpenConversationIdleSupersession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	conv, _ := store.OpenConversation(ctx, 1, testNow, time.Hour)
	again, _ := store.OpenConversation(ctx, 1, testNow.Add(30*time.Minute), time.Hour)
	if again.ID != conv.ID {
		t.Fatalf("conversation reopened within idle window")
	}

	fresh, _ := store.OpenConversation(ctx, 1, testNow.Add(2*time.Hour), time.Hour)
	if fresh.ID == conv.ID {
		t.Fatal("idle conversation was not superseded")
	}

	if err := store.CloseConversations(ctx, 1, testNow.Add(3*time.Hour)); err != nil {
		t.Fatalf("CloseConversations: %v", err)
	}
	next, _ := store.OpenConversation(ctx, 1, testNow.Add(3*time.Hour), time.Hour)
	if next.ID == fresh.ID {
		t.Fatal("closed conversation was reused")
	}
}

func TestMessagesKeepOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	conv, _ := store.OpenConversation(ctx, 1, testNow, 0)

	for i, role := range []string{models.RoleCustomer, models.RoleAgent, models.RoleCustomer} {
		msg := &models.Message{ConversationID: conv.ID, Role: role, Body: string(rune('a' + i)), CreatedAt: testNow}
		if err := store.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	n, _ := store.CountMessages(ctx, conv.ID, models.RoleCustomer)
	if n != 2 {
		t.Errorf("customer messages = %d, want 2", n)
	}
	recent, _ := store.RecentMessages(ctx, conv.ID, 2)
	if len(recent) != 2 || recent[0].Body != "b" || recent[1].Body != "c" {
		t.Errorf("recent = %+v", recent)
	}
	if err := store.AppendMessage(ctx, &models.Message{ConversationID: 99}); !errors.Is(err, ErrNotFound) {
		t.Errorf("append to missing conversation: %v", err)
	}
}

func TestGreetingIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	hello := &models.FaqEntry{Label: "Hello", Answer: "Hi", IsDefaultGreeting: true, Active: true}
	welcome := &models.FaqEntry{Label: "Welcome", Answer: "Welcome", Active: true}
	for _, f := range []*models.FaqEntry{hello, welcome} {
		if err := store.SaveFaq(ctx, f); err != nil {
			t.Fatalf("SaveFaq: %v", err)
		}
	}

	if err := store.SetGreeting(ctx, welcome.ID); err != nil {
		t.Fatalf("SetGreeting: %v", err)
	}
	greeting, err := store.GreetingFaq(ctx)
	if err != nil || greeting.ID != welcome.ID {
		t.Fatalf("greeting = %+v, %v", greeting, err)
	}
	old, _ := store.GetFaq(ctx, hello.ID)
	if old.IsDefaultGreeting {
		t.Error("previous greeting still flagged")
	}

	if err := store.SetGreeting(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetGreeting(999) = %v", err)
	}
}

func TestSaveFaqUpsertsByLabel(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := &models.FaqEntry{Label: "Prices", Answer: "old", Active: true}
	_ = store.SaveFaq(ctx, first)
	second := &models.FaqEntry{Label: "prices", Answer: "new", Active: true}
	if err := store.SaveFaq(ctx, second); err != nil {
		t.Fatalf("SaveFaq: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("label upsert created a new entry")
	}
	faqs, _ := store.ListFaqs(ctx)
	if len(faqs) != 1 || faqs[0].Answer != "new" {
		t.Errorf("faqs = %+v", faqs)
	}

	other := &models.FaqEntry{Label: "Parking", Answer: "yes", Active: true}
	_ = store.SaveFaq(ctx, other)
	other.Label = "Prices"
	if err := store.SaveFaq(ctx, other); !errors.Is(err, ErrDuplicate) {
		t.Errorf("renaming onto a taken label = %v, want ErrDuplicate", err)
	}
}

func TestRecordUnknownQuestionDedupes(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	created, _ := store.RecordUnknownQuestion(ctx, 1, "do you have a pool?", testNow)
	if !created {
		t.Fatal("first record not created")
	}
	created, _ = store.RecordUnknownQuestion(ctx, 1, "do you have a pool?", testNow)
	if created {
		t.Error("duplicate question recorded twice")
	}
	created, _ = store.RecordUnknownQuestion(ctx, 2, "do you have a pool?", testNow)
	if !created {
		t.Error("same question from another customer not recorded")
	}

	pending, _ := store.ListUnknownQuestions(ctx, false)
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	_ = store.MarkUnknownQuestionReviewed(ctx, pending[0].ID)
	pending, _ = store.ListUnknownQuestions(ctx, false)
	all, _ := store.ListUnknownQuestions(ctx, true)
	if len(pending) != 1 || len(all) != 2 {
		t.Errorf("pending = %d, all = %d", len(pending), len(all))
	}
}

func TestRecordUnknownQuestionLongText(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	long := strings.Repeat("a", 100_000)

	created, _ := store.RecordUnknownQuestion(ctx, 1, long, testNow)
	if !created {
		t.Fatal("long question not recorded")
	}
	created, _ = store.RecordUnknownQuestion(ctx, 1, long, testNow)
	if created {
		t.Error("long duplicate recorded twice")
	}
	created, _ = store.RecordUnknownQuestion(ctx, 1, long+"b", testNow)
	if !created {
		t.Error("distinct long question not recorded")
	}
	all, _ := store.ListUnknownQuestions(ctx, true)
	if len(all) != 2 || all[0].TextHash == all[1].TextHash {
		t.Fatalf("stored %d questions", len(all))
	}
}

func TestListRoomsSkipsUnavailable(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	suite := &models.RoomType{Name: "Suite", HourlyPrice: 35000}
	_ = store.SaveRoomType(ctx, suite)
	_ = store.SaveRoom(ctx, &models.Room{Number: "201", RoomTypeID: suite.ID, Active: true, Available: true})
	_ = store.SaveRoom(ctx, &models.Room{Number: "202", RoomTypeID: suite.ID, Active: true, Available: false})
	_ = store.SaveRoom(ctx, &models.Room{Number: "203", RoomTypeID: suite.ID, Active: false, Available: true})

	rooms, err := store.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].Number != "201" {
		t.Fatalf("rooms = %+v", rooms)
	}
	if rooms[0].RoomType == nil || rooms[0].Price() != 35000 {
		t.Errorf("room type not attached: %+v", rooms[0])
	}
}

func TestStartProcessReturnsExisting(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p, created, err := store.StartProcess(ctx, 7, testNow)
	if err != nil || !created {
		t.Fatalf("StartProcess = %v, %v", created, err)
	}
	again, created, _ := store.StartProcess(ctx, 7, testNow.Add(time.Minute))
	if created || again.ID != p.ID {
		t.Fatalf("second start created=%v id=%d, want existing %d", created, again.ID, p.ID)
	}

	cancelled, _ := store.CancelActiveProcess(ctx, 7, testNow)
	if !cancelled {
		t.Fatal("CancelActiveProcess reported nothing to cancel")
	}
	if _, err := store.ActiveProcess(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("ActiveProcess after cancel = %v", err)
	}
	cancelled, _ = store.CancelActiveProcess(ctx, 7, testNow)
	if cancelled {
		t.Error("cancel without active process reported true")
	}
}

func TestSaveProcessRejectsClosed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p, _, _ := store.StartProcess(ctx, 7, testNow)
	stale := *p
	_, _ = store.CancelActiveProcess(ctx, 7, testNow)

	stale.CurrentStep = models.StepDate
	if err := store.SaveProcess(ctx, &stale); !errors.Is(err, ErrProcessClosed) {
		t.Fatalf("SaveProcess on cancelled = %v, want ErrProcessClosed", err)
	}
	for _, proc := range store.ProcessesFor(7) {
		if proc.Active() {
			t.Errorf("process %d resurrected", proc.ID)
		}
	}
}

func TestBookProcessRejectsOverlap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	start := time.Date(2025, 12, 25, 14, 0, 0, 0, time.UTC)

	first, _, _ := store.StartProcess(ctx, 1, testNow)
	if err := store.BookProcess(ctx, first, bookingFor(3, start, 2)); err != nil {
		t.Fatalf("BookProcess: %v", err)
	}
	if !first.Completed || first.ReservationID == nil {
		t.Fatalf("process not finalized: %+v", first)
	}

	second, _, _ := store.StartProcess(ctx, 2, testNow)
	if err := store.BookProcess(ctx, second, bookingFor(3, start.Add(time.Hour), 2)); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("overlapping booking = %v, want ErrSlotTaken", err)
	}
	if _, err := store.ActiveProcess(ctx, 2); err != nil {
		t.Errorf("losing process should stay active: %v", err)
	}

	// back to back is fine
	if err := store.BookProcess(ctx, second, bookingFor(3, start.Add(2*time.Hour), 1)); err != nil {
		t.Errorf("adjacent booking = %v", err)
	}
	if err := store.BookProcess(ctx, first, bookingFor(4, start, 1)); !errors.Is(err, ErrProcessClosed) {
		t.Errorf("booking a completed process = %v, want ErrProcessClosed", err)
	}
}

func TestBookProcessConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	start := time.Date(2025, 12, 25, 14, 0, 0, 0, time.UTC)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		p, _, _ := store.StartProcess(ctx, uint(i+1), testNow)
		wg.Add(1)
		go func(i int, p *models.ReservationProcess) {
			defer wg.Done()
			errs[i] = store.BookProcess(ctx, p, bookingFor(3, start, 2))
		}(i, p)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, ErrSlotTaken):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d bookings succeeded, want 1", ok)
	}
	held, _ := store.ListRoomReservations(ctx, 3, start)
	if len(held) != 1 {
		t.Errorf("room holds %d reservations", len(held))
	}
}

func TestUpdateReservationErrorLeavesRecord(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	p, _, _ := store.StartProcess(ctx, 1, testNow)
	res := bookingFor(3, time.Date(2025, 12, 25, 14, 0, 0, 0, time.UTC), 2)
	_ = store.BookProcess(ctx, p, res)

	denied := errors.New("denied")
	_, err := store.UpdateReservation(ctx, res.ID, func(r *models.Reservation) error {
		r.Status = models.ReservationCancelled
		return denied
	})
	if !errors.Is(err, denied) {
		t.Fatalf("UpdateReservation = %v", err)
	}
	got, _ := store.GetReservation(ctx, res.ID)
	if got.Status != models.ReservationPending {
		t.Errorf("status = %q, want pending", got.Status)
	}

	updated, err := store.UpdateReservation(ctx, res.ID, func(r *models.Reservation) error {
		r.Status = models.ReservationConfirmed
		return nil
	})
	if err != nil || updated.Status != models.ReservationConfirmed {
		t.Fatalf("update = %+v, %v", updated, err)
	}
	if _, err := store.UpdateReservation(ctx, 404, func(*models.Reservation) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing reservation = %v", err)
	}
}

func TestListReservationsFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	day := time.Date(2025, 12, 25, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		p, _, _ := store.StartProcess(ctx, uint(i+1), testNow)
		_ = store.BookProcess(ctx, p, bookingFor(uint(i+1), day.Add(time.Duration(i)*3*time.Hour), 2))
	}
	_, _ = store.UpdateReservation(ctx, 2, func(r *models.Reservation) error {
		r.Status = models.ReservationCheckedIn
		return nil
	})

	checkedIn, _ := store.ListReservations(ctx, ReservationFilter{Statuses: []string{models.ReservationCheckedIn}})
	if len(checkedIn) != 1 || checkedIn[0].ID != 2 {
		t.Errorf("checked in = %+v", checkedIn)
	}
	ended, _ := store.ListReservations(ctx, ReservationFilter{EndedBy: day.Add(5 * time.Hour)})
	if len(ended) != 2 {
		t.Errorf("ended by 15:00 = %d, want 2", len(ended))
	}
	limited, _ := store.ListReservations(ctx, ReservationFilter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != 1 {
		t.Errorf("limited = %+v", limited)
	}
}

func TestStaffSessions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.GetStaffSession(ctx, "+56900000001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing session = %v", err)
	}
	_ = store.SetStaffSession(ctx, "+56900000001", true, testNow)
	s, _ := store.GetStaffSession(ctx, "+56900000001")
	if !s.Active || s.EndedAt != nil {
		t.Fatalf("session = %+v", s)
	}
	_ = store.SetStaffSession(ctx, "+56900000001", false, testNow.Add(time.Hour))
	s, _ = store.GetStaffSession(ctx, "+56900000001")
	if s.Active || s.EndedAt == nil {
		t.Errorf("session not closed: %+v", s)
	}
}
