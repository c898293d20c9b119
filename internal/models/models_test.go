package models

import (
	"strings"
	"testing"
	"time"
)

func TestChoiceCapsAndTruncates(t *testing.T) {
	p := Choice("pick one",
		Option{ID: "a", Label: "A label that is far too long for a button"},
		Option{ID: "b", Label: "B"},
		Option{ID: "c", Label: "C"},
		Option{ID: "d", Label: "D"},
	)

	if p.Type != PayloadChoice {
		t.Fatalf("type = %q, want %q", p.Type, PayloadChoice)
	}
	if len(p.Options) != MaxOptions {
		t.Fatalf("got %d options, want %d", len(p.Options), MaxOptions)
	}
	if got := len([]rune(p.Options[0].Label)); got != MaxLabelLength {
		t.Errorf("label length = %d, want %d", got, MaxLabelLength)
	}
	if p.Options[2].ID != "c" {
		t.Errorf("third option = %q, want c", p.Options[2].ID)
	}
}

func TestChoiceWithoutOptionsIsText(t *testing.T) {
	p := Choice("just text")
	if p.Type != PayloadText || len(p.Options) != 0 {
		t.Fatalf("got %+v, want text payload", p)
	}
}

func TestTruncateLabelCountsRunes(t *testing.T) {
	label := strings.Repeat("ñ", 25)
	got := TruncateLabel(label)
	if len([]rune(got)) != MaxLabelLength {
		t.Fatalf("got %d runes, want %d", len([]rune(got)), MaxLabelLength)
	}
	if TruncateLabel("📅 Book") != "📅 Book" {
		t.Error("short label changed")
	}
}

func TestReservationOverlapIsHalfOpen(t *testing.T) {
	base := time.Date(2025, 12, 25, 14, 0, 0, 0, time.UTC)
	r := Reservation{StartAt: base, EndAt: base.Add(2 * time.Hour), Status: ReservationPending}

	tests := []struct {
		name       string
		start, end time.Time
		want       bool
	}{
		{"same interval", base, base.Add(2 * time.Hour), true},
		{"ends at start", base.Add(-time.Hour), base, false},
		{"starts at end", base.Add(2 * time.Hour), base.Add(3 * time.Hour), false},
		{"inside", base.Add(30 * time.Minute), base.Add(time.Hour), true},
		{"covers", base.Add(-time.Hour), base.Add(3 * time.Hour), true},
		{"tail overlap", base.Add(time.Hour), base.Add(3 * time.Hour), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Overlaps(tt.start, tt.end); got != tt.want {
				t.Errorf("Overlaps = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReservationHolds(t *testing.T) {
	for _, status := range HoldingStatuses {
		r := Reservation{Status: status}
		if !r.Holds() {
			t.Errorf("%s should hold the room", status)
		}
	}
	for _, status := range []string{ReservationCompleted, ReservationCancelled, ReservationNoShow} {
		r := Reservation{Status: status}
		if r.Holds() {
			t.Errorf("%s should not hold the room", status)
		}
	}
}

func TestRoomPriceInheritsFromType(t *testing.T) {
	rt := &RoomType{Name: "Suite", HourlyPrice: 35000, Keywords: "suite, jacuzzi"}
	room := Room{Number: "201", RoomType: rt, Keywords: "Romantic"}

	if room.Price() != 35000 {
		t.Errorf("price = %v, want type price", room.Price())
	}
	room.HourlyPrice = 40000
	if room.Price() != 40000 {
		t.Errorf("price = %v, want own price", room.Price())
	}
	if room.DisplayName() != "Room 201" {
		t.Errorf("display name = %q", room.DisplayName())
	}
	tags := room.KeywordList()
	if len(tags) != 3 || tags[0] != "romantic" || tags[2] != "jacuzzi" {
		t.Errorf("tags = %v", tags)
	}
}

func TestProcessSlotsScan(t *testing.T) {
	in := ProcessSlots{Date: "2025-12-25", StartTime: "14:30", DurationHours: 2, EndTime: "16:30", RoomID: 3, TotalPrice: 50000}
	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var out ProcessSlots
	if err := out.Scan([]byte(v.(string))); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if out != in {
		t.Errorf("got %+v, want %+v", out, in)
	}

	if err := out.Scan(nil); err != nil || out != (ProcessSlots{}) {
		t.Errorf("Scan(nil) = %+v, %v", out, err)
	}
	if err := out.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestProcessCancel(t *testing.T) {
	now := time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC)
	p := ReservationProcess{CurrentStep: StepRoom}
	if !p.Active() {
		t.Fatal("new process should be active")
	}
	p.Cancel(now)
	if p.Active() || p.CurrentStep != StepCancelled || p.FinishedAt == nil || !p.FinishedAt.Equal(now) {
		t.Errorf("cancelled process = %+v", p)
	}
}

func TestFaqKeywordList(t *testing.T) {
	f := FaqEntry{Keywords: " Price, cost ,, How Much "}
	got := f.KeywordList()
	want := []string{"price", "cost", "how much"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keyword %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestQuestionHash(t *testing.T) {
	long := strings.Repeat("x", 50_000)
	h := QuestionHash(long)
	if len(h) != 64 {
		t.Fatalf("hash length = %d, want 64", len(h))
	}
	if QuestionHash(long) != h {
		t.Error("hash not stable")
	}
	if QuestionHash(long+"y") == h || QuestionHash("") == h {
		t.Error("distinct texts share a hash")
	}
}
