package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

const (
	maxRoomOptions = 3
	displayDate    = "02/01/2006"
)

var durationChoices = []int{2, 3, 4}

// ReservationFlow walks a customer through date, start time, duration, room
// and confirmation. The persisted process is the only source of truth for
// where the customer is.
type ReservationFlow struct {
	store        storage.Store
	availability *AvailabilityEngine
	clock        Clock
	events       EventPublisher
}

// NewReservationFlow wires the booking state machine.
func NewReservationFlow(store storage.Store, availability *AvailabilityEngine, clock Clock, events EventPublisher) *ReservationFlow {
	if events == nil {
		events = NoopPublisher{}
	}
	return &ReservationFlow{store: store, availability: availability, clock: clock, events: events}
}

// Start opens a booking dialogue. An active one is resumed unchanged.
func (f *ReservationFlow) Start(ctx context.Context, customer *models.Customer) (models.Payload, error) {
	p, created, err := f.store.StartProcess(ctx, customer.ID, f.clock.Now())
	if err != nil {
		return models.Payload{}, fmt.Errorf("start process: %w", err)
	}
	if created {
		return f.Advance(ctx, customer, p, "")
	}

	prompt, err := f.promptFor(ctx, p)
	if err != nil {
		return models.Payload{}, err
	}
	return models.Choice(joinParagraphs(msgAlreadyBooking, prompt.Body), prompt.Options...), nil
}

// Advance applies one customer turn to the active process.
func (f *ReservationFlow) Advance(ctx context.Context, customer *models.Customer, p *models.ReservationProcess, text string) (models.Payload, error) {
	if ParseQuickReply(text).Kind == QuickReplyCancel {
		return f.cancel(ctx, p)
	}

	var (
		payload models.Payload
		err     error
	)
	switch p.CurrentStep {
	case models.StepStart:
		payload, err = f.begin(ctx, p)
	case models.StepDate:
		payload, err = f.onDate(ctx, p, text)
	case models.StepStartTime:
		payload, err = f.onStartTime(ctx, p, text)
	case models.StepDuration:
		payload, err = f.onDuration(ctx, p, text)
	case models.StepRoom:
		payload, err = f.onRoom(ctx, p, text)
	case models.StepConfirmation:
		payload, err = f.onConfirmation(ctx, customer, p, text)
	default:
		return models.Payload{}, fmt.Errorf("process %d in unexpected step %q", p.ID, p.CurrentStep)
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return f.reprompt(ctx, p, verr)
	}
	var cerr *ConflictError
	if errors.As(err, &cerr) {
		return f.onConflict(ctx, p)
	}
	if errors.Is(err, storage.ErrProcessClosed) {
		return models.Text(msgNoActiveBooking), nil
	}
	return payload, err
}

// Cancel force-cancels the customer's active process. It is idempotent.
func (f *ReservationFlow) Cancel(ctx context.Context, customerID uint) (bool, error) {
	return f.store.CancelActiveProcess(ctx, customerID, f.clock.Now())
}

func (f *ReservationFlow) begin(ctx context.Context, p *models.ReservationProcess) (models.Payload, error) {
	if err := f.save(ctx, p, models.StepDate); err != nil {
		return models.Payload{}, err
	}
	return models.Text(msgAskDate), nil
}

func (f *ReservationFlow) onDate(ctx context.Context, p *models.ReservationProcess, text string) (models.Payload, error) {
	now := f.clock.Now()
	day, ok := ParseDate(text, now)
	if !ok {
		return models.Payload{}, &ValidationError{Step: models.StepDate, Message: msgBadDate}
	}
	ahead := DaysAhead(day, now)
	if ahead < 0 {
		return models.Payload{}, &ValidationError{Step: models.StepDate, Message: msgPastDate}
	}
	if ahead > MaxAdvanceDays {
		last := civilDay(now).AddDate(0, 0, MaxAdvanceDays)
		return models.Payload{}, &ValidationError{
			Step:    models.StepDate,
			Message: fmt.Sprintf("⚠️ We take bookings up to %d days ahead. Please choose a date until %s.", MaxAdvanceDays, last.Format(displayDate)),
		}
	}

	p.Slots = models.ProcessSlots{Date: day.Format(storage.DateLayout)}
	if err := f.save(ctx, p, models.StepStartTime); err != nil {
		return models.Payload{}, err
	}
	return models.Text(joinParagraphs("✅ Date: "+day.Format(displayDate), msgAskStart)), nil
}

func (f *ReservationFlow) onStartTime(ctx context.Context, p *models.ReservationProcess, text string) (models.Payload, error) {
	minutes, ok := ParseClock(text)
	if !ok {
		return models.Payload{}, &ValidationError{Step: models.StepStartTime, Message: msgBadStart}
	}
	if minutes < OpeningMinute || minutes > ClosingMinute {
		return models.Payload{}, &ValidationError{Step: models.StepStartTime, Message: msgOutsideHours}
	}
	now := f.clock.Now()
	day, err := time.Parse(storage.DateLayout, p.Slots.Date)
	if err != nil {
		return models.Payload{}, fmt.Errorf("process %d has bad date slot: %w", p.ID, err)
	}
	if DaysAhead(day, now) == 0 && minutes <= now.Hour()*60+now.Minute() {
		return models.Payload{}, &ValidationError{Step: models.StepStartTime, Message: msgPastStart}
	}
	if !FitsBeforeClosing(minutes, MinHours) {
		return models.Payload{}, &ValidationError{
			Step:    models.StepStartTime,
			Message: fmt.Sprintf("⚠️ Starting at %s there is not enough time before closing (23:59). The latest check-in is %s.",
				FormatClock(minutes), FormatClock(ClosingMinute-60)),
		}
	}

	p.Slots = models.ProcessSlots{Date: p.Slots.Date, StartTime: FormatClock(minutes)}
	if err := f.save(ctx, p, models.StepDuration); err != nil {
		return models.Payload{}, err
	}
	prompt := f.durationPrompt(minutes)
	return models.Choice(joinParagraphs("✅ Check-in: "+p.Slots.StartTime, prompt.Body), prompt.Options...), nil
}

func (f *ReservationFlow) onDuration(ctx context.Context, p *models.ReservationProcess, text string) (models.Payload, error) {
	qr := ParseQuickReply(text)
	hours, ok := qr.Hours, qr.Kind == QuickReplyDuration
	if !ok {
		hours, ok = ParseHours(text)
	}
	if !ok || hours < MinHours || hours > MaxHours {
		return models.Payload{}, &ValidationError{Step: models.StepDuration, Message: msgBadHours}
	}
	start, err := ClockMinutes(p.Slots.StartTime)
	if err != nil {
		return models.Payload{}, fmt.Errorf("process %d has bad start slot: %w", p.ID, err)
	}
	if !FitsBeforeClosing(start, hours) {
		return models.Payload{}, &ValidationError{
			Step:    models.StepDuration,
			Message: fmt.Sprintf("⚠️ %d hours from %s would end after closing time (23:59). The longest stay from that time is %d hours.",
				hours, p.Slots.StartTime, (ClosingMinute-start)/60),
		}
	}

	p.Slots.DurationHours = hours
	p.Slots.EndTime = FormatClock(start + hours*60)
	p.Slots.RoomID = 0
	p.Slots.TotalPrice = 0

	rooms, err := f.availableRooms(ctx, p)
	if err != nil {
		return models.Payload{}, err
	}
	if len(rooms) == 0 {
		if err := f.save(ctx, p, models.StepDuration); err != nil {
			return models.Payload{}, err
		}
		body := fmt.Sprintf("😔 Sorry, no rooms are available on %s from %s to %s. Try another number of hours, or type 'cancel' to choose another date.",
			f.slotDate(p), p.Slots.StartTime, p.Slots.EndTime)
		return models.Choice(body, f.durationPrompt(start).Options...), nil
	}

	if err := f.save(ctx, p, models.StepRoom); err != nil {
		return models.Payload{}, err
	}
	return roomPayload(rooms, msgPickRoom), nil
}

func (f *ReservationFlow) onRoom(ctx context.Context, p *models.ReservationProcess, text string) (models.Payload, error) {
	rooms, err := f.availableRooms(ctx, p)
	if err != nil {
		return models.Payload{}, err
	}

	qr := ParseQuickReply(text)
	var chosen *models.Room
	if qr.Kind == QuickReplyRoom {
		for i := range rooms {
			if rooms[i].ID == qr.ID {
				chosen = &rooms[i]
				break
			}
		}
		if chosen == nil {
			return models.Payload{}, &ConflictError{RoomID: qr.ID}
		}
	} else {
		chosen = matchRoom(rooms, text)
	}
	if chosen == nil {
		return models.Payload{}, &ValidationError{Step: models.StepRoom, Message: msgBadRoom}
	}

	p.Slots.RoomID = chosen.ID
	p.Slots.TotalPrice = chosen.Price() * float64(p.Slots.DurationHours)
	if err := f.save(ctx, p, models.StepConfirmation); err != nil {
		return models.Payload{}, err
	}
	return f.summary(p, chosen), nil
}

func (f *ReservationFlow) onConfirmation(ctx context.Context, customer *models.Customer, p *models.ReservationProcess, text string) (models.Payload, error) {
	switch confirmAnswer(text) {
	case QuickReplyConfirmNo:
		return f.cancel(ctx, p)
	case QuickReplyConfirmYes:
	default:
		return models.Payload{}, &ValidationError{Step: models.StepConfirmation, Message: msgBadConfirm}
	}

	day, start, end, err := f.slotBounds(p)
	if err != nil {
		return models.Payload{}, err
	}
	now := f.clock.Now()
	res := &models.Reservation{
		CustomerID: customer.ID,
		RoomID:     p.Slots.RoomID,
		Date:       day,
		StartAt:    start,
		EndAt:      end,
		Persons:    models.DefaultPersons,
		TotalPrice: p.Slots.TotalPrice,
		Status:     models.ReservationPending,
		Channel:    customer.Channel,
	}
	p.UpdatedAt = now
	switch err := f.store.BookProcess(ctx, p, res); {
	case errors.Is(err, storage.ErrSlotTaken):
		return models.Payload{}, &ConflictError{RoomID: res.RoomID}
	case errors.Is(err, storage.ErrProcessClosed):
		return models.Text(msgNoActiveBooking), nil
	case err != nil:
		return models.Payload{}, fmt.Errorf("book process %d: %w", p.ID, err)
	}
	PublishEvent(ctx, f.events, EventReservationCreated, res, now)

	name := fmt.Sprintf("Room #%d", res.RoomID)
	if room, err := f.store.GetRoom(ctx, res.RoomID); err == nil {
		name = room.DisplayName()
	}
	body := fmt.Sprintf("🎉 Booking confirmed! Reservation number: #%d\n\n📅 %s\n🕐 %s - %s\n🏨 %s\n💰 Total: %s\n\n"+
		"Your reservation is pending; our staff will confirm it shortly. See you soon!",
		res.ID, day.Format(displayDate), p.Slots.StartTime, p.Slots.EndTime, name, FormatPrice(res.TotalPrice))
	return models.Text(body), nil
}

// onConflict sends the customer back to room selection with a fresh list.
func (f *ReservationFlow) onConflict(ctx context.Context, p *models.ReservationProcess) (models.Payload, error) {
	p.Slots.RoomID = 0
	p.Slots.TotalPrice = 0
	rooms, err := f.availableRooms(ctx, p)
	if err != nil {
		return models.Payload{}, err
	}
	if len(rooms) == 0 {
		if err := f.save(ctx, p, models.StepDuration); err != nil {
			return models.Payload{}, err
		}
		start, _ := ClockMinutes(p.Slots.StartTime)
		body := msgRoomTaken + " No other rooms are free for that time. Try another number of hours, or type 'cancel' to choose another date."
		return models.Choice(body, f.durationPrompt(start).Options...), nil
	}
	if err := f.save(ctx, p, models.StepRoom); err != nil {
		return models.Payload{}, err
	}
	return roomPayload(rooms, msgRoomTaken+" These rooms are still free:"), nil
}

func (f *ReservationFlow) cancel(ctx context.Context, p *models.ReservationProcess) (models.Payload, error) {
	p.Cancel(f.clock.Now())
	if err := f.store.SaveProcess(ctx, p); err != nil {
		return models.Payload{}, fmt.Errorf("cancel process %d: %w", p.ID, err)
	}
	return models.Text(msgCancelled), nil
}

// reprompt answers a validation failure with guidance and the step's options.
func (f *ReservationFlow) reprompt(ctx context.Context, p *models.ReservationProcess, verr *ValidationError) (models.Payload, error) {
	prompt, err := f.promptFor(ctx, p)
	if err != nil {
		return models.Payload{}, err
	}
	return models.Choice(verr.Message, prompt.Options...), nil
}

// promptFor rebuilds the question of the current step.
func (f *ReservationFlow) promptFor(ctx context.Context, p *models.ReservationProcess) (models.Payload, error) {
	switch p.CurrentStep {
	case models.StepStart, models.StepDate:
		return models.Text(msgAskDate), nil
	case models.StepStartTime:
		return models.Text(msgAskStart), nil
	case models.StepDuration:
		start, err := ClockMinutes(p.Slots.StartTime)
		if err != nil {
			return models.Text(msgAskHours), nil
		}
		return f.durationPrompt(start), nil
	case models.StepRoom:
		rooms, err := f.availableRooms(ctx, p)
		if err != nil {
			return models.Payload{}, err
		}
		return roomPayload(rooms, msgPickRoom), nil
	case models.StepConfirmation:
		room, err := f.store.GetRoom(ctx, p.Slots.RoomID)
		if err != nil {
			return models.Payload{}, fmt.Errorf("room of process %d: %w", p.ID, err)
		}
		return f.summary(p, room), nil
	}
	return models.Text(msgAskDate), nil
}

func (f *ReservationFlow) durationPrompt(start int) models.Payload {
	var opts []models.Option
	for _, n := range durationChoices {
		if FitsBeforeClosing(start, n) {
			opts = append(opts, models.Option{ID: durationToken(n), Label: fmt.Sprintf("%d hours", n)})
		}
	}
	if len(opts) == 0 && FitsBeforeClosing(start, MinHours) {
		opts = append(opts, models.Option{ID: durationToken(MinHours), Label: "1 hour"})
	}
	return models.Choice(msgAskHours, opts...)
}

func (f *ReservationFlow) summary(p *models.ReservationProcess, room *models.Room) models.Payload {
	body := fmt.Sprintf("📋 Booking summary\n\n📅 Date: %s\n🕐 Time: %s - %s\n🏨 Room: %s\n⏱️ Duration: %d hours\n💰 Total: %s",
		f.slotDate(p), p.Slots.StartTime, p.Slots.EndTime, room.DisplayName(), p.Slots.DurationHours, FormatPrice(p.Slots.TotalPrice))
	return models.Choice(joinParagraphs(body, msgConfirmPrompt),
		models.Option{ID: TokenConfirmYes, Label: "✅ Yes, confirm"},
		models.Option{ID: TokenConfirmNo, Label: "❌ Cancel"},
	)
}

func (f *ReservationFlow) availableRooms(ctx context.Context, p *models.ReservationProcess) ([]models.Room, error) {
	day, start, end, err := f.slotBounds(p)
	if err != nil {
		return nil, err
	}
	return f.availability.ListAvailable(ctx, day, start, end)
}

// slotBounds turns the collected slots into the reservation day and interval.
func (f *ReservationFlow) slotBounds(p *models.ReservationProcess) (day, start, end time.Time, err error) {
	day, err = time.Parse(storage.DateLayout, p.Slots.Date)
	if err != nil {
		return day, start, end, fmt.Errorf("process %d has bad date slot: %w", p.ID, err)
	}
	minutes, err := ClockMinutes(p.Slots.StartTime)
	if err != nil {
		return day, start, end, fmt.Errorf("process %d has bad start slot: %w", p.ID, err)
	}
	start = At(day, minutes, f.clock.Now().Location())
	end = start.Add(time.Duration(p.Slots.DurationHours) * time.Hour)
	return day, start, end, nil
}

func (f *ReservationFlow) slotDate(p *models.ReservationProcess) string {
	day, err := time.Parse(storage.DateLayout, p.Slots.Date)
	if err != nil {
		return p.Slots.Date
	}
	return day.Format(displayDate)
}

func (f *ReservationFlow) save(ctx context.Context, p *models.ReservationProcess, step string) error {
	p.CurrentStep = step
	p.UpdatedAt = f.clock.Now()
	if err := f.store.SaveProcess(ctx, p); err != nil {
		return fmt.Errorf("save process %d: %w", p.ID, err)
	}
	return nil
}

func roomPayload(rooms []models.Room, header string) models.Payload {
	if len(rooms) > maxRoomOptions {
		rooms = rooms[:maxRoomOptions]
	}
	lines := []string{header}
	opts := make([]models.Option, 0, len(rooms))
	for _, r := range rooms {
		line := fmt.Sprintf("• %s: %s/hour", r.DisplayName(), FormatPrice(r.Price()))
		if r.RoomType != nil {
			line = fmt.Sprintf("• %s (%s): %s/hour", r.DisplayName(), r.RoomType.Name, FormatPrice(r.Price()))
		}
		lines = append(lines, line)
		opts = append(opts, models.Option{ID: roomToken(r.ID), Label: r.DisplayName()})
	}
	return models.Choice(strings.Join(lines, "\n"), opts...)
}

// matchRoom finds a typed room by number, name or tag.
func matchRoom(rooms []models.Room, text string) *models.Room {
	t := normalize(text)
	if t == "" {
		return nil
	}
	for i := range rooms {
		if t == strings.ToLower(rooms[i].Number) || t == strings.ToLower(rooms[i].DisplayName()) {
			return &rooms[i]
		}
	}
	for i := range rooms {
		if strings.Contains(t, strings.ToLower(rooms[i].DisplayName())) {
			return &rooms[i]
		}
		for _, tag := range rooms[i].KeywordList() {
			if strings.Contains(t, tag) {
				return &rooms[i]
			}
		}
	}
	return nil
}

func confirmAnswer(text string) QuickReplyKind {
	switch qr := ParseQuickReply(text); qr.Kind {
	case QuickReplyConfirmYes, QuickReplyConfirmNo:
		return qr.Kind
	}
	switch plainWords(text) {
	case "si", "sí", "yes", "y", "ok", "confirmar", "confirmo", "confirm", "yes confirm", "si confirmar", "sí confirmar":
		return QuickReplyConfirmYes
	case "no", "n":
		return QuickReplyConfirmNo
	}
	return QuickReplyNone
}
