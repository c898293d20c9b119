package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/storage"
)

const (
	staffMenuSize = 3
	staffListSize = 10
)

// staffAction describes a status change a staff command performs.
type staffAction struct {
	verb    string
	done    string
	allowed func(*models.Staff) bool
	from    []string
	to      string
	event   string
}

var staffActions = map[StaffCommandKind]staffAction{
	StaffConfirm: {
		verb:    "confirm",
		done:    "confirmed",
		allowed: func(s *models.Staff) bool { return s.CanConfirmArrival || s.CanModify },
		from:    []string{models.ReservationPending},
		to:      models.ReservationConfirmed,
		event:   EventReservationConfirmed,
	},
	StaffArrival: {
		verb:    "check in",
		done:    "checked in",
		allowed: func(s *models.Staff) bool { return s.CanConfirmArrival },
		from:    []string{models.ReservationConfirmed},
		to:      models.ReservationCheckedIn,
		event:   EventReservationCheckedIn,
	},
	StaffCancel: {
		verb:    "cancel",
		done:    "cancelled",
		allowed: func(s *models.Staff) bool { return s.CanCancel },
		from:    []string{models.ReservationPending, models.ReservationConfirmed},
		to:      models.ReservationCancelled,
		event:   EventReservationCancelled,
	},
	StaffNoShow: {
		verb:    "mark no-show on",
		done:    "marked as no-show",
		allowed: func(s *models.Staff) bool { return s.CanCancel },
		from:    []string{models.ReservationConfirmed},
		to:      models.ReservationNoShow,
		event:   EventReservationNoShow,
	},
}

// OperatorConsole lets registered staff manage reservations over the chat channel.
type OperatorConsole struct {
	store  storage.Store
	clock  Clock
	events EventPublisher
	secret string
}

// NewOperatorConsole creates a console unlocked by secret.
func NewOperatorConsole(store storage.Store, clock Clock, events EventPublisher, secret string) *OperatorConsole {
	if events == nil {
		events = NoopPublisher{}
	}
	return &OperatorConsole{store: store, clock: clock, events: events, secret: strings.TrimSpace(secret)}
}

// IsActivation reports whether text is the staff secret.
func (o *OperatorConsole) IsActivation(text string) bool {
	return o.secret != "" && strings.EqualFold(strings.TrimSpace(text), o.secret)
}

// Activate opens a staff session. ok is false when phone is not active staff.
func (o *OperatorConsole) Activate(ctx context.Context, phone string) (models.Payload, bool, error) {
	staff, err := o.activeStaff(ctx, phone)
	if err != nil || staff == nil {
		return models.Payload{}, false, err
	}
	if err := o.store.SetStaffSession(ctx, phone, true, o.clock.Now()); err != nil {
		return models.Payload{}, false, fmt.Errorf("open staff session: %w", err)
	}
	log.Info().Str("phone", phone).Msg("👨‍💼 Staff session opened")

	greeting := "👋 Welcome"
	if staff.Name != "" {
		greeting += ", " + staff.Name
	}
	menu, err := o.menu(ctx, greeting+"!")
	return menu, true, err
}

// InSession reports whether phone has an open staff session.
func (o *OperatorConsole) InSession(ctx context.Context, phone string) (bool, error) {
	sess, err := o.store.GetStaffSession(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("staff session: %w", err)
	}
	return sess.Active, nil
}

// Handle runs one staff command.
func (o *OperatorConsole) Handle(ctx context.Context, phone, text string) (models.Payload, error) {
	staff, err := o.activeStaff(ctx, phone)
	if err != nil {
		return models.Payload{}, err
	}
	if staff == nil {
		if err := o.store.SetStaffSession(ctx, phone, false, o.clock.Now()); err != nil {
			return models.Payload{}, err
		}
		return models.Text("🚫 Your staff access is no longer active."), nil
	}

	cmd := ParseStaffCommand(text)
	switch cmd.Kind {
	case StaffExit:
		if err := o.store.SetStaffSession(ctx, phone, false, o.clock.Now()); err != nil {
			return models.Payload{}, fmt.Errorf("close staff session: %w", err)
		}
		log.Info().Str("phone", phone).Msg("👋 Staff session closed")
		return models.Text(msgStaffExit), nil
	case StaffListAll:
		return o.listAll(ctx)
	case StaffDetail:
		return o.detail(ctx, cmd.ReservationID)
	case StaffConfirm, StaffArrival, StaffCancel, StaffNoShow:
		return o.transition(ctx, staff, cmd)
	}
	return o.menu(ctx, "")
}

func (o *OperatorConsole) transition(ctx context.Context, staff *models.Staff, cmd StaffCommand) (models.Payload, error) {
	action := staffActions[cmd.Kind]
	if !action.allowed(staff) {
		return models.Text(fmt.Sprintf(msgStaffDenied, action.verb)), nil
	}

	now := o.clock.Now()
	res, err := o.store.UpdateReservation(ctx, cmd.ReservationID, func(r *models.Reservation) error {
		if !containsStatus(action.from, r.Status) {
			return &NotFoundError{ReservationID: r.ID}
		}
		r.Status = action.to
		switch cmd.Kind {
		case StaffArrival:
			r.ArrivedAt = &now
			r.ConfirmedByStaffPhone = staff.Phone
		case StaffConfirm:
			r.ConfirmedByStaffPhone = staff.Phone
		}
		return nil
	})
	var nf *NotFoundError
	if errors.Is(err, storage.ErrNotFound) || errors.As(err, &nf) {
		return models.Text(notFoundText(cmd.ReservationID)), nil
	}
	if err != nil {
		return models.Payload{}, fmt.Errorf("%s reservation %d: %w", cmd.Kind, cmd.ReservationID, err)
	}

	log.Info().
		Str("staff", staff.Phone).
		Uint("reservation_id", res.ID).
		Str("status", res.Status).
		Msg("✅ Reservation updated from staff console")
	PublishEvent(ctx, o.events, action.event, res, now)

	return o.menu(ctx, fmt.Sprintf("✅ Reservation #%d %s.", res.ID, action.done))
}

func (o *OperatorConsole) menu(ctx context.Context, intro string) (models.Payload, error) {
	upcoming, err := o.store.ListReservations(ctx, storage.ReservationFilter{
		Statuses:  []string{models.ReservationPending, models.ReservationConfirmed},
		StartFrom: o.startOfToday(),
		Limit:     staffMenuSize,
	})
	if err != nil {
		return models.Payload{}, fmt.Errorf("staff menu: %w", err)
	}

	lines := []string{msgStaffHeader}
	var opts []models.Option
	if len(upcoming) == 0 {
		lines = append(lines, msgStaffEmpty)
	}
	for i := range upcoming {
		r := &upcoming[i]
		lines = append(lines, o.line(r))
		if opt, ok := nextAction(r); ok {
			opts = append(opts, opt)
		}
	}
	body := joinParagraphs(intro, strings.Join(lines, "\n"), msgStaffCommands)
	return models.Choice(body, opts...), nil
}

func (o *OperatorConsole) listAll(ctx context.Context) (models.Payload, error) {
	upcoming, err := o.store.ListReservations(ctx, storage.ReservationFilter{
		Statuses:  models.HoldingStatuses,
		StartFrom: o.startOfToday(),
		Limit:     staffListSize,
	})
	if err != nil {
		return models.Payload{}, fmt.Errorf("staff list: %w", err)
	}
	if len(upcoming) == 0 {
		return models.Text(joinParagraphs(msgStaffEmpty, msgStaffCommands)), nil
	}
	lines := []string{fmt.Sprintf("📋 Next %d reservations", len(upcoming))}
	for i := range upcoming {
		lines = append(lines, o.line(&upcoming[i]))
	}
	return models.Text(joinParagraphs(strings.Join(lines, "\n"), msgStaffCommands)), nil
}

func (o *OperatorConsole) detail(ctx context.Context, id uint) (models.Payload, error) {
	r, err := o.store.GetReservation(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Text(notFoundText(id)), nil
	}
	if err != nil {
		return models.Payload{}, fmt.Errorf("reservation %d: %w", id, err)
	}

	who := fmt.Sprintf("Customer #%d", r.CustomerID)
	if c, err := o.store.GetCustomer(ctx, r.CustomerID); err == nil {
		who = c.Identity
		if c.Name != "" {
			who = c.Name + " (" + c.Identity + ")"
		}
	}

	loc := o.clock.Now().Location()
	lines := []string{
		fmt.Sprintf("📄 Reservation #%d", r.ID),
		"👤 " + who,
		"📅 " + r.StartAt.In(loc).Format(displayDate),
		fmt.Sprintf("🕐 %s - %s", r.StartAt.In(loc).Format("15:04"), r.EndAt.In(loc).Format("15:04")),
		"🏨 " + roomName(r),
		fmt.Sprintf("👥 %d persons", r.Persons),
		"💰 " + FormatPrice(r.TotalPrice),
		"📌 Status: " + statusLabel(r.Status),
	}
	if r.ArrivedAt != nil {
		lines = append(lines, "🛬 Arrived: "+r.ArrivedAt.In(loc).Format("02/01 15:04"))
	}
	if r.Notes != "" {
		lines = append(lines, "📝 "+r.Notes)
	}

	var opts []models.Option
	switch r.Status {
	case models.ReservationPending:
		opts = append(opts,
			models.Option{ID: staffToken(prefixStaffConfirm, r.ID), Label: fmt.Sprintf("✅ Confirm #%d", r.ID)},
			models.Option{ID: staffToken(prefixStaffCancel, r.ID), Label: fmt.Sprintf("❌ Cancel #%d", r.ID)})
	case models.ReservationConfirmed:
		opts = append(opts,
			models.Option{ID: staffToken(prefixStaffArrival, r.ID), Label: fmt.Sprintf("🏁 Arrival #%d", r.ID)},
			models.Option{ID: staffToken(prefixStaffNoShow, r.ID), Label: fmt.Sprintf("🚷 No show #%d", r.ID)})
	}
	opts = append(opts, models.Option{ID: TokenStaffExit, Label: "🚪 Exit"})
	return models.Choice(strings.Join(lines, "\n"), opts...), nil
}

func (o *OperatorConsole) line(r *models.Reservation) string {
	loc := o.clock.Now().Location()
	return fmt.Sprintf("#%d · %s %s-%s · %s · %s",
		r.ID,
		r.StartAt.In(loc).Format("02/01"),
		r.StartAt.In(loc).Format("15:04"),
		r.EndAt.In(loc).Format("15:04"),
		roomName(r),
		statusLabel(r.Status))
}

func (o *OperatorConsole) startOfToday() time.Time {
	now := o.clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// activeStaff returns nil without error for unknown or inactive phones.
func (o *OperatorConsole) activeStaff(ctx context.Context, phone string) (*models.Staff, error) {
	staff, err := o.store.GetStaffByPhone(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("staff lookup: %w", err)
	}
	if !staff.Active {
		return nil, nil
	}
	return staff, nil
}

func nextAction(r *models.Reservation) (models.Option, bool) {
	switch r.Status {
	case models.ReservationPending:
		return models.Option{ID: staffToken(prefixStaffConfirm, r.ID), Label: fmt.Sprintf("✅ Confirm #%d", r.ID)}, true
	case models.ReservationConfirmed:
		return models.Option{ID: staffToken(prefixStaffArrival, r.ID), Label: fmt.Sprintf("🏁 Arrival #%d", r.ID)}, true
	}
	return models.Option{}, false
}

func notFoundText(id uint) string {
	return fmt.Sprintf("⚠️ Reservation #%d not found or already processed.", id)
}

func containsStatus(list []string, status string) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}
