package services

import (
	"fmt"
	"strings"

	"github.com/MarioYanezUrrutia/chatbot-ai-backend/internal/models"
)

// Customer-facing texts.
const (
	msgWelcome     = "👋 Hi! I'm the motel assistant 🤖. I can answer your questions and help you book a room."
	msgHowCanIHelp = "How can I help you?"
	msgInfo        = "🏨 We are a motel offering rooms by the hour, every day from 06:00 to 23:59. " +
		"You can book here in a few steps: date, check-in time, hours and room.\n\n" +
		"Would you like to make a booking or do you have a specific question?"
	msgDecline = "👍 No problem! If you change your mind just type 'book'. Anything else I can help with?"
	msgUnknown = "Sorry, I don't have specific information about that right now. " +
		"Could you rephrase your question, or ask about our main services such as bookings, prices or opening hours?"
	msgUnknownFollowUp = "Would you like to make a booking or do you need more information?"
	msgApology         = "❌ Sorry, something went wrong on our side. Please send your last message again."
	msgStaleOption     = "⌛ That option is no longer active. Type 'book' to start a new booking."
	msgNoActiveBooking = "You don't have a booking in progress. Type 'book' whenever you want to start one."
	msgFreeNow         = "🏨 These rooms are free right now:"
	msgNothingFreeNow  = "😔 No rooms are free right now, but you can book for a later time."

	msgAskDate        = "📅 Great! What date would you like to book?\n\nSend it as DD/MM/YYYY (for example 25/12/2025). You can also write 'today' or 'tomorrow'."
	msgBadDate        = "⚠️ I couldn't read that date. Please use DD/MM/YYYY, for example 25/12/2025."
	msgPastDate       = "⚠️ That date has already passed. Please choose today or a later date."
	msgAskStart       = "🕐 What time would you like to check in? Use HH:MM between 06:00 and 23:59 (for example 14:30)."
	msgBadStart       = "⚠️ I couldn't read that time. Please use HH:MM, for example 14:30."
	msgOutsideHours   = "⚠️ We take check-ins between 06:00 and 23:59. Please choose a time in that window."
	msgPastStart      = "⚠️ That time has already passed today. Please choose a later time."
	msgAskHours       = "⏱️ How many hours would you like to stay? Choose an option or type a number from 1 to 12."
	msgBadHours       = "⚠️ Please send the number of hours as a number from 1 to 12."
	msgPickRoom       = "🏨 These rooms are available. Which one would you like?"
	msgBadRoom        = "⚠️ Please choose one of the rooms using the buttons, or type its number."
	msgRoomTaken      = "😔 Sorry, that room is no longer available for your time."
	msgConfirmPrompt  = "Do you confirm the booking?"
	msgBadConfirm     = "⚠️ Please answer with the buttons: confirm or cancel."
	msgCancelled      = "❌ Booking cancelled. You can start again anytime by typing 'book'."
	msgAlreadyBooking = "📝 You already have a booking in progress, let's continue."
)

// Staff console texts.
const (
	msgStaffHeader   = "👨‍💼 STAFF CONSOLE"
	msgStaffCommands = "Commands:\n• <number>: reservation detail\n• confirm <number>: confirm a pending booking\n" +
		"• arrival <number>: register the arrival\n• cancel <number>: cancel a booking\n" +
		"• no show <number>: mark a no-show\n• list-all: next 10 reservations\n• exit: leave staff mode"
	msgStaffExit   = "👋 Staff mode closed. Messages from this number are handled as a customer again."
	msgStaffEmpty  = "No upcoming reservations."
	msgStaffDenied = "🚫 You don't have permission to %s reservations."
)

func optBook() models.Option { return models.Option{ID: TokenBookStart, Label: "📅 Book"} }
func optInfo() models.Option { return models.Option{ID: TokenInfo, Label: "ℹ️ Info"} }

func joinParagraphs(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func statusLabel(status string) string {
	switch status {
	case models.ReservationPending:
		return "⏳ pending"
	case models.ReservationConfirmed:
		return "✅ confirmed"
	case models.ReservationCheckedIn:
		return "🛏️ checked in"
	case models.ReservationCompleted:
		return "🏁 completed"
	case models.ReservationCancelled:
		return "❌ cancelled"
	case models.ReservationNoShow:
		return "🚷 no show"
	}
	return status
}

func roomName(r *models.Reservation) string {
	if r.Room != nil {
		return r.Room.DisplayName()
	}
	return fmt.Sprintf("Room #%d", r.RoomID)
}

// RenderPlain flattens a payload for channels and history without buttons.
func RenderPlain(p models.Payload) string {
	if len(p.Options) == 0 {
		return p.Body
	}
	var b strings.Builder
	b.WriteString(p.Body)
	b.WriteString("\n")
	for _, o := range p.Options {
		b.WriteString("\n• ")
		b.WriteString(o.Label)
	}
	return b.String()
}
