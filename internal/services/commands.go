package services

import (
	"strconv"
	"strings"
	"unicode"
)

// Quick-reply tokens offered to customers.
const (
	TokenBookStart  = "book_start"
	TokenInfo       = "info"
	TokenDecline    = "book_decline"
	TokenConfirmYes = "confirm_yes"
	TokenConfirmNo  = "confirm_no"

	prefixFAQ      = "faq_"
	prefixDuration = "duration_"
	prefixRoom     = "room_"
)

// Staff console tokens.
const (
	TokenStaffExit    = "exit"
	TokenStaffListAll = "list-all"

	prefixStaffConfirm = "confirm_"
	prefixStaffArrival = "arrival_"
	prefixStaffCancel  = "cancel_"
	prefixStaffNoShow  = "noshow_"
)

// QuickReplyKind is the closed set of customer tokens.
type QuickReplyKind int

const (
	QuickReplyNone QuickReplyKind = iota
	QuickReplyFAQ
	QuickReplyBookStart
	QuickReplyInfo
	QuickReplyDecline
	QuickReplyDuration
	QuickReplyRoom
	QuickReplyConfirmYes
	QuickReplyConfirmNo
	QuickReplyCancel
)

// QuickReply is a parsed customer token. ID carries the FAQ or room id,
// Hours the duration.
type QuickReply struct {
	Kind  QuickReplyKind
	ID    uint
	Hours int
}

var cancelWords = map[string]bool{
	"cancel":           true,
	"cancelar":         true,
	"cancelar reserva": true,
	"cancel booking":   true,
}

// ParseQuickReply recognizes a customer token. Free text yields QuickReplyNone.
func ParseQuickReply(text string) QuickReply {
	t := plainWords(text)
	switch t {
	case TokenBookStart:
		return QuickReply{Kind: QuickReplyBookStart}
	case TokenInfo:
		return QuickReply{Kind: QuickReplyInfo}
	case TokenDecline:
		return QuickReply{Kind: QuickReplyDecline}
	case TokenConfirmYes:
		return QuickReply{Kind: QuickReplyConfirmYes}
	case TokenConfirmNo:
		return QuickReply{Kind: QuickReplyConfirmNo}
	}
	if cancelWords[t] {
		return QuickReply{Kind: QuickReplyCancel}
	}
	if id, ok := idAfter(t, prefixFAQ); ok {
		return QuickReply{Kind: QuickReplyFAQ, ID: id}
	}
	if id, ok := idAfter(t, prefixRoom); ok {
		return QuickReply{Kind: QuickReplyRoom, ID: id}
	}
	if n, ok := idAfter(t, prefixDuration); ok {
		return QuickReply{Kind: QuickReplyDuration, Hours: int(n)}
	}
	return QuickReply{Kind: QuickReplyNone}
}

// StaffCommandKind is the closed set of operator commands.
type StaffCommandKind int

const (
	StaffMenu StaffCommandKind = iota
	StaffExit
	StaffListAll
	StaffConfirm
	StaffArrival
	StaffCancel
	StaffNoShow
	StaffDetail
)

func (k StaffCommandKind) String() string {
	switch k {
	case StaffExit:
		return "exit"
	case StaffListAll:
		return "list-all"
	case StaffConfirm:
		return "confirm"
	case StaffArrival:
		return "arrival"
	case StaffCancel:
		return "cancel"
	case StaffNoShow:
		return "noshow"
	case StaffDetail:
		return "detail"
	}
	return "menu"
}

// StaffCommand is a parsed operator command.
type StaffCommand struct {
	Kind          StaffCommandKind
	ReservationID uint
}

// staffVerbs maps the typed forms of each status command, longest first where
// one is a prefix of another.
var staffVerbs = []struct {
	word string
	kind StaffCommandKind
}{
	{"confirmar", StaffConfirm},
	{"confirm", StaffConfirm},
	{"arrival", StaffArrival},
	{"llegada", StaffArrival},
	{"check-in", StaffArrival},
	{"checkin", StaffArrival},
	{"cancelar", StaffCancel},
	{"cancel", StaffCancel},
	{"noshow", StaffNoShow},
	{"no-show", StaffNoShow},
	{"no show", StaffNoShow},
}

// ParseStaffCommand recognizes an operator command. Tokens ("confirm_3") and
// the typed button labels ("✅ Confirm #3", "confirm 3") are both accepted.
// Unknown input maps to StaffMenu.
func ParseStaffCommand(text string) StaffCommand {
	t := plainWords(text)
	switch t {
	case TokenStaffExit, "salir":
		return StaffCommand{Kind: StaffExit}
	case TokenStaffListAll, "todas", "all":
		return StaffCommand{Kind: StaffListAll}
	}
	t = strings.TrimSpace(strings.ReplaceAll(t, "#", " "))
	for _, v := range staffVerbs {
		rest, ok := strings.CutPrefix(t, v.word)
		if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '_') {
			continue
		}
		if id, ok := parseID(strings.TrimLeft(rest, " _")); ok {
			return StaffCommand{Kind: v.kind, ReservationID: id}
		}
	}
	if id, ok := parseID(t); ok {
		return StaffCommand{Kind: StaffDetail, ReservationID: id}
	}
	return StaffCommand{Kind: StaffMenu}
}

// plainWords lowercases text and drops emoji and punctuation, keeping
// letters, digits and the characters tokens are built from.
func plainWords(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Latin, r), unicode.IsDigit(r), r == '_', r == '-', r == '#':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func parseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func idAfter(s, prefix string) (uint, bool) {
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	return parseID(strings.TrimPrefix(s, prefix))
}

func faqToken(id uint) string { return prefixFAQ + strconv.FormatUint(uint64(id), 10) }
func roomToken(id uint) string { return prefixRoom + strconv.FormatUint(uint64(id), 10) }
func durationToken(n int) string { return prefixDuration + strconv.Itoa(n) }
func staffToken(prefix string, id uint) string {
	return prefix + strconv.FormatUint(uint64(id), 10)
}
